package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaderFor(id uuid.UUID) Loader {
	return func(context.Context) (*model.ExamSession, error) {
		return &model.ExamSession{ID: id, Status: model.SessionStatusActive}, nil
	}
}

func TestDoLoadsOnce(t *testing.T) {
	s := New()
	id := uuid.New()
	loads := 0
	load := func(context.Context) (*model.ExamSession, error) {
		loads++
		return &model.ExamSession{ID: id}, nil
	}

	for i := 0; i < 3; i++ {
		err := s.Do(context.Background(), id, load, func(e *Entry) error {
			require.NotNil(t, e.Session)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loads)
}

func TestDoPropagatesLoadError(t *testing.T) {
	s := New()
	sentinel := errors.New("not found")
	err := s.Do(context.Background(), uuid.New(),
		func(context.Context) (*model.ExamSession, error) { return nil, sentinel },
		func(*Entry) error { return nil },
	)
	assert.ErrorIs(t, err, sentinel)
}

// Two concurrent mutations of the same session must not race past each
// other: the final counter equals the sum of both increments.
func TestDoSerializesPerSession(t *testing.T) {
	s := New()
	id := uuid.New()
	load := loaderFor(id)

	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = s.Do(context.Background(), id, load, func(e *Entry) error {
					// Read-modify-write with no atomic; only Do's
					// serialization keeps it correct.
					v := e.Session.Violations.TabSwitch
					e.Session.Violations.TabSwitch = v + 1
					return nil
				})
			}
		}()
	}
	wg.Wait()

	err := s.Do(context.Background(), id, load, func(e *Entry) error {
		assert.Equal(t, workers*perWorker, e.Session.Violations.TabSwitch)
		return nil
	})
	require.NoError(t, err)
}

func TestEventDedupMemory(t *testing.T) {
	s := New()
	id := uuid.New()

	err := s.Do(context.Background(), id, loaderFor(id), func(e *Entry) error {
		_, seen := e.EventAction("evt-1")
		assert.False(t, seen)
		e.RememberEvent("evt-1", model.ActionWarn)
		return nil
	})
	require.NoError(t, err)

	err = s.Do(context.Background(), id, loaderFor(id), func(e *Entry) error {
		a, seen := e.EventAction("evt-1")
		assert.True(t, seen)
		assert.Equal(t, model.ActionWarn, a)
		return nil
	})
	require.NoError(t, err)
}

func TestEvictForcesReload(t *testing.T) {
	s := New()
	id := uuid.New()
	loads := 0
	load := func(context.Context) (*model.ExamSession, error) {
		loads++
		return &model.ExamSession{ID: id}, nil
	}

	require.NoError(t, s.Do(context.Background(), id, load, func(*Entry) error { return nil }))
	s.Evict(id)
	require.NoError(t, s.Do(context.Background(), id, load, func(*Entry) error { return nil }))
	assert.Equal(t, 2, loads)
}

func TestSweepIdleEvictsStaleEntries(t *testing.T) {
	s := New()
	id := uuid.New()
	loads := 0
	load := func(context.Context) (*model.ExamSession, error) {
		loads++
		return &model.ExamSession{ID: id}, nil
	}

	require.NoError(t, s.Do(context.Background(), id, load, func(*Entry) error { return nil }))
	time.Sleep(10 * time.Millisecond)
	s.sweepIdle(time.Nanosecond)

	require.NoError(t, s.Do(context.Background(), id, load, func(*Entry) error { return nil }))
	assert.Equal(t, 2, loads)
}

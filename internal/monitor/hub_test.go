package monitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct {
	stats *repository.ExamStats
	err   error
}

func (s *stubStats) StatsByExam(ctx context.Context, examID uuid.UUID) (*repository.ExamStats, error) {
	return s.stats, s.err
}

type stubEvents struct {
	events []model.ProctorEvent
	err    error
}

func (s *stubEvents) ListRecentByExam(ctx context.Context, examID uuid.UUID, since time.Time, limit int) ([]model.ProctorEvent, error) {
	return s.events, s.err
}

// newTestHub uses an unroutable Redis address: the feed loop starts but never
// receives pubsub frames, so tests drive the feed directly.
func newTestHub(t *testing.T, stats StatsSource, events EventSource) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { rdb.Close() })
	return NewHub(ctx, rdb, stats, events, time.Hour, 4, zerolog.Nop())
}

func TestFeedRememberKeepsWindow(t *testing.T) {
	f := &feed{subs: make(map[chan []byte]struct{})}

	for i := 0; i < 5; i++ {
		f.remember([]byte{byte('a' + i)}, 3)
	}

	require.Len(t, f.recent, 3)
	assert.Equal(t, []byte("c"), f.recent[0])
	assert.Equal(t, []byte("e"), f.recent[2])
}

func TestFeedBroadcastDropsSlowSubscriber(t *testing.T) {
	f := &feed{subs: make(map[chan []byte]struct{})}
	slow := make(chan []byte, 1)
	f.subs[slow] = struct{}{}

	f.broadcast([]byte("one"))
	f.broadcast([]byte("two")) // buffer full, must not block

	assert.Equal(t, []byte("one"), <-slow)
	select {
	case frame := <-slow:
		t.Fatalf("expected dropped frame, got %q", frame)
	default:
	}
}

func TestSubscribeBackfillsRecentFrames(t *testing.T) {
	hub := newTestHub(t, &stubStats{}, &stubEvents{})
	examID := uuid.New()

	first, cancelFirst := hub.Subscribe(examID)
	defer cancelFirst()

	hub.mu.Lock()
	f := hub.feeds[examID]
	hub.mu.Unlock()
	require.NotNil(t, f)

	f.remember([]byte("frame-1"), hub.window)
	f.remember([]byte("frame-2"), hub.window)

	second, cancelSecond := hub.Subscribe(examID)
	defer cancelSecond()

	assert.Equal(t, []byte("frame-1"), <-second)
	assert.Equal(t, []byte("frame-2"), <-second)

	// The first viewer attached before any frames existed.
	select {
	case frame := <-first:
		t.Fatalf("unexpected backfill for earlier subscriber: %q", frame)
	default:
	}
}

// A backfill window larger than the subscriber buffer delivers only the
// newest frames, never blocking and never favoring stale ones.
func TestSubscribeBackfillOverflowKeepsNewest(t *testing.T) {
	hub := newTestHub(t, &stubStats{}, &stubEvents{})
	examID := uuid.New()

	_, cancelFirst := hub.Subscribe(examID)
	defer cancelFirst()

	hub.mu.Lock()
	f := hub.feeds[examID]
	hub.mu.Unlock()
	require.NotNil(t, f)

	f.mu.Lock()
	for i := 0; i < subscriberBuffer+10; i++ {
		f.recent = append(f.recent, []byte{byte(i)})
	}
	f.mu.Unlock()

	ch, cancel := hub.Subscribe(examID)
	defer cancel()

	got := <-ch
	assert.Equal(t, []byte{10}, got, "oldest overflowed frames are skipped")
	for i := 0; i < subscriberBuffer-1; i++ {
		got = <-ch
	}
	assert.Equal(t, []byte{byte(subscriberBuffer + 9)}, got, "newest frame arrives last")
}

// A proctor attaching mid-exam gets the persisted recent events replayed,
// oldest first, as regular proctor_event frames.
func TestFeedSeedsHistoryFromEventLog(t *testing.T) {
	history := []model.ProctorEvent{
		{ID: uuid.New(), SessionID: uuid.New(), StudentID: "student-2", EventID: "e2",
			Type: model.EventCopyAttempt, CreatedAt: time.Now()},
		{ID: uuid.New(), SessionID: uuid.New(), StudentID: "student-1", EventID: "e1",
			Type: model.EventTabSwitch, CreatedAt: time.Now().Add(-time.Minute)},
	}
	hub := newTestHub(t, &stubStats{}, &stubEvents{events: history})

	ch, cancel := hub.Subscribe(uuid.New())
	defer cancel()

	var first eventFrame
	require.NoError(t, json.Unmarshal(recvFrame(t, ch), &first))
	assert.Equal(t, "proctor_event", first.Kind)
	assert.Equal(t, "student-1", first.StudentID, "oldest event replays first")

	var second eventFrame
	require.NoError(t, json.Unmarshal(recvFrame(t, ch), &second))
	assert.Equal(t, "student-2", second.StudentID)
}

func recvFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestLastUnsubscribeStopsFeed(t *testing.T) {
	hub := newTestHub(t, &stubStats{}, &stubEvents{})
	examID := uuid.New()

	ch1, cancel1 := hub.Subscribe(examID)
	ch2, cancel2 := hub.Subscribe(examID)

	cancel1()
	_, open := <-ch1
	assert.False(t, open)

	hub.mu.Lock()
	_, alive := hub.feeds[examID]
	hub.mu.Unlock()
	assert.True(t, alive, "feed must survive while a viewer remains")

	cancel2()
	_, open = <-ch2
	assert.False(t, open)

	hub.mu.Lock()
	_, alive = hub.feeds[examID]
	hub.mu.Unlock()
	assert.False(t, alive, "last viewer leaving must stop the feed")

	// Cancelling twice is safe.
	cancel2()
}

func TestPushSnapshotBroadcastsStats(t *testing.T) {
	stats := &repository.ExamStats{Active: 7, Completed: 3, MeanIntegrity: 92.5}
	hub := newTestHub(t, &stubStats{stats: stats}, &stubEvents{})
	examID := uuid.New()

	ch, cancel := hub.Subscribe(examID)
	defer cancel()

	hub.mu.Lock()
	f := hub.feeds[examID]
	hub.mu.Unlock()

	hub.pushSnapshot(context.Background(), examID, f)

	var frame snapshotFrame
	require.NoError(t, json.Unmarshal(<-ch, &frame))
	assert.Equal(t, "stats_snapshot", frame.Kind)
	assert.Equal(t, 7, frame.Stats.Active)
	assert.Equal(t, 92.5, frame.Stats.MeanIntegrity)
}

func TestPushSnapshotSkipsOnStatsError(t *testing.T) {
	hub := newTestHub(t, &stubStats{err: context.DeadlineExceeded}, &stubEvents{})
	examID := uuid.New()

	ch, cancel := hub.Subscribe(examID)
	defer cancel()

	hub.mu.Lock()
	f := hub.feeds[examID]
	hub.mu.Unlock()

	hub.pushSnapshot(context.Background(), examID, f)

	select {
	case frame := <-ch:
		t.Fatalf("expected no frame on stats error, got %q", frame)
	default:
	}
}

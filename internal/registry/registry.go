// Package registry is the concurrency-safe keyed store for live exam
// sessions. Every mutating session operation runs through Do, which
// serializes on a per-session entry: threshold checks always observe a
// consistent counter state, and operations on distinct sessions never
// contend with each other.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
)

const shardCount = 32

// Entry holds one session's live state plus the proctor-event dedup memory.
// Callers only ever see an Entry locked by Do.
type Entry struct {
	mu          sync.Mutex
	detached    bool
	lastTouched time.Time

	Session    *model.ExamSession
	seenEvents map[string]model.ProctorAction
}

// EventAction returns the action previously taken for a client event ID.
func (e *Entry) EventAction(eventID string) (model.ProctorAction, bool) {
	a, ok := e.seenEvents[eventID]
	return a, ok
}

// RememberEvent records the action taken for a client event ID so retries
// of the same event return the same outcome without a second count.
func (e *Entry) RememberEvent(eventID string, action model.ProctorAction) {
	e.seenEvents[eventID] = action
}

type shard struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// Store is a sharded session registry with per-entry locking.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[uuid.UUID]*Entry)}
	}
	return s
}

// Loader fetches a session's state from durable storage on a registry miss.
type Loader func(ctx context.Context) (*model.ExamSession, error)

// Do runs fn with the session's entry locked. The entry is loaded through
// load on first touch (or after eviction). fn must persist its mutation
// before applying it to the entry; a load or persist error leaves the
// registry untouched.
func (s *Store) Do(ctx context.Context, id uuid.UUID, load Loader, fn func(*Entry) error) error {
	for {
		e := s.shardFor(id).getOrCreate(id)

		e.mu.Lock()
		if e.detached {
			// Evicted between lookup and lock; take a fresh entry.
			e.mu.Unlock()
			continue
		}

		if e.Session == nil {
			sess, err := load(ctx)
			if err != nil {
				e.mu.Unlock()
				s.Evict(id)
				return err
			}
			e.Session = sess
		}
		e.lastTouched = time.Now()

		err := fn(e)
		e.mu.Unlock()
		return err
	}
}

// Evict drops a session's entry. The next Do reloads from storage. Safe to
// call for absent IDs.
func (s *Store) Evict(id uuid.UUID) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	e, ok := sh.entries[id]
	if ok {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.detached = true
		e.mu.Unlock()
	}
}

// StartJanitor evicts entries idle longer than maxIdle on the given interval
// until ctx is cancelled. Finalized sessions drop out of memory this way
// while their durable audit records remain.
func (s *Store) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepIdle(maxIdle)
			}
		}
	}()
}

func (s *Store) sweepIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if !e.mu.TryLock() {
				continue // in use right now, skip this round
			}
			if e.lastTouched.Before(cutoff) {
				e.detached = true
				delete(sh.entries, id)
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
}

func (s *Store) shardFor(id uuid.UUID) *shard {
	return s.shards[int(id[0])%shardCount]
}

func (sh *shard) getOrCreate(id uuid.UUID) *Entry {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[id]
	if !ok {
		e = &Entry{seenEvents: make(map[string]model.ProctorAction)}
		sh.entries[id] = e
	}
	return e
}

// Package monitor fans an exam's Redis monitor channel out to the proctor
// views attached to this process. One Redis subscription per exam feeds any
// number of local viewers; a small ring of recent frames backfills viewers
// that attach mid-exam, and a ticker interleaves aggregate stats snapshots.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	subscriberBuffer = 64
	statsTimeout     = 5 * time.Second // prevent slow queries from blocking the feed loop
	backfillLookback = 15 * time.Minute
)

// StatsSource supplies the aggregate counters for snapshot frames.
type StatsSource interface {
	StatsByExam(ctx context.Context, examID uuid.UUID) (*repository.ExamStats, error)
}

// EventSource supplies persisted proctor events for seeding a fresh feed's
// backfill window.
type EventSource interface {
	ListRecentByExam(ctx context.Context, examID uuid.UUID, since time.Time, limit int) ([]model.ProctorEvent, error)
}

// eventFrame mirrors the proctor_event frame published on the monitor
// channel, so a seeded history frame is indistinguishable from a live one.
type eventFrame struct {
	Kind      string              `json:"kind"`
	SessionID uuid.UUID           `json:"session_id"`
	StudentID string              `json:"student_id"`
	Event     *model.ProctorEvent `json:"event"`
	At        time.Time           `json:"at"`
}

// snapshotFrame is the periodic aggregate pushed between live events.
type snapshotFrame struct {
	Kind  string                `json:"kind"`
	Stats *repository.ExamStats `json:"stats"`
	At    time.Time             `json:"at"`
}

// Hub manages per-exam feeds. Safe for concurrent use.
type Hub struct {
	rdb    *redis.Client
	stats  StatsSource
	events EventSource
	tick   time.Duration
	window int
	log    zerolog.Logger

	ctx   context.Context
	mu    sync.Mutex
	feeds map[uuid.UUID]*feed
}

// NewHub creates a Hub. ctx bounds the lifetime of every feed it starts.
func NewHub(ctx context.Context, rdb *redis.Client, stats StatsSource, events EventSource, tick time.Duration, window int, log zerolog.Logger) *Hub {
	return &Hub{
		rdb:    rdb,
		stats:  stats,
		events: events,
		tick:   tick,
		window: window,
		log:    log.With().Str("component", "monitor_hub").Logger(),
		ctx:    ctx,
		feeds:  make(map[uuid.UUID]*feed),
	}
}

// Subscribe attaches a viewer to an exam's feed. The returned channel carries
// raw JSON frames, starting with a backfill of the recent event window. The
// cancel function detaches the viewer; the last viewer detaching stops the
// exam's Redis subscription.
func (h *Hub) Subscribe(examID uuid.UUID) (<-chan []byte, func()) {
	h.mu.Lock()
	f, ok := h.feeds[examID]
	if !ok {
		f = h.startFeed(examID)
		h.feeds[examID] = f
	}
	h.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)

	f.mu.Lock()
	// A window larger than the buffer backfills the newest frames only. The
	// channel is fresh and buffered, so these sends cannot block.
	start := 0
	if len(f.recent) > subscriberBuffer {
		start = len(f.recent) - subscriberBuffer
	}
	for _, frame := range f.recent[start:] {
		ch <- frame
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, attached := f.subs[ch]; attached {
			delete(f.subs, ch)
			close(ch)
		}
		empty := len(f.subs) == 0
		f.mu.Unlock()

		if empty {
			h.stopFeed(examID, f)
		}
	}
	return ch, cancel
}

func (h *Hub) startFeed(examID uuid.UUID) *feed {
	ctx, cancel := context.WithCancel(h.ctx)
	f := &feed{
		subs:   make(map[chan []byte]struct{}),
		cancel: cancel,
	}
	go h.run(ctx, examID, f)
	h.log.Info().Str("exam_id", examID.String()).Msg("monitor feed started")
	return f
}

// stopFeed tears the feed down unless a new viewer raced in.
func (h *Hub) stopFeed(examID uuid.UUID, f *feed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f.mu.Lock()
	empty := len(f.subs) == 0
	f.mu.Unlock()
	if !empty || h.feeds[examID] != f {
		return
	}
	delete(h.feeds, examID)
	f.cancel()
	h.log.Info().Str("exam_id", examID.String()).Msg("monitor feed stopped")
}

func (h *Hub) run(ctx context.Context, examID uuid.UUID, f *feed) {
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	msgs := pubsub.Channel()

	// Seed after subscribing so nothing published in between is lost.
	h.seedBackfill(ctx, examID, f)

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			frame := []byte(msg.Payload)
			f.remember(frame, h.window)
			f.broadcast(frame)

		case <-ticker.C:
			h.pushSnapshot(ctx, examID, f)
		}
	}
}

// seedBackfill primes a fresh feed's ring from the persisted event log so a
// proctor attaching mid-exam sees what recently happened, not a blank view.
func (h *Hub) seedBackfill(ctx context.Context, examID uuid.UUID, f *feed) {
	loadCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	events, err := h.events.ListRecentByExam(loadCtx, examID, time.Now().Add(-backfillLookback), h.window)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("monitor backfill load failed")
		return
	}

	// Storage returns newest first; replay oldest first so the ring and any
	// viewer already attached see events in order.
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		frame, err := json.Marshal(eventFrame{
			Kind:      "proctor_event",
			SessionID: e.SessionID,
			StudentID: e.StudentID,
			Event:     &e,
			At:        e.CreatedAt,
		})
		if err != nil {
			continue
		}
		f.remember(frame, h.window)
		f.broadcast(frame)
	}
}

func (h *Hub) pushSnapshot(ctx context.Context, examID uuid.UUID, f *feed) {
	statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats, err := h.stats.StatsByExam(statsCtx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("stats snapshot failed")
		return
	}
	frame, err := json.Marshal(snapshotFrame{Kind: "stats_snapshot", Stats: stats, At: time.Now()})
	if err != nil {
		return
	}
	f.broadcast(frame)
}

// feed is one exam's fan-out state.
type feed struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	recent [][]byte
	cancel context.CancelFunc
}

// remember appends a frame to the backfill ring, dropping the oldest past
// the window.
func (f *feed) remember(frame []byte, window int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, frame)
	if len(f.recent) > window {
		f.recent = f.recent[len(f.recent)-window:]
	}
}

// broadcast sends a frame to every subscriber without blocking. A viewer
// whose buffer is full misses the frame; the next snapshot resyncs it.
func (f *feed) broadcast(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

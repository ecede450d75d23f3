package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	EventBatchSize    = 50
	EventBatchTimeout = 2 * time.Second
	EventPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWorker drains the proctor event queue into Postgres in batches. The
// escalation decisions were already taken and persisted on the session row
// at ingest time; this worker only materializes the audit log.
type EventWorker struct {
	events *repository.EventRepository
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(events *repository.EventRepository, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		events: events,
		rdb:    rdb,
		log:    log.With().Str("component", "event_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is cancelled, flushing any buffered
// events on the way out.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]model.ProctorEvent, 0, EventBatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= EventBatchSize || time.Since(lastFlush) >= EventBatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, EventPollTimeout, config.WorkerKey.PersistEventsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer.
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var event model.ProctorEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed event")
			continue
		}
		buffer = append(buffer, event)
	}
}

// flushSafe writes the batch; on failure the whole batch is requeued so the
// audit log survives a database outage.
func (w *EventWorker) flushSafe(ctx context.Context, batch []model.ProctorEvent) {
	if err := w.events.BulkInsert(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("count", len(batch)).Msg("Insert failed, requeueing batch")
		w.requeue(ctx, batch)
	}
}

func (w *EventWorker) requeue(ctx context.Context, batch []model.ProctorEvent) {
	pipe := w.rdb.Pipeline()
	for i := range batch {
		data, _ := json.Marshal(&batch[i])
		pipe.RPush(ctx, config.WorkerKey.PersistEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue events to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(batch)).Msg("Requeued failed events back to Redis")
	// Avoid thrashing if the database is down hard.
	time.Sleep(2 * time.Second)
}

func (w *EventWorker) shutdown(buffer []model.ProctorEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

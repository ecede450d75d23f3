package repository

import (
	"context"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles the append-only proctor event log.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// BulkInsert writes a batch of events with CopyFrom. CopyFrom cannot skip
// conflicting rows, so when a retried client event collides with the
// (session_id, event_id) uniqueness the whole batch falls back to per-row
// inserts with ON CONFLICT DO NOTHING.
func (r *EventRepository) BulkInsert(ctx context.Context, events []model.ProctorEvent) error {
	if len(events) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"proctor_events"},
		[]string{"id", "session_id", "exam_id", "student_id", "event_id",
			"event_type", "severity", "detail", "action_taken", "created_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{e.ID, e.SessionID, e.ExamID, e.StudentID, e.EventID,
				e.Type, e.Severity, e.Detail, e.ActionTaken, e.CreatedAt}, nil
		}))
	if err == nil {
		return nil
	}

	for _, e := range events {
		if insErr := r.insertOne(ctx, &e); insErr != nil {
			return insErr
		}
	}
	return nil
}

func (r *EventRepository) insertOne(ctx context.Context, e *model.ProctorEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctor_events (id, session_id, exam_id, student_id,
		        event_id, event_type, severity, detail, action_taken, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id, event_id) DO NOTHING`,
		e.ID, e.SessionID, e.ExamID, e.StudentID, e.EventID, e.Type,
		e.Severity, e.Detail, e.ActionTaken, e.CreatedAt)
	return err
}

const eventColumns = `id, session_id, exam_id, student_id, event_id, event_type,
	severity, detail, action_taken, created_at`

func scanEvent(row interface{ Scan(dest ...any) error }) (*model.ProctorEvent, error) {
	e := &model.ProctorEvent{}
	err := row.Scan(&e.ID, &e.SessionID, &e.ExamID, &e.StudentID, &e.EventID,
		&e.Type, &e.Severity, &e.Detail, &e.ActionTaken, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListBySession retrieves a session's events, oldest first.
func (r *EventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM proctor_events
		 WHERE session_id = $1
		 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListRecentByExam retrieves the newest events across an exam, capped at
// limit, for monitor backfill when a proctor view first connects.
func (r *EventRepository) ListRecentByExam(ctx context.Context, examID uuid.UUID, since time.Time, limit int) ([]model.ProctorEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM proctor_events
		 WHERE exam_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC
		 LIMIT $3`, examID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]model.ProctorEvent, error) {
	var events []model.ProctorEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamStats aggregates live session counts for one exam's monitor feed.
type ExamStats struct {
	Active        int     `json:"active"`
	Completed     int     `json:"completed"`
	Suspicious    int     `json:"suspicious"`
	Terminated    int     `json:"terminated"`
	MeanIntegrity float64 `json:"mean_integrity"`
}

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, student_id, branch_id, token_id, started_at,
	ends_at, finished_at, client, status, violations, answered_questions,
	flagged_questions, time_spent, snapshots, question_order, integrity_score,
	suspicious, termination_reason`

func scanSession(row interface{ Scan(dest ...any) error }) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.BranchID, &s.TokenID,
		&s.StartedAt, &s.EndsAt, &s.FinishedAt, &s.Client, &s.Status,
		&s.Violations, &s.AnsweredQuestions, &s.FlaggedQuestions,
		&s.TimeSpent, &s.Snapshots, &s.QuestionOrder, &s.IntegrityScore,
		&s.Suspicious, &s.TerminationReason)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session. The (exam_id, student_id) uniqueness means a
// concurrent duplicate start loses the race; callers detect the conflict via
// pgx.ErrNoRows and re-read the winner's row.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, exam_id, student_id, branch_id, token_id,
		        started_at, ends_at, client, status, violations,
		        answered_questions, flagged_questions, time_spent, snapshots,
		        question_order, integrity_score, suspicious)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING started_at`,
		s.ID, s.ExamID, s.StudentID, s.BranchID, s.TokenID, s.StartedAt,
		s.EndsAt, s.Client, s.Status, s.Violations, s.AnsweredQuestions,
		s.FlaggedQuestions, s.TimeSpent, s.Snapshots, s.QuestionOrder,
		s.IntegrityScore, s.Suspicious,
	).Scan(&s.StartedAt)
}

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the session for one exam-student pair.
func (r *SessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
}

// UpdateTokenID records the freshly issued session token on resume.
func (r *SessionRepository) UpdateTokenID(ctx context.Context, id uuid.UUID, tokenID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET token_id = $1 WHERE id = $2`, tokenID, id)
	return err
}

// UpdateProctorState persists the proctoring side of a session after an
// event is applied: counters, score, status, suspicious log, snapshots.
func (r *SessionRepository) UpdateProctorState(ctx context.Context, s *model.ExamSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET violations = $1, integrity_score = $2, status = $3,
		     suspicious = $4, snapshots = $5, termination_reason = $6,
		     finished_at = $7
		 WHERE id = $8`,
		s.Violations, s.IntegrityScore, s.Status, s.Suspicious, s.Snapshots,
		s.TerminationReason, s.FinishedAt, s.ID)
	return err
}

// UpdateProgress persists answering progress (answered set, flags, timing).
func (r *SessionRepository) UpdateProgress(ctx context.Context, s *model.ExamSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answered_questions = $1, flagged_questions = $2, time_spent = $3
		 WHERE id = $4`,
		s.AnsweredQuestions, s.FlaggedQuestions, s.TimeSpent, s.ID)
	return err
}

// Complete finalizes a session inside the caller's transaction so that the
// submission insert and the status flip commit together.
func (r *SessionRepository) Complete(ctx context.Context, tx pgx.Tx, s *model.ExamSession) error {
	_, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, finished_at = $2, integrity_score = $3, violations = $4
		 WHERE id = $5`,
		s.Status, s.FinishedAt, s.IntegrityScore, s.Violations, s.ID)
	return err
}

// Terminate marks a session terminated with a reason. Idempotent: already
// terminal sessions are left untouched.
func (r *SessionRepository) Terminate(ctx context.Context, id uuid.UUID, reason string) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, termination_reason = $2, finished_at = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		model.SessionStatusTerminated, reason, now, id,
		model.SessionStatusActive, model.SessionStatusSuspicious)
	return err
}

// ListExpired returns open sessions past their deadline plus the exam's
// grace period. Sessions inside the grace window are not returned; the
// sweeper finalizes what this yields.
func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE status IN ($2, $3)
		   AND ends_at + (SELECT make_interval(mins => grace_period_minutes)
		                  FROM exams WHERE exams.id = exam_sessions.exam_id) < $1
		 ORDER BY ends_at ASC
		 LIMIT $4`,
		now, model.SessionStatusActive, model.SessionStatusSuspicious, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByExam retrieves all sessions of an exam for the staff surface.
func (r *SessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1
		 ORDER BY started_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// StatsByExam aggregates session counts and mean integrity for the monitor.
func (r *SessionRepository) StatsByExam(ctx context.Context, examID uuid.UUID) (*ExamStats, error) {
	st := &ExamStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE status = $2),
		     COUNT(*) FILTER (WHERE status = $3),
		     COUNT(*) FILTER (WHERE status = $4),
		     COUNT(*) FILTER (WHERE status = $5),
		     COALESCE(AVG(integrity_score), 100)
		 FROM exam_sessions WHERE exam_id = $1`,
		examID,
		model.SessionStatusActive, model.SessionStatusCompleted,
		model.SessionStatusSuspicious, model.SessionStatusTerminated,
	).Scan(&st.Active, &st.Completed, &st.Suspicious, &st.Terminated, &st.MeanIntegrity)
	if err != nil {
		return nil, err
	}
	return st, nil
}

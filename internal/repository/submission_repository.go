package repository

import (
	"context"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository handles session answers and finalized submissions.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// UpsertAnswer stores or replaces the working answer for one question.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, sessionID uuid.UUID, a *model.SecureAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, answer, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, updated_at = now()`,
		sessionID, a.QuestionID, a)
	return err
}

// ListAnswers retrieves a session's working answers in question order.
func (r *SubmissionRepository) ListAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.SecureAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT answer FROM session_answers
		 WHERE session_id = $1
		 ORDER BY question_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.SecureAnswer
	for rows.Next() {
		var a model.SecureAnswer
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

const submissionColumns = `id, session_id, exam_id, student_id, branch_id, answers,
	submission_hash, client_submitted_at, server_received_at, violations,
	suspicious, integrity_score, auto_submitted, status, marks_obtained,
	percentage, letter_grade, passed, graded_at`

func scanSubmission(row interface{ Scan(dest ...any) error }) (*model.ExamSubmission, error) {
	sub := &model.ExamSubmission{}
	var letter *string
	err := row.Scan(&sub.ID, &sub.SessionID, &sub.ExamID, &sub.StudentID,
		&sub.BranchID, &sub.Answers, &sub.SubmissionHash, &sub.ClientSubmittedAt,
		&sub.ServerReceivedAt, &sub.Violations, &sub.Suspicious,
		&sub.IntegrityScore, &sub.AutoSubmitted, &sub.Status,
		&sub.MarksObtained, &sub.Percentage, &letter, &sub.Passed, &sub.GradedAt)
	if err != nil {
		return nil, err
	}
	if letter != nil {
		sub.LetterGrade = *letter
	}
	return sub, nil
}

// CreateWithSessionComplete inserts the submission and completes its session
// in one transaction. The sessions.Complete callback runs on the same tx so
// neither half can land alone.
func (r *SubmissionRepository) CreateWithSessionComplete(ctx context.Context, sub *model.ExamSubmission, complete func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO exam_submissions (id, session_id, exam_id, student_id,
		        branch_id, answers, submission_hash, client_submitted_at,
		        server_received_at, violations, suspicious, integrity_score,
		        auto_submitted, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sub.ID, sub.SessionID, sub.ExamID, sub.StudentID, sub.BranchID,
		sub.Answers, sub.SubmissionHash, sub.ClientSubmittedAt,
		sub.ServerReceivedAt, sub.Violations, sub.Suspicious,
		sub.IntegrityScore, sub.AutoSubmitted, sub.Status)
	if err != nil {
		return err
	}

	if err := complete(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSubmission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM exam_submissions WHERE id = $1`, id))
}

// GetBySession retrieves the submission created for a session, if any.
func (r *SubmissionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.ExamSubmission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM exam_submissions WHERE session_id = $1`, sessionID))
}

// UpdateGrading attaches the grading outcome, including per-answer results.
func (r *SubmissionRepository) UpdateGrading(ctx context.Context, sub *model.ExamSubmission) error {
	now := time.Now()
	sub.GradedAt = &now
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_submissions
		 SET answers = $1, status = $2, marks_obtained = $3, percentage = $4,
		     letter_grade = $5, passed = $6, graded_at = $7
		 WHERE id = $8`,
		sub.Answers, sub.Status, sub.MarksObtained, sub.Percentage,
		sub.LetterGrade, sub.Passed, sub.GradedAt, sub.ID)
	return err
}

// ListByExam retrieves all submissions of an exam for the staff surface.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSubmission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM exam_submissions
		 WHERE exam_id = $1
		 ORDER BY server_received_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.ExamSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

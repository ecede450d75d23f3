package repository

import (
	"context"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, branch_id, author_id, title, total_marks, passing_marks,
	duration_minutes, grace_period_minutes, scheduled_start, access_code_enc,
	key_id, security, status, created_at, updated_at`

func scanExam(row interface{ Scan(dest ...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.BranchID, &e.AuthorID, &e.Title, &e.TotalMarks,
		&e.PassingMarks, &e.DurationMinutes, &e.GracePeriodMinutes,
		&e.ScheduledStart, &e.AccessCodeEnc, &e.KeyID, &e.Security,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam and fills in the generated fields.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (branch_id, author_id, title, total_marks, passing_marks,
		        duration_minutes, grace_period_minutes, scheduled_start,
		        access_code_enc, key_id, security, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		e.BranchID, e.AuthorID, e.Title, e.TotalMarks, e.PassingMarks,
		e.DurationMinutes, e.GracePeriodMinutes, e.ScheduledStart,
		e.AccessCodeEnc, e.KeyID, e.Security, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update persists the full current state of an exam.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	e.UpdatedAt = time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, total_marks = $2, passing_marks = $3,
		     duration_minutes = $4, grace_period_minutes = $5,
		     scheduled_start = $6, access_code_enc = $7, key_id = $8,
		     security = $9, status = $10, updated_at = $11
		 WHERE id = $12`,
		e.Title, e.TotalMarks, e.PassingMarks, e.DurationMinutes,
		e.GracePeriodMinutes, e.ScheduledStart, e.AccessCodeEnc, e.KeyID,
		e.Security, e.Status, e.UpdatedAt, e.ID)
	return err
}

// UpdateStatus transitions an exam's lifecycle status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = now() WHERE id = $2`,
		status, id)
	return err
}

// ListByBranch retrieves exams for one branch, newest first.
func (r *ExamRepository) ListByBranch(ctx context.Context, branchID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE branch_id = $1`, branchID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams
		 WHERE branch_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, branchID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

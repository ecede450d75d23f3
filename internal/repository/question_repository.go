package repository

import (
	"context"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles exam question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, exam_id, question_text, question_type, marks, options,
	answer_enc, key_id, difficulty, tags, time_limit_seconds, randomize_options, position`

func scanQuestion(row interface{ Scan(dest ...any) error }) (*model.Question, error) {
	q := &model.Question{}
	var difficulty, keyID *string
	err := row.Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &q.Marks, &q.Options,
		&q.AnswerEnc, &keyID, &difficulty, &q.Tags, &q.TimeLimitSeconds,
		&q.RandomizeOptions, &q.Position)
	if err != nil {
		return nil, err
	}
	if keyID != nil {
		q.KeyID = *keyID
	}
	if difficulty != nil {
		q.Difficulty = *difficulty
	}
	return q, nil
}

// ListByExam retrieves all questions of an exam ordered by position.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM exam_questions
		 WHERE exam_id = $1
		 ORDER BY position ASC, id ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// ReplaceAll atomically swaps an exam's question set. Question IDs change on
// every replace; published exams are guarded at the service layer.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM exam_questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"id", "exam_id", "question_text", "question_type", "marks",
			"options", "answer_enc", "key_id", "difficulty", "tags",
			"time_limit_seconds", "randomize_options", "position"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.ID, q.ExamID, q.Text, q.Type, q.Marks, q.Options,
				q.AnswerEnc, q.KeyID, q.Difficulty, q.Tags,
				q.TimeLimitSeconds, q.RandomizeOptions, q.Position}, nil
		}))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CountByExam returns how many questions an exam has.
func (r *QuestionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_questions WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}

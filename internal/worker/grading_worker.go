package worker

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/secrets"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	GradingPollTimeout  = 1 * time.Second
	maxGradingAttempts  = 5
	gradingAttemptTTL   = 1 * time.Hour
	gradingRetryBackoff = 2 * time.Second
)

// GradingWorker grades queued submissions in the background. Objective
// question types are auto-graded against the decrypted answer keys; essay and
// coding answers are routed to manual review. Run several instances for
// parallelism; the queue serializes handout.
type GradingWorker struct {
	subs    *repository.SubmissionRepository
	exams   *service.ExamService
	secrets *secrets.Manager
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewGradingWorker creates a new GradingWorker.
func NewGradingWorker(
	subs *repository.SubmissionRepository,
	exams *service.ExamService,
	sm *secrets.Manager,
	rdb *redis.Client,
	log zerolog.Logger,
) *GradingWorker {
	return &GradingWorker{
		subs:    subs,
		exams:   exams,
		secrets: sm,
		rdb:     rdb,
		log:     log.With().Str("component", "grading_worker").Logger(),
	}
}

// Start runs the grading loop until ctx is cancelled.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, GradingPollTimeout, config.WorkerKey.GradingQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
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

		id, err := uuid.Parse(result[1])
		if err != nil {
			w.log.Error().Str("data", result[1]).Msg("Discarding malformed submission ID")
			continue
		}

		if err := w.grade(ctx, id); err != nil {
			w.retry(ctx, id, err)
		}
	}
}

// grade loads, grades, and stores one submission. Idempotent: a submission
// that already left pending is skipped, so a retried queue entry is harmless.
func (w *GradingWorker) grade(ctx context.Context, id uuid.UUID) error {
	sub, err := w.subs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != model.GradePending {
		w.log.Debug().Str("submission_id", id.String()).Msg("already graded, skipping")
		return nil
	}

	exam, err := w.exams.GetExam(ctx, sub.ExamID)
	if err != nil {
		return err
	}
	questions, err := w.exams.GetQuestions(ctx, sub.ExamID)
	if err != nil {
		return err
	}
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID.String()] = &questions[i]
	}

	var total float64
	review := false
	for i := range sub.Answers {
		w.gradeAnswer(&sub.Answers[i], byID[sub.Answers[i].QuestionID])
		total += sub.Answers[i].MarksAwarded
		review = review || sub.Answers[i].ReviewRequired
	}

	sub.MarksObtained = total
	if exam.TotalMarks > 0 {
		sub.Percentage = total / exam.TotalMarks * 100
	}
	sub.LetterGrade = letterGrade(sub.Percentage)
	sub.Passed = total >= exam.PassingMarks
	sub.Status = model.GradeGraded
	if review {
		sub.Status = model.GradeUnderReview
	}

	if err := w.subs.UpdateGrading(ctx, sub); err != nil {
		return err
	}

	w.log.Info().
		Str("submission_id", id.String()).
		Float64("marks", total).
		Str("status", string(sub.Status)).
		Msg("submission graded")
	return nil
}

func (w *GradingWorker) gradeAnswer(a *model.SecureAnswer, q *model.Question) {
	if q == nil {
		a.MarksAwarded = 0
		a.ReviewRequired = true
		a.GradingNote = "question no longer exists"
		return
	}

	if !q.Type.Objective() {
		a.ReviewRequired = true
		a.GradingNote = "manual grading required"
		return
	}

	if len(q.AnswerEnc) == 0 {
		a.MarksAwarded = 0
		a.ReviewRequired = true
		a.GradingNote = "no answer key configured"
		return
	}
	key, err := w.secrets.Decrypt(q.KeyID, q.AnswerEnc)
	if err != nil {
		a.MarksAwarded = 0
		a.ReviewRequired = true
		a.GradingNote = "answer key could not be opened"
		w.log.Error().Err(err).Str("question_id", a.QuestionID).Msg("answer key decrypt failed")
		return
	}

	var correct bool
	switch q.Type {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeMatching:
		// Key format: expected option IDs joined by commas.
		correct = sameOptionSet(strings.Split(string(key), ","), a.SelectedOptions)
	default:
		correct = strings.EqualFold(
			strings.TrimSpace(a.Text),
			strings.TrimSpace(string(key)))
	}

	a.Correct = &correct
	if correct {
		a.MarksAwarded = q.Marks
	}
}

// retry requeues a submission after a transient failure, up to the attempt
// cap. Exhausted submissions stay pending for operator intervention.
func (w *GradingWorker) retry(ctx context.Context, id uuid.UUID, cause error) {
	key := config.CacheKey.GradingAttemptsKey(id.String())
	attempts, err := w.rdb.Incr(ctx, key).Result()
	if err != nil {
		w.log.Error().Err(err).Str("submission_id", id.String()).Msg("attempt counter failed")
		attempts = maxGradingAttempts
	}
	w.rdb.Expire(ctx, key, gradingAttemptTTL)

	if attempts >= maxGradingAttempts {
		w.log.Error().Err(cause).
			Str("submission_id", id.String()).
			Int64("attempts", attempts).
			Msg("CRITICAL: grading retries exhausted, submission left pending")
		return
	}

	w.log.Warn().Err(cause).
		Str("submission_id", id.String()).
		Int64("attempt", attempts).
		Msg("grading failed, requeueing")
	time.Sleep(gradingRetryBackoff)
	if err := w.rdb.RPush(ctx, config.WorkerKey.GradingQueue, id.String()).Err(); err != nil {
		w.log.Error().Err(err).Str("submission_id", id.String()).Msg("requeue failed")
	}
}

// sameOptionSet compares two option ID lists ignoring order, duplicates, and
// surrounding whitespace.
func sameOptionSet(expected, got []string) bool {
	norm := func(in []string) []string {
		seen := make(map[string]struct{}, len(in))
		out := make([]string, 0, len(in))
		for _, s := range in {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		sort.Strings(out)
		return out
	}

	a, b := norm(expected), norm(got)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func letterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

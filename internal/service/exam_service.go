package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/secrets"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// examCacheTTL bounds staleness of the Redis exam payload cache. Writes
// invalidate eagerly; the TTL only covers missed invalidations.
const examCacheTTL = 5 * time.Minute

// examCacheEnvelope carries the sealed fields that the exam's own JSON form
// hides. The access code stays ciphertext inside Redis too.
type examCacheEnvelope struct {
	Exam          model.Exam `json:"exam"`
	AccessCodeEnc []byte     `json:"access_code_enc"`
	KeyID         string     `json:"key_id"`
}

// ExamService handles the staff-facing exam lifecycle: authoring, question
// management, publication. All secret fields cross the secrets boundary here.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	secrets      *secrets.Manager
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	sm *secrets.Manager,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		secrets:      sm,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// CreateExam creates a draft exam. The access code is sealed with the active
// keyring entry before it touches storage.
func (s *ExamService) CreateExam(ctx context.Context, branchID uuid.UUID, authorID string, req *model.CreateExamRequest) (*model.Exam, error) {
	keyID := s.secrets.ActiveKeyID()
	sealed, err := s.secrets.Encrypt(keyID, []byte(req.AccessCode))
	if err != nil {
		return nil, fmt.Errorf("seal access code: %w", err)
	}

	exam := &model.Exam{
		BranchID:           branchID,
		AuthorID:           authorID,
		Title:              req.Title,
		TotalMarks:         req.TotalMarks,
		PassingMarks:       req.PassingMarks,
		DurationMinutes:    req.DurationMinutes,
		GracePeriodMinutes: req.GracePeriodMinutes,
		ScheduledStart:     req.ScheduledStart,
		AccessCodeEnc:      sealed,
		KeyID:              keyID,
		Security:           req.Security,
		Status:             model.ExamStatusDraft,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// UpdateExam applies a partial update to a draft exam. Published exams are
// immutable except through Archive; students may already hold their payload.
func (s *ExamService) UpdateExam(ctx context.Context, examID uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.TotalMarks != nil {
		exam.TotalMarks = *req.TotalMarks
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.GracePeriodMinutes != nil {
		exam.GracePeriodMinutes = *req.GracePeriodMinutes
	}
	if req.ScheduledStart != nil {
		exam.ScheduledStart = *req.ScheduledStart
	}
	if req.Security != nil {
		exam.Security = *req.Security
	}
	if req.AccessCode != nil {
		keyID := s.secrets.ActiveKeyID()
		sealed, err := s.secrets.Encrypt(keyID, []byte(*req.AccessCode))
		if err != nil {
			return nil, fmt.Errorf("seal access code: %w", err)
		}
		exam.AccessCodeEnc = sealed
		exam.KeyID = keyID
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	s.invalidateCache(ctx, examID)
	return exam, nil
}

// ReplaceQuestions swaps a draft exam's full question set. Answer keys are
// encrypted with the active keyring entry; plaintext never reaches storage.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	keyID := s.secrets.ActiveKeyID()
	questions := make([]model.Question, 0, len(req.Questions))
	for i, qr := range req.Questions {
		q := model.Question{
			ID:               uuid.New(),
			ExamID:           examID,
			Text:             qr.Text,
			Type:             model.QuestionType(qr.Type),
			Marks:            qr.Marks,
			Options:          qr.Options,
			Difficulty:       qr.Difficulty,
			Tags:             qr.Tags,
			TimeLimitSeconds: qr.TimeLimitSeconds,
			RandomizeOptions: qr.RandomizeOptions,
			Position:         qr.Position,
		}
		if q.Position == 0 {
			q.Position = i + 1
		}
		if qr.Answer != "" {
			sealed, err := s.secrets.Encrypt(keyID, []byte(qr.Answer))
			if err != nil {
				return nil, fmt.Errorf("seal answer key: %w", err)
			}
			q.AnswerEnc = sealed
			q.KeyID = keyID
		}
		questions = append(questions, q)
	}

	if err := s.questionRepo.ReplaceAll(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	s.invalidateCache(ctx, examID)
	return questions, nil
}

// Publish transitions a draft exam to PUBLISHED and prewarms its Redis
// payload so the first wave of session starts skips the database.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	n, err := s.questionRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if n == 0 {
		return nil, ErrNoQuestions
	}

	exam.Status = model.ExamStatusPublished
	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}
	s.prewarmCache(ctx, exam)
	return exam, nil
}

// Archive retires a published exam. Idempotent.
func (s *ExamService) Archive(ctx context.Context, examID uuid.UUID) error {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return err
	}
	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusArchived); err != nil {
		return fmt.Errorf("archive exam: %w", err)
	}
	s.invalidateCache(ctx, examID)
	return nil
}

// GetExam retrieves an exam, preferring the Redis payload cache.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var env examCacheEnvelope
		if jsonErr := json.Unmarshal([]byte(raw), &env); jsonErr == nil {
			env.Exam.AccessCodeEnc = env.AccessCodeEnc
			env.Exam.KeyID = env.KeyID
			return &env.Exam, nil
		}
		// Corrupt cache entry, fall through to the database.
		s.rdb.Del(ctx, key)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	s.prewarmCache(ctx, exam)
	return exam, nil
}

// GetQuestions retrieves an exam's full question set, answer keys included.
// Callers outside grading must strip secrets before anything leaves process.
func (s *ExamService) GetQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// ListExams retrieves a branch's exams for the staff surface.
func (s *ExamService) ListExams(ctx context.Context, branchID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListByBranch(ctx, branchID, limit, offset)
}

// DecryptAccessCode opens an exam's sealed access code for comparison.
func (s *ExamService) DecryptAccessCode(exam *model.Exam) ([]byte, error) {
	return s.secrets.Decrypt(exam.KeyID, exam.AccessCodeEnc)
}

// SecurityConfig returns just the exam's security settings. The event
// ingestion path calls this on every telemetry report, so it is served from
// the small dedicated cache blob when possible.
func (s *ExamService) SecurityConfig(ctx context.Context, examID uuid.UUID) (*model.ExamSecurity, error) {
	key := config.CacheKey.ExamSecurityKey(examID.String())
	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var sec model.ExamSecurity
		if jsonErr := json.Unmarshal([]byte(raw), &sec); jsonErr == nil {
			return &sec, nil
		}
		s.rdb.Del(ctx, key)
	}

	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return &exam.Security, nil
}

// prewarmCache stores the exam payload and its security config separately so
// the collector's hot path can fetch only the small security blob.
func (s *ExamService) prewarmCache(ctx context.Context, exam *model.Exam) {
	id := exam.ID.String()

	env := examCacheEnvelope{Exam: *exam, AccessCodeEnc: exam.AccessCodeEnc, KeyID: exam.KeyID}
	if raw, err := json.Marshal(env); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(id), raw, examCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("failed to cache exam payload")
		}
	}
	if raw, err := json.Marshal(exam.Security); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.ExamSecurityKey(id), raw, examCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("failed to cache exam security config")
		}
	}
}

func (s *ExamService) invalidateCache(ctx context.Context, examID uuid.UUID) {
	id := examID.String()
	s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(id), config.CacheKey.ExamSecurityKey(id))
}

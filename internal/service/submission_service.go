package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/integrity"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/registry"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// answerCacheTTL keeps the Redis answer mirror alive for the length of the
// longest plausible session plus slack. Postgres stays the source of truth.
const answerCacheTTL = 12 * time.Hour

// SubmissionService handles answer upserts, the final submission pipeline,
// and the staff review surface built on top of both.
type SubmissionService struct {
	sessions       *SessionService
	exams          *ExamService
	sessionRepo    *repository.SessionRepository
	submissionRepo *repository.SubmissionRepository
	eventRepo      *repository.EventRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	sessions *SessionService,
	exams *ExamService,
	sessionRepo *repository.SessionRepository,
	submissionRepo *repository.SubmissionRepository,
	eventRepo *repository.EventRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		sessions:       sessions,
		exams:          exams,
		sessionRepo:    sessionRepo,
		submissionRepo: submissionRepo,
		eventRepo:      eventRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "submission_service").Logger(),
	}
}

// SubmitAnswer upserts one working answer under the session lock. The answer
// is hashed at receipt; the hash travels with the answer into the final
// submission so later tampering is detectable.
func (s *SubmissionService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, req *model.SubmitAnswerRequest) (*model.SecureAnswer, error) {
	var out *model.SecureAnswer
	err := s.sessions.WithSession(ctx, sessionID, func(e *registry.Entry) error {
		if !e.Session.Status.Mutable() {
			return ErrSessionFinalized
		}
		if !inOrder(e.Session.QuestionOrder, req.QuestionID) {
			return ErrQuestionNotInExam
		}

		answer := model.SecureAnswer{
			QuestionID:       req.QuestionID,
			Text:             req.Text,
			SelectedOptions:  req.SelectedOptions,
			Code:             req.Code,
			TimeSpentSeconds: req.TimeSpentSeconds,
		}
		hash, err := integrity.AnswerHash(answer)
		if err != nil {
			return fmt.Errorf("hash answer: %w", err)
		}
		answer.Hash = hash

		if err := s.submissionRepo.UpsertAnswer(ctx, sessionID, &answer); err != nil {
			return fmt.Errorf("store answer: %w", err)
		}

		next := *e.Session
		if !next.Answered(req.QuestionID) {
			next.AnsweredQuestions = append(append([]string{}, next.AnsweredQuestions...), req.QuestionID)
		}
		next.FlaggedQuestions = updateFlag(next.FlaggedQuestions, req.QuestionID, req.Flagged)
		spent := make(map[string]int, len(next.TimeSpent)+1)
		for k, v := range next.TimeSpent {
			spent[k] = v
		}
		spent[req.QuestionID] = req.TimeSpentSeconds
		next.TimeSpent = spent

		if err := s.sessionRepo.UpdateProgress(ctx, &next); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		*e.Session = next

		s.mirrorAnswer(ctx, sessionID, &answer)
		out = &answer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitExam finalizes a session: collects the stored answers, computes the
// integrity score and the submission hash, and commits the submission
// together with the session's COMPLETED flip. Grading runs in background.
func (s *SubmissionService) SubmitExam(ctx context.Context, sessionID uuid.UUID, req *model.SubmitExamRequest) (*model.SubmitExamResponse, error) {
	var resp *model.SubmitExamResponse
	err := s.sessions.WithSession(ctx, sessionID, func(e *registry.Entry) error {
		switch e.Session.Status {
		case model.SessionStatusCompleted:
			return ErrAlreadyCompleted
		case model.SessionStatusTerminated:
			return ErrSessionTerminated
		}

		answers, err := s.submissionRepo.ListAnswers(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("collect answers: %w", err)
		}
		sortAnswers(answers)

		now := time.Now()
		score := integrity.Score(e.Session.Violations, len(e.Session.Suspicious))

		sub := &model.ExamSubmission{
			ID:                uuid.New(),
			SessionID:         sessionID,
			ExamID:            e.Session.ExamID,
			StudentID:         e.Session.StudentID,
			BranchID:          e.Session.BranchID,
			Answers:           answers,
			ClientSubmittedAt: req.ClientSubmittedAt,
			ServerReceivedAt:  now,
			Violations:        e.Session.Violations,
			Suspicious:        e.Session.Suspicious,
			IntegrityScore:    score,
			AutoSubmitted:     req.AutoSubmitted,
			Status:            model.GradePending,
		}

		hash, err := integrity.SubmissionHash(*sub)
		if err != nil {
			return fmt.Errorf("hash submission: %w", err)
		}
		sub.SubmissionHash = hash

		err = s.submissionRepo.CreateWithSessionComplete(ctx, sub, func(tx pgx.Tx) error {
			done := *e.Session
			done.Status = model.SessionStatusCompleted
			done.FinishedAt = &now
			done.IntegrityScore = score
			return s.sessionRepo.Complete(ctx, tx, &done)
		})
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateSubmission
			}
			return fmt.Errorf("commit submission: %w", err)
		}

		e.Session.Status = model.SessionStatusCompleted
		e.Session.FinishedAt = &now
		e.Session.IntegrityScore = score

		s.enqueueGrading(ctx, sub.ID)
		s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID.String()))

		s.log.Info().
			Str("submission_id", sub.ID.String()).
			Str("session_id", sessionID.String()).
			Float64("integrity_score", score).
			Bool("auto_submitted", req.AutoSubmitted).
			Msg("exam submitted")

		resp = &model.SubmitExamResponse{
			SubmissionID:   sub.ID,
			IntegrityScore: score,
			Status:         model.GradePending,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ForceSubmit finalizes an expired session on the student's behalf. Used by
// the deadline sweeper for exams configured to auto-submit.
func (s *SubmissionService) ForceSubmit(ctx context.Context, sessionID uuid.UUID) (*model.SubmitExamResponse, error) {
	return s.SubmitExam(ctx, sessionID, &model.SubmitExamRequest{AutoSubmitted: true})
}

// VerifyIntegrity recomputes a stored submission's hash chain and reports
// anything that no longer matches.
func (s *SubmissionService) VerifyIntegrity(ctx context.Context, submissionID uuid.UUID) (*IntegrityCheck, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	check := &IntegrityCheck{SubmissionID: submissionID, Valid: true}

	ok, err := integrity.VerifySubmission(*sub, sub.SubmissionHash)
	if err != nil {
		return nil, fmt.Errorf("verify submission hash: %w", err)
	}
	if !ok {
		check.Valid = false
		check.Findings = append(check.Findings, "submission hash mismatch")
	}

	for _, a := range sub.Answers {
		expected := a.Hash
		bare := a
		bare.Hash = ""
		got, err := integrity.AnswerHash(bare)
		if err != nil {
			return nil, fmt.Errorf("verify answer hash: %w", err)
		}
		if got != expected {
			check.Valid = false
			check.Findings = append(check.Findings,
				fmt.Sprintf("answer hash mismatch for question %s", a.QuestionID))
		}
	}
	return check, nil
}

// IntegrityCheck is the result of re-verifying a submission's hashes.
type IntegrityCheck struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Valid        bool      `json:"valid"`
	Findings     []string  `json:"findings,omitempty"`
}

// IntegrityReport builds the staff review summary for one exam-student pair:
// session standing, the persisted event log, and the submission outcome if
// the student already submitted.
func (s *SubmissionService) IntegrityReport(ctx context.Context, examID uuid.UUID, studentID string) (*model.IntegrityReport, error) {
	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	events, err := s.eventRepo.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}

	sub, err := s.submissionRepo.GetBySession(ctx, sess.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	return buildIntegrityReport(sess, events, sub), nil
}

// buildIntegrityReport assembles the report from already-loaded state.
func buildIntegrityReport(sess *model.ExamSession, events []model.ProctorEvent, sub *model.ExamSubmission) *model.IntegrityReport {
	report := &model.IntegrityReport{
		ExamID:          sess.ExamID,
		StudentID:       sess.StudentID,
		Score:           sess.IntegrityScore,
		ConfidenceLevel: integrity.Confidence(sess.Violations, len(sess.Suspicious)),
		ViolationCounts: sess.Violations,
		SuspiciousCount: len(sess.Suspicious),
		SessionStatus:   sess.Status,
		Events:          events,
	}
	if sub != nil {
		report.SubmissionID = &sub.ID
		report.GradeStatus = sub.Status
	}

	if sess.IntegrityScore < 50 {
		report.ReviewReasons = append(report.ReviewReasons, "integrity score below 50")
	}
	if len(sess.Suspicious) >= 3 {
		report.ReviewReasons = append(report.ReviewReasons, "repeated suspicious activity")
	}
	if sess.Status == model.SessionStatusTerminated {
		report.ReviewReasons = append(report.ReviewReasons, "session was terminated")
	}
	report.ReviewRequired = len(report.ReviewReasons) > 0
	return report
}

// GetSubmission retrieves a submission for the staff surface.
func (s *SubmissionService) GetSubmission(ctx context.Context, id uuid.UUID) (*model.ExamSubmission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions retrieves all submissions of an exam.
func (s *SubmissionService) ListSubmissions(ctx context.Context, examID uuid.UUID) ([]model.ExamSubmission, error) {
	return s.submissionRepo.ListByExam(ctx, examID)
}

// mirrorAnswer keeps a Redis copy of the latest answers so a crashed client
// can recover its draft quickly. Best effort only.
func (s *SubmissionService) mirrorAnswer(ctx context.Context, sessionID uuid.UUID, a *model.SecureAnswer) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	if err := s.rdb.HSet(ctx, key, a.QuestionID, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("answer mirror failed")
		return
	}
	s.rdb.Expire(ctx, key, answerCacheTTL)
}

func (s *SubmissionService) enqueueGrading(ctx context.Context, submissionID uuid.UUID) {
	if err := s.rdb.RPush(ctx, config.WorkerKey.GradingQueue, submissionID.String()).Err(); err != nil {
		s.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("enqueue grading")
	}
}

func inOrder(order []string, questionID string) bool {
	for _, id := range order {
		if id == questionID {
			return true
		}
	}
	return false
}

func updateFlag(flags []string, questionID string, flagged bool) []string {
	out := make([]string, 0, len(flags)+1)
	for _, id := range flags {
		if id != questionID {
			out = append(out, id)
		}
	}
	if flagged {
		out = append(out, questionID)
	}
	return out
}

func sortAnswers(answers []model.SecureAnswer) {
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionID < answers[j].QuestionID
	})
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/registry"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/selector"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionStartResult is everything the exam client needs to begin: the
// session, its token, the delivered questions, and the exam settings.
type SessionStartResult struct {
	Session   *model.ExamSession        `json:"session"`
	Token     string                    `json:"token"`
	Questions []model.DeliveredQuestion `json:"questions"`
	Settings  model.ExamSettings        `json:"settings"`
	Resumed   bool                      `json:"resumed"`
}

// SessionService owns the exam session lifecycle and the live session
// registry. All mutating access to a session funnels through WithSession.
type SessionService struct {
	exams       *ExamService
	sessionRepo *repository.SessionRepository
	tokens      *TokenService
	store       *registry.Store
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	exams *ExamService,
	sessionRepo *repository.SessionRepository,
	tokens *TokenService,
	store *registry.Store,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		exams:       exams,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		store:       store,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// WithSession runs fn with the session's registry entry locked, loading the
// session from storage on first touch.
func (s *SessionService) WithSession(ctx context.Context, id uuid.UUID, fn func(*registry.Entry) error) error {
	return s.store.Do(ctx, id, func(ctx context.Context) (*model.ExamSession, error) {
		sess, err := s.sessionRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("load session: %w", err)
		}
		return sess, nil
	}, fn)
}

// StartSession starts a student's attempt at an exam, or resumes the existing
// one. Resume reissues the token and redelivers questions in the stored
// per-session order; a completed or terminated attempt is never restartable.
func (s *SessionService) StartSession(ctx context.Context, examID uuid.UUID, studentID string, client model.ClientInfo, req *model.StartSessionRequest) (*SessionStartResult, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	now := time.Now()
	if now.Before(exam.WindowStart()) || now.After(exam.WindowEnd()) {
		return nil, ErrOutsideWindow
	}

	code, err := s.exams.DecryptAccessCode(exam)
	if err != nil {
		return nil, fmt.Errorf("open access code: %w", err)
	}
	if subtle.ConstantTimeCompare(code, []byte(req.AccessCode)) != 1 {
		return nil, ErrInvalidAccessCode
	}

	existing, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if existing != nil {
		return s.resume(ctx, exam, existing)
	}

	client.DeviceID = req.DeviceID

	questions, err := s.exams.GetQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	session := &model.ExamSession{
		ID:                uuid.New(),
		ExamID:            examID,
		StudentID:         studentID,
		BranchID:          exam.BranchID,
		StartedAt:         now,
		EndsAt:            sessionDeadline(exam, now),
		Client:            client,
		Status:            model.SessionStatusActive,
		AnsweredQuestions: []string{},
		FlaggedQuestions:  []string{},
		TimeSpent:         map[string]int{},
		IntegrityScore:    100,
		Suspicious:        []model.SuspiciousActivity{},
	}
	session.QuestionOrder = selector.Order(exam, session.ID, questions)

	token, jti, err := s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	session.TokenID = jti

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent start for the same (exam, student) won the
			// uniqueness race; resume the winner's session instead.
			winner, lookErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
			if lookErr != nil {
				return nil, fmt.Errorf("recover concurrent start: %w", lookErr)
			}
			return s.resume(ctx, exam, winner)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", examID.String()).
		Str("student_id", studentID).
		Time("ends_at", session.EndsAt).
		Msg("session started")

	return &SessionStartResult{
		Session:   session,
		Token:     token,
		Questions: selector.Deliver(session.QuestionOrder, questions),
		Settings:  exam.Settings(),
	}, nil
}

// resume reissues a token for an open session and redelivers its questions in
// the stored order. The fresh JTI is pinned on the session, invalidating any
// previously issued token.
func (s *SessionService) resume(ctx context.Context, exam *model.Exam, session *model.ExamSession) (*SessionStartResult, error) {
	switch session.Status {
	case model.SessionStatusCompleted:
		return nil, ErrAlreadyCompleted
	case model.SessionStatusTerminated:
		return nil, ErrSessionTerminated
	}

	token, jti, err := s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateTokenID(ctx, session.ID, jti); err != nil {
		return nil, fmt.Errorf("update session token: %w", err)
	}
	session.TokenID = jti
	// Drop any stale registry copy that still carries the old token ID.
	s.store.Evict(session.ID)

	questions, err := s.exams.GetQuestions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("student_id", session.StudentID).
		Msg("session resumed")

	return &SessionStartResult{
		Session:   session,
		Token:     token,
		Questions: selector.Deliver(session.QuestionOrder, questions),
		Settings:  exam.Settings(),
		Resumed:   true,
	}, nil
}

// VerifySessionToken checks that claims still match the session's pinned
// token ID. Tokens invalidated by a resume fail here.
func (s *SessionService) VerifySessionToken(ctx context.Context, claims *SessionClaims) (*model.ExamSession, error) {
	var out *model.ExamSession
	err := s.WithSession(ctx, claims.SessionID, func(e *registry.Entry) error {
		if e.Session.TokenID != claims.ID ||
			e.Session.ExamID != claims.ExamID ||
			e.Session.StudentID != claims.StudentID {
			return ErrTokenMismatch
		}
		copied := *e.Session
		out = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Terminate forcibly ends a session. Idempotent: a session that is already
// terminal is left as is.
func (s *SessionService) Terminate(ctx context.Context, sessionID uuid.UUID, reason string) error {
	return s.WithSession(ctx, sessionID, func(e *registry.Entry) error {
		if e.Session.Status.Terminal() {
			return nil
		}
		if err := s.sessionRepo.Terminate(ctx, sessionID, reason); err != nil {
			return fmt.Errorf("terminate session: %w", err)
		}
		now := time.Now()
		e.Session.Status = model.SessionStatusTerminated
		e.Session.TerminationReason = &reason
		e.Session.FinishedAt = &now

		s.publishMonitorEvent(ctx, e.Session, "session_terminated", reason)
		s.log.Warn().
			Str("session_id", sessionID.String()).
			Str("reason", reason).
			Msg("session terminated")
		return nil
	})
}

// GetSession retrieves a session snapshot without touching the registry.
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions retrieves all sessions of an exam for the staff surface.
func (s *SessionService) ListSessions(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return s.sessionRepo.ListByExam(ctx, examID)
}

// publishMonitorEvent pushes a status-change notice onto the exam's monitor
// channel. Best effort; monitoring never blocks the session path.
func (s *SessionService) publishMonitorEvent(ctx context.Context, sess *model.ExamSession, kind, detail string) {
	raw, err := json.Marshal(&MonitorMessage{
		Kind:      kind,
		SessionID: sess.ID,
		StudentID: sess.StudentID,
		Detail:    detail,
		At:        time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(sess.ExamID.String()), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("monitor publish failed")
	}
}

// sessionDeadline computes when a session must end: start plus duration,
// clipped to the exam window so late joiners get the remaining time only.
func sessionDeadline(exam *model.Exam, startedAt time.Time) time.Time {
	deadline := startedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	if end := exam.WindowEnd(); deadline.After(end) {
		return end
	}
	return deadline
}

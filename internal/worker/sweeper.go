package worker

import (
	"context"
	"errors"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/rs/zerolog"
)

const sweepBatchLimit = 100

// sweepDue reports whether a session is past its deadline plus the exam's
// grace period. Sessions still inside the grace window stay open.
func sweepDue(sess *model.ExamSession, exam *model.Exam, now time.Time) bool {
	grace := time.Duration(exam.GracePeriodMinutes) * time.Minute
	return now.After(sess.EndsAt.Add(grace))
}

// Sweeper finalizes sessions whose deadline passed without a submission.
// Exams configured to auto-submit get a forced submission with whatever
// answers were saved; everything else is terminated.
type Sweeper struct {
	sessionRepo *repository.SessionRepository
	sessions    *service.SessionService
	submissions *service.SubmissionService
	exams       *service.ExamService
	interval    time.Duration
	log         zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	sessionRepo *repository.SessionRepository,
	sessions *service.SessionService,
	submissions *service.SubmissionService,
	exams *service.ExamService,
	interval time.Duration,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		sessionRepo: sessionRepo,
		sessions:    sessions,
		submissions: submissions,
		exams:       exams,
		interval:    interval,
		log:         log.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	expired, err := w.sessionRepo.ListExpired(ctx, now, sweepBatchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("list expired sessions")
		return
	}

	for i := range expired {
		sess := &expired[i]
		exam, err := w.exams.GetExam(ctx, sess.ExamID)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("load exam for expired session")
			continue
		}

		// Re-check against the freshly loaded exam: its grace period may
		// have been widened since the candidate query ran.
		if !sweepDue(sess, exam, now) {
			continue
		}

		if exam.Security.AutoSubmit {
			if _, err := w.submissions.ForceSubmit(ctx, sess.ID); err != nil {
				// Lost a race with the student's own submit: fine.
				if errors.Is(err, service.ErrAlreadyCompleted) || errors.Is(err, service.ErrSessionTerminated) {
					continue
				}
				w.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("auto-submit failed")
			} else {
				w.log.Info().Str("session_id", sess.ID.String()).Msg("expired session auto-submitted")
			}
			continue
		}

		if err := w.sessions.Terminate(ctx, sess.ID, "exam time expired"); err != nil {
			w.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("terminate expired session")
		} else {
			w.log.Info().
				Str("session_id", sess.ID.String()).
				Str("status", string(model.SessionStatusTerminated)).
				Msg("expired session terminated")
		}
	}
}

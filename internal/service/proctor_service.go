package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/integrity"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/registry"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventOutcome is what the exam client learns after reporting an event: the
// action taken and the session's current standing. Nothing more leaks.
type EventOutcome struct {
	Action         model.ProctorAction `json:"action"`
	IntegrityScore float64             `json:"integrity_score"`
	Status         model.SessionStatus `json:"status"`
}

// MonitorMessage is one frame on an exam's Redis monitor channel.
type MonitorMessage struct {
	Kind      string              `json:"kind"`
	SessionID uuid.UUID           `json:"session_id"`
	StudentID string              `json:"student_id"`
	Event     *model.ProctorEvent `json:"event,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	At        time.Time           `json:"at"`
}

// ProctorService ingests anti-cheating telemetry, keeps the per-session
// violation state, and applies the escalation policy.
type ProctorService struct {
	sessions    *SessionService
	exams       *ExamService
	sessionRepo *repository.SessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	sessions *SessionService,
	exams *ExamService,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		sessions:    sessions,
		exams:       exams,
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "proctor_service").Logger(),
	}
}

// RecordEvent applies one telemetry event to its session under the registry
// lock. Retries of the same client event ID return the originally decided
// action without a second count. The new state is persisted before it is
// applied to the live entry, so a storage failure leaves the counters as
// they were.
func (p *ProctorService) RecordEvent(ctx context.Context, sessionID uuid.UUID, req *model.RecordEventRequest) (*EventOutcome, error) {
	var outcome *EventOutcome
	err := p.sessions.WithSession(ctx, sessionID, func(e *registry.Entry) error {
		if e.Session.Status.Terminal() {
			return ErrSessionFinalized
		}

		if action, seen := e.EventAction(req.EventID); seen {
			outcome = &EventOutcome{
				Action:         action,
				IntegrityScore: e.Session.IntegrityScore,
				Status:         e.Session.Status,
			}
			return nil
		}

		security, err := p.exams.SecurityConfig(ctx, e.Session.ExamID)
		if err != nil {
			return err
		}

		now := time.Now()
		event := &model.ProctorEvent{
			ID:        uuid.New(),
			SessionID: sessionID,
			ExamID:    e.Session.ExamID,
			StudentID: e.Session.StudentID,
			EventID:   req.EventID,
			Type:      model.ProctorEventType(req.Type),
			Severity:  model.EventSeverity(req.Severity),
			Detail:    req.Detail,
			CreatedAt: now,
		}

		// Work on a copy; the entry is only touched after persistence.
		next := *e.Session
		applyEvent(&next, event, now)
		next.IntegrityScore = integrity.Score(next.Violations, len(next.Suspicious))

		action := decideAction(&next, event, security)
		switch action {
		case model.ActionWarn:
			if next.Status == model.SessionStatusActive {
				next.Status = model.SessionStatusSuspicious
			}
		case model.ActionTerminate:
			reason := fmt.Sprintf("tab switch limit exceeded (%d allowed)", security.MaxTabSwitches)
			next.Status = model.SessionStatusTerminated
			next.TerminationReason = &reason
			next.FinishedAt = &now
		}
		event.ActionTaken = action

		if err := p.sessionRepo.UpdateProctorState(ctx, &next); err != nil {
			return fmt.Errorf("persist proctor state: %w", err)
		}

		*e.Session = next
		e.RememberEvent(req.EventID, action)

		p.enqueueEvent(ctx, event)
		p.publish(ctx, event.ExamID, &MonitorMessage{
			Kind:      "proctor_event",
			SessionID: sessionID,
			StudentID: event.StudentID,
			Event:     event,
			At:        now,
		})
		if action == model.ActionTerminate {
			p.publish(ctx, event.ExamID, &MonitorMessage{
				Kind:      "session_terminated",
				SessionID: sessionID,
				StudentID: event.StudentID,
				Detail:    *next.TerminationReason,
				At:        now,
			})
			p.log.Warn().
				Str("session_id", sessionID.String()).
				Str("event_type", req.Type).
				Msg("session terminated by proctor policy")
		}

		outcome = &EventOutcome{
			Action:         action,
			IntegrityScore: next.IntegrityScore,
			Status:         next.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// decideAction applies the escalation policy to the post-event state: crossing
// the tab-switch limit terminates, dropping below the score floor warns, and
// everything else is just recorded. A high-severity event on its own does not
// warn; it lands in the suspicious log and moves the score instead.
func decideAction(next *model.ExamSession, event *model.ProctorEvent, security *model.ExamSecurity) model.ProctorAction {
	switch {
	case event.Type == model.EventTabSwitch &&
		next.Violations.TabSwitch > security.MaxTabSwitches:
		return model.ActionTerminate
	case next.IntegrityScore < integrity.ScoreFloor:
		return model.ActionWarn
	default:
		return model.ActionRecorded
	}
}

// applyEvent folds one event into the session's working state.
func applyEvent(s *model.ExamSession, event *model.ProctorEvent, now time.Time) {
	switch event.Type {
	case model.EventTabSwitch:
		s.Violations.TabSwitch++
	case model.EventWindowBlur:
		s.Violations.WindowBlur++
	case model.EventCopyAttempt:
		s.Violations.Copy++
	case model.EventPasteAttempt:
		s.Violations.Paste++
	case model.EventRightClick:
		s.Violations.RightClick++
	case model.EventWebcamSnapshot:
		// Snapshots carry a storage reference in the detail payload.
		var ref struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(event.Detail, &ref); err == nil && ref.URL != "" {
			s.Snapshots = append(s.Snapshots, ref.URL)
		}
	}

	if event.Severity == model.SeverityHigh || event.Severity == model.SeverityCritical {
		detail := ""
		if len(event.Detail) > 0 {
			detail = string(event.Detail)
		}
		s.Suspicious = append(s.Suspicious, model.SuspiciousActivity{
			EventID:  event.EventID,
			Type:     event.Type,
			Severity: event.Severity,
			Detail:   detail,
			At:       now,
		})
	}
}

// enqueueEvent hands the event to the persistence worker's Redis queue. The
// canonical escalation state is already durable on the session row; losing a
// queue push loses one audit log line, not a decision.
func (p *ProctorService) enqueueEvent(ctx context.Context, event *model.ProctorEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal proctor event")
		return
	}
	if err := p.rdb.RPush(ctx, config.WorkerKey.PersistEventsQueue, raw).Err(); err != nil {
		p.log.Error().Err(err).Str("session_id", event.SessionID.String()).Msg("enqueue proctor event")
	}
}

func (p *ProctorService) publish(ctx context.Context, examID uuid.UUID, msg *MonitorMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), raw).Err(); err != nil {
		p.log.Warn().Err(err).Msg("monitor publish failed")
	}
}

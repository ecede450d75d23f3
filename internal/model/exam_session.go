package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
//
// active → {completed, terminated, suspicious}
// suspicious → {completed, terminated}
// completed and terminated are terminal: no operation may mutate a session
// once it reaches either.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusSuspicious SessionStatus = "SUSPICIOUS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTerminated
}

// Mutable reports whether the session still accepts answers and events.
func (s SessionStatus) Mutable() bool {
	return s == SessionStatusActive || s == SessionStatusSuspicious
}

// ViolationCounts tallies proctor events by category, stored as jsonb.
type ViolationCounts struct {
	TabSwitch  int `json:"tab_switch"`
	WindowBlur int `json:"window_blur"`
	Copy       int `json:"copy"`
	Paste      int `json:"paste"`
	RightClick int `json:"right_click"`
}

// Total returns the sum of all violation counters.
func (v ViolationCounts) Total() int {
	return v.TabSwitch + v.WindowBlur + v.Copy + v.Paste + v.RightClick
}

// SuspiciousActivity records one high/critical proctor event kept on the
// session for staff review. Append-only.
type SuspiciousActivity struct {
	EventID  string           `json:"event_id"`
	Type     ProctorEventType `json:"type"`
	Severity EventSeverity    `json:"severity"`
	Detail   string           `json:"detail,omitempty"`
	At       time.Time        `json:"at"`
}

// ClientInfo is the client metadata captured on session start.
type ClientInfo struct {
	Address  string `json:"address,omitempty"`
	Agent    string `json:"agent,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// ExamSession is one student's timed attempt at one exam. It is exclusively
// owned by the session manager: the proctor collector and the submission
// pipeline mutate it only through manager operations, serialized per session.
// Sessions are retained as audit records after finalization.
type ExamSession struct {
	ID                uuid.UUID            `json:"id"`
	ExamID            uuid.UUID            `json:"exam_id"`
	StudentID         string               `json:"student_id"`
	BranchID          uuid.UUID            `json:"branch_id"`
	TokenID           string               `json:"-"`
	StartedAt         time.Time            `json:"started_at"`
	EndsAt            time.Time            `json:"ends_at"`
	FinishedAt        *time.Time           `json:"finished_at,omitempty"`
	Client            ClientInfo           `json:"client"`
	Status            SessionStatus        `json:"status"`
	Violations        ViolationCounts      `json:"violations"`
	AnsweredQuestions []string             `json:"answered_questions"`
	FlaggedQuestions  []string             `json:"flagged_questions"`
	TimeSpent         map[string]int       `json:"time_spent"`
	Snapshots         []string             `json:"snapshots,omitempty"`
	QuestionOrder     []string             `json:"question_order"`
	IntegrityScore    float64              `json:"integrity_score"`
	Suspicious        []SuspiciousActivity `json:"suspicious_activities"`
	TerminationReason *string              `json:"termination_reason,omitempty"`
}

// Answered reports whether the given question already has an answer.
func (s *ExamSession) Answered(questionID string) bool {
	for _, id := range s.AnsweredQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// StartSessionRequest is the payload for starting (or resuming) a session.
type StartSessionRequest struct {
	AccessCode string `json:"access_code" binding:"required,min=4,max=40"`
	DeviceID   string `json:"device_id" binding:"omitempty,max=128"`
}

// IntegrityReport is the staff-facing review summary for one (exam, student):
// the session's standing, its full event log, and the submission outcome if
// one exists.
type IntegrityReport struct {
	ExamID          uuid.UUID       `json:"exam_id"`
	StudentID       string          `json:"student_id"`
	Score           float64         `json:"score"`
	ConfidenceLevel string          `json:"confidence_level"`
	ViolationCounts ViolationCounts `json:"violation_counts"`
	SuspiciousCount int             `json:"suspicious_count"`
	SessionStatus   SessionStatus   `json:"session_status"`
	ReviewRequired  bool            `json:"review_required"`
	ReviewReasons   []string        `json:"review_reasons,omitempty"`
	Events          []ProctorEvent  `json:"events,omitempty"`
	SubmissionID    *uuid.UUID      `json:"submission_id,omitempty"`
	GradeStatus     GradeStatus     `json:"grade_status,omitempty"`
}

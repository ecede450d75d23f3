package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProctorEventType enumerates anti-cheating telemetry signals.
type ProctorEventType string

const (
	EventTabSwitch      ProctorEventType = "tab_switch"
	EventWindowBlur     ProctorEventType = "window_blur"
	EventCopyAttempt    ProctorEventType = "copy_attempt"
	EventPasteAttempt   ProctorEventType = "paste_attempt"
	EventRightClick     ProctorEventType = "right_click"
	EventFullscreenExit ProctorEventType = "fullscreen_exit"
	EventMultipleFaces  ProctorEventType = "multiple_faces"
	EventNoFace         ProctorEventType = "no_face"
	EventWebcamSnapshot ProctorEventType = "webcam_snapshot"
)

// EventSeverity grades how alarming a proctor event is.
type EventSeverity string

const (
	SeverityLow      EventSeverity = "low"
	SeverityMedium   EventSeverity = "medium"
	SeverityHigh     EventSeverity = "high"
	SeverityCritical EventSeverity = "critical"
)

// ProctorAction is the coarse outcome returned to the exam client after an
// event is recorded. Students never see internal detail beyond this.
type ProctorAction string

const (
	ActionRecorded  ProctorAction = "recorded"
	ActionWarn      ProctorAction = "warn"
	ActionTerminate ProctorAction = "terminate"
)

// ProctorEvent is a single telemetry record. Append-only: never mutated
// after creation. EventID is client-supplied and makes ingestion idempotent
// across retries.
type ProctorEvent struct {
	ID          uuid.UUID        `json:"id"`
	SessionID   uuid.UUID        `json:"session_id"`
	ExamID      uuid.UUID        `json:"exam_id"`
	StudentID   string           `json:"student_id"`
	EventID     string           `json:"event_id"`
	Type        ProctorEventType `json:"type"`
	Severity    EventSeverity    `json:"severity"`
	Detail      json.RawMessage  `json:"detail,omitempty"`
	ActionTaken ProctorAction    `json:"action_taken"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RecordEventRequest is the payload for reporting a proctor event.
type RecordEventRequest struct {
	EventID  string          `json:"event_id" binding:"required,min=1,max=64"`
	Type     string          `json:"type" binding:"required,oneof=tab_switch window_blur copy_attempt paste_attempt right_click fullscreen_exit multiple_faces no_face webcam_snapshot"`
	Severity string          `json:"severity" binding:"required,oneof=low medium high critical"`
	Detail   json.RawMessage `json:"detail" binding:"omitempty"`
}

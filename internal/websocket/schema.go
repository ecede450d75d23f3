package websocket

import (
	"encoding/json"

	"github.com/edukita/securexam-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionEvent  Action = "event"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSuccess   Event = "success"
	EventWarn      Event = "warn"
	EventTerminate Event = "terminate"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// AnswerResponse acknowledges one saved answer.
type AnswerResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Hash       string `json:"hash"`
}

// EventResponse carries the proctor outcome for a reported event.
type EventResponse struct {
	Event          Event               `json:"event"`
	Action         model.ProctorAction `json:"action"`
	IntegrityScore float64             `json:"integrity_score"`
	Status         model.SessionStatus `json:"status"`
}

// SubmittedResponse acknowledges the final submission.
type SubmittedResponse struct {
	Event          Event             `json:"event"`
	SubmissionID   string            `json:"submission_id"`
	IntegrityScore float64           `json:"integrity_score"`
	Status         model.GradeStatus `json:"status"`
}

// ErrorResponse reports a rejected action.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Event Event `json:"event"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// GradeStatus enumerates grading outcomes of a submission.
type GradeStatus string

const (
	GradePending     GradeStatus = "pending"
	GradeGraded      GradeStatus = "graded"
	GradeUnderReview GradeStatus = "under_review"
)

// SecureAnswer is one question's answer inside a submission. Hash covers the
// normalized answer fields (question ID, text, sorted selected options, code,
// time spent) so post-hoc tampering with a stored answer is detectable.
// Grading fields are attached by the grading engine after the hash is sealed
// and are excluded from it.
type SecureAnswer struct {
	QuestionID       string   `json:"question_id"`
	Text             string   `json:"text,omitempty"`
	SelectedOptions  []string `json:"selected_options,omitempty"`
	Code             string   `json:"code,omitempty"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
	Hash             string   `json:"hash"`

	// Grading outcome — excluded from the tamper-evidence hashes.
	MarksAwarded   float64 `json:"marks_awarded"`
	Correct        *bool   `json:"correct,omitempty"`
	ReviewRequired bool    `json:"review_required,omitempty"`
	GradingNote    string  `json:"grading_note,omitempty"`
}

// ExamSubmission is the finalized record of all answers for one completed
// session. Created exactly once per session; afterwards only the grading
// engine mutates it, and only to attach results.
type ExamSubmission struct {
	ID                uuid.UUID            `json:"id"`
	SessionID         uuid.UUID            `json:"session_id"`
	ExamID            uuid.UUID            `json:"exam_id"`
	StudentID         string               `json:"student_id"`
	BranchID          uuid.UUID            `json:"branch_id"`
	Answers           []SecureAnswer       `json:"answers"`
	SubmissionHash    string               `json:"submission_hash"`
	ClientSubmittedAt *time.Time           `json:"client_submitted_at,omitempty"`
	ServerReceivedAt  time.Time            `json:"server_received_at"`
	Violations        ViolationCounts      `json:"violations"`
	Suspicious        []SuspiciousActivity `json:"suspicious_activities,omitempty"`
	IntegrityScore    float64              `json:"integrity_score"`
	AutoSubmitted     bool                 `json:"auto_submitted"`

	// Grading outcome.
	Status        GradeStatus `json:"status"`
	MarksObtained float64     `json:"marks_obtained"`
	Percentage    float64     `json:"percentage"`
	LetterGrade   string      `json:"letter_grade,omitempty"`
	Passed        bool        `json:"passed"`
	GradedAt      *time.Time  `json:"graded_at,omitempty"`
}

// SubmitAnswerRequest is the payload for upserting one answer.
type SubmitAnswerRequest struct {
	QuestionID       string   `json:"question_id" binding:"required,uuid"`
	Text             string   `json:"text" binding:"omitempty,max=20000"`
	SelectedOptions  []string `json:"selected_options" binding:"omitempty,max=26"`
	Code             string   `json:"code" binding:"omitempty,max=100000"`
	TimeSpentSeconds int      `json:"time_spent_seconds" binding:"min=0"`
	Flagged          bool     `json:"flagged"`
}

// SubmitExamRequest is the payload for finalizing a session.
type SubmitExamRequest struct {
	AutoSubmitted     bool       `json:"auto_submitted"`
	ClientSubmittedAt *time.Time `json:"client_submitted_at" binding:"omitempty"`
}

// SubmitExamResponse is returned synchronously; grading runs in background.
type SubmitExamResponse struct {
	SubmissionID   uuid.UUID   `json:"submission_id"`
	IntegrityScore float64     `json:"integrity_score"`
	Status         GradeStatus `json:"status"`
}

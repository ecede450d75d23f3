package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
	QuestionTypeMatching       QuestionType = "matching"
	QuestionTypeCoding         QuestionType = "coding"
)

// Objective reports whether answers of this type can be graded automatically.
func (t QuestionType) Objective() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer,
		QuestionTypeFillBlank, QuestionTypeMatching:
		return true
	}
	return false
}

// Option is a single answer option presented to the student.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question represents a single exam question. The correct answer (option
// IDs, answer key, or coding test cases) is stored encrypted in AnswerEnc
// and never leaves the secrets boundary except inside grading and creation.
type Question struct {
	ID               uuid.UUID    `json:"id"`
	ExamID           uuid.UUID    `json:"exam_id"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"type"`
	Marks            float64      `json:"marks"`
	Options          []Option     `json:"options,omitempty"`
	AnswerEnc        []byte       `json:"-"`
	KeyID            string       `json:"-"`
	Difficulty       string       `json:"difficulty,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty"`
	RandomizeOptions bool         `json:"randomize_options"`
	Position         int          `json:"position"`
}

// DeliveredQuestion is a question as sent to the exam client: no answer key,
// no key ID, options possibly reshuffled per delivery.
type DeliveredQuestion struct {
	ID               uuid.UUID    `json:"id"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"type"`
	Marks            float64      `json:"marks"`
	Options          []Option     `json:"options,omitempty"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty"`
	Position         int          `json:"position"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
// Answer carries the plaintext answer key; it is encrypted before storage
// and never persisted in the clear.
type AddQuestionRequest struct {
	Text             string   `json:"text" binding:"required,min=1,max=4000"`
	Type             string   `json:"type" binding:"required,oneof=multiple_choice true_false short_answer essay fill_blank matching coding"`
	Marks            float64  `json:"marks" binding:"required,gt=0"`
	Options          []Option `json:"options" binding:"omitempty,dive"`
	Answer           string   `json:"answer" binding:"omitempty,max=8000"`
	Difficulty       string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Tags             []string `json:"tags" binding:"omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds" binding:"omitempty,min=0"`
	RandomizeOptions bool     `json:"randomize_options"`
	Position         int      `json:"position" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamSecurity is the per-exam proctoring configuration, stored as jsonb.
type ExamSecurity struct {
	MaxTabSwitches     int  `json:"max_tab_switches"`
	RequireWebcam      bool `json:"require_webcam"`
	RequireLockdown    bool `json:"require_lockdown"`
	RandomizeQuestions bool `json:"randomize_questions"`
	AutoSubmit         bool `json:"auto_submit"`
}

// Exam represents an exam entity. Secret fields (the access code) are held
// encrypted; KeyID records which keyring entry sealed them.
type Exam struct {
	ID                 uuid.UUID    `json:"id"`
	BranchID           uuid.UUID    `json:"branch_id"`
	AuthorID           string       `json:"author_id"`
	Title              string       `json:"title"`
	TotalMarks         float64      `json:"total_marks"`
	PassingMarks       float64      `json:"passing_marks"`
	DurationMinutes    int          `json:"duration_minutes"`
	GracePeriodMinutes int          `json:"grace_period_minutes"`
	ScheduledStart     time.Time    `json:"scheduled_start"`
	AccessCodeEnc      []byte       `json:"-"`
	KeyID              string       `json:"-"`
	Security           ExamSecurity `json:"security"`
	Status             ExamStatus   `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// WindowStart returns the earliest instant a session may start.
func (e *Exam) WindowStart() time.Time {
	return e.ScheduledStart.Add(-time.Duration(e.GracePeriodMinutes) * time.Minute)
}

// WindowEnd returns the latest instant a session may start or run.
func (e *Exam) WindowEnd() time.Time {
	return e.ScheduledStart.
		Add(time.Duration(e.DurationMinutes) * time.Minute).
		Add(time.Duration(e.GracePeriodMinutes) * time.Minute)
}

// ExamSettings is the subset of exam configuration delivered to the exam
// client on session start.
type ExamSettings struct {
	Title              string    `json:"title"`
	DurationMinutes    int       `json:"duration_minutes"`
	TotalMarks         float64   `json:"total_marks"`
	ScheduledStart     time.Time `json:"scheduled_start"`
	MaxTabSwitches     int       `json:"max_tab_switches"`
	RequireWebcam      bool      `json:"require_webcam"`
	RequireLockdown    bool      `json:"require_lockdown"`
	AutoSubmit         bool      `json:"auto_submit"`
	GracePeriodMinutes int       `json:"grace_period_minutes"`
}

// Settings builds the client-visible settings view of an exam.
func (e *Exam) Settings() ExamSettings {
	return ExamSettings{
		Title:              e.Title,
		DurationMinutes:    e.DurationMinutes,
		TotalMarks:         e.TotalMarks,
		ScheduledStart:     e.ScheduledStart,
		MaxTabSwitches:     e.Security.MaxTabSwitches,
		RequireWebcam:      e.Security.RequireWebcam,
		RequireLockdown:    e.Security.RequireLockdown,
		AutoSubmit:         e.Security.AutoSubmit,
		GracePeriodMinutes: e.GracePeriodMinutes,
	}
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title              string       `json:"title" binding:"required,min=3,max=255"`
	TotalMarks         float64      `json:"total_marks" binding:"required,gt=0"`
	PassingMarks       float64      `json:"passing_marks" binding:"required,gte=0,ltefield=TotalMarks"`
	DurationMinutes    int          `json:"duration_minutes" binding:"required,min=1,max=480"`
	GracePeriodMinutes int          `json:"grace_period_minutes" binding:"min=0,max=60"`
	ScheduledStart     time.Time    `json:"scheduled_start" binding:"required"`
	AccessCode         string       `json:"access_code" binding:"required,min=4,max=40"`
	Security           ExamSecurity `json:"security"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title              *string       `json:"title" binding:"omitempty,min=3,max=255"`
	TotalMarks         *float64      `json:"total_marks" binding:"omitempty,gt=0"`
	PassingMarks       *float64      `json:"passing_marks" binding:"omitempty,gte=0"`
	DurationMinutes    *int          `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	GracePeriodMinutes *int          `json:"grace_period_minutes" binding:"omitempty,min=0,max=60"`
	ScheduledStart     *time.Time    `json:"scheduled_start" binding:"omitempty"`
	AccessCode         *string       `json:"access_code" binding:"omitempty,min=4,max=40"`
	Security           *ExamSecurity `json:"security" binding:"omitempty"`
}

package service

import (
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func windowExam(start time.Time, durationMin, graceMin int) *model.Exam {
	return &model.Exam{
		ScheduledStart:     start,
		DurationMinutes:    durationMin,
		GracePeriodMinutes: graceMin,
	}
}

func TestSessionDeadlineGivesFullDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, 60, 10)

	// Starting on time leaves the whole duration available.
	deadline := sessionDeadline(exam, start)
	assert.Equal(t, start.Add(60*time.Minute), deadline)
}

func TestSessionDeadlineClipsToWindowEnd(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, 60, 10)

	// A student joining 30 minutes late only gets the remaining window.
	late := start.Add(30 * time.Minute)
	deadline := sessionDeadline(exam, late)
	assert.Equal(t, exam.WindowEnd(), deadline)
	assert.True(t, deadline.Before(late.Add(60*time.Minute)))
}

func TestExamWindowIncludesGracePeriod(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, 60, 10)

	assert.Equal(t, start.Add(-10*time.Minute), exam.WindowStart())
	assert.Equal(t, start.Add(70*time.Minute), exam.WindowEnd())
}

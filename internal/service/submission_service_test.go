package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInOrder(t *testing.T) {
	order := []string{"q1", "q2", "q3"}

	assert.True(t, inOrder(order, "q2"))
	assert.False(t, inOrder(order, "q9"))
	assert.False(t, inOrder(nil, "q1"))
}

func TestUpdateFlagAddsAndRemoves(t *testing.T) {
	flags := updateFlag(nil, "q1", true)
	assert.Equal(t, []string{"q1"}, flags)

	flags = updateFlag(flags, "q2", true)
	assert.Equal(t, []string{"q1", "q2"}, flags)

	// Flagging twice must not duplicate.
	flags = updateFlag(flags, "q1", true)
	assert.Equal(t, []string{"q2", "q1"}, flags)

	flags = updateFlag(flags, "q1", false)
	assert.Equal(t, []string{"q2"}, flags)

	// Unflagging something never flagged is a no-op.
	flags = updateFlag(flags, "q9", false)
	assert.Equal(t, []string{"q2"}, flags)
}

func TestSortAnswersOrdersByQuestionID(t *testing.T) {
	answers := []model.SecureAnswer{
		{QuestionID: "c"},
		{QuestionID: "a"},
		{QuestionID: "b"},
	}

	sortAnswers(answers)

	assert.Equal(t, "a", answers[0].QuestionID)
	assert.Equal(t, "b", answers[1].QuestionID)
	assert.Equal(t, "c", answers[2].QuestionID)
}

func TestBuildIntegrityReport(t *testing.T) {
	sess := &model.ExamSession{
		ID:             uuid.New(),
		ExamID:         uuid.New(),
		StudentID:      "student-4",
		Status:         model.SessionStatusSuspicious,
		IntegrityScore: 42,
		Violations:     model.ViolationCounts{TabSwitch: 4, Copy: 1},
		Suspicious: []model.SuspiciousActivity{
			{EventID: "e1"}, {EventID: "e2"}, {EventID: "e3"},
		},
	}
	events := []model.ProctorEvent{
		{EventID: "e1", Type: model.EventTabSwitch},
		{EventID: "e2", Type: model.EventCopyAttempt},
	}
	sub := &model.ExamSubmission{ID: uuid.New(), Status: model.GradeUnderReview}

	report := buildIntegrityReport(sess, events, sub)

	assert.Equal(t, sess.ExamID, report.ExamID)
	assert.Equal(t, "student-4", report.StudentID)
	assert.Equal(t, 42.0, report.Score)
	assert.Len(t, report.Events, 2)
	require.NotNil(t, report.SubmissionID)
	assert.Equal(t, sub.ID, *report.SubmissionID)
	assert.Equal(t, model.GradeUnderReview, report.GradeStatus)
	assert.True(t, report.ReviewRequired)
	assert.Contains(t, report.ReviewReasons, "integrity score below 50")
	assert.Contains(t, report.ReviewReasons, "repeated suspicious activity")
}

// A clean session with no submission yet yields a quiet report.
func TestBuildIntegrityReportNoSubmission(t *testing.T) {
	sess := &model.ExamSession{
		ID:             uuid.New(),
		ExamID:         uuid.New(),
		StudentID:      "student-5",
		Status:         model.SessionStatusActive,
		IntegrityScore: 100,
	}

	report := buildIntegrityReport(sess, nil, nil)

	assert.False(t, report.ReviewRequired)
	assert.Empty(t, report.ReviewReasons)
	assert.Nil(t, report.SubmissionID)
	assert.Empty(t, report.GradeStatus)
	assert.Empty(t, report.Events)
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	assert.True(t, isUniqueViolation(unique))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert submission: %w", unique)))

	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	assert.False(t, isUniqueViolation(nil))
}

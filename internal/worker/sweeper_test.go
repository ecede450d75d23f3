package worker

import (
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

// A session whose deadline passed is still left alone until the exam's
// grace period runs out; only then does the sweeper finalize it.
func TestSweepDueHonorsGracePeriod(t *testing.T) {
	endsAt := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	sess := &model.ExamSession{EndsAt: endsAt}
	exam := &model.Exam{GracePeriodMinutes: 5}

	assert.False(t, sweepDue(sess, exam, endsAt.Add(time.Minute)), "inside grace window")
	assert.False(t, sweepDue(sess, exam, endsAt.Add(5*time.Minute)), "exactly at grace boundary")
	assert.True(t, sweepDue(sess, exam, endsAt.Add(5*time.Minute+time.Second)), "past grace window")
}

func TestSweepDueZeroGrace(t *testing.T) {
	endsAt := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	sess := &model.ExamSession{EndsAt: endsAt}
	exam := &model.Exam{}

	assert.False(t, sweepDue(sess, exam, endsAt))
	assert.True(t, sweepDue(sess, exam, endsAt.Add(time.Second)))
}

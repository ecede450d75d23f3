package service

import (
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/integrity"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDecideActionTerminatesPastTabSwitchLimit(t *testing.T) {
	security := &model.ExamSecurity{MaxTabSwitches: 3}
	next := &model.ExamSession{
		Violations:     model.ViolationCounts{TabSwitch: 4},
		IntegrityScore: 80,
	}
	event := &model.ProctorEvent{Type: model.EventTabSwitch, Severity: model.SeverityMedium}

	assert.Equal(t, model.ActionTerminate, decideAction(next, event, security))

	next.Violations.TabSwitch = 3
	assert.Equal(t, model.ActionRecorded, decideAction(next, event, security),
		"at the limit is still allowed")
}

func TestDecideActionWarnsBelowScoreFloor(t *testing.T) {
	security := &model.ExamSecurity{MaxTabSwitches: 3}
	next := &model.ExamSession{IntegrityScore: integrity.ScoreFloor - 1}
	event := &model.ProctorEvent{Type: model.EventCopyAttempt, Severity: model.SeverityLow}

	assert.Equal(t, model.ActionWarn, decideAction(next, event, security))

	next.IntegrityScore = integrity.ScoreFloor
	assert.Equal(t, model.ActionRecorded, decideAction(next, event, security))
}

// High severity alone is logged and scored, never warned: the warn action is
// reserved for the score-floor escalation.
func TestDecideActionRecordsHighSeverityAboveFloor(t *testing.T) {
	security := &model.ExamSecurity{MaxTabSwitches: 3}
	next := &model.ExamSession{IntegrityScore: 85}

	for _, sev := range []model.EventSeverity{model.SeverityHigh, model.SeverityCritical} {
		event := &model.ProctorEvent{Type: model.EventCopyAttempt, Severity: sev}
		assert.Equal(t, model.ActionRecorded, decideAction(next, event, security),
			"severity %s", sev)
	}
}

// Termination takes precedence even when the score has already collapsed.
func TestDecideActionTerminateWinsOverWarn(t *testing.T) {
	security := &model.ExamSecurity{MaxTabSwitches: 1}
	next := &model.ExamSession{
		Violations:     model.ViolationCounts{TabSwitch: 2},
		IntegrityScore: 10,
	}
	event := &model.ProctorEvent{Type: model.EventTabSwitch, Severity: model.SeverityCritical}

	assert.Equal(t, model.ActionTerminate, decideAction(next, event, security))
}

func TestApplyEventLogsHighSeverityAsSuspicious(t *testing.T) {
	sess := &model.ExamSession{}
	now := time.Now()

	applyEvent(sess, &model.ProctorEvent{
		EventID:  "e1",
		Type:     model.EventCopyAttempt,
		Severity: model.SeverityHigh,
	}, now)

	assert.Equal(t, 1, sess.Violations.Copy)
	assert.Len(t, sess.Suspicious, 1)
	assert.Equal(t, "e1", sess.Suspicious[0].EventID)
}

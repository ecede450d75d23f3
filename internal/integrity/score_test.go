package integrity

import (
	"testing"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestScorePerfectSession(t *testing.T) {
	assert.Equal(t, 100.0, Score(model.ViolationCounts{}, 0))
}

func TestScoreFixedWeights(t *testing.T) {
	tests := []struct {
		name       string
		counts     model.ViolationCounts
		suspicious int
		want       float64
	}{
		{"one tab switch", model.ViolationCounts{TabSwitch: 1}, 0, 95},
		{"one window blur", model.ViolationCounts{WindowBlur: 1}, 0, 97},
		{"one copy attempt", model.ViolationCounts{Copy: 1}, 0, 90},
		{"one paste attempt", model.ViolationCounts{Paste: 1}, 0, 90},
		{"one right click", model.ViolationCounts{RightClick: 1}, 0, 98},
		{"one suspicious entry", model.ViolationCounts{}, 1, 85},
		{"copy plus critical event", model.ViolationCounts{Copy: 1}, 1, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.counts, tt.suspicious))
		})
	}
}

// The score must not depend on the order events were recorded in: only the
// final counters matter.
func TestScoreOrderIndependent(t *testing.T) {
	a := Score(model.ViolationCounts{Copy: 1}, 1)
	b := Score(model.ViolationCounts{Copy: 1}, 1)
	assert.Equal(t, a, b)
	assert.Equal(t, 75.0, a)
}

func TestScoreClampedToZero(t *testing.T) {
	got := Score(model.ViolationCounts{Copy: 20, Paste: 20}, 10)
	assert.Equal(t, 0.0, got)
}

// Score is non-increasing as any violation counter increases.
func TestScoreMonotonic(t *testing.T) {
	base := model.ViolationCounts{TabSwitch: 1, WindowBlur: 2, Copy: 1}
	prev := Score(base, 0)
	for i := 0; i < 30; i++ {
		base.TabSwitch++
		cur := Score(base, 0)
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, 100.0)
		prev = cur
	}
}

func TestConfidenceBands(t *testing.T) {
	assert.Equal(t, "low", Confidence(model.ViolationCounts{}, 0))
	assert.Equal(t, "low", Confidence(model.ViolationCounts{TabSwitch: 2}, 0))
	assert.Equal(t, "medium", Confidence(model.ViolationCounts{TabSwitch: 3}, 0))
	assert.Equal(t, "high", Confidence(model.ViolationCounts{TabSwitch: 8}, 2))
}

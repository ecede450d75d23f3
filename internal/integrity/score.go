// Package integrity computes the 0–100 trust score for an exam session and
// the tamper-evidence hashes sealing answers and submissions.
package integrity

import (
	"github.com/edukita/securexam-backend/internal/model"
)

// Violation weights. Global constants by decision: per-exam weights would
// make stored scores incomparable across a running exam. Only the tab-switch
// termination threshold is configured per exam.
const (
	weightTabSwitch  = 5
	weightWindowBlur = 3
	weightCopy       = 10
	weightPaste      = 10
	weightRightClick = 2
	weightSuspicious = 15

	// ScoreFloor is the score below which a session is flagged suspicious.
	ScoreFloor = 30
)

// Score maps violation counters and the suspicious-activity count to a trust
// score in [0,100]. Pure and deterministic: identical inputs always produce
// the identical score, regardless of the order events were recorded in.
func Score(v model.ViolationCounts, suspiciousCount int) float64 {
	score := 100 -
		weightTabSwitch*v.TabSwitch -
		weightWindowBlur*v.WindowBlur -
		weightCopy*v.Copy -
		weightPaste*v.Paste -
		weightRightClick*v.RightClick -
		weightSuspicious*suspiciousCount

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return float64(score)
}

// Confidence grades how much telemetry backs a score. Thin evidence (fewer
// than three signals) cannot support a confident judgement either way.
func Confidence(v model.ViolationCounts, suspiciousCount int) string {
	signals := v.Total() + suspiciousCount
	switch {
	case signals < 3:
		return "low"
	case signals < 10:
		return "medium"
	default:
		return "high"
	}
}

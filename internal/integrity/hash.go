package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
)

// answerCore is the hashed view of one answer: normalized input fields only.
// Grading outcome and the hash itself are excluded.
type answerCore struct {
	QuestionID       string   `json:"question_id"`
	Text             string   `json:"text,omitempty"`
	SelectedOptions  []string `json:"selected_options,omitempty"`
	Code             string   `json:"code,omitempty"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

// submissionCore is the hashed view of a submission: every field sealed at
// submit time. The hash field and the grading fields attached later by the
// grading engine are excluded, so grading does not break verification.
type submissionCore struct {
	SessionID         uuid.UUID                  `json:"session_id"`
	ExamID            uuid.UUID                  `json:"exam_id"`
	StudentID         string                     `json:"student_id"`
	BranchID          uuid.UUID                  `json:"branch_id"`
	Answers           []answerWithHash           `json:"answers"`
	ClientSubmittedAt *time.Time                 `json:"client_submitted_at,omitempty"`
	ServerReceivedAt  time.Time                  `json:"server_received_at"`
	Violations        model.ViolationCounts      `json:"violations"`
	Suspicious        []model.SuspiciousActivity `json:"suspicious_activities,omitempty"`
	IntegrityScore    float64                    `json:"integrity_score"`
	AutoSubmitted     bool                       `json:"auto_submitted"`
}

type answerWithHash struct {
	answerCore
	Hash string `json:"hash"`
}

// AnswerHash computes the per-answer tamper-evidence hash over the answer's
// normalized fields (selected options sorted, whitespace preserved as sent).
func AnswerHash(a model.SecureAnswer) (string, error) {
	core := answerCore{
		QuestionID:       a.QuestionID,
		Text:             a.Text,
		SelectedOptions:  sortedCopy(a.SelectedOptions),
		Code:             a.Code,
		TimeSpentSeconds: a.TimeSpentSeconds,
	}
	return canonicalDigest(core)
}

// SubmissionHash computes the whole-submission hash over every sealed field
// except the hash itself, using sorted-key canonical serialization.
func SubmissionHash(s model.ExamSubmission) (string, error) {
	core := submissionCore{
		SessionID:         s.SessionID,
		ExamID:            s.ExamID,
		StudentID:         s.StudentID,
		BranchID:          s.BranchID,
		Answers:           make([]answerWithHash, 0, len(s.Answers)),
		ClientSubmittedAt: normalizeOptional(s.ClientSubmittedAt),
		ServerReceivedAt:  normalizeTime(s.ServerReceivedAt),
		Violations:        s.Violations,
		Suspicious:        s.Suspicious,
		IntegrityScore:    s.IntegrityScore,
		AutoSubmitted:     s.AutoSubmitted,
	}
	for _, a := range s.Answers {
		core.Answers = append(core.Answers, answerWithHash{
			answerCore: answerCore{
				QuestionID:       a.QuestionID,
				Text:             a.Text,
				SelectedOptions:  sortedCopy(a.SelectedOptions),
				Code:             a.Code,
				TimeSpentSeconds: a.TimeSpentSeconds,
			},
			Hash: a.Hash,
		})
	}
	return canonicalDigest(core)
}

// VerifySubmission recomputes the canonical hash and compares it with the
// expected one. False means at least one sealed field changed since the hash
// was computed; such a mismatch is an integrity violation, never to be
// accepted silently.
func VerifySubmission(s model.ExamSubmission, expected string) (bool, error) {
	got, err := SubmissionHash(s)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}

// canonicalDigest serializes v with all object keys sorted and returns the
// hex SHA-256 of the result. Round-tripping through a generic decode forces
// map-based re-encoding, which encoding/json emits in sorted key order.
func canonicalDigest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("integrity: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep numeric literals byte-stable
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("integrity: canonicalize: %w", err)
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("integrity: canonical marshal: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeTime collapses a timestamp to what a timestamptz column actually
// stores: UTC, microsecond precision. Hashing anything finer would make the
// hash fail to reproduce after a database round trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeOptional(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalizeTime(*t)
	return &n
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

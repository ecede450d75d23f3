package integrity

import (
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSubmission(t *testing.T) model.ExamSubmission {
	t.Helper()

	answer := model.SecureAnswer{
		QuestionID:       "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		SelectedOptions:  []string{"b", "a"},
		TimeSpentSeconds: 42,
	}
	h, err := AnswerHash(answer)
	require.NoError(t, err)
	answer.Hash = h

	return model.ExamSubmission{
		ID:               uuid.New(),
		SessionID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ExamID:           uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		StudentID:        "student-9",
		BranchID:         uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Answers:          []model.SecureAnswer{answer},
		ServerReceivedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		Violations:       model.ViolationCounts{TabSwitch: 2},
		IntegrityScore:   90,
	}
}

func TestSubmissionHashRoundTrip(t *testing.T) {
	sub := sampleSubmission(t)

	h, err := SubmissionHash(sub)
	require.NoError(t, err)
	sub.SubmissionHash = h

	ok, err := VerifySubmission(sub, sub.SubmissionHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Any single sealed-field mutation must flip verification.
func TestSubmissionHashDetectsMutation(t *testing.T) {
	sub := sampleSubmission(t)
	h, err := SubmissionHash(sub)
	require.NoError(t, err)

	mutations := map[string]func(*model.ExamSubmission){
		"student":         func(s *model.ExamSubmission) { s.StudentID = "student-10" },
		"integrity score": func(s *model.ExamSubmission) { s.IntegrityScore = 100 },
		"violations":      func(s *model.ExamSubmission) { s.Violations.TabSwitch = 0 },
		"auto submitted":  func(s *model.ExamSubmission) { s.AutoSubmitted = true },
		"answer text":     func(s *model.ExamSubmission) { s.Answers[0].Text = "edited" },
		"answer options":  func(s *model.ExamSubmission) { s.Answers[0].SelectedOptions = []string{"c"} },
		"answer dropped":  func(s *model.ExamSubmission) { s.Answers = nil },
		"received at": func(s *model.ExamSubmission) {
			s.ServerReceivedAt = s.ServerReceivedAt.Add(time.Second)
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tampered := sampleSubmission(t)
			mutate(&tampered)
			ok, err := VerifySubmission(tampered, h)
			require.NoError(t, err)
			assert.False(t, ok, "mutation %q went undetected", name)
		})
	}
}

// Grading attaches results after the hash is sealed; verification must
// still pass afterwards.
func TestGradingFieldsExcludedFromHash(t *testing.T) {
	sub := sampleSubmission(t)
	h, err := SubmissionHash(sub)
	require.NoError(t, err)

	correct := true
	sub.Status = model.GradeGraded
	sub.MarksObtained = 18
	sub.Percentage = 90
	sub.LetterGrade = "A"
	sub.Passed = true
	sub.Answers[0].MarksAwarded = 18
	sub.Answers[0].Correct = &correct

	ok, err := VerifySubmission(sub, h)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Option order is normalized: the same selection in a different delivery
// order hashes identically.
func TestAnswerHashOptionOrderInsensitive(t *testing.T) {
	a := model.SecureAnswer{QuestionID: "q1", SelectedOptions: []string{"a", "b"}}
	b := model.SecureAnswer{QuestionID: "q1", SelectedOptions: []string{"b", "a"}}

	ha, err := AnswerHash(a)
	require.NoError(t, err)
	hb, err := AnswerHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := model.SecureAnswer{QuestionID: "q1", SelectedOptions: []string{"b", "c"}}
	hc, err := AnswerHash(c)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

// Timestamp precision beyond microseconds is truncated, so a hash computed
// before persistence matches one recomputed after a PostgreSQL round trip.
func TestSubmissionHashStableAcrossMicrosecondTruncation(t *testing.T) {
	sub := sampleSubmission(t)
	h1, err := SubmissionHash(sub)
	require.NoError(t, err)

	sub.ServerReceivedAt = sub.ServerReceivedAt.Truncate(time.Microsecond)
	h2, err := SubmissionHash(sub)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

// The client timestamp is normalized the same way: an offset-zoned,
// nanosecond-precision value from the request body must verify against the
// UTC microsecond value the database hands back.
func TestSubmissionHashStableAcrossClientTimestampRoundTrip(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	clientAt := time.Date(2026, 8, 28, 10, 0, 0, 123456789, jakarta)

	sub := sampleSubmission(t)
	sub.ClientSubmittedAt = &clientAt
	h, err := SubmissionHash(sub)
	require.NoError(t, err)

	stored := clientAt.UTC().Truncate(time.Microsecond)
	sub.ClientSubmittedAt = &stored

	ok, err := VerifySubmission(sub, h)
	require.NoError(t, err)
	assert.True(t, ok)

	shifted := stored.Add(time.Millisecond)
	sub.ClientSubmittedAt = &shifted
	ok, err = VerifySubmission(sub, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

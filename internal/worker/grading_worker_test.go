package worker

import (
	"testing"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/secrets"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrader(t *testing.T) (*GradingWorker, *secrets.Manager) {
	t.Helper()
	sm, err := secrets.NewManager(map[string]string{"k1": "test-key-material"}, "k1")
	require.NoError(t, err)
	return &GradingWorker{secrets: sm, log: zerolog.Nop()}, sm
}

func encryptedQuestion(t *testing.T, sm *secrets.Manager, qt model.QuestionType, marks float64, key string) *model.Question {
	t.Helper()
	enc, err := sm.Encrypt("k1", []byte(key))
	require.NoError(t, err)
	return &model.Question{
		ID:        uuid.New(),
		Type:      qt,
		Marks:     marks,
		AnswerEnc: enc,
		KeyID:     "k1",
	}
}

func TestGradeAnswerMultipleChoice(t *testing.T) {
	w, sm := newTestGrader(t)
	q := encryptedQuestion(t, sm, model.QuestionTypeMultipleChoice, 10, "b")

	a := &model.SecureAnswer{QuestionID: q.ID.String(), SelectedOptions: []string{"b"}}
	w.gradeAnswer(a, q)
	require.NotNil(t, a.Correct)
	assert.True(t, *a.Correct)
	assert.Equal(t, 10.0, a.MarksAwarded)
	assert.False(t, a.ReviewRequired)

	wrong := &model.SecureAnswer{QuestionID: q.ID.String(), SelectedOptions: []string{"c"}}
	w.gradeAnswer(wrong, q)
	require.NotNil(t, wrong.Correct)
	assert.False(t, *wrong.Correct)
	assert.Zero(t, wrong.MarksAwarded)
}

func TestGradeAnswerMatchingIgnoresOrder(t *testing.T) {
	w, sm := newTestGrader(t)
	q := encryptedQuestion(t, sm, model.QuestionTypeMatching, 15, "a,b,c")

	a := &model.SecureAnswer{SelectedOptions: []string{"c", "a", "b"}}
	w.gradeAnswer(a, q)
	require.NotNil(t, a.Correct)
	assert.True(t, *a.Correct)
	assert.Equal(t, 15.0, a.MarksAwarded)
}

func TestGradeAnswerTextIsCaseInsensitive(t *testing.T) {
	w, sm := newTestGrader(t)
	q := encryptedQuestion(t, sm, model.QuestionTypeShortAnswer, 5, "Canberra")

	a := &model.SecureAnswer{Text: "  canberra "}
	w.gradeAnswer(a, q)
	require.NotNil(t, a.Correct)
	assert.True(t, *a.Correct)
	assert.Equal(t, 5.0, a.MarksAwarded)
}

func TestGradeAnswerEssayNeedsReview(t *testing.T) {
	w, sm := newTestGrader(t)
	q := encryptedQuestion(t, sm, model.QuestionTypeEssay, 20, "")

	a := &model.SecureAnswer{Text: "a long essay"}
	w.gradeAnswer(a, q)
	assert.True(t, a.ReviewRequired)
	assert.Nil(t, a.Correct)
	assert.Zero(t, a.MarksAwarded)
}

func TestGradeAnswerMissingQuestionNeedsReview(t *testing.T) {
	w, _ := newTestGrader(t)

	a := &model.SecureAnswer{QuestionID: "gone", MarksAwarded: 3}
	w.gradeAnswer(a, nil)
	assert.True(t, a.ReviewRequired)
	assert.Zero(t, a.MarksAwarded)
	assert.Equal(t, "question no longer exists", a.GradingNote)
}

func TestGradeAnswerMissingKeyNeedsReview(t *testing.T) {
	w, _ := newTestGrader(t)
	q := &model.Question{Type: model.QuestionTypeShortAnswer, Marks: 5}

	a := &model.SecureAnswer{Text: "whatever"}
	w.gradeAnswer(a, q)
	assert.True(t, a.ReviewRequired)
	assert.Zero(t, a.MarksAwarded)
}

func TestSameOptionSet(t *testing.T) {
	assert.True(t, sameOptionSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, sameOptionSet([]string{" a ", "b"}, []string{"b", "a", "a"}))
	assert.True(t, sameOptionSet(nil, []string{"", "  "}))

	assert.False(t, sameOptionSet([]string{"a", "b"}, []string{"a"}))
	assert.False(t, sameOptionSet([]string{"a"}, []string{"b"}))
}

func TestLetterGrade(t *testing.T) {
	assert.Equal(t, "A", letterGrade(95))
	assert.Equal(t, "A", letterGrade(90))
	assert.Equal(t, "B", letterGrade(83.5))
	assert.Equal(t, "C", letterGrade(70))
	assert.Equal(t, "D", letterGrade(60))
	assert.Equal(t, "F", letterGrade(59.9))
	assert.Equal(t, "F", letterGrade(0))
}

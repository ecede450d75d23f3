package selector

import (
	"testing"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:       uuid.New(),
			Text:     "question",
			Type:     model.QuestionTypeMultipleChoice,
			Marks:    2,
			Position: i,
			Options: []model.Option{
				{ID: "a", Text: "first"},
				{ID: "b", Text: "second"},
				{ID: "c", Text: "third"},
				{ID: "d", Text: "fourth"},
			},
		}
	}
	return qs
}

func TestOrderDeterministicPerSession(t *testing.T) {
	exam := &model.Exam{Security: model.ExamSecurity{RandomizeQuestions: true}}
	qs := makeQuestions(20)
	sessionID := uuid.New()

	first := Order(exam, sessionID, qs)
	resumed := Order(exam, sessionID, qs)
	assert.Equal(t, first, resumed, "a resumed session must see its original order")

	other := Order(exam, uuid.New(), qs)
	assert.NotEqual(t, first, other, "distinct sessions should not share one global order")

	assert.ElementsMatch(t, first, other)
}

func TestOrderWithoutRandomizationKeepsPositions(t *testing.T) {
	exam := &model.Exam{Security: model.ExamSecurity{}}
	qs := makeQuestions(5)
	// Shuffle input slice order; authored Position must win.
	qs[0], qs[3] = qs[3], qs[0]

	order := Order(exam, uuid.New(), qs)
	require.Len(t, order, 5)
	for i, id := range order {
		var want string
		for _, q := range qs {
			if q.Position == i {
				want = q.ID.String()
			}
		}
		assert.Equal(t, want, id)
	}
}

func TestDeliverStripsSecrets(t *testing.T) {
	qs := makeQuestions(3)
	for i := range qs {
		qs[i].AnswerEnc = []byte("sealed")
		qs[i].KeyID = "k1"
	}
	exam := &model.Exam{Security: model.ExamSecurity{}}
	order := Order(exam, uuid.New(), qs)

	delivered := Deliver(order, qs)
	require.Len(t, delivered, 3)
	for _, d := range delivered {
		assert.NotEmpty(t, d.Text)
		assert.Len(t, d.Options, 4)
		// DeliveredQuestion has no secret fields at all; spot-check the
		// payload shape carries only presentation data.
		assert.NotZero(t, d.Marks)
	}
}

func TestDeliverShufflesOptionsIndependently(t *testing.T) {
	qs := makeQuestions(1)
	qs[0].RandomizeOptions = true
	exam := &model.Exam{Security: model.ExamSecurity{}}
	order := Order(exam, uuid.New(), qs)

	// Same option set every delivery, order free to vary.
	base := Deliver(order, qs)[0]
	ids := func(opts []model.Option) []string {
		out := make([]string, len(opts))
		for i, o := range opts {
			out[i] = o.ID
		}
		return out
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, ids(base.Options))

	varied := false
	for i := 0; i < 50 && !varied; i++ {
		next := Deliver(order, qs)[0]
		assert.ElementsMatch(t, ids(base.Options), ids(next.Options))
		if !assert.ObjectsAreEqual(base.Options, next.Options) {
			varied = true
		}
	}
	assert.True(t, varied, "option order should vary across deliveries")
}

func TestDeliverSkipsRemovedQuestions(t *testing.T) {
	qs := makeQuestions(3)
	exam := &model.Exam{Security: model.ExamSecurity{}}
	order := Order(exam, uuid.New(), qs)

	delivered := Deliver(order, qs[:2])
	assert.Len(t, delivered, 2)
}

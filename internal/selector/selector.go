// Package selector decides the order in which questions and options are
// delivered to an exam client. Delivered payloads never contain answer keys.
package selector

import (
	"encoding/binary"
	"math/rand"
	"sort"

	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
)

// Order returns the question IDs for a session in delivery order. With
// randomization enabled the shuffle is seeded from the session ID, so a
// resumed session reproduces exactly the order it was first given; without
// it, questions keep their authored positions.
func Order(exam *model.Exam, sessionID uuid.UUID, questions []model.Question) []string {
	sorted := make([]model.Question, len(questions))
	copy(sorted, questions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	ids := make([]string, len(sorted))
	for i, q := range sorted {
		ids[i] = q.ID.String()
	}

	if exam.Security.RandomizeQuestions {
		rng := rand.New(rand.NewSource(sessionSeed(sessionID)))
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	return ids
}

// Deliver strips questions of their secrets and arranges them in the given
// session order. Options of questions flagged randomize_options are shuffled
// independently on every delivery; the correct-answer reference lives only
// server-side in encrypted form, so reshuffling can never desynchronize it.
func Deliver(order []string, questions []model.Question) []model.DeliveredQuestion {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID.String()] = q
	}

	delivered := make([]model.DeliveredQuestion, 0, len(order))
	for pos, id := range order {
		q, ok := byID[id]
		if !ok {
			continue // question removed since the order was recorded
		}

		opts := make([]model.Option, len(q.Options))
		copy(opts, q.Options)
		if q.RandomizeOptions {
			rand.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		}

		delivered = append(delivered, model.DeliveredQuestion{
			ID:               q.ID,
			Text:             q.Text,
			Type:             q.Type,
			Marks:            q.Marks,
			Options:          opts,
			TimeLimitSeconds: q.TimeLimitSeconds,
			Position:         pos,
		})
	}

	return delivered
}

// sessionSeed folds a session UUID into a deterministic shuffle seed.
func sessionSeed(id uuid.UUID) int64 {
	b := id[:]
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	return int64(hi ^ lo)
}

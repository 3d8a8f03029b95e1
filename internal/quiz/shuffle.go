package quiz

import (
	"hash/fnv"
	"math/rand"
)

// PresentationOrder returns the question IDs in display order for an attempt.
// When the quiz shuffles, the permutation is seeded by the attempt ID so a
// resumed attempt re-displays the identical order. Scoring never consults
// this; the canonical Position order is fixed.
func PresentationOrder(q Quiz, attemptID string) []string {
	qs := make([]Question, len(q.Questions))
	copy(qs, q.Questions)
	sortQuestions(qs)

	ids := make([]string, len(qs))
	for i, question := range qs {
		ids[i] = question.ID
	}
	if !q.ShuffleQuestions {
		return ids
	}
	rng := rand.New(rand.NewSource(shuffleSeed(attemptID)))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

func shuffleSeed(attemptID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	return int64(h.Sum64())
}

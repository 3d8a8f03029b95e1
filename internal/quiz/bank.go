package quiz

import (
	"context"
	"sort"
)

// Bank is the read-only view of a quiz's question set. It never exposes a
// mutation path; callers get questions in canonical Position order.
type Bank struct {
	store Store
}

func NewBank(store Store) *Bank { return &Bank{store: store} }

// QuestionsFor returns the quiz's questions sorted by Position ascending,
// answer keys included. ErrNotFound when the quiz does not exist.
func (b *Bank) QuestionsFor(ctx context.Context, quizID string) ([]Question, error) {
	q, err := b.store.GetQuizAdmin(ctx, quizID)
	if err != nil {
		return nil, err
	}
	qs := make([]Question, len(q.Questions))
	copy(qs, q.Questions)
	sortQuestions(qs)
	return qs, nil
}

// TotalPoints is the grading denominator: the sum of every question's points.
func (b *Bank) TotalPoints(ctx context.Context, quizID string) (float64, error) {
	qs, err := b.QuestionsFor(ctx, quizID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, q := range qs {
		total += q.Points
	}
	return total, nil
}

func sortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
}

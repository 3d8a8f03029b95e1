package quiz_test

import (
	"fmt"
	"testing"

	"github.com/coursekit/coursekit-lms/internal/quiz"
)

func orderedQuiz(n int) quiz.Quiz {
	q := quiz.Quiz{ID: "quiz-ord", ShuffleQuestions: true}
	for i := 0; i < n; i++ {
		q.Questions = append(q.Questions, quiz.Question{
			ID:       fmt.Sprintf("q%02d", i),
			Type:     quiz.TrueFalse,
			Points:   1,
			Position: i,
		})
	}
	return q
}

func TestPresentationOrder_Deterministic(t *testing.T) {
	q := orderedQuiz(10)
	first := quiz.PresentationOrder(q, "attempt-abc")
	second := quiz.PresentationOrder(q, "attempt-abc")
	if len(first) != 10 {
		t.Fatalf("got %d ids, want 10", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same attempt must see the same order: %v vs %v", first, second)
		}
	}
}

func TestPresentationOrder_IsPermutation(t *testing.T) {
	q := orderedQuiz(10)
	order := quiz.PresentationOrder(q, "attempt-abc")
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			t.Fatalf("duplicate id %q in %v", id, order)
		}
		seen[id] = true
	}
	for _, question := range q.Questions {
		if !seen[question.ID] {
			t.Fatalf("id %q missing from %v", question.ID, order)
		}
	}
}

func TestPresentationOrder_VariesAcrossAttempts(t *testing.T) {
	q := orderedQuiz(10)
	base := quiz.PresentationOrder(q, "attempt-0")
	varied := false
	for i := 1; i < 6; i++ {
		other := quiz.PresentationOrder(q, fmt.Sprintf("attempt-%d", i))
		for j := range base {
			if other[j] != base[j] {
				varied = true
			}
		}
	}
	if !varied {
		t.Fatalf("six attempts produced identical orders")
	}
}

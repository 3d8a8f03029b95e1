package grading_test

import (
	"reflect"
	"testing"

	"github.com/coursekit/coursekit-lms/internal/grading"
)

func twoQuestionQuiz() []grading.Q {
	return []grading.Q{
		{ID: "q1", Type: "single_choice", Points: 10, AnswerKey: []string{"B"}},
		{ID: "q2", Type: "true_false", Points: 10, AnswerKey: []string{"true"}},
	}
}

func TestGrade_AllCorrect(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(twoQuestionQuiz(), map[string]interface{}{"q1": "B", "q2": "true"}, 50)
	if sum.Score != 20 || sum.TotalPoints != 20 {
		t.Fatalf("score=%v total=%v, want 20/20", sum.Score, sum.TotalPoints)
	}
	if sum.Percentage != 100 || !sum.Passed {
		t.Fatalf("percentage=%v passed=%v, want 100 true", sum.Percentage, sum.Passed)
	}
}

func TestGrade_BoundaryIsInclusive(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(twoQuestionQuiz(), map[string]interface{}{"q1": "B", "q2": "false"}, 50)
	if sum.Score != 10 {
		t.Fatalf("score=%v, want 10", sum.Score)
	}
	if sum.Percentage != 50 {
		t.Fatalf("percentage=%v, want 50", sum.Percentage)
	}
	if !sum.Passed {
		t.Fatalf("exactly passing score must pass")
	}
}

func TestGrade_NoneCorrect(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(twoQuestionQuiz(), map[string]interface{}{"q1": "A", "q2": "false"}, 50)
	if sum.Score != 0 || sum.Percentage != 0 || sum.Passed {
		t.Fatalf("got score=%v percentage=%v passed=%v, want all zero/false", sum.Score, sum.Percentage, sum.Passed)
	}
}

func TestGrade_UnansweredScoresZero(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(twoQuestionQuiz(), map[string]interface{}{}, 50)
	if sum.Score != 0 || sum.TotalPoints != 20 {
		t.Fatalf("score=%v total=%v, want 0/20", sum.Score, sum.TotalPoints)
	}
	for _, r := range sum.PerQuestion {
		if r.Correct || r.NeedsManual {
			t.Fatalf("unanswered %s must be incorrect, not pending", r.QuestionID)
		}
	}
}

func TestGrade_UnknownAnswerIDsIgnored(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(twoQuestionQuiz(), map[string]interface{}{"q1": "B", "ghost": "X"}, 50)
	if sum.Score != 10 {
		t.Fatalf("score=%v, want 10 (unknown answer ignored)", sum.Score)
	}
	if len(sum.PerQuestion) != 2 {
		t.Fatalf("got %d results, want 2", len(sum.PerQuestion))
	}
}

func TestGrade_SingleChoiceIsCaseSensitive(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := []grading.Q{{ID: "q1", Type: "single_choice", Points: 5, AnswerKey: []string{"Paris"}}}
	if sum := g.Grade(q, map[string]interface{}{"q1": "paris"}, 0); sum.Score != 0 {
		t.Fatalf("single choice must compare by identity; got score %v", sum.Score)
	}
}

func TestGrade_MultipleChoiceExactSet(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := []grading.Q{{ID: "m1", Type: "multiple_choice", Points: 10, AnswerKey: []string{"A", "C"}}}

	cases := []struct {
		name string
		resp interface{}
		want float64
	}{
		{"subset earns nothing", []string{"A"}, 0},
		{"exact set, any order", []string{"C", "A"}, 10},
		{"superset earns nothing", []string{"A", "B", "C"}, 0},
		{"duplicates collapse", []string{"A", "A", "C"}, 10},
		{"json-decoded slice", []interface{}{"A", "C"}, 10},
		{"wrong shape", "A", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum := g.Grade(q, map[string]interface{}{"m1": tc.resp}, 0)
			if sum.Score != tc.want {
				t.Fatalf("score=%v, want %v", sum.Score, tc.want)
			}
		})
	}
}

func TestGrade_ShortAnswerNormalizes(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := []grading.Q{{ID: "s1", Type: "short_answer", Points: 4, AnswerKey: []string{"Photosynthesis"}}}
	sum := g.Grade(q, map[string]interface{}{"s1": "  photosynthesis \n"}, 0)
	if sum.Score != 4 {
		t.Fatalf("trimmed case-insensitive match must score; got %v", sum.Score)
	}
	sum = g.Grade(q, map[string]interface{}{"s1": "photo synthesis"}, 0)
	if sum.Score != 0 {
		t.Fatalf("different text must not score; got %v", sum.Score)
	}
}

func TestGrade_ShortAnswerWithoutKeyIsPending(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := []grading.Q{
		{ID: "s1", Type: "short_answer", Points: 6},
		{ID: "q1", Type: "single_choice", Points: 4, AnswerKey: []string{"A"}},
	}
	sum := g.Grade(q, map[string]interface{}{"s1": "an essay", "q1": "A"}, 0)
	if sum.TotalPoints != 10 {
		t.Fatalf("pending question still counts in the denominator; total=%v", sum.TotalPoints)
	}
	if sum.Score != 4 {
		t.Fatalf("pending question must award no automatic points; score=%v", sum.Score)
	}
	if !sum.PerQuestion[0].NeedsManual {
		t.Fatalf("keyless short answer must be flagged for manual review")
	}
	if sum.PerQuestion[0].Correct {
		t.Fatalf("pending is not incorrect, but it is not correct either")
	}
}

func TestGrade_PercentageRounding(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := []grading.Q{
		{ID: "a", Type: "single_choice", Points: 1, AnswerKey: []string{"x"}},
		{ID: "b", Type: "single_choice", Points: 1, AnswerKey: []string{"x"}},
		{ID: "c", Type: "single_choice", Points: 1, AnswerKey: []string{"x"}},
	}
	sum := g.Grade(q, map[string]interface{}{"a": "x"}, 0)
	if sum.Percentage != 33.33 {
		t.Fatalf("percentage=%v, want 33.33", sum.Percentage)
	}
}

func TestGrade_EmptyQuizIsZeroPercent(t *testing.T) {
	g := grading.NewDefaultGrader()
	sum := g.Grade(nil, map[string]interface{}{}, 0)
	if sum.Percentage != 0 {
		t.Fatalf("empty quiz percentage=%v, want 0", sum.Percentage)
	}
}

func TestGrade_Deterministic(t *testing.T) {
	g := grading.NewDefaultGrader()
	answers := map[string]interface{}{"q1": "B", "q2": "true"}
	first := g.Grade(twoQuestionQuiz(), answers, 50)
	second := g.Grade(twoQuestionQuiz(), answers, 50)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grading must be deterministic and idempotent:\n%+v\n%+v", first, second)
	}
}

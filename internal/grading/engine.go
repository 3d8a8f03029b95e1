package grading

import "math"

// Q is the minimal view of a question the grader needs. The quiz package maps
// its Question type onto this before grading.
type Q struct {
	ID        string
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single question response.
type Result struct {
	QuestionID  string
	Correct     bool
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	NeedsManual bool    // true when review is required instead of auto-scoring
}

// Summary aggregates a full grading pass. Percentage is rounded to two
// decimals; pending (NeedsManual) questions count toward TotalPoints but
// contribute no automatic points.
type Summary struct {
	PerQuestion []Result
	Score       float64
	TotalPoints float64
	Percentage  float64
	Passed      bool
}

// Strategy grades a single question. Strategies are pure.
type Strategy interface {
	Grade(q Q, response interface{}) Result
}

// Grader routes by question type to the correct Strategy and aggregates.
type Grader interface {
	Grade(questions []Q, answers map[string]interface{}, passingScore int) Summary
	GradeOne(q Q, response interface{}) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

// NewDefaultGrader installs the built-in strategies, one per supported
// question type.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single_choice":   singleChoiceStrategy{},
			"true_false":      singleChoiceStrategy{},
			"multiple_choice": multiChoiceStrategy{},
			"short_answer":    shortAnswerStrategy{},
		},
	}
}

func (g *defaultGrader) GradeOne(q Q, response interface{}) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		// Unknown type: never guess, flag for review.
		return Result{QuestionID: q.ID, MaxPoints: q.Points, NeedsManual: true}
	}
	return s.Grade(q, response)
}

// Grade scores every question in canonical order. Unanswered questions score
// zero and are marked incorrect; answers keyed by unknown question IDs are
// ignored. The whole pass is deterministic and side-effect free.
func (g *defaultGrader) Grade(questions []Q, answers map[string]interface{}, passingScore int) Summary {
	sum := Summary{PerQuestion: make([]Result, 0, len(questions))}
	for _, q := range questions {
		sum.TotalPoints += q.Points
		resp, has := answers[q.ID]
		if !has {
			sum.PerQuestion = append(sum.PerQuestion, Result{QuestionID: q.ID, MaxPoints: q.Points})
			continue
		}
		res := g.GradeOne(q, resp)
		sum.Score += res.AutoPoints
		sum.PerQuestion = append(sum.PerQuestion, res)
	}
	if sum.TotalPoints > 0 {
		sum.Percentage = Round2(sum.Score / sum.TotalPoints * 100)
	}
	sum.Passed = sum.Percentage >= float64(passingScore)
	return sum
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// --- Strategies ---

// singleChoiceStrategy covers single_choice and true_false: the submitted
// option must be identical to the stored correct option. All-or-nothing.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q Q, response interface{}) Result {
	res := Result{QuestionID: q.ID, MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok || len(q.AnswerKey) == 0 {
		return res
	}
	if resp == q.AnswerKey[0] {
		res.Correct = true
		res.AutoPoints = q.Points
	}
	return res
}

// multiChoiceStrategy awards full points iff the submitted set equals the
// correct set exactly. No partial credit.
type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Grade(q Q, response interface{}) Result {
	res := Result{QuestionID: q.ID, MaxPoints: q.Points}
	respSlice, ok := toStringSlice(response)
	if !ok {
		return res
	}
	if len(q.AnswerKey) > 0 && setEqual(toSet(q.AnswerKey), toSet(respSlice)) {
		res.Correct = true
		res.AutoPoints = q.Points
	}
	return res
}

// shortAnswerStrategy compares trimmed, case-insensitive text. A question with
// no stored expected answer cannot be auto-scored and is flagged for manual
// review rather than marked incorrect.
type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Grade(q Q, response interface{}) Result {
	res := Result{QuestionID: q.ID, MaxPoints: q.Points}
	if len(q.AnswerKey) == 0 {
		res.NeedsManual = true
		return res
	}
	resp, ok := response.(string)
	if !ok {
		return res
	}
	norm := normalize(resp)
	for _, k := range q.AnswerKey {
		if normalize(k) == norm {
			res.Correct = true
			res.AutoPoints = q.Points
			return res
		}
	}
	return res
}

// helpers

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

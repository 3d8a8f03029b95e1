package quiz_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coursekit/coursekit-lms/internal/grading"
	"github.com/coursekit/coursekit-lms/internal/quiz"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventCapture struct {
	mu    sync.Mutex
	types []string
}

func (e *eventCapture) Record(_ context.Context, typ, _ string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, typ)
}

func (e *eventCapture) has(typ string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.types {
		if t == typ {
			return true
		}
	}
	return false
}

func basicQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:           "quiz-1",
		LessonID:     "lesson-1",
		Title:        "Go Basics",
		PassingScore: 50,
		AllowRetake:  true,
		Questions: []quiz.Question{
			{ID: "q1", Text: "2+2?", Type: quiz.SingleChoice, Options: []string{"3", "4"}, AnswerKey: []string{"4"}, Points: 10, Position: 1},
			{ID: "q2", Text: "Go has classes.", Type: quiz.TrueFalse, AnswerKey: []string{"false"}, Points: 10, Position: 2},
		},
	}
}

func newEngine(t *testing.T, q quiz.Quiz) (*quiz.Service, quiz.Store, *fakeClock, *eventCapture) {
	t.Helper()
	store := quiz.NewInMemoryStore()
	if err := store.PutQuiz(context.Background(), q); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	clock := newFakeClock()
	events := &eventCapture{}
	svc := quiz.NewService(store, grading.NewDefaultGrader(),
		quiz.WithClock(clock.Now), quiz.WithEvents(events))
	return svc, store, clock, events
}

func TestLifecycle_StartAnswerSubmit(t *testing.T) {
	svc, _, _, events := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, err := svc.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Status != quiz.StatusInProgress || a.StartedAt == 0 {
		t.Fatalf("fresh attempt: %+v", a)
	}

	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4"); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q2", "false"); err != nil {
		t.Fatalf("answer q2: %v", err)
	}

	done, err := svc.Submit(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != quiz.StatusCompleted || done.CompletedAt == 0 {
		t.Fatalf("submitted attempt: %+v", done)
	}
	if done.Score != 20 || done.TotalPoints != 20 || done.Percentage != 100 || !done.Passed {
		t.Fatalf("grade: score=%v total=%v pct=%v passed=%v", done.Score, done.TotalPoints, done.Percentage, done.Passed)
	}
	if len(done.Results) != 2 {
		t.Fatalf("want per-question results, got %d", len(done.Results))
	}
	if !events.has("AttemptStarted") || !events.has("AttemptSubmitted") {
		t.Fatalf("audit events missing: %v", events.types)
	}
}

func TestLifecycle_AnswerUpsertOverwrites(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "3"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4"); err != nil {
		t.Fatalf("changed answer: %v", err)
	}
	done, _ := svc.Submit(ctx, "u1", a.ID)
	if done.Score != 10 {
		t.Fatalf("last answer wins; score=%v", done.Score)
	}
}

func TestLifecycle_BoundaryScorePasses(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4") // one of two correct
	done, err := svc.Submit(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Percentage != 50 || !done.Passed {
		t.Fatalf("50%% against passing_score 50 must pass; pct=%v passed=%v", done.Percentage, done.Passed)
	}
}

func TestLifecycle_RetakeDenied(t *testing.T) {
	q := basicQuiz()
	q.AllowRetake = false
	svc, _, _, _ := newEngine(t, q)
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	if _, err := svc.Submit(ctx, "u1", a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Start(ctx, "u1", "quiz-1"); !errors.Is(err, quiz.ErrRetakeNotAllowed) {
		t.Fatalf("second start: got %v, want ErrRetakeNotAllowed", err)
	}
}

func TestLifecycle_MaxAttemptsEnforced(t *testing.T) {
	q := basicQuiz()
	q.MaxAttempts = 2
	svc, _, _, _ := newEngine(t, q)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := svc.Start(ctx, "u1", "quiz-1")
		if err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
		if _, err := svc.Submit(ctx, "u1", a.ID); err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
	}
	if _, err := svc.Start(ctx, "u1", "quiz-1"); !errors.Is(err, quiz.ErrMaxAttemptsReached) {
		t.Fatalf("third start: got %v, want ErrMaxAttemptsReached", err)
	}
}

func TestLifecycle_SecondLiveAttemptDenied(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	if _, err := svc.Start(ctx, "u1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Start(ctx, "u1", "quiz-1"); !errors.Is(err, quiz.ErrAttemptInProgress) {
		t.Fatalf("second start: got %v, want ErrAttemptInProgress", err)
	}
	// Another user is unaffected.
	if _, err := svc.Start(ctx, "u2", "quiz-1"); err != nil {
		t.Fatalf("other user start: %v", err)
	}
}

func TestLifecycle_LateSubmitExpiresButGrades(t *testing.T) {
	q := basicQuiz()
	q.TimeLimitMin = 10
	svc, _, clock, events := newEngine(t, q)
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4")

	clock.Advance(11 * time.Minute)
	done, err := svc.Submit(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("late submit must still grade: %v", err)
	}
	if done.Status != quiz.StatusExpired {
		t.Fatalf("status=%s, want expired", done.Status)
	}
	if done.Score != 10 || done.TotalPoints != 20 {
		t.Fatalf("late submission keeps its answers: score=%v total=%v", done.Score, done.TotalPoints)
	}
	if !events.has("AttemptExpired") {
		t.Fatalf("expected AttemptExpired event, got %v", events.types)
	}
}

func TestLifecycle_AnswerAfterDeadline(t *testing.T) {
	q := basicQuiz()
	q.TimeLimitMin = 10
	svc, store, clock, _ := newEngine(t, q)
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	clock.Advance(10 * time.Minute) // elapsed == limit counts as expired

	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4"); !errors.Is(err, quiz.ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}
	// The failure moved the attempt to expired as a side effect.
	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != quiz.StatusExpired || got.CompletedAt == 0 {
		t.Fatalf("attempt after deadline: %+v", got)
	}
}

func TestLifecycle_UntimedNeverExpires(t *testing.T) {
	svc, _, clock, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	clock.Advance(100 * time.Hour)
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4"); err != nil {
		t.Fatalf("untimed attempt must accept answers: %v", err)
	}
	done, err := svc.Submit(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != quiz.StatusCompleted {
		t.Fatalf("status=%s, want completed", done.Status)
	}
}

func TestLifecycle_StaleAttemptForceClosedOnStart(t *testing.T) {
	q := basicQuiz()
	q.TimeLimitMin = 10
	svc, store, clock, _ := newEngine(t, q)
	ctx := context.Background()

	stale, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", stale.ID, "q1", "4")
	clock.Advance(time.Hour)

	fresh, err := svc.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start after stale attempt: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatalf("expected a new attempt")
	}
	closed, _ := store.GetAttempt(ctx, stale.ID)
	if closed.Status != quiz.StatusExpired {
		t.Fatalf("stale attempt status=%s, want expired", closed.Status)
	}
	if closed.Score != 10 {
		t.Fatalf("force-closed attempt keeps its graded answers: score=%v", closed.Score)
	}
}

func TestLifecycle_Abandon(t *testing.T) {
	svc, _, _, events := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4")

	done, err := svc.Abandon(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if done.Status != quiz.StatusAbandoned || done.CompletedAt == 0 {
		t.Fatalf("abandoned attempt: %+v", done)
	}
	if done.Score != 0 || done.TotalPoints != 0 || done.Percentage != 0 || done.Passed {
		t.Fatalf("abandon must not grade: %+v", done)
	}
	if !events.has("AttemptAbandoned") {
		t.Fatalf("expected AttemptAbandoned event, got %v", events.types)
	}
	// Terminal: nothing else may touch it.
	if _, err := svc.Submit(ctx, "u1", a.ID); !errors.Is(err, quiz.ErrInvalidState) {
		t.Fatalf("submit after abandon: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "q1", "3"); !errors.Is(err, quiz.ErrInvalidState) {
		t.Fatalf("answer after abandon: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.Abandon(ctx, "u1", a.ID); !errors.Is(err, quiz.ErrInvalidState) {
		t.Fatalf("double abandon: got %v, want ErrInvalidState", err)
	}
}

func TestLifecycle_OwnershipEnforced(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	if _, err := svc.RecordAnswer(ctx, "intruder", a.ID, "q1", "4"); !errors.Is(err, quiz.ErrUnauthorized) {
		t.Fatalf("foreign answer: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Submit(ctx, "intruder", a.ID); !errors.Is(err, quiz.ErrUnauthorized) {
		t.Fatalf("foreign submit: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.GetAttempt(ctx, "intruder", false, a.ID); !errors.Is(err, quiz.ErrUnauthorized) {
		t.Fatalf("foreign read: got %v, want ErrUnauthorized", err)
	}
	// attempt:view-all callers may read.
	if _, err := svc.GetAttempt(ctx, "teacher", true, a.ID); err != nil {
		t.Fatalf("view-all read: %v", err)
	}
}

func TestLifecycle_UnknownQuestionRejected(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	if _, err := svc.RecordAnswer(ctx, "u1", a.ID, "ghost", "4"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("unknown question: got %v, want ErrNotFound", err)
	}
}

func TestLifecycle_ConcurrentSubmitsSingleWinner(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, "u1", a.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, quiz.ErrInvalidState):
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one submit must win, got %d", wins)
	}
}

func TestLifecycle_ShuffleNeverChangesScore(t *testing.T) {
	run := func(shuffle bool) (quiz.Attempt, quiz.Attempt) {
		q := basicQuiz()
		q.ShuffleQuestions = shuffle
		svc, _, _, _ := newEngine(t, q)
		ctx := context.Background()
		a, err := svc.Start(ctx, "u1", "quiz-1")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4")
		_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q2", "false")
		done, err := svc.Submit(ctx, "u1", a.ID)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return a, done
	}

	plainStart, plain := run(false)
	shuffledStart, shuffled := run(true)

	if plain.Score != shuffled.Score || plain.Percentage != shuffled.Percentage {
		t.Fatalf("shuffle changed the grade: %v%% vs %v%%", plain.Percentage, shuffled.Percentage)
	}
	if len(plainStart.QuestionOrder) != 0 {
		t.Fatalf("unshuffled attempt should carry no presentation order")
	}
	if len(shuffledStart.QuestionOrder) != 2 {
		t.Fatalf("shuffled attempt must persist its presentation order, got %v", shuffledStart.QuestionOrder)
	}
}

func TestManualGrades_ResolvePending(t *testing.T) {
	q := basicQuiz()
	q.Questions = append(q.Questions, quiz.Question{
		ID: "essay", Text: "Explain interfaces.", Type: quiz.ShortAnswer, Points: 20, Position: 3,
	})
	svc, _, _, _ := newEngine(t, q)
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "q1", "4")
	_, _ = svc.RecordAnswer(ctx, "u1", a.ID, "essay", "they are satisfied implicitly")
	done, err := svc.Submit(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Score != 10 || done.TotalPoints != 40 {
		t.Fatalf("auto grade: score=%v total=%v", done.Score, done.TotalPoints)
	}
	pending := done.Results[2]
	if pending.QuestionID != "essay" || !pending.Pending {
		t.Fatalf("keyless short answer must be pending: %+v", pending)
	}

	regraded, err := svc.ApplyManualGrades(ctx, a.ID, map[string]quiz.ManualGradeInput{
		"essay": {Points: 15, Comment: "solid"},
		"q1":    {Points: 0}, // not pending, ignored
	})
	if err != nil {
		t.Fatalf("manual grade: %v", err)
	}
	if regraded.Score != 25 {
		t.Fatalf("score=%v, want 25", regraded.Score)
	}
	if regraded.Percentage != 62.5 || !regraded.Passed {
		t.Fatalf("pct=%v passed=%v", regraded.Percentage, regraded.Passed)
	}
	if regraded.Results[2].Pending {
		t.Fatalf("resolved item must not stay pending")
	}
	if regraded.Results[0].PointsAwarded != 10 {
		t.Fatalf("non-pending auto result must be untouched: %+v", regraded.Results[0])
	}
	if regraded.Status != quiz.StatusCompleted {
		t.Fatalf("manual grading never reopens the attempt, status=%s", regraded.Status)
	}
}

func TestManualGrades_RequireTerminalGradedAttempt(t *testing.T) {
	svc, _, _, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	a, _ := svc.Start(ctx, "u1", "quiz-1")
	_, err := svc.ApplyManualGrades(ctx, a.ID, map[string]quiz.ManualGradeInput{"q1": {Points: 10}})
	if !errors.Is(err, quiz.ErrInvalidState) {
		t.Fatalf("manual grade on live attempt: got %v, want ErrInvalidState", err)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	svc, _, clock, _ := newEngine(t, basicQuiz())
	ctx := context.Background()

	first, _ := svc.Start(ctx, "u1", "quiz-1")
	_, _ = svc.Submit(ctx, "u1", first.ID)
	clock.Advance(time.Minute)
	second, _ := svc.Start(ctx, "u1", "quiz-1")

	history, err := svc.History(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d attempts, want 2", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("history must be started_at desc: %s, %s", history[0].ID, history[1].ID)
	}
}

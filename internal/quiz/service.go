package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/coursekit-lms/internal/grading"
)

// EventRecorder receives lifecycle events for the append-only audit trail.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, data interface{})
}

// ManualGradeInput resolves one pending (manual-review) question.
type ManualGradeInput struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment,omitempty"`
}

type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithEvents attaches an audit event recorder.
func WithEvents(rec EventRecorder) Option { return func(s *Service) { s.events = rec } }

// Service is the attempt lifecycle manager: it owns every state transition of
// an Attempt, consulting the start policy and the grading engine. All methods
// are safe for concurrent use; terminal transitions race through the store's
// compare-and-swap, so exactly one caller finalizes an attempt.
type Service struct {
	store  Store
	grader grading.Grader
	events EventRecorder
	now    func() time.Time
}

func NewService(store Store, grader grading.Grader, opts ...Option) *Service {
	s := &Service{store: store, grader: grader, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins a new attempt for the user, subject to the quiz's retake
// policy. Stale in-progress attempts (past their time limit) are force-closed
// as Expired, graded on whatever answers they hold, before the policy verdict
// is acted on.
func (s *Service) Start(ctx context.Context, userID, quizID string) (Attempt, error) {
	q, err := s.store.GetQuizAdmin(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	history, err := s.store.AttemptHistory(ctx, quizID, userID)
	if err != nil {
		return Attempt{}, err
	}

	d := CanStart(q, history, s.now())
	for _, staleID := range d.StaleAttemptIDs {
		for _, h := range history {
			if h.ID == staleID {
				if _, err := s.expire(ctx, q, h); err != nil {
					return Attempt{}, err
				}
			}
		}
	}
	if !d.Allow {
		return Attempt{}, d.Err()
	}

	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    StatusInProgress,
		StartedAt: s.now().Unix(),
		Answers:   map[string]interface{}{},
	}
	if q.ShuffleQuestions {
		a.QuestionOrder = PresentationOrder(q, a.ID)
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	s.record(ctx, "AttemptStarted", a.ID, map[string]string{"quiz_id": quizID, "user_id": userID})
	return a, nil
}

// RecordAnswer upserts one response while the attempt is live. Past the time
// limit the attempt is closed as Expired before the failure is reported.
func (s *Service) RecordAnswer(ctx context.Context, userID, attemptID, questionID string, response interface{}) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrInvalidState
	}
	q, err := s.store.GetQuizAdmin(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if AttemptExpired(q, a, s.now()) {
		if _, err := s.expire(ctx, q, a); err != nil {
			return Attempt{}, err
		}
		return Attempt{}, ErrExpired
	}
	if !hasQuestion(q, questionID) {
		return Attempt{}, ErrNotFound
	}
	if err := s.store.SaveAnswer(ctx, attemptID, questionID, response); err != nil {
		return Attempt{}, err
	}
	return s.store.GetAttempt(ctx, attemptID)
}

// Submit grades the attempt's answers and finalizes it. A submission past the
// time limit lands in Expired instead of Completed, but is still graded.
func (s *Service) Submit(ctx context.Context, userID, attemptID string) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrInvalidState
	}
	q, err := s.store.GetQuizAdmin(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	status := StatusCompleted
	if AttemptExpired(q, a, s.now()) {
		status = StatusExpired
	}
	return s.finalize(ctx, q, a, status)
}

// Abandon terminates the attempt without grading. Score fields stay zero.
func (s *Service) Abandon(ctx context.Context, userID, attemptID string) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrInvalidState
	}
	closed, err := s.store.CloseAttempt(ctx, a.ID, StatusAbandoned, s.now().Unix())
	if err != nil {
		return Attempt{}, err
	}
	s.record(ctx, "AttemptAbandoned", closed.ID, map[string]string{"quiz_id": closed.QuizID, "user_id": closed.UserID})
	return closed, nil
}

// GetAttempt returns the attempt for its owner, or for callers allowed to see
// any attempt (teachers, admins).
func (s *Service) GetAttempt(ctx context.Context, callerID string, viewAll bool, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if !viewAll && a.UserID != callerID {
		return Attempt{}, ErrUnauthorized
	}
	return a, nil
}

// History returns a user's attempts for a quiz, newest first.
func (s *Service) History(ctx context.Context, quizID, userID string) ([]Attempt, error) {
	return s.store.AttemptHistory(ctx, quizID, userID)
}

// ApplyManualGrades resolves pending (manual-review) questions on a graded
// terminal attempt and re-derives score, percentage and passed. The attempt's
// status never changes; unknown or non-pending question IDs are ignored.
func (s *Service) ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGradeInput) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusCompleted && a.Status != StatusExpired {
		return Attempt{}, ErrInvalidState
	}

	score := 0.0
	for i := range a.Results {
		r := &a.Results[i]
		if u, ok := updates[r.QuestionID]; ok && r.Pending {
			pts := u.Points
			if pts < 0 {
				pts = 0
			}
			if pts > r.MaxPoints {
				pts = r.MaxPoints
			}
			r.PointsAwarded = pts
			r.Correct = pts >= r.MaxPoints
			r.Pending = false
			r.Comment = u.Comment
		}
		score += r.PointsAwarded
	}
	a.Score = score
	if a.TotalPoints > 0 {
		a.Percentage = grading.Round2(score / a.TotalPoints * 100)
	}
	q, err := s.store.GetQuizAdmin(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	a.Passed = a.Percentage >= float64(q.PassingScore)
	if err := s.store.UpdateResults(ctx, a); err != nil {
		return Attempt{}, err
	}
	s.record(ctx, "AttemptRegraded", a.ID, map[string]string{"quiz_id": a.QuizID, "user_id": a.UserID})
	return a, nil
}

// finalize applies the terminal transition via the store's CAS, then grades
// the answer set frozen by that flip. Grading after the close means an answer
// accepted a moment before submission is always part of the grade. When a
// concurrent caller wins the close this returns ErrInvalidState.
func (s *Service) finalize(ctx context.Context, q Quiz, a Attempt, status AttemptStatus) (Attempt, error) {
	closed, err := s.store.CloseAttempt(ctx, a.ID, status, s.now().Unix())
	if err != nil {
		return Attempt{}, err
	}
	sum := s.grader.Grade(toGradingQs(q), closed.Answers, q.PassingScore)
	closed.Score = sum.Score
	closed.TotalPoints = sum.TotalPoints
	closed.Percentage = sum.Percentage
	closed.Passed = sum.Passed
	closed.Results = toResults(sum)
	if err := s.store.UpdateResults(ctx, closed); err != nil {
		return Attempt{}, err
	}
	typ := "AttemptSubmitted"
	if status == StatusExpired {
		typ = "AttemptExpired"
	}
	s.record(ctx, typ, closed.ID, map[string]interface{}{
		"quiz_id": closed.QuizID, "user_id": closed.UserID,
		"score": closed.Score, "percentage": closed.Percentage, "passed": closed.Passed,
	})
	return closed, nil
}

// expire force-closes a stale in-progress attempt, grading whatever answers
// it holds. Losing the finalize race means someone else already closed it;
// that is fine for the caller.
func (s *Service) expire(ctx context.Context, q Quiz, a Attempt) (Attempt, error) {
	closed, err := s.finalize(ctx, q, a, StatusExpired)
	if errors.Is(err, ErrInvalidState) {
		return s.store.GetAttempt(ctx, a.ID)
	}
	return closed, err
}

func (s *Service) ownedAttempt(ctx context.Context, userID, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrUnauthorized
	}
	return a, nil
}

func (s *Service) record(ctx context.Context, typ, key string, data interface{}) {
	if s.events != nil {
		s.events.Record(ctx, typ, key, data)
	}
}

func hasQuestion(q Quiz, questionID string) bool {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return true
		}
	}
	return false
}

// toGradingQs maps the quiz's questions, canonical order, onto the grader's
// minimal view.
func toGradingQs(q Quiz) []grading.Q {
	qs := make([]Question, len(q.Questions))
	copy(qs, q.Questions)
	sortQuestions(qs)
	out := make([]grading.Q, len(qs))
	for i, question := range qs {
		out[i] = grading.Q{
			ID:        question.ID,
			Type:      string(question.Type),
			Points:    question.Points,
			AnswerKey: question.AnswerKey,
		}
	}
	return out
}

func toResults(sum grading.Summary) []QuestionResult {
	out := make([]QuestionResult, len(sum.PerQuestion))
	for i, r := range sum.PerQuestion {
		out[i] = QuestionResult{
			QuestionID:    r.QuestionID,
			Correct:       r.Correct,
			Pending:       r.NeedsManual,
			PointsAwarded: r.AutoPoints,
			MaxPoints:     r.MaxPoints,
		}
	}
	return out
}

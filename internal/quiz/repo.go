package quiz

import "context"

type ListOpts struct {
	Q      string // title substring filter
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status string // optional: in_progress|completed|expired|abandoned
	Limit  int
	Offset int
	Sort   string // started_at|completed_at desc (default: started_at desc)
}

// Store is the persistence collaborator. Implementations must make
// CreateAttempt, SaveAnswer and CloseAttempt atomic with respect to concurrent calls on
// the same attempt or the same (quiz, user) pair; see SQLStore.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)      // student-safe (no answer keys)
	GetQuizAdmin(ctx context.Context, id string) (Quiz, error) // full quiz, for grading/teachers
	GetQuizByLesson(ctx context.Context, lessonID string) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)

	// CreateAttempt persists a fresh in-progress attempt. It fails with
	// ErrAttemptInProgress when the user already holds a live attempt on the
	// quiz, atomically with respect to concurrent creates.
	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)

	// SaveAnswer upserts one response while the attempt is in progress;
	// ErrInvalidState once the attempt is terminal. Concurrent saves on the
	// same attempt must all survive: no save may erase another's answer.
	SaveAnswer(ctx context.Context, attemptID, questionID string, response interface{}) error

	// CloseAttempt flips the attempt out of in_progress into the given
	// terminal status, stamping completedAt, and returns the frozen attempt
	// state. Exactly one concurrent caller wins; losers get ErrInvalidState.
	// The flip freezes the answer set: SaveAnswer fails from then on.
	CloseAttempt(ctx context.Context, id string, status AttemptStatus, completedAt int64) (Attempt, error)

	// UpdateResults rewrites score fields and results on a terminal attempt
	// (initial grading and manual review). Status is never changed.
	UpdateResults(ctx context.Context, a Attempt) error

	// AttemptHistory returns the user's attempts for a quiz, started_at desc.
	AttemptHistory(ctx context.Context, quizID, userID string) ([]Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}

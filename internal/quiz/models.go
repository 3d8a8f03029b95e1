package quiz

// QuestionType is the closed set of gradable question kinds. Grading dispatch
// is by this value; adding a type means adding a strategy, not a runtime guess.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"` // empty for free-text types
	AnswerKey []string     `json:"answer_key,omitempty"`
	Points    float64      `json:"points"`
	Position  int          `json:"position"` // canonical (scoring) order
}

// Quiz is the assessment configuration for a lesson (0..1 quiz per lesson).
type Quiz struct {
	ID               string     `json:"id"`
	LessonID         string     `json:"lesson_id"`
	Title            string     `json:"title"`
	PassingScore     int        `json:"passing_score"`      // percentage, 0-100
	TimeLimitMin     int        `json:"time_limit_min"`     // 0 = untimed
	AllowRetake      bool       `json:"allow_retake"`
	MaxAttempts      int        `json:"max_attempts"`       // 0 = unlimited (when AllowRetake)
	ShuffleQuestions bool       `json:"shuffle_questions"`  // presentation order only
	Questions        []Question `json:"questions,omitempty"`
	CreatedAt        int64      `json:"created_at,omitempty"`
}

// EffectiveMaxAttempts folds the retake flag into the attempt cap:
// AllowRetake=false means exactly one attempt regardless of the stored cap.
func (q Quiz) EffectiveMaxAttempts() int {
	if !q.AllowRetake {
		return 1
	}
	return q.MaxAttempts
}

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusExpired    AttemptStatus = "expired"
	StatusAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further transition is permitted.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusAbandoned
}

// QuestionResult is one question's graded outcome within an attempt.
type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	Correct       bool    `json:"correct"`
	Pending       bool    `json:"pending,omitempty"` // needs manual review
	PointsAwarded float64 `json:"points_awarded"`
	MaxPoints     float64 `json:"max_points"`
	Comment       string  `json:"comment,omitempty"` // reviewer note from manual grading
}

// Attempt is one user's single pass through a quiz. Score fields are written
// exactly once at grading; on abandoned attempts they stay zero.
type Attempt struct {
	ID          string                 `json:"id"`
	QuizID      string                 `json:"quiz_id"`
	UserID      string                 `json:"user_id"`
	Status      AttemptStatus          `json:"status"`
	StartedAt   int64                  `json:"started_at"`
	CompletedAt int64                  `json:"completed_at,omitempty"` // unix secs; 0 while in progress
	Answers     map[string]interface{} `json:"answers"`                // questionID -> response payload
	Score       float64                `json:"score"`
	TotalPoints float64                `json:"total_points"`
	Percentage  float64                `json:"percentage"`
	Passed      bool                   `json:"passed"`

	// QuestionOrder is the persisted presentation order (question IDs) when the
	// quiz shuffles; nil means canonical order. Never consulted by scoring.
	QuestionOrder []string         `json:"question_order,omitempty"`
	Results       []QuestionResult `json:"results,omitempty"`
}

// QuizSummary is the list-view projection (no questions, no keys).
type QuizSummary struct {
	ID               string `json:"id"`
	LessonID         string `json:"lesson_id"`
	Title            string `json:"title"`
	PassingScore     int    `json:"passing_score"`
	TimeLimitMin     int    `json:"time_limit_min"`
	AllowRetake      bool   `json:"allow_retake"`
	MaxAttempts      int    `json:"max_attempts"`
	ShuffleQuestions bool   `json:"shuffle_questions"`
	QuestionCount    int    `json:"question_count"`
	CreatedAt        int64  `json:"created_at,omitempty"`
}

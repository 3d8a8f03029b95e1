package quiz

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps quizzes and attempts in maps, for tests and offline dev.
// The single mutex gives it the same atomicity guarantees the SQL store gets
// from its guarded updates.
type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt
}

func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return studentView(q), nil
}

func (m *memoryStore) GetQuizAdmin(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) GetQuizByLesson(_ context.Context, lessonID string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.quizzes {
		if q.LessonID == lessonID {
			return studentView(q), nil
		}
	}
	return Quiz{}, ErrNotFound
}

func (m *memoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]QuizSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizSummary, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		out = append(out, QuizSummary{
			ID:               q.ID,
			LessonID:         q.LessonID,
			Title:            q.Title,
			PassingScore:     q.PassingScore,
			TimeLimitMin:     q.TimeLimitMin,
			AllowRetake:      q.AllowRetake,
			MaxAttempts:      q.MaxAttempts,
			ShuffleQuestions: q.ShuffleQuestions,
			QuestionCount:    len(q.Questions),
			CreatedAt:        q.CreatedAt,
		})
	}
	return out, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.attempts {
		if existing.QuizID == a.QuizID && existing.UserID == a.UserID && existing.Status == StatusInProgress {
			return ErrAttemptInProgress
		}
	}
	m.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return copyAttempt(a), nil
}

func (m *memoryStore) SaveAnswer(_ context.Context, attemptID, questionID string, response interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusInProgress {
		return ErrInvalidState
	}
	if a.Answers == nil {
		a.Answers = map[string]interface{}{}
	}
	a.Answers[questionID] = response
	m.attempts[attemptID] = a
	return nil
}

func (m *memoryStore) CloseAttempt(_ context.Context, id string, status AttemptStatus, completedAt int64) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrInvalidState
	}
	a.Status = status
	a.CompletedAt = completedAt
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *memoryStore) UpdateResults(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Score = a.Score
	cur.TotalPoints = a.TotalPoints
	cur.Percentage = a.Percentage
	cur.Passed = a.Passed
	cur.Results = append([]QuestionResult(nil), a.Results...)
	m.attempts[a.ID] = cur
	return nil
}

func (m *memoryStore) AttemptHistory(_ context.Context, quizID, userID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			out = append(out, copyAttempt(a))
		}
	}
	sortAttemptsByStartDesc(out)
	return out, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && string(a.Status) != opts.Status {
			continue
		}
		out = append(out, copyAttempt(a))
	}
	sortAttemptsByStartDesc(out)
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func sortAttemptsByStartDesc(list []Attempt) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartedAt > list[j].StartedAt })
}

// studentView strips answer keys and fixes the canonical Position order for
// student-facing reads.
func studentView(q Quiz) Quiz {
	qs := make([]Question, len(q.Questions))
	copy(qs, q.Questions)
	sortQuestions(qs)
	for i := range qs {
		qs[i].AnswerKey = nil
	}
	q.Questions = qs
	return q
}

func copyAttempt(a Attempt) Attempt {
	if a.Answers != nil {
		ans := make(map[string]interface{}, len(a.Answers))
		for k, v := range a.Answers {
			ans[k] = v
		}
		a.Answers = ans
	}
	a.Results = append([]QuestionResult(nil), a.Results...)
	a.QuestionOrder = append([]string(nil), a.QuestionOrder...)
	return a
}

package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore persists quizzes and attempts through database/sql, working against
// both the sqlite and postgres schemas from internal/db. Status transitions
// are guarded updates (`... WHERE status='in_progress'`), so concurrent
// finalizations of the same attempt resolve to exactly one winner. The partial
// unique index on (quiz_id, user_id) for live attempts makes CreateAttempt
// race-safe without a table lock.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	createdAt := q.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes
		(id, lesson_id, title, passing_score, time_limit_min, allow_retake, max_attempts, shuffle_questions, questions_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
		  lesson_id=EXCLUDED.lesson_id, title=EXCLUDED.title,
		  passing_score=EXCLUDED.passing_score, time_limit_min=EXCLUDED.time_limit_min,
		  allow_retake=EXCLUDED.allow_retake, max_attempts=EXCLUDED.max_attempts,
		  shuffle_questions=EXCLUDED.shuffle_questions, questions_json=EXCLUDED.questions_json`,
		q.ID, q.LessonID, q.Title, q.PassingScore, q.TimeLimitMin,
		q.AllowRetake, q.MaxAttempts, q.ShuffleQuestions, string(qj), createdAt)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizAdmin(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return studentView(q), nil
}

func (s *SQLStore) GetQuizAdmin(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, quizSelect+` WHERE id=$1`, id)
	return scanQuiz(row)
}

func (s *SQLStore) GetQuizByLesson(ctx context.Context, lessonID string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, quizSelect+` WHERE lesson_id=$1`, lessonID)
	q, err := scanQuiz(row)
	if err != nil {
		return Quiz{}, err
	}
	return studentView(q), nil
}

const quizSelect = `SELECT id, lesson_id, title, passing_score, time_limit_min,
	allow_retake, max_attempts, shuffle_questions, questions_json, created_at FROM quizzes`

func scanQuiz(row *sql.Row) (Quiz, error) {
	var q Quiz
	var qjson string
	err := row.Scan(&q.ID, &q.LessonID, &q.Title, &q.PassingScore, &q.TimeLimitMin,
		&q.AllowRetake, &q.MaxAttempts, &q.ShuffleQuestions, &qjson, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode questions: %w", err)
	}
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, lesson_id, title, passing_score, time_limit_min,
		allow_retake, max_attempts, shuffle_questions, questions_json, created_at
		FROM quizzes`
	args := []interface{}{}
	if opts.Q != "" {
		query += ` WHERE title LIKE $1`
		args = append(args, "%"+opts.Q+"%")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []QuizSummary{}
	for rows.Next() {
		var sum QuizSummary
		var qjson string
		if err := rows.Scan(&sum.ID, &sum.LessonID, &sum.Title, &sum.PassingScore, &sum.TimeLimitMin,
			&sum.AllowRetake, &sum.MaxAttempts, &sum.ShuffleQuestions, &qjson, &sum.CreatedAt); err != nil {
			return nil, err
		}
		var qs []Question
		if err := json.Unmarshal([]byte(qjson), &qs); err == nil {
			sum.QuestionCount = len(qs)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, a.QuizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	ansJSON, _ := json.Marshal(a.Answers)
	orderJSON, _ := json.Marshal(a.QuestionOrder)
	_, err := s.db.ExecContext(ctx, `INSERT INTO quiz_attempts
		(id, quiz_id, user_id, status, started_at, answers_json, question_order_json, score, total_points, percentage, passed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,0,$8)`,
		a.ID, a.QuizID, a.UserID, string(a.Status), a.StartedAt, string(ansJSON), string(orderJSON), false)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttemptInProgress
		}
		return err
	}
	return nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, quiz_id, user_id, status, started_at, completed_at,
		answers_json, question_order_json, results_json, score, total_points, percentage, passed
		FROM quiz_attempts WHERE id=$1`, id)
	return scanAttempt(row.Scan)
}

func scanAttempt(scan func(...interface{}) error) (Attempt, error) {
	var a Attempt
	var status string
	var completedAt sql.NullInt64
	var ansJSON string
	var orderJSON, resultsJSON sql.NullString
	err := scan(&a.ID, &a.QuizID, &a.UserID, &status, &a.StartedAt, &completedAt,
		&ansJSON, &orderJSON, &resultsJSON, &a.Score, &a.TotalPoints, &a.Percentage, &a.Passed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	if completedAt.Valid {
		a.CompletedAt = completedAt.Int64
	}
	if err := json.Unmarshal([]byte(ansJSON), &a.Answers); err != nil || a.Answers == nil {
		a.Answers = map[string]interface{}{}
	}
	if orderJSON.Valid && orderJSON.String != "" {
		_ = json.Unmarshal([]byte(orderJSON.String), &a.QuestionOrder)
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		_ = json.Unmarshal([]byte(resultsJSON.String), &a.Results)
	}
	return a, nil
}

// SaveAnswer upserts one response with an optimistic swap on the answers
// blob: the update lands only if the blob is unchanged since the read, so
// concurrent saves on the same attempt never erase each other. Lost swaps
// re-read and retry until the write lands or the attempt leaves in_progress.
func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID string, response interface{}) error {
	for {
		var status, ansJSON string
		err := s.db.QueryRowContext(ctx,
			`SELECT status, answers_json FROM quiz_attempts WHERE id=$1`, attemptID).
			Scan(&status, &ansJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if AttemptStatus(status) != StatusInProgress {
			return ErrInvalidState
		}
		answers := map[string]interface{}{}
		if ansJSON != "" {
			if err := json.Unmarshal([]byte(ansJSON), &answers); err != nil || answers == nil {
				answers = map[string]interface{}{}
			}
		}
		answers[questionID] = response
		buf, err := json.Marshal(answers)
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE quiz_attempts SET answers_json=$1 WHERE id=$2 AND status=$3 AND answers_json=$4`,
			string(buf), attemptID, string(StatusInProgress), ansJSON)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		// Lost the swap to a concurrent save or close; re-read and retry.
	}
}

// CloseAttempt is the terminal compare-and-swap: it flips status out of
// in_progress and stamps the completion time, touching nothing else. Exactly
// one concurrent caller wins; losers get ErrInvalidState. The flip freezes
// the answers — SaveAnswer's guard rejects writes from then on — so the
// returned attempt carries the authoritative final answer set.
func (s *SQLStore) CloseAttempt(ctx context.Context, id string, status AttemptStatus, completedAt int64) (Attempt, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quiz_attempts SET status=$1, completed_at=$2 WHERE id=$3 AND status=$4`,
		string(status), completedAt, id, string(StatusInProgress))
	if err != nil {
		return Attempt{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, err
	}
	if n == 0 {
		// Either the attempt is gone or someone else already closed it.
		if _, getErr := s.GetAttempt(ctx, id); getErr != nil {
			return Attempt{}, getErr
		}
		return Attempt{}, ErrInvalidState
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) UpdateResults(ctx context.Context, a Attempt) error {
	resultsJSON, _ := json.Marshal(a.Results)
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET
		results_json=$1, score=$2, total_points=$3, percentage=$4, passed=$5
		WHERE id=$6`,
		string(resultsJSON), a.Score, a.TotalPoints, a.Percentage, a.Passed, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) AttemptHistory(ctx context.Context, quizID, userID string) ([]Attempt, error) {
	return s.queryAttempts(ctx, `SELECT id, quiz_id, user_id, status, started_at, completed_at,
		answers_json, question_order_json, results_json, score, total_points, percentage, passed
		FROM quiz_attempts WHERE quiz_id=$1 AND user_id=$2 ORDER BY started_at DESC`, quizID, userID)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	where := []string{}
	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	query := `SELECT id, quiz_id, user_id, status, started_at, completed_at,
		answers_json, question_order_json, results_json, score, total_points, percentage, passed
		FROM quiz_attempts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	order := ` ORDER BY started_at DESC`
	if opts.Sort == "completed_at" {
		order = ` ORDER BY completed_at DESC`
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += order + fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, opts.Offset)
	return s.queryAttempts(ctx, query, args...)
}

func (s *SQLStore) queryAttempts(ctx context.Context, query string, args ...interface{}) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// isUniqueViolation sniffs driver-specific unique-index errors:
// "UNIQUE constraint failed" (sqlite), SQLSTATE 23505 / "duplicate key"
// (postgres).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}

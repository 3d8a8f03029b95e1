package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

// POST /quizzes — teacher uploads a quiz definition (questions inline).
func UploadQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if q.Title == "" || len(q.Questions) == 0 {
			http.Error(w, "title and questions required", http.StatusBadRequest)
			return
		}
		if q.PassingScore < 0 || q.PassingScore > 100 {
			http.Error(w, "passing_score must be 0-100", http.StatusBadRequest)
			return
		}
		for i := range q.Questions {
			question := &q.Questions[i]
			if !question.Type.Valid() {
				http.Error(w, "unknown question type: "+string(question.Type), http.StatusBadRequest)
				return
			}
			if question.Points <= 0 {
				http.Error(w, "question points must be positive", http.StatusBadRequest)
				return
			}
			if question.ID == "" {
				question.ID = uuid.NewString()
			}
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if err := store.PutQuiz(r.Context(), q); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes/{quizID} — answer keys stripped unless the caller may see them.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())
		var (
			q   quiz.Quiz
			err error
		)
		if rbac.HasPermission(role, "quiz:view-keys") {
			q, err = store.GetQuizAdmin(r.Context(), id)
		} else {
			q, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes/{quizID}/questions — canonical-order question set with answer
// keys and the points total, for graders.
func GetQuizQuestionsHandler(bank *quiz.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		qs, err := bank.QuestionsFor(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		total, err := bank.TotalPoints(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"questions":    qs,
			"total_points": total,
		})
	}
}

// GET /lessons/{lessonID}/quiz — the lesson's quiz (0..1), student-safe.
func GetLessonQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuizByLesson(r.Context(), chi.URLParam(r, "lessonID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes?q=...&limit=50&offset=0
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

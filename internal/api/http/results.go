package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

type resultsView struct {
	AttemptID   string                `json:"attempt_id"`
	QuizID      string                `json:"quiz_id"`
	Status      quiz.AttemptStatus    `json:"status"`
	Score       float64               `json:"score"`
	TotalPoints float64               `json:"total_points"`
	Percentage  float64               `json:"percentage"`
	Passed      bool                  `json:"passed"`
	Results     []quiz.QuestionResult `json:"results"`
}

// GET /attempts/{attemptID}/results — graded breakdown for display. Only
// terminal graded attempts have results; a live attempt is a conflict.
func GetResultsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		a, err := svc.GetAttempt(r.Context(), sub, rbac.HasPermission(role, "attempt:view-all"), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !a.Status.Terminal() {
			writeErr(w, quiz.ErrInvalidState)
			return
		}
		writeJSON(w, http.StatusOK, resultsView{
			AttemptID:   a.ID,
			QuizID:      a.QuizID,
			Status:      a.Status,
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			Percentage:  a.Percentage,
			Passed:      a.Passed,
			Results:     a.Results,
		})
	}
}

// POST /attempts/{attemptID}/grades — resolve pending manual-review questions.
// Body: { "<questionID>": { "points": 5, "comment": "..." }, ... }
func ManualGradeHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var updates map[string]quiz.ManualGradeInput
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(updates) == 0 {
			http.Error(w, "no updates", http.StatusBadRequest)
			return
		}
		a, err := svc.ApplyManualGrades(r.Context(), chi.URLParam(r, "attemptID"), updates)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

package http

import (
	"net/http"

	"github.com/coursekit/coursekit-lms/internal/audit"
)

// GET /events?limit=100 — newest audit events, admin only.
func RecentEventsHandler(rec *audit.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := rec.Recent(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

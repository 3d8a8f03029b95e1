package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coursekit/coursekit-lms/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the engine's failure taxonomy onto HTTP. Policy denials and
// illegal transitions are conflicts, expiry is 410, everything unknown is 500.
func writeErr(w http.ResponseWriter, err error) {
	code, status := "internal", http.StatusInternalServerError
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, quiz.ErrUnauthorized):
		code, status = "unauthorized", http.StatusForbidden
	case errors.Is(err, quiz.ErrRetakeNotAllowed):
		code, status = "retake_not_allowed", http.StatusConflict
	case errors.Is(err, quiz.ErrMaxAttemptsReached):
		code, status = "max_attempts_reached", http.StatusConflict
	case errors.Is(err, quiz.ErrAttemptInProgress):
		code, status = "attempt_in_progress", http.StatusConflict
	case errors.Is(err, quiz.ErrInvalidState):
		code, status = "invalid_state", http.StatusConflict
	case errors.Is(err, quiz.ErrExpired):
		code, status = "expired", http.StatusGone
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

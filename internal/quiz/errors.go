package quiz

import "errors"

// Failure taxonomy for the attempt engine. Handlers map these to HTTP status;
// everything else surfaces as a 500.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("not the attempt owner")
	ErrRetakeNotAllowed   = errors.New("retake not allowed")
	ErrMaxAttemptsReached = errors.New("max attempts reached")
	ErrAttemptInProgress  = errors.New("attempt already in progress")
	ErrInvalidState       = errors.New("operation not valid for attempt status")
	ErrExpired            = errors.New("time limit exceeded")
)

package quiz

import "time"

// DenyReason says why a new attempt may not start.
type DenyReason string

const (
	DenyRetakeNotAllowed   DenyReason = "retake_not_allowed"
	DenyMaxAttemptsReached DenyReason = "max_attempts_reached"
	DenyAttemptInProgress  DenyReason = "attempt_in_progress"
)

// Decision is the policy verdict for a start request. StaleAttemptIDs lists
// in-progress attempts whose time limit has already elapsed; the lifecycle
// manager must force-close them (as Expired) before creating a new attempt.
type Decision struct {
	Allow           bool
	Reason          DenyReason
	StaleAttemptIDs []string
}

// Err maps a deny reason onto the engine's error taxonomy.
func (d Decision) Err() error {
	switch d.Reason {
	case DenyRetakeNotAllowed:
		return ErrRetakeNotAllowed
	case DenyMaxAttemptsReached:
		return ErrMaxAttemptsReached
	case DenyAttemptInProgress:
		return ErrAttemptInProgress
	}
	return nil
}

// CanStart evaluates the quiz's retake policy against the user's attempt
// history. Pure: it persists nothing and reads nothing beyond its arguments.
//
// Checks run in order: retake, attempt cap, live attempt. A live
// (non-expired) in-progress attempt blocks a new start: a user holds at most
// one live attempt per quiz. An in-progress attempt past its time limit is
// treated as terminal here; it counts toward the attempt cap and is reported
// for force-closing.
func CanStart(q Quiz, history []Attempt, now time.Time) Decision {
	var d Decision
	used := 0
	live := false
	for _, a := range history {
		switch {
		case a.Status.Terminal():
			used++
		case a.Status == StatusInProgress:
			if AttemptExpired(q, a, now) {
				d.StaleAttemptIDs = append(d.StaleAttemptIDs, a.ID)
				used++
				continue
			}
			live = true
		}
	}
	if !q.AllowRetake && used >= 1 {
		d.Reason = DenyRetakeNotAllowed
		return d
	}
	if max := q.EffectiveMaxAttempts(); max > 0 && used >= max {
		d.Reason = DenyMaxAttemptsReached
		return d
	}
	if live {
		d.Reason = DenyAttemptInProgress
		return d
	}
	d.Allow = true
	return d
}

// AttemptExpired reports whether the attempt's wall-clock budget is spent.
// Untimed quizzes never expire.
func AttemptExpired(q Quiz, a Attempt, now time.Time) bool {
	if q.TimeLimitMin <= 0 {
		return false
	}
	elapsed := now.Unix() - a.StartedAt
	return elapsed >= int64(q.TimeLimitMin)*60
}

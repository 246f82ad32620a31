package session

import "time"

// Reason explains why a session ended.
type Reason string

const (
	ReasonExhausted     Reason = "exhausted"
	ReasonFatal         Reason = "fatal_error"
	ReasonCancelled     Reason = "cancelled"
	ReasonAborted       Reason = "aborted"
	ReasonTriggerFailed Reason = "trigger_failed"
)

// Summary is the final report of a session.
type Summary struct {
	SessionID             string        `json:"session_id"`
	DeviceID              string        `json:"device_id"`
	Policy                Policy        `json:"policy"`
	State                 State         `json:"state"`
	Reason                Reason        `json:"reason"`
	StartedAt             time.Time     `json:"started_at"`
	EndedAt               time.Time     `json:"ended_at"`
	Attempts              []Attempt     `json:"attempts"`
	TotalAttempts         int           `json:"total_attempts"`
	SuccessCount          int           `json:"success_count"`
	SuccessRatio          float64       `json:"success_ratio"`
	TotalElapsed          time.Duration `json:"total_elapsed"`
	LastElapsed           time.Duration `json:"last_elapsed"`
	AverageSuccessElapsed time.Duration `json:"average_success_elapsed"`
	StaleCallbacks        int           `json:"stale_callbacks"`
	Err                   string        `json:"error,omitempty"`
}

// Summarize derives a summary from an attempt log.
func Summarize(sessionID, deviceID string, policy Policy, attempts []Attempt) Summary {
	log := make([]Attempt, len(attempts))
	copy(log, attempts)
	return Summary{
		SessionID:             sessionID,
		DeviceID:              deviceID,
		Policy:                policy,
		Attempts:              log,
		TotalAttempts:         len(log),
		SuccessCount:          successCount(log),
		SuccessRatio:          successRatio(log),
		TotalElapsed:          totalElapsed(log),
		LastElapsed:           lastElapsed(log),
		AverageSuccessElapsed: averageSuccessElapsed(log),
	}
}

// LastSuccess returns the most recent successful attempt, if any.
func (s Summary) LastSuccess() (Attempt, bool) {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].Recorded && s.Attempts[i].Outcome.Kind == OutcomeSuccess {
			return s.Attempts[i], true
		}
	}
	return Attempt{}, false
}

// Duration is the wall-clock span of the session.
func (s Summary) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

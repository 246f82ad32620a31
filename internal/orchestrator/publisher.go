package orchestrator

import (
	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

// Publisher receives session results. Calls come from the session sequencer
// and must return in bounded time; the orchestrator never retries a delivery.
type Publisher interface {
	OnAttemptRecorded(sessionID string, attempt session.Attempt)
	OnSessionCompleted(summary session.Summary)
}

// StartObserver is implemented by publishers that want to know about a new session.
type StartObserver interface {
	OnSessionStarted(sessionID string, policy session.Policy)
}

// StaleObserver is implemented by publishers that track discarded callbacks.
// It may be called from the device's callback goroutine.
type StaleObserver interface {
	OnStaleCallback(cb device.Callback, reason string)
}

type nopPublisher struct{}

func (nopPublisher) OnAttemptRecorded(string, session.Attempt) {}
func (nopPublisher) OnSessionCompleted(session.Summary)        {}

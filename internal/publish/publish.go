// Package publish holds the result sinks a session reports to. Every type here
// implements orchestrator.Publisher; most also observe session starts and
// stale callbacks.
package publish

import (
	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/session"
)

// Multi fans every call out to each publisher in order.
type Multi []orchestrator.Publisher

func (m Multi) OnSessionStarted(id string, p session.Policy) {
	for _, pub := range m {
		if so, ok := pub.(orchestrator.StartObserver); ok {
			so.OnSessionStarted(id, p)
		}
	}
}

func (m Multi) OnAttemptRecorded(id string, a session.Attempt) {
	for _, pub := range m {
		pub.OnAttemptRecorded(id, a)
	}
}

func (m Multi) OnSessionCompleted(s session.Summary) {
	for _, pub := range m {
		pub.OnSessionCompleted(s)
	}
}

func (m Multi) OnStaleCallback(cb device.Callback, reason string) {
	for _, pub := range m {
		if so, ok := pub.(orchestrator.StaleObserver); ok {
			so.OnStaleCallback(cb, reason)
		}
	}
}

// Func adapts closures. Nil fields are skipped.
type Func struct {
	Started   func(id string, p session.Policy)
	Attempt   func(id string, a session.Attempt)
	Completed func(s session.Summary)
	Stale     func(cb device.Callback, reason string)
}

func (f Func) OnSessionStarted(id string, p session.Policy) {
	if f.Started != nil {
		f.Started(id, p)
	}
}

func (f Func) OnAttemptRecorded(id string, a session.Attempt) {
	if f.Attempt != nil {
		f.Attempt(id, a)
	}
}

func (f Func) OnSessionCompleted(s session.Summary) {
	if f.Completed != nil {
		f.Completed(s)
	}
}

func (f Func) OnStaleCallback(cb device.Callback, reason string) {
	if f.Stale != nil {
		f.Stale(cb, reason)
	}
}

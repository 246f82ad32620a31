package orchestrator

import (
	"context"

	"github.com/fakeyudi/readloop/internal/session"
)

// Snapshot is a point-in-time view of a running session.
type Snapshot struct {
	SessionID       string
	State           session.State
	Policy          session.Policy
	Attempts        []session.Attempt
	Outstanding     int
	CancelRequested bool
}

// Handle controls one session started by StartSession.
type Handle struct {
	r *run
}

func (h *Handle) ID() string { return h.r.id }

// RequestCancel asks the session to stop after the current attempt. The
// outstanding read, if any, is still recorded. Calling it again is a no-op.
func (h *Handle) RequestCancel() {
	if !h.r.gate.RequestCancel() {
		return
	}
	h.r.post(cancelEvent{})
}

// Done is closed when the session reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.r.done }

// Snapshot reads the session state through its sequencer.
func (h *Handle) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case h.r.mailbox <- snapshotEvent{reply: reply}:
	case <-h.r.done:
		return h.r.finalSnapshot()
	}
	select {
	case s := <-reply:
		return s
	case <-h.r.done:
		return h.r.finalSnapshot()
	}
}

// Wait blocks until the session ends or ctx is done. The returned error is
// the session's own failure (a trigger that could not be issued, or an
// abort), or ctx's error if the wait gave up first.
func (h *Handle) Wait(ctx context.Context) (session.Summary, error) {
	select {
	case <-h.r.done:
		return h.r.summary, h.r.err
	case <-ctx.Done():
		return session.Summary{}, ctx.Err()
	}
}

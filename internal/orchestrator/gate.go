package orchestrator

import (
	"sync"
	"sync/atomic"
)

// Gate is a cooperative cancellation flag for one session. It is set once and
// never cleared; the sequencer only samples it at state boundaries.
type Gate struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// RequestCancel sets the flag. It reports whether this call was the first.
func (g *Gate) RequestCancel() bool {
	first := false
	g.once.Do(func() {
		g.requested.Store(true)
		close(g.done)
		first = true
	})
	return first
}

func (g *Gate) Requested() bool {
	return g.requested.Load()
}

// Done is closed once cancellation is requested, for interruptible waits.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

package publish

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/session"
)

// Async puts a bounded queue in front of a slow publisher. When the queue is
// full the call is dropped and counted, so the session sequencer never waits
// on the sink.
type Async struct {
	next   orchestrator.Publisher
	logger zerolog.Logger
	onDrop func()

	mu      sync.Mutex
	closed  bool
	dropped int
	queue   chan func()
	wg      sync.WaitGroup
}

type AsyncOption func(*Async)

func WithDropHook(fn func()) AsyncOption {
	return func(a *Async) { a.onDrop = fn }
}

func WithAsyncLogger(l zerolog.Logger) AsyncOption {
	return func(a *Async) { a.logger = l }
}

// NewAsync starts the delivery goroutine. Call Close to flush and stop it.
func NewAsync(next orchestrator.Publisher, size int, opts ...AsyncOption) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:   next,
		logger: zerolog.Nop(),
		queue:  make(chan func(), size),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.wg.Add(1)
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer a.wg.Done()
	for fn := range a.queue {
		fn()
	}
}

func (a *Async) enqueue(what string, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- fn:
	default:
		a.dropped++
		a.logger.Warn().Str("event", what).Int("dropped", a.dropped).Msg("publisher queue full, result dropped")
		if a.onDrop != nil {
			a.onDrop()
		}
	}
}

func (a *Async) OnSessionStarted(id string, p session.Policy) {
	so, ok := a.next.(orchestrator.StartObserver)
	if !ok {
		return
	}
	a.enqueue("session_started", func() { so.OnSessionStarted(id, p) })
}

func (a *Async) OnAttemptRecorded(id string, at session.Attempt) {
	a.enqueue("attempt", func() { a.next.OnAttemptRecorded(id, at) })
}

func (a *Async) OnSessionCompleted(s session.Summary) {
	a.enqueue("session_completed", func() { a.next.OnSessionCompleted(s) })
}

func (a *Async) OnStaleCallback(cb device.Callback, reason string) {
	so, ok := a.next.(orchestrator.StaleObserver)
	if !ok {
		return
	}
	a.enqueue("stale", func() { so.OnStaleCallback(cb, reason) })
}

// Dropped reports how many calls were discarded.
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close delivers what is queued and stops the goroutine. Later calls are ignored.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}

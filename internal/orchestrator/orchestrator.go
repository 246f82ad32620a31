package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

// ErrSessionActive is returned by StartSession while another session is live.
var ErrSessionActive = errors.New("orchestrator: a session is already running on this device")

// mailboxSize bounds how many callbacks can queue ahead of the sequencer.
// Deliver blocks once it is full, which only happens with a misbehaving driver.
const mailboxSize = 32

// Orchestrator runs read sessions against one device, one session at a time.
type Orchestrator struct {
	dev        device.Device
	pub        Publisher
	classifier *Classifier
	clock      Clock
	ids        IDGenerator
	logger     zerolog.Logger

	mu     sync.Mutex
	active *run

	stale atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets where attempts and summaries are reported.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.pub = p
		}
	}
}

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c *Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIDGenerator sets how session ids and read serials are made.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithLogger sets the base logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New builds an orchestrator for dev. The caller wires Deliver as the
// device's callback sink.
func New(dev device.Device, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dev:        dev,
		pub:        nopPublisher{},
		classifier: DefaultClassifier(),
		clock:      realClock{},
		ids:        UUIDs,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Str("device", dev.DeviceID()).Logger()
	return o
}

// Classifier returns the active classification table.
func (o *Orchestrator) Classifier() *Classifier { return o.classifier }

// StaleCallbacks counts every discarded callback since New.
func (o *Orchestrator) StaleCallbacks() int64 { return o.stale.Load() }

// StartSession validates policy and starts a session on its own sequencer.
// Cancelling ctx aborts the session; use Handle.RequestCancel for a
// cooperative stop.
func (o *Orchestrator) StartSession(ctx context.Context, policy session.Policy) (*Handle, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.active != nil {
		id := o.active.id
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, id)
	}
	r := newRun(o, o.ids.NewID(), policy)
	o.active = r
	o.mu.Unlock()

	if so, ok := o.pub.(StartObserver); ok {
		so.OnSessionStarted(r.id, policy)
	}
	r.logger.Info().
		Int("max_attempts", policy.MaxAttempts).
		Dur("delay", policy.InterAttemptDelay).
		Bool("stop_on_fatal", policy.StopOnFatalError).
		Msg("session started")

	go r.loop(ctx)
	return &Handle{r: r}, nil
}

// Deliver hands a device callback to the session it belongs to. It is safe to
// call from any goroutine and is meant to be the device's Sink.
func (o *Orchestrator) Deliver(cb device.Callback) {
	o.mu.Lock()
	r := o.active
	live := r != nil && r.id == cb.SessionID
	if live {
		r.senders.Add(1)
	}
	o.mu.Unlock()

	if !live {
		o.discard(cb, "unknown session")
		return
	}
	defer r.senders.Done()
	select {
	case r.mailbox <- callbackEvent{cb: cb}:
	case <-r.closing:
		o.discard(cb, "session finished")
	}
}

func (o *Orchestrator) discard(cb device.Callback, reason string) {
	o.stale.Add(1)
	o.logger.Debug().
		Str("session", cb.SessionID).
		Int("attempt", cb.Attempt).
		Str("tag", string(cb.Tag)).
		Str("reason", reason).
		Msg("stale callback discarded")
	if so, ok := o.pub.(StaleObserver); ok {
		so.OnStaleCallback(cb, reason)
	}
}

func (o *Orchestrator) release(r *run) {
	o.mu.Lock()
	if o.active == r {
		o.active = nil
	}
	o.mu.Unlock()
}

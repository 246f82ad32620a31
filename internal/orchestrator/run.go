package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

type event interface{ isEvent() }

type callbackEvent struct{ cb device.Callback }

type delayElapsedEvent struct{ next int }

type attemptTimeoutEvent struct{ attempt int }

type cancelEvent struct{}

type snapshotEvent struct{ reply chan<- Snapshot }

func (callbackEvent) isEvent()       {}
func (delayElapsedEvent) isEvent()   {}
func (attemptTimeoutEvent) isEvent() {}
func (cancelEvent) isEvent()         {}
func (snapshotEvent) isEvent()       {}

// run is one session. Every field below senders is owned by the sequencer
// goroutine; summary and err are written once before done is closed.
// closing is closed once no new callback may be queued; done follows after
// the mailbox has been drained.
type run struct {
	o       *Orchestrator
	id      string
	policy  session.Policy
	gate    *Gate
	logger  zerolog.Logger
	mailbox chan event
	closing chan struct{}
	done    chan struct{}
	senders sync.WaitGroup

	state     session.State
	rec       *session.Recorder
	current   int
	startedAt time.Time
	stale     int

	summary session.Summary
	err     error
}

func newRun(o *Orchestrator, id string, policy session.Policy) *run {
	return &run{
		o:       o,
		id:      id,
		policy:  policy,
		gate:    NewGate(),
		logger:  o.logger.With().Str("session", id).Logger(),
		mailbox: make(chan event, mailboxSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		state:   session.StateIdle,
		rec:     session.NewRecorder(),
	}
}

// post hands an event to the sequencer unless the session already ended.
func (r *run) post(ev event) {
	select {
	case r.mailbox <- ev:
	case <-r.done:
	}
}

func (r *run) loop(ctx context.Context) {
	r.startedAt = r.o.clock.Now()
	r.trigger()
	for !r.state.Terminal() {
		select {
		case ev := <-r.mailbox:
			r.handle(ev)
		case <-ctx.Done():
			r.abort(ctx.Err())
		}
	}
}

func (r *run) handle(ev event) {
	switch ev := ev.(type) {
	case callbackEvent:
		r.onCallback(ev.cb)
	case delayElapsedEvent:
		r.onDelayElapsed(ev.next)
	case attemptTimeoutEvent:
		r.onAttemptTimeout(ev.attempt)
	case cancelEvent:
		r.onCancel()
	case snapshotEvent:
		ev.reply <- r.snapshot()
	}
}

func (r *run) trigger() {
	r.state = session.StateTriggering
	index := r.rec.Len() + 1
	serial := r.o.ids.NewID()
	startedAt := r.o.clock.Now()

	err := r.o.dev.TriggerRead(device.ReadRequest{SessionID: r.id, Attempt: index, Serial: serial})
	if err != nil {
		r.logger.Error().Err(err).Int("attempt", index).Msg("trigger failed")
		r.err = fmt.Errorf("session %s: trigger attempt %d: %w", r.id, index, err)
		r.finish(session.StateCompleted, session.ReasonTriggerFailed)
		return
	}
	if err := r.rec.Begin(index, serial, startedAt); err != nil {
		r.err = fmt.Errorf("session %s: %w", r.id, err)
		r.finish(session.StateCompleted, session.ReasonTriggerFailed)
		return
	}
	r.current = index
	r.state = session.StateAwaitingCallback
	r.logger.Debug().Int("attempt", index).Str("serial", serial).Msg("read triggered")

	if r.policy.AttemptTimeout > 0 {
		go r.watchAttempt(index, r.policy.AttemptTimeout)
	}
}

func (r *run) watchAttempt(index int, timeout time.Duration) {
	select {
	case <-r.o.clock.After(timeout):
		r.post(attemptTimeoutEvent{attempt: index})
	case <-r.done:
	}
}

func (r *run) onCallback(cb device.Callback) {
	if r.state != session.StateAwaitingCallback || cb.Attempt != r.current {
		r.stale++
		r.o.discard(cb, fmt.Sprintf("attempt %d is not outstanding", cb.Attempt))
		return
	}
	at := cb.At
	if at.IsZero() {
		at = r.o.clock.Now()
	}
	r.complete(r.o.classifier.Outcome(cb), at)
}

func (r *run) onAttemptTimeout(index int) {
	if r.state != session.StateAwaitingCallback || index != r.current {
		return
	}
	r.logger.Warn().Int("attempt", index).Dur("timeout", r.policy.AttemptTimeout).Msg("no callback before timeout")
	r.o.dev.Cancel(r.id)
	msg := fmt.Sprintf("no callback within %s", r.policy.AttemptTimeout)
	r.complete(session.RetryableError(device.CodeReadTimeout, msg), r.o.clock.Now())
}

// complete records the outstanding attempt and decides what happens next.
func (r *run) complete(outcome session.Outcome, at time.Time) {
	r.state = session.StateEvaluating
	attempt, err := r.rec.Record(r.current, outcome, at)
	if err != nil {
		r.err = fmt.Errorf("session %s: %w", r.id, err)
		r.finish(session.StateCancelled, session.ReasonAborted)
		return
	}
	r.current = 0
	r.logger.Info().
		Int("attempt", attempt.Index).
		Str("outcome", string(outcome.Kind)).
		Int("code", outcome.Code).
		Dur("elapsed", attempt.Elapsed()).
		Msg("attempt recorded")
	r.o.pub.OnAttemptRecorded(r.id, attempt)
	r.evaluate(outcome)
}

func (r *run) evaluate(outcome session.Outcome) {
	switch {
	case outcome.Kind == session.OutcomeFatalError && r.policy.StopOnFatalError:
		r.finish(session.StateCompleted, session.ReasonFatal)
	case outcome.Kind == session.OutcomeCancelled || r.gate.Requested():
		r.finish(session.StateCancelled, session.ReasonCancelled)
	case r.rec.Len() >= r.policy.MaxAttempts:
		r.finish(session.StateCompleted, session.ReasonExhausted)
	default:
		r.state = session.StateDelaying
		next := r.rec.Len() + 1
		if r.policy.InterAttemptDelay <= 0 {
			r.onDelayElapsed(next)
			return
		}
		go r.delay(next, r.policy.InterAttemptDelay)
	}
}

// delay waits off the sequencer so late callbacks keep flowing through the
// mailbox. A cancel request cuts the wait short.
func (r *run) delay(next int, d time.Duration) {
	select {
	case <-r.o.clock.After(d):
	case <-r.gate.Done():
	case <-r.done:
		return
	}
	r.post(delayElapsedEvent{next: next})
}

func (r *run) onDelayElapsed(next int) {
	if r.state != session.StateDelaying || next != r.rec.Len()+1 {
		return
	}
	if r.gate.Requested() {
		r.finish(session.StateCancelled, session.ReasonCancelled)
		return
	}
	r.trigger()
}

// onCancel leaves an outstanding read alone; the gate is sampled when its
// callback is evaluated.
func (r *run) onCancel() {
	r.logger.Info().Str("state", string(r.state)).Int("outstanding", r.current).Msg("cancel requested")
}

func (r *run) abort(cause error) {
	r.logger.Warn().Err(cause).Str("state", string(r.state)).Msg("session aborted")
	if r.state == session.StateAwaitingCallback {
		r.o.dev.Cancel(r.id)
		attempt, err := r.rec.Record(r.current, session.Cancelled("session aborted"), r.o.clock.Now())
		if err == nil {
			r.o.pub.OnAttemptRecorded(r.id, attempt)
		}
		r.current = 0
	}
	r.err = fmt.Errorf("session %s aborted: %w", r.id, cause)
	r.finish(session.StateCancelled, session.ReasonAborted)
}

func (r *run) finish(state session.State, reason session.Reason) {
	r.state = state
	s := session.Summarize(r.id, r.o.dev.DeviceID(), r.policy, r.rec.Attempts())
	s.State = state
	s.Reason = reason
	s.StartedAt = r.startedAt
	s.EndedAt = r.o.clock.Now()
	s.StaleCallbacks = r.stale
	if r.err != nil {
		s.Err = r.err.Error()
	}
	r.summary = s

	r.logger.Info().
		Str("state", string(state)).
		Str("reason", string(reason)).
		Int("attempts", s.TotalAttempts).
		Int("successes", s.SuccessCount).
		Float64("success_ratio", s.SuccessRatio).
		Msg("session finished")
	r.o.pub.OnSessionCompleted(s)
	r.o.release(r)
	close(r.closing)
	r.senders.Wait()
	r.drain()
	close(r.done)
}

// drain discards callbacks that were queued but never handled.
func (r *run) drain() {
	for {
		select {
		case ev := <-r.mailbox:
			if cb, ok := ev.(callbackEvent); ok {
				r.o.discard(cb.cb, "session finished")
			}
		default:
			return
		}
	}
}

func (r *run) snapshot() Snapshot {
	return Snapshot{
		SessionID:       r.id,
		State:           r.state,
		Policy:          r.policy,
		Attempts:        r.rec.Attempts(),
		Outstanding:     r.current,
		CancelRequested: r.gate.Requested(),
	}
}

// finalSnapshot is only valid after done is closed.
func (r *run) finalSnapshot() Snapshot {
	return Snapshot{
		SessionID:       r.id,
		State:           r.summary.State,
		Policy:          r.policy,
		Attempts:        r.summary.Attempts,
		CancelRequested: r.gate.Requested(),
	}
}

// Package session holds the read-session data model: the repeat policy, the
// append-only attempt log and the summary derived from it.
package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPolicy = errors.New("session: invalid policy")

// State is the orchestrator's position in a session's lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateTriggering       State = "triggering"
	StateAwaitingCallback State = "awaiting_callback"
	StateEvaluating       State = "evaluating"
	StateDelaying         State = "delaying"
	StateCompleted        State = "completed"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// OutcomeKind tags the Outcome variant.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeRetryableError OutcomeKind = "retryable_error"
	OutcomeFatalError     OutcomeKind = "fatal_error"
	OutcomeCancelled      OutcomeKind = "cancelled"
)

// Outcome is the result of one attempt. Payload is set for Success only;
// Code and Message for the error variants.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Payload []byte      `json:"payload,omitempty"`
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

func RetryableError(code int, msg string) Outcome {
	return Outcome{Kind: OutcomeRetryableError, Code: code, Message: msg}
}

func FatalError(code int, msg string) Outcome {
	return Outcome{Kind: OutcomeFatalError, Code: code, Message: msg}
}

func Cancelled(msg string) Outcome {
	return Outcome{Kind: OutcomeCancelled, Message: msg}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeRetryableError, OutcomeFatalError:
		return fmt.Sprintf("%s(%d: %s)", o.Kind, o.Code, o.Message)
	default:
		return string(o.Kind)
	}
}

// Attempt is one trigger-and-await cycle.
type Attempt struct {
	Index     int       `json:"index"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Recorded  bool      `json:"recorded"`
	// Serial is the business serial handed to the reader for this attempt.
	Serial string `json:"serial,omitempty"`
}

// Elapsed is zero until the attempt is recorded.
func (a Attempt) Elapsed() time.Duration {
	if !a.Recorded {
		return 0
	}
	return a.EndedAt.Sub(a.StartedAt)
}

// Policy governs how many attempts a session makes and how they are paced.
type Policy struct {
	MaxAttempts       int           `json:"max_attempts"`
	InterAttemptDelay time.Duration `json:"inter_attempt_delay"`
	StopOnFatalError  bool          `json:"stop_on_fatal_error"`
	// AttemptTimeout bounds the wait for a callback; zero waits forever.
	AttemptTimeout time.Duration `json:"attempt_timeout,omitempty"`
}

// DefaultPolicy is a single read that stops on fatal errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       1,
		InterAttemptDelay: 100 * time.Millisecond,
		StopOnFatalError:  true,
	}
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.InterAttemptDelay < 0 {
		return fmt.Errorf("%w: inter-attempt delay must be >= 0, got %s", ErrInvalidPolicy, p.InterAttemptDelay)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("%w: attempt timeout must be >= 0, got %s", ErrInvalidPolicy, p.AttemptTimeout)
	}
	return nil
}

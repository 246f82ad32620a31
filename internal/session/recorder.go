package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAttemptOutOfOrder      = errors.New("session: attempt out of order")
	ErrUnknownAttempt         = errors.New("session: unknown attempt")
	ErrAttemptAlreadyRecorded = errors.New("session: attempt already recorded")
)

// Recorder is the append-only attempt log of one session. Every statistic is
// computed from the log on demand.
//
// Recorder is not safe for concurrent use; the orchestrator only touches it
// from the session's sequencer.
type Recorder struct {
	attempts []Attempt
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Begin appends attempt index, which must be the next one in sequence.
func (r *Recorder) Begin(index int, serial string, at time.Time) error {
	if index != len(r.attempts)+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrAttemptOutOfOrder, index, len(r.attempts)+1)
	}
	r.attempts = append(r.attempts, Attempt{Index: index, StartedAt: at, Serial: serial})
	return nil
}

// Record stores the outcome of attempt index. An attempt is recorded at most once.
func (r *Recorder) Record(index int, outcome Outcome, at time.Time) (Attempt, error) {
	if index < 1 || index > len(r.attempts) {
		return Attempt{}, fmt.Errorf("%w: %d", ErrUnknownAttempt, index)
	}
	a := &r.attempts[index-1]
	if a.Recorded {
		return *a, fmt.Errorf("%w: %d", ErrAttemptAlreadyRecorded, index)
	}
	if at.Before(a.StartedAt) {
		at = a.StartedAt
	}
	a.EndedAt = at
	a.Outcome = outcome
	a.Recorded = true
	return *a, nil
}

func (r *Recorder) Len() int { return len(r.attempts) }

// Attempts returns a copy of the log.
func (r *Recorder) Attempts() []Attempt {
	out := make([]Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// Last returns the most recent attempt.
func (r *Recorder) Last() (Attempt, bool) {
	if len(r.attempts) == 0 {
		return Attempt{}, false
	}
	return r.attempts[len(r.attempts)-1], true
}

func (r *Recorder) SuccessCount() int {
	return successCount(r.attempts)
}

func (r *Recorder) SuccessRatio() float64 {
	return successRatio(r.attempts)
}

func (r *Recorder) TotalElapsed() time.Duration {
	return totalElapsed(r.attempts)
}

func (r *Recorder) LastElapsed() time.Duration {
	return lastElapsed(r.attempts)
}

func (r *Recorder) AverageSuccessElapsed() time.Duration {
	return averageSuccessElapsed(r.attempts)
}

func successCount(attempts []Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.Recorded && a.Outcome.Kind == OutcomeSuccess {
			n++
		}
	}
	return n
}

// successRatio is 0 for an empty log.
func successRatio(attempts []Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	return float64(successCount(attempts)) / float64(len(attempts))
}

func totalElapsed(attempts []Attempt) time.Duration {
	var total time.Duration
	for _, a := range attempts {
		total += a.Elapsed()
	}
	return total
}

// lastElapsed is the duration of the most recently recorded attempt.
func lastElapsed(attempts []Attempt) time.Duration {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Recorded {
			return attempts[i].Elapsed()
		}
	}
	return 0
}

func averageSuccessElapsed(attempts []Attempt) time.Duration {
	var total time.Duration
	n := 0
	for _, a := range attempts {
		if a.Recorded && a.Outcome.Kind == OutcomeSuccess {
			total += a.Elapsed()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

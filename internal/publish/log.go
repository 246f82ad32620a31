package publish

import (
	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

// Log writes one structured line per attempt and per finished session.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "publish").Logger()}
}

func (l *Log) OnSessionStarted(id string, p session.Policy) {
	l.logger.Info().
		Str("session", id).
		Int("max_attempts", p.MaxAttempts).
		Dur("delay", p.InterAttemptDelay).
		Msg("read session started")
}

func (l *Log) OnAttemptRecorded(id string, a session.Attempt) {
	event := l.logger.Info()
	if a.Outcome.Kind != session.OutcomeSuccess {
		event = l.logger.Warn().Int("code", a.Outcome.Code).Str("message", a.Outcome.Message)
	}
	event.
		Str("session", id).
		Int("attempt", a.Index).
		Str("serial", a.Serial).
		Str("outcome", string(a.Outcome.Kind)).
		Dur("elapsed", a.Elapsed()).
		Msg("read attempt")
}

func (l *Log) OnSessionCompleted(s session.Summary) {
	event := l.logger.Info()
	if s.Err != "" {
		event = l.logger.Error().Str("error", s.Err)
	}
	event.
		Str("session", s.SessionID).
		Str("state", string(s.State)).
		Str("reason", string(s.Reason)).
		Int("attempts", s.TotalAttempts).
		Int("successes", s.SuccessCount).
		Float64("success_ratio", s.SuccessRatio).
		Dur("avg_success", s.AverageSuccessElapsed).
		Int("stale", s.StaleCallbacks).
		Msg("read session finished")
}

func (l *Log) OnStaleCallback(cb device.Callback, reason string) {
	l.logger.Debug().
		Str("session", cb.SessionID).
		Int("attempt", cb.Attempt).
		Str("reason", reason).
		Msg("stale callback")
}

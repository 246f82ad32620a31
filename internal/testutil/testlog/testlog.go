package testlog

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/logging"
)

// Start configures test logging and returns a logger that writes into t's log.
// Lines written after the test finished are dropped, since session goroutines
// can outlive the test body.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	w := &writer{t: t}
	t.Cleanup(w.close)
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	logger := zerolog.New(out).Level(zerolog.DebugLevel).With().Str("test", t.Name()).Logger()
	logger.Info().Msg("test start")
	return logger
}

type writer struct {
	mu     sync.Mutex
	t      testing.TB
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.t.Log(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (w *writer) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

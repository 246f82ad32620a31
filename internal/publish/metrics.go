package publish

import (
	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/metrics"
	"github.com/fakeyudi/readloop/internal/session"
)

// Metrics feeds a metrics.Recorder, labelled with one device id.
type Metrics struct {
	rec      *metrics.Recorder
	deviceID string
}

func NewMetrics(rec *metrics.Recorder, deviceID string) *Metrics {
	return &Metrics{rec: rec, deviceID: deviceID}
}

func (m *Metrics) OnSessionStarted(string, session.Policy) {
	m.rec.SessionStarted(m.deviceID)
}

func (m *Metrics) OnAttemptRecorded(_ string, a session.Attempt) {
	m.rec.RecordAttempt(m.deviceID, string(a.Outcome.Kind), a.Outcome.Code, a.Elapsed())
}

func (m *Metrics) OnSessionCompleted(s session.Summary) {
	m.rec.RecordSession(m.deviceID, string(s.State), string(s.Reason), s.TotalAttempts, s.SuccessRatio)
}

func (m *Metrics) OnStaleCallback(device.Callback, string) {
	m.rec.RecordStale(m.deviceID)
}

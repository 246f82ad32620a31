// Package metrics exports session statistics to Prometheus and serves them,
// together with stored summaries, over HTTP.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "readloop"

// Recorder owns the collectors. Use Default for the process-wide registry or
// NewRecorder with a private registry in tests.
type Recorder struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	sessions        *prometheus.CounterVec
	sessionAttempts *prometheus.HistogramVec
	successRatio    *prometheus.GaugeVec
	staleCallbacks  *prometheus.CounterVec
	active          *prometheus.GaugeVec
	dropped         prometheus.Counter
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default registers the collectors with prometheus.DefaultRegisterer once.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "attempt",
				Name:      "total",
				Help:      "Recorded read attempts by outcome.",
			},
			[]string{"device", "outcome", "code"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "attempt",
				Name:      "duration_seconds",
				Help:      "Time from trigger to callback.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
			},
			[]string{"device", "outcome"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "total",
				Help:      "Finished sessions by final state and reason.",
			},
			[]string{"device", "state", "reason"},
		),
		sessionAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "attempts",
				Help:      "Attempts made per finished session.",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"device"},
		),
		successRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "success_ratio",
				Help:      "Success ratio of the last finished session.",
			},
			[]string{"device"},
		),
		staleCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "stale_callbacks_total",
				Help:      "Device callbacks discarded because their attempt was no longer current.",
			},
			[]string{"device"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Sessions currently running.",
			},
			[]string{"device"},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publish",
				Name:      "dropped_total",
				Help:      "Results dropped because an async publisher queue was full.",
			},
		),
	}
	reg.MustRegister(r.attempts, r.attemptDuration, r.sessions, r.sessionAttempts,
		r.successRatio, r.staleCallbacks, r.active, r.dropped)
	return r
}

func (r *Recorder) SessionStarted(deviceID string) {
	r.active.WithLabelValues(deviceID).Inc()
}

func (r *Recorder) RecordAttempt(deviceID, outcome string, code int, elapsed time.Duration) {
	r.attempts.WithLabelValues(deviceID, outcome, strconv.Itoa(code)).Inc()
	r.attemptDuration.WithLabelValues(deviceID, outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) RecordSession(deviceID, state, reason string, attempts int, ratio float64) {
	r.active.WithLabelValues(deviceID).Dec()
	r.sessions.WithLabelValues(deviceID, state, reason).Inc()
	r.sessionAttempts.WithLabelValues(deviceID).Observe(float64(attempts))
	r.successRatio.WithLabelValues(deviceID).Set(ratio)
}

func (r *Recorder) RecordStale(deviceID string) {
	r.staleCallbacks.WithLabelValues(deviceID).Inc()
}

func (r *Recorder) RecordDropped() {
	r.dropped.Inc()
}

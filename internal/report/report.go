// Package report turns a finished session into a file a person can read and
// readloop can parse back.
package report

import (
	"time"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/session"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Report is a session summary plus the identity decoded from its last
// successful read.
type Report struct {
	Summary       session.Summary  `json:"summary"`
	Identity      *device.Identity `json:"identity,omitempty"`
	IdentityError string           `json:"identity_error,omitempty"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// New builds a report. A payload that does not decode is noted, not fatal.
func New(s session.Summary, now time.Time) *Report {
	r := &Report{Summary: s, GeneratedAt: now}
	if last, ok := s.LastSuccess(); ok {
		id, err := device.DecodeIdentity(last.Outcome.Payload)
		if err != nil {
			r.IdentityError = err.Error()
		} else {
			r.Identity = &id
		}
	}
	return r
}

// Extension is the file extension for format.
func Extension(format string) string {
	if format == FormatJSON {
		return ".json"
	}
	return ".md"
}

// FileName is the default export name for a session.
func FileName(s session.Summary, format string) string {
	stamp := s.EndedAt
	if stamp.IsZero() {
		stamp = s.StartedAt
	}
	return "readloop-" + stamp.UTC().Format("20060102-150405") + "-" + shortID(s.SessionID) + Extension(format)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

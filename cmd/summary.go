package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/report"
	"github.com/fakeyudi/readloop/internal/session"
)

// printSummary writes the plain-text view of a finished session.
func printSummary(w io.Writer, s session.Summary) {
	fmt.Fprintf(w, "Session: %s\n", s.SessionID)
	fmt.Fprintf(w, "Device: %s\n", s.DeviceID)
	fmt.Fprintf(w, "Result: %s\n", report.Outcome(s))
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s\n", s.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Successful reads: %d/%d\n", s.SuccessCount, s.TotalAttempts)
	fmt.Fprintf(w, "Success ratio: %.1f%%\n", s.SuccessRatio*100)
	fmt.Fprintf(w, "Last read time: %s\n", s.LastElapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Average read time: %s\n", s.AverageSuccessElapsed.Round(time.Millisecond))
	if s.StaleCallbacks > 0 {
		fmt.Fprintf(w, "Stale callbacks: %d\n", s.StaleCallbacks)
	}
	if s.Err != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Err)
	}
}

func printAttempt(w io.Writer, a session.Attempt) {
	line := fmt.Sprintf("attempt %d: %s (%s)", a.Index, a.Outcome.Kind, a.Elapsed().Round(time.Millisecond))
	switch a.Outcome.Kind {
	case session.OutcomeRetryableError, session.OutcomeFatalError:
		line += fmt.Sprintf(" code=%d %s", a.Outcome.Code, a.Outcome.Message)
	case session.OutcomeSuccess:
		if id, err := device.DecodeIdentity(a.Outcome.Payload); err == nil {
			line += " " + id.Name
		}
	}
	fmt.Fprintln(w, line)
}

// printReport is the non-interactive form of `view`.
func printReport(w io.Writer, r *report.Report) {
	printSummary(w, r.Summary)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Attempts")
	if len(r.Summary.Attempts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range r.Summary.Attempts {
		fmt.Fprint(w, "  ")
		printAttempt(w, a)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Last identity read")
	switch {
	case r.Identity != nil:
		id := r.Identity
		fmt.Fprintf(w, "  Name:      %s\n", id.Name)
		fmt.Fprintf(w, "  Document:  %s\n", id.Kind)
		fmt.Fprintf(w, "  Number:    %s\n", id.Number)
		fmt.Fprintf(w, "  Born:      %s-%s-%s\n", id.BirthYear, id.BirthMonth, id.BirthDay)
		fmt.Fprintf(w, "  Valid:     %s\n", id.Validity())
	case r.IdentityError != "":
		fmt.Fprintf(w, "  (payload could not be decoded: %s)\n", r.IdentityError)
	default:
		fmt.Fprintln(w, "  (none)")
	}
}

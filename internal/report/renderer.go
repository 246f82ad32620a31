package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/readloop/internal/session"
)

const (
	versionSentinel = "<!-- readloop-report-version: 1 -->"
	dataPrefix      = "<!-- readloop-data: "
	dataSuffix      = " -->"
)

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// NewRenderer returns the renderer for format, or an error for unknown ones.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case FormatMarkdown, "md", "":
		return &MarkdownRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want markdown or json)", format)
	}
}

type JSONRenderer struct{}

func (*JSONRenderer) Render(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarkdownRenderer writes a human summary and embeds the report as base64
// JSON so MarkdownParser can recover it exactly.
type MarkdownRenderer struct{}

func (*MarkdownRenderer) Render(r *Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	s := r.Summary
	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, base64.StdEncoding.EncodeToString(raw), dataSuffix)

	fmt.Fprintf(&sb, "# Read session %s (%s)\n\n", s.SessionID, s.DeviceID)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Result: %s\n", Outcome(s))
	fmt.Fprintf(&sb, "- Started: %s\n", stamp(s.StartedAt))
	fmt.Fprintf(&sb, "- Duration: %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Successful reads: %d/%d (%.1f%%)\n", s.SuccessCount, s.TotalAttempts, s.SuccessRatio*100)
	fmt.Fprintf(&sb, "- Last read time: %s\n", s.LastElapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Average successful read time: %s\n", s.AverageSuccessElapsed.Round(time.Millisecond))
	if s.StaleCallbacks > 0 {
		fmt.Fprintf(&sb, "- Stale callbacks discarded: %d\n", s.StaleCallbacks)
	}
	if s.Err != "" {
		fmt.Fprintf(&sb, "- Error: %s\n", s.Err)
	}
	sb.WriteString("\n")

	sb.WriteString("## Policy\n\n")
	fmt.Fprintf(&sb, "- Max attempts: %d\n", s.Policy.MaxAttempts)
	fmt.Fprintf(&sb, "- Delay between attempts: %s\n", s.Policy.InterAttemptDelay)
	fmt.Fprintf(&sb, "- Stop on fatal error: %t\n", s.Policy.StopOnFatalError)
	if s.Policy.AttemptTimeout > 0 {
		fmt.Fprintf(&sb, "- Attempt timeout: %s\n", s.Policy.AttemptTimeout)
	}
	sb.WriteString("\n")

	sb.WriteString("## Attempts\n\n")
	if len(s.Attempts) == 0 {
		sb.WriteString("_No attempts were made._\n")
	} else {
		sb.WriteString("| # | Outcome | Code | Time | Message |\n")
		sb.WriteString("|---|---------|------|------|---------|\n")
		for _, a := range s.Attempts {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
				a.Index, outcomeLabel(a), code(a), a.Elapsed().Round(time.Millisecond), cell(a.Outcome.Message))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Last identity read\n\n")
	switch {
	case r.Identity != nil:
		id := r.Identity
		fmt.Fprintf(&sb, "- Name: %s\n", id.Name)
		if id.EnglishName != "" {
			fmt.Fprintf(&sb, "- English name: %s\n", id.EnglishName)
		}
		fmt.Fprintf(&sb, "- Document: %s\n", id.Kind)
		fmt.Fprintf(&sb, "- Number: %s\n", id.Number)
		fmt.Fprintf(&sb, "- Born: %s-%s-%s\n", id.BirthYear, id.BirthMonth, id.BirthDay)
		fmt.Fprintf(&sb, "- Issued by: %s\n", id.IssuedBy)
		fmt.Fprintf(&sb, "- Valid: %s\n", id.Validity())
	case r.IdentityError != "":
		fmt.Fprintf(&sb, "_Payload could not be decoded: %s._\n", r.IdentityError)
	default:
		sb.WriteString("_No successful read._\n")
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// Outcome is a one-line description of how a session ended.
func Outcome(s session.Summary) string {
	switch s.Reason {
	case session.ReasonExhausted:
		return fmt.Sprintf("completed after %d attempts", s.TotalAttempts)
	case session.ReasonFatal:
		if last := len(s.Attempts); last > 0 {
			return fmt.Sprintf("stopped on fatal error %d at attempt %d", s.Attempts[last-1].Outcome.Code, last)
		}
		return "stopped on fatal error"
	case session.ReasonCancelled:
		return fmt.Sprintf("cancelled after %d attempts", s.TotalAttempts)
	case session.ReasonAborted:
		return fmt.Sprintf("aborted after %d attempts", s.TotalAttempts)
	case session.ReasonTriggerFailed:
		return "device refused to start a read"
	default:
		return string(s.State)
	}
}

func outcomeLabel(a session.Attempt) string {
	if !a.Recorded {
		return "pending"
	}
	return string(a.Outcome.Kind)
}

func code(a session.Attempt) string {
	switch a.Outcome.Kind {
	case session.OutcomeRetryableError, session.OutcomeFatalError:
		return fmt.Sprint(a.Outcome.Code)
	default:
		return "-"
	}
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

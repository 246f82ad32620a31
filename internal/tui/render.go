package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/readloop/internal/session"
)

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", label)) + "  " + value + "\n")
}

func badge(kind session.OutcomeKind) string {
	label := fmt.Sprintf("%-10s", strings.ToUpper(strings.ReplaceAll(string(kind), "_error", "")))
	switch kind {
	case session.OutcomeSuccess:
		return successStyle.Render(label)
	case session.OutcomeRetryableError:
		return retryableStyle.Render(label)
	case session.OutcomeFatalError:
		return fatalStyle.Render(label)
	default:
		return cancelledStyle.Render(label)
	}
}

func attemptLine(a session.Attempt) string {
	ts := timeStyle.Render(a.StartedAt.Format("15:04:05"))
	line := fmt.Sprintf("  %s  #%-3d %s %8s", ts, a.Index, badge(a.Outcome.Kind), a.Elapsed().Round(time.Millisecond))
	if a.Outcome.Kind == session.OutcomeRetryableError || a.Outcome.Kind == session.OutcomeFatalError {
		line += dimStyle.Render(fmt.Sprintf("  [%d] %s", a.Outcome.Code, a.Outcome.Message))
	}
	return line
}

func ratio(successes, total int) string {
	if total == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", successes, total, float64(successes)*100/float64(total))
}

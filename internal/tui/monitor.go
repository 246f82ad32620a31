// Package tui provides the Bubble Tea screens: a live monitor for running
// read sessions and a viewer for exported reports.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/publish"
	"github.com/fakeyudi/readloop/internal/session"
)

// StartedMsg announces a new session.
type StartedMsg struct {
	SessionID string
	Policy    session.Policy
}

// AttemptMsg carries one recorded attempt.
type AttemptMsg struct {
	SessionID string
	Attempt   session.Attempt
}

// SummaryMsg carries a finished session.
type SummaryMsg struct {
	Summary session.Summary
}

// DoneMsg tells the monitor no more sessions will start.
type DoneMsg struct {
	Err error
}

// maxLines caps the attempt history kept on screen.
const maxLines = 200

// Monitor is the live view of a run. cancel is called when the user presses c.
type Monitor struct {
	deviceID string
	cancel   func()

	spinner  spinner.Model
	progress progress.Model

	sessionID string
	policy    session.Policy
	attempts  []session.Attempt
	lines     []string
	lastName  string
	summaries []session.Summary

	running         bool
	cancelRequested bool
	done            bool
	err             error
	width           int
}

func NewMonitor(deviceID string, cancel func()) Monitor {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Monitor{
		deviceID: deviceID,
		cancel:   cancel,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:    80,
	}
}

func (m Monitor) Init() tea.Cmd { return m.spinner.Tick }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			m.requestCancel()
		case "ctrl+c":
			if m.done || m.cancelRequested {
				return m, tea.Quit
			}
			m.requestCancel()
		case "q", "esc":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-20)
		return m, nil

	case StartedMsg:
		m.sessionID = msg.SessionID
		m.policy = msg.Policy
		m.attempts = nil
		m.running = true
		return m, nil

	case AttemptMsg:
		if msg.SessionID != m.sessionID {
			return m, nil
		}
		m.attempts = append(m.attempts, msg.Attempt)
		m.lines = append(m.lines, attemptLine(msg.Attempt))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		if msg.Attempt.Outcome.Kind == session.OutcomeSuccess {
			if id, err := device.DecodeIdentity(msg.Attempt.Outcome.Payload); err == nil {
				m.lastName = id.Name
			}
		}
		return m, nil

	case SummaryMsg:
		m.summaries = append(m.summaries, msg.Summary)
		m.running = false
		return m, nil

	case DoneMsg:
		m.done = true
		m.running = false
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) requestCancel() {
	if m.cancelRequested || m.done {
		return
	}
	m.cancelRequested = true
	if m.cancel != nil {
		m.cancel()
	}
}

func (m Monitor) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Width(m.width).Render("  readloop  " + m.deviceID))
	sb.WriteString("\n")

	sb.WriteString(heading("Current session"))
	if m.sessionID == "" {
		sb.WriteString(dimStyle.Render("  waiting for the first session") + "\n")
	} else {
		successes := 0
		var last, totalSuccess time.Duration
		for _, a := range m.attempts {
			last = a.Elapsed()
			if a.Outcome.Kind == session.OutcomeSuccess {
				successes++
				totalSuccess += a.Elapsed()
			}
		}
		status := "finished"
		if m.running {
			status = m.spinner.View() + " reading"
		}
		row(&sb, "Session:", m.sessionID)
		row(&sb, "Status:", status)
		row(&sb, "Successful reads:", ratio(successes, len(m.attempts)))
		row(&sb, "Last read time:", last.Round(time.Millisecond).String())
		if successes > 0 {
			row(&sb, "Average read time:", (totalSuccess / time.Duration(successes)).Round(time.Millisecond).String())
		}
		if m.lastName != "" {
			row(&sb, "Last card:", m.lastName)
		}
		if m.policy.MaxAttempts > 0 {
			pct := float64(len(m.attempts)) / float64(m.policy.MaxAttempts)
			sb.WriteString("  " + m.progress.ViewAs(pct) + fmt.Sprintf("  %d/%d\n", len(m.attempts), m.policy.MaxAttempts))
		}
	}

	if len(m.lines) > 0 {
		sb.WriteString(heading("Attempts"))
		start := 0
		if len(m.lines) > 12 {
			start = len(m.lines) - 12
		}
		sb.WriteString(strings.Join(m.lines[start:], "\n") + "\n")
	}

	if len(m.summaries) > 0 {
		sb.WriteString(heading(fmt.Sprintf("Finished sessions (%d)", len(m.summaries))))
		for _, s := range m.summaries {
			sb.WriteString(fmt.Sprintf("  %s  %-10s %-15s %s\n", shortID(s.SessionID), s.State, s.Reason, ratio(s.SuccessCount, s.TotalAttempts)))
		}
	}
	if m.err != nil {
		sb.WriteString("\n" + fatalStyle.Render("  "+m.err.Error()) + "\n")
	}

	hint := "  c cancel"
	switch {
	case m.done:
		hint = "  q quit"
	case m.cancelRequested:
		hint = "  cancelling after the current read  ctrl+c quit"
	}
	sb.WriteString("\n" + statusBarStyle.Width(m.width).Render(hint))
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Bridge forwards orchestrator events into a running program.
func Bridge(p *tea.Program) publish.Func {
	return publish.Func{
		Started: func(id string, pol session.Policy) { p.Send(StartedMsg{SessionID: id, Policy: pol}) },
		Attempt: func(id string, a session.Attempt) { p.Send(AttemptMsg{SessionID: id, Attempt: a}) },
		Completed: func(s session.Summary) {
			p.Send(SummaryMsg{Summary: s})
		},
	}
}

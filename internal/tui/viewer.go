package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/readloop/internal/report"
)

type tabID int

const (
	tabSummary tabID = iota
	tabAttempts
	tabIdentity
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Attempts", "Identity"}

// Viewer is a read-only, tabbed view of a report.
type Viewer struct {
	report    *report.Report
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
}

func NewViewer(r *report.Report, filename string) Viewer {
	return Viewer{report: r, filename: filepath.Base(filename)}
}

func (m Viewer) Init() tea.Cmd { return nil }

func (m Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		// title + tab row + status bar
		vpHeight := max(1, m.height-3)
		for i := tabID(0); i < tabCount; i++ {
			vp := viewport.New(m.width, vpHeight)
			vp.SetContent(m.renderTab(i))
			m.viewports[i] = vp
		}
		return m, nil
	}
	return m, nil
}

func (m Viewer) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("  readloop  " + m.filename)

	var tabs []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabs = append(tabs, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))

	hint := "  ←/→ tab  ↑/↓ scroll  1-3 jump  q quit"
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := max(1, m.width-lipgloss.Width(hint)-len(pct)-2)
	status := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, m.viewports[m.activeTab].View(), status)
}

func (m Viewer) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabAttempts:
		return m.renderAttempts()
	case tabIdentity:
		return m.renderIdentity()
	}
	return ""
}

func (m Viewer) renderSummary() string {
	s := m.report.Summary
	var sb strings.Builder
	sb.WriteString(heading("Session"))
	row(&sb, "Session:", s.SessionID)
	row(&sb, "Device:", s.DeviceID)
	row(&sb, "Result:", report.Outcome(s))
	row(&sb, "Started:", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	row(&sb, "Duration:", s.Duration().Round(time.Millisecond).String())
	if s.Err != "" {
		row(&sb, "Error:", fatalStyle.Render(s.Err))
	}

	sb.WriteString(heading("Statistics"))
	row(&sb, "Successful reads:", ratio(s.SuccessCount, s.TotalAttempts))
	row(&sb, "Last read time:", s.LastElapsed.Round(time.Millisecond).String())
	row(&sb, "Average read time:", s.AverageSuccessElapsed.Round(time.Millisecond).String())
	row(&sb, "Stale callbacks:", fmt.Sprint(s.StaleCallbacks))

	sb.WriteString(heading("Policy"))
	row(&sb, "Max attempts:", fmt.Sprint(s.Policy.MaxAttempts))
	row(&sb, "Delay:", s.Policy.InterAttemptDelay.String())
	row(&sb, "Stop on fatal:", fmt.Sprint(s.Policy.StopOnFatalError))
	return sb.String()
}

func (m Viewer) renderAttempts() string {
	attempts := m.report.Summary.Attempts
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Attempts (%d)", len(attempts))))
	if len(attempts) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, a := range attempts {
		sb.WriteString(attemptLine(a) + "\n")
	}
	return sb.String()
}

func (m Viewer) renderIdentity() string {
	var sb strings.Builder
	sb.WriteString(heading("Last identity read"))
	id := m.report.Identity
	if id == nil {
		msg := "(no successful read)"
		if m.report.IdentityError != "" {
			msg = "(payload could not be decoded: " + m.report.IdentityError + ")"
		}
		sb.WriteString(dimStyle.Render("  "+msg) + "\n")
		return sb.String()
	}
	row(&sb, "Name:", id.Name)
	if id.EnglishName != "" {
		row(&sb, "English name:", id.EnglishName)
	}
	row(&sb, "Document:", string(id.Kind))
	row(&sb, "Number:", id.Number)
	row(&sb, "Gender:", id.Gender)
	if id.Nation != "" {
		row(&sb, "Nation:", id.Nation)
	}
	row(&sb, "Born:", id.BirthYear+"-"+id.BirthMonth+"-"+id.BirthDay)
	if id.Address != "" {
		row(&sb, "Address:", id.Address)
	}
	row(&sb, "Issued by:", id.IssuedBy)
	row(&sb, "Valid:", id.Validity())
	if id.PassNumber != "" {
		row(&sb, "Pass number:", id.PassNumber)
	}
	return sb.String()
}

// RunViewer opens the viewer on the alternate screen.
func RunViewer(r *report.Report, filename string) error {
	p := tea.NewProgram(NewViewer(r, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

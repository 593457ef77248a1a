// Package tui implements the live run view.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldprobe/rigger/internal/engine"
	"github.com/fieldprobe/rigger/internal/tui/styles"
)

const (
	feedCapacity = 12
	minWidth     = 40
	minHeight    = 10
)

// RunInfo describes the run the view presents.
type RunInfo struct {
	Script string
	RunID  string
	Steps  int
	Theme  string
}

// NewProgram builds the bubbletea program for a run. stop aborts the
// run when the user quits before it ends.
func NewProgram(info RunInfo, stop func()) *tea.Program {
	return tea.NewProgram(newModel(info, stop), tea.WithAltScreen())
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	info   RunInfo
	styles styles.Styles
	stop   func()

	width  int
	height int

	started time.Time
	now     time.Time

	feed      []string
	advanced  int
	lastValue int64
	suspended bool
	done      bool
	halted    bool
	failed    bool
	finalErr  error
}

func newModel(info RunInfo, stop func()) model {
	now := time.Now()
	return model{
		info:    info,
		styles:  styles.BuildStyles(styles.ThemeByName(info.Theme)),
		stop:    stop,
		started: now,
		now:     now,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.done && m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tickCmd()
	case EventMsg:
		return m.applyEvent(engine.Event(msg)), nil
	case RunDoneMsg:
		m.done = true
		m.lastValue = msg.Value
		m.finalErr = msg.Err
		m.now = time.Now()
		if msg.Err != nil {
			m.failed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) applyEvent(event engine.Event) model {
	switch event.Type {
	case engine.EventRunSuspended:
		m.suspended = true
	case engine.EventRunResumed:
		m.suspended = false
	case engine.EventRunHalted:
		m.halted = true
	case engine.EventStepExecute:
		m.advanced++
		m.lastValue = event.Value
	case engine.EventStepDelay, engine.EventStepRepeat, engine.EventStepWaitExit:
		m.advanced++
	}

	m.feed = append(m.feed, formatEvent(event))
	if len(m.feed) > feedCapacity {
		m.feed = m.feed[len(m.feed)-feedCapacity:]
	}
	return m
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 {
		if m.width < minWidth || m.height < minHeight {
			return fmt.Sprintf("%s\n", joinLines([]string{
				m.styles.Warning.Render(fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)),
				m.styles.Muted.Render(fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)),
				m.styles.Muted.Render("Press q to quit."),
			}))
		}
	}

	lines := []string{
		m.styles.Title.Render(fmt.Sprintf("rigger run %s", m.info.Script)),
		m.styles.Muted.Render(fmt.Sprintf("run %s | %d program nodes", m.info.RunID, m.info.Steps)),
		"",
		m.statusLine(),
		"",
	}

	if len(m.feed) == 0 {
		lines = append(lines, m.styles.Muted.Render("Waiting for events..."))
	} else {
		for _, line := range m.feed {
			lines = append(lines, m.styles.Text.Render(line))
		}
	}

	lines = append(lines, "", m.styles.Muted.Render("Press q to quit."))

	return fmt.Sprintf("%s\n", joinLines(lines))
}

func (m model) statusLine() string {
	elapsed := m.now.Sub(m.started).Round(100 * time.Millisecond)
	switch {
	case m.failed:
		return m.styles.Error.Render(fmt.Sprintf("FAILED after %s: %v", elapsed, m.finalErr))
	case m.done && m.halted:
		return m.styles.Warning.Render(fmt.Sprintf("HALTED value=%d after %s", m.lastValue, elapsed))
	case m.done:
		return m.styles.Success.Render(fmt.Sprintf("FINISHED value=%d after %s", m.lastValue, elapsed))
	case m.suspended:
		return m.styles.Warning.Render(fmt.Sprintf("SUSPENDED waiting for bridge exit | %s", elapsed))
	default:
		return m.styles.Accent.Render(fmt.Sprintf("RUNNING steps=%d value=%d | %s", m.advanced, m.lastValue, elapsed))
	}
}

func formatEvent(event engine.Event) string {
	at := event.Timestamp.Local().Format("15:04:05")
	switch event.Type {
	case engine.EventStepExecute:
		return fmt.Sprintf("%s  %-14s value=%d proceed=%t", at, event.Type, event.Value, event.Proceed)
	case engine.EventStepDelay:
		return fmt.Sprintf("%s  %-14s %s", at, event.Type, event.Delay)
	case engine.EventStepRepeat:
		return fmt.Sprintf("%s  %-14s remaining=%d", at, event.Type, event.Remaining)
	case engine.EventRunResumed:
		return fmt.Sprintf("%s  %-14s status=%d", at, event.Type, event.Status)
	case engine.EventRunFinished, engine.EventRunHalted:
		return fmt.Sprintf("%s  %-14s value=%d", at, event.Type, event.Value)
	default:
		return fmt.Sprintf("%s  %s", at, event.Type)
	}
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

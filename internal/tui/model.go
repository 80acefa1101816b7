// Package tui renders live run progress from the event bus. It consumes a
// read-only stream of task and run events and contains no scheduling logic.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parlab/maxpar/events"
)

// RunFinishedMsg tells the view the workload driving the bus has finished.
// The driver sends it via Program.Send once its last run returns.
type RunFinishedMsg struct {
	Err error
}

// Model is the root Bubble Tea model for the progress view.
type Model struct {
	eventSub  <-chan events.Event
	vp        viewport.Model
	lines     []string
	total     int
	completed int
	running   int
	failed    int
	width     int
	height    int
	finished  bool
	runErr    error
}

// New creates a progress model subscribed to all topics on the bus.
func New(bus *events.Bus, total int) Model {
	return Model{
		eventSub: bus.SubscribeAll(256),
		vp:       viewport.New(0, 0),
		total:    total,
	}
}

// Init subscribes the model to the event stream.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width - 4
		m.vp.Height = msg.Height - 6
		m.refreshViewport()

	case RunFinishedMsg:
		m.finished = true
		m.runErr = msg.Err

	case events.TaskStartedEvent:
		m.running++
		m.appendLine(StyleStatusRunning.Render("▶ ") + msg.Name)
		return m, waitForEvent(m.eventSub)

	case events.TaskCompletedEvent:
		if m.running > 0 {
			m.running--
		}
		m.completed++
		m.appendLine(StyleStatusComplete.Render("✓ ") + fmt.Sprintf("%s (%s)", msg.Name, msg.Duration))
		return m, waitForEvent(m.eventSub)

	case events.TaskFailedEvent:
		if m.running > 0 {
			m.running--
		}
		m.failed++
		m.appendLine(StyleStatusFailed.Render("✗ ") + fmt.Sprintf("%s: %v", msg.Name, msg.Err))
		return m, waitForEvent(m.eventSub)

	case events.RunCompletedEvent:
		m.appendLine(StyleStatusPending.Render(fmt.Sprintf("run (%s) finished in %s", msg.Mode, msg.Duration)))
		return m, waitForEvent(m.eventSub)

	case events.RunProgressEvent:
		// Counts are already tracked from task events; progress events keep
		// the totals honest across repeated runs.
		m.total = msg.Total
		return m, waitForEvent(m.eventSub)
	}

	return m, nil
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	m.vp.GotoBottom()
}

// View renders the progress header, the event log, and the help line.
func (m Model) View() string {
	title := StyleTitle.Render("maxpar run")

	progress := fmt.Sprintf("%s %d/%d  %s %d  %s %d",
		StyleStatusComplete.Render("done"), m.completed, m.total,
		StyleStatusRunning.Render("running"), m.running,
		StyleStatusFailed.Render("failed"), m.failed,
	)

	help := StyleHelp.Render("q: quit  ↑/↓: scroll")
	if m.finished {
		status := StyleStatusComplete.Render("all runs finished")
		if m.runErr != nil {
			status = StyleStatusFailed.Render(fmt.Sprintf("run failed: %v", m.runErr))
		}
		help = status + "  " + StyleHelp.Render("press q to exit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		progress,
		StyleLogBorder.Render(m.vp.View()),
		help,
	)
}

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmill/taskmill/internal/events"
)

// taskRow is the display state of one live or recently finished task.
type taskRow struct {
	Name        string
	State       string // "pending", "armed", "running", "done", "cancelled"
	ScheduledAt int64
	Finished    bool
}

// TaskPaneModel shows the task table and a scrollable activity timeline.
type TaskPaneModel struct {
	rows     map[string]*taskRow
	order    []string // insertion order for display
	timeline []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		rows:     make(map[string]*taskRow),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskScheduledEvent:
		if _, exists := m.rows[msg.Name]; !exists {
			m.rows[msg.Name] = &taskRow{Name: msg.Name, State: "pending", ScheduledAt: msg.ScheduledAt}
			m.order = append(m.order, msg.Name)
		}
		if len(msg.DependsOn) > 0 {
			m.log(msg.Timestamp, "%s scheduled after %s", msg.Name, strings.Join(msg.DependsOn, ", "))
		} else {
			m.log(msg.Timestamp, "%s scheduled", msg.Name)
		}

	case events.TaskArmedEvent:
		m.setState(msg.Name, "armed")
		m.log(msg.Timestamp, "%s armed, fires in %s", msg.Name, msg.Delay.Round(time.Millisecond))

	case events.TaskStartedEvent:
		m.setState(msg.Name, "running")
		m.log(msg.Timestamp, "%s running %s", msg.Name, msg.ProgramPath)

	case events.TaskCompletedEvent:
		m.finish(msg.Name, "done")
		m.log(msg.Timestamp, "%s completed in %s", msg.Name, msg.Duration.Round(time.Millisecond))

	case events.TaskCancelledEvent:
		m.finish(msg.Name, "cancelled")
		if len(msg.Freed) > 0 {
			m.log(msg.Timestamp, "%s cancelled, freed %s", msg.Name, strings.Join(msg.Freed, ", "))
		} else {
			m.log(msg.Timestamp, "%s cancelled", msg.Name)
		}
	}

	return m, cmd
}

// View renders the task table above the activity timeline.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Tasks"))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatePending.Render("no tasks scheduled"))
		b.WriteString("\n")
	}
	for _, name := range m.order {
		row := m.rows[name]
		when := time.UnixMilli(row.ScheduledAt).Format("15:04:05")
		b.WriteString(fmt.Sprintf("%-24s %s  %s\n", row.Name, stateStyle(row.State).Render(fmt.Sprintf("%-9s", row.State)), when))
	}

	b.WriteString("\n")
	b.WriteString(StyleTitle.Render("Activity"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func (m *TaskPaneModel) resizeViewport() {
	// Table rows, two titles and borders eat into the pane height.
	height := m.height - len(m.order) - 8
	if height < 3 {
		height = 3
	}
	m.viewport.Width = m.width - 4
	m.viewport.Height = height
}

func (m *TaskPaneModel) setState(name, state string) {
	if row, exists := m.rows[name]; exists {
		row.State = state
	}
}

// finish marks a task terminal; the row stays visible so the operator can
// see what happened, even though the engine already dropped the record.
func (m *TaskPaneModel) finish(name, state string) {
	if row, exists := m.rows[name]; exists {
		row.State = state
		row.Finished = true
	}
}

func (m *TaskPaneModel) log(ts time.Time, format string, args ...any) {
	line := fmt.Sprintf("%s  %s", ts.Format("15:04:05"), fmt.Sprintf(format, args...))
	m.timeline = append(m.timeline, line)
	if len(m.timeline) > 500 {
		m.timeline = m.timeline[len(m.timeline)-500:]
	}
	m.viewport.SetContent(strings.Join(m.timeline, "\n"))
	m.viewport.GotoBottom()
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "armed":
		return StyleStateArmed
	case "running":
		return StyleStateRunning
	case "done":
		return StyleStateDone
	case "cancelled":
		return StyleStateCancelled
	default:
		return StyleStatePending
	}
}

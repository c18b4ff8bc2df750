package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmill/taskmill/internal/events"
)

// ProgressPaneModel shows aggregate graph counts.
type ProgressPaneModel struct {
	total   int
	pending int
	armed   int
	running int
	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.GraphProgressEvent:
		m.total = msg.Total
		m.pending = msg.Pending
		m.armed = msg.Armed
		m.running = msg.Running
	}

	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Graph")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Live:    %d\n", m.total))
	b.WriteString(fmt.Sprintf("Pending: %s\n", StyleStatePending.Render(fmt.Sprintf("%d", m.pending))))
	b.WriteString(fmt.Sprintf("Armed:   %s\n", StyleStateArmed.Render(fmt.Sprintf("%d", m.armed))))
	b.WriteString(fmt.Sprintf("Running: %s\n", StyleStateRunning.Render(fmt.Sprintf("%d", m.running))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := m.width - 4
		if barWidth > 40 {
			barWidth = 40
		}
		runningWidth := (m.running * barWidth) / m.total
		armedWidth := (m.armed * barWidth) / m.total
		pendingWidth := barWidth - runningWidth - armedWidth

		bar := StyleStateRunning.Render(strings.Repeat("=", max(0, runningWidth)))
		bar += StyleStateArmed.Render(strings.Repeat("-", max(0, armedWidth)))
		bar += StyleStatePending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]\n", bar))
	}

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
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

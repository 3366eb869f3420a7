package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	kindColors = map[ir.Kind]lipgloss.Color{
		ir.KindSync:                "#E5C07B",
		ir.KindPendingTimer:        "#AAAAAA",
		ir.KindPendingContinuation: "#AAAAAA",
		ir.KindTimer:               "#61AFEF",
		ir.KindContinuation:        "#98C379",
	}
)

// View renders the latest snapshot.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 120
	}
	colWidth := max(24, (width-4)/3)

	header := headerStyle.Render("⬡ EVENT LOOP")

	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderProgramPanel(colWidth),
		renderItemsPanel("CALL STACK", m.snap.CallStack, colWidth),
		renderItemsPanel("PENDING", m.snap.Pending, colWidth),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		renderItemsPanel("CONTINUATION QUEUE", m.snap.ContinuationQueue, colWidth),
		renderItemsPanel("CALLBACK QUEUE", m.snap.CallbackQueue, colWidth),
		renderLogPanel(m.snap.Log, colWidth),
	)

	sections := []string{header, m.renderStatusLine(), row1, row2}
	if m.err != nil {
		sections = append(sections, errorStyle.Render(m.err.Error()))
	}
	sections = append(sections, mutedStyle.Render(m.status), m.help.View(m.keys))
	return strings.Join(sections, "\n")
}

func (m *Model) renderStatusLine() string {
	state := "idle"
	switch {
	case m.snap.Paused:
		state = "paused"
	case m.snap.Running:
		state = "running"
	case m.snap.Phase == ir.PhaseFinish:
		state = "done"
	}
	line := fmt.Sprintf("%s · step %d/%d · phase %s · speed %gx", state, m.snap.Step, len(m.ops), m.snap.Phase, m.speed())
	if m.snap.RunID != "" {
		line += " · run " + m.snap.RunID
	}
	return mutedStyle.Render(line)
}

// renderProgramPanel lists the recognized operations and marks the ones the
// engine has already taken from the backlog.
func (m *Model) renderProgramPanel(width int) string {
	lines := make([]string, 0, len(m.ops))
	for i, op := range m.ops {
		marker := " "
		if i < m.snap.Step {
			marker = "✓"
		}
		lines = append(lines, fmt.Sprintf("%s L%-3d %-12s %s", marker, op.Line, op.Category, op.Label))
	}
	if len(lines) == 0 {
		lines = append(lines, mutedStyle.Render("no operations recognized"))
	}
	return renderPanel("PROGRAM", strings.Join(lines, "\n"), width)
}

func renderItemsPanel(title string, items []ir.ScheduledItem, width int) string {
	if len(items) == 0 {
		return renderPanel(title, mutedStyle.Render("(empty)"), width)
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = renderItem(it)
	}
	return renderPanel(title, strings.Join(lines, "\n"), width)
}

func renderItem(it ir.ScheduledItem) string {
	text := fmt.Sprintf("#%d %s", it.ID, it.Name)
	if it.Kind == ir.KindPendingTimer {
		text += fmt.Sprintf(" (%s)", it.Delay)
	}
	return lipgloss.NewStyle().Foreground(kindColors[it.Kind]).Render(text)
}

func renderLogPanel(log []string, width int) string {
	if len(log) == 0 {
		return renderPanel("LOG", mutedStyle.Render("(empty)"), width)
	}
	lines := make([]string, len(log))
	for i, l := range log {
		lines[i] = fmt.Sprintf("%d. %s", i+1, l)
	}
	return renderPanel("LOG", strings.Join(lines, "\n"), width)
}

func renderPanel(title, body string, width int) string {
	return panelStyle.
		Width(width).
		Render(fmt.Sprintf("%s\n%s", titleStyle.Render(title), body))
}

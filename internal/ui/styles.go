package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/pkg/types"
)

var (
	colorTodo = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorWork = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorWait = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorDone = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
)

var statusStyles = map[types.Status]lipgloss.Style{
	types.StatusTodo:       lipgloss.NewStyle().Foreground(colorTodo),
	types.StatusInProgress: lipgloss.NewStyle().Foreground(colorWork).Bold(true),
	types.StatusWaitingRay: lipgloss.NewStyle().Foreground(colorWait).Bold(true),
	types.StatusDone:       lipgloss.NewStyle().Foreground(colorDone),
}

var (
	mutedStyle = lipgloss.NewStyle().Foreground(colorTodo)
	labelStyle = lipgloss.NewStyle().Bold(true)
)

// StatusBadge renders the status label in its color.
func StatusBadge(s types.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(s.Label())
}

// ShortID returns the first eight characters of an ID.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TaskLine renders one task for list output, using the same markers as
// the markdown export.
func TaskLine(t *types.Task) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(ShortID(t.TaskID)))
	b.WriteString("  ")
	b.WriteString(t.Title)
	if t.Tag != "" {
		b.WriteString(" #" + t.Tag)
	}
	b.WriteString(" " + t.Assignee.Marker())
	if m := t.Priority.Marker(); m != "" {
		b.WriteString(" " + m)
	}
	b.WriteString("  ")
	b.WriteString(StatusBadge(t.Status))
	return b.String()
}

// LogLine renders one log entry. A non-empty title is shown before the
// message.
func LogLine(entry *types.LogEntry, title string) string {
	stamp := mutedStyle.Render(entry.CreatedAt.Local().Format("2006-01-02 15:04"))
	author := labelStyle.Render(string(entry.Author))
	if title != "" {
		return fmt.Sprintf("%s  %s  [%s] %s", stamp, author, title, entry.Message)
	}
	return fmt.Sprintf("%s  %s  %s", stamp, author, entry.Message)
}

// SummaryLine renders the open-task counts on one line.
func SummaryLine(s tracker.Summary) string {
	parts := []string{
		labelStyle.Render("Claude") + fmt.Sprintf(" %d", s.Claude),
		labelStyle.Render("Ray") + fmt.Sprintf(" %d", s.Ray),
		labelStyle.Render("Both") + fmt.Sprintf(" %d", s.Both),
		statusStyles[types.StatusWaitingRay].Render(types.StatusWaitingRay.Label()) + fmt.Sprintf(" %d", s.WaitingRay),
		labelStyle.Render("Total") + fmt.Sprintf(" %d", s.Total),
	}
	return strings.Join(parts, mutedStyle.Render(" | "))
}

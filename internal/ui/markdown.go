// Package ui renders duet output for terminals: the markdown export through
// glamour and lipgloss-styled task lines and summaries.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultWidth     = 80
	maxReadableWidth = 100
)

// IsTerminal reports whether w is a terminal and NO_COLOR is unset.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of w, or 80 when unknown, capped at 100.
func Width(w io.Writer) int {
	width := defaultWidth
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	return min(width, maxReadableWidth)
}

// RenderMarkdown renders markdown wrapped at width. On any renderer error
// the input is returned unchanged.
func RenderMarkdown(markdown string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

package tracker

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/duet/pkg/types"
)

var sectionStatus = map[string]types.Status{
	inProgressHeading: types.StatusInProgress,
	waitingRayHeading: types.StatusWaitingRay,
	todoHeading:       types.StatusTodo,
	doneHeading:       types.StatusDone,
}

// ParseMarkdown reads task lines in the format written by RenderMarkdown.
// The enclosing "##" heading decides the status of open lines; checked
// lines are always done. Trailing markers give the priority glyph, the
// assignee and the tag. Missing markers default to ray and low. Lines that
// are not checkbox items, including the empty-bucket placeholder, are
// ignored.
func ParseMarkdown(r io.Reader) ([]ImportEntry, error) {
	var (
		entries []ImportEntry
		status  = types.StatusTodo
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "## ") {
			if s, ok := sectionStatus[line]; ok {
				status = s
			}
			continue
		}

		var (
			rest    string
			checked bool
		)
		switch {
		case strings.HasPrefix(line, "- [ ] "):
			rest = line[len("- [ ] "):]
		case strings.HasPrefix(line, "- [x] "), strings.HasPrefix(line, "- [X] "):
			rest, checked = line[len("- [x] "):], true
		default:
			continue
		}

		entry := parseItem(rest)
		if entry.Title == "" {
			continue
		}
		entry.Status = string(status)
		if checked {
			entry.Status = string(types.StatusDone)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading markdown: %w", err)
	}
	return entries, nil
}

// parseItem peels markers off the end of a checkbox item: priority glyph,
// then assignee, then tag.
func parseItem(rest string) ImportEntry {
	entry := ImportEntry{
		Assignee: string(types.AssigneeRay),
		Priority: string(types.PriorityLow),
	}
	rest = strings.TrimSpace(rest)

	if head, last, ok := cutLast(rest); ok {
		if p, ok := types.PriorityFromMarker(last); ok {
			entry.Priority = string(p)
			rest = head
		}
	}
	if head, last, ok := cutLast(rest); ok {
		if a, ok := types.AssigneeFromMarker(last); ok {
			entry.Assignee = string(a)
			rest = head
		}
	}
	if head, last, ok := cutLast(rest); ok && len(last) > 1 && strings.HasPrefix(last, "#") {
		entry.Tag = last[1:]
		rest = head
	}

	entry.Title = strings.TrimSpace(rest)
	return entry
}

// cutLast splits s at its last space. A single word has no head.
func cutLast(s string) (head, last string, ok bool) {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), s[i+1:], true
}

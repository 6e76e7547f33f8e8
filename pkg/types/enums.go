package types

import "strings"

// Status is the workflow state of a task. Every status may move to every
// other status; there is no terminal state.
type Status string

// Task statuses.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusWaitingRay Status = "waiting_ray"
	StatusDone       Status = "done"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusWaitingRay, StatusDone}

var statusLabels = map[Status]string{
	StatusTodo:       "Todo",
	StatusInProgress: "作業中",
	StatusWaitingRay: "Ray確認待ち",
	StatusDone:       "完了",
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable label used in log messages.
func (s Status) Label() string {
	return statusLabels[s]
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Value: raw, Err: ErrInvalidStatus}
	}
	return s, nil
}

// Assignee is the party responsible for a task.
type Assignee string

// Task assignees.
const (
	AssigneeRay    Assignee = "ray"
	AssigneeClaude Assignee = "claude"
	AssigneeBoth   Assignee = "both"
)

// Assignees lists every assignee.
var Assignees = []Assignee{AssigneeRay, AssigneeClaude, AssigneeBoth}

var assigneeMarkers = map[Assignee]string{
	AssigneeRay:    "@Ray",
	AssigneeClaude: "@Claude",
	AssigneeBoth:   "@Both",
}

// Valid reports whether a is one of the known assignees.
func (a Assignee) Valid() bool {
	_, ok := assigneeMarkers[a]
	return ok
}

// Marker returns the markdown marker for the assignee, e.g. "@Ray".
func (a Assignee) Marker() string {
	return assigneeMarkers[a]
}

// ParseAssignee converts a raw string into an Assignee.
func ParseAssignee(raw string) (Assignee, error) {
	a := Assignee(strings.TrimSpace(raw))
	if !a.Valid() {
		return "", &ValidationError{Field: "assignee", Value: raw, Err: ErrInvalidAssignee}
	}
	return a, nil
}

// AssigneeFromMarker is the inverse of Marker.
func AssigneeFromMarker(marker string) (Assignee, bool) {
	for a, m := range assigneeMarkers {
		if m == marker {
			return a, true
		}
	}
	return "", false
}

// Priority ranks a task.
type Priority string

// Task priorities.
const (
	PriorityHigh Priority = "high"
	PriorityMid  Priority = "mid"
	PriorityLow  Priority = "low"
)

// Priorities lists every priority from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMid, PriorityLow}

var priorityMarkers = map[Priority]string{
	PriorityHigh: "🔴",
	PriorityMid:  "🟡",
	PriorityLow:  "",
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityMarkers[p]
	return ok
}

// Marker returns the markdown glyph for the priority; low has none.
func (p Priority) Marker() string {
	return priorityMarkers[p]
}

// ParsePriority converts a raw string into a Priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Value: raw, Err: ErrInvalidPriority}
	}
	return p, nil
}

// PriorityFromMarker is the inverse of Marker for high and mid.
func PriorityFromMarker(marker string) (Priority, bool) {
	switch marker {
	case "🔴":
		return PriorityHigh, true
	case "🟡":
		return PriorityMid, true
	}
	return "", false
}

// Author identifies who wrote a log entry. Only the two parties may author
// logs; "both" is an assignee, not an author.
type Author string

// Log authors.
const (
	AuthorRay    Author = "ray"
	AuthorClaude Author = "claude"
)

// Valid reports whether a is one of the known authors.
func (a Author) Valid() bool {
	return a == AuthorRay || a == AuthorClaude
}

// ParseAuthor converts a raw string into an Author.
func ParseAuthor(raw string) (Author, error) {
	a := Author(strings.TrimSpace(raw))
	if !a.Valid() {
		return "", &ValidationError{Field: "author", Value: raw, Err: ErrInvalidAuthor}
	}
	return a, nil
}

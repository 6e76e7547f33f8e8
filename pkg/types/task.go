package types

import (
	"strings"
	"time"
)

// Task is a unit of work with a status, an assignee, and a priority.
type Task struct {
	TaskID    string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Assignee  Assignee  `json:"assignee"`
	Priority  Priority  `json:"priority"`
	Tag       string    `json:"tag,omitempty"`  // Empty means no tag.
	Note      string    `json:"note,omitempty"` // Empty means no note.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the title and the enum fields.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Err: ErrInvalidTitle}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Value: string(t.Status), Err: ErrInvalidStatus}
	}
	if !t.Assignee.Valid() {
		return &ValidationError{Field: "assignee", Value: string(t.Assignee), Err: ErrInvalidAssignee}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Value: string(t.Priority), Err: ErrInvalidPriority}
	}
	return nil
}

// SetStatus moves the task to status. Any known status is reachable from
// any other; setting the current status is allowed.
func (t *Task) SetStatus(status Status) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Value: string(status), Err: ErrInvalidStatus}
	}
	t.Status = status
	return nil
}

// IsOpen reports whether the task still counts as outstanding work.
func (t *Task) IsOpen() bool {
	return t.Status != StatusDone
}

// TaskPatch is a sparse update: nil fields are left untouched. Status is
// not patchable; status changes go through the logged status update.
type TaskPatch struct {
	Title    *string   `json:"title,omitempty"`
	Assignee *Assignee `json:"assignee,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Tag      *string   `json:"tag,omitempty"`
	Note     *string   `json:"note,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Assignee == nil &&
		p.Priority == nil && p.Tag == nil && p.Note == nil
}

// Apply writes the present fields onto t and validates the result. On error
// t is left unchanged.
func (p TaskPatch) Apply(t *Task) error {
	next := *t
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Assignee != nil {
		next.Assignee = *p.Assignee
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.Tag != nil {
		next.Tag = strings.TrimSpace(*p.Tag)
	}
	if p.Note != nil {
		next.Note = *p.Note
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*t = next
	return nil
}

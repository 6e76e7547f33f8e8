package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// JSONL file names in DataDir.
const (
	tasksJSONL = "tasks.jsonl"
	logsJSONL  = "logs.jsonl"
)

// timeLayout is the on-disk timestamp format: RFC 3339 with a fixed-width
// fraction so that string order equals time order in ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// taskJSON represents a task in tasks.jsonl. Field names match the SQLite
// columns so the loader can map records generically.
type taskJSON struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Assignee  string `json:"assignee"`
	Priority  string `json:"priority"`
	Tag       string `json:"tag,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// logJSON represents a log entry in logs.jsonl.
type logJSON struct {
	LogID     string `json:"log_id"`
	TaskID    string `json:"task_id"`
	Author    string `json:"author"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

func (r taskJSON) toTask() (*types.Task, error) {
	created, err := parseTime("task created_at", r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime("task updated_at", r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &types.Task{
		TaskID:    r.TaskID,
		Title:     r.Title,
		Status:    types.Status(r.Status),
		Assignee:  types.Assignee(r.Assignee),
		Priority:  types.Priority(r.Priority),
		Tag:       r.Tag,
		Note:      r.Note,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (r logJSON) toLog() (*types.LogEntry, error) {
	created, err := parseTime("log created_at", r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &types.LogEntry{
		LogID:     r.LogID,
		TaskID:    r.TaskID,
		Author:    types.Author(r.Author),
		Message:   r.Message,
		CreatedAt: created,
	}, nil
}

package types

import "time"

// LogEntry is an immutable audit record attached to a task.
type LogEntry struct {
	LogID     string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    Author    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentLog is a log entry with its task title resolved for display.
type RecentLog struct {
	LogEntry
	TaskTitle string `json:"task_title"`
}

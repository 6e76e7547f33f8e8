package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL for the task and log tables. Logs reference tasks by id only;
// the no-orphan rule is enforced by cascading deletes in tasksTable.Delete.
const (
	createTasks = `CREATE TABLE tasks (
    task_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    assignee TEXT NOT NULL,
    priority TEXT NOT NULL,
    tag TEXT,
    note TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createLogs = `CREATE TABLE logs (
    log_id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    author TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TEXT NOT NULL
);`
)

// Index DDL for the lookups the tracker performs.
const (
	idxTasksStatus   = `CREATE INDEX idx_tasks_status ON tasks(status);`
	idxTasksAssignee = `CREATE INDEX idx_tasks_assignee ON tasks(assignee);`
	idxLogsTask      = `CREATE INDEX idx_logs_task ON logs(task_id);`
	idxLogsCreated   = `CREATE INDEX idx_logs_created ON logs(created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createTasks,
	createLogs,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxTasksStatus,
	idxTasksAssignee,
	idxLogsTask,
	idxLogsCreated,
}

// initSchema creates every table and index on a fresh database.
func initSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

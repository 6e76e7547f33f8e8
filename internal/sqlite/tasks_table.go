package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/duet/pkg/types"
)

var _ types.Table = (*tasksTable)(nil)

const selectTasks = "SELECT task_id, title, status, assignee, priority, tag, note, created_at, updated_at FROM tasks"

// tasksTable implements types.Table for *types.Task.
type tasksTable struct {
	tableBase
}

// Get retrieves a task by ID.
func (tt *tasksTable) Get(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	q, release, err := tt.begin(false)
	if err != nil {
		return nil, err
	}
	defer release()

	task, err := getTask(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func getTask(ctx context.Context, q querier, id string) (*types.Task, error) {
	rec, err := scanTaskRecord(q.QueryRowContext(ctx, selectTasks+" WHERE task_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return rec.toTask()
}

// Set creates or updates a task. With an empty id (and empty TaskID) a UUID
// v7 is generated and both timestamps are set; otherwise the row is upserted
// and UpdatedAt refreshed. The task is validated first.
func (tt *tasksTable) Set(ctx context.Context, id string, data any) (string, error) {
	task, ok := data.(*types.Task)
	if !ok || task == nil {
		return "", types.ErrInvalidData
	}
	task.Title = strings.TrimSpace(task.Title)
	task.Tag = strings.TrimSpace(task.Tag)
	if err := task.Validate(); err != nil {
		return "", err
	}

	q, release, err := tt.begin(true)
	if err != nil {
		return "", err
	}
	defer release()

	ts := now()
	if id == "" {
		id = task.TaskID
	}
	if id == "" {
		if id, err = generateUUID(); err != nil {
			return "", err
		}
	}
	task.TaskID = id
	if task.CreatedAt.IsZero() {
		task.CreatedAt = ts
	}
	task.UpdatedAt = ts

	_, err = q.ExecContext(ctx, `
		INSERT INTO tasks (task_id, title, status, assignee, priority, tag, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			assignee = excluded.assignee,
			priority = excluded.priority,
			tag = excluded.tag,
			note = excluded.note,
			updated_at = excluded.updated_at`,
		task.TaskID, task.Title, string(task.Status), string(task.Assignee), string(task.Priority),
		nullString(task.Tag), nullString(task.Note),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("upserting task: %w", err)
	}

	if err := tt.wrote(ctx, types.TasksTable); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a task and every log entry that references it, logs first.
func (tt *tasksTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	q, release, err := tt.begin(true)
	if err != nil {
		return err
	}
	defer release()

	var exists int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE task_id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return fmt.Errorf("checking task existence: %w", err)
	}

	res, err := q.ExecContext(ctx, "DELETE FROM logs WHERE task_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task logs: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM tasks WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	dirty := []string{types.TasksTable}
	if n, _ := res.RowsAffected(); n > 0 {
		dirty = append(dirty, types.LogsTable)
	}
	return tt.wrote(ctx, dirty...)
}

// Fetch returns tasks in creation order. Supported filter keys are
// FilterStatus and FilterAssignee; values may be the enum type or a string.
func (tt *tasksTable) Fetch(ctx context.Context, filter types.Filter) ([]any, error) {
	var (
		conditions []string
		args       []any
	)
	for key, v := range filter {
		var column string
		switch key {
		case types.FilterStatus:
			column = "status"
		case types.FilterAssignee:
			column = "assignee"
		default:
			return nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
		val, ok := enumString(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidFilter, key)
		}
		conditions = append(conditions, column+" = ?")
		args = append(args, val)
	}

	query := selectTasks
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	q, release, err := tt.begin(false)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		task, err := rec.toTask()
		if err != nil {
			return nil, err
		}
		results = append(results, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return results, nil
}

func scanTaskRecord(row rowScanner) (taskJSON, error) {
	var (
		rec       taskJSON
		tag, note sql.NullString
	)
	err := row.Scan(&rec.TaskID, &rec.Title, &rec.Status, &rec.Assignee, &rec.Priority,
		&tag, &note, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return taskJSON{}, err
	}
	rec.Tag = tag.String
	rec.Note = note.String
	return rec, nil
}

// enumString accepts the enum types and plain strings as filter values.
func enumString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case types.Status:
		return string(s), true
	case types.Assignee:
		return string(s), true
	case types.Priority:
		return string(s), true
	default:
		return "", false
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

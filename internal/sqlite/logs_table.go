package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/duet/pkg/types"
)

var _ types.Table = (*logsTable)(nil)

const selectLogs = "SELECT log_id, task_id, author, message, created_at FROM logs"

// logsTable implements types.Table for *types.LogEntry. Entries are append
// only: Set never updates an existing entry.
type logsTable struct {
	tableBase
}

// Get retrieves a log entry by ID.
func (lt *logsTable) Get(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	q, release, err := lt.begin(false)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := scanLogRecord(q.QueryRowContext(ctx, selectLogs+" WHERE log_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "log", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting log %s: %w", id, err)
	}
	return rec.toLog()
}

// Set appends a new log entry and returns its generated ID. Passing an id
// or an entry that already has a LogID returns ErrLogImmutable. The
// referenced task must exist.
func (lt *logsTable) Set(ctx context.Context, id string, data any) (string, error) {
	entry, ok := data.(*types.LogEntry)
	if !ok || entry == nil {
		return "", types.ErrInvalidData
	}
	if id != "" || entry.LogID != "" {
		return "", types.ErrLogImmutable
	}
	if entry.TaskID == "" {
		return "", types.ErrInvalidID
	}
	if !entry.Author.Valid() {
		return "", &types.ValidationError{Field: "author", Value: string(entry.Author), Err: types.ErrInvalidAuthor}
	}
	entry.Message = strings.TrimSpace(entry.Message)
	if entry.Message == "" {
		return "", &types.ValidationError{Field: "message", Err: types.ErrInvalidMessage}
	}

	q, release, err := lt.begin(true)
	if err != nil {
		return "", err
	}
	defer release()

	var exists int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE task_id = ?", entry.TaskID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &types.NotFoundError{Entity: "task", ID: entry.TaskID}
	}
	if err != nil {
		return "", fmt.Errorf("checking task existence: %w", err)
	}

	logID, err := generateUUID()
	if err != nil {
		return "", err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO logs (log_id, task_id, author, message, created_at) VALUES (?, ?, ?, ?, ?)",
		logID, entry.TaskID, string(entry.Author), entry.Message, formatTime(entry.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("inserting log: %w", err)
	}
	entry.LogID = logID

	if err := lt.wrote(ctx, types.LogsTable); err != nil {
		return "", err
	}
	return logID, nil
}

// Delete removes a single log entry. It exists for cascading task deletes.
func (lt *logsTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	q, release, err := lt.begin(true)
	if err != nil {
		return err
	}
	defer release()

	res, err := q.ExecContext(ctx, "DELETE FROM logs WHERE log_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting log: %w", err)
	}
	if n == 0 {
		return &types.NotFoundError{Entity: "log", ID: id}
	}
	return lt.wrote(ctx, types.LogsTable)
}

// Fetch returns log entries oldest first. Supported filter keys:
// FilterTaskID (string), FilterNewestFirst (bool), FilterLimit (int).
func (lt *logsTable) Fetch(ctx context.Context, filter types.Filter) ([]any, error) {
	var (
		conditions  []string
		args        []any
		newestFirst bool
		limit       int
	)
	for key, v := range filter {
		switch key {
		case types.FilterTaskID:
			taskID, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s", types.ErrInvalidFilter, key)
			}
			conditions = append(conditions, "task_id = ?")
			args = append(args, taskID)
		case types.FilterNewestFirst:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: %s", types.ErrInvalidFilter, key)
			}
			newestFirst = b
		case types.FilterLimit:
			n, ok := v.(int)
			if !ok || n < 0 {
				return nil, fmt.Errorf("%w: %s", types.ErrInvalidFilter, key)
			}
			limit = n
		default:
			return nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
	}

	query := selectLogs
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if newestFirst {
		query += " ORDER BY created_at DESC, rowid DESC"
	} else {
		query += " ORDER BY created_at ASC, rowid ASC"
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	q, release, err := lt.begin(false)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		rec, err := scanLogRecord(rows)
		if err != nil {
			return nil, err
		}
		entry, err := rec.toLog()
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}
	return results, nil
}

func scanLogRecord(row rowScanner) (logJSON, error) {
	var rec logJSON
	err := row.Scan(&rec.LogID, &rec.TaskID, &rec.Author, &rec.Message, &rec.CreatedAt)
	if err != nil {
		return logJSON{}, err
	}
	return rec, nil
}

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// persistTable rewrites the JSONL file backing the named table from the
// current SQLite contents. The caller must hold b.mu.
func (b *Backend) persistTable(ctx context.Context, name string) error {
	var (
		records []json.RawMessage
		file    string
		err     error
	)
	switch name {
	case types.TasksTable:
		file = tasksJSONL
		records, err = b.taskRecords(ctx)
	case types.LogsTable:
		file = logsJSONL
		records, err = b.logRecords(ctx)
	default:
		return types.ErrTableNotFound
	}
	if err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.config.DataDir, file), records)
}

func (b *Backend) taskRecords(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := b.db.QueryContext(ctx, selectTasks+" ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("querying tasks for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling task for JSONL: %w", err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks for JSONL: %w", err)
	}
	return records, nil
}

func (b *Backend) logRecords(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := b.db.QueryContext(ctx, selectLogs+" ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("querying logs for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		rec, err := scanLogRecord(rows)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling log for JSONL: %w", err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs for JSONL: %w", err)
	}
	return records, nil
}

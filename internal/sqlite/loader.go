package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// jsonlTableMapping maps JSONL filenames to their SQLite tables and column
// lists. Tasks load before logs so row order matches file order.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
}{
	{tasksJSONL, "tasks", []string{"task_id", "title", "status", "assignee", "priority", "tag", "note", "created_at", "updated_at"}},
	{logsJSONL, "logs", []string{"log_id", "task_id", "author", "message", "created_at"}},
}

// loadAllJSONL reads each JSONL file from dataDir and inserts its records
// into the matching table inside one transaction: either every file loads
// or the database stays empty. Malformed lines and records that violate a
// constraint are skipped; unknown fields are ignored.
func loadAllJSONL(ctx context.Context, db *sql.DB, dataDir string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(ctx, tx, mapping.table, mapping.columns, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into table. Only the listed
// columns are read from each record; missing columns insert as NULL.
func insertRecords(ctx context.Context, tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = obj[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			continue
		}
	}
	return nil
}

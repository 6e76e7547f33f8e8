package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// setupBackend attaches a Backend to a fresh temp dir and detaches it when
// the test ends.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	return setupBackendWith(t, t.TempDir(), nil)
}

func setupBackendWith(t *testing.T, dir string, cfg *types.SQLiteConfig) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dir,
		SQLiteConfig: cfg,
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func newTask(title string) *types.Task {
	return &types.Task{
		Title:    title,
		Status:   types.StatusTodo,
		Assignee: types.AssigneeRay,
		Priority: types.PriorityMid,
	}
}

func mustTable(t *testing.T, tables types.Tables, name string) types.Table {
	t.Helper()
	tbl, err := tables.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func jsonlLines(t *testing.T, path string) int {
	t.Helper()
	records, err := readJSONL(path)
	require.NoError(t, err)
	return len(records)
}

func TestAttachDetachLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := NewBackend()

	_, err := b.GetTable(types.TasksTable)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)

	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	require.NoError(t, b.Attach(cfg))
	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)

	for _, name := range []string{tasksJSONL, logsJSONL} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Zero(t, info.Size(), name)
	}

	tbl := mustTable(t, b, types.TasksTable)
	_, err = b.GetTable("comments")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "Detach is idempotent")

	_, err = tbl.Fetch(ctx, nil)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
	err = b.RunInTx(ctx, func(types.Tables) error { return nil })
	assert.ErrorIs(t, err, types.ErrCupboardDetached)
}

func TestAttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "dolt"}), types.ErrBackendUnknown)
	assert.ErrorIs(t, b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      t.TempDir(),
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: "never"},
	}), types.ErrSyncStrategyUnknown)
}

func TestReattachReloadsFromJSONL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	tasks := mustTable(t, b, types.TasksTable)
	logs := mustTable(t, b, types.LogsTable)

	first := newTask("first")
	first.Tag = "dev"
	first.Note = "remember"
	id1, err := tasks.Set(ctx, "", first)
	require.NoError(t, err)
	id2, err := tasks.Set(ctx, "", newTask("second"))
	require.NoError(t, err)
	for _, msg := range []string{"one", "two", "three"} {
		_, err := logs.Set(ctx, "", &types.LogEntry{TaskID: id1, Author: types.AuthorClaude, Message: msg})
		require.NoError(t, err)
	}
	require.NoError(t, b.Detach())

	b2 := setupBackendWith(t, dir, nil)
	got, err := mustTable(t, b2, types.TasksTable).Fetch(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].(*types.Task).TaskID)
	assert.Equal(t, id2, got[1].(*types.Task).TaskID)
	assert.Equal(t, "dev", got[0].(*types.Task).Tag)
	assert.Equal(t, "remember", got[0].(*types.Task).Note)

	entries, err := mustTable(t, b2, types.LogsTable).Fetch(ctx, types.Filter{types.FilterTaskID: id1})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "one", entries[0].(*types.LogEntry).Message)
	assert.Equal(t, "three", entries[2].(*types.LogEntry).Message)
}

func TestAttachSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := `{"task_id":"a","title":"ok","status":"todo","assignee":"ray","priority":"low","created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}
not json at all
{"task_id":"b","title":"missing fields"}
{"task_id":"c","title":"future","status":"done","assignee":"both","priority":"high","created_at":"2026-01-03T00:00:00Z","updated_at":"2026-01-03T00:00:00Z","color":"blue"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasksJSONL), []byte(content), 0o644))

	b := setupBackendWith(t, dir, nil)
	got, err := mustTable(t, b, types.TasksTable).Fetch(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].(*types.Task).TaskID)
	assert.Equal(t, "c", got[1].(*types.Task).TaskID)
}

func TestRunInTxCommitsAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := setupBackendWith(t, dir, nil)

	var taskID string
	err := b.RunInTx(ctx, func(tx types.Tables) error {
		var err error
		taskID, err = mustTable(t, tx, types.TasksTable).Set(ctx, "", newTask("atomic"))
		if err != nil {
			return err
		}
		_, err = mustTable(t, tx, types.LogsTable).Set(ctx, "", &types.LogEntry{
			TaskID: taskID, Author: types.AuthorRay, Message: "created",
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, jsonlLines(t, filepath.Join(dir, tasksJSONL)))
	assert.Equal(t, 1, jsonlLines(t, filepath.Join(dir, logsJSONL)))

	entries, err := mustTable(t, b, types.LogsTable).Fetch(ctx, types.Filter{types.FilterTaskID: taskID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := setupBackendWith(t, dir, nil)
	boom := errors.New("boom")

	err := b.RunInTx(ctx, func(tx types.Tables) error {
		if _, err := mustTable(t, tx, types.TasksTable).Set(ctx, "", newTask("ghost")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := mustTable(t, b, types.TasksTable).Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, jsonlLines(t, filepath.Join(dir, tasksJSONL)))
}

func TestRunInTxRecoversPanic(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	err := b.RunInTx(ctx, func(tx types.Tables) error {
		_, _ = mustTable(t, tx, types.TasksTable).Set(ctx, "", newTask("ghost"))
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	got, err := mustTable(t, b, types.TasksTable).Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunInTxTablesExpireAfterCommit(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	var leaked types.Table
	require.NoError(t, b.RunInTx(ctx, func(tx types.Tables) error {
		leaked = mustTable(t, tx, types.TasksTable)
		return nil
	}))
	_, err := leaked.Fetch(ctx, nil)
	assert.ErrorIs(t, err, errTxDone)
}

func TestSyncStrategy_ImmediateDefault(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := setupBackendWith(t, dir, nil)
	assert.Equal(t, types.SyncImmediate, b.syncStrategy)

	_, err := mustTable(t, b, types.TasksTable).Set(ctx, "", newTask("now"))
	require.NoError(t, err)
	assert.Equal(t, 1, jsonlLines(t, filepath.Join(dir, tasksJSONL)))
}

func TestSyncStrategy_OnClose_DefersWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dir,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncOnClose},
	}))

	tasks := mustTable(t, b, types.TasksTable)
	for i := 0; i < 3; i++ {
		_, err := tasks.Set(ctx, "", newTask("deferred"))
		require.NoError(t, err)
	}
	assert.Zero(t, jsonlLines(t, filepath.Join(dir, tasksJSONL)))

	b.batchMu.Lock()
	pending := len(b.pendingWrites)
	b.batchMu.Unlock()
	assert.Equal(t, 3, pending)

	require.NoError(t, b.Detach())
	assert.Equal(t, 3, jsonlLines(t, filepath.Join(dir, tasksJSONL)))
}

func TestSyncStrategy_Batch_FlushAtThreshold(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := setupBackendWith(t, dir, &types.SQLiteConfig{
		SyncStrategy:  types.SyncBatch,
		BatchSize:     2,
		BatchInterval: 3600,
	})

	tasks := mustTable(t, b, types.TasksTable)
	_, err := tasks.Set(ctx, "", newTask("one"))
	require.NoError(t, err)
	assert.Zero(t, jsonlLines(t, filepath.Join(dir, tasksJSONL)))

	_, err = tasks.Set(ctx, "", newTask("two"))
	require.NoError(t, err)
	assert.Equal(t, 2, jsonlLines(t, filepath.Join(dir, tasksJSONL)))
}

func TestSyncStrategy_Batch_FlushOnInterval(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := setupBackendWith(t, dir, &types.SQLiteConfig{
		SyncStrategy:  types.SyncBatch,
		BatchSize:     100,
		BatchInterval: 1,
	})

	_, err := mustTable(t, b, types.TasksTable).Set(ctx, "", newTask("timed"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		records, err := readJSONL(filepath.Join(dir, tasksJSONL))
		return err == nil && len(records) == 1
	}, 5*time.Second, 50*time.Millisecond)
}

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/duet/internal/sqlite"
	"github.com/mesh-intelligence/duet/pkg/types"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
}

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return New(b, WithClock(fixedClock))
}

func mustCreate(t *testing.T, e *Engine, title string, a types.Assignee, p types.Priority) string {
	t.Helper()
	id, err := e.CreateTask(context.Background(), NewTask{Title: title, Assignee: a, Priority: p})
	require.NoError(t, err)
	return id
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)

	id, err := e.CreateTask(ctx, NewTask{
		Title:    "  write docs  ",
		Assignee: types.AssigneeClaude,
		Priority: types.PriorityHigh,
		Tag:      "dev",
		Note:     "see wiki",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	task, err := e.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "write docs", task.Title)
	assert.Equal(t, types.StatusTodo, task.Status)
	assert.Equal(t, types.AssigneeClaude, task.Assignee)
	assert.Equal(t, "dev", task.Tag)
	assert.Equal(t, "see wiki", task.Note)

	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, CreatedMessage, logs[0].Message)
	assert.Equal(t, types.AuthorRay, logs[0].Author)
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)

	tests := []struct {
		name string
		in   NewTask
		want error
	}{
		{"blank title", NewTask{Title: "   ", Assignee: types.AssigneeRay, Priority: types.PriorityLow}, types.ErrInvalidTitle},
		{"bad assignee", NewTask{Title: "x", Assignee: "bob", Priority: types.PriorityLow}, types.ErrInvalidAssignee},
		{"bad priority", NewTask{Title: "x", Assignee: types.AssigneeRay, Priority: "urgent"}, types.ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateTask(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, types.IsValidation(err))
		})
	}

	all, err := e.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateStatusWritesLog(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "A", types.AssigneeRay, types.PriorityHigh)

	require.NoError(t, e.UpdateStatus(ctx, id, types.StatusWaitingRay, types.AuthorClaude, ""))
	require.NoError(t, e.UpdateStatus(ctx, id, types.StatusInProgress, types.AuthorRay, "picking it up"))

	task, err := e.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, task.Status)

	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "ステータスを「Ray確認待ち」に変更しました", logs[1].Message)
	assert.Equal(t, types.AuthorClaude, logs[1].Author)
	assert.Equal(t, "picking it up", logs[2].Message)
}

func TestUpdateStatusAllTransitions(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)

	for _, from := range types.Statuses {
		for _, to := range types.Statuses {
			if from == to {
				continue
			}
			id := mustCreate(t, e, string(from)+"->"+string(to), types.AssigneeBoth, types.PriorityMid)
			if from != types.StatusTodo {
				require.NoError(t, e.UpdateStatus(ctx, id, from, types.AuthorRay, ""))
			}
			require.NoError(t, e.UpdateStatus(ctx, id, to, types.AuthorClaude, ""), "%s -> %s", from, to)
			task, err := e.GetTask(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, to, task.Status)
		}
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "A", types.AssigneeRay, types.PriorityLow)

	assert.ErrorIs(t, e.UpdateStatus(ctx, "missing", types.StatusDone, types.AuthorRay, ""), types.ErrNotFound)
	assert.ErrorIs(t, e.UpdateStatus(ctx, id, "blocked", types.AuthorRay, ""), types.ErrInvalidStatus)
	assert.ErrorIs(t, e.UpdateStatus(ctx, id, types.StatusDone, "both", ""), types.ErrInvalidAuthor)

	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "draft", types.AssigneeRay, types.PriorityLow)

	title := "final"
	priority := types.PriorityHigh
	require.NoError(t, e.UpdateFields(ctx, id, types.TaskPatch{Title: &title, Priority: &priority}))

	task, err := e.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "final", task.Title)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	assert.Equal(t, types.AssigneeRay, task.Assignee)
	assert.Equal(t, types.StatusTodo, task.Status)

	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "field edits are not logged")
}

func TestUpdateFieldsErrors(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "keep", types.AssigneeRay, types.PriorityLow)

	blank := " "
	assert.ErrorIs(t, e.UpdateFields(ctx, id, types.TaskPatch{Title: &blank}), types.ErrInvalidTitle)
	bad := types.Assignee("nobody")
	assert.ErrorIs(t, e.UpdateFields(ctx, id, types.TaskPatch{Assignee: &bad}), types.ErrInvalidAssignee)
	assert.ErrorIs(t, e.UpdateFields(ctx, "missing", types.TaskPatch{}), types.ErrNotFound)

	task, err := e.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "keep", task.Title)
	assert.Equal(t, types.AssigneeRay, task.Assignee)
}

func TestDeleteTaskCascades(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "doomed", types.AssigneeRay, types.PriorityLow)
	other := mustCreate(t, e, "survivor", types.AssigneeClaude, types.PriorityLow)
	_, err := e.AddLog(ctx, id, types.AuthorClaude, "note")
	require.NoError(t, err)

	require.NoError(t, e.DeleteTask(ctx, id))

	_, err = e.GetTask(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, logs)

	logs, err = e.ListLogs(ctx, other)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	assert.ErrorIs(t, e.DeleteTask(ctx, id), types.ErrNotFound)
}

func TestAddLog(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "A", types.AssigneeRay, types.PriorityLow)

	logID, err := e.AddLog(ctx, id, types.AuthorClaude, "looked into it")
	require.NoError(t, err)
	assert.NotEmpty(t, logID)

	_, err = e.AddLog(ctx, id, types.AuthorClaude, "  ")
	assert.ErrorIs(t, err, types.ErrInvalidMessage)
	_, err = e.AddLog(ctx, "missing", types.AuthorClaude, "hello")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.AddLog(ctx, id, "both", "hello")
	assert.ErrorIs(t, err, types.ErrInvalidAuthor)

	task, err := e.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTodo, task.Status)
}

func TestLogCountInvariant(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "A", types.AssigneeRay, types.PriorityLow)

	for _, s := range []types.Status{types.StatusInProgress, types.StatusWaitingRay, types.StatusDone} {
		require.NoError(t, e.UpdateStatus(ctx, id, s, types.AuthorRay, ""))
	}
	for range 2 {
		_, err := e.AddLog(ctx, id, types.AuthorClaude, "comment")
		require.NoError(t, err)
	}
	title := "renamed"
	require.NoError(t, e.UpdateFields(ctx, id, types.TaskPatch{Title: &title}))

	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 1+3+2)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	a := mustCreate(t, e, "a", types.AssigneeRay, types.PriorityLow)
	mustCreate(t, e, "b", types.AssigneeClaude, types.PriorityLow)
	c := mustCreate(t, e, "c", types.AssigneeRay, types.PriorityLow)
	require.NoError(t, e.UpdateStatus(ctx, c, types.StatusDone, types.AuthorRay, ""))

	ray, err := e.ListTasksByAssignee(ctx, types.AssigneeRay)
	require.NoError(t, err)
	require.Len(t, ray, 2)
	assert.Equal(t, a, ray[0].TaskID)
	assert.Equal(t, c, ray[1].TaskID)

	done, err := e.ListTasksByStatus(ctx, types.StatusDone)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, c, done[0].TaskID)

	_, err = e.ListTasksByStatus(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrInvalidStatus)
}

func TestListRecentLogs(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	keep := mustCreate(t, e, "keep", types.AssigneeRay, types.PriorityLow)
	gone := mustCreate(t, e, "gone", types.AssigneeRay, types.PriorityLow)
	_, err := e.AddLog(ctx, keep, types.AuthorClaude, "latest")
	require.NoError(t, err)

	recent, err := e.ListRecentLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "latest", recent[0].Message)
	assert.Equal(t, "keep", recent[0].TaskTitle)
	assert.Equal(t, "gone", recent[1].TaskTitle)

	recent, err = e.ListRecentLogs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	require.NoError(t, e.DeleteTask(ctx, gone))
	recent, err = e.ListRecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, r := range recent {
		assert.Equal(t, "keep", r.TaskTitle)
	}
}

func TestListRecentLogsDefaultLimit(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "chatty", types.AssigneeRay, types.PriorityLow)
	for range DefaultRecentLimit + 5 {
		_, err := e.AddLog(ctx, id, types.AuthorRay, "ping")
		require.NoError(t, err)
	}

	recent, err := e.ListRecentLogs(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, recent, DefaultRecentLimit)
}

func TestScenarioHandOffToDone(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	id := mustCreate(t, e, "A", types.AssigneeRay, types.PriorityHigh)

	sum, err := e.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ray: 1, Total: 1}, sum)

	require.NoError(t, e.UpdateStatus(ctx, id, types.StatusWaitingRay, types.AuthorClaude, ""))
	logs, err := e.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ステータスを「Ray確認待ち」に変更しました", logs[len(logs)-1].Message)
	sum, err = e.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WaitingRay)

	require.NoError(t, e.UpdateStatus(ctx, id, types.StatusDone, types.AuthorRay, ""))
	sum, err = e.GetSummary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Total)

	exp, err := e.ExportToMarkdown(ctx)
	require.NoError(t, err)
	assert.Contains(t, exp.Completed, "- [x] A\n")
}

func TestStatusChangeMessage(t *testing.T) {
	assert.Equal(t, "ステータスを「Todo」に変更しました", StatusChangeMessage(types.StatusTodo))
	assert.Equal(t, "ステータスを「作業中」に変更しました", StatusChangeMessage(types.StatusInProgress))
	assert.Equal(t, "ステータスを「完了」に変更しました", StatusChangeMessage(types.StatusDone))
}

package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/duet/pkg/types"
)

func TestLogsTable_Append(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	taskID, err := mustTable(t, b, types.TasksTable).Set(ctx, "", newTask("host"))
	require.NoError(t, err)
	logs := mustTable(t, b, types.LogsTable)

	entry := &types.LogEntry{TaskID: taskID, Author: types.AuthorClaude, Message: "  looked at it  "}
	id, err := logs.Set(ctx, "", entry)
	require.NoError(t, err)
	assert.Equal(t, id, entry.LogID)

	got, err := logs.Get(ctx, id)
	require.NoError(t, err)
	saved := got.(*types.LogEntry)
	assert.Equal(t, "looked at it", saved.Message)
	assert.Equal(t, types.AuthorClaude, saved.Author)
	assert.Equal(t, taskID, saved.TaskID)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestLogsTable_SetRejects(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	taskID, err := mustTable(t, b, types.TasksTable).Set(ctx, "", newTask("host"))
	require.NoError(t, err)
	logs := mustTable(t, b, types.LogsTable)

	tests := []struct {
		name    string
		id      string
		entry   any
		wantErr error
	}{
		{"wrong type", "", newTask("x"), types.ErrInvalidData},
		{"update by id", "abc", &types.LogEntry{TaskID: taskID, Author: types.AuthorRay, Message: "m"}, types.ErrLogImmutable},
		{"existing log id", "", &types.LogEntry{LogID: "abc", TaskID: taskID, Author: types.AuthorRay, Message: "m"}, types.ErrLogImmutable},
		{"no task id", "", &types.LogEntry{Author: types.AuthorRay, Message: "m"}, types.ErrInvalidID},
		{"bad author", "", &types.LogEntry{TaskID: taskID, Author: "both", Message: "m"}, types.ErrInvalidAuthor},
		{"blank message", "", &types.LogEntry{TaskID: taskID, Author: types.AuthorRay, Message: " \n "}, types.ErrInvalidMessage},
		{"missing task", "", &types.LogEntry{TaskID: "gone", Author: types.AuthorRay, Message: "m"}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := logs.Set(ctx, tt.id, tt.entry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := logs.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLogsTable_FetchOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tasks := mustTable(t, b, types.TasksTable)
	logs := mustTable(t, b, types.LogsTable)

	a, err := tasks.Set(ctx, "", newTask("a"))
	require.NoError(t, err)
	c, err := tasks.Set(ctx, "", newTask("c"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		target := a
		if i%2 == 1 {
			target = c
		}
		_, err := logs.Set(ctx, "", &types.LogEntry{TaskID: target, Author: types.AuthorRay, Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	messages := func(filter types.Filter) []string {
		got, err := logs.Fetch(ctx, filter)
		require.NoError(t, err)
		out := make([]string, 0, len(got))
		for _, e := range got {
			out = append(out, e.(*types.LogEntry).Message)
		}
		return out
	}

	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, messages(nil))
	assert.Equal(t, []string{"m0", "m2", "m4"}, messages(types.Filter{types.FilterTaskID: a}))
	assert.Equal(t, []string{"m4", "m3"}, messages(types.Filter{types.FilterNewestFirst: true, types.FilterLimit: 2}))
	assert.Equal(t, []string{"m3", "m1"}, messages(types.Filter{types.FilterTaskID: c, types.FilterNewestFirst: true}))

	_, err = logs.Fetch(ctx, types.Filter{types.FilterLimit: "ten"})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
	_, err = logs.Fetch(ctx, types.Filter{types.FilterLimit: -1})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
	_, err = logs.Fetch(ctx, types.Filter{types.FilterStatus: "todo"})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
}

func TestLogsTable_Delete(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	taskID, err := mustTable(t, b, types.TasksTable).Set(ctx, "", newTask("host"))
	require.NoError(t, err)
	logs := mustTable(t, b, types.LogsTable)

	id, err := logs.Set(ctx, "", &types.LogEntry{TaskID: taskID, Author: types.AuthorRay, Message: "bye"})
	require.NoError(t, err)
	require.NoError(t, logs.Delete(ctx, id))
	assert.ErrorIs(t, logs.Delete(ctx, id), types.ErrNotFound)

	_, err = logs.Get(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

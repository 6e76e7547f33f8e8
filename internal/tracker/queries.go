package tracker

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// GetTask returns one task or a NotFoundError.
func (e *Engine) GetTask(ctx context.Context, id string) (*types.Task, error) {
	tasks, err := e.store.GetTable(types.TasksTable)
	if err != nil {
		return nil, err
	}
	return getTask(ctx, tasks, id)
}

// ListTasks returns every task in creation order.
func (e *Engine) ListTasks(ctx context.Context) ([]*types.Task, error) {
	return e.fetchTasks(ctx, nil)
}

// ListTasksByStatus returns the tasks with the given status.
func (e *Engine) ListTasksByStatus(ctx context.Context, status types.Status) ([]*types.Task, error) {
	if !status.Valid() {
		return nil, &types.ValidationError{Field: "status", Value: string(status), Err: types.ErrInvalidStatus}
	}
	return e.fetchTasks(ctx, types.Filter{types.FilterStatus: status})
}

// ListTasksByAssignee returns the tasks assigned to a.
func (e *Engine) ListTasksByAssignee(ctx context.Context, a types.Assignee) ([]*types.Task, error) {
	if !a.Valid() {
		return nil, &types.ValidationError{Field: "assignee", Value: string(a), Err: types.ErrInvalidAssignee}
	}
	return e.fetchTasks(ctx, types.Filter{types.FilterAssignee: a})
}

// ListLogs returns the log of a task, oldest first. A task without entries,
// including a deleted one, yields an empty slice.
func (e *Engine) ListLogs(ctx context.Context, taskID string) ([]*types.LogEntry, error) {
	logs, err := e.store.GetTable(types.LogsTable)
	if err != nil {
		return nil, err
	}
	rows, err := logs.Fetch(ctx, types.Filter{types.FilterTaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	out := make([]*types.LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(*types.LogEntry))
	}
	return out, nil
}

// ListRecentLogs returns up to limit entries across all tasks, newest first,
// each with the title of its task. A limit that is not positive means
// DefaultRecentLimit. Entries whose task is gone carry DeletedTaskTitle.
func (e *Engine) ListRecentLogs(ctx context.Context, limit int) ([]types.RecentLog, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	logs, err := e.store.GetTable(types.LogsTable)
	if err != nil {
		return nil, err
	}
	tasks, err := e.store.GetTable(types.TasksTable)
	if err != nil {
		return nil, err
	}

	rows, err := logs.Fetch(ctx, types.Filter{
		types.FilterNewestFirst: true,
		types.FilterLimit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent logs: %w", err)
	}

	titles := make(map[string]string)
	out := make([]types.RecentLog, 0, len(rows))
	for _, r := range rows {
		entry := r.(*types.LogEntry)
		title, ok := titles[entry.TaskID]
		if !ok {
			task, err := getTask(ctx, tasks, entry.TaskID)
			switch {
			case err == nil:
				title = task.Title
			case isNotFound(err):
				title = DeletedTaskTitle
			default:
				return nil, err
			}
			titles[entry.TaskID] = title
		}
		out = append(out, types.RecentLog{LogEntry: *entry, TaskTitle: title})
	}
	return out, nil
}

func (e *Engine) fetchTasks(ctx context.Context, filter types.Filter) ([]*types.Task, error) {
	tasks, err := e.store.GetTable(types.TasksTable)
	if err != nil {
		return nil, err
	}
	rows, err := tasks.Fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]*types.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(*types.Task))
	}
	return out, nil
}

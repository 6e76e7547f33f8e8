// Package tracker implements the task lifecycle: creation, status
// transitions, sparse field edits, cascading deletes, and the audit log
// written atomically with every creation and status change. It also owns
// the markdown export, the bulk import, and the summary counts.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mesh-intelligence/duet/internal/logging"
	"github.com/mesh-intelligence/duet/internal/telemetry"
	"github.com/mesh-intelligence/duet/pkg/types"
)

// Canonical log text.
const (
	CreatedMessage   = "タスクを作成しました"
	DeletedTaskTitle = "削除済みタスク"
)

// DefaultRecentLimit is used by ListRecentLogs when limit is not positive.
const DefaultRecentLimit = 20

const scopeName = "github.com/mesh-intelligence/duet/tracker"

// StatusChangeMessage is the log message written when a status update
// carries no message of its own.
func StatusChangeMessage(s types.Status) string {
	return fmt.Sprintf("ステータスを「%s」に変更しました", s.Label())
}

// NewTask holds the caller-supplied fields for CreateTask.
type NewTask struct {
	Title    string         `json:"title"`
	Assignee types.Assignee `json:"assignee"`
	Priority types.Priority `json:"priority"`
	Tag      string         `json:"tag,omitempty"`
	Note     string         `json:"note,omitempty"`
}

// Engine runs tracker operations against a Cupboard.
type Engine struct {
	store  types.Cupboard
	clock  func() time.Time
	logger *log.Logger
	ops    *telemetry.Ops
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for export timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine over an attached store.
func New(store types.Cupboard, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		clock:  time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ops = telemetry.NewOps(scopeName, "duet.tracker")
	return e
}

// CreateTask inserts a todo task and its creation log in one transaction
// and returns the new task ID.
func (e *Engine) CreateTask(ctx context.Context, in NewTask) (id string, err error) {
	ctx, done := e.ops.Start(ctx, "create_task")
	defer func() { done(err) }()

	task := &types.Task{
		Title:    strings.TrimSpace(in.Title),
		Status:   types.StatusTodo,
		Assignee: in.Assignee,
		Priority: in.Priority,
		Tag:      strings.TrimSpace(in.Tag),
		Note:     in.Note,
	}
	if err := task.Validate(); err != nil {
		return "", err
	}

	err = e.store.RunInTx(ctx, func(tx types.Tables) error {
		tasks, logs, err := bothTables(tx)
		if err != nil {
			return err
		}
		if id, err = tasks.Set(ctx, "", task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		_, err = logs.Set(ctx, "", &types.LogEntry{
			TaskID:  id,
			Author:  types.AuthorRay,
			Message: CreatedMessage,
		})
		if err != nil {
			return fmt.Errorf("append creation log: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("task created", "id", id, "assignee", task.Assignee, "priority", task.Priority)
	return id, nil
}

// UpdateStatus moves a task to status and appends a log entry by author.
// An empty message is replaced by StatusChangeMessage(status). Any status
// may move to any other.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status types.Status, author types.Author, message string) (err error) {
	ctx, done := e.ops.Start(ctx, "update_status", attribute.String("status", string(status)))
	defer func() { done(err) }()

	if !status.Valid() {
		return &types.ValidationError{Field: "status", Value: string(status), Err: types.ErrInvalidStatus}
	}
	if !author.Valid() {
		return &types.ValidationError{Field: "author", Value: string(author), Err: types.ErrInvalidAuthor}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = StatusChangeMessage(status)
	}

	var from types.Status
	err = e.store.RunInTx(ctx, func(tx types.Tables) error {
		tasks, logs, err := bothTables(tx)
		if err != nil {
			return err
		}
		task, err := getTask(ctx, tasks, id)
		if err != nil {
			return err
		}
		from = task.Status
		if err := task.SetStatus(status); err != nil {
			return err
		}
		if _, err := tasks.Set(ctx, id, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		_, err = logs.Set(ctx, "", &types.LogEntry{TaskID: id, Author: author, Message: message})
		if err != nil {
			return fmt.Errorf("append status log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("task status changed", "id", id, "from", from, "to", status, "author", author)
	return nil
}

// UpdateFields applies the present fields of patch to a task. It writes no
// log entry.
func (e *Engine) UpdateFields(ctx context.Context, id string, patch types.TaskPatch) (err error) {
	ctx, done := e.ops.Start(ctx, "update_fields")
	defer func() { done(err) }()

	err = e.store.RunInTx(ctx, func(tx types.Tables) error {
		tasks, err := tx.GetTable(types.TasksTable)
		if err != nil {
			return err
		}
		task, err := getTask(ctx, tasks, id)
		if err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}
		if err := patch.Apply(task); err != nil {
			return err
		}
		if _, err := tasks.Set(ctx, id, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Debug("task fields updated", "id", id)
	return nil
}

// DeleteTask removes every log entry of the task and then the task itself,
// in one transaction.
func (e *Engine) DeleteTask(ctx context.Context, id string) (err error) {
	ctx, done := e.ops.Start(ctx, "delete_task")
	defer func() { done(err) }()

	var removed int
	err = e.store.RunInTx(ctx, func(tx types.Tables) error {
		tasks, logs, err := bothTables(tx)
		if err != nil {
			return err
		}
		if _, err := getTask(ctx, tasks, id); err != nil {
			return err
		}
		entries, err := logs.Fetch(ctx, types.Filter{types.FilterTaskID: id})
		if err != nil {
			return fmt.Errorf("list task logs: %w", err)
		}
		for _, entry := range entries {
			if err := logs.Delete(ctx, entry.(*types.LogEntry).LogID); err != nil {
				return fmt.Errorf("delete log: %w", err)
			}
		}
		removed = len(entries)
		if err := tasks.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("task deleted", "id", id, "logs", removed)
	return nil
}

// AddLog appends a comment to a task without changing it.
func (e *Engine) AddLog(ctx context.Context, taskID string, author types.Author, message string) (id string, err error) {
	ctx, done := e.ops.Start(ctx, "add_log")
	defer func() { done(err) }()

	if strings.TrimSpace(message) == "" {
		return "", &types.ValidationError{Field: "message", Err: types.ErrInvalidMessage}
	}
	if !author.Valid() {
		return "", &types.ValidationError{Field: "author", Value: string(author), Err: types.ErrInvalidAuthor}
	}
	if taskID == "" {
		return "", &types.NotFoundError{Entity: "task", ID: taskID}
	}

	logs, err := e.store.GetTable(types.LogsTable)
	if err != nil {
		return "", err
	}
	id, err = logs.Set(ctx, "", &types.LogEntry{TaskID: taskID, Author: author, Message: message})
	if err != nil {
		return "", err
	}

	e.logger.Debug("log added", "task", taskID, "author", author)
	return id, nil
}

// bothTables resolves the task and log tables from a transaction.
func bothTables(tx types.Tables) (types.Table, types.Table, error) {
	tasks, err := tx.GetTable(types.TasksTable)
	if err != nil {
		return nil, nil, err
	}
	logs, err := tx.GetTable(types.LogsTable)
	if err != nil {
		return nil, nil, err
	}
	return tasks, logs, nil
}

// getTask loads a task, mapping an empty id to NotFoundError.
func getTask(ctx context.Context, tasks types.Table, id string) (*types.Task, error) {
	if id == "" {
		return nil, &types.NotFoundError{Entity: "task", ID: id}
	}
	entity, err := tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task, ok := entity.(*types.Task)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, types.ErrInvalidData)
	}
	return task, nil
}

// isNotFound reports whether err means the referenced entity is gone.
func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

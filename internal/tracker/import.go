package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// ImportEntry is one task of a bulk import. Fields are raw strings so that
// every decoder (JSON, YAML, TOML, markdown) can fill them; they are
// validated when the entry is imported. An empty status means todo.
type ImportEntry struct {
	Title    string `json:"title" yaml:"title" toml:"title"`
	Assignee string `json:"assignee" yaml:"assignee" toml:"assignee"`
	Priority string `json:"priority" yaml:"priority" toml:"priority"`
	Tag      string `json:"tag,omitempty" yaml:"tag,omitempty" toml:"tag,omitempty"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty" toml:"note,omitempty"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty" toml:"status,omitempty"`
}

// ImportedTask pairs an imported title with its new ID.
type ImportedTask struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// ImportResult reports what an import inserted.
type ImportResult struct {
	Imported int            `json:"imported"`
	Tasks    []ImportedTask `json:"tasks"`
}

// ImportTasks inserts entries one at a time in input order. No creation
// log is written. The first invalid entry stops the import with a
// ValidationError whose field names the entry index; entries before it
// remain stored and are reported in the returned result.
func (e *Engine) ImportTasks(ctx context.Context, entries []ImportEntry) (res ImportResult, err error) {
	ctx, done := e.ops.Start(ctx, "import")
	defer func() { done(err) }()

	res.Tasks = []ImportedTask{}
	tasks, err := e.store.GetTable(types.TasksTable)
	if err != nil {
		return res, err
	}

	for i, entry := range entries {
		task, err := entry.toTask()
		if err != nil {
			return res, indexed(i, err)
		}
		id, err := tasks.Set(ctx, "", task)
		if err != nil {
			return res, indexed(i, err)
		}
		res.Tasks = append(res.Tasks, ImportedTask{Title: task.Title, ID: id})
		res.Imported++
	}

	e.logger.Info("imported tasks", "count", res.Imported)
	return res, nil
}

// EntriesFromTasks converts stored tasks into import entries, e.g. to push
// them to another server.
func EntriesFromTasks(tasks []*types.Task) []ImportEntry {
	out := make([]ImportEntry, len(tasks))
	for i, t := range tasks {
		out[i] = ImportEntry{
			Title:    t.Title,
			Assignee: string(t.Assignee),
			Priority: string(t.Priority),
			Tag:      t.Tag,
			Note:     t.Note,
			Status:   string(t.Status),
		}
	}
	return out
}

func (ie ImportEntry) toTask() (*types.Task, error) {
	title := strings.TrimSpace(ie.Title)
	if title == "" {
		return nil, &types.ValidationError{Field: "title", Err: types.ErrInvalidTitle}
	}
	assignee, err := types.ParseAssignee(ie.Assignee)
	if err != nil {
		return nil, err
	}
	priority, err := types.ParsePriority(ie.Priority)
	if err != nil {
		return nil, err
	}
	status := types.StatusTodo
	if strings.TrimSpace(ie.Status) != "" {
		if status, err = types.ParseStatus(ie.Status); err != nil {
			return nil, err
		}
	}
	return &types.Task{
		Title:    title,
		Status:   status,
		Assignee: assignee,
		Priority: priority,
		Tag:      strings.TrimSpace(ie.Tag),
		Note:     ie.Note,
	}, nil
}

// indexed prefixes a validation field with the entry position, e.g.
// "tasks[2].title". Other errors are wrapped with the position.
func indexed(i int, err error) error {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		return &types.ValidationError{
			Field: fmt.Sprintf("tasks[%d].%s", i, ve.Field),
			Value: ve.Value,
			Err:   ve.Err,
		}
	}
	return fmt.Errorf("import entry %d: %w", i, err)
}

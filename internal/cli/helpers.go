package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/syncclient"
	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/pkg/sqlite"
	"github.com/mesh-intelligence/duet/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the exit code an error should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// exitCode maps an error to an exit code. Validation, not-found and
// rejected sync requests are user errors; anything else is a system error.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if types.IsValidation(err) || errors.Is(err, types.ErrNotFound) {
		return exitUserError
	}
	var se *syncclient.StatusError
	if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
		return exitUserError
	}
	return exitSysError
}

// exactArgs is cobra.ExactArgs reporting a user error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return userError(err)
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return userError(err)
		}
		return nil
	}
}

// withEngine attaches the store for the duration of fn.
func (a *app) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *tracker.Engine) error) (err error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return userError(err)
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return sysError(fmt.Errorf("attach store: %w", err))
	}
	defer func() {
		if derr := backend.Detach(); derr != nil && err == nil {
			err = sysError(fmt.Errorf("detach store: %w", derr))
		}
	}()

	engine := tracker.New(backend, tracker.WithLogger(a.logger), tracker.WithClock(a.clock))
	return fn(cmd.Context(), engine)
}

// printJSON writes v as indented JSON to the command output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sysError(fmt.Errorf("encode output: %w", err))
	}
	return nil
}

// resolveTaskID accepts a full ID or a unique prefix of at least four
// characters, as shown by "duet task list".
func resolveTaskID(ctx context.Context, e *tracker.Engine, raw string) (string, error) {
	if _, err := e.GetTask(ctx, raw); err == nil {
		return raw, nil
	} else if !errors.Is(err, types.ErrNotFound) {
		return "", err
	}
	if len(raw) < 4 {
		return "", &types.NotFoundError{Entity: "task", ID: raw}
	}

	tasks, err := e.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range tasks {
		if len(t.TaskID) >= len(raw) && t.TaskID[:len(raw)] == raw {
			if match != "" {
				return "", userError(fmt.Errorf("task id prefix %q is ambiguous", raw))
			}
			match = t.TaskID
		}
	}
	if match == "" {
		return "", &types.NotFoundError{Entity: "task", ID: raw}
	}
	return match, nil
}

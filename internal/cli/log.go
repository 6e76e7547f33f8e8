package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/internal/ui"
	"github.com/mesh-intelligence/duet/pkg/types"
)

func newLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read and write task logs",
	}
	cmd.AddCommand(newLogAddCmd(a), newLogListCmd(a), newLogRecentCmd(a))
	return cmd
}

func newLogAddCmd(a *app) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "add ID MESSAGE...",
		Short: "Append a comment to a task",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args[1:], " ")
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				logID, err := e.AddLog(ctx, id, types.Author(author), message)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, map[string]string{"id": logID, "task_id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged on task %s\n", ui.ShortID(id))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "by", string(types.AuthorRay), "author: ray or claude")
	return cmd
}

func newLogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list ID",
		Short: "Show the log of a task, oldest first",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				logs, err := e.ListLogs(ctx, id)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, logs)
				}
				for _, entry := range logs {
					fmt.Fprintln(cmd.OutOrStdout(), ui.LogLine(entry, ""))
				}
				return nil
			})
		},
	}
}

func newLogRecentCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest log entries across all tasks",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return userError(fmt.Errorf("--limit must not be negative"))
			}
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				logs, err := e.ListRecentLogs(ctx, limit)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, logs)
				}
				for i := range logs {
					fmt.Fprintln(cmd.OutOrStdout(), ui.LogLine(&logs[i].LogEntry, logs[i].TaskTitle))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", tracker.DefaultRecentLimit, "number of entries")
	return cmd
}

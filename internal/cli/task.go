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

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect and change tasks",
	}
	cmd.AddCommand(
		newTaskCreateCmd(a),
		newTaskListCmd(a),
		newTaskShowCmd(a),
		newTaskStatusCmd(a),
		newTaskUpdateCmd(a),
		newTaskDeleteCmd(a),
	)
	return cmd
}

func newTaskCreateCmd(a *app) *cobra.Command {
	var assignee, priority, tag, note string
	cmd := &cobra.Command{
		Use:   "create TITLE...",
		Short: "Create a task in todo",
		Example: `  duet task create "Write the release notes" -a claude -p high --tag docs
  duet task create Review budget`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tracker.NewTask{
				Title:    strings.Join(args, " "),
				Assignee: types.Assignee(assignee),
				Priority: types.Priority(priority),
				Tag:      tag,
				Note:     note,
			}
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := e.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, map[string]string{"id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&assignee, "assignee", "a", string(types.AssigneeRay), "ray, claude or both")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(types.PriorityMid), "high, mid or low")
	cmd.Flags().StringVar(&tag, "tag", "", "tag, shown as #tag")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	return cmd
}

func newTaskListCmd(a *app) *cobra.Command {
	var status, assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in creation order",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && assignee != "" {
				return userError(fmt.Errorf("--status and --assignee cannot be combined"))
			}
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				var (
					tasks []*types.Task
					err   error
				)
				switch {
				case status != "":
					tasks, err = e.ListTasksByStatus(ctx, types.Status(status))
				case assignee != "":
					tasks, err = e.ListTasksByAssignee(ctx, types.Assignee(assignee))
				default:
					tasks, err = e.ListTasks(ctx)
				}
				if err != nil {
					return err
				}

				if a.flags.jsonMode {
					return printJSON(cmd, tasks)
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No tasks")
					return nil
				}
				for _, t := range tasks {
					fmt.Fprintln(out, ui.TaskLine(t))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only tasks with this status")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "only tasks assigned to ray, claude or both")
	return cmd
}

func newTaskShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task and its log",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				task, err := e.GetTask(ctx, id)
				if err != nil {
					return err
				}
				logs, err := e.ListLogs(ctx, id)
				if err != nil {
					return err
				}

				if a.flags.jsonMode {
					return printJSON(cmd, map[string]any{"task": task, "logs": logs})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, ui.TaskLine(task))
				fmt.Fprintf(out, "  id:       %s\n", task.TaskID)
				fmt.Fprintf(out, "  created:  %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  updated:  %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				if task.Note != "" {
					fmt.Fprintf(out, "  note:     %s\n", task.Note)
				}
				fmt.Fprintln(out)
				for _, entry := range logs {
					fmt.Fprintln(out, ui.LogLine(entry, ""))
				}
				return nil
			})
		},
	}
}

func newTaskStatusCmd(a *app) *cobra.Command {
	var author, message string
	cmd := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a task to todo, in_progress, waiting_ray or done",
		Long: "Move a task to a new status and append a log entry. Without --message the\n" +
			"entry records the change itself.",
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				status := types.Status(args[1])
				if err := e.UpdateStatus(ctx, id, status, types.Author(author), message); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, map[string]string{"id": id, "status": string(status)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", ui.ShortID(id), ui.StatusBadge(status))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "by", string(types.AuthorRay), "author of the log entry: ray or claude")
	cmd.Flags().StringVarP(&message, "message", "m", "", "log message")
	return cmd
}

func newTaskUpdateCmd(a *app) *cobra.Command {
	var title, assignee, priority, tag, note string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change task fields; only the given flags are applied",
		Example: `  duet task update 0190f1e2 --priority high
  duet task update 0190f1e2 --tag ""`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("assignee") {
				as := types.Assignee(assignee)
				patch.Assignee = &as
			}
			if flags.Changed("priority") {
				p := types.Priority(priority)
				patch.Priority = &p
			}
			if flags.Changed("tag") {
				patch.Tag = &tag
			}
			if flags.Changed("note") {
				patch.Note = &note
			}
			if patch.Empty() {
				return userError(fmt.Errorf("nothing to update: pass at least one of --title, --assignee, --priority, --tag, --note"))
			}

			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				if err := e.UpdateFields(ctx, id, patch); err != nil {
					return err
				}
				task, err := e.GetTask(ctx, id)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, task)
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.TaskLine(task))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "ray, claude or both")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "high, mid or low")
	cmd.Flags().StringVar(&tag, "tag", "", "tag; empty removes it")
	cmd.Flags().StringVar(&note, "note", "", "note; empty removes it")
	return cmd
}

func newTaskDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task and its whole log",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				id, err := resolveTaskID(ctx, e, args[0])
				if err != nil {
					return err
				}
				if err := e.DeleteTask(ctx, id); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, map[string]string{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", id)
				return nil
			})
		},
	}
}

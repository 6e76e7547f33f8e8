package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/syncclient"
	"github.com/mesh-intelligence/duet/internal/tracker"
)

func newSyncCmd(a *app) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange tasks with a remote duet server",
		Long: "Talk to a remote \"duet serve\". The server comes from --remote or remote_url,\n" +
			"the bearer token from sync_token or SYNC_API_TOKEN.",
	}
	cmd.PersistentFlags().StringVar(&remote, "remote", "", "remote server URL (default: remote_url from config)")
	cmd.AddCommand(newSyncPullCmd(a, &remote), newSyncPushCmd(a, &remote))
	return cmd
}

func newSyncPullCmd(a *app, remote *string) *cobra.Command {
	var (
		outDir string
		render bool
	)
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch the remote markdown export",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.syncClient(*remote)
			if err != nil {
				return err
			}
			out, err := c.Pull(cmd.Context())
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			return a.emitExport(cmd, out, outDir, render)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write scheduled.md and completed.md into this directory")
	cmd.Flags().BoolVar(&render, "render", false, "render for the terminal")
	return cmd
}

func newSyncPushCmd(a *app, remote *string) *cobra.Command {
	var openOnly bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Import the local tasks into the remote server",
		Long: "Send every local task to the remote /import endpoint. The remote assigns new\n" +
			"ids, so pushing twice creates duplicates.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.syncClient(*remote)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				tasks, err := e.ListTasks(ctx)
				if err != nil {
					return err
				}
				if openOnly {
					open := tasks[:0]
					for _, t := range tasks {
						if t.IsOpen() {
							open = append(open, t)
						}
					}
					tasks = open
				}

				res, err := c.Push(ctx, tracker.EntriesFromTasks(tasks))
				if err != nil {
					return fmt.Errorf("push: %w", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d tasks\n", res.Imported)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "push only tasks that are not done")
	return cmd
}

func (a *app) syncClient(remote string) (*syncclient.Client, error) {
	if remote == "" {
		remote = a.settings.RemoteURL
	}
	if remote == "" {
		return nil, userError(fmt.Errorf("no remote: pass --remote or set remote_url"))
	}
	c, err := syncclient.New(remote, a.settings.SyncToken, syncclient.WithLogger(a.logger))
	if err != nil {
		return nil, userError(err)
	}
	return c, nil
}

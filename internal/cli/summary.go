package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/internal/ui"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count open tasks per assignee",
		Long: "Count open (not done) tasks for Claude, Ray and Both, and the tasks waiting\n" +
			"for Ray.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				s, err := e.GetSummary(ctx)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, s)
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.SummaryLine(s))
				return nil
			})
		},
	}
}

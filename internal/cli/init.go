package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/tracker"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize duet configuration and storage",
		Long: "Create the configuration directory with a default config.yaml, then create\n" +
			"the data directory with empty tasks.jsonl and logs.jsonl files.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return userError(err)
			}
			err = a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				_, err := e.ListTasks(ctx)
				return err
			})
			if err != nil {
				return err
			}

			if a.flags.jsonMode {
				return printJSON(cmd, map[string]string{"config_dir": a.configDir, "data_dir": cfg.DataDir})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "duet initialized")
			fmt.Fprintf(out, "  config: %s\n  data:   %s\n", a.configDir, cfg.DataDir)
			return nil
		},
	}
}

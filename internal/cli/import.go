package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/tracker"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Bulk-insert tasks from a JSON, YAML, TOML or markdown file",
		Long: "Insert the tasks listed in FILE. JSON and YAML take {\"tasks\": [...]} or a bare\n" +
			"array; TOML takes [[tasks]] tables; markdown takes the layout written by\n" +
			"\"duet export\". Entries are inserted in order without log entries. An invalid\n" +
			"entry stops the import; earlier entries stay inserted.",
		Example: `  duet import tasks.yaml
  duet import scheduled.md`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := tracker.LoadImportFile(args[0])
			if err != nil {
				return userError(err)
			}
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				res, err := e.ImportTasks(ctx, entries)
				if err != nil {
					if res.Imported > 0 {
						a.logger.Warn("import stopped", "imported", res.Imported, "of", len(entries))
					}
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks\n", res.Imported)
				return nil
			})
		},
	}
}

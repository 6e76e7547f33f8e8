package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/internal/ui"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		outDir string
		render bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the board as markdown",
		Long: "Render the scheduled (open) and completed task lists as markdown. With\n" +
			"--out both documents are written to scheduled.md and completed.md.",
		Example: `  duet export
  duet export --out ./notes
  duet export --render`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *tracker.Engine) error {
				out, err := e.ExportToMarkdown(ctx)
				if err != nil {
					return err
				}
				return a.emitExport(cmd, out, outDir, render)
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write scheduled.md and completed.md into this directory")
	cmd.Flags().BoolVar(&render, "render", false, "render for the terminal")
	return cmd
}

// emitExport writes out to dir when set, then prints it as JSON, rendered
// markdown or raw markdown. Shared with "duet sync pull".
func (a *app) emitExport(cmd *cobra.Command, out tracker.Export, dir string, render bool) error {
	w := cmd.OutOrStdout()
	if dir != "" {
		if err := writeExportFiles(dir, out); err != nil {
			return sysError(err)
		}
		a.logger.Info("export written", "dir", dir, "total", out.Stats.Total)
	}

	switch {
	case a.flags.jsonMode:
		return printJSON(cmd, out)
	case dir != "":
		fmt.Fprintf(w, "Wrote %s and %s (%d tasks)\n", scheduledFileName, completedFileName, out.Stats.Total)
		return nil
	case render:
		width := ui.Width(w)
		fmt.Fprint(w, ui.RenderMarkdown(out.Scheduled, width))
		fmt.Fprint(w, ui.RenderMarkdown(out.Completed, width))
		return nil
	default:
		writeRawExport(w, out)
		return nil
	}
}

func writeRawExport(w io.Writer, out tracker.Export) {
	fmt.Fprintln(w, out.Scheduled)
	fmt.Fprintln(w)
	fmt.Fprintln(w, out.Completed)
}

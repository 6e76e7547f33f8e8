package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/duet/internal/server"
	"github.com/mesh-intelligence/duet/internal/tracker"
)

// Export file names, shared by "duet export --out" and "duet serve --export-dir".
const (
	scheduledFileName = "scheduled.md"
	completedFileName = "completed.md"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr           string
		exportDir      string
		exportInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync endpoints and the JSON API over HTTP",
		Long: "Serve /health, the bearer-gated /export and /import sync endpoints, and the\n" +
			"/api routes. The token comes from sync_token in config.yaml or SYNC_API_TOKEN.\n" +
			"With --export-dir the markdown export is also written to disk periodically.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.settings.ServerAddr
			}
			if exportDir != "" && exportInterval <= 0 {
				return userError(fmt.Errorf("--export-interval must be positive"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withEngine(cmd, func(_ context.Context, e *tracker.Engine) error {
				if a.settings.SyncToken == "" {
					a.logger.Warn("sync_token is not set; all endpoints are open")
				}
				srv := server.New(e, server.Config{
					Addr:   addr,
					Token:  a.settings.SyncToken,
					Logger: a.logger.WithPrefix("http"),
					Clock:  a.clock,
				})

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return srv.Run(gctx)
				})
				if exportDir != "" {
					g.Go(func() error {
						return a.exportLoop(gctx, e, exportDir, exportInterval)
					})
				}
				if err := g.Wait(); err != nil {
					return sysError(err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write scheduled.md and completed.md here periodically")
	cmd.Flags().DurationVar(&exportInterval, "export-interval", time.Minute, "interval between exports to --export-dir")
	return cmd
}

// exportLoop writes the export on start and then on every tick until ctx is
// done. A failed write is logged and retried on the next tick.
func (a *app) exportLoop(ctx context.Context, e *tracker.Engine, dir string, every time.Duration) error {
	write := func() {
		out, err := e.ExportToMarkdown(ctx)
		if err == nil {
			err = writeExportFiles(dir, out)
		}
		if err != nil {
			a.logger.Error("periodic export failed", "dir", dir, "err", err)
			return
		}
		a.logger.Debug("export written", "dir", dir, "total", out.Stats.Total)
	}

	write()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			write()
		}
	}
}

// writeExportFiles writes both export documents into dir, creating it.
func writeExportFiles(dir string, out tracker.Export) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	files := map[string]string{
		scheduledFileName: out.Scheduled,
		completedFileName: out.Completed,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("rename %s: %w", name, err)
		}
	}
	return nil
}

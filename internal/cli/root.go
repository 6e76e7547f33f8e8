// Package cli implements the duet command-line interface.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/duet/internal/logging"
	"github.com/mesh-intelligence/duet/internal/paths"
	"github.com/mesh-intelligence/duet/internal/telemetry"
)

// Version is the duet release, overridden at link time.
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/duet"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	settings  Settings
	logger    *log.Logger
	clock     func() time.Time
}

// NewRootCmd creates the top-level "duet" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{clock: time.Now, logger: logging.Discard()})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "duet",
		Short: "A shared task tracker for Ray and Claude",
		Long: "duet tracks tasks shared between a human (Ray) and an AI assistant (Claude).\n" +
			"Every creation and status change is logged, and the board exports to markdown.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/duet)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return userError(err)
	})

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newServeCmd(a),
		newTaskCmd(a),
		newLogCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSyncCmd(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = telemetry.Shutdown(ctx)

	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup loads configuration and builds the logger and telemetry before any
// subcommand runs. The version command needs none of it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.configDir = configDir
	a.settings = settingsFrom(v)

	level := a.settings.LogLevel
	if a.flags.logLevel != "" {
		level = a.flags.logLevel
	}
	logger, err := logging.New(cmd.ErrOrStderr(), logging.Options{Level: level, Prefix: "duet"})
	if err != nil {
		return userError(err)
	}
	a.logger = logger

	err = telemetry.Init(cmd.Context(), telemetry.Config{
		Enabled: a.settings.TelemetryEnabled,
		Stdout:  a.settings.TelemetryStdout,
		Version: Version,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return sysError(err)
	}

	a.logger.Debug("configuration loaded", "config_dir", configDir, "backend", a.settings.Backend)
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/duet/internal/paths"
	"github.com/mesh-intelligence/duet/internal/server"
	"github.com/mesh-intelligence/duet/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	envPrefix = "DUET"
)

// Config keys.
const (
	cfgKeyBackend          = "backend"
	cfgKeyDataDir          = "data_dir"
	cfgKeyLogLevel         = "log_level"
	cfgKeySyncStrategy     = "sync_strategy"
	cfgKeyBatchSize        = "batch_size"
	cfgKeyBatchInterval    = "batch_interval"
	cfgKeyServerAddr       = "server.addr"
	cfgKeySyncToken        = "sync_token"
	cfgKeyRemoteURL        = "remote_url"
	cfgKeyTelemetryEnabled = "telemetry.enabled"
	cfgKeyTelemetryStdout  = "telemetry.stdout"
)

// envKeys are bound to DUET_<KEY>. data_dir is resolved by the paths
// package so its env override ranks below the config file.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyLogLevel,
	cfgKeySyncStrategy,
	cfgKeyBatchSize,
	cfgKeyBatchInterval,
	cfgKeyServerAddr,
	cfgKeyRemoteURL,
	cfgKeyTelemetryEnabled,
	cfgKeyTelemetryStdout,
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# duet configuration

# Storage backend
backend: sqlite

# Data directory (optional; overridable by --data-dir)
# data_dir:

# JSONL sync strategy: immediate, on_close, batch
sync_strategy: immediate

log_level: info

server:
  addr: 127.0.0.1:8080

# Shared bearer token for /export, /import and /api (env SYNC_API_TOKEN)
# sync_token:

# Remote duet server for "duet sync"
# remote_url: https://duet.example.com

telemetry:
  enabled: false
  stdout: false
`

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Backend          string
	DataDir          string
	LogLevel         string
	SyncStrategy     string
	BatchSize        int
	BatchInterval    int
	ServerAddr       string
	SyncToken        string
	RemoteURL        string
	TelemetryEnabled bool
	TelemetryStdout  bool
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyBatchSize, types.DefaultBatchSize)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	v.SetDefault(cfgKeyServerAddr, server.DefaultAddr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if err := v.BindEnv(cfgKeySyncToken, "DUET_SYNC_TOKEN", "SYNC_API_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env %s: %w", cfgKeySyncToken, err)
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func settingsFrom(v *viper.Viper) Settings {
	return Settings{
		Backend:          v.GetString(cfgKeyBackend),
		DataDir:          v.GetString(cfgKeyDataDir),
		LogLevel:         v.GetString(cfgKeyLogLevel),
		SyncStrategy:     v.GetString(cfgKeySyncStrategy),
		BatchSize:        v.GetInt(cfgKeyBatchSize),
		BatchInterval:    v.GetInt(cfgKeyBatchInterval),
		ServerAddr:       v.GetString(cfgKeyServerAddr),
		SyncToken:        v.GetString(cfgKeySyncToken),
		RemoteURL:        v.GetString(cfgKeyRemoteURL),
		TelemetryEnabled: v.GetBool(cfgKeyTelemetryEnabled),
		TelemetryStdout:  v.GetBool(cfgKeyTelemetryStdout),
	}
}

// storeConfig builds the Cupboard config, resolving the data directory
// with flag > config > DUET_DATA_DIR > $(CWD)/.duet-db.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend: a.settings.Backend,
		DataDir: dataDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  a.settings.SyncStrategy,
			BatchSize:     a.settings.BatchSize,
			BatchInterval: a.settings.BatchInterval,
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

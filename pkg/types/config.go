package types

import "errors"

// Config holds backend selection and parameters for Cupboard.Attach.
type Config struct {
	Backend      string        `json:"backend" yaml:"backend"`
	DataDir      string        `json:"data_dir" yaml:"data_dir"`
	SQLiteConfig *SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// SQLiteConfig controls how the SQLite backend persists JSONL files.
type SQLiteConfig struct {
	// SyncStrategy is one of SyncImmediate, SyncOnClose, SyncBatch.
	SyncStrategy string `json:"sync_strategy,omitempty" yaml:"sync_strategy,omitempty"`
	// BatchSize is the number of queued writes that triggers a flush (batch only).
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// BatchInterval is the flush interval in seconds (batch only).
	BatchInterval int `json:"batch_interval,omitempty" yaml:"batch_interval,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Sync strategies for JSONL persistence.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Batch defaults applied when the batch strategy leaves them unset.
const (
	DefaultBatchSize     = 10
	DefaultBatchInterval = 5
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownSyncStrategies = map[string]bool{
	"":            true,
	SyncImmediate: true,
	SyncOnClose:   true,
	SyncBatch:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.SQLiteConfig != nil {
		return c.SQLiteConfig.Validate()
	}
	return nil
}

// Validate checks the sync strategy and batch parameters.
func (s *SQLiteConfig) Validate() error {
	if !knownSyncStrategies[s.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	if s.BatchSize < 0 {
		return ErrBatchSizeInvalid
	}
	if s.BatchInterval < 0 {
		return ErrBatchIntervalInvalid
	}
	return nil
}

// GetSyncStrategy returns the configured strategy, defaulting to immediate.
// Safe to call on a nil receiver.
func (s *SQLiteConfig) GetSyncStrategy() string {
	if s == nil || s.SyncStrategy == "" {
		return SyncImmediate
	}
	return s.SyncStrategy
}

// GetBatchSize returns the batch size, defaulting to DefaultBatchSize.
func (s *SQLiteConfig) GetBatchSize() int {
	if s == nil || s.BatchSize == 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

// GetBatchInterval returns the batch interval in seconds, defaulting to
// DefaultBatchInterval.
func (s *SQLiteConfig) GetBatchInterval() int {
	if s == nil || s.BatchInterval == 0 {
		return DefaultBatchInterval
	}
	return s.BatchInterval
}

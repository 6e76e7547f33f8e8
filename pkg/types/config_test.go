package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "unknown sync strategy",
			config:  Config{Backend: "sqlite", SQLiteConfig: &SQLiteConfig{SyncStrategy: "eventually"}},
			wantErr: ErrSyncStrategyUnknown,
		},
		{
			name:    "negative batch size",
			config:  Config{Backend: "sqlite", SQLiteConfig: &SQLiteConfig{SyncStrategy: SyncBatch, BatchSize: -1}},
			wantErr: ErrBatchSizeInvalid,
		},
		{
			name:    "negative batch interval",
			config:  Config{Backend: "sqlite", SQLiteConfig: &SQLiteConfig{SyncStrategy: SyncBatch, BatchInterval: -1}},
			wantErr: ErrBatchIntervalInvalid,
		},
		{
			name:    "batch with defaults",
			config:  Config{Backend: "sqlite", SQLiteConfig: &SQLiteConfig{SyncStrategy: SyncBatch}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteConfigDefaults(t *testing.T) {
	var nilCfg *SQLiteConfig
	if got := nilCfg.GetSyncStrategy(); got != SyncImmediate {
		t.Errorf("nil config strategy = %q, want %q", got, SyncImmediate)
	}
	if got := nilCfg.GetBatchSize(); got != DefaultBatchSize {
		t.Errorf("nil config batch size = %d, want %d", got, DefaultBatchSize)
	}
	if got := nilCfg.GetBatchInterval(); got != DefaultBatchInterval {
		t.Errorf("nil config batch interval = %d, want %d", got, DefaultBatchInterval)
	}

	cfg := &SQLiteConfig{SyncStrategy: SyncBatch, BatchSize: 3, BatchInterval: 1}
	if got := cfg.GetBatchSize(); got != 3 {
		t.Errorf("batch size = %d, want 3", got)
	}
	if got := cfg.GetBatchInterval(); got != 1 {
		t.Errorf("batch interval = %d, want 1", got)
	}
}

// Package sqlite implements the Cupboard interface with SQLite as the query
// engine and JSONL files in DataDir as the source of truth. Every Attach
// rebuilds the database from tasks.jsonl and logs.jsonl; every committed
// write rewrites the affected file according to the sync strategy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/duet/pkg/types"
)

const dbFileName = "duet.db"

var _ types.Cupboard = (*Backend)(nil)

// Backend implements types.Cupboard.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	// Sync strategy state.
	syncStrategy  string         // effective sync strategy: immediate, on_close, batch
	batchSize     int            // number of writes before batch flush
	batchInterval time.Duration  // time between batch flushes
	pendingWrites []pendingWrite // queue of writes pending JSONL persist
	batchTimer    *time.Timer    // timer for interval-based batch flush
	batchMu       sync.Mutex     // protects pendingWrites and batchTimer
}

// pendingWrite is a deferred JSONL rewrite of one table.
type pendingWrite struct {
	tableName string
	persist   func() error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// GetTable returns the Table for name outside of any transaction.
// Returns ErrCupboardDetached if the backend is not attached and
// ErrTableNotFound for an unknown name.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	return b.newTable(name, nil)
}

func (b *Backend) newTable(name string, scope *txScope) (types.Table, error) {
	base := tableBase{backend: b, scope: scope}
	switch name {
	case types.TasksTable:
		return &tasksTable{base}, nil
	case types.LogsTable:
		return &logsTable{base}, nil
	default:
		return nil, types.ErrTableNotFound
	}
}

// Attach validates config, creates DataDir, builds a fresh SQLite database,
// and loads the JSONL files into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.DataDir == "" {
		config.DataDir = "."
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// The database is a cache of the JSONL files and is rebuilt every time.
	dbPath := filepath.Join(config.DataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// Writers are serialized by b.mu; one connection keeps SQLite from
	// returning SQLITE_BUSY between a transaction and its readers.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return err
	}

	for _, name := range []string{tasksJSONL, logsJSONL} {
		if err := ensureJSONLFile(filepath.Join(config.DataDir, name)); err != nil {
			db.Close()
			return err
		}
	}

	if err := loadAllJSONL(ctx, db, config.DataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil
	b.attached = true

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}
	return nil
}

// Detach flushes pending JSONL writes and closes the database. After Detach
// every operation returns ErrCupboardDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWrites(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	return nil
}

// RunInTx runs fn inside one SQLite transaction while holding the write
// lock. Tables from tx share the transaction. When fn fails the transaction
// rolls back and no JSONL file is touched; after commit every table fn
// wrote to is persisted.
func (b *Backend) RunInTx(ctx context.Context, fn func(tx types.Tables) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCupboardDetached
	}

	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	scope := &txScope{backend: b, tx: sqlTx, dirty: make(map[string]bool)}

	if err := runScoped(scope, fn); err != nil {
		scope.done = true
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	scope.done = true
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, name := range types.StandardTableNames {
		if scope.dirty[name] {
			if err := b.wroteLocked(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// runScoped calls fn and converts a panic into an error so the caller can
// roll back.
func runScoped(scope *txScope, fn func(tx types.Tables) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()
	return fn(scope)
}

// wroteLocked records a committed write to the named table: persisted now
// under the immediate strategy, queued otherwise. The caller must hold b.mu.
func (b *Backend) wroteLocked(ctx context.Context, name string) error {
	if b.shouldPersistImmediately() {
		if err := b.persistTable(ctx, name); err != nil {
			return fmt.Errorf("persist %s: %w", name, err)
		}
		return nil
	}
	b.queueWrite(name, func() error {
		return b.persistTable(context.Background(), name)
	})
	return nil
}

// generateUUID generates a new UUID v7 for entity IDs.
func generateUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// shouldPersistImmediately reports whether JSONL writes happen on every
// committed write.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a table rewrite to the pending queue. Under the batch
// strategy the queue is flushed once it reaches batchSize.
// The caller must hold b.mu.
func (b *Backend) queueWrite(tableName string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		tableName: tableName,
		persist:   persist,
	})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		_ = b.flushPendingWritesBatchLocked()
	}
}

// flushPendingWrites flushes all pending writes to JSONL files.
// The caller must hold b.mu.
func (b *Backend) flushPendingWrites() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked rewrites each queued table once, in queue
// order. The caller must hold b.batchMu.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(types.StandardTableNames))
	for _, pw := range b.pendingWrites {
		if seen[pw.tableName] {
			continue
		}
		seen[pw.tableName] = true
		if err := pw.persist(); err != nil {
			return fmt.Errorf("flush %s: %w", pw.tableName, err)
		}
	}

	b.pendingWrites = nil
	return nil
}

// startBatchTimer starts the interval flush for the batch strategy.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		_ = b.flushPendingWrites()

		b.batchMu.Lock()
		if b.batchTimer != nil {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// errTxDone is returned when a table obtained from RunInTx is used after
// the transaction finished.
var errTxDone = errors.New("transaction already finished")

// querier is the subset of *sql.DB and *sql.Tx the tables use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// txScope is the types.Tables handed to a RunInTx callback.
type txScope struct {
	backend *Backend
	tx      *sql.Tx
	dirty   map[string]bool
	done    bool
}

func (s *txScope) GetTable(name string) (types.Table, error) {
	if s.done {
		return nil, errTxDone
	}
	return s.backend.newTable(name, s)
}

// tableBase holds what every table accessor shares: the backend and, inside
// RunInTx, the transaction scope. Outside a transaction each operation takes
// the backend lock itself; inside one the lock is already held by RunInTx.
type tableBase struct {
	backend *Backend
	scope   *txScope
}

// begin acquires the backend lock (write or read) unless running inside a
// transaction, checks the backend is attached, and returns the querier to
// use plus the release function.
func (t tableBase) begin(write bool) (querier, func(), error) {
	if t.scope != nil {
		if t.scope.done {
			return nil, nil, errTxDone
		}
		return t.scope.tx, func() {}, nil
	}

	b := t.backend
	var release func()
	if write {
		b.mu.Lock()
		release = b.mu.Unlock
	} else {
		b.mu.RLock()
		release = b.mu.RUnlock
	}
	if !b.attached {
		release()
		return nil, nil, types.ErrCupboardDetached
	}
	return b.db, release, nil
}

// wrote marks table name as modified: deferred to commit inside a
// transaction, persisted (or queued) right away otherwise.
func (t tableBase) wrote(ctx context.Context, names ...string) error {
	if t.scope != nil {
		for _, n := range names {
			t.scope.dirty[n] = true
		}
		return nil
	}
	for _, n := range names {
		if err := t.backend.wroteLocked(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// now returns the current time in UTC.
func now() time.Time {
	return time.Now().UTC()
}

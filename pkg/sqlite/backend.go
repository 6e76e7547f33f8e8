// Package sqlite exposes the SQLite Cupboard backend to programs outside
// this module while keeping its implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/duet/internal/sqlite"
	"github.com/mesh-intelligence/duet/pkg/types"
)

// NewBackend creates a detached SQLite backend. Attach it with a Config
// before use:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".duet-db",
//	})
//	defer backend.Detach()
func NewBackend() types.Cupboard {
	return sqlite.NewBackend()
}

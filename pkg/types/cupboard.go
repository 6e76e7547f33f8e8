package types

import (
	"context"
	"errors"
)

// Tables resolves a Table by name.
type Tables interface {
	// GetTable returns the Table for the given name.
	// Returns ErrTableNotFound if the name is not a standard table.
	GetTable(name string) (Table, error)
}

// Cupboard defines the interface for backend-agnostic storage access.
// Callers attach to a backend, access tables by name, and detach when done.
type Cupboard interface {
	Tables

	// Attach connects the Cupboard to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations on tables return ErrCupboardDetached.
	Detach() error

	// RunInTx runs fn as a single unit of work. Tables obtained from tx see
	// each other's writes; if fn returns an error nothing it wrote is
	// visible to any reader.
	RunInTx(ctx context.Context, fn func(tx Tables) error) error
}

// Cupboard lifecycle errors.
var (
	ErrCupboardDetached = errors.New("cupboard is detached")
	ErrAlreadyAttached  = errors.New("cupboard is already attached")
	ErrTableNotFound    = errors.New("table not found")
)

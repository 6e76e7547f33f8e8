package types

import (
	"context"
	"errors"
)

// Filter narrows Table.Fetch results. Keys are the Filter* constants; an
// empty or nil filter matches every entity in the table.
type Filter map[string]any

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to *Task or *LogEntry.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns a NotFoundError if no entity exists with that ID.
	Get(ctx context.Context, id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(ctx context.Context, id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns a NotFoundError if no entity exists with that ID.
	Delete(ctx context.Context, id string) error

	// Fetch returns all entities matching the filter, never nil.
	Fetch(ctx context.Context, filter Filter) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound       = errors.New("entity not found")
	ErrInvalidID      = errors.New("invalid entity ID")
	ErrInvalidData    = errors.New("invalid entity data")
	ErrInvalidFilter  = errors.New("invalid filter value type")
	ErrLogImmutable   = errors.New("log entries are immutable")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidTitle   = errors.New("title must not be empty")
	ErrInvalidMessage = errors.New("message must not be empty")
)

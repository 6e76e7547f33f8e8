// Package types defines the Cupboard and Table interfaces, the task and log
// entity types, their closed enumerations, and the standard errors shared by
// the storage backend, the tracker engine, and the HTTP bridge.
package types

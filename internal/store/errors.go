package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested record id does not exist.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps a storage failure (connection, constraint, or
// commit). Callers treat it as "nothing was committed" for writes.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface for PersistenceError.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

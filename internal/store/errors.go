package store

import "errors"

// Domain-specific errors for the local store.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a requested setting does not exist.
	ErrNotFound = errors.New("store: not found")
)

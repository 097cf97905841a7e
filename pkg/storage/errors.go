package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when no record matches the query.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a turn with the same session and
	// sequence number, or an event with the same ID, is already stored.
	ErrConflict = errors.New("record already exists")
)

package store

import "errors"

// Domain-specific errors for the document store.
var (
	// ErrNotFound is returned by Take when no document exists at the path.
	ErrNotFound = errors.New("store: document not found")

	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("store: invalid path")

	// ErrInvalidField is returned when a query field is not a plain identifier.
	ErrInvalidField = errors.New("store: invalid field name")
)

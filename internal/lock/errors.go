package lock

import "errors"

// Domain-specific errors for the lock registry.
var (
	// ErrLockNotFound is returned when a lock has never registered.
	ErrLockNotFound = errors.New("lock: not registered")

	// ErrInvalidLock is returned when registration arguments are missing.
	ErrInvalidLock = errors.New("lock: invalid registration")
)

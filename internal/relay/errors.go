package relay

import "errors"

// Domain-specific errors for relayed commands.
var (
	// ErrLockUnregistered is returned when no address is on file for the lock.
	ErrLockUnregistered = errors.New("relay: lock not registered")

	// ErrLockUnreachable is returned when a connection cannot be opened.
	ErrLockUnreachable = errors.New("relay: lock unreachable")

	// ErrRelay is returned when a send or receive fails. The connection has
	// been evicted by the time the caller sees it.
	ErrRelay = errors.New("relay: command failed")

	// ErrPoolClosed is returned after CloseAll.
	ErrPoolClosed = errors.New("relay: pool closed")
)

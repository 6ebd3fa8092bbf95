package access

import "errors"

// Domain-specific errors for access grants.
var (
	// ErrValidation is returned when a grant's fields do not match its type.
	ErrValidation = errors.New("access: invalid grant")

	// ErrUnknownType is returned for a type outside the AccessType enum.
	ErrUnknownType = errors.New("access: unknown access type")
)

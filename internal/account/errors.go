package account

import "errors"

// Domain-specific errors for user accounts.
var (
	// ErrInvalidPhoneID is returned for empty or unaddressable phone ids.
	ErrInvalidPhoneID = errors.New("account: invalid phone id")

	// ErrInvalidLock is returned when a user lock lacks an id or MAC.
	ErrInvalidLock = errors.New("account: invalid lock")
)

package invite

import "errors"

// Domain-specific errors for invitations.
var (
	// ErrInvalidInvite is returned when an invite does not exist or was
	// consumed by another redemption.
	ErrInvalidInvite = errors.New("invite: invalid invite")

	// ErrInviteExpired is returned when redeeming past the invite's expiration.
	ErrInviteExpired = errors.New("invite: expired")

	// ErrForbidden is returned when an email-locked invite is used by another identity.
	ErrForbidden = errors.New("invite: user locked")

	// ErrInvalidPrincipal is returned when the phone id is not registered to the identity.
	ErrInvalidPrincipal = errors.New("invite: invalid phone id")

	// ErrNoPendingInvite is returned when no invite was saved for the lock.
	ErrNoPendingInvite = errors.New("invite: no pending invite")

	// ErrInvalidCode is returned when an invite code cannot be decoded.
	ErrInvalidCode = errors.New("invite: invalid code")
)

package auth

import (
	"context"
	"errors"
)

// Domain-specific errors for identity verification.
var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("auth: no id token")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("auth: invalid id token")
)

// Identity is a verified app user.
type Identity struct {
	UserID string
	Email  string
}

// Verifier turns an opaque token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

package signature

import "errors"

// Domain-specific errors for signed envelopes.
var (
	// ErrNotSigned is returned when an envelope carries no signature.
	ErrNotSigned = errors.New("signature: message not signed")

	// ErrInvalidSignature is returned when verification fails.
	ErrInvalidSignature = errors.New("signature: invalid signature")

	// ErrInvalidData is returned when the signed data is missing or is not a
	// JSON object.
	ErrInvalidData = errors.New("signature: invalid data")

	// ErrCertificate is returned when a stored certificate cannot be parsed
	// or carries no RSA key.
	ErrCertificate = errors.New("signature: malformed certificate")
)

// Package auth verifies the identity tokens app users present.
//
// Identity is delegated: an external identity provider (or the doorlock
// tooling, via IssueToken) signs an HS256 JWT whose subject is the user id
// and whose "email" claim is the verified email address. Verifier turns a
// token into an Identity or fails with ErrInvalidToken.
//
// Services depend on the Verifier interface, never on JWT details.
package auth

// Package signature implements the signed-message protocol locks use to prove
// authorship of a request.
//
// A lock signs the exact bytes of a JSON payload with its RSA private key
// (PSS padding, SHA-256, salt length equal to the hash length) and sends an
// Envelope {"signature": base64, "data": payload}. The server verifies
// against the public key taken from the certificate the lock registered.
// Data is verified byte-for-byte and never re-serialised.
package signature

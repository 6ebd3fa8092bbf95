package signature

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of a signed request.
type Envelope struct {
	Signature string `json:"signature"`
	Data      string `json:"data"`
}

// Seal signs the JSON encoding of payload and returns the envelope.
// The encoding produced here is the exact string that will be verified.
func Seal(payload any, priv *rsa.PrivateKey) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding payload: %w", err)
	}
	sig, err := Sign(data, priv)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Signature: sig, Data: string(data)}, nil
}

// Open verifies the envelope against pub and decodes Data into v.
//
// Returns ErrNotSigned, ErrInvalidSignature or ErrInvalidData.
func (e Envelope) Open(pub *rsa.PublicKey, v any) error {
	if e.Signature == "" {
		return ErrNotSigned
	}
	if !Verify([]byte(e.Data), e.Signature, pub) {
		return ErrInvalidSignature
	}
	return e.Decode(v)
}

// Decode parses Data without verifying it. Callers use it to find which
// lock's key to verify with, then call Open.
func (e Envelope) Decode(v any) error {
	if e.Data == "" {
		return fmt.Errorf("%w: empty", ErrInvalidData)
	}
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return nil
}

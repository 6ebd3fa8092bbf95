// Package testutil provides fixtures shared by package tests: lock key pairs,
// self-signed certificates and signed envelopes.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/nerrad567/doorlock-core/internal/signature"
)

// keyBits is large enough for PSS-SHA256 with a 32-byte salt.
const keyBits = 2048

// LockIdentity is a simulated lock: its addresses, private key and the
// certificate it registers with.
type LockIdentity struct {
	MAC             string
	BLE             string
	Key             *rsa.PrivateKey
	CertificatePEM  string
	CertificateBody string
}

// NewLockIdentity generates a key pair and a self-signed certificate.
func NewLockIdentity(t testing.TB, mac, ble string) *LockIdentity {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		t.Fatalf("generating lock key: %v", err)
	}

	certPEM := selfSign(t, key, &key.PublicKey, mac)
	return &LockIdentity{
		MAC:             mac,
		BLE:             ble,
		Key:             key,
		CertificatePEM:  certPEM,
		CertificateBody: signature.CertificateBody(certPEM),
	}
}

// Seal signs payload with the lock's key.
func (l *LockIdentity) Seal(t testing.TB, payload any) signature.Envelope {
	t.Helper()

	env, err := signature.Seal(payload, l.Key)
	if err != nil {
		t.Fatalf("sealing envelope: %v", err)
	}
	return env
}

// ECDSACertificatePEM returns a valid certificate whose key is not RSA.
func ECDSACertificatePEM(t testing.TB) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ecdsa key: %v", err)
	}
	return selfSign(t, key, &key.PublicKey, "ecdsa-lock")
}

func selfSign(t testing.TB, signer any, pub any, commonName string) string {
	t.Helper()

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, signer)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

const (
	pemBegin = "-----BEGIN CERTIFICATE-----"
	pemEnd   = "-----END CERTIFICATE-----"
)

// Verify reports whether signatureB64 is a valid PSS-SHA256 signature of
// message under pub. Malformed input yields false, never a panic.
func Verify(message []byte, signatureB64 string, pub *rsa.PublicKey) bool {
	if pub == nil || signatureB64 == "" {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	// Auto accepts signers that chose a salt length other than the hash size.
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	}) == nil
}

// Sign returns the base64 PSS-SHA256 signature of message.
func Sign(message []byte, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", fmt.Errorf("signing: nil private key")
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKeyFromCertificate parses an X.509 certificate and returns its RSA
// subject key.
//
// body may be a full PEM block or only the base64 body between the armour
// lines, which is how locks register it.
func PublicKeyFromCertificate(body string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(armour(body)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrCertificate)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCertificate, err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: subject key is %T, not RSA", ErrCertificate, cert.PublicKey)
	}
	return pub, nil
}

// armour wraps a bare certificate body in PEM header and footer lines.
func armour(body string) string {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "-----BEGIN") {
		return body
	}
	return pemBegin + "\n" + body + "\n" + pemEnd + "\n"
}

// CertificateBody strips the PEM armour and line breaks from a certificate,
// giving the single-line form locks send on registration.
func CertificateBody(pemCert string) string {
	s := strings.TrimSpace(pemCert)
	s = strings.TrimPrefix(s, pemBegin)
	s = strings.TrimSuffix(s, pemEnd)
	return strings.Join(strings.Fields(s), "")
}

// ParsePrivateKey decodes a PEM RSA private key in PKCS#1 or PKCS#8 form.
func ParsePrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("parsing private key: no PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parsing private key: %T is not an RSA key", parsed)
	}
	return key, nil
}

package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"strings"

	"github.com/rezonia/ksef-pdf/internal/model"
)

// Algorithm is the public key family of a signing certificate
type Algorithm string

const (
	AlgorithmRSA     Algorithm = "RSA"
	AlgorithmEC      Algorithm = "EC"
	AlgorithmUnknown Algorithm = "unknown"
)

// Key is the closed set of key kinds a certificate can sign with: RSAKey or ECKey
type Key interface {
	Algorithm() Algorithm
	// Signer returns the private key operation, nil for public-only handles
	Signer() crypto.Signer
	isKey()
}

// RSAKey is an RSA public key with an optional signer
type RSAKey struct {
	Public *rsa.PublicKey
	signer crypto.Signer
}

func (RSAKey) Algorithm() Algorithm    { return AlgorithmRSA }
func (k RSAKey) Signer() crypto.Signer { return k.signer }
func (RSAKey) isKey()                  {}

// ECKey is an elliptic-curve public key with an optional signer
type ECKey struct {
	Public *ecdsa.PublicKey
	signer crypto.Signer
}

func (ECKey) Algorithm() Algorithm    { return AlgorithmEC }
func (k ECKey) Signer() crypto.Signer { return k.signer }
func (ECKey) isKey()                  {}

// Certificate is a signing certificate handle. The signer may live outside the
// process (HSM, key vault); only crypto.Signer is required.
type Certificate struct {
	leaf   *x509.Certificate
	key    Key
	signer crypto.Signer
}

// NewCertificate wraps leaf and an optional signer. A signer must match the
// certificate's public key.
func NewCertificate(leaf *x509.Certificate, signer crypto.Signer) (*Certificate, error) {
	const op = "signature.NewCertificate"
	if leaf == nil {
		return nil, model.NewArgumentError(op, "leaf", "certificate is nil")
	}

	if signer != nil {
		pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok || !pub.Equal(leaf.PublicKey) {
			return nil, model.NewArgumentError(op, "signer", "private key does not match certificate")
		}
	}

	c := &Certificate{leaf: leaf, signer: signer}
	switch pub := leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		c.key = RSAKey{Public: pub, signer: signer}
	case *ecdsa.PublicKey:
		c.key = ECKey{Public: pub, signer: signer}
	}
	return c, nil
}

// Leaf returns the X.509 certificate
func (c *Certificate) Leaf() *x509.Certificate {
	return c.leaf
}

// Key returns the key variant, nil when the algorithm is unsupported
func (c *Certificate) Key() Key {
	return c.key
}

// Algorithm reports the public key family
func (c *Certificate) Algorithm() Algorithm {
	if c == nil || c.key == nil {
		return AlgorithmUnknown
	}
	return c.key.Algorithm()
}

// SerialNumber returns the serial as uppercase hex of its big-endian bytes
func (c *Certificate) SerialNumber() string {
	if c == nil {
		return ""
	}
	return serialHex(c.leaf)
}

// serialHex renders a certificate serial as uppercase hex of its bytes
func serialHex(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(cert.SerialNumber.Bytes()))
}

// HasPrivateKey reports whether the handle can sign
func (c *Certificate) HasPrivateKey() bool {
	return c != nil && c.signer != nil
}

// DetectAlgorithm reports RSA, EC or unknown for a certificate handle
func DetectAlgorithm(c *Certificate) Algorithm {
	return c.Algorithm()
}

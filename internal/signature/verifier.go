package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// Verifier checks a link signature for one public key family
type Verifier interface {
	// Verify checks sig over data, returns nil when valid
	Verify(pub crypto.PublicKey, data, sig []byte) error

	// CanVerify returns true if this verifier handles the key
	CanVerify(pub crypto.PublicKey) bool

	// Algorithm returns the key family this verifier handles
	Algorithm() Algorithm
}

// VerifierRegistry holds registered verifiers for different key families
type VerifierRegistry struct {
	verifiers []Verifier
}

// NewVerifierRegistry creates a new empty registry
func NewVerifierRegistry() *VerifierRegistry {
	return &VerifierRegistry{
		verifiers: make([]Verifier, 0),
	}
}

// DefaultVerifierRegistry returns a registry with RSA-PSS and P-256 ECDSA verifiers
func DefaultVerifierRegistry() *VerifierRegistry {
	r := NewVerifierRegistry()
	r.Register(rsaPSSVerifier{})
	r.Register(ecdsaVerifier{})
	return r
}

// Register adds a verifier to the registry
func (r *VerifierRegistry) Register(v Verifier) {
	r.verifiers = append(r.verifiers, v)
}

// Detect finds a verifier that can handle the key
func (r *VerifierRegistry) Detect(pub crypto.PublicKey) (Verifier, error) {
	for _, v := range r.verifiers {
		if v.CanVerify(pub) {
			return v, nil
		}
	}
	return nil, UnsupportedKey(fmt.Sprintf("%T", pub))
}

// Verify verifies sig using the appropriate verifier
func (r *VerifierRegistry) Verify(pub crypto.PublicKey, data, sig []byte) error {
	verifier, err := r.Detect(pub)
	if err != nil {
		return err
	}
	return verifier.Verify(pub, data, sig)
}

// GetVerifier returns a verifier for a specific algorithm
func (r *VerifierRegistry) GetVerifier(alg Algorithm) Verifier {
	for _, v := range r.verifiers {
		if v.Algorithm() == alg {
			return v
		}
	}
	return nil
}

// VerifyRSAPSS checks an RSA-PSS SHA-256 signature with a 32 byte salt
func VerifyRSAPSS(pub *rsa.PublicKey, data, sig []byte) error {
	if err := rsa.VerifyPSS(pub, crypto.SHA256, SHA256(data), sig, pssOptions); err != nil {
		return BadSignature(err)
	}
	return nil
}

// VerifyECDSA checks a P-256 r||s signature
func VerifyECDSA(pub *ecdsa.PublicKey, data, sig []byte) error {
	if len(sig) != 2*p256Size {
		return MalformedSignature(fmt.Sprintf("expected %d signature bytes, got %d", 2*p256Size, len(sig)))
	}
	r := new(big.Int).SetBytes(sig[:p256Size])
	s := new(big.Int).SetBytes(sig[p256Size:])
	if !ecdsa.Verify(pub, SHA256(data), r, s) {
		return BadSignature(nil)
	}
	return nil
}

type rsaPSSVerifier struct{}

func (rsaPSSVerifier) Verify(pub crypto.PublicKey, data, sig []byte) error {
	return VerifyRSAPSS(pub.(*rsa.PublicKey), data, sig)
}

func (rsaPSSVerifier) CanVerify(pub crypto.PublicKey) bool {
	_, ok := pub.(*rsa.PublicKey)
	return ok
}

func (rsaPSSVerifier) Algorithm() Algorithm { return AlgorithmRSA }

type ecdsaVerifier struct{}

func (ecdsaVerifier) Verify(pub crypto.PublicKey, data, sig []byte) error {
	return VerifyECDSA(pub.(*ecdsa.PublicKey), data, sig)
}

func (ecdsaVerifier) CanVerify(pub crypto.PublicKey) bool {
	k, ok := pub.(*ecdsa.PublicKey)
	return ok && k.Curve == elliptic.P256()
}

func (ecdsaVerifier) Algorithm() Algorithm { return AlgorithmEC }

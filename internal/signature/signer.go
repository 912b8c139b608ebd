package signature

import (
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/rezonia/ksef-pdf/internal/model"
)

// PSSSaltLength is the RSA-PSS salt length in bytes
const PSSSaltLength = 32

// p256Size is the byte width of one P-256 signature component
const p256Size = 32

var pssOptions = &rsa.PSSOptions{SaltLength: PSSSaltLength, Hash: crypto.SHA256}

// SignRSAPSS signs SHA-256(data) with RSA-PSS, MGF1-SHA256 and a 32 byte salt
func SignRSAPSS(c *Certificate, data []byte) ([]byte, error) {
	const op = "signature.SignRSAPSS"
	if !c.HasPrivateKey() {
		return nil, model.NewCryptoError(op, "certificate has no private key", nil)
	}
	k, ok := c.Key().(RSAKey)
	if !ok {
		return nil, model.NewCryptoError(op, fmt.Sprintf("certificate key is %s, not RSA", c.Algorithm()), nil)
	}

	sig, err := k.Signer().Sign(rand.Reader, SHA256(data), pssOptions)
	if err != nil {
		return nil, model.NewCryptoError(op, "signing failed", err)
	}
	return sig, nil
}

// SignRSAPSSBase64URL is SignRSAPSS followed by Base64URL encoding
func SignRSAPSSBase64URL(c *Certificate, data []byte) (string, error) {
	sig, err := SignRSAPSS(c, data)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(sig), nil
}

// SignECDSA signs SHA-256(data) with a P-256 key. The signature is r||s,
// 32 bytes each, not ASN.1 DER.
func SignECDSA(c *Certificate, data []byte) ([]byte, error) {
	const op = "signature.SignECDSA"
	if !c.HasPrivateKey() {
		return nil, model.NewCryptoError(op, "certificate has no private key", nil)
	}
	k, ok := c.Key().(ECKey)
	if !ok {
		return nil, model.NewCryptoError(op, fmt.Sprintf("certificate key is %s, not EC", c.Algorithm()), nil)
	}
	if k.Public.Curve != elliptic.P256() {
		return nil, model.NewCryptoError(op, fmt.Sprintf("curve %s is not P-256", k.Public.Curve.Params().Name), nil)
	}

	der, err := k.Signer().Sign(rand.Reader, SHA256(data), crypto.SHA256)
	if err != nil {
		return nil, model.NewCryptoError(op, "signing failed", err)
	}
	sig, err := derToP1363(der, p256Size)
	if err != nil {
		return nil, model.NewCryptoError(op, "unexpected signature encoding", err)
	}
	return sig, nil
}

// SignECDSABase64URL is SignECDSA followed by Base64URL encoding
func SignECDSABase64URL(c *Certificate, data []byte) (string, error) {
	sig, err := SignECDSA(c, data)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(sig), nil
}

// Sign dispatches on the certificate key kind
func Sign(c *Certificate, data []byte) ([]byte, error) {
	const op = "signature.Sign"
	if !c.HasPrivateKey() {
		return nil, model.NewStateError(op, "certificate has no private key")
	}
	switch c.Key().(type) {
	case RSAKey:
		return SignRSAPSS(c, data)
	case ECKey:
		return SignECDSA(c, data)
	default:
		return nil, &model.UnsupportedAlgorithmError{Op: op, Algorithm: string(c.Algorithm())}
	}
}

// derToP1363 converts an ASN.1 ECDSA-Sig-Value to fixed width r||s
func derToP1363(der []byte, size int) ([]byte, error) {
	var (
		inner cryptobyte.String
		r     = new(big.Int)
		s     = new(big.Int)
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, fmt.Errorf("invalid ASN.1 ECDSA signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > size*8 || s.BitLen() > size*8 {
		return nil, fmt.Errorf("signature component out of range")
	}

	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}

package links

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/rezonia/ksef-pdf/internal/signature"
)

// ChainChecker validates a certificate against trusted roots and revocation data
type ChainChecker interface {
	VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error)
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) (bool, error)
}

// Verifier checks certificate links end to end
type Verifier struct {
	registry      *signature.VerifierRegistry
	trust         ChainChecker
	intermediates []*x509.Certificate
	now           func() time.Time
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithTrust enables chain and revocation checks
func WithTrust(c ChainChecker, intermediates ...*x509.Certificate) VerifierOption {
	return func(v *Verifier) {
		v.trust = c
		v.intermediates = intermediates
	}
}

// WithVerifierClock overrides the time used for validity checks
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a certificate link verifier
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		registry: signature.DefaultVerifierRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks link against the issuing certificate. raw is optional; when
// given, the document hash in the link must match it.
func (v *Verifier) Verify(ctx context.Context, link string, cert *x509.Certificate, raw []byte) *signature.VerificationResult {
	result := signature.NewVerificationResult()
	checkedAt := v.now()
	result.CheckedAt = &checkedAt

	parts, err := ParseCertificateLink(link)
	if err != nil {
		result.AddError(err.Error())
		return result
	}
	result.LinkWellFormed = true

	if cert == nil {
		result.AddError("certificate is required")
		return result
	}
	result.SetSigner(cert)

	handle, err := signature.NewCertificate(cert, nil)
	if err != nil {
		result.AddError(err.Error())
		return result
	}
	result.Algorithm = handle.Algorithm()

	if parts.Serial == handle.SerialNumber() {
		result.SerialMatches = true
	} else {
		result.Fail(signature.SerialMismatch(handle.SerialNumber(), parts.Serial))
	}

	if err := v.registry.Verify(cert.PublicKey, []byte(parts.Unsigned), parts.Signature); err != nil {
		var checkErr *signature.CheckError
		if errors.As(err, &checkErr) {
			result.Fail(checkErr)
		} else {
			result.AddError(err.Error())
		}
	} else {
		result.SignatureValid = true
	}

	if raw != nil {
		if parts.Hash == signature.SHA256Base64URL(raw) {
			result.HashMatches = true
		} else {
			result.Fail(signature.HashMismatch())
		}
	}

	switch {
	case checkedAt.Before(cert.NotBefore):
		result.Warn(signature.CertNotYetValid(cert.Subject.CommonName))
	case checkedAt.After(cert.NotAfter):
		result.Warn(signature.CertExpired(cert.Subject.CommonName))
	}

	if v.trust != nil {
		v.checkTrust(ctx, cert, result)
	}

	result.ComputeValidity(v.trust != nil)
	return result
}

func (v *Verifier) checkTrust(ctx context.Context, cert *x509.Certificate, result *signature.VerificationResult) {
	chain, err := v.trust.VerifyChain(cert, v.intermediates)
	if err != nil {
		result.Fail(signature.ChainInvalid(err))
		return
	}
	result.CertChainValid = true
	result.CertChain = chain

	issuer := chain[0]
	if len(chain) > 1 {
		issuer = chain[1]
	}
	notRevoked, err := v.trust.CheckRevocation(ctx, cert, issuer)
	switch {
	case err != nil && notRevoked:
		result.Warn(signature.OCSPUnavailable(err))
		result.NotRevoked = true
	case err != nil:
		result.Fail(signature.OCSPUnavailable(err))
	case !notRevoked:
		result.Fail(signature.CertRevoked(cert.Subject.CommonName))
	default:
		result.NotRevoked = true
	}
}

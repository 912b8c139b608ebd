package signature

import (
	"crypto/x509"
	"time"
)

// VerificationResult is the outcome of checking a certificate link. Valid holds
// only when every check that ran passed and no failure was recorded.
type VerificationResult struct {
	Valid bool `json:"valid"`

	LinkWellFormed bool `json:"link_well_formed"`
	SignatureValid bool `json:"signature_valid"`
	SerialMatches  bool `json:"serial_matches"`
	// HashMatches is only meaningful when the document was supplied
	HashMatches    bool `json:"hash_matches,omitempty"`
	CertChainValid bool `json:"cert_chain_valid"`
	NotRevoked     bool `json:"not_revoked"`

	Algorithm Algorithm   `json:"algorithm,omitempty"`
	Signer    *SignerInfo `json:"signer,omitempty"`
	CheckedAt *time.Time  `json:"checked_at,omitempty"`

	CertChain []*x509.Certificate `json:"-"`

	// Codes lists the codes of recorded failures, in order
	Codes    []Code   `json:"codes,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// SignerInfo describes the certificate that signed a link
type SignerInfo struct {
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

// NewVerificationResult creates an empty, not yet valid result
func NewVerificationResult() *VerificationResult {
	return &VerificationResult{
		Warnings: []string{},
		Errors:   []string{},
	}
}

// AddWarning records a non-fatal finding
func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError records a failure and marks the result invalid
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// Fail records a failed check with its code
func (r *VerificationResult) Fail(err *CheckError) {
	r.Codes = append(r.Codes, err.Code)
	r.AddError(err.Error())
}

// Warn records a check that failed softly
func (r *VerificationResult) Warn(err *CheckError) {
	r.AddWarning(err.Error())
}

// Has reports whether a failure with code was recorded
func (r *VerificationResult) Has(code Code) bool {
	for _, c := range r.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// SetSigner fills Signer from cert; a nil cert leaves it unchanged
func (r *VerificationResult) SetSigner(cert *x509.Certificate) {
	if cert == nil {
		return
	}
	issuer := cert.Issuer.CommonName
	if issuer == "" {
		issuer = first(cert.Issuer.Organization)
	}
	r.Signer = &SignerInfo{
		Name:         cert.Subject.CommonName,
		Organization: first(cert.Subject.Organization),
		SerialNumber: serialHex(cert),
		Issuer:       issuer,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
}

// ComputeValidity derives Valid from the individual checks. Chain and
// revocation count only when a trust store was consulted.
func (r *VerificationResult) ComputeValidity(trustChecked bool) {
	checks := []bool{r.LinkWellFormed, r.SignatureValid, r.SerialMatches, len(r.Errors) == 0}
	if trustChecked {
		checks = append(checks, r.CertChainValid, r.NotRevoked)
	}
	r.Valid = true
	for _, ok := range checks {
		r.Valid = r.Valid && ok
	}
}

// IsFullyValid also requires the chain and revocation checks to have passed
func (r *VerificationResult) IsFullyValid() bool {
	return r.Valid && r.CertChainValid && r.NotRevoked
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Package trust checks that a signing certificate chains to a configured KSeF
// certificate authority and has not been revoked.
package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// TrustStore holds the CA roots for KSeF signing certificates and answers
// chain and revocation questions. There are no built-in roots: the Ministry
// of Finance CA is not in system pools, so roots come from a PEM file.
type TrustStore struct {
	roots       *x509.CertPool
	rootCerts   []*x509.Certificate
	cache       *RevocationCache
	cacheTTL    time.Duration
	ocspTimeout time.Duration
	softFail    bool
	client      *http.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// TrustStoreOption configures a TrustStore
type TrustStoreOption func(*TrustStore)

// WithSoftFail lets an unreachable OCSP responder pass with a warning
func WithSoftFail() TrustStoreOption {
	return func(s *TrustStore) { s.softFail = true }
}

// WithOCSPTimeout bounds each revocation check
func WithOCSPTimeout(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) { s.ocspTimeout = d }
}

// WithOCSPCacheTTL sets how long responder answers are reused
func WithOCSPCacheTTL(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) { s.cacheTTL = d }
}

// WithHTTPClient sets the client used to reach OCSP responders
func WithHTTPClient(c *http.Client) TrustStoreOption {
	return func(s *TrustStore) { s.client = c }
}

// WithClock overrides the time used for chain validity and cache expiry
func WithClock(now func() time.Time) TrustStoreOption {
	return func(s *TrustStore) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) TrustStoreOption {
	return func(s *TrustStore) { s.logger = l }
}

// NewTrustStore creates a trust store with the CA certificates in caFile
func NewTrustStore(caFile string, opts ...TrustStoreOption) (*TrustStore, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	certs, err := ParseRoots(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA file %s: %w", caFile, err)
	}

	store := NewEmptyTrustStore(opts...)
	store.AddCertificates(certs...)
	store.logger.Debug().Str("file", caFile).Int("roots", len(certs)).Msg("trust roots loaded")
	return store, nil
}

// NewEmptyTrustStore creates a trust store without roots
func NewEmptyTrustStore(opts ...TrustStoreOption) *TrustStore {
	s := &TrustStore{
		roots:       x509.NewCertPool(),
		cacheTTL:    DefaultOCSPCacheTTL,
		ocspTimeout: DefaultOCSPTimeout,
		client:      http.DefaultClient,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = NewRevocationCache(s.cacheTTL, s.now)
	return s
}

// ParseRoots returns every CERTIFICATE block in data
func ParseRoots(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", len(certs)+1, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// AddCertificates trusts the given roots; nil entries are skipped
func (s *TrustStore) AddCertificates(certs ...*x509.Certificate) {
	for _, cert := range certs {
		if cert == nil {
			continue
		}
		s.roots.AddCert(cert)
		s.rootCerts = append(s.rootCerts, cert)
	}
}

// AddCertificate trusts a single root
func (s *TrustStore) AddCertificate(cert *x509.Certificate) {
	s.AddCertificates(cert)
}

// AddCertificatesFromPEM trusts every certificate in pemData
func (s *TrustStore) AddCertificatesFromPEM(pemData []byte) error {
	certs, err := ParseRoots(pemData)
	if err != nil {
		return err
	}
	s.AddCertificates(certs...)
	return nil
}

// VerifyChain builds a chain from cert to a trusted root and returns it leaf first
func (s *TrustStore) VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, errors.New("certificate is nil")
	}

	opts := x509.VerifyOptions{
		Roots:       s.roots,
		CurrentTime: s.now(),
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if len(intermediates) > 0 {
		opts.Intermediates = x509.NewCertPool()
		for _, c := range intermediates {
			opts.Intermediates.AddCert(c)
		}
	}

	chains, err := cert.Verify(opts)
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	shortest := chains[0]
	for _, c := range chains[1:] {
		if len(c) < len(shortest) {
			shortest = c
		}
	}
	return shortest, nil
}

// CheckRevocation reports whether cert is known not to be revoked. A certificate
// without an OCSP responder counts as not revoked. With soft fail, responder
// failures return true together with the error.
func (s *TrustStore) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, errors.New("certificate or issuer is nil")
	}

	if status, ok := s.cache.Lookup(cert); ok {
		return status == StatusGood, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ocspTimeout)
	defer cancel()

	answer, err := QueryOCSP(ctx, s.client, cert, issuer)
	switch {
	case errors.Is(err, ErrNoResponder):
		return true, nil
	case err != nil:
		s.logger.Warn().Err(err).Bool("soft_fail", s.softFail).Str("subject", cert.Subject.CommonName).Msg("OCSP check failed")
		if s.softFail {
			return true, fmt.Errorf("OCSP check failed (soft-fail enabled): %w", err)
		}
		return false, fmt.Errorf("OCSP check failed: %w", err)
	}

	s.cache.Store(cert, answer)
	s.logger.Debug().Str("responder", answer.Responder).Stringer("status", answer.Status).Msg("OCSP answer")
	return answer.Status == StatusGood, nil
}

// Roots returns the root pool
func (s *TrustStore) Roots() *x509.CertPool {
	return s.roots
}

// RootCerts returns the trusted roots in insertion order
func (s *TrustStore) RootCerts() []*x509.Certificate {
	return s.rootCerts
}

// IsSoftFail reports whether soft fail is enabled
func (s *TrustStore) IsSoftFail() bool {
	return s.softFail
}

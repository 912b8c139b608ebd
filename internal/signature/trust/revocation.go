package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

const (
	DefaultOCSPTimeout  = 10 * time.Second
	DefaultOCSPCacheTTL = time.Hour

	// maxOCSPResponse bounds the responder body read
	maxOCSPResponse = 1 << 20
)

// Status is the revocation state reported by an OCSP responder
type Status int

const (
	StatusUnknown Status = iota
	StatusGood
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// ErrNoResponder is returned for certificates without an OCSP URL
var ErrNoResponder = errors.New("certificate names no OCSP responder")

// Answer is a parsed responder reply
type Answer struct {
	Status     Status
	Responder  string
	NextUpdate time.Time
}

// RevocationCache remembers responder answers per issuer and serial. An entry
// lives for the cache TTL or until the responder's NextUpdate, whichever is sooner.
type RevocationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedAnswer
}

type cachedAnswer struct {
	status  Status
	expires time.Time
}

// NewRevocationCache creates an empty cache
func NewRevocationCache(ttl time.Duration, now func() time.Time) *RevocationCache {
	if now == nil {
		now = time.Now
	}
	return &RevocationCache{ttl: ttl, now: now, entries: map[string]cachedAnswer{}}
}

// Lookup returns the cached status of cert
func (c *RevocationCache) Lookup(cert *x509.Certificate) (Status, bool) {
	if cert == nil {
		return StatusUnknown, false
	}
	key := cacheKey(cert)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return StatusUnknown, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return StatusUnknown, false
	}
	return entry.status, true
}

// Store records an answer for cert. Unknown answers are not cached.
func (c *RevocationCache) Store(cert *x509.Certificate, a Answer) {
	if cert == nil || a.Status == StatusUnknown {
		return
	}
	expires := c.now().Add(c.ttl)
	if !a.NextUpdate.IsZero() && a.NextUpdate.Before(expires) {
		expires = a.NextUpdate
	}

	c.mu.Lock()
	c.entries[cacheKey(cert)] = cachedAnswer{status: a.Status, expires: expires}
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included
func (c *RevocationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry
func (c *RevocationCache) Reset() {
	c.mu.Lock()
	c.entries = map[string]cachedAnswer{}
	c.mu.Unlock()
}

func cacheKey(cert *x509.Certificate) string {
	return cert.Issuer.String() + "|" + strings.ToUpper(cert.SerialNumber.Text(16))
}

// QueryOCSP asks each responder named by cert in turn and returns the first
// definite answer
func QueryOCSP(ctx context.Context, client *http.Client, cert, issuer *x509.Certificate) (Answer, error) {
	if len(cert.OCSPServer) == 0 {
		return Answer{}, ErrNoResponder
	}
	if client == nil {
		client = http.DefaultClient
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var errs []error
	for _, url := range cert.OCSPServer {
		answer, err := askResponder(ctx, client, url, request, issuer)
		if err == nil {
			return answer, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", url, err))
	}
	return Answer{}, fmt.Errorf("no OCSP responder answered: %w", errors.Join(errs...))
}

func askResponder(ctx context.Context, client *http.Client, url string, request []byte, issuer *x509.Certificate) (Answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(request))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := client.Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("responder returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponse))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to read response: %w", err)
	}

	parsed, err := ocsp.ParseResponseForCert(body, nil, issuer)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to parse response: %w", err)
	}

	answer := Answer{Responder: url, NextUpdate: parsed.NextUpdate}
	switch parsed.Status {
	case ocsp.Good:
		answer.Status = StatusGood
	case ocsp.Revoked:
		answer.Status = StatusRevoked
	default:
		return Answer{}, errors.New("responder does not know the certificate")
	}
	return answer, nil
}

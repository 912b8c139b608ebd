// Package links builds the two KSeF verification URLs printed as QR codes:
// the invoice link (KOD I) and the signed certificate link (KOD II).
package links

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/signature"
)

// Environment selects the verification host
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// Verification hosts
const (
	TestBaseURL       = "https://qr-test.ksef.mf.gov.pl"
	ProductionBaseURL = "https://qr.ksef.mf.gov.pl"
)

// Default certificate link identifier type
const IdentifierNIP = "nip"

const dateLayout = "02-01-2006"

// ParseEnvironment maps a name to an environment
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvironmentTest, "":
		return EnvironmentTest, nil
	case EnvironmentProduction, "prod":
		return EnvironmentProduction, nil
	default:
		return "", model.NewArgumentError("links.ParseEnvironment", "environment", fmt.Sprintf("unknown environment %q", s))
	}
}

// BaseURL returns the verification host with scheme
func (e Environment) BaseURL() string {
	if e == EnvironmentProduction {
		return ProductionBaseURL
	}
	return TestBaseURL
}

// Host returns the verification host without scheme
func (e Environment) Host() string {
	return strings.TrimPrefix(e.BaseURL(), "https://")
}

// InvoiceLinkInput are the facts an invoice link is built from
type InvoiceLinkInput struct {
	SellerNIP string
	IssueDate time.Time
	// Raw is the original document; re-serialized XML will not verify
	Raw []byte
	// KSeFNumber and Mode are for log context only
	KSeFNumber string
	Mode       model.IssuanceMode
}

// CertificateLinkInput are the facts a certificate link is built from
type CertificateLinkInput struct {
	IdentifierType  string
	IdentifierValue string
	SellerNIP       string
	Certificate     *signature.Certificate
	Raw             []byte
}

// Builder builds verification links for one environment
type Builder struct {
	Environment Environment
	logger      zerolog.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a builder. A zero Builder{Environment: env} also works and logs nothing.
func NewBuilder(env Environment, opts ...Option) *Builder {
	b := &Builder{Environment: env, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InvoiceLink returns {base}/invoice/{NIP}/{DD-MM-YYYY}/{b64url(sha256(raw))}
func (b *Builder) InvoiceLink(in InvoiceLinkInput) (string, error) {
	const op = "links.InvoiceLink"
	if !isNIPShape(in.SellerNIP) {
		return "", model.NewArgumentError(op, "nip", "NIP must have 10 digits")
	}
	if in.IssueDate.IsZero() {
		return "", model.NewArgumentError(op, "issue_date", "issue date is required")
	}

	link := fmt.Sprintf("%s/invoice/%s/%s/%s",
		b.Environment.BaseURL(), in.SellerNIP, in.IssueDate.Format(dateLayout), signature.SHA256Base64URL(in.Raw))

	b.logger.Debug().
		Str("nip", in.SellerNIP).
		Str("ksef_number", in.KSeFNumber).
		Str("mode", in.Mode.String()).
		Msg("invoice link built")
	return link, nil
}

// CertificateLink returns https://{host}/certificate/{type}/{value}/{NIP}/{serial}/{hash}/{signature}.
// The signature covers the UTF-8 bytes of the path without scheme.
func (b *Builder) CertificateLink(in CertificateLinkInput) (string, error) {
	const op = "links.CertificateLink"
	if in.Certificate == nil || !in.Certificate.HasPrivateKey() {
		return "", model.NewStateError(op, "certificate has no private key")
	}
	if !isNIPShape(in.SellerNIP) {
		return "", model.NewArgumentError(op, "nip", "NIP must have 10 digits")
	}
	if strings.TrimSpace(in.IdentifierType) == "" {
		return "", model.NewArgumentError(op, "identifier_type", "identifier type is required")
	}
	if strings.TrimSpace(in.IdentifierValue) == "" {
		return "", model.NewArgumentError(op, "identifier_value", "identifier value is required")
	}

	unsigned := fmt.Sprintf("%s/certificate/%s/%s/%s/%s/%s",
		b.Environment.Host(),
		url.PathEscape(in.IdentifierType),
		url.PathEscape(in.IdentifierValue),
		in.SellerNIP,
		in.Certificate.SerialNumber(),
		signature.SHA256Base64URL(in.Raw))

	var (
		sig string
		err error
	)
	switch in.Certificate.Key().(type) {
	case signature.RSAKey:
		sig, err = signature.SignRSAPSSBase64URL(in.Certificate, []byte(unsigned))
	case signature.ECKey:
		sig, err = signature.SignECDSABase64URL(in.Certificate, []byte(unsigned))
	default:
		return "", &model.UnsupportedAlgorithmError{Op: op, Algorithm: string(in.Certificate.Algorithm())}
	}
	if err != nil {
		return "", fmt.Errorf("failed to sign certificate link: %w", err)
	}

	b.logger.Debug().
		Str("algorithm", string(in.Certificate.Algorithm())).
		Str("serial", in.Certificate.SerialNumber()).
		Msg("certificate link signed")
	return "https://" + unsigned + "/" + sig, nil
}

// CertificateLinkForSeller builds a certificate link identified by the seller NIP
func (b *Builder) CertificateLinkForSeller(sellerNIP string, cert *signature.Certificate, raw []byte) (string, error) {
	return b.CertificateLink(CertificateLinkInput{
		IdentifierType:  IdentifierNIP,
		IdentifierValue: sellerNIP,
		SellerNIP:       sellerNIP,
		Certificate:     cert,
		Raw:             raw,
	})
}

func isNIPShape(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

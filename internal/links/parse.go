package links

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/signature"
)

// InvoiceLinkParts are the segments of an invoice link
type InvoiceLinkParts struct {
	Host      string    `json:"host"`
	SellerNIP string    `json:"seller_nip"`
	IssueDate time.Time `json:"issue_date"`
	Hash      string    `json:"hash"`
}

// CertificateLinkParts are the segments of a certificate link
type CertificateLinkParts struct {
	Host            string `json:"host"`
	IdentifierType  string `json:"identifier_type"`
	IdentifierValue string `json:"identifier_value"`
	SellerNIP       string `json:"seller_nip"`
	Serial          string `json:"serial"`
	Hash            string `json:"hash"`
	Signature       []byte `json:"-"`
	// Unsigned is the exact string the signature covers
	Unsigned string `json:"unsigned"`
}

// ParseInvoiceLink splits an invoice link into its segments
func ParseInvoiceLink(link string) (*InvoiceLinkParts, error) {
	const op = "links.ParseInvoiceLink"
	segs, err := splitLink(op, link)
	if err != nil {
		return nil, err
	}
	if len(segs) != 5 || segs[1] != "invoice" {
		return nil, model.NewArgumentError(op, "link", "expected {host}/invoice/{nip}/{date}/{hash}")
	}
	date, err := time.Parse(dateLayout, segs[3])
	if err != nil {
		return nil, model.NewArgumentError(op, "date", fmt.Sprintf("invalid date %q", segs[3]))
	}
	return &InvoiceLinkParts{Host: segs[0], SellerNIP: segs[2], IssueDate: date, Hash: segs[4]}, nil
}

// ParseCertificateLink splits a certificate link and decodes its signature
func ParseCertificateLink(link string) (*CertificateLinkParts, error) {
	const op = "links.ParseCertificateLink"
	segs, err := splitLink(op, link)
	if err != nil {
		return nil, err
	}
	if len(segs) != 8 || segs[1] != "certificate" {
		return nil, model.NewArgumentError(op, "link", "expected {host}/certificate/{type}/{value}/{nip}/{serial}/{hash}/{signature}")
	}

	sig, err := signature.DecodeBase64URL(segs[7])
	if err != nil {
		return nil, model.NewArgumentError(op, "signature", err.Error())
	}
	idType, err := url.PathUnescape(segs[2])
	if err != nil {
		return nil, model.NewArgumentError(op, "identifier_type", err.Error())
	}
	idValue, err := url.PathUnescape(segs[3])
	if err != nil {
		return nil, model.NewArgumentError(op, "identifier_value", err.Error())
	}

	return &CertificateLinkParts{
		Host:            segs[0],
		IdentifierType:  idType,
		IdentifierValue: idValue,
		SellerNIP:       segs[4],
		Serial:          segs[5],
		Hash:            segs[6],
		Signature:       sig,
		Unsigned:        strings.Join(segs[:7], "/"),
	}, nil
}

// VerifyInvoiceLink reports whether link carries the hash of raw
func VerifyInvoiceLink(link string, raw []byte) (bool, error) {
	parts, err := ParseInvoiceLink(link)
	if err != nil {
		return false, err
	}
	return parts.Hash == signature.SHA256Base64URL(raw), nil
}

// VerifyCertificateLink checks the link signature against the certificate public key
func VerifyCertificateLink(link string, cert *signature.Certificate) error {
	parts, err := ParseCertificateLink(link)
	if err != nil {
		return err
	}
	if cert == nil || cert.Leaf() == nil {
		return model.NewArgumentError("links.VerifyCertificateLink", "certificate", "certificate is nil")
	}
	if parts.Serial != cert.SerialNumber() {
		return signature.SerialMismatch(cert.SerialNumber(), parts.Serial)
	}
	v := signature.DefaultVerifierRegistry().GetVerifier(cert.Algorithm())
	if v == nil {
		return signature.UnsupportedKey(fmt.Sprintf("%T", cert.Leaf().PublicKey))
	}
	return v.Verify(cert.Leaf().PublicKey, []byte(parts.Unsigned), parts.Signature)
}

func splitLink(op, link string) ([]string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, model.NewArgumentError(op, "link", "link is empty")
	}
	if !strings.HasPrefix(link, "https://") {
		return nil, model.NewArgumentError(op, "link", "link must use https")
	}
	return strings.Split(strings.TrimSuffix(strings.TrimPrefix(link, "https://"), "/"), "/"), nil
}

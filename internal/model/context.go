package model

import "time"

// IssuanceMode says whether the invoice was numbered by KSeF
type IssuanceMode string

const (
	IssuanceOnline    IssuanceMode = "online"
	IssuanceOffline   IssuanceMode = "offline"
	IssuanceOffline24 IssuanceMode = "offline24"
	IssuanceEmergency IssuanceMode = "emergency"
)

// String returns the mode name
func (m IssuanceMode) String() string {
	return string(m)
}

// IsOnline reports whether the mode is Online
func (m IssuanceMode) IsOnline() bool {
	return m == IssuanceOnline
}

// ParseIssuanceMode maps a name to a mode, defaulting to offline
func ParseIssuanceMode(s string) (IssuanceMode, bool) {
	switch IssuanceMode(s) {
	case IssuanceOnline, IssuanceOffline, IssuanceOffline24, IssuanceEmergency:
		return IssuanceMode(s), true
	default:
		return IssuanceOffline, false
	}
}

// IssuanceMetadata carries the issuance mode and the KSeF number, if any
type IssuanceMetadata struct {
	Mode       IssuanceMode `json:"mode"`
	KSeFNumber string       `json:"ksef_number,omitempty"`
}

// InvoiceContext bundles everything one pipeline run needs. The raw document is kept
// because verification hashes are computed over the original bytes.
type InvoiceContext struct {
	invoice   *Invoice
	issuance  IssuanceMetadata
	raw       []byte
	createdAt time.Time
}

// NewInvoiceContext builds a context; raw is copied
func NewInvoiceContext(inv *Invoice, issuance IssuanceMetadata, raw []byte, createdAt time.Time) *InvoiceContext {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &InvoiceContext{
		invoice:   inv,
		issuance:  issuance,
		raw:       buf,
		createdAt: createdAt,
	}
}

// Invoice returns the invoice aggregate
func (c *InvoiceContext) Invoice() *Invoice {
	return c.invoice
}

// Issuance returns the issuance metadata
func (c *InvoiceContext) Issuance() IssuanceMetadata {
	return c.issuance
}

// RawBytes returns a copy of the original document bytes
func (c *InvoiceContext) RawBytes() []byte {
	buf := make([]byte, len(c.raw))
	copy(buf, c.raw)
	return buf
}

// RawText returns the original document as text
func (c *InvoiceContext) RawText() string {
	return string(c.raw)
}

// CreatedAt returns when the context was created
func (c *InvoiceContext) CreatedAt() time.Time {
	return c.createdAt
}

package server

import (
	"github.com/rezonia/ksef-pdf/internal/parser/fa"
	"github.com/rezonia/ksef-pdf/internal/pdfinfo"
)

// ValidationResponse is the response for validate endpoint
type ValidationResponse struct {
	Valid      bool     `json:"valid"`
	Schema     string   `json:"schema,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	KSeFNumber string   `json:"ksef_number,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// LinksResponse is the response for links endpoint
type LinksResponse struct {
	Invoice     string   `json:"invoice,omitempty"`
	Certificate string   `json:"certificate,omitempty"`
	Mode        string   `json:"mode"`
	KSeFNumber  string   `json:"ksef_number,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// KSeFResponse describes one KSeF number
type KSeFResponse struct {
	Number   string `json:"number"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message"`
	NIP      string `json:"nip,omitempty"`
	Date     string `json:"date,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Expected string `json:"expected_checksum,omitempty"`
}

// InfoResponse is the response for info endpoint
type InfoResponse struct {
	Format   string           `json:"format"`
	MimeType string           `json:"mime_type"`
	Size     int              `json:"size"`
	PDF      *pdfinfo.Info    `json:"pdf,omitempty"`
	Document *fa.DocumentInfo `json:"document,omitempty"`
}

// VerifyRequest asks to check a certificate link against the issuing certificate
type VerifyRequest struct {
	Link           string `json:"link" binding:"required"`
	CertificatePEM string `json:"certificate_pem" binding:"required"`
	// Document is the invoice XML; when set its hash must match the link
	Document string `json:"document,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   string   `json:"details,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

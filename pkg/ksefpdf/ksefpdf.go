// Package ksefpdf provides a public API for turning KSeF FA invoices into
// verifiable PDF documents.
//
// The package exposes the core types and a Processor that parses FA (2) and
// FA (3) XML, validates it, builds the verification links and renders the PDF.
//
// Example usage:
//
//	p := ksefpdf.NewDefaultProcessor()
//	out, err := p.Render(ctx, reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Links.Invoice)
//	os.WriteFile("invoice.pdf", out.Document, 0o644)
package ksefpdf

import (
	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/ksef"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/processor"
	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
	"github.com/rezonia/ksef-pdf/internal/validator"
)

// Re-export core types for public API
type (
	Invoice          = model.Invoice
	InvoiceContext   = model.InvoiceContext
	IssuanceMetadata = model.IssuanceMetadata
	IssuanceMode     = model.IssuanceMode
	Schema           = model.Schema
	RenderOptions    = composer.RenderOptions
	Outcome          = validator.Outcome
	Links            = processor.Links
	Environment      = links.Environment
	Certificate      = signature.Certificate
	KSeFResult       = ksef.Result
)

// Re-export issuance modes
const (
	IssuanceOnline    = model.IssuanceOnline
	IssuanceOffline   = model.IssuanceOffline
	IssuanceOffline24 = model.IssuanceOffline24
	IssuanceEmergency = model.IssuanceEmergency
)

// Re-export environments
const (
	EnvironmentTest       = links.EnvironmentTest
	EnvironmentProduction = links.EnvironmentProduction
)

// Re-export schemas
const (
	SchemaFA2 = model.SchemaFA2
	SchemaFA3 = model.SchemaFA3
)

// Re-export error types
type (
	ParseError                = model.ParseError
	ArgumentError             = model.ArgumentError
	StateError                = model.StateError
	CryptoError               = model.CryptoError
	UnsupportedAlgorithmError = model.UnsupportedAlgorithmError
)

// Re-export sentinel errors
var (
	ErrInvalidInvoice    = processor.ErrInvalidInvoice
	ErrUnsupportedFormat = processor.ErrUnsupportedFormat
)

// DefaultRenderOptions returns the default render options
func DefaultRenderOptions() RenderOptions {
	return composer.DefaultRenderOptions()
}

// ValidateKSeFNumber checks the shape and checksum of a KSeF number
func ValidateKSeFNumber(number string) KSeFResult {
	return ksef.Validate(number)
}

// ValidNIP reports whether s is a ten digit NIP with a correct check digit
func ValidNIP(s string) bool {
	return validator.ValidNIP(s)
}

// LoadCertificate reads a signing certificate from PEM or PKCS#12 files
func LoadCertificate(certPath, keyPath, password string) (*Certificate, error) {
	return certstore.LoadFiles(certPath, keyPath, password)
}

// ParseEnvironment maps "test" or "production" to an Environment
func ParseEnvironment(s string) (Environment, error) {
	return links.ParseEnvironment(s)
}

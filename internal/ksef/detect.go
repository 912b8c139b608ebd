package ksef

import (
	"regexp"

	"github.com/rezonia/ksef-pdf/internal/model"
)

// embeddedPattern finds a KSeF-shaped substring anywhere in a document
var embeddedPattern = regexp.MustCompile(`\d{10}-\d{8}-[0-9A-F]{12}-[0-9A-F]{2}`)

// IssuanceDetector decides how an invoice was issued
type IssuanceDetector interface {
	Detect(raw string) model.IssuanceMetadata
}

// TextScanDetector scans the whole raw document for a KSeF-shaped substring.
// The first match marks the invoice as Online with that number; no match means
// Offline. A match is not checksum-validated here, the validator does that.
type TextScanDetector struct{}

// Detect implements IssuanceDetector
func (TextScanDetector) Detect(raw string) model.IssuanceMetadata {
	if m := embeddedPattern.FindString(raw); m != "" {
		return model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: m}
	}
	return model.IssuanceMetadata{Mode: model.IssuanceOffline}
}

// StaticDetector returns caller supplied metadata, for callers that carry the
// issuance mode in a structured field
type StaticDetector struct {
	Metadata model.IssuanceMetadata
}

// Detect implements IssuanceDetector
func (d StaticDetector) Detect(string) model.IssuanceMetadata {
	if d.Metadata.Mode == "" {
		m := d.Metadata
		m.Mode = model.IssuanceOffline
		return m
	}
	return d.Metadata
}

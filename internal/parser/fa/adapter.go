// Package fa decodes KSeF FA(2) and FA(3) invoice XML into the invoice aggregate.
package fa

import (
	"bytes"
	"context"
	"io"

	"github.com/rezonia/ksef-pdf/internal/model"
)

// Adapter parses one FA schema version into Invoice
type Adapter interface {
	// Parse parses XML content into Invoice
	Parse(ctx context.Context, r io.Reader) (*model.Invoice, error)

	// CanParse returns true if adapter can handle this content
	CanParse(content []byte) bool

	// Schema returns the schema the adapter decodes
	Schema() model.Schema
}

// Registry holds all registered adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates registry with the FA(3) and FA(2) adapters
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewFA3Adapter(),
			NewFA2Adapter(),
		},
	}
}

// Detect picks the adapter for content
func (r *Registry) Detect(content []byte) (Adapter, error) {
	info, err := Inspect(content)
	if err != nil {
		return nil, err
	}
	for _, a := range r.adapters {
		if a.Schema() == info.Schema {
			return a, nil
		}
	}
	return nil, model.NewParseError(string(info.Schema), "root",
		"unknown FA schema, namespace "+info.Namespace+" has no matching adapter", nil)
}

// Parse parses XML using the matching adapter
func (r *Registry) Parse(ctx context.Context, content []byte) (*model.Invoice, error) {
	adapter, err := r.Detect(content)
	if err != nil {
		return nil, err
	}
	return adapter.Parse(ctx, bytes.NewReader(content))
}

// RegisterAdapter adds a custom adapter ahead of the built-in ones
func (r *Registry) RegisterAdapter(a Adapter) {
	r.adapters = append([]Adapter{a}, r.adapters...)
}

// GetAdapter returns the adapter for a schema
func (r *Registry) GetAdapter(schema model.Schema) Adapter {
	for _, a := range r.adapters {
		if a.Schema() == schema {
			return a
		}
	}
	return nil
}

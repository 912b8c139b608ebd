// Package processor runs an FA document through parsing, issuance detection,
// validation, link building and composition.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/ksef"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/parser/fa"
	"github.com/rezonia/ksef-pdf/internal/validator"
)

var (
	// ErrInvalidInvoice is returned when validation reports errors; rendering is skipped
	ErrInvalidInvoice = errors.New("invoice failed validation")
	// ErrUnsupportedFormat is returned for input that is not XML
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Options controls a single run
type Options struct {
	Render composer.RenderOptions
	// Issuance, when set, replaces text scan detection
	Issuance *model.IssuanceMetadata
	// SkipRender stops after validation and link building
	SkipRender bool
}

// Links are the verification URLs of one invoice
type Links struct {
	Invoice     string `json:"invoice,omitempty"`
	Certificate string `json:"certificate,omitempty"`
}

// Result is the outcome of one run. Error is nil on success.
type Result struct {
	Context  *model.InvoiceContext `json:"-"`
	Schema   model.Schema          `json:"schema,omitempty"`
	Outcome  *validator.Outcome    `json:"validation,omitempty"`
	Links    Links                 `json:"links"`
	Document []byte                `json:"-"`
	Warnings []string              `json:"warnings,omitempty"`
	Error    error                 `json:"-"`
}

// Pipeline processes FA documents
type Pipeline struct {
	registry *fa.Registry
	detector ksef.IssuanceDetector
	composer *composer.Composer
	logger   zerolog.Logger
	now      func() time.Time
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithRegistry replaces the XML adapter registry
func WithRegistry(r *fa.Registry) PipelineOption {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithDetector replaces the issuance detector
func WithDetector(d ksef.IssuanceDetector) PipelineOption {
	return func(p *Pipeline) {
		p.detector = d
	}
}

// WithComposer replaces the document composer
func WithComposer(c *composer.Composer) PipelineOption {
	return func(p *Pipeline) {
		p.composer = c
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: fa.NewRegistry(),
		detector: ksef.TextScanDetector{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.composer == nil {
		p.composer = composer.New(composer.WithLogger(p.logger), composer.WithClock(p.now))
	}
	return p
}

// ProcessReader reads r fully and processes it
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader, opts Options) *Result {
	raw, err := io.ReadAll(r)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to read input: %w", err)}
	}
	return p.Process(ctx, raw, opts)
}

// Process runs every stage. Validation errors stop the run before composition.
func (p *Pipeline) Process(ctx context.Context, raw []byte, opts Options) *Result {
	result := p.Validate(ctx, raw, opts)
	if result.Error != nil {
		return result
	}

	result.Links, result.Warnings = p.buildLinks(result.Context, opts.Render, result.Warnings)

	if opts.SkipRender {
		return result
	}

	render := opts.Render
	render.InvoiceLink = result.Links.Invoice
	render.CertificateLink = result.Links.Certificate

	start := p.now()
	doc, err := p.composer.RenderBytes(result.Context, render)
	if err != nil {
		result.Error = fmt.Errorf("rendering failed: %w", err)
		return result
	}
	result.Document = doc
	p.logger.Debug().Dur("duration", p.now().Sub(start)).Int("bytes", len(doc)).Msg("render stage done")

	return result
}

// Validate parses raw, detects the issuance mode and validates the invoice
func (p *Pipeline) Validate(ctx context.Context, raw []byte, opts Options) *Result {
	result := &Result{}

	ic, schema, err := p.Parse(ctx, raw, opts)
	result.Schema = schema
	if err != nil {
		result.Error = err
		return result
	}
	result.Context = ic

	start := p.now()
	v := validator.New(
		validator.WithExpectedForm(validator.FormForSchema(schema)),
		validator.WithLogger(p.logger),
	)
	result.Outcome = v.ValidateContext(ic)
	result.Warnings = append(result.Warnings, result.Outcome.Warnings...)
	p.logger.Debug().Dur("duration", p.now().Sub(start)).Bool("valid", result.Outcome.Valid).Msg("validate stage done")

	if !result.Outcome.Valid {
		result.Error = fmt.Errorf("%w: %s", ErrInvalidInvoice, strings.Join(result.Outcome.Errors, "; "))
	}
	return result
}

// Parse decodes raw into an invoice context
func (p *Pipeline) Parse(ctx context.Context, raw []byte, opts Options) (*model.InvoiceContext, model.Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.SchemaUnknown, err
	}
	if f := DetectFormat(raw); f != FormatXML {
		return nil, model.SchemaUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	start := p.now()
	adapter, err := p.registry.Detect(raw)
	if err != nil {
		return nil, model.SchemaUnknown, fmt.Errorf("XML parsing failed: %w", err)
	}
	inv, err := adapter.Parse(ctx, bytes.NewReader(raw))
	if err != nil {
		return nil, adapter.Schema(), fmt.Errorf("XML parsing failed: %w", err)
	}
	p.logger.Debug().Dur("duration", p.now().Sub(start)).Str("schema", string(adapter.Schema())).Msg("parse stage done")

	detector := p.detector
	if opts.Issuance != nil {
		detector = ksef.StaticDetector{Metadata: *opts.Issuance}
	}
	meta := detector.Detect(string(raw))
	p.logger.Debug().Str("mode", meta.Mode.String()).Str("ksef_number", meta.KSeFNumber).Msg("issuance detected")

	return model.NewInvoiceContext(inv, meta, raw, p.now()), adapter.Schema(), nil
}

// BuildLinks returns the verification URLs for ic; failures become warnings
func (p *Pipeline) BuildLinks(ic *model.InvoiceContext, opts composer.RenderOptions) (Links, []string) {
	return p.buildLinks(ic, opts, nil)
}

func (p *Pipeline) buildLinks(ic *model.InvoiceContext, opts composer.RenderOptions, warnings []string) (Links, []string) {
	var out Links
	if ic == nil {
		return out, warnings
	}

	env := opts.Environment
	if env == "" {
		env = links.EnvironmentTest
	}
	b := links.NewBuilder(env, links.WithLogger(p.logger))
	inv := ic.Invoice()
	meta := ic.Issuance()

	in := links.InvoiceLinkInput{
		SellerNIP:  inv.Seller.TaxID(),
		Raw:        ic.RawBytes(),
		KSeFNumber: meta.KSeFNumber,
		Mode:       meta.Mode,
	}
	if inv.Body != nil {
		in.IssueDate = inv.Body.IssueDate
	}
	link, err := b.InvoiceLink(in)
	if err != nil {
		warnings = append(warnings, "invoice link not built: "+err.Error())
	} else {
		out.Invoice = link
	}

	if opts.Certificate != nil {
		link, err := b.CertificateLinkForSeller(inv.Seller.TaxID(), opts.Certificate, ic.RawBytes())
		if err != nil {
			warnings = append(warnings, "certificate link not built: "+err.Error())
		} else {
			out.Certificate = link
		}
	}
	return out, warnings
}

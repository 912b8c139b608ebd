package ksefpdf

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/processor"
)

// Options configures a Processor
type Options struct {
	Render RenderOptions
	Logger zerolog.Logger
	// Clock overrides the time source used for context timestamps and PDF metadata
	Clock func() time.Time
}

// DefaultOptions returns options for the test environment with both QR codes enabled
func DefaultOptions() Options {
	return Options{
		Render: DefaultRenderOptions(),
		Logger: zerolog.Nop(),
	}
}

// Output is the result of processing one invoice
type Output struct {
	Schema   Schema
	Issuance IssuanceMetadata
	Outcome  *Outcome
	Links    Links
	Document []byte
	Warnings []string
}

// Processor renders FA invoices using the internal pipeline
type Processor struct {
	pipeline *processor.Pipeline
	options  Options
}

// NewProcessor creates a new invoice processor with the given options
func NewProcessor(opts Options) *Processor {
	pipelineOpts := []processor.PipelineOption{processor.WithLogger(opts.Logger)}
	if opts.Clock != nil {
		pipelineOpts = append(pipelineOpts, processor.WithClock(opts.Clock))
	}
	return &Processor{
		pipeline: processor.NewPipeline(pipelineOpts...),
		options:  opts,
	}
}

// NewDefaultProcessor creates a processor with default options
func NewDefaultProcessor() *Processor {
	return NewProcessor(DefaultOptions())
}

// Validate parses and validates the invoice. A parsed but invalid invoice is
// reported through the outcome, not the error.
func (p *Processor) Validate(ctx context.Context, r io.Reader) (*Outcome, error) {
	raw, err := readAll(r)
	if err != nil {
		return nil, err
	}
	result := p.pipeline.Validate(ctx, raw, p.run(nil, true))
	if result.Outcome == nil {
		return nil, result.Error
	}
	return result.Outcome, nil
}

// Links validates the invoice and returns its verification links without rendering
func (p *Processor) Links(ctx context.Context, r io.Reader) (*Output, error) {
	return p.process(ctx, r, nil, true)
}

// Render validates the invoice, builds its links and renders the PDF. The
// issuance mode is detected from the document text.
func (p *Processor) Render(ctx context.Context, r io.Reader) (*Output, error) {
	return p.process(ctx, r, nil, false)
}

// RenderIssued is Render with an explicit issuance mode and KSeF number
func (p *Processor) RenderIssued(ctx context.Context, r io.Reader, meta IssuanceMetadata) (*Output, error) {
	return p.process(ctx, r, &meta, false)
}

// RenderBatch renders multiple inputs concurrently. Outputs keep the input
// order; a failed input leaves a nil slot and the first error is returned.
func (p *Processor) RenderBatch(ctx context.Context, inputs []io.Reader) ([]*Output, error) {
	results := make([]*Output, len(inputs))
	errCh := make(chan error, len(inputs))

	for i, input := range inputs {
		go func(idx int, r io.Reader) {
			out, err := p.Render(ctx, r)
			if err != nil {
				errCh <- err
				return
			}
			results[idx] = out
			errCh <- nil
		}(i, input)
	}

	var firstErr error
	for range inputs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return results, firstErr
}

func (p *Processor) process(ctx context.Context, r io.Reader, meta *IssuanceMetadata, skipRender bool) (*Output, error) {
	raw, err := readAll(r)
	if err != nil {
		return nil, err
	}

	result := p.pipeline.Process(ctx, raw, p.run(meta, skipRender))
	if result.Error != nil {
		return nil, result.Error
	}

	return &Output{
		Schema:   result.Schema,
		Issuance: result.Context.Issuance(),
		Outcome:  result.Outcome,
		Links:    result.Links,
		Document: result.Document,
		Warnings: result.Warnings,
	}, nil
}

func (p *Processor) run(meta *IssuanceMetadata, skipRender bool) processor.Options {
	return processor.Options{
		Render:     p.options.Render,
		Issuance:   meta,
		SkipRender: skipRender,
	}
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("", "", "failed to read input", err)
	}
	return data, nil
}

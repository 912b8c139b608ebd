// Package pdfinfo inspects rendered documents with pdfcpu.
package pdfinfo

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const documentIDPrefix = "document-id:"

var disableConfig sync.Once

// Info describes a PDF file
type Info struct {
	Valid      bool   `json:"valid"`
	PageCount  int    `json:"page_count"`
	Version    string `json:"version,omitempty"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	Creator    string `json:"creator,omitempty"`
	Keywords   string `json:"keywords,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func configuration() *model.Configuration {
	disableConfig.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Validate reports whether rs holds a structurally valid PDF
func Validate(rs io.ReadSeeker) error {
	if err := api.Validate(rs, configuration()); err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	return nil
}

// Inspect reads and validates rs. A document that fails validation is
// reported through Info.Valid and Info.Error; err is only set when rs cannot be read at all.
func Inspect(rs io.ReadSeeker) (*Info, error) {
	ctx, err := api.ReadContext(rs, configuration())
	if err != nil {
		return &Info{Error: err.Error()}, nil
	}

	verr := api.ValidateContext(ctx)
	if err := ctx.EnsurePageCount(); err != nil && verr == nil {
		verr = err
	}

	// document info entries are resolved during validation
	info := &Info{
		PageCount:  ctx.PageCount,
		Title:      ctx.Title,
		Author:     ctx.Author,
		Creator:    ctx.Creator,
		Keywords:   ctx.Keywords,
		DocumentID: documentID(ctx.Keywords),
	}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}

	if verr != nil {
		info.Error = verr.Error()
		return info, nil
	}
	info.Valid = true
	return info, nil
}

// InspectBytes is Inspect over an in-memory document
func InspectBytes(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return Inspect(bytes.NewReader(data))
}

func documentID(keywords string) string {
	for _, field := range strings.Fields(keywords) {
		if strings.HasPrefix(field, documentIDPrefix) {
			return strings.TrimPrefix(field, documentIDPrefix)
		}
	}
	return ""
}

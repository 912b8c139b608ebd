package processor_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/pdfinfo"
	"github.com/rezonia/ksef-pdf/internal/processor"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
)

const onlineNumber = "5265877635-20250826-0100001AF629-AF"

var fixedNow = time.Date(2025, 8, 27, 8, 0, 0, 0, time.UTC)

func readFixture(t testing.TB, name string) []byte {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("..", "parser", "fa", "testdata", name))
	require.NoError(t, err, "failed to read fixture: %s", name)
	return content
}

func newPipeline() *processor.Pipeline {
	return processor.NewPipeline(processor.WithClock(func() time.Time { return fixedNow }))
}

func TestNewPipeline(t *testing.T) {
	p := processor.NewPipeline()
	require.NotNil(t, p)
}

func TestProcess_OfflineInvoice(t *testing.T) {
	raw := readFixture(t, "fa3_invoice.xml")

	result := newPipeline().Process(context.Background(), raw, processor.Options{Render: composer.DefaultRenderOptions()})
	require.NoError(t, result.Error)

	assert.Equal(t, model.SchemaFA3, result.Schema)
	require.NotNil(t, result.Outcome)
	assert.True(t, result.Outcome.Valid, result.Outcome.Errors)
	assert.Empty(t, result.Outcome.Warnings)

	assert.Equal(t, model.IssuanceOffline, result.Context.Issuance().Mode)
	assert.Equal(t, raw, result.Context.RawBytes())
	assert.Equal(t, fixedNow, result.Context.CreatedAt())

	assert.True(t, strings.HasPrefix(result.Links.Invoice, "https://qr-test.ksef.mf.gov.pl/invoice/5265877635/26-08-2025/"))
	assert.Empty(t, result.Links.Certificate)

	ok, err := links.VerifyInvoiceLink(result.Links.Invoice, raw)
	require.NoError(t, err)
	assert.True(t, ok)

	require.True(t, bytes.HasPrefix(result.Document, []byte("%PDF")))
	info, err := pdfinfo.InspectBytes(result.Document)
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
}

func TestProcess_OnlineWithCertificate(t *testing.T) {
	raw := readFixture(t, "fa3_invoice.xml")
	g, err := certstore.GenerateSelfSigned(certstore.SelfSignedOptions{})
	require.NoError(t, err)

	opts := processor.Options{
		Render:   composer.DefaultRenderOptions(),
		Issuance: &model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: onlineNumber},
	}
	opts.Render.Certificate = g.Certificate
	opts.Render.Environment = links.EnvironmentProduction

	result := newPipeline().Process(context.Background(), raw, opts)
	require.NoError(t, result.Error)

	assert.Equal(t, onlineNumber, result.Context.Issuance().KSeFNumber)
	assert.True(t, strings.HasPrefix(result.Links.Certificate, "https://qr.ksef.mf.gov.pl/certificate/nip/5265877635/5265877635/"))
	require.NoError(t, links.VerifyCertificateLink(result.Links.Certificate, g.Certificate))
	assert.NotEmpty(t, result.Document)
}

func TestProcess_TextScanDetectsOnline(t *testing.T) {
	raw := bytes.Replace(readFixture(t, "fa3_invoice.xml"),
		[]byte("<Wartosc>ZAM/77/2025</Wartosc>"),
		[]byte("<Wartosc>"+onlineNumber+"</Wartosc>"), 1)

	result := newPipeline().Process(context.Background(), raw, processor.Options{SkipRender: true})
	require.NoError(t, result.Error)
	assert.Equal(t, model.IssuanceOnline, result.Context.Issuance().Mode)
	assert.Equal(t, onlineNumber, result.Context.Issuance().KSeFNumber)
	assert.Nil(t, result.Document)
}

func TestProcess_InvalidOnlineNumberStopsRendering(t *testing.T) {
	raw := readFixture(t, "fa3_invoice.xml")
	opts := processor.Options{
		Issuance: &model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: "5265877635-20250826-0100001AF629-00"},
	}

	result := newPipeline().Process(context.Background(), raw, opts)
	require.Error(t, result.Error)
	assert.True(t, errors.Is(result.Error, processor.ErrInvalidInvoice))
	assert.Contains(t, result.Error.Error(), "checksum")
	assert.Nil(t, result.Document)
	assert.Empty(t, result.Links.Invoice)
}

func TestProcess_FA2WithForeignBuyerFailsValidation(t *testing.T) {
	result := newPipeline().Process(context.Background(), readFixture(t, "fa2_invoice.xml"), processor.Options{})
	require.Error(t, result.Error)
	assert.ErrorIs(t, result.Error, processor.ErrInvalidInvoice)
	assert.Equal(t, model.SchemaFA2, result.Schema)
	assert.NotContains(t, strings.Join(result.Outcome.Errors, "\n"), "form code", "FA (2) is checked against its own form code")
	assert.Contains(t, strings.Join(result.Outcome.Errors, "\n"), "buyer: tax ID is missing")
}

func TestProcess_Invalid(t *testing.T) {
	p := newPipeline()

	result := p.Process(context.Background(), []byte("not xml"), processor.Options{})
	require.Error(t, result.Error)
	assert.ErrorIs(t, result.Error, processor.ErrUnsupportedFormat)

	result = p.Process(context.Background(), []byte("<Invoice/>"), processor.Options{})
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "XML parsing failed")
	var perr *model.ParseError
	assert.True(t, errors.As(result.Error, &perr))
}

func TestProcessReader(t *testing.T) {
	result := newPipeline().ProcessReader(context.Background(), bytes.NewReader(readFixture(t, "fa3_invoice.xml")), processor.Options{SkipRender: true})
	require.NoError(t, result.Error)
	assert.Equal(t, "FV/2025/08/0001", result.Context.Invoice().Body.Number)
}

func TestBuildLinks_Warnings(t *testing.T) {
	inv := &model.Invoice{
		Seller: &model.Party{Identification: &model.Identification{TaxID: "12345"}},
		Body:   &model.Body{IssueDate: fixedNow},
	}
	ic := model.NewInvoiceContext(inv, model.IssuanceMetadata{}, []byte("<Faktura/>"), fixedNow)

	g, err := certstore.GenerateSelfSigned(certstore.SelfSignedOptions{})
	require.NoError(t, err)
	opts := composer.DefaultRenderOptions()
	opts.Certificate = g.Certificate

	l, warnings := newPipeline().BuildLinks(ic, opts)
	assert.Empty(t, l.Invoice)
	assert.Empty(t, l.Certificate)
	assert.Len(t, warnings, 2)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected processor.Format
	}{
		{
			name:     "XML with declaration",
			data:     []byte(`<?xml version="1.0"?><Faktura/>`),
			expected: processor.FormatXML,
		},
		{
			name:     "XML with BOM and whitespace",
			data:     append([]byte{0xEF, 0xBB, 0xBF}, []byte("\n  <Faktura/>")...),
			expected: processor.FormatXML,
		},
		{
			name:     "PDF",
			data:     []byte("%PDF-1.4\n%some content"),
			expected: processor.FormatPDF,
		},
		{
			name:     "PNG image",
			data:     []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
			expected: processor.FormatImage,
		},
		{
			name:     "JPEG image",
			data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46},
			expected: processor.FormatImage,
		},
		{
			name:     "TIFF big-endian",
			data:     []byte{0x4D, 0x4D, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08},
			expected: processor.FormatImage,
		},
		{
			name:     "Unknown format",
			data:     []byte("some random text"),
			expected: processor.FormatUnknown,
		},
		{
			name:     "Empty data",
			data:     []byte{},
			expected: processor.FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, processor.DetectFormat(tt.data))
		})
	}
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		format   processor.Format
		expected string
	}{
		{processor.FormatXML, "xml"},
		{processor.FormatPDF, "pdf"},
		{processor.FormatImage, "image"},
		{processor.FormatUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.format.String())
		})
	}
}

// Benchmark tests

func BenchmarkDetectFormat_XML(b *testing.B) {
	data := []byte(`<?xml version="1.0"?><Faktura><Fa/></Faktura>`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processor.DetectFormat(data)
	}
}

func BenchmarkProcess_SkipRender(b *testing.B) {
	ctx := context.Background()
	p := processor.NewPipeline()
	raw := readFixture(b, "fa3_invoice.xml")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Process(ctx, raw, processor.Options{SkipRender: true})
	}
}

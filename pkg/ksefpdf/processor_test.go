package ksefpdf_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/pkg/ksefpdf"
)

const onlineNumber = "5265877635-20250826-0100001AF629-AF"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "parser", "fa", "testdata", name))
	require.NoError(t, err)
	return data
}

func newProcessor() *ksefpdf.Processor {
	opts := ksefpdf.DefaultOptions()
	opts.Clock = func() time.Time { return time.Date(2025, 8, 27, 8, 0, 0, 0, time.UTC) }
	return ksefpdf.NewProcessor(opts)
}

func TestNewDefaultProcessor(t *testing.T) {
	require.NotNil(t, ksefpdf.NewDefaultProcessor())
}

func TestProcessorValidate(t *testing.T) {
	proc := newProcessor()

	outcome, err := proc.Validate(context.Background(), bytes.NewReader(readFixture(t, "fa3_invoice.xml")))
	require.NoError(t, err)
	assert.True(t, outcome.Valid, outcome.Errors)

	_, err = proc.Validate(context.Background(), strings.NewReader("not xml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ksefpdf.ErrUnsupportedFormat))
}

func TestProcessorRender(t *testing.T) {
	out, err := newProcessor().Render(context.Background(), bytes.NewReader(readFixture(t, "fa3_invoice.xml")))
	require.NoError(t, err)

	assert.Equal(t, ksefpdf.SchemaFA3, out.Schema)
	assert.Equal(t, ksefpdf.IssuanceOffline, out.Issuance.Mode)
	assert.True(t, strings.HasPrefix(out.Links.Invoice, "https://qr-test.ksef.mf.gov.pl/invoice/5265877635/"))
	assert.True(t, bytes.HasPrefix(out.Document, []byte("%PDF")))
}

func TestProcessorRenderIssued(t *testing.T) {
	meta := ksefpdf.IssuanceMetadata{Mode: ksefpdf.IssuanceOnline, KSeFNumber: onlineNumber}

	out, err := newProcessor().RenderIssued(context.Background(), bytes.NewReader(readFixture(t, "fa3_invoice.xml")), meta)
	require.NoError(t, err)
	assert.Equal(t, onlineNumber, out.Issuance.KSeFNumber)
	assert.NotEmpty(t, out.Document)
}

func TestProcessorLinks(t *testing.T) {
	out, err := newProcessor().Links(context.Background(), bytes.NewReader(readFixture(t, "fa3_invoice.xml")))
	require.NoError(t, err)
	assert.NotEmpty(t, out.Links.Invoice)
	assert.Empty(t, out.Links.Certificate)
	assert.Nil(t, out.Document)
}

func TestProcessorRender_InvalidInvoice(t *testing.T) {
	_, err := newProcessor().Render(context.Background(), bytes.NewReader(readFixture(t, "fa2_invoice.xml")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ksefpdf.ErrInvalidInvoice))
}

func TestProcessorRenderBatch(t *testing.T) {
	raw := readFixture(t, "fa3_invoice.xml")
	inputs := []io.Reader{
		bytes.NewReader(raw),
		strings.NewReader("not xml"),
		bytes.NewReader(raw),
	}

	outputs, err := newProcessor().RenderBatch(context.Background(), inputs)
	require.Error(t, err)
	require.Len(t, outputs, 3)
	assert.NotNil(t, outputs[0])
	assert.Nil(t, outputs[1])
	assert.NotNil(t, outputs[2])
}

func TestHelpers(t *testing.T) {
	assert.True(t, ksefpdf.ValidateKSeFNumber(onlineNumber).Valid)
	assert.False(t, ksefpdf.ValidateKSeFNumber("5265877635-20250826-0100001AF629-00").Valid)
	assert.True(t, ksefpdf.ValidNIP("5265877635"))
	assert.False(t, ksefpdf.ValidNIP("5265877636"))

	env, err := ksefpdf.ParseEnvironment("production")
	require.NoError(t, err)
	assert.Equal(t, ksefpdf.EnvironmentProduction, env)
}

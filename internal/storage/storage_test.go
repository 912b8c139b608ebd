package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/storage"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		raw    string
		bucket string
		object string
		path   string
	}{
		{"out/invoice.pdf", "", "", "out/invoice.pdf"},
		{"  /tmp/a.pdf ", "", "", "/tmp/a.pdf"},
		{"gs://invoices/2025/08/FA-1.pdf", "invoices", "2025/08/FA-1.pdf", ""},
		{"gs://invoices//a.pdf", "invoices", "a.pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, err := storage.ParseDestination(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, d.Bucket)
			assert.Equal(t, tt.object, d.Object)
			assert.Equal(t, tt.path, d.Path)
			assert.Equal(t, tt.bucket != "", d.IsGCS())
		})
	}
}

func TestParseDestination_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "gs://", "gs://bucket", "gs://bucket/", "gs:///object"} {
		_, err := storage.ParseDestination(raw)
		assert.ErrorIs(t, err, model.ErrArgument, raw)
	}
}

func TestDestination_String(t *testing.T) {
	d, err := storage.ParseDestination("gs://b/o.pdf")
	require.NoError(t, err)
	assert.Equal(t, "gs://b/o.pdf", d.String())
	assert.Equal(t, "x.pdf", storage.Destination{Path: "x.pdf"}.String())
}

func TestFileSink_Write(t *testing.T) {
	dir := t.TempDir()
	sink := storage.NewFileSink(dir, zerolog.Nop())

	location, err := sink.Write(context.Background(), "nested/doc.pdf", []byte("%PDF-1.4"), storage.ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "doc.pdf"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestFileSink_Errors(t *testing.T) {
	sink := storage.NewFileSink(t.TempDir(), zerolog.Nop())

	_, err := sink.Write(context.Background(), " ", nil, "")
	assert.ErrorIs(t, err, model.ErrArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Write(ctx, "a.pdf", nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	sink, name, err := storage.Open(context.Background(), storage.Destination{Path: path}, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, path, name)

	location, err := sink.Write(context.Background(), name, []byte("x"), storage.ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, path, location)
}

func TestNewGCSSink_RequiresBucket(t *testing.T) {
	_, err := storage.NewGCSSink(context.Background(), "", "", zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrArgument)
}

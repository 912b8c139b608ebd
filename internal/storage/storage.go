// Package storage writes rendered documents to a local path or a Google Cloud Storage object.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rezonia/ksef-pdf/internal/model"
)

const gcsScheme = "gs://"

// ContentTypePDF is the content type stored with rendered documents
const ContentTypePDF = "application/pdf"

// Sink stores one document and reports where it went
type Sink interface {
	Write(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Destination is a parsed output target
type Destination struct {
	Bucket string
	Object string
	Path   string
}

// IsGCS reports whether the destination is a bucket object
func (d Destination) IsGCS() bool {
	return d.Bucket != ""
}

func (d Destination) String() string {
	if d.IsGCS() {
		return gcsScheme + d.Bucket + "/" + d.Object
	}
	return d.Path
}

// ParseDestination accepts gs://bucket/object or a filesystem path
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, model.NewArgumentError("storage.ParseDestination", "destination", "empty destination")
	}
	if !strings.HasPrefix(raw, gcsScheme) {
		return Destination{Path: raw}, nil
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(raw, gcsScheme), "/")
	if !ok || bucket == "" || strings.TrimLeft(object, "/") == "" {
		return Destination{}, model.NewArgumentError("storage.ParseDestination", "destination",
			fmt.Sprintf("%q must be gs://bucket/object", raw))
	}
	return Destination{Bucket: bucket, Object: strings.TrimLeft(object, "/")}, nil
}

// FileSink writes documents below a base directory. An empty base uses names as given.
type FileSink struct {
	base   string
	logger zerolog.Logger
}

// NewFileSink creates a file sink
func NewFileSink(base string, logger zerolog.Logger) *FileSink {
	return &FileSink{base: base, logger: logger}
}

// Write creates parent directories and writes the file with 0644 permissions
func (s *FileSink) Write(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", model.NewArgumentError("storage.FileSink.Write", "name", "empty file name")
	}

	path := name
	if s.base != "" {
		path = filepath.Join(s.base, name)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("document written")
	return path, nil
}

// Open returns the sink for a destination together with the name to write under
func Open(ctx context.Context, dest Destination, credentialsJSON string, logger zerolog.Logger) (Sink, string, error) {
	if !dest.IsGCS() {
		return NewFileSink("", logger), dest.Path, nil
	}
	sink, err := NewGCSSink(ctx, dest.Bucket, credentialsJSON, logger)
	if err != nil {
		return nil, "", err
	}
	return sink, dest.Object, nil
}

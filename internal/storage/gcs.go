package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/rezonia/ksef-pdf/internal/model"
)

// GCSSink uploads documents into one bucket
type GCSSink struct {
	client *storage.Client
	bucket string
	logger zerolog.Logger
}

// NewGCSSink connects to Cloud Storage. Explicit credentials JSON wins over
// application default credentials.
func NewGCSSink(ctx context.Context, bucket, credentialsJSON string, logger zerolog.Logger) (*GCSSink, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, model.NewArgumentError("storage.NewGCSSink", "bucket", "bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, logger: logger}, nil
}

// Write uploads data as bucket/name and returns its gs:// location
func (s *GCSSink) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", model.NewArgumentError("storage.GCSSink.Write", "name", "empty object name")
	}

	bucket := s.client.Bucket(s.bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		return "", fmt.Errorf("gcs bucket %q not found or not accessible: %w", s.bucket, err)
	}

	wc := bucket.Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	location := Destination{Bucket: s.bucket, Object: name}.String()
	s.logger.Info().Str("location", location).Int("bytes", len(data)).Msg("document uploaded")
	return location, nil
}

// Close releases the client
func (s *GCSSink) Close() error {
	return s.client.Close()
}

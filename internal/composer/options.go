package composer

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/qr"
	"github.com/rezonia/ksef-pdf/internal/signature"
)

// RenderOptions configures one rendering
type RenderOptions struct {
	// Certificate signs the certificate QR; without it that QR is omitted
	Certificate          *signature.Certificate `json:"-"`
	Environment          links.Environment      `json:"environment" validate:"omitempty,oneof=test production"`
	QRPixelsPerModule    int                    `json:"qr_pixels_per_module" validate:"min=1,max=40"`
	IncludeInvoiceQR     bool                   `json:"include_invoice_qr"`
	IncludeCertificateQR bool                   `json:"include_certificate_qr"`
	Title                string                 `json:"title,omitempty" validate:"max=256"`
	Author               string                 `json:"author,omitempty" validate:"max=256"`
	// GeneratedAt is printed in the footer; zero means now
	GeneratedAt time.Time `json:"generated_at,omitempty"`

	// Prebuilt links are encoded as given instead of being built again
	InvoiceLink     string `json:"-"`
	CertificateLink string `json:"-"`
}

// DefaultRenderOptions returns options with both QR codes enabled on the test environment
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Environment:          links.EnvironmentTest,
		QRPixelsPerModule:    qr.RecommendedPixelsPerModule,
		IncludeInvoiceQR:     true,
		IncludeCertificateQR: true,
	}
}

var validate = validator.New()

// normalize fills defaults and validates
func (o RenderOptions) normalize(now func() time.Time) (RenderOptions, error) {
	if o.Environment == "" {
		o.Environment = links.EnvironmentTest
	}
	if o.QRPixelsPerModule == 0 {
		o.QRPixelsPerModule = qr.RecommendedPixelsPerModule
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = now()
	}

	if err := validate.Struct(o); err != nil {
		return o, model.NewArgumentError("composer.Render", "options", describe(err))
	}
	return o, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(msgs, "; ")
}

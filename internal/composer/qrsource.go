package composer

import (
	"github.com/rs/zerolog"

	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/qr"
)

// QRSource produces the two verification QR images. A false result means the
// image is absent; failures never reach the composer.
type QRSource interface {
	InvoiceQR(ic *model.InvoiceContext, opts RenderOptions) ([]byte, bool)
	CertificateQR(ic *model.InvoiceContext, opts RenderOptions) ([]byte, bool)
}

// LinkQRSource builds links and renders them with a QR generator, logging failures
type LinkQRSource struct {
	generator *qr.Generator
	logger    zerolog.Logger
}

// NewLinkQRSource creates the default QR source
func NewLinkQRSource(generator *qr.Generator, logger zerolog.Logger) *LinkQRSource {
	return &LinkQRSource{generator: generator, logger: logger}
}

// InvoiceQR implements QRSource
func (s *LinkQRSource) InvoiceQR(ic *model.InvoiceContext, opts RenderOptions) ([]byte, bool) {
	meta := ic.Issuance()

	link := opts.InvoiceLink
	if link == "" {
		inv := ic.Invoice()
		in := links.InvoiceLinkInput{
			SellerNIP:  inv.Seller.TaxID(),
			Raw:        ic.RawBytes(),
			KSeFNumber: meta.KSeFNumber,
			Mode:       meta.Mode,
		}
		if inv.Body != nil {
			in.IssueDate = inv.Body.IssueDate
		}

		var err error
		link, err = links.NewBuilder(opts.Environment, links.WithLogger(s.logger)).InvoiceLink(in)
		if err != nil {
			s.logger.Warn().Err(err).Str("qr", "invoice").Msg("QR code skipped")
			return nil, false
		}
	}

	label := ""
	if meta.Mode.IsOnline() {
		label = meta.KSeFNumber
	}
	png, err := s.generator.GenerateInvoiceQR(link, label, opts.QRPixelsPerModule)
	if err != nil {
		s.logger.Warn().Err(err).Str("qr", "invoice").Msg("QR code skipped")
		return nil, false
	}
	return png, true
}

// CertificateQR implements QRSource
func (s *LinkQRSource) CertificateQR(ic *model.InvoiceContext, opts RenderOptions) ([]byte, bool) {
	link := opts.CertificateLink
	if link == "" {
		if opts.Certificate == nil {
			s.logger.Debug().Str("qr", "certificate").Msg("no signing certificate, QR code omitted")
			return nil, false
		}

		nip := ic.Invoice().Seller.TaxID()
		var err error
		link, err = links.NewBuilder(opts.Environment, links.WithLogger(s.logger)).
			CertificateLinkForSeller(nip, opts.Certificate, ic.RawBytes())
		if err != nil {
			s.logger.Warn().Err(err).Str("qr", "certificate").Msg("QR code skipped")
			return nil, false
		}
	}

	png, err := s.generator.GenerateCertificateQR(link, opts.QRPixelsPerModule)
	if err != nil {
		s.logger.Warn().Err(err).Str("qr", "certificate").Msg("QR code skipped")
		return nil, false
	}
	return png, true
}

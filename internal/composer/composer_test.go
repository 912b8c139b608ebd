package composer_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/internal/composer"
	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/pdfinfo"
	"github.com/rezonia/ksef-pdf/internal/qr"
	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
)

var generatedAt = time.Date(2025, 8, 27, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func sampleInvoice(lines int) *model.Invoice {
	issue := time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC)
	due := issue.AddDate(0, 0, 14)

	inv := &model.Invoice{
		Header: &model.Header{
			FormCode:  model.FormCode{Value: "FA", SystemCode: "FA (3)", SchemaVersion: "1-0E", Variant: 3},
			CreatedAt: issue,
		},
		Seller: &model.Party{
			Identification: &model.Identification{TaxID: "5265877635", Name: "Zakład Usług Informatycznych Sp. z o.o."},
			Address:        &model.Address{CountryCode: "PL", Line1: "ul. Prosta 1", Line2: "00-850 Warszawa"},
			Contacts:       []model.Contact{{Email: "biuro@example.pl", Phone: "601234567"}},
		},
		Buyer: &model.Party{
			Identification: &model.Identification{TaxID: "1234563218", Name: "Kupiec GmbH"},
			Address:        &model.Address{CountryCode: "DE", Line1: "Hauptstraße 5", Line2: "10115 Berlin"},
		},
		Body: &model.Body{
			Currency:  "PLN",
			IssueDate: issue,
			Number:    "FV/1/08/2025",
			Type:      model.InvoiceTypeVAT,
			Payment: &model.Payment{
				Method:   model.PaymentTransfer,
				DueDates: []model.DueDate{{Date: &due}},
				Accounts: []model.BankAccount{{Number: "PL61109010140000071219812874", BankName: "Bank Polski"}},
			},
			Annotations: model.Annotations{SplitPayment: model.FlagTrue, ReverseCharge: "2"},
		},
		Footer: &model.Footer{Text: []string{"Thank you"}, KRS: "0000099999", REGON: "123456785"},
	}

	net := decimal.Zero
	for i := 0; i < lines; i++ {
		inv.Body.Lines = append(inv.Body.Lines, model.LineItem{
			Row:          i + 1,
			Description:  "Usługa wdrożeniowa etap " + string(rune('A'+i%26)),
			GTIN:         "5901234123457",
			Unit:         "h",
			Quantity:     decp("10"),
			UnitNetPrice: decp("150.00"),
			Net:          dec("1500.00"),
			VATRate:      "23",
		})
		net = net.Add(dec("1500.00"))
	}
	vat := net.Mul(dec("0.23"))
	inv.Body.Subtotals = []model.Subtotal{{Bucket: "1", Net: net, VAT: vat}}
	inv.Body.Gross = net.Add(vat)
	return inv
}

func sampleContext(lines int, meta model.IssuanceMetadata) *model.InvoiceContext {
	return model.NewInvoiceContext(sampleInvoice(lines), meta, []byte("<Faktura>sample</Faktura>"), generatedAt)
}

func options() composer.RenderOptions {
	opts := composer.DefaultRenderOptions()
	opts.GeneratedAt = generatedAt
	return opts
}

func newCert(t *testing.T) *signature.Certificate {
	t.Helper()
	g, err := certstore.GenerateSelfSigned(certstore.SelfSignedOptions{
		CommonName: "Seller",
		Serial:     big.NewInt(0x5A17),
	})
	require.NoError(t, err)
	return g.Certificate
}

type fakeQR struct {
	invoice, certificate           []byte
	invoiceCalls, certificateCalls int
}

func (f *fakeQR) InvoiceQR(*model.InvoiceContext, composer.RenderOptions) ([]byte, bool) {
	f.invoiceCalls++
	return f.invoice, f.invoice != nil
}

func (f *fakeQR) CertificateQR(*model.InvoiceContext, composer.RenderOptions) ([]byte, bool) {
	f.certificateCalls++
	return f.certificate, f.certificate != nil
}

func TestRender_NoCertificateStillProducesDocument(t *testing.T) {
	c := composer.New()
	ic := sampleContext(3, model.IssuanceMetadata{Mode: model.IssuanceOffline})

	data, err := c.RenderBytes(ic, options())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	info, err := pdfinfo.InspectBytes(data)
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
	assert.Equal(t, 1, info.PageCount)
	assert.Equal(t, composer.DocumentID(ic.RawBytes()), info.DocumentID)
}

func TestRender_WithCertificate(t *testing.T) {
	c := composer.New()
	ic := sampleContext(2, model.IssuanceMetadata{
		Mode:       model.IssuanceOnline,
		KSeFNumber: "5265877635-20250826-0100001AF629-AF",
	})

	opts := options()
	opts.Certificate = newCert(t)
	opts.Environment = links.EnvironmentProduction

	var buf bytes.Buffer
	require.NoError(t, c.Render(ic, opts, &buf))

	info, err := pdfinfo.InspectBytes(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
}

func TestRender_QRFailuresAreTolerated(t *testing.T) {
	src := &fakeQR{}
	c := composer.New(composer.WithQRSource(src))

	data, err := c.RenderBytes(sampleContext(1, model.IssuanceMetadata{}), options())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, 1, src.invoiceCalls)
	assert.Equal(t, 1, src.certificateCalls)
}

func TestRender_QRFlagsDisabled(t *testing.T) {
	src := &fakeQR{}
	c := composer.New(composer.WithQRSource(src))

	opts := options()
	opts.IncludeInvoiceQR = false
	opts.IncludeCertificateQR = false

	_, err := c.RenderBytes(sampleContext(1, model.IssuanceMetadata{}), opts)
	require.NoError(t, err)
	assert.Zero(t, src.invoiceCalls)
	assert.Zero(t, src.certificateCalls)
}

func TestRender_LongTableBreaksPages(t *testing.T) {
	data, err := composer.New().RenderBytes(sampleContext(80, model.IssuanceMetadata{}), options())
	require.NoError(t, err)

	info, err := pdfinfo.InspectBytes(data)
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
	assert.Greater(t, info.PageCount, 1)
}

func TestRender_WriterAndBytesShareLayout(t *testing.T) {
	c := composer.New(composer.WithQRSource(&fakeQR{}))
	ic := sampleContext(2, model.IssuanceMetadata{})

	data, err := c.RenderBytes(ic, options())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Render(ic, options(), &buf))

	a, err := pdfinfo.InspectBytes(data)
	require.NoError(t, err)
	b, err := pdfinfo.InspectBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.PageCount, b.PageCount)
	assert.Equal(t, a.Title, b.Title)
	assert.Equal(t, a.DocumentID, b.DocumentID)
}

func TestRender_ArgumentErrors(t *testing.T) {
	c := composer.New()

	_, err := c.RenderBytes(nil, options())
	assert.ErrorIs(t, err, model.ErrArgument)

	err = c.Render(sampleContext(1, model.IssuanceMetadata{}), options(), nil)
	assert.ErrorIs(t, err, model.ErrArgument)

	opts := options()
	opts.Environment = "staging"
	_, err = c.RenderBytes(sampleContext(1, model.IssuanceMetadata{}), opts)
	assert.ErrorIs(t, err, model.ErrArgument)

	opts = options()
	opts.QRPixelsPerModule = -1
	_, err = c.RenderBytes(sampleContext(1, model.IssuanceMetadata{}), opts)
	assert.ErrorIs(t, err, model.ErrArgument)
}

func TestLinkQRSource(t *testing.T) {
	src := composer.NewLinkQRSource(qr.NewGenerator(), zerolog.Nop())
	ic := sampleContext(1, model.IssuanceMetadata{})
	pngSignature := []byte("\x89PNG\r\n\x1a\n")

	png, ok := src.InvoiceQR(ic, options())
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(png, pngSignature))

	_, ok = src.CertificateQR(ic, options())
	assert.False(t, ok)

	opts := options()
	opts.Certificate = newCert(t)
	png, ok = src.CertificateQR(ic, opts)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(png, pngSignature))

	inv := sampleInvoice(1)
	inv.Seller.Identification.TaxID = "PL526587"
	bad := model.NewInvoiceContext(inv, model.IssuanceMetadata{}, []byte("<Faktura/>"), generatedAt)
	_, ok = src.InvoiceQR(bad, options())
	assert.False(t, ok)
	_, ok = src.CertificateQR(bad, opts)
	assert.False(t, ok)

	// prebuilt links bypass the builder
	prebuilt := options()
	prebuilt.InvoiceLink = "https://qr-test.ksef.mf.gov.pl/invoice/5265877635/26-08-2025/abc"
	prebuilt.CertificateLink = "https://qr-test.ksef.mf.gov.pl/certificate/nip/5265877635/5265877635/2A/abc/sig"
	_, ok = src.InvoiceQR(bad, prebuilt)
	assert.True(t, ok)
	_, ok = src.CertificateQR(bad, prebuilt)
	assert.True(t, ok)
}

func TestRender_UnreadableQRImageIsSkipped(t *testing.T) {
	src := &fakeQR{invoice: []byte("junk"), certificate: []byte("\x89PNG\r\n\x1a\nbroken")}
	c := composer.New(composer.WithQRSource(src))

	data, err := c.RenderBytes(sampleContext(1, model.IssuanceMetadata{}), options())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	info, err := pdfinfo.InspectBytes(data)
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
	assert.Equal(t, 1, src.invoiceCalls)
	assert.Equal(t, 1, src.certificateCalls)
}

func TestRender_RowTallerThanPageContinues(t *testing.T) {
	inv := sampleInvoice(1)
	inv.Body.Lines[0].Description = strings.Repeat("Wdrożenie modułu rozliczeń ", 400)
	ic := model.NewInvoiceContext(inv, model.IssuanceMetadata{}, []byte("<Faktura/>"), generatedAt)

	data, err := composer.New().RenderBytes(ic, options())
	require.NoError(t, err)

	info, err := pdfinfo.InspectBytes(data)
	require.NoError(t, err)
	assert.True(t, info.Valid, info.Error)
	assert.Greater(t, info.PageCount, 2)
}

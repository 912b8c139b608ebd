// Package composer lays out a verifiable invoice document as a PDF.
package composer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/qr"
)

// Page geometry in millimetres
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	margin       = 15.0
	footerSpace  = 15.0
	contentWidth = pageWidth - 2*margin
	contentEnd   = pageHeight - margin - footerSpace

	columnGap  = 6.0
	lineHeight = 5.0
	qrWidth    = 45.0

	fontFamily = "go"
	creator    = "ksef-pdf"
)

type column struct {
	title string
	width float64
	align string
}

var tableColumns = []column{
	{"#", 10, "C"},
	{"Description", 80, "L"},
	{"Qty", 22, "R"},
	{"Unit price", 25, "R"},
	{"Net", 28, "R"},
	{"VAT", 15, "C"},
}

// Composer renders invoice contexts to PDF
type Composer struct {
	qr     QRSource
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Composer
type Option func(*Composer)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

// WithQRSource replaces the QR image source
func WithQRSource(s QRSource) Option {
	return func(c *Composer) {
		c.qr = s
	}
}

// WithClock overrides the time source used for the generated-at line
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		c.now = now
	}
}

// New creates a composer. Without WithQRSource it builds links and QR codes itself.
func New(opts ...Option) *Composer {
	c := &Composer{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.qr == nil {
		c.qr = NewLinkQRSource(qr.NewGenerator(qr.WithLogger(c.logger)), c.logger)
	}
	return c
}

// DocumentID derives a stable identifier from the original document bytes
func DocumentID(raw []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, raw).String()
}

// Render writes the document to w
func (c *Composer) Render(ic *model.InvoiceContext, opts RenderOptions, w io.Writer) error {
	if w == nil {
		return model.NewArgumentError("composer.Render", "writer", "writer is nil")
	}
	pdf, err := c.compose(ic, opts)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// RenderBytes returns the document in memory
func (c *Composer) RenderBytes(ic *model.InvoiceContext, opts RenderOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(ic, opts, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Composer) compose(ic *model.InvoiceContext, opts RenderOptions) (*fpdf.Fpdf, error) {
	if ic == nil || ic.Invoice() == nil {
		return nil, model.NewArgumentError("composer.Render", "context", "invoice context is missing")
	}
	opts, err := opts.normalize(c.now)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	view := buildSections(ic, opts.GeneratedAt)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", gobold.TTF)
	pdf.SetCreationDate(opts.GeneratedAt)
	c.setMetadata(pdf, ic, view, opts)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	l := &layout{pdf: pdf}
	l.newPage()

	l.header(view.Header)
	l.thirdParties(view.ThirdParties)
	l.table(view.Lines)
	l.summary(view.Summary)
	l.bullets("Annotations", view.Annotations)
	l.payment(view.Payment)
	l.pairs("Additional information", view.Additional)
	l.qrRow(c.qrImages(ic, opts))
	l.footer(view.Footer)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}

	c.logger.Debug().
		Str("number", view.Header.Number).
		Int("pages", pdf.PageNo()).
		Dur("duration", time.Since(start)).
		Msg("document composed")

	return pdf, nil
}

func (c *Composer) setMetadata(pdf *fpdf.Fpdf, ic *model.InvoiceContext, view *sections, opts RenderOptions) {
	title := opts.Title
	if title == "" {
		title = view.Header.Title
		if view.Header.Number != "" {
			title += " " + view.Header.Number
		}
	}
	author := opts.Author
	if author == "" {
		author = view.Header.Seller.Name
	}

	pdf.SetTitle(title, true)
	pdf.SetAuthor(author, true)
	pdf.SetSubject("KSeF invoice visualization", true)
	pdf.SetCreator(creator, true)
	pdf.SetKeywords(fmt.Sprintf("KSeF %s document-id:%s", ic.Issuance().Mode, DocumentID(ic.RawBytes())), true)
}

type qrImage struct {
	name string
	png  []byte
}

// qrImages collects whichever QR codes could be produced
func (c *Composer) qrImages(ic *model.InvoiceContext, opts RenderOptions) []qrImage {
	var images []qrImage
	if opts.IncludeInvoiceQR {
		if png, ok := c.qr.InvoiceQR(ic, opts); ok && c.decodable("qr-invoice", png) {
			images = append(images, qrImage{name: "qr-invoice", png: png})
		}
	}
	if opts.IncludeCertificateQR {
		if png, ok := c.qr.CertificateQR(ic, opts); ok && c.decodable("qr-certificate", png) {
			images = append(images, qrImage{name: "qr-certificate", png: png})
		}
	}
	return images
}

// decodable reports whether data is a PNG the document can embed
func (c *Composer) decodable(name string, data []byte) bool {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && format == "png" && cfg.Width > 0 && cfg.Height > 0 {
		return true
	}
	if err == nil {
		err = fmt.Errorf("unexpected %q image of %dx%d", format, cfg.Width, cfg.Height)
	}
	c.logger.Warn().Err(err).Str("image", name).Msg("Skipping unreadable QR image")
	return false
}

// layout draws blocks top to bottom and breaks pages on demand
type layout struct {
	pdf *fpdf.Fpdf
	y   float64
}

func (l *layout) newPage() {
	l.pdf.AddPage()
	l.y = margin
}

// ensure starts a new page when h does not fit; it reports whether it did
func (l *layout) ensure(h float64) bool {
	if l.y+h <= contentEnd {
		return false
	}
	l.newPage()
	return true
}

func (l *layout) font(style string, size float64) {
	l.pdf.SetFont(fontFamily, style, size)
}

// text splits s to fit w and writes it at (x, y), returning the y below it
func (l *layout) text(x, y, w float64, s string) float64 {
	for _, line := range l.pdf.SplitText(s, w) {
		l.pdf.SetXY(x, y)
		l.pdf.CellFormat(w, lineHeight, line, "", 0, "L", false, 0, "")
		y += lineHeight
	}
	return y
}

func (l *layout) heading(title string) {
	l.ensure(2 * lineHeight)
	l.font("B", 11)
	l.pdf.SetXY(margin, l.y)
	l.pdf.CellFormat(contentWidth, lineHeight+1, title, "B", 0, "L", false, 0, "")
	l.y += lineHeight + 3
}

func (l *layout) party(x, y, w float64, p partyView) float64 {
	l.font("B", 9)
	y = l.text(x, y, w, p.Role)
	l.font("B", 10)
	y = l.text(x, y, w, p.Name)
	l.font("", 9)
	for _, s := range []string{p.TaxID, p.PersonID} {
		if s != "" {
			y = l.text(x, y, w, s)
		}
	}
	for _, s := range p.Address {
		y = l.text(x, y, w, s)
	}
	for _, s := range p.Contacts {
		y = l.text(x, y, w, s)
	}
	return y
}

func (l *layout) header(h headerView) {
	half := (contentWidth - columnGap) / 2
	right := margin + half + columnGap

	left := l.party(margin, l.y, half, h.Seller)
	rightEnd := l.party(right, l.y, half, h.Buyer)
	l.y = maxf(left, rightEnd) + 4

	top := l.y
	l.font("B", 14)
	leftEnd := l.text(margin, top, half, h.Title)
	if h.Number != "" {
		l.font("B", 11)
		leftEnd = l.text(margin, leftEnd, half, "No. "+h.Number)
	}

	l.font("", 9)
	y := top
	for _, kv := range []struct{ label, value string }{
		{"Issue date", h.IssueDate},
		{"Place of issue", h.Place},
		{"Sale date", h.SaleDate},
		{"Period", h.Period},
	} {
		if kv.value != "" {
			y = l.text(right, y, half, kv.label+": "+kv.value)
		}
	}
	l.font("B", 9)
	y = l.text(right, y, half, h.Badge)

	l.y = maxf(leftEnd, y) + 6
}

func (l *layout) thirdParties(parties []thirdPartyView) {
	if len(parties) == 0 {
		return
	}
	l.heading("Third parties")
	for _, tp := range parties {
		l.ensure(4 * lineHeight)
		end := l.party(margin, l.y, contentWidth, tp.partyView)
		if tp.Relation != "" {
			l.font("", 9)
			end = l.text(margin, end, contentWidth, tp.Relation)
		}
		l.y = end + 2
	}
	l.y += 2
}

func (l *layout) tableHeader() {
	l.font("B", 9)
	l.pdf.SetFillColor(230, 230, 230)
	x := margin
	for _, c := range tableColumns {
		l.pdf.SetXY(x, l.y)
		l.pdf.CellFormat(c.width, lineHeight+1, c.title, "1", 0, "C", true, 0, "")
		x += c.width
	}
	l.y += lineHeight + 1
}

// cellLine is one wrapped line of the description column; small lines carry item codes
type cellLine struct {
	text  string
	small bool
}

func (c cellLine) height() float64 {
	if c.small {
		return lineHeight - 1
	}
	return lineHeight
}

func rowHeight(lines []cellLine) float64 {
	h := 0.0
	for _, c := range lines {
		h += c.height()
	}
	return maxf(h, lineHeight) + 1
}

// fitting counts the leading lines that fit in avail, never fewer than one
func fitting(lines []cellLine, avail float64) int {
	n, h := 0, 1.0
	for n < len(lines) && h+lines[n].height() <= avail {
		h += lines[n].height()
		n++
	}
	if n == 0 && len(lines) > 0 {
		n = 1
	}
	return n
}

func (l *layout) table(rows []lineView) {
	l.ensure(3 * lineHeight)
	l.tableHeader()

	desc := tableColumns[1].width - 2
	for _, r := range rows {
		var lines []cellLine
		l.font("", 9)
		for _, s := range l.pdf.SplitText(r.Desc, desc) {
			lines = append(lines, cellLine{text: s})
		}
		l.font("", 7)
		for _, code := range r.Codes {
			for _, s := range l.pdf.SplitText(code, desc) {
				lines = append(lines, cellLine{text: s, small: true})
			}
		}

		if l.ensure(rowHeight(lines)) {
			l.tableHeader()
		}

		// rows taller than a page continue on the next one
		cells := []string{r.Row, "", r.Quantity, r.UnitPrice, r.Net, r.VATRate}
		for {
			n := fitting(lines, contentEnd-l.y)
			l.tableRow(cells, lines[:n], desc)
			lines = lines[n:]
			if len(lines) == 0 {
				break
			}
			l.newPage()
			l.tableHeader()
			cells = make([]string, len(tableColumns))
		}
	}
	l.y += 4
}

func (l *layout) tableRow(cells []string, lines []cellLine, desc float64) {
	h := rowHeight(lines)
	x := margin
	for i, c := range tableColumns {
		l.pdf.Rect(x, l.y, c.width, h, "D")
		if i != 1 {
			l.font("", 9)
			l.pdf.SetXY(x, l.y+0.5)
			l.pdf.CellFormat(c.width, lineHeight, cells[i], "", 0, c.align, false, 0, "")
		}
		x += c.width
	}

	y := l.y + 0.5
	textX := margin + tableColumns[0].width + 1
	for _, s := range lines {
		if s.small {
			l.font("", 7)
			l.pdf.SetTextColor(90, 90, 90)
		} else {
			l.font("", 9)
		}
		l.pdf.SetXY(textX, y)
		l.pdf.CellFormat(desc, s.height(), s.text, "", 0, "L", false, 0, "")
		l.pdf.SetTextColor(0, 0, 0)
		y += s.height()
	}
	l.y += h
}

func (l *layout) summary(s summaryView) {
	rows := make([]amountView, 0, len(s.Rates)+4)
	rows = append(rows, s.Rates...)
	rows = append(rows,
		amountView{"Net total", s.Net},
		amountView{"VAT total", s.VAT},
		amountView{"Gross total", s.Gross},
	)
	if s.AmountDue != "" {
		rows = append(rows, amountView{"Amount due", s.AmountDue})
	}

	l.ensure(float64(len(rows)+1) * lineHeight)
	const labelWidth, valueWidth = 60.0, 40.0
	x := margin + contentWidth - labelWidth - valueWidth
	for i, r := range rows {
		style := ""
		if i >= len(s.Rates)+2 {
			style = "B"
		}
		l.font(style, 9)
		l.pdf.SetXY(x, l.y)
		l.pdf.CellFormat(labelWidth, lineHeight, r.Label, "", 0, "R", false, 0, "")
		value := r.Value
		if s.Currency != "" && i >= len(s.Rates) {
			value += " " + s.Currency
		}
		l.pdf.CellFormat(valueWidth, lineHeight, value, "", 0, "R", false, 0, "")
		l.y += lineHeight
	}
	l.y += 4
}

func (l *layout) bullets(title string, items []string) {
	if len(items) == 0 {
		return
	}
	l.heading(title)
	l.font("", 9)
	for _, item := range items {
		l.ensure(lineHeight)
		l.y = l.text(margin+2, l.y, contentWidth-2, "• "+item)
	}
	l.y += 3
}

func (l *layout) payment(p *paymentView) {
	if p == nil {
		return
	}
	rows := []amountView{}
	for _, r := range []amountView{
		{"Due date", p.DueDate},
		{"Payment method", p.Method},
		{"Bank account", p.Account},
		{"Bank", p.BankName},
		{"Status", p.Paid},
	} {
		if r.Value != "" {
			rows = append(rows, r)
		}
	}
	l.pairs("Payment", rows)
}

func (l *layout) pairs(title string, rows []amountView) {
	if len(rows) == 0 {
		return
	}
	l.heading(title)
	const labelWidth = 40.0
	for _, r := range rows {
		l.ensure(lineHeight)
		l.font("B", 9)
		l.pdf.SetXY(margin, l.y)
		l.pdf.CellFormat(labelWidth, lineHeight, r.Label+":", "", 0, "L", false, 0, "")
		l.font("", 9)
		l.y = l.text(margin+labelWidth, l.y, contentWidth-labelWidth, r.Value)
	}
	l.y += 3
}

func (l *layout) qrRow(images []qrImage) {
	if len(images) == 0 || !l.pdf.Ok() {
		return
	}

	type placed struct {
		name string
		h    float64
	}
	var row []placed
	height := 0.0
	for _, img := range images {
		info := l.pdf.RegisterImageOptionsReader(img.name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img.png))
		if err := l.pdf.Error(); err != nil {
			// fpdf rejects some PNG variants the image package accepts
			l.pdf.ClearError()
			continue
		}
		if info == nil || info.Width() == 0 {
			continue
		}
		h := qrWidth * info.Height() / info.Width()
		row = append(row, placed{img.name, h})
		height = maxf(height, h)
	}
	if len(row) == 0 {
		return
	}

	l.ensure(height + lineHeight + 4)
	l.heading("Verification")
	x := margin
	for _, p := range row {
		l.pdf.ImageOptions(p.name, x, l.y, qrWidth, p.h, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		x += qrWidth + columnGap*2
	}
	l.y += height + 4
}

func (l *layout) footer(f footerView) {
	l.font("", 8)
	lines := len(f.Text) + 2
	l.ensure(float64(lines) * (lineHeight - 1))

	l.pdf.SetDrawColor(160, 160, 160)
	l.pdf.Line(margin, l.y, margin+contentWidth, l.y)
	l.pdf.SetDrawColor(0, 0, 0)
	l.y += 2

	for _, t := range f.Text {
		l.y = l.text(margin, l.y, contentWidth, t)
	}
	if f.Registries != "" {
		l.y = l.text(margin, l.y, contentWidth, f.Registries)
	}
	l.pdf.SetTextColor(120, 120, 120)
	l.y = l.text(margin, l.y, contentWidth, f.GeneratedAt)
	l.pdf.SetTextColor(0, 0, 0)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

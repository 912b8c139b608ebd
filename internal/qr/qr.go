// Package qr renders verification links as labelled PNG QR codes.
package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/rezonia/ksef-pdf/internal/model"
)

const (
	// RecommendedPixelsPerModule is the smallest density that scans reliably when printed
	RecommendedPixelsPerModule = 5

	// OfflineLabel marks an invoice QR without a KSeF number
	OfflineLabel = "OFFLINE"
	// CertificateLabel is printed under the certificate QR
	CertificateLabel = "Issuer certificate"

	minBandHeight = 30
	minFontSize   = 10
	labelPadding  = 4
)

var labelFont = mustParseFont(goregular.TTF)

// Generator renders QR codes
type Generator struct {
	logger zerolog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator creates a generator
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate encodes text at error correction level M with a four module quiet
// zone, black on white, and returns PNG bytes
func (g *Generator) Generate(text string, pixelsPerModule int) ([]byte, error) {
	const op = "qr.Generate"
	if text == "" {
		return nil, model.NewArgumentError(op, "text", "text is empty")
	}
	if pixelsPerModule <= 0 {
		return nil, model.NewArgumentError(op, "pixels_per_module", fmt.Sprintf("must be positive, got %d", pixelsPerModule))
	}
	if pixelsPerModule < RecommendedPixelsPerModule {
		g.logger.Warn().
			Int("pixels_per_module", pixelsPerModule).
			Int("recommended", RecommendedPixelsPerModule).
			Msg("QR density below recommended minimum")
	}

	code, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	bitmap := code.Bitmap()

	size := len(bitmap) * pixelsPerModule
	img := imaging.New(size, size, color.White)
	black := image.NewUniform(color.Black)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			r := image.Rect(x*pixelsPerModule, y*pixelsPerModule, (x+1)*pixelsPerModule, (y+1)*pixelsPerModule)
			draw.Draw(img, r, black, image.Point{}, draw.Src)
		}
	}

	return encodePNG(img)
}

// AddLabel adds a white band under the image with text centered in it.
// Empty text returns png unchanged.
func (g *Generator) AddLabel(png []byte, text string) ([]byte, error) {
	if text == "" {
		return png, nil
	}

	src, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, model.NewArgumentError("qr.AddLabel", "png", err.Error())
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	band := int(math.Max(minBandHeight, math.Round(float64(h)*0.2)))
	canvas := imaging.New(w, h+band, color.White)
	canvas = imaging.Paste(canvas, src, image.Pt(0, 0))

	size := math.Max(minFontSize, float64(band)/3)
	face, advance, err := fitFace(text, size, w-2*labelPadding)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare label font: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	textHeight := (m.Ascent + m.Descent).Ceil()
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I((w - advance.Ceil()) / 2),
			Y: fixed.I(h+(band-textHeight)/2) + m.Ascent,
		},
	}
	d.DrawString(text)

	return encodePNG(canvas)
}

// GenerateInvoiceQR renders the invoice link labelled with the KSeF number, or OFFLINE
func (g *Generator) GenerateInvoiceQR(link, ksefNumber string, pixelsPerModule int) ([]byte, error) {
	png, err := g.Generate(link, pixelsPerModule)
	if err != nil {
		return nil, err
	}
	label := ksefNumber
	if label == "" {
		label = OfflineLabel
	}
	return g.AddLabel(png, label)
}

// GenerateCertificateQR renders the certificate link labelled as the issuer certificate
func (g *Generator) GenerateCertificateQR(link string, pixelsPerModule int) ([]byte, error) {
	png, err := g.Generate(link, pixelsPerModule)
	if err != nil {
		return nil, err
	}
	return g.AddLabel(png, CertificateLabel)
}

// fitFace returns a face at size, shrunk until text fits maxWidth
func fitFace(text string, size float64, maxWidth int) (font.Face, fixed.Int26_6, error) {
	for {
		face, err := opentype.NewFace(labelFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, 0, err
		}
		advance := font.MeasureString(face, text)
		if advance.Ceil() <= maxWidth || size <= 4 {
			return face, advance, nil
		}
		face.Close()
		size *= float64(maxWidth) / float64(advance.Ceil())
		size = math.Max(4, math.Floor(size*10)/10)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func mustParseFont(ttf []byte) *opentype.Font {
	f, err := opentype.Parse(ttf)
	if err != nil {
		panic(err)
	}
	return f
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/processor"
	"github.com/rezonia/ksef-pdf/internal/storage"
)

var (
	renderOutput    string
	renderKSeF      string
	renderMode      string
	renderPixels    int
	renderTitle     string
	renderNoInvoice bool
	renderNoCert    bool
	renderTimeout   time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render <invoice.xml>",
	Short: "Render an invoice as PDF with verification QR codes",
	Long: `Validate an FA invoice and render it as a PDF document.

The invoice QR code (KOD I) is always built from the seller NIP, the issue date
and the SHA-256 of the XML. The certificate QR code (KOD II) needs a signing
certificate (--cert) and is added for invoices issued offline.

The output may be a local path or a Cloud Storage object (gs://bucket/object).

Examples:
  ksef-pdf render invoice.xml
  ksef-pdf render invoice.xml -o out/invoice.pdf --cert signer.p12 --cert-password secret
  ksef-pdf render invoice.xml --ksef-number 5265877635-20250826-0100001AF629-AF
  ksef-pdf render invoice.xml -o gs://invoices/2025/08/fa.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output path or gs://bucket/object (default: input name with .pdf)")
	renderCmd.Flags().StringVar(&renderKSeF, "ksef-number", "", "KSeF number assigned to the invoice")
	renderCmd.Flags().StringVar(&renderMode, "mode", "", "Issuance mode (online, offline, offline24, emergency)")
	renderCmd.Flags().IntVar(&renderPixels, "qr-pixels", 0, "QR pixels per module (env: KSEF_QR_PIXELS)")
	renderCmd.Flags().StringVar(&renderTitle, "title", "", "Document title")
	renderCmd.Flags().BoolVar(&renderNoInvoice, "no-invoice-qr", false, "Omit the invoice QR code")
	renderCmd.Flags().BoolVar(&renderNoCert, "no-certificate-qr", false, "Omit the certificate QR code")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", time.Minute, "Processing timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	opts, err := renderOptions()
	if err != nil {
		return err
	}

	output := renderOutput
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
	}
	dest, err := storage.ParseDestination(output)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), renderTimeout)
	defer cancel()

	result := processor.NewPipeline(processor.WithLogger(log)).Process(ctx, data, opts)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if result.Error != nil {
		if result.Outcome != nil {
			for _, e := range result.Outcome.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
		}
		return result.Error
	}

	sink, name, err := storage.Open(ctx, dest, cfg.Storage.CredentialsJSON, log)
	if err != nil {
		return err
	}
	if closer, ok := sink.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	location, err := sink.Write(ctx, name, result.Document, storage.ContentTypePDF)
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %s -> %s\n", input, location)
	if result.Links.Invoice != "" {
		fmt.Printf("  Invoice link:     %s\n", result.Links.Invoice)
	}
	if result.Links.Certificate != "" {
		fmt.Printf("  Certificate link: %s\n", result.Links.Certificate)
	}
	return nil
}

// renderOptions merges configuration, certificate and render flags
func renderOptions() (processor.Options, error) {
	render := cfg.RenderOptions()
	if renderPixels != 0 {
		render.QRPixelsPerModule = renderPixels
	}
	if renderTitle != "" {
		render.Title = renderTitle
	}
	if renderNoInvoice {
		render.IncludeInvoiceQR = false
	}
	if renderNoCert {
		render.IncludeCertificateQR = false
	}

	cert, err := loadCertificate()
	if err != nil {
		return processor.Options{}, err
	}
	render.Certificate = cert

	issuance, err := issuanceFlags(renderKSeF, renderMode)
	if err != nil {
		return processor.Options{}, err
	}
	return processor.Options{Render: render, Issuance: issuance}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

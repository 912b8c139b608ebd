package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/qr"
)

var (
	qrOutput string
	qrPixels int
	qrLabel  string
)

var qrCmd = &cobra.Command{
	Use:   "qr <text>",
	Short: "Encode text as a QR code PNG",
	Long: `Encode a verification link (or any text) as a PNG QR code at error
correction level M, optionally with a caption below it.

Examples:
  ksef-pdf qr https://qr-test.ksef.mf.gov.pl/invoice/... -o invoice.png --label OFFLINE`,
	Args: cobra.ExactArgs(1),
	RunE: runQR,
}

func init() {
	rootCmd.AddCommand(qrCmd)

	qrCmd.Flags().StringVarP(&qrOutput, "output", "o", "qr.png", "Output PNG file")
	qrCmd.Flags().IntVar(&qrPixels, "pixels", qr.RecommendedPixelsPerModule, "Pixels per module")
	qrCmd.Flags().StringVar(&qrLabel, "label", "", "Caption printed below the code")
}

func runQR(cmd *cobra.Command, args []string) error {
	g := qr.NewGenerator(qr.WithLogger(log))

	png, err := g.Generate(args[0], qrPixels)
	if err != nil {
		return err
	}
	png, err = g.AddLabel(png, qrLabel)
	if err != nil {
		return err
	}

	if err := os.WriteFile(qrOutput, png, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", qrOutput, err)
	}
	fmt.Printf("QR code written to %s (%d bytes)\n", qrOutput, len(png))
	return nil
}

package cmd

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
)

var (
	certAlgorithm string
	certCommon    string
	certOrg       string
	certSerial    string
	certValidFor  time.Duration
	certOutCert   string
	certOutKey    string
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Signing certificate utilities",
}

var certGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate for the KSeF test environment",
	Long: `Generate a key pair and a self-signed certificate for signing certificate
links against the test environment. Production links need a certificate issued
by KSeF.

Examples:
  ksef-pdf cert generate --algorithm ec --out-cert signer.pem --out-key signer.key
  ksef-pdf cert generate --algorithm rsa --serial 0A1B2C --common-name "Seller sp. z o.o."`,
	Args: cobra.NoArgs,
	RunE: runCertGenerate,
}

func init() {
	rootCmd.AddCommand(certCmd)
	certCmd.AddCommand(certGenerateCmd)

	certGenerateCmd.Flags().StringVar(&certAlgorithm, "algorithm", "ec", "Key algorithm (ec, rsa)")
	certGenerateCmd.Flags().StringVar(&certCommon, "common-name", "", "Subject common name")
	certGenerateCmd.Flags().StringVar(&certOrg, "organization", "", "Subject organization")
	certGenerateCmd.Flags().StringVar(&certSerial, "serial", "", "Serial number in hex (default: random)")
	certGenerateCmd.Flags().DurationVar(&certValidFor, "valid-for", 365*24*time.Hour, "Validity period")
	certGenerateCmd.Flags().StringVar(&certOutCert, "out-cert", "signer.pem", "Certificate output file")
	certGenerateCmd.Flags().StringVar(&certOutKey, "out-key", "signer.key", "Private key output file")
}

func runCertGenerate(cmd *cobra.Command, args []string) error {
	opts := certstore.SelfSignedOptions{
		CommonName:   certCommon,
		Organization: certOrg,
		ValidFor:     certValidFor,
	}

	switch strings.ToLower(certAlgorithm) {
	case "ec", "ecdsa":
		opts.Algorithm = signature.AlgorithmEC
	case "rsa":
		opts.Algorithm = signature.AlgorithmRSA
	default:
		return fmt.Errorf("unsupported algorithm %q (ec, rsa)", certAlgorithm)
	}

	if certSerial != "" {
		serial, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(certSerial), "0x"), 16)
		if !ok || serial.Sign() <= 0 {
			return fmt.Errorf("invalid serial %q", certSerial)
		}
		opts.Serial = serial
	}

	g, err := certstore.GenerateSelfSigned(opts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(certOutCert, g.CertPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(certOutKey, g.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	fmt.Printf("Certificate: %s\n", certOutCert)
	fmt.Printf("Private key: %s\n", certOutKey)
	fmt.Printf("Serial:      %s\n", g.Certificate.SerialNumber())
	fmt.Printf("Algorithm:   %s\n", g.Certificate.Algorithm())
	return nil
}

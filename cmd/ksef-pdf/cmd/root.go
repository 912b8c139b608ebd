package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/config"
	"github.com/rezonia/ksef-pdf/internal/logger"
	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/signature"
)

var (
	version = "1.0.0"

	// Global flags
	cfgFile     string
	verbose     bool
	environment string
	logLevel    string
	certFile    string
	keyFile     string
	certPass    string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ksef-pdf",
	Short: "Render KSeF FA invoices as verifiable PDF documents",
	Long: `ksef-pdf validates KSeF FA(2) and FA(3) invoice XML, builds the KSeF
verification links and renders a PDF with the verification QR codes.

Examples:
  # Validate invoices
  ksef-pdf validate invoices/ -f table

  # Render an offline invoice with both QR codes
  ksef-pdf render invoice.xml --cert signer.pem --key signer.key -o invoice.pdf

  # Render an invoice accepted by KSeF and upload it
  ksef-pdf render invoice.xml --ksef-number 5265877635-20250826-0100001AF629-AF -o gs://invoices/fa.pdf

  # Check a KSeF number
  ksef-pdf ksef 5265877635-20250826-0100001AF629-AF`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env: KSEF_PDF_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "KSeF environment: test or production (env: KSEF_ENV)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert", "", "Signing certificate, PEM or .p12/.pfx (env: KSEF_CERT_FILE)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "Private key PEM when not bundled (env: KSEF_CERT_KEY_FILE)")
	rootCmd.PersistentFlags().StringVar(&certPass, "cert-password", "", "PKCS#12 password (env: KSEF_CERT_PASSWORD)")
}

// loadConfig reads configuration, then lets flags override it
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if environment != "" {
		c.Environment = environment
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if verbose {
		c.Log.Level = "debug"
	}
	if certFile != "" {
		c.Certificate.File = certFile
		c.Certificate.KeyFile = keyFile
	}
	if certPass != "" {
		c.Certificate.Password = certPass
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if err := logger.Setup(c.Log); err != nil {
		return err
	}
	cfg = c
	log = logger.WithComponent(cmd.Name())
	return nil
}

// loadCertificate returns the configured signing certificate, or nil
func loadCertificate() (*signature.Certificate, error) {
	cert, err := cfg.LoadCertificate()
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if cert != nil {
		log.Debug().Str("serial", cert.SerialNumber()).Str("algorithm", string(cert.Algorithm())).Msg("certificate loaded")
	}
	return cert, nil
}

// issuanceFlags maps --ksef-number and --mode to issuance metadata; nil keeps text scan detection
func issuanceFlags(number, mode string) (*model.IssuanceMetadata, error) {
	if number == "" && mode == "" {
		return nil, nil
	}
	meta := &model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: number}
	if mode != "" {
		m, ok := model.ParseIssuanceMode(mode)
		if !ok {
			return nil, fmt.Errorf("unknown issuance mode %q (online, offline, offline24, emergency)", mode)
		}
		meta.Mode = m
	}
	return meta, nil
}

// openOutput returns stdout for an empty path or "-", else a new file
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/server"
	"github.com/rezonia/ksef-pdf/internal/signature/trust"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for validating and rendering invoices.

The API provides endpoints for:
  - POST /api/v1/validate      - Validate FA XML
  - POST /api/v1/render        - Render FA XML as PDF
  - POST /api/v1/links         - Build verification links
  - POST /api/v1/verify        - Verify a certificate link
  - POST /api/v1/info          - Inspect an XML or PDF file
  - GET  /api/v1/ksef/:number  - Check a KSeF number
  - GET  /health               - Health check

Query parameters for validate, render and links: environment, qr_pixels,
ksef_number, mode; render also accepts title.

Examples:
  # Start server on default port
  ksef-pdf serve

  # Start with a signing certificate in debug mode
  ksef-pdf serve --address :9090 --cert signer.p12 --cert-password secret --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (env: SERVER_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cert, err := loadCertificate()
	if err != nil {
		return err
	}
	store, err := cfg.TrustStore(trust.WithLogger(log))
	if err != nil {
		return err
	}

	config := &server.Config{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.Server.Debug || serverDebug,
		Render:         cfg.RenderOptions(),
		Certificate:    cert,
		Logger:         log,
	}
	if store != nil {
		config.Trust = links.ChainChecker(store)
	}
	if serverAddr != "" {
		config.Address = serverAddr
	}
	if readTimeout > 0 {
		config.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		config.WriteTimeout = writeTimeout
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("environment", cfg.Environment).
		Bool("certificate", cert != nil).
		Msg("starting server")
	return server.NewServer(config).Run(ctx)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/processor"
)

var (
	linkKSeF string
	linkMode string
	linkJSON bool
)

var linkCmd = &cobra.Command{
	Use:   "link <invoice.xml>",
	Short: "Print the verification links of an invoice",
	Long: `Build the KSeF verification links without rendering a document.

The invoice link is printed for every valid invoice. The certificate link is
printed when a signing certificate is configured.

Examples:
  ksef-pdf link invoice.xml
  ksef-pdf link invoice.xml --cert signer.pem --key signer.key --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)

	linkCmd.Flags().StringVar(&linkKSeF, "ksef-number", "", "KSeF number assigned to the invoice")
	linkCmd.Flags().StringVar(&linkMode, "mode", "", "Issuance mode (online, offline, offline24, emergency)")
	linkCmd.Flags().BoolVar(&linkJSON, "json", false, "Print JSON")
}

func runLink(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cert, err := loadCertificate()
	if err != nil {
		return err
	}
	issuance, err := issuanceFlags(linkKSeF, linkMode)
	if err != nil {
		return err
	}

	render := cfg.RenderOptions()
	render.Certificate = cert
	result := processor.NewPipeline(processor.WithLogger(log)).Process(commandContext(cmd), data, processor.Options{
		Render:     render,
		Issuance:   issuance,
		SkipRender: true,
	})
	if result.Error != nil {
		return result.Error
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if linkJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Links)
	}

	fmt.Println(result.Links.Invoice)
	if result.Links.Certificate != "" {
		fmt.Println(result.Links.Certificate)
	}
	return nil
}

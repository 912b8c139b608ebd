package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/links"
	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
	"github.com/rezonia/ksef-pdf/internal/signature/trust"
)

var (
	verifyCertFile string
	verifyDocument string
	verifyCAFile   string
	verifySoftFail bool
	verifyJSON     bool
	verifyTimeout  time.Duration
)

var verifyCmd = &cobra.Command{
	Use:   "verify <certificate-link>",
	Short: "Verify a certificate verification link",
	Long: `Verify the signature of a KSeF certificate link (KOD II).

Verifies:
  - Link structure and signature (RSA-PSS or ECDSA P-256)
  - Certificate serial against the link
  - Document hash, when --document is given
  - Certificate chain and OCSP revocation, when --ca-file is given

Examples:
  ksef-pdf verify "https://qr-test.ksef.mf.gov.pl/certificate/nip/..." --certificate signer.pem
  ksef-pdf verify "$LINK" --certificate signer.pem --document invoice.xml --ca-file mf-ca.pem`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyCertFile, "certificate", "", "Issuing certificate (PEM); defaults to --cert")
	verifyCmd.Flags().StringVar(&verifyDocument, "document", "", "Invoice XML the link was built for")
	verifyCmd.Flags().StringVar(&verifyCAFile, "ca-file", "", "CA certificates (PEM) for chain and OCSP checks (env: KSEF_CA_FILE)")
	verifyCmd.Flags().BoolVar(&verifySoftFail, "soft-fail", false, "Treat OCSP failures as warnings")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print JSON")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 30*time.Second, "Verification timeout")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cert, err := verifyCertificate()
	if err != nil {
		return err
	}

	var raw []byte
	if verifyDocument != "" {
		raw, err = os.ReadFile(verifyDocument)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
	}

	var opts []links.VerifierOption
	store, err := verifyTrustStore()
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, links.WithTrust(store))
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), verifyTimeout)
	defer cancel()

	result := links.NewVerifier(opts...).Verify(ctx, args[0], cert.Leaf(), raw)

	if verifyJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		printVerification(result)
	}

	if !result.Valid {
		return fmt.Errorf("certificate link is not valid")
	}
	return nil
}

func verifyCertificate() (*signature.Certificate, error) {
	if verifyCertFile == "" {
		cert, err := loadCertificate()
		if err != nil {
			return nil, err
		}
		if cert == nil {
			return nil, fmt.Errorf("no certificate given (--certificate or --cert)")
		}
		return cert, nil
	}
	data, err := os.ReadFile(verifyCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	return certstore.LoadPEM(data, nil)
}

func verifyTrustStore() (*trust.TrustStore, error) {
	if verifyCAFile != "" {
		cfg.Certificate.CAFile = verifyCAFile
	}
	if verifySoftFail {
		cfg.Certificate.SoftFail = true
	}
	return cfg.TrustStore(trust.WithLogger(log))
}

func printVerification(r *signature.VerificationResult) {
	status := "VALID"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Printf("Certificate link: %s\n", status)
	fmt.Printf("  Well formed:     %t\n", r.LinkWellFormed)
	fmt.Printf("  Signature valid: %t\n", r.SignatureValid)
	fmt.Printf("  Serial matches:  %t\n", r.SerialMatches)
	if verifyDocument != "" {
		fmt.Printf("  Hash matches:    %t\n", r.HashMatches)
	}
	if verifyCAFile != "" || cfg.Certificate.CAFile != "" {
		fmt.Printf("  Chain valid:     %t\n", r.CertChainValid)
		fmt.Printf("  Not revoked:     %t\n", r.NotRevoked)
	}
	if r.Algorithm != "" {
		fmt.Printf("  Algorithm:       %s\n", r.Algorithm)
	}
	if r.Signer != nil {
		fmt.Printf("  Signer:          %s (serial %s, issuer %s)\n", r.Signer.Name, r.Signer.SerialNumber, r.Signer.Issuer)
		fmt.Printf("  Valid:           %s to %s\n", r.Signer.ValidFrom.Format("2006-01-02"), r.Signer.ValidTo.Format("2006-01-02"))
	}
	for _, e := range r.Errors {
		fmt.Printf("  ✗ %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}
}

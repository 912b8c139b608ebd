package certstore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/rezonia/ksef-pdf/internal/signature"
)

// SelfSignedOptions describes a throwaway signing certificate for the KSeF test environment
type SelfSignedOptions struct {
	CommonName   string
	Organization string
	Algorithm    signature.Algorithm
	RSABits      int
	Serial       *big.Int
	NotBefore    time.Time
	ValidFor     time.Duration
}

// Generated is a new certificate with its PEM encodings
type Generated struct {
	Certificate *signature.Certificate
	CertPEM     []byte
	KeyPEM      []byte
}

// GenerateSelfSigned creates a key pair and a self-signed certificate
func GenerateSelfSigned(opts SelfSignedOptions) (*Generated, error) {
	if opts.CommonName == "" {
		opts.CommonName = "KSeF test signer"
	}
	if opts.RSABits == 0 {
		opts.RSABits = 2048
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.ValidFor == 0 {
		opts.ValidFor = 365 * 24 * time.Hour
	}
	if opts.Serial == nil {
		serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial: %w", err)
		}
		opts.Serial = serial.Add(serial, big.NewInt(1))
	}

	var (
		key crypto.Signer
		err error
	)
	switch opts.Algorithm {
	case signature.AlgorithmRSA:
		key, err = rsa.GenerateKey(rand.Reader, opts.RSABits)
	case signature.AlgorithmEC, "":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, fmt.Errorf("cannot generate %s key", opts.Algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	subject := pkix.Name{CommonName: opts.CommonName}
	if opts.Organization != "" {
		subject.Organization = []string{opts.Organization}
	}
	template := &x509.Certificate{
		SerialNumber:          opts.Serial,
		Subject:               subject,
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotBefore.Add(opts.ValidFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	cert, err := signature.NewCertificate(leaf, key)
	if err != nil {
		return nil, err
	}
	return &Generated{
		Certificate: cert,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

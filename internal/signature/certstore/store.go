// Package certstore loads signing certificates from local files.
package certstore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/signature"
)

// LoadPEM builds a certificate handle from PEM data. keyPEM may be nil for a
// public-only handle, or may be the same bundle as certPEM.
func LoadPEM(certPEM, keyPEM []byte) (*signature.Certificate, error) {
	const op = "certstore.LoadPEM"

	leaf, err := firstCertificate(certPEM)
	if err != nil {
		return nil, model.NewArgumentError(op, "certificate", err.Error())
	}

	var signer crypto.Signer
	if len(keyPEM) > 0 {
		signer, err = parsePrivateKey(keyPEM)
		if err != nil {
			return nil, model.NewArgumentError(op, "key", err.Error())
		}
	}
	return signature.NewCertificate(leaf, signer)
}

// LoadPKCS12 builds a certificate handle from a .p12/.pfx bundle
func LoadPKCS12(data []byte, password string) (*signature.Certificate, error) {
	key, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PKCS#12: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, model.NewArgumentError("certstore.LoadPKCS12", "key", fmt.Sprintf("unsupported key type %T", key))
	}
	return signature.NewCertificate(leaf, signer)
}

// LoadFiles loads a certificate from disk. PKCS#12 is chosen by the .p12 or
// .pfx extension; otherwise certPath is PEM and keyPath, when empty, defaults
// to the certificate file itself.
func LoadFiles(certPath, keyPath, password string) (*signature.Certificate, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		return LoadPKCS12(data, password)
	}

	keyData := data
	if keyPath != "" {
		keyData, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
	}
	if !hasPrivateKeyBlock(keyData) {
		keyData = nil
	}
	return LoadPEM(data, keyData)
}

func firstCertificate(data []byte) (*x509.Certificate, error) {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no certificate found in PEM data")
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			return cert, nil
		}
		data = rest
	}
}

func hasPrivateKeyBlock(data []byte) bool {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return false
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return true
		}
		data = rest
	}
}

func parsePrivateKey(data []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no private key found in PEM data")
		}
		data = rest

		switch block.Type {
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, fmt.Errorf("unsupported key type %T", key)
			}
			return signer, nil
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse PKCS#1 key: %w", err)
			}
			return key, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse EC key: %w", err)
			}
			return key, nil
		}
	}
}

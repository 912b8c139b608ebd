package certstore_test

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/signature"
	"github.com/rezonia/ksef-pdf/internal/signature/certstore"
)

func generate(t *testing.T, alg signature.Algorithm) *certstore.Generated {
	t.Helper()
	g, err := certstore.GenerateSelfSigned(certstore.SelfSignedOptions{
		CommonName:   "Zakład Testowy",
		Organization: "Test Sp. z o.o.",
		Algorithm:    alg,
		Serial:       big.NewInt(0x0A1B2C),
	})
	require.NoError(t, err)
	return g
}

func TestGenerateSelfSigned(t *testing.T) {
	for _, alg := range []signature.Algorithm{signature.AlgorithmEC, signature.AlgorithmRSA} {
		t.Run(string(alg), func(t *testing.T) {
			g := generate(t, alg)
			assert.Equal(t, alg, g.Certificate.Algorithm())
			assert.Equal(t, "0A1B2C", g.Certificate.SerialNumber())
			assert.True(t, g.Certificate.HasPrivateKey())
			assert.Equal(t, "Zakład Testowy", g.Certificate.Leaf().Subject.CommonName)
		})
	}

	_, err := certstore.GenerateSelfSigned(certstore.SelfSignedOptions{Algorithm: signature.AlgorithmUnknown})
	assert.Error(t, err)
}

func TestLoadPEM(t *testing.T) {
	g := generate(t, signature.AlgorithmEC)

	cert, err := certstore.LoadPEM(g.CertPEM, g.KeyPEM)
	require.NoError(t, err)
	assert.True(t, cert.HasPrivateKey())
	assert.Equal(t, "0A1B2C", cert.SerialNumber())

	sig, err := signature.Sign(cert, []byte("payload"))
	require.NoError(t, err)
	assert.NoError(t, signature.VerifyECDSA(g.Certificate.Leaf().PublicKey.(*ecdsa.PublicKey), []byte("payload"), sig))
}

func TestLoadPEM_PublicOnly(t *testing.T) {
	g := generate(t, signature.AlgorithmRSA)

	cert, err := certstore.LoadPEM(g.CertPEM, nil)
	require.NoError(t, err)
	assert.False(t, cert.HasPrivateKey())
	assert.Equal(t, signature.AlgorithmRSA, cert.Algorithm())
}

func TestLoadPEM_Errors(t *testing.T) {
	g := generate(t, signature.AlgorithmEC)
	other := generate(t, signature.AlgorithmEC)

	_, err := certstore.LoadPEM([]byte("not pem"), nil)
	assert.ErrorIs(t, err, model.ErrArgument)

	_, err = certstore.LoadPEM(g.CertPEM, []byte("not pem"))
	assert.ErrorIs(t, err, model.ErrArgument)

	_, err = certstore.LoadPEM(g.CertPEM, other.KeyPEM)
	assert.Error(t, err, "key must belong to the certificate")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	g := generate(t, signature.AlgorithmEC)

	certPath := filepath.Join(dir, "signer.crt")
	keyPath := filepath.Join(dir, "signer.key")
	bundlePath := filepath.Join(dir, "bundle.pem")
	require.NoError(t, os.WriteFile(certPath, g.CertPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, g.KeyPEM, 0o600))
	require.NoError(t, os.WriteFile(bundlePath, append(append([]byte{}, g.CertPEM...), g.KeyPEM...), 0o600))

	cert, err := certstore.LoadFiles(certPath, keyPath, "")
	require.NoError(t, err)
	assert.True(t, cert.HasPrivateKey())

	cert, err = certstore.LoadFiles(bundlePath, "", "")
	require.NoError(t, err)
	assert.True(t, cert.HasPrivateKey())

	cert, err = certstore.LoadFiles(certPath, "", "")
	require.NoError(t, err)
	assert.False(t, cert.HasPrivateKey())

	_, err = certstore.LoadFiles(filepath.Join(dir, "missing.pem"), "", "")
	assert.Error(t, err)
}

func TestLoadPKCS12_Invalid(t *testing.T) {
	_, err := certstore.LoadPKCS12([]byte("not a pfx"), "secret")
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "signer.p12")
	require.NoError(t, os.WriteFile(path, []byte{0x30, 0x00}, 0o600))
	_, err = certstore.LoadFiles(path, "", "secret")
	assert.Error(t, err)
}

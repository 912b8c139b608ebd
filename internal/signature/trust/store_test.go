package trust

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

func TestNewTrustStore_FromFile(t *testing.T) {
	root, _ := createTestCA(t, "KSeF Test CA")
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, certToPEM(root), 0o600); err != nil {
		t.Fatalf("write CA file: %v", err)
	}

	store, err := NewTrustStore(path, WithSoftFail(), WithOCSPTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewTrustStore failed: %v", err)
	}
	if len(store.RootCerts()) != 1 {
		t.Errorf("root count: got %d, want 1", len(store.RootCerts()))
	}
	if !store.IsSoftFail() {
		t.Error("softFail should be true after WithSoftFail()")
	}
	if store.ocspTimeout != 5*time.Second {
		t.Errorf("ocspTimeout: got %v, want 5s", store.ocspTimeout)
	}
}

func TestNewTrustStore_MissingFile(t *testing.T) {
	if _, err := NewTrustStore(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing CA file")
	}
}

func TestNewTrustStore_NoCertificates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewTrustStore(path); err == nil {
		t.Error("expected error for file without certificates")
	}
}

func TestNewEmptyTrustStore(t *testing.T) {
	store := NewEmptyTrustStore()

	if store.Roots() == nil {
		t.Error("roots should not be nil")
	}
	if store.cache == nil {
		t.Error("cache should not be nil")
	}
	if store.IsSoftFail() {
		t.Error("softFail should be false by default")
	}
}

func TestTrustStore_AddCertificatesFromPEM(t *testing.T) {
	store := NewEmptyTrustStore()

	cert, _ := createTestCA(t, "Test CA")
	if err := store.AddCertificatesFromPEM(certToPEM(cert)); err != nil {
		t.Fatalf("AddCertificatesFromPEM failed: %v", err)
	}
	if len(store.RootCerts()) != 1 {
		t.Errorf("root count: got %d, want 1", len(store.RootCerts()))
	}
}

func TestTrustStore_AddCertificatesFromPEM_Invalid(t *testing.T) {
	store := NewEmptyTrustStore()

	if err := store.AddCertificatesFromPEM([]byte("not a certificate")); err == nil {
		t.Error("expected error for invalid PEM data")
	}
}

func TestTrustStore_VerifyChain(t *testing.T) {
	root, rootKey := createTestCA(t, "Test Root CA")
	leaf, _ := createLeaf(t, root, rootKey, "")

	store := NewEmptyTrustStore()
	store.AddCertificate(root)

	chain, err := store.VerifyChain(leaf, nil)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("chain length: got %d, want 2", len(chain))
	}
}

func TestTrustStore_VerifyChain_Expired(t *testing.T) {
	root, rootKey := createTestCA(t, "Test Root CA")
	leaf, _ := createLeaf(t, root, rootKey, "")

	store := NewEmptyTrustStore(WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) }))
	store.AddCertificate(root)

	if _, err := store.VerifyChain(leaf, nil); err == nil {
		t.Error("expected error for expired certificate")
	}
}

func TestTrustStore_VerifyChain_Untrusted(t *testing.T) {
	root, rootKey := createTestCA(t, "Untrusted Root")
	leaf, _ := createLeaf(t, root, rootKey, "")

	store := NewEmptyTrustStore()

	if _, err := store.VerifyChain(leaf, []*x509.Certificate{root}); err == nil {
		t.Error("expected error for untrusted root")
	}
}

func TestTrustStore_VerifyChain_NilCert(t *testing.T) {
	store := NewEmptyTrustStore()

	if _, err := store.VerifyChain(nil, nil); err == nil {
		t.Error("expected error for nil certificate")
	}
}

func TestTrustStore_CheckRevocation_NoOCSPServer(t *testing.T) {
	root, rootKey := createTestCA(t, "Test Root CA")
	leaf, _ := createLeaf(t, root, rootKey, "")

	ok, err := NewEmptyTrustStore().CheckRevocation(context.Background(), leaf, root)
	if err != nil {
		t.Fatalf("CheckRevocation failed: %v", err)
	}
	if !ok {
		t.Error("certificate without OCSP URL should count as not revoked")
	}
}

func TestTrustStore_CheckRevocation_OCSP(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		notRevoked bool
	}{
		{"good", ocsp.Good, true},
		{"revoked", ocsp.Revoked, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, rootKey := createTestCA(t, "Test Root CA")
			var leaf *x509.Certificate

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.ReadAll(r.Body); err != nil {
					t.Errorf("read request: %v", err)
				}
				resp, err := ocsp.CreateResponse(root, root, ocsp.Response{
					Status:       tt.status,
					SerialNumber: leaf.SerialNumber,
					ThisUpdate:   time.Now().Add(-time.Minute),
					NextUpdate:   time.Now().Add(time.Hour),
					RevokedAt:    time.Now().Add(-time.Minute),
				}, rootKey)
				if err != nil {
					t.Errorf("create OCSP response: %v", err)
				}
				w.Header().Set("Content-Type", "application/ocsp-response")
				_, _ = w.Write(resp)
			}))
			defer srv.Close()

			leaf, _ = createLeaf(t, root, rootKey, srv.URL)
			store := NewEmptyTrustStore(WithHTTPClient(srv.Client()))

			notRevoked, err := store.CheckRevocation(context.Background(), leaf, root)
			if err != nil {
				t.Fatalf("CheckRevocation failed: %v", err)
			}
			if notRevoked != tt.notRevoked {
				t.Errorf("notRevoked: got %v, want %v", notRevoked, tt.notRevoked)
			}
			if store.cache.Len() != 1 {
				t.Errorf("cache size: got %d, want 1", store.cache.Len())
			}

			// a second check is answered from the cache
			srv.Close()
			again, err := store.CheckRevocation(context.Background(), leaf, root)
			if err != nil || again != tt.notRevoked {
				t.Errorf("cached check: got %v, %v", again, err)
			}
		})
	}
}

func TestParseRoots(t *testing.T) {
	a, _ := createTestCA(t, "CA A")
	b, _ := createTestCA(t, "CA B")
	data := append(certToPEM(a), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}})...)
	data = append(data, certToPEM(b)...)

	certs, err := ParseRoots(data)
	if err != nil {
		t.Fatalf("ParseRoots failed: %v", err)
	}
	if len(certs) != 2 || certs[1].Subject.CommonName != "CA B" {
		t.Errorf("unexpected roots: %d", len(certs))
	}

	if _, err := ParseRoots(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2}})); err == nil {
		t.Error("expected error for corrupt certificate")
	}
}

func TestTrustStore_CheckRevocation_SoftFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	root, rootKey := createTestCA(t, "Test Root CA")
	leaf, _ := createLeaf(t, root, rootKey, srv.URL)

	notRevoked, err := NewEmptyTrustStore(WithHTTPClient(srv.Client())).CheckRevocation(context.Background(), leaf, root)
	if err == nil || notRevoked {
		t.Errorf("hard fail: got notRevoked=%v err=%v", notRevoked, err)
	}

	notRevoked, err = NewEmptyTrustStore(WithSoftFail(), WithHTTPClient(srv.Client())).CheckRevocation(context.Background(), leaf, root)
	if err == nil || !notRevoked {
		t.Errorf("soft fail: got notRevoked=%v err=%v", notRevoked, err)
	}
}

// Helper functions

func createTestCA(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: cn,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}

	return signCert(t, template, template, &key.PublicKey, key), key
}

func createLeaf(t *testing.T, issuer *x509.Certificate, issuerKey crypto.Signer, ocspURL string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "Seller signing certificate",
			SerialNumber: "VATPL-5265877635",
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	if ocspURL != "" {
		template.OCSPServer = []string{ocspURL}
	}

	return signCert(t, template, issuer, &key.PublicKey, issuerKey), key
}

func signCert(t *testing.T, template, parent *x509.Certificate, pub any, signer crypto.Signer) *x509.Certificate {
	t.Helper()

	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return cert
}

func certToPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

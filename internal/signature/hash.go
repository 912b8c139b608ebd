package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SHA256 returns the SHA-256 digest of data
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256Text returns the SHA-256 digest of the UTF-8 bytes of s
func SHA256Text(s string) []byte {
	return SHA256([]byte(s))
}

// SHA256Base64URL hashes data and encodes the digest for URL embedding
func SHA256Base64URL(data []byte) string {
	return EncodeBase64URL(SHA256(data))
}

// EncodeBase64URL encodes data as URL-safe Base64 without padding
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL reverses EncodeBase64URL. Trailing padding is tolerated.
func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, MalformedEncoding("base64url", err)
	}
	return b, nil
}

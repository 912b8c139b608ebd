package signature

import (
	"fmt"
	"strings"
)

// Code classifies a failed certificate link check
type Code string

const (
	CodeBadSignature       Code = "BAD_SIGNATURE"
	CodeMalformedSignature Code = "MALFORMED_SIGNATURE"
	CodeMalformedEncoding  Code = "MALFORMED_ENCODING"
	CodeUnsupportedKey     Code = "UNSUPPORTED_KEY"
	CodeCertExpired        Code = "CERT_EXPIRED"
	CodeCertNotYetValid    Code = "CERT_NOT_YET_VALID"
	CodeCertRevoked        Code = "CERT_REVOKED"
	CodeChainInvalid       Code = "CHAIN_INVALID"
	CodeUntrustedRoot      Code = "UNTRUSTED_ROOT"
	CodeOCSPUnavailable    Code = "OCSP_UNAVAILABLE"
	CodeSerialMismatch     Code = "SERIAL_MISMATCH"
	CodeHashMismatch       Code = "HASH_MISMATCH"
)

// CheckError is one failed check on a certificate link or its signing certificate
type CheckError struct {
	Code    Code
	Subject string
	Message string
	Cause   error
}

func (e *CheckError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Subject != "" {
		b.WriteString(e.Subject)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

func (e *CheckError) Unwrap() error {
	return e.Cause
}

// Is matches any CheckError carrying the same code
func (e *CheckError) Is(target error) bool {
	t, ok := target.(*CheckError)
	return ok && t.Code == e.Code
}

func checkError(code Code, subject, message string, cause error) *CheckError {
	return &CheckError{Code: code, Subject: subject, Message: message, Cause: cause}
}

// BadSignature reports a signature that does not verify under the certificate key
func BadSignature(cause error) *CheckError {
	return checkError(CodeBadSignature, "signature", "signature does not verify", cause)
}

// MalformedSignature reports signature bytes of the wrong shape
func MalformedSignature(msg string) *CheckError {
	return checkError(CodeMalformedSignature, "signature", msg, nil)
}

// MalformedEncoding reports a link segment that is not Base64URL
func MalformedEncoding(segment string, cause error) *CheckError {
	return checkError(CodeMalformedEncoding, segment, "invalid Base64URL input", cause)
}

// UnsupportedKey reports a public key no verifier handles
func UnsupportedKey(kind string) *CheckError {
	return checkError(CodeUnsupportedKey, "key", "unsupported public key: "+kind, nil)
}

// CertExpired reports a signing certificate past its NotAfter
func CertExpired(name string) *CheckError {
	return checkError(CodeCertExpired, "certificate", "certificate expired: "+name, nil)
}

// CertNotYetValid reports a signing certificate before its NotBefore
func CertNotYetValid(name string) *CheckError {
	return checkError(CodeCertNotYetValid, "certificate", "certificate not yet valid: "+name, nil)
}

// CertRevoked reports an OCSP revoked answer
func CertRevoked(name string) *CheckError {
	return checkError(CodeCertRevoked, "certificate", "certificate revoked: "+name, nil)
}

// ChainInvalid reports a certificate that does not chain to a configured root
func ChainInvalid(cause error) *CheckError {
	return checkError(CodeChainInvalid, "chain", "certificate chain validation failed", cause)
}

// UntrustedRoot reports an issuer missing from the trust store
func UntrustedRoot(issuer string) *CheckError {
	return checkError(CodeUntrustedRoot, "chain", "root CA not trusted: "+issuer, nil)
}

// OCSPUnavailable reports that no OCSP responder gave an answer
func OCSPUnavailable(cause error) *CheckError {
	return checkError(CodeOCSPUnavailable, "ocsp", "OCSP check unavailable", cause)
}

// SerialMismatch reports a link naming a different certificate
func SerialMismatch(want, got string) *CheckError {
	return checkError(CodeSerialMismatch, "certificate",
		fmt.Sprintf("link serial %s does not match certificate serial %s", got, want), nil)
}

// HashMismatch reports a link hash that differs from the document hash
func HashMismatch() *CheckError {
	return checkError(CodeHashMismatch, "hash", "document hash does not match link", nil)
}

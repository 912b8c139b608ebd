// Package ksef validates and dissects KSeF reference numbers.
//
// A KSeF number has the shape NNNNNNNNNN-YYYYMMDD-HHHHHHHHHHHH-CC: the seller NIP,
// the acceptance date, twelve hex digits assigned by the system and a CRC-8 checksum
// (polynomial 0x07, init 0x00, no final XOR) over the first 32 characters.
package ksef

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// Length is the exact length of a KSeF number
	Length = 35

	// checksumOffset is where the two checksum characters start
	checksumOffset = 33
	// dataLength is the number of characters covered by the checksum
	dataLength = 32

	dateLayout = "20060102"
)

var numberPattern = regexp.MustCompile(`^\d{10}-\d{8}-[0-9A-F]{12}-[0-9A-F]{2}$`)

// Reason explains why a number was rejected
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonEmpty    Reason = "empty"
	ReasonLength   Reason = "length"
	ReasonFormat   Reason = "format"
	ReasonChecksum Reason = "checksum"
)

// Result is the outcome of Validate
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// Message returns a human readable description of the result
func (r Result) Message() string {
	switch r.Reason {
	case ReasonNone:
		return "KSeF number is valid"
	case ReasonEmpty:
		return "KSeF number is empty"
	case ReasonLength:
		return fmt.Sprintf("KSeF number must be exactly %d characters", Length)
	case ReasonFormat:
		return "KSeF number does not match NNNNNNNNNN-YYYYMMDD-HHHHHHHHHHHH-HH"
	case ReasonChecksum:
		return "KSeF number checksum mismatch"
	default:
		return string(r.Reason)
	}
}

// Validate checks a KSeF number: blank, length, pattern, then checksum
func Validate(number string) Result {
	if strings.TrimSpace(number) == "" {
		return Result{Reason: ReasonEmpty}
	}
	if utf8.RuneCountInString(number) != Length {
		return Result{Reason: ReasonLength}
	}
	if !numberPattern.MatchString(number) {
		return Result{Reason: ReasonFormat}
	}
	if Checksum(number[:dataLength]) != number[checksumOffset:] {
		return Result{Reason: ReasonChecksum}
	}
	return Result{Valid: true}
}

// IsValid reports whether number is a well-formed KSeF number with a matching checksum
func IsValid(number string) bool {
	return Validate(number).Valid
}

// Checksum returns the two-digit uppercase hex CRC-8 of data
func Checksum(data string) string {
	return fmt.Sprintf("%02X", CRC8([]byte(data)))
}

// CRC8 computes CRC-8 with polynomial 0x07, initial value 0x00, MSB first, no final XOR
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Generate builds a KSeF number with a correct checksum. suffix must be twelve
// uppercase hex digits.
func Generate(nip string, date time.Time, suffix string) (string, error) {
	data := fmt.Sprintf("%s-%s-%s", nip, date.Format(dateLayout), strings.ToUpper(suffix))
	number := data + "-" + Checksum(data)
	if r := Validate(number); !r.Valid {
		return "", fmt.Errorf("cannot generate KSeF number: %s", r.Message())
	}
	return number, nil
}

// shaped reports whether s has the fixed-offset layout the extractors rely on
func shaped(s string) bool {
	return len(s) == Length && s[10] == '-' && s[19] == '-' && s[32] == '-'
}

// ExtractNIP returns the seller NIP embedded in the number
func ExtractNIP(number string) (string, bool) {
	if !shaped(number) {
		return "", false
	}
	return number[:10], true
}

// ExtractDate returns the yyyyMMdd block of the number
func ExtractDate(number string) (string, bool) {
	if !shaped(number) {
		return "", false
	}
	return number[11:19], true
}

// ParseDate parses the date block strictly as yyyyMMdd
func ParseDate(number string) (time.Time, bool) {
	raw, ok := ExtractDate(number)
	if !ok {
		return time.Time{}, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractChecksum returns the trailing checksum characters
func ExtractChecksum(number string) (string, bool) {
	if !shaped(number) {
		return "", false
	}
	return number[checksumOffset:], true
}

package model

import (
	"errors"
	"fmt"
)

// Error classes. Typed errors below answer errors.Is for their class.
var (
	ErrArgument = errors.New("invalid argument")
	ErrState    = errors.New("invalid state")
	ErrCrypto   = errors.New("cryptographic failure")
)

// ParseError represents XML adapter errors with schema context
type ParseError struct {
	Schema  string
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Schema, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Schema, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(schema, field, message string, cause error) *ParseError {
	return &ParseError{
		Schema:  schema,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ArgumentError is malformed or missing required input, detected before any I/O
type ArgumentError struct {
	Op      string
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid argument %s: %s", e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: invalid argument: %s", e.Op, e.Message)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrArgument
}

// NewArgumentError creates a new argument error
func NewArgumentError(op, field, message string) *ArgumentError {
	return &ArgumentError{
		Op:      op,
		Field:   field,
		Message: message,
	}
}

// StateError is a precondition that failed against the current object state
type StateError struct {
	Op      string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}

// NewStateError creates a new state error
func NewStateError(op, message string) *StateError {
	return &StateError{
		Op:      op,
		Message: message,
	}
}

// UnsupportedAlgorithmError is returned when a certificate key cannot be used for signing links
type UnsupportedAlgorithmError struct {
	Op        string
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("%s: unsupported certificate algorithm %q", e.Op, e.Algorithm)
}

func (e *UnsupportedAlgorithmError) Is(target error) bool {
	return target == ErrState
}

// CryptoError wraps signing and hashing failures
type CryptoError struct {
	Op      string
	Message string
	Cause   error
}

func (e *CryptoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CryptoError) Unwrap() error {
	return e.Cause
}

func (e *CryptoError) Is(target error) bool {
	return target == ErrCrypto
}

// NewCryptoError creates a new crypto error
func NewCryptoError(op, message string, cause error) *CryptoError {
	return &CryptoError{
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

package seal

import (
	"errors"
	"fmt"
)

// CryptoErrorKind categorizes encryption failures.
type CryptoErrorKind string

const (
	// ErrKindAuthenticationFailed covers any tag, key, nonce or AAD mismatch.
	ErrKindAuthenticationFailed CryptoErrorKind = "AUTHENTICATION_FAILED"

	// ErrKindUnknownScheme indicates a scheme name this engine cannot open.
	ErrKindUnknownScheme CryptoErrorKind = "UNKNOWN_SCHEME"
)

// CryptoError is fatal to the record being sealed or opened.
type CryptoError struct {
	Kind    CryptoErrorKind
	Scheme  string
	Message string
}

// Error implements the error interface.
func (e *CryptoError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("%s: %s (scheme=%s)", e.Kind, e.Message, e.Scheme)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsCryptoError reports whether err wraps any CryptoError.
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// IsAuthenticationFailed reports whether err is an authentication failure.
func IsAuthenticationFailed(err error) bool {
	var ce *CryptoError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindAuthenticationFailed
	}
	return false
}

// IsUnknownScheme reports whether err is an unknown-scheme failure.
func IsUnknownScheme(err error) bool {
	var ce *CryptoError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindUnknownScheme
	}
	return false
}

func authFailed(scheme, msg string) *CryptoError {
	return &CryptoError{Kind: ErrKindAuthenticationFailed, Scheme: scheme, Message: msg}
}

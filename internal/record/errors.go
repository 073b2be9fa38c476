package record

import (
	"errors"
	"fmt"
)

// ChainErrorKind categorizes integrity violations.
type ChainErrorKind string

const (
	// ErrKindNotOwner indicates an append for a host other than the local one.
	ErrKindNotOwner ChainErrorKind = "NOT_OWNER"

	// ErrKindBrokenLink indicates a parent id or idx that does not continue the chain.
	ErrKindBrokenLink ChainErrorKind = "BROKEN_LINK"

	// ErrKindIDMismatch indicates the stored id does not match the content.
	ErrKindIDMismatch ChainErrorKind = "ID_MISMATCH"
)

// ChainError is an integrity violation in record construction or verification.
// It is always fatal to the record (and chain) involved.
type ChainError struct {
	Kind    ChainErrorKind
	Host    HostID
	Tag     Tag
	Idx     Idx
	Message string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s: %s (chain=%s/%s, idx=%d)", e.Kind, e.Message, e.Host, e.Tag, e.Idx)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newChainError(kind ChainErrorKind, r Record, format string, args ...any) *ChainError {
	return &ChainError{
		Kind:    kind,
		Host:    r.Host,
		Tag:     r.Tag,
		Idx:     r.Idx,
		Message: fmt.Sprintf(format, args...),
	}
}

func isChainKind(err error, kind ChainErrorKind) bool {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsChainError reports whether err wraps any ChainError.
func IsChainError(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce)
}

// IsNotOwner reports whether err is a NotOwner chain error.
func IsNotOwner(err error) bool { return isChainKind(err, ErrKindNotOwner) }

// IsBrokenLink reports whether err is a BrokenLink chain error.
func IsBrokenLink(err error) bool { return isChainKind(err, ErrKindBrokenLink) }

// IsIDMismatch reports whether err is an IDMismatch chain error.
func IsIDMismatch(err error) bool { return isChainKind(err, ErrKindIDMismatch) }

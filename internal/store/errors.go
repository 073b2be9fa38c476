package store

import (
	"errors"
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

// ErrorKind categorizes persistence failures.
type ErrorKind string

const (
	// ErrKindConflict indicates a different record already occupies the slot.
	ErrKindConflict ErrorKind = "CONFLICT"

	// ErrKindOutOfOrder indicates an idx other than tip+1.
	ErrKindOutOfOrder ErrorKind = "OUT_OF_ORDER"

	// ErrKindIO indicates a disk or driver failure.
	ErrKindIO ErrorKind = "IO"

	// ErrKindCorruption indicates stored data that cannot be decoded or
	// no longer matches its id.
	ErrKindCorruption ErrorKind = "CORRUPTION"
)

// StoreError is a local persistence failure. Conflict and OutOfOrder signal
// either a bug or a misbehaving peer and must abort the operation.
type StoreError struct {
	Kind    ErrorKind
	Chain   record.ChainKey
	Idx     record.Idx
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Chain.Host != "" {
		return fmt.Sprintf("%s: %s (chain=%s, idx=%d)", e.Kind, msg, e.Chain, e.Idx)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func ioError(op string, err error) *StoreError {
	return &StoreError{Kind: ErrKindIO, Message: op, Err: err}
}

func conflictError(r record.Record, existing record.ID) *StoreError {
	return &StoreError{
		Kind:    ErrKindConflict,
		Chain:   r.Chain(),
		Idx:     r.Idx,
		Message: fmt.Sprintf("slot holds %s, refusing %s", existing, r.ID),
	}
}

func isKind(err error, kind ErrorKind) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsConflict reports whether err is a slot conflict.
func IsConflict(err error) bool { return isKind(err, ErrKindConflict) }

// IsOutOfOrder reports whether err is an out-of-order push.
func IsOutOfOrder(err error) bool { return isKind(err, ErrKindOutOfOrder) }

// IsCorruption reports whether err is stored-data corruption.
func IsCorruption(err error) bool { return isKind(err, ErrKindCorruption) }

// IsRefusal reports whether the store refused a record on its merits rather
// than failing to process it.
func IsRefusal(err error) bool {
	return IsConflict(err) || IsOutOfOrder(err) || IsCorruption(err)
}

// IsIO reports whether err is an I/O failure.
func IsIO(err error) bool { return isKind(err, ErrKindIO) }

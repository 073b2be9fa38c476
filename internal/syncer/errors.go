package syncer

import (
	"errors"
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

// ErrSyncInProgress is returned by Run while another run is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrorKind categorizes sync failures.
type ErrorKind string

const (
	// ErrKindNetworkTransient indicates a relay request failed. Retryable on
	// the next run.
	ErrKindNetworkTransient ErrorKind = "NETWORK_TRANSIENT"

	// ErrKindChainViolation indicates a pulled record failed verification or
	// the two sides disagree on a chain's history.
	ErrKindChainViolation ErrorKind = "CHAIN_VIOLATION"

	// ErrKindRemoteRejected indicates the relay refused a pushed record.
	ErrKindRemoteRejected ErrorKind = "REMOTE_REJECTED"
)

// SyncError is a failure of one chain or of the whole run.
type SyncError struct {
	Kind    ErrorKind
	Chain   record.ChainKey
	Idx     record.Idx
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Chain.Host != "" {
		return fmt.Sprintf("%s: %s (chain=%s, idx=%d)", e.Kind, msg, e.Chain, e.Idx)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func isKind(err error, kind ErrorKind) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsNetworkTransient reports whether err is a retryable relay failure.
func IsNetworkTransient(err error) bool { return isKind(err, ErrKindNetworkTransient) }

// IsChainViolation reports whether err is a chain verification failure.
func IsChainViolation(err error) bool { return isKind(err, ErrKindChainViolation) }

// IsRemoteRejected reports whether err is a refused upload.
func IsRemoteRejected(err error) bool { return isKind(err, ErrKindRemoteRejected) }

func networkError(op string, err error) *SyncError {
	return &SyncError{Kind: ErrKindNetworkTransient, Message: op, Err: err}
}

func chainViolation(chain record.ChainKey, idx record.Idx, err error, format string, args ...any) *SyncError {
	return &SyncError{
		Kind:    ErrKindChainViolation,
		Chain:   chain,
		Idx:     idx,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

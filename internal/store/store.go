package store

import (
	"context"
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

// Store is durable, queryable persistence of record chains.
type Store interface {
	// Push verifies r against the current tip of its chain and inserts it
	// atomically. Pushing the identical record twice is a no-op.
	Push(ctx context.Context, r record.Record) error

	// Last returns the highest-idx record of (host, tag), or nil if empty.
	Last(ctx context.Context, host record.HostID, tag record.Tag) (*record.Record, error)

	// Range returns records with idx in [start, start+limit), ascending.
	Range(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error)

	// Get returns the record with the given id, or nil if absent.
	Get(ctx context.Context, id record.ID) (*record.Record, error)

	// Status returns the tip of every chain in the store.
	Status(ctx context.Context) (record.Status, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string
	Badger  BadgerConfig
}

// Open opens the backend named in opts. An empty backend means SQLite.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendBadger:
		cfg := opts.Badger
		cfg.Path = opts.Path
		return OpenBadger(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// nextIdx returns the idx and parent the next record of a chain must carry.
func nextIdx(tip *record.Record) (record.Idx, *record.ID) {
	if tip == nil {
		return 0, nil
	}
	id := tip.ID
	return tip.Idx + 1, &id
}

// checkContent rejects r when its claimed id does not match its content. It
// runs before the slot lookup, so a forged copy of a stored record can never
// pass as an idempotent replay.
func checkContent(r record.Record) error {
	if err := record.VerifyID(r); err != nil {
		return &StoreError{
			Kind:    ErrKindCorruption,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: "rejected record",
			Err:     err,
		}
	}
	return nil
}

// checkAppend enforces strict append of r onto tip: OutOfOrder for a wrong
// idx, Corruption wrapping a record.ChainError for a bad id or parent link.
func checkAppend(r record.Record, tip *record.Record) error {
	want, parent := nextIdx(tip)
	if r.Idx != want {
		return &StoreError{
			Kind:    ErrKindOutOfOrder,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: fmt.Sprintf("expected idx %d", want),
		}
	}
	if err := record.Verify(r, parent); err != nil {
		return &StoreError{
			Kind:    ErrKindCorruption,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: "rejected record",
			Err:     err,
		}
	}
	return nil
}

package syncer

import (
	"context"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/remote"
	"github.com/roach88/shellsync/internal/store"
)

// Remote is the relay as seen by the sync engine. remote.Client implements it
// over HTTP; StoreRemote implements it over any store.
type Remote interface {
	Status(ctx context.Context) (record.Status, error)
	Push(ctx context.Context, records []record.Record) ([]remote.PushResult, error)
	Pull(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error)
}

var _ Remote = (*remote.Client)(nil)

// StoreRemote serves the Remote contract from a store. The relay server uses
// it per user, and tests use it as an in-process relay.
type StoreRemote struct {
	Store store.Store
}

// NewStoreRemote wraps s.
func NewStoreRemote(s store.Store) *StoreRemote {
	return &StoreRemote{Store: s}
}

// Status returns the store's status.
func (r *StoreRemote) Status(ctx context.Context) (record.Status, error) {
	return r.Store.Status(ctx)
}

// Push stores each record in order. The store re-verifies every record
// against its own tip, so a bad record is rejected and the rest of its chain
// in the batch fails as out of order.
func (r *StoreRemote) Push(ctx context.Context, records []record.Record) ([]remote.PushResult, error) {
	results := make([]remote.PushResult, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := remote.PushResult{ID: rec.ID, Accepted: true}
		if err := r.Store.Push(ctx, rec); err != nil {
			if !store.IsRefusal(err) {
				return nil, err
			}
			res.Accepted = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// Pull returns up to limit records from start, capped at remote.MaxPullLimit.
func (r *StoreRemote) Pull(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error) {
	if limit > remote.MaxPullLimit {
		limit = remote.MaxPullLimit
	}
	return r.Store.Range(ctx, host, tag, start, limit)
}

package record

import (
	"context"
	"fmt"
	"time"
)

// TipReader returns the highest-idx record of a chain, or nil when the chain
// is empty. store.Store satisfies it.
type TipReader interface {
	Last(ctx context.Context, host HostID, tag Tag) (*Record, error)
}

// Appender builds new records for chains owned by the local host.
type Appender struct {
	Local HostID
	Tips  TipReader

	// Now stamps new records. Defaults to time.Now.
	Now func() time.Time
}

// NewAppender creates an appender for the local host.
func NewAppender(local HostID, tips TipReader) *Appender {
	return &Appender{Local: local, Tips: tips}
}

// Append builds the next record of (host, tag) carrying data.
// The record is not persisted; callers push it to a store.
func (a *Appender) Append(ctx context.Context, host HostID, tag Tag, version string, data EncryptedData) (Record, error) {
	return a.AppendWith(ctx, host, tag, version, func(Idx) (EncryptedData, error) {
		return data, nil
	})
}

// AppendWith is like Append but produces the payload once the slot is known.
// Sealing needs the idx for its associated data, so adapters use this form.
func (a *Appender) AppendWith(
	ctx context.Context,
	host HostID,
	tag Tag,
	version string,
	build func(idx Idx) (EncryptedData, error),
) (Record, error) {
	if host != a.Local {
		return Record{}, &ChainError{
			Kind:    ErrKindNotOwner,
			Host:    host,
			Tag:     tag,
			Message: fmt.Sprintf("only %s may append to its chains", a.Local),
		}
	}

	tip, err := a.Tips.Last(ctx, host, tag)
	if err != nil {
		return Record{}, fmt.Errorf("append: read tip: %w", err)
	}

	r := Record{
		Host:    host,
		Tag:     tag,
		Version: version,
	}
	if tip != nil {
		r.Idx = tip.Idx + 1
		r.Parent = IDPtr(tip.ID)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	r.Timestamp = now().UnixNano()

	r.Data, err = build(r.Idx)
	if err != nil {
		return Record{}, fmt.Errorf("append: build payload: %w", err)
	}

	r.ID, err = ComputeID(r)
	if err != nil {
		return Record{}, fmt.Errorf("append: %w", err)
	}

	return r, nil
}

// VerifyID recomputes the id of r and compares it with the claimed one.
func VerifyID(r Record) error {
	id, err := ComputeID(r)
	if err != nil {
		return newChainError(ErrKindIDMismatch, r, "cannot compute id: %v", err)
	}
	if id != r.ID {
		return newChainError(ErrKindIDMismatch, r, "id %s does not match content (computed %s)", r.ID, id)
	}
	return nil
}

// Verify recomputes the id of r and checks that it links to expectedParent.
// expectedParent is nil when r must be the first record of its chain.
func Verify(r Record, expectedParent *ID) error {
	if err := VerifyID(r); err != nil {
		return err
	}

	if r.Idx < 0 {
		return newChainError(ErrKindBrokenLink, r, "negative idx")
	}
	if (r.Idx == 0) != (r.Parent == nil) {
		return newChainError(ErrKindBrokenLink, r, "idx %d with parent %q", r.Idx, r.ParentID())
	}

	want := ID("")
	if expectedParent != nil {
		want = *expectedParent
	}
	if r.ParentID() != want {
		return newChainError(ErrKindBrokenLink, r, "parent %q, expected %q", r.ParentID(), want)
	}

	return nil
}

// Package typed maps domain values to and from sealed records of one tag.
package typed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
)

// pageSize is the Range page used when reading whole chains.
const pageSize = 500

// DecodeError means a record decrypted but its plaintext did not decode as
// the expected type. It signals version skew between writers, not tampering.
type DecodeError struct {
	Tag     record.Tag
	Version string
	ID      record.ID
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s record %s: %v", e.Tag, e.Version, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Log reads and writes values of type T on the chains of one tag.
type Log[T any] struct {
	Store    store.Store
	Appender *record.Appender
	Engine   *seal.Engine
	Tag      record.Tag
	Version  string

	// Logger receives a warning for every record All skips. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// New creates a typed log. Appends go to the appender's local host.
func New[T any](s store.Store, app *record.Appender, eng *seal.Engine, tag record.Tag, version string) *Log[T] {
	return &Log[T]{
		Store:    s,
		Appender: app,
		Engine:   eng,
		Tag:      tag,
		Version:  version,
	}
}

// Item is a decoded value with the record that carried it.
type Item[T any] struct {
	Record record.Record
	Value  T
}

// RecordFor serializes v, seals it for the next slot of the local chain and
// returns the record without storing it.
func (l *Log[T]) RecordFor(ctx context.Context, v T, key seal.Key) (record.Record, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return record.Record{}, fmt.Errorf("encode %s: %w", l.Tag, err)
	}

	host := l.Appender.Local
	return l.Appender.AppendWith(ctx, host, l.Tag, l.Version, func(idx record.Idx) (record.EncryptedData, error) {
		aad, err := seal.AAD(host, l.Tag, l.Version, idx)
		if err != nil {
			return record.EncryptedData{}, err
		}
		return l.Engine.Seal(key, payload, aad)
	})
}

// Push builds the record for v and stores it.
func (l *Log[T]) Push(ctx context.Context, v T, key seal.Key) (record.Record, error) {
	r, err := l.RecordFor(ctx, v, key)
	if err != nil {
		return record.Record{}, err
	}
	if err := l.Store.Push(ctx, r); err != nil {
		return record.Record{}, fmt.Errorf("push %s: %w", l.Tag, err)
	}
	return r, nil
}

// Decode opens r and deserializes its payload. Authentication failures are
// seal.CryptoError; payloads that fail to deserialize are DecodeError.
func (l *Log[T]) Decode(r record.Record, key seal.Key) (T, error) {
	var v T
	if r.Tag != l.Tag {
		return v, fmt.Errorf("record %s has tag %q, want %q", r.ID, r.Tag, l.Tag)
	}

	aad, err := seal.RecordAAD(r)
	if err != nil {
		return v, err
	}
	plaintext, err := l.Engine.Open(key, r.Data, aad)
	if err != nil {
		return v, err
	}

	if r.Version != l.Version {
		return v, &DecodeError{
			Tag:     r.Tag,
			Version: r.Version,
			ID:      r.ID,
			Err:     fmt.Errorf("unsupported version, this build reads %s", l.Version),
		}
	}
	if err := msgpack.Unmarshal(plaintext, &v); err != nil {
		return v, &DecodeError{Tag: r.Tag, Version: r.Version, ID: r.ID, Err: err}
	}
	return v, nil
}

// Records returns every record of this tag across all hosts, grouped by host
// and ascending by idx within a host.
func (l *Log[T]) Records(ctx context.Context) ([]record.Record, error) {
	status, err := l.Store.Status(ctx)
	if err != nil {
		return nil, err
	}

	var out []record.Record
	for _, chain := range status.Chains() {
		if chain.Tag != l.Tag {
			continue
		}
		for start := record.Idx(0); ; {
			page, err := l.Store.Range(ctx, chain.Host, chain.Tag, start, pageSize)
			if err != nil {
				return nil, err
			}
			out = append(out, page...)
			if len(page) < pageSize {
				break
			}
			start += pageSize
		}
	}
	return out, nil
}

// All decodes every record of this tag. Records written by another version
// are skipped with a warning; any other failure, including a record that does
// not authenticate, aborts.
func (l *Log[T]) All(ctx context.Context, key seal.Key) ([]Item[T], error) {
	recs, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item[T], 0, len(recs))
	for _, r := range recs {
		v, err := l.Decode(r, key)
		if IsDecodeError(err) {
			l.Skip(r, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, Item[T]{Record: r, Value: v})
	}
	return items, nil
}

// Skip reports a record left out of a projection.
func (l *Log[T]) Skip(r record.Record, err error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("skipping record",
		"tag", string(r.Tag),
		"version", r.Version,
		"host", string(r.Host),
		"idx", r.Idx,
		"error", err,
	)
}

// Newer reports whether b supersedes a in last-writer-wins projections:
// later timestamp first, then greater host, then greater idx.
func Newer(a, b record.Record) bool {
	if a.Timestamp != b.Timestamp {
		return b.Timestamp > a.Timestamp
	}
	if a.Host != b.Host {
		return b.Host > a.Host
	}
	return b.Idx > a.Idx
}

// LastWriter keeps, per key, the item whose record is newest.
func LastWriter[T any, K comparable](items []Item[T], key func(T) K) map[K]Item[T] {
	out := make(map[K]Item[T], len(items))
	for _, it := range items {
		k := key(it.Value)
		cur, ok := out[k]
		if !ok || Newer(cur.Record, it.Record) {
			out[k] = it
		}
	}
	return out
}

package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/roach88/shellsync/internal/record"
)

// Key layout:
//
//	r/<host>\x00<tag>\x00<idx big-endian> -> JSON record
//	t/<host>\x00<tag>                     -> JSON record.Tip
//	i/<id>                                -> record key
const (
	prefixRecord = "r/"
	prefixTip    = "t/"
	prefixID     = "i/"
)

// pushAttempts bounds retries of a push that lost an optimistic commit race.
const pushAttempts = 2

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	Path string

	// InMemory keeps everything in RAM. Path is ignored.
	InMemory bool

	// Logger receives Badger's internal logging. Defaults to a logrus
	// logger at warn level.
	Logger *logrus.Logger
}

// Badger is a Store on an embedded Badger key-value database. It only serves
// local installations; there is no user partitioning.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a Badger store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	opts := badger.DefaultOptions(cfg.Path).WithLogger(logger)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func chainPrefix(host record.HostID, tag record.Tag) []byte {
	var buf bytes.Buffer
	buf.WriteString(prefixRecord)
	buf.WriteString(string(host))
	buf.WriteByte(0)
	buf.WriteString(string(tag))
	buf.WriteByte(0)
	return buf.Bytes()
}

func recordKey(host record.HostID, tag record.Tag, idx record.Idx) []byte {
	key := chainPrefix(host, tag)
	return binary.BigEndian.AppendUint64(key, uint64(idx))
}

func tipKey(host record.HostID, tag record.Tag) []byte {
	return []byte(prefixTip + string(host) + "\x00" + string(tag))
}

func idKey(id record.ID) []byte {
	return []byte(prefixID + string(id))
}

// Push verifies r against the chain tip and writes it in one transaction.
// Losing a commit race re-runs the checks, so the loser sees either the
// identical record (no-op) or a Conflict.
func (b *Badger) Push(ctx context.Context, r record.Record) error {
	var err error
	for attempt := 0; attempt < pushAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return wrapBadger("push", err)
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return b.pushTxn(txn, r)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if errors.Is(err, badger.ErrConflict) {
		return &StoreError{
			Kind:    ErrKindConflict,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: "slot taken concurrently",
			Err:     err,
		}
	}
	if err != nil {
		return wrapBadger("push", err)
	}
	return nil
}

func (b *Badger) pushTxn(txn *badger.Txn, r record.Record) error {
	if err := checkContent(r); err != nil {
		return err
	}

	key := recordKey(r.Host, r.Tag, r.Idx)
	existing, err := getRecord(txn, key)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.ID == r.ID {
			return nil
		}
		return conflictError(r, existing.ID)
	}

	tip, err := b.lastTxn(txn, r.Host, r.Tag)
	if err != nil {
		return err
	}
	if err := checkAppend(r, tip); err != nil {
		return err
	}

	val, err := json.Marshal(r)
	if err != nil {
		return ioError("encode record", err)
	}
	tipVal, err := json.Marshal(record.Tip{Idx: r.Idx, ID: r.ID})
	if err != nil {
		return ioError("encode tip", err)
	}

	if err := txn.Set(key, val); err != nil {
		return err
	}
	if err := txn.Set(tipKey(r.Host, r.Tag), tipVal); err != nil {
		return err
	}
	return txn.Set(idKey(r.ID), key)
}

// Last returns the highest-idx record of (host, tag), or nil if empty.
func (b *Badger) Last(ctx context.Context, host record.HostID, tag record.Tag) (*record.Record, error) {
	var out *record.Record
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = b.lastTxn(txn, host, tag)
		return err
	})
	if err != nil {
		return nil, wrapBadger("last", err)
	}
	return out, nil
}

func (b *Badger) lastTxn(txn *badger.Txn, host record.HostID, tag record.Tag) (*record.Record, error) {
	item, err := txn.Get(tipKey(host, tag))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tip record.Tip
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tip)
	}); err != nil {
		return nil, &StoreError{Kind: ErrKindCorruption, Chain: record.ChainKey{Host: host, Tag: tag}, Message: "decode tip", Err: err}
	}

	r, err := getRecord(txn, recordKey(host, tag, tip.Idx))
	if err != nil {
		return nil, err
	}
	if r == nil || r.ID != tip.ID {
		return nil, &StoreError{
			Kind:    ErrKindCorruption,
			Chain:   record.ChainKey{Host: host, Tag: tag},
			Idx:     tip.Idx,
			Message: "tip points at a missing record",
		}
	}
	return r, nil
}

// Range returns up to limit records of (host, tag) from idx start, ascending.
func (b *Badger) Range(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}

	var out []record.Record
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := chainPrefix(host, tag)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(recordKey(host, tag, start)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapBadger("range", err)
	}
	return out, nil
}

// Get returns the record with the given id, or nil if absent.
func (b *Badger) Get(ctx context.Context, id record.ID) (*record.Record, error) {
	var out *record.Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = getRecord(txn, key)
		return err
	})
	if err != nil {
		return nil, wrapBadger("get", err)
	}
	return out, nil
}

// Status returns the tip of every chain.
func (b *Badger) Status(ctx context.Context) (record.Status, error) {
	status := record.NewStatus()
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixTip)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := bytes.TrimPrefix(item.Key(), prefix)
			host, tag, ok := bytes.Cut(rest, []byte{0})
			if !ok {
				return &StoreError{Kind: ErrKindCorruption, Message: fmt.Sprintf("malformed tip key %q", item.Key())}
			}

			var tip record.Tip
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &tip)
			}); err != nil {
				return &StoreError{Kind: ErrKindCorruption, Message: "decode tip", Err: err}
			}
			status.Set(record.HostID(host), record.Tag(tag), tip)
		}
		return nil
	})
	if err != nil {
		return nil, wrapBadger("status", err)
	}
	return status, nil
}

func getRecord(txn *badger.Txn, key []byte) (*record.Record, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeItem(item)
}

func decodeItem(item *badger.Item) (*record.Record, error) {
	var r record.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	}); err != nil {
		return nil, &StoreError{Kind: ErrKindCorruption, Message: fmt.Sprintf("decode %q", item.Key()), Err: err}
	}

	id, err := record.ComputeID(r)
	if err != nil || id != r.ID {
		return nil, &StoreError{
			Kind:    ErrKindCorruption,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: fmt.Sprintf("stored id %s does not match content", r.ID),
			Err:     err,
		}
	}
	return &r, nil
}

// wrapBadger passes StoreErrors through and classifies everything else as IO.
func wrapBadger(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ioError(op, err)
}

var _ Store = (*Badger)(nil)

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/shellsync/internal/record"
)

// Push verifies r against the chain tip and inserts it in one transaction.
//
// Pushing a record whose id already occupies its slot is a no-op, which makes
// replayed downloads and retried uploads safe. A different record in the slot
// is a Conflict; an idx other than tip+1 is OutOfOrder. A claimed id that
// does not match the content is Corruption, whether or not the slot is taken.
func (s *SQLite) Push(ctx context.Context, r record.Record) error {
	if err := checkContent(r); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioError("begin push", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM records
		WHERE user_id = ? AND host = ? AND tag = ? AND idx = ?
	`, s.user, string(r.Host), string(r.Tag), r.Idx).Scan(&existing)
	switch {
	case err == nil:
		if record.ID(existing) == r.ID {
			return nil
		}
		return conflictError(r, record.ID(existing))
	case !errors.Is(err, sql.ErrNoRows):
		return ioError("check slot", err)
	}

	tip, err := lastRecord(ctx, tx, s.user, r.Host, r.Tag)
	if err != nil {
		return err
	}
	if err := checkAppend(r, tip); err != nil {
		return err
	}

	var parent sql.NullString
	if r.Parent != nil {
		parent = sql.NullString{String: string(*r.Parent), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records
			(user_id, id, host, tag, version, idx, timestamp, parent, scheme, nonce, ciphertext)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.user,
		string(r.ID),
		string(r.Host),
		string(r.Tag),
		r.Version,
		r.Idx,
		r.Timestamp,
		parent,
		r.Data.Scheme,
		r.Data.Nonce,
		r.Data.Ciphertext,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return &StoreError{
				Kind:    ErrKindConflict,
				Chain:   r.Chain(),
				Idx:     r.Idx,
				Message: "slot taken concurrently",
				Err:     err,
			}
		}
		return ioError(fmt.Sprintf("insert record %s", r.ID), err)
	}

	if err := tx.Commit(); err != nil {
		return ioError("commit push", err)
	}
	return nil
}

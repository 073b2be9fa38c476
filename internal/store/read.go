package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

const recordColumns = `id, host, tag, version, idx, timestamp, parent, scheme, nonce, ciphertext`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Last returns the highest-idx record of (host, tag), or nil if the chain is empty.
func (s *SQLite) Last(ctx context.Context, host record.HostID, tag record.Tag) (*record.Record, error) {
	return lastRecord(ctx, s.db, s.user, host, tag)
}

func lastRecord(ctx context.Context, q queryer, user string, host record.HostID, tag record.Tag) (*record.Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = ? AND host = ? AND tag = ?
		ORDER BY idx DESC
		LIMIT 1
	`, user, string(host), string(tag))

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Range returns up to limit records of (host, tag) starting at idx start,
// ascending. A non-positive limit returns nothing.
func (s *SQLite) Range(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = ? AND host = ? AND tag = ? AND idx >= ?
		ORDER BY idx ASC
		LIMIT ?
	`, s.user, string(host), string(tag), start, limit)
	if err != nil {
		return nil, ioError("query range", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("iterate range", err)
	}
	return out, nil
}

// Get returns the record with the given id, or nil if absent.
func (s *SQLite) Get(ctx context.Context, id record.ID) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = ? AND id = ?
		LIMIT 1
	`, s.user, string(id))

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Status returns the tip of every chain owned by this store's user.
func (s *SQLite) Status(ctx context.Context) (record.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.host, r.tag, r.idx, r.id
		FROM records r
		JOIN (
			SELECT host, tag, MAX(idx) AS max_idx
			FROM records
			WHERE user_id = ?
			GROUP BY host, tag
		) m ON r.host = m.host AND r.tag = m.tag AND r.idx = m.max_idx
		WHERE r.user_id = ?
	`, s.user, s.user)
	if err != nil {
		return nil, ioError("query status", err)
	}
	defer rows.Close()

	status := record.NewStatus()
	for rows.Next() {
		var host, tag, id string
		var idx record.Idx
		if err := rows.Scan(&host, &tag, &idx, &id); err != nil {
			return nil, ioError("scan status", err)
		}
		status.Set(record.HostID(host), record.Tag(tag), record.Tip{Idx: idx, ID: record.ID(id)})
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("iterate status", err)
	}
	return status, nil
}

// scanRecord reads one row in recordColumns order. sql.ErrNoRows is passed
// through unwrapped so callers can test for absence.
func scanRecord(row scanner) (*record.Record, error) {
	var (
		r                 record.Record
		id, host, tag     string
		parent            sql.NullString
		nonce, ciphertext []byte
	)
	err := row.Scan(&id, &host, &tag, &r.Version, &r.Idx, &r.Timestamp, &parent, &r.Data.Scheme, &nonce, &ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, &StoreError{Kind: ErrKindCorruption, Message: "scan record", Err: err}
	}

	r.ID = record.ID(id)
	r.Host = record.HostID(host)
	r.Tag = record.Tag(tag)
	if parent.Valid {
		p := record.ID(parent.String)
		r.Parent = &p
	}
	r.Data.Nonce = nonce
	r.Data.Ciphertext = ciphertext

	got, err := record.ComputeID(r)
	if err != nil {
		return nil, &StoreError{Kind: ErrKindCorruption, Chain: r.Chain(), Idx: r.Idx, Message: "recompute id", Err: err}
	}
	if got != r.ID {
		return nil, &StoreError{
			Kind:    ErrKindCorruption,
			Chain:   r.Chain(),
			Idx:     r.Idx,
			Message: fmt.Sprintf("stored id %s does not match content %s", r.ID, got),
		}
	}
	return &r, nil
}

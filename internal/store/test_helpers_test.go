package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/shellsync/internal/record"
)

const (
	hostA record.HostID = "01890a5d-ac96-774b-bcce-b302099a8057"
	hostB record.HostID = "01890a5d-ac96-774b-bcce-b302099a8058"
)

// createTestStore creates a new SQLite store in a temp dir.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBadger creates a new in-memory Badger store.
func createTestBadger(t *testing.T) *Badger {
	t.Helper()
	b, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger() failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// backends returns every Store implementation for table-driven tests.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		BackendSQLite: createTestStore(t),
		BackendBadger: createTestBadger(t),
	}
}

// createTestRecord builds a valid record at idx linked to parent.
func createTestRecord(host record.HostID, tag record.Tag, idx record.Idx, parent *record.Record, body string) record.Record {
	r := record.Record{
		Host:      host,
		Tag:       tag,
		Version:   "v0",
		Idx:       idx,
		Timestamp: 1_700_000_000_000_000_000 + idx,
		Data: record.EncryptedData{
			Scheme:     "v2.xchacha20poly1305",
			Nonce:      []byte("nonce-nonce-nonce-nonce!"),
			Ciphertext: []byte(body),
		},
	}
	if parent != nil {
		r.Parent = record.IDPtr(parent.ID)
	}
	r.ID = record.MustComputeID(r)
	return r
}

// createTestChain builds n linked records for (host, tag).
func createTestChain(host record.HostID, tag record.Tag, n int) []record.Record {
	var out []record.Record
	var parent *record.Record
	for i := 0; i < n; i++ {
		r := createTestRecord(host, tag, record.Idx(i), parent, "body")
		out = append(out, r)
		parent = &out[len(out)-1]
	}
	return out
}

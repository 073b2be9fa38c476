package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/remote"
	"github.com/roach88/shellsync/internal/store"
)

const (
	hostA record.HostID = "01890a5d-ac96-774b-bcce-b302099a8057"
	hostB record.HostID = "01890a5d-ac96-774b-bcce-b302099a8058"
)

func createTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestBadger(t *testing.T) *store.Badger {
	t.Helper()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// appendN appends n records to (host, tag) in s, continuing the chain.
func appendN(t *testing.T, s store.Store, host record.HostID, tag record.Tag, n int) []record.Record {
	t.Helper()
	return appendBody(t, s, host, tag, n, "payload")
}

func appendBody(t *testing.T, s store.Store, host record.HostID, tag record.Tag, n int, body string) []record.Record {
	t.Helper()
	ctx := context.Background()
	app := record.NewAppender(host, s)

	var out []record.Record
	for i := 0; i < n; i++ {
		r, err := app.Append(ctx, host, tag, "v0", record.EncryptedData{
			Scheme:     "v2.xchacha20poly1305",
			Nonce:      []byte{byte(i)},
			Ciphertext: []byte(body),
		})
		require.NoError(t, err)
		require.NoError(t, s.Push(ctx, r))
		out = append(out, r)
	}
	return out
}

func requireSameStatus(t *testing.T, a, b store.Store) {
	t.Helper()
	ctx := context.Background()
	sa, err := a.Status(ctx)
	require.NoError(t, err)
	sb, err := b.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, sa, sb)
}

// countingRemote records calls and can inject failures.
type countingRemote struct {
	Remote

	mu         sync.Mutex
	pushCalls  int
	pullCalls  int
	pulled     int
	failPullAt int // fail once this many records were pulled; 0 disables
	failStatus error
	reject     map[record.Idx]string
	tamper     func(*record.Record)
	afterPull  func()
}

func (c *countingRemote) Status(ctx context.Context) (record.Status, error) {
	if c.failStatus != nil {
		return nil, c.failStatus
	}
	return c.Remote.Status(ctx)
}

func (c *countingRemote) Push(ctx context.Context, records []record.Record) ([]remote.PushResult, error) {
	c.mu.Lock()
	c.pushCalls++
	c.mu.Unlock()

	if len(c.reject) > 0 {
		out := make([]remote.PushResult, len(records))
		for i, r := range records {
			if msg, ok := c.reject[r.Idx]; ok {
				out[i] = remote.PushResult{ID: r.ID, Error: msg}
				continue
			}
			out[i] = remote.PushResult{ID: r.ID, Accepted: true}
		}
		return out, nil
	}
	return c.Remote.Push(ctx, records)
}

func (c *countingRemote) Pull(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error) {
	c.mu.Lock()
	c.pullCalls++
	c.mu.Unlock()

	if c.failPullAt > 0 && c.pulled >= c.failPullAt {
		return nil, errNetwork
	}
	if c.failPullAt > 0 && c.pulled+limit > c.failPullAt {
		limit = c.failPullAt - c.pulled
	}

	recs, err := c.Remote.Pull(ctx, host, tag, start, limit)
	if err != nil {
		return nil, err
	}
	c.pulled += len(recs)
	if c.tamper != nil {
		for i := range recs {
			c.tamper(&recs[i])
		}
	}
	if c.afterPull != nil {
		c.afterPull()
	}
	return recs, nil
}

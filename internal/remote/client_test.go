package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shellsync/internal/record"
)

const testHost record.HostID = "01890a5d-ac96-774b-bcce-b302099a8057"

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:       srv.URL,
		Token:         "secret",
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
		Timeout:       2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://relay"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "://"})
	assert.Error(t, err)
}

func TestClient_Status(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		status := record.NewStatus()
		status.Set(testHost, "history", record.Tip{Idx: 2, ID: "abc"})
		writeJSON(w, http.StatusOK, StatusResponse{Hosts: status})
	}))

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	tip, ok := status.Get(testHost, "history")
	require.True(t, ok)
	assert.Equal(t, record.Tip{Idx: 2, ID: "abc"}, tip)
}

func TestClient_StatusEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, status)
	assert.Equal(t, 0, status.Len())
}

func TestClient_PullQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/records", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, string(testHost), q.Get("host"))
		assert.Equal(t, "history", q.Get("tag"))
		assert.Equal(t, "3", q.Get("start_idx"))
		assert.Equal(t, "50", q.Get("limit"))
		writeJSON(w, http.StatusOK, RecordsResponse{Records: []record.Record{{ID: "x", Idx: 3}}})
	}))

	recs, err := c.Pull(context.Background(), testHost, "history", 3, 50)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, record.ID("x"), recs[0].ID)
}

func TestClient_PushBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req PushRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Records, 2) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad batch"})
			return
		}

		writeJSON(w, http.StatusOK, PushResponse{Results: []PushResult{
			{ID: req.Records[0].ID, Accepted: true},
			{ID: req.Records[1].ID, Error: "OUT_OF_ORDER"},
		}})
	}))

	results, err := c.Push(context.Background(), []record.Record{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Accepted)
	assert.False(t, results[1].Accepted)
	assert.Equal(t, "OUT_OF_ORDER", results[1].Error)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{Hosts: record.NewStatus()})
	}))

	_, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "boom"})
	}))

	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	// First attempt plus MaxRetries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown token"})
	}))

	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:       srv.URL,
		Timeout:       50 * time.Millisecond,
		MaxRetries:    -1,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

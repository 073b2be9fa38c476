package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Frequency)
	assert.Equal(t, 5*time.Second, cfg.Sync.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Sync, cfg.Sync)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/shellsync
backend: badger
sync:
  address: https://relay.example.com
  token: abc
  frequency: 1h
  batch_size: 250
server:
  listen: 0.0.0.0:9000
  tokens:
    abc: alice
logging:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/shellsync", cfg.DataDir)
	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.Equal(t, "https://relay.example.com", cfg.Sync.Address)
	assert.Equal(t, time.Hour, cfg.Sync.Frequency)
	assert.Equal(t, 250, cfg.Sync.BatchSize)
	assert.Equal(t, map[string]string{"abc": "alice"}, cfg.Server.Tokens)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "backend: leveldb\n"},
		{"unknown key", "colour: blue\n"},
		{"batch too large", "sync:\n  batch_size: 5000\n"},
		{"bad duration", "sync:\n  frequency: often\n"},
		{"bad address", "sync:\n  address: relay.example.com\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.Sync.Token = "tok"
	cfg.Server.Tokens = map[string]string{"tok": "me"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	assert.Equal(t, "/data/records.db", cfg.StorePath())
	assert.Equal(t, "/data/key", cfg.KeyFile())
	assert.Equal(t, "/data/host_id", cfg.HostIDFile())
	assert.Equal(t, "/data/sync.lock", cfg.SyncLockFile())
	assert.Equal(t, "/data/relay.db", cfg.RelayDBPath())

	cfg.Backend = BackendBadger
	cfg.KeyPath = "/secrets/key"
	cfg.Server.DBPath = "/srv/relay.db"
	assert.Equal(t, "/data/records.badger", cfg.StorePath())
	assert.Equal(t, "/secrets/key", cfg.KeyFile())
	assert.Equal(t, "/srv/relay.db", cfg.RelayDBPath())
}

func TestLoadOrCreateHostID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "host_id")

	id, created, err := LoadOrCreateHostID(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	again, created, err := LoadOrCreateHostID(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestLoadOrCreateHostID_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_id")
	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid"), 0o600))

	_, _, err := LoadOrCreateHostID(path)
	assert.Error(t, err)
}

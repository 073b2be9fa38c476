package seal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKey(t *testing.T) {
	k := mustKey(t)

	decoded, err := DecodeKey(EncodeKey(k) + "\n")
	require.NoError(t, err)
	assert.Equal(t, k, decoded)
}

func TestDecodeKeyRejectsBadInput(t *testing.T) {
	_, err := DecodeKey("not base64!!")
	assert.Error(t, err)

	_, err = DecodeKey("c2hvcnQ=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 32 bytes")
}

func TestSaveLoadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "key")
	k := mustKey(t)

	require.NoError(t, SaveKey(path, k))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, k, loaded)
}

func TestSaveKeyRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, SaveKey(path, mustKey(t)))

	err := SaveKey(path, mustKey(t))
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")

	k1, created, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.True(t, created)

	k2, created, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, k1, k2)
}

func TestLoadOrCreateKeyCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, _, err := LoadOrCreateKey(path)
	assert.Error(t, err)
}

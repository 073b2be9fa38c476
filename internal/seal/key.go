package seal

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// KeySize is the length of the symmetric account key in bytes.
const KeySize = 32

// Key is the symmetric key shared by every host of one account.
type Key [KeySize]byte

// NewKey generates a random key.
func NewKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("generate key: %w", err)
	}
	return k, nil
}

// EncodeKey renders a key as standard base64, the on-disk and display form.
func EncodeKey(k Key) string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// DecodeKey parses the base64 form produced by EncodeKey.
func DecodeKey(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(s))))
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("decode key: expected %d bytes, got %d", KeySize, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// LoadKey reads a key file written by SaveKey.
func LoadKey(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Key{}, fmt.Errorf("load key: %w", err)
	}
	return DecodeKey(string(data))
}

// SaveKey writes a key file readable only by the owner.
// It refuses to overwrite an existing key: losing the old key makes every
// record sealed with it unreadable.
func SaveKey(path string, k Key) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	if _, err := f.WriteString(EncodeKey(k) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("save key: %w", err)
	}
	return f.Close()
}

// LoadOrCreateKey loads the key at path, generating and saving one if the
// file does not exist yet.
func LoadOrCreateKey(path string) (Key, bool, error) {
	k, err := LoadKey(path)
	if err == nil {
		return k, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Key{}, false, err
	}

	k, err = NewKey()
	if err != nil {
		return Key{}, false, err
	}
	if err := SaveKey(path, k); err != nil {
		return Key{}, false, err
	}
	return k, true, nil
}

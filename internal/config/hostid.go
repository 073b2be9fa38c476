package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/shellsync/internal/record"
)

// LoadOrCreateHostID reads the host id at path, generating and persisting a
// new one on first run. The bool reports whether the id was created.
//
// The id is loaded once at startup and passed explicitly to every component
// that appends records.
func LoadOrCreateHostID(path string) (record.HostID, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id, err := record.ParseHostID(strings.TrimSpace(string(data)))
		if err != nil {
			return "", false, fmt.Errorf("host id file %s: %w", path, err)
		}
		return id, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read host id: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("create data dir: %w", err)
	}

	id := record.NewHostID()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", false, fmt.Errorf("create host id: %w", err)
	}
	if _, err := f.WriteString(string(id) + "\n"); err != nil {
		f.Close()
		return "", false, fmt.Errorf("write host id: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", false, fmt.Errorf("write host id: %w", err)
	}
	return id, true, nil
}

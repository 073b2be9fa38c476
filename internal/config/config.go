// Package config loads shellsync settings from YAML.
//
// A settings file is validated against an embedded CUE schema before it is
// decoded, so unknown keys and out-of-range values are rejected with the
// offending path. Fields absent from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names, mirrored from the store package to keep config free of
// storage imports.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the full settings file.
type Config struct {
	// DataDir holds the record database, the key and the host id.
	DataDir string `yaml:"data_dir"`

	// Backend selects the local store: sqlite or badger.
	Backend string `yaml:"backend"`

	// KeyPath overrides the key file location. Defaults to <data_dir>/key.
	KeyPath string `yaml:"key_path,omitempty"`

	Sync    SyncConfig    `yaml:"sync"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// SyncConfig configures the client side of sync.
type SyncConfig struct {
	Address        string        `yaml:"address"`
	Token          string        `yaml:"token,omitempty"`
	Frequency      time.Duration `yaml:"frequency"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	NetworkTimeout time.Duration `yaml:"network_timeout"`
	BatchSize      int           `yaml:"batch_size"`
	MaxRetries     int           `yaml:"max_retries"`
}

// ServerConfig configures the relay.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// DBPath is the relay database. Defaults to <data_dir>/relay.db.
	DBPath string `yaml:"db_path,omitempty"`

	// Tokens maps an auth token to the user it authenticates.
	Tokens map[string]string `yaml:"tokens,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Backend: BackendSQLite,
		Sync: SyncConfig{
			Address:        "http://127.0.0.1:8888",
			Frequency:      10 * time.Minute,
			ConnectTimeout: 5 * time.Second,
			NetworkTimeout: 30 * time.Second,
			BatchSize:      100,
			MaxRetries:     3,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8888",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDataDir is $XDG_DATA_HOME/shellsync, falling back to
// ~/.local/share/shellsync.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "shellsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".shellsync")
	}
	return filepath.Join(home, ".local", "share", "shellsync")
}

// DefaultPath is $XDG_CONFIG_HOME/shellsync/config.yaml, falling back to
// ~/.config/shellsync/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "shellsync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "shellsync", "config.yaml")
}

// Load reads the settings file at path.
// Returns default config if file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil // No config file is OK, use defaults
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Validate(path, data); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// StorePath is the local database location for the configured backend.
func (c *Config) StorePath() string {
	if c.Backend == BackendBadger {
		return filepath.Join(c.DataDir, "records.badger")
	}
	return filepath.Join(c.DataDir, "records.db")
}

// KeyFile is the encryption key location.
func (c *Config) KeyFile() string {
	if c.KeyPath != "" {
		return c.KeyPath
	}
	return filepath.Join(c.DataDir, "key")
}

// HostIDFile is the host id location.
func (c *Config) HostIDFile() string {
	return filepath.Join(c.DataDir, "host_id")
}

// SyncLockFile guards against concurrent sync runs from separate processes.
func (c *Config) SyncLockFile() string {
	return filepath.Join(c.DataDir, "sync.lock")
}

// RelayDBPath is the relay database location.
func (c *Config) RelayDBPath() string {
	if c.Server.DBPath != "" {
		return c.Server.DBPath
	}
	return filepath.Join(c.DataDir, "relay.db")
}

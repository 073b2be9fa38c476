package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/config"
	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
)

// env is everything a command needs to read or write local records.
type env struct {
	cfg      *config.Config
	host     record.HostID
	store    store.Store
	engine   *seal.Engine
	appender *record.Appender
	logger   *slog.Logger
}

// loadConfig reads the settings file named by --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openEnv loads config, the host id and the local store.
// Callers must call close when done.
func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, opts.Verbose)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data dir", err)
	}

	host, created, err := config.LoadOrCreateHostID(cfg.HostIDFile())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load host id", err)
	}
	if created {
		logger.Info("generated host id", "host", host)
	}

	s, err := store.Open(store.Options{
		Backend: cfg.Backend,
		Path:    cfg.StorePath(),
		Badger:  store.BadgerConfig{Logger: badgerLogger(cmd.ErrOrStderr(), opts.Verbose)},
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	logger.Debug("opened store", "backend", cfg.Backend, "path", cfg.StorePath())

	return &env{
		cfg:      cfg,
		host:     host,
		store:    s,
		engine:   seal.NewEngine(),
		appender: record.NewAppender(host, s),
		logger:   logger,
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", "error", err)
	}
}

// key loads the account key. A missing key file is a command error that
// points at `shellsync key new`.
func (e *env) key() (seal.Key, error) {
	k, err := seal.LoadKey(e.cfg.KeyFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return seal.Key{}, NewExitError(ExitCommandError,
				fmt.Sprintf("no key at %s; run `shellsync key new` or copy the key from another machine", e.cfg.KeyFile()))
		}
		return seal.Key{}, WrapExitError(ExitCommandError, "failed to load key", err)
	}
	return k, nil
}

// badgerLogger routes Badger's internal logging to stderr, quiet unless verbose.
func badgerLogger(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

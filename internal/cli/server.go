package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/relay"
	"github.com/roach88/shellsync/internal/store"
)

// ServerOptions holds flags for the server command.
type ServerOptions struct {
	*RootOptions
	Listen string
}

// NewServerCommand creates the server command.
func NewServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the relay",
		Long: `Serve the relay HTTP API from server.db_path.

The relay stores opaque encrypted records partitioned by user. Users are
authenticated by the tokens listed under server.tokens.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides server.listen)")

	return cmd
}

func runServer(cmd *cobra.Command, opts *ServerOptions) error {
	formatter := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, opts.Verbose)

	if len(cfg.Server.Tokens) == 0 {
		return formatter.Fail(ErrCodeConfig,
			NewExitError(ExitCommandError, "server.tokens is empty; no user could authenticate"))
	}

	dbPath := cfg.RelayDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to create relay dir", err))
	}
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to open relay database", err))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	addr := cfg.Server.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	logger.Info("relay starting", "listen", addr, "db", dbPath, "users", len(cfg.Server.Tokens))
	srv := relay.New(db, cfg.Server.Tokens, logger)
	orphaned, err := srv.OrphanedUsers(ctx)
	if err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to list relay users", err))
	}
	if len(orphaned) > 0 {
		logger.Warn("stored users have no configured token", "users", orphaned)
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return formatter.Fail(ErrCodeGeneric, WrapExitError(ExitCommandError, fmt.Sprintf("relay on %s", addr), err))
	}
	logger.Info("relay stopped gracefully")
	return nil
}

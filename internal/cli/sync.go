package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/config"
	"github.com/roach88/shellsync/internal/remote"
	"github.com/roach88/shellsync/internal/syncer"
)

// SyncResult is the output of one sync run.
type SyncResult struct {
	Uploaded   int               `json:"uploaded"`
	Downloaded int               `json:"downloaded"`
	Chains     []SyncChainResult `json:"chains"`
}

// SyncChainResult describes one chain touched by the run.
type SyncChainResult struct {
	Host        string `json:"host"`
	Tag         string `json:"tag"`
	Direction   string `json:"direction"`
	Transferred int    `json:"transferred"`
	Error       string `json:"error,omitempty"`
}

// RenderText prints a one-line summary followed by any failed chains.
func (r SyncResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%d uploaded, %d downloaded\n", r.Uploaded, r.Downloaded)
	for _, c := range r.Chains {
		if c.Error != "" {
			fmt.Fprintf(w, "  FAIL %s/%s (%s): %s\n", c.Host, c.Tag, c.Direction, c.Error)
		}
	}
	return nil
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Exchange records with the relay once",
		Long: `Compare local and relay chain tips, upload what the relay is missing
and download what the local store is missing.

Exit codes:
  0 - every chain converged
  1 - some chains failed (the rest were synced)
  2 - command error (config, store, relay unreachable)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts)
		},
	}
}

func runSync(cmd *cobra.Command, opts *RootOptions) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(cmd, opts)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	defer e.close()

	s, err := newSyncer(e)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}

	report, err := s.Run(cmd.Context())
	if err != nil {
		return formatter.Fail(ErrCodeSync, WrapExitError(ExitCommandError, "sync failed", err))
	}

	result := syncResult(report)
	if err := formatter.Success(result); err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d chain(s) failed to sync", len(failed)),
			reported: true,
		}
	}
	return nil
}

// newSyncer wires a Syncer to the relay named in the sync config.
func newSyncer(e *env) (*syncer.Syncer, error) {
	client, err := newRemoteClient(e.cfg.Sync, e)
	if err != nil {
		return nil, err
	}
	return syncer.New(e.store, client,
		syncer.WithBatchSize(e.cfg.Sync.BatchSize),
		syncer.WithLogger(e.logger),
		syncer.WithLockFile(e.cfg.SyncLockFile()),
	), nil
}

func newRemoteClient(cfg config.SyncConfig, e *env) (*remote.Client, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	client, err := remote.NewClient(remote.Config{
		BaseURL:        cfg.Address,
		Token:          cfg.Token,
		ConnectTimeout: cfg.ConnectTimeout,
		Timeout:        cfg.NetworkTimeout,
		MaxRetries:     maxRetries,
		Logger:         e.logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid sync address", err)
	}
	return client, nil
}

func syncResult(report syncer.Report) SyncResult {
	out := SyncResult{
		Uploaded:   report.Uploaded,
		Downloaded: report.Downloaded,
		Chains:     make([]SyncChainResult, 0, len(report.Chains)),
	}
	for _, c := range report.Chains {
		cr := SyncChainResult{
			Host:        string(c.Chain.Host),
			Tag:         string(c.Chain.Tag),
			Direction:   c.Direction.String(),
			Transferred: c.Transferred,
		}
		if c.Err != nil {
			cr.Error = c.Err.Error()
		}
		out.Chains = append(out.Chains, cr)
	}
	return out
}

// syncOnce is the daemon's unit of work.
func syncOnce(ctx context.Context, s *syncer.Syncer, e *env) {
	report, err := s.Run(ctx)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		e.logger.Info("sync skipped, another run holds the lock")
		return
	}
	if err != nil {
		e.logger.Error("sync failed", "error", err)
		return
	}
	for _, c := range report.Failed() {
		e.logger.Warn("chain failed", "chain", c.Chain.String(), "error", c.Err)
	}
	e.logger.Info("sync complete", "uploaded", report.Uploaded, "downloaded", report.Downloaded)
}

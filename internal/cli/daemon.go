package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// DaemonOptions holds flags for the daemon command.
type DaemonOptions struct {
	*RootOptions
	Frequency time.Duration
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DaemonOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on an interval until interrupted",
		Long: `Run a sync immediately and then every sync.frequency (or --frequency)
until SIGINT or SIGTERM. Failed runs are logged and retried on the next tick.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Frequency, "frequency", 0, "sync interval (overrides sync.frequency)")

	return cmd
}

func runDaemon(cmd *cobra.Command, opts *DaemonOptions) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	defer e.close()

	s, err := newSyncer(e)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}

	freq := e.cfg.Sync.Frequency
	if opts.Frequency > 0 {
		freq = opts.Frequency
	}
	if freq <= 0 {
		return formatter.Fail(ErrCodeInvalidArgs, NewExitError(ExitCommandError, "sync frequency must be positive"))
	}

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	e.logger.Info("daemon starting", "host", e.host, "relay", e.cfg.Sync.Address, "frequency", freq)

	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		syncOnce(ctx, s, e)
		select {
		case <-ctx.Done():
			e.logger.Info("daemon stopped")
			return nil
		case <-ticker.C:
		}
	}
}

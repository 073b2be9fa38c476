package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/history"
)

// HistoryOptions holds flags for the history subcommands.
type HistoryOptions struct {
	*RootOptions
	Cwd      string
	Session  string
	Exit     int64
	Duration time.Duration
	Limit    int
}

// HistoryList is the output of history list.
type HistoryList struct {
	Entries []history.Entry `json:"entries"`
}

// RenderText prints entries oldest first.
func (l HistoryList) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range l.Entries {
		at := time.Unix(0, e.Timestamp).Local().Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", at, e.Hostname, e.Command)
	}
	return tw.Flush()
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Record and list shell history",
	}

	cmd.AddCommand(newHistoryAddCommand(rootOpts))
	cmd.AddCommand(newHistoryDeleteCommand(rootOpts))
	cmd.AddCommand(newHistoryListCommand(rootOpts))

	return cmd
}

func newHistoryAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add -- <command...>",
		Short:         "Append an executed command",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			e, err := openEnv(cmd, opts.RootOptions)
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			defer e.close()

			key, err := e.key()
			if err != nil {
				return formatter.Fail(ErrCodeKey, err)
			}

			cwd := opts.Cwd
			if cwd == "" {
				cwd, _ = os.Getwd()
			}
			hostname, _ := os.Hostname()

			entry := history.NewEntry(time.Now(), strings.Join(args, " "), cwd, opts.Session, hostname)
			entry.Exit = opts.Exit
			if opts.Duration > 0 {
				entry.Duration = opts.Duration.Nanoseconds()
			}

			r, err := history.NewStore(e.store, e.appender, e.engine).Add(cmd.Context(), entry, key)
			if err != nil {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to add history", err))
			}
			return formatter.Success(AppendResult{ID: string(r.ID), Tag: string(r.Tag), Idx: r.Idx, Entry: entry.ID})
		},
	}

	cmd.Flags().StringVar(&opts.Cwd, "cwd", "", "working directory (default: current)")
	cmd.Flags().StringVar(&opts.Session, "session", os.Getenv("SHELLSYNC_SESSION"), "shell session id")
	cmd.Flags().Int64Var(&opts.Exit, "exit", -1, "exit status")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "how long the command ran")

	return cmd
}

func newHistoryDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:           "delete <entry-id>",
		Short:         "Delete an entry on every machine",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			e, err := openEnv(cmd, opts.RootOptions)
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			defer e.close()

			key, err := e.key()
			if err != nil {
				return formatter.Fail(ErrCodeKey, err)
			}

			r, err := history.NewStore(e.store, e.appender, e.engine).Delete(cmd.Context(), args[0], key)
			if err != nil {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to delete history", err))
			}
			return formatter.Success(AppendResult{ID: string(r.ID), Tag: string(r.Tag), Idx: r.Idx})
		},
	}
}

func newHistoryListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List history from every machine",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			e, err := openEnv(cmd, opts.RootOptions)
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			defer e.close()

			key, err := e.key()
			if err != nil {
				return formatter.Fail(ErrCodeKey, err)
			}

			st := history.NewStore(e.store, e.appender, e.engine)
			st.Log().Logger = e.logger
			entries, err := st.Build(cmd.Context(), key)
			if err != nil {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to build history", err))
			}
			if opts.Limit > 0 && len(entries) > opts.Limit {
				entries = entries[len(entries)-opts.Limit:]
			}
			if entries == nil {
				entries = []history.Entry{}
			}
			return formatter.Success(HistoryList{Entries: entries})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the most recent n entries")

	return cmd
}

package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/alias"
	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
)

// AliasList is the output of alias list.
type AliasList struct {
	Aliases map[string]string `json:"aliases"`
}

// RenderText prints shell alias definitions sorted by name, ready to eval.
func (l AliasList) RenderText(w io.Writer) error {
	names := make([]string, 0, len(l.Aliases))
	for name := range l.Aliases {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "alias %s=%s\n", name, shellQuote(l.Aliases[name]))
	}
	return nil
}

// NewAliasCommand creates the alias command group.
func NewAliasCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage synced shell aliases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "set <name> <value>",
		Short:         "Define an alias",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd, rootOpts, aliasName(args[0]), func(e *env, key seal.Key) (record.Record, error) {
				return alias.NewStore(e.store, e.appender, e.engine).Set(cmd.Context(), args[0], args[1], key)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove an alias",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd, rootOpts, aliasName(args[0]), func(e *env, key seal.Key) (record.Record, error) {
				return alias.NewStore(e.store, e.appender, e.engine).Delete(cmd.Context(), args[0], key)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print every alias as shell definitions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			e, err := openEnv(cmd, rootOpts)
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			defer e.close()

			key, err := e.key()
			if err != nil {
				return formatter.Fail(ErrCodeKey, err)
			}
			st := alias.NewStore(e.store, e.appender, e.engine)
			st.Log().Logger = e.logger
			aliases, err := st.Build(cmd.Context(), key)
			if err != nil {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to build aliases", err))
			}
			return formatter.Success(AliasList{Aliases: aliases})
		},
	})

	return cmd
}

func aliasName(name string) func() error {
	return func() error { return alias.ValidateName(name) }
}

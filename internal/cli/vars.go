package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/vars"
)

// VarList is the output of var list.
type VarList struct {
	Vars map[string]vars.Var `json:"vars"`
}

// RenderText prints shell assignments sorted by name, ready to eval.
func (l VarList) RenderText(w io.Writer) error {
	names := make([]string, 0, len(l.Vars))
	for name := range l.Vars {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v := l.Vars[name]
		prefix := ""
		if v.Export {
			prefix = "export "
		}
		fmt.Fprintf(w, "%s%s=%s\n", prefix, name, shellQuote(v.Value))
	}
	return nil
}

// NewVarCommand creates the var command group.
func NewVarCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Manage synced shell variables",
	}

	var export bool
	set := &cobra.Command{
		Use:           "set <name> <value>",
		Short:         "Define a variable",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd, rootOpts, varName(args[0]), func(e *env, key seal.Key) (record.Record, error) {
				return vars.NewStore(e.store, e.appender, e.engine).Set(cmd.Context(), args[0], args[1], export, key)
			})
		},
	}
	set.Flags().BoolVarP(&export, "export", "x", false, "export to child processes")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a variable",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd, rootOpts, varName(args[0]), func(e *env, key seal.Key) (record.Record, error) {
				return vars.NewStore(e.store, e.appender, e.engine).Delete(cmd.Context(), args[0], key)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print every variable as shell assignments",
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
			st := vars.NewStore(e.store, e.appender, e.engine)
			st.Log().Logger = e.logger
			vs, err := st.Build(cmd.Context(), key)
			if err != nil {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to build vars", err))
			}
			return formatter.Success(VarList{Vars: vs})
		},
	})

	return cmd
}

func varName(name string) func() error {
	return func() error { return vars.ValidateName(name) }
}

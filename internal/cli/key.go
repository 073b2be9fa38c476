package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/seal"
)

// KeyResult is the output of the key commands.
type KeyResult struct {
	Path    string `json:"path"`
	Key     string `json:"key,omitempty"`
	Created bool   `json:"created"`
}

// RenderText prints the key (if shown) and where it lives.
func (r KeyResult) RenderText(w io.Writer) error {
	if r.Created {
		fmt.Fprintf(w, "wrote new key to %s\n", r.Path)
	}
	if r.Key != "" {
		fmt.Fprintln(w, r.Key)
	}
	return nil
}

// KeyOptions holds flags for the key subcommands.
type KeyOptions struct {
	*RootOptions
	Import string
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the account encryption key",
		Long: `Every machine of one account shares one symmetric key. The relay never
sees it. Create it once with "key new", then copy the output of "key show"
to every other machine with "key new --import".`,
	}

	cmd.AddCommand(newKeyNewCommand(rootOpts))
	cmd.AddCommand(newKeyShowCommand(rootOpts))

	return cmd
}

func newKeyNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "new",
		Short:         "Generate or import the key",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyNew(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Import, "import", "", "base64 key copied from another machine")

	return cmd
}

func runKeyNew(cmd *cobra.Command, opts *KeyOptions) error {
	formatter := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	path := cfg.KeyFile()

	if _, err := os.Stat(path); err == nil {
		return formatter.Fail(ErrCodeKey, NewExitError(ExitCommandError,
			fmt.Sprintf("key already exists at %s; remove it first to replace it", path)))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ErrCodeKey, WrapExitError(ExitCommandError, "failed to stat key", err))
	}

	var k seal.Key
	if opts.Import != "" {
		k, err = seal.DecodeKey(opts.Import)
	} else {
		k, err = seal.NewKey()
	}
	if err != nil {
		return formatter.Fail(ErrCodeKey, WrapExitError(ExitCommandError, "invalid key", err))
	}

	if err := seal.SaveKey(path, k); err != nil {
		return formatter.Fail(ErrCodeKey, WrapExitError(ExitCommandError, "failed to save key", err))
	}

	return formatter.Success(KeyResult{Path: path, Created: true})
}

func newKeyShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:           "show",
		Short:         "Print the key for copying to another machine",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			k, err := seal.LoadKey(cfg.KeyFile())
			if err != nil {
				return formatter.Fail(ErrCodeKey, WrapExitError(ExitCommandError, "failed to load key", err))
			}
			return formatter.Success(KeyResult{Path: cfg.KeyFile(), Key: seal.EncodeKey(k)})
		},
	}
}

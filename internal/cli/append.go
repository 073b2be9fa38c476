package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
)

// AppendResult reports a record written by add/set/delete commands.
type AppendResult struct {
	ID    string `json:"id"`
	Tag   string `json:"tag"`
	Idx   int64  `json:"idx"`
	Entry string `json:"entry,omitempty"` // history entry id, for history add
}

// RenderText prints the slot the record landed in.
func (r AppendResult) RenderText(w io.Writer) error {
	if r.Entry != "" {
		_, err := fmt.Fprintf(w, "%s #%d entry %s\n", r.Tag, r.Idx, r.Entry)
		return err
	}
	_, err := fmt.Fprintf(w, "%s #%d %s\n", r.Tag, r.Idx, r.ID)
	return err
}

// runAppend is the shared body of commands that write one record: validate
// the arguments, open the store, load the key, write, report the slot.
func runAppend(cmd *cobra.Command, opts *RootOptions, validate func() error, write func(*env, seal.Key) (record.Record, error)) error {
	formatter := opts.formatter(cmd)

	if err := validate(); err != nil {
		return formatter.Fail(ErrCodeInvalidArgs, WrapExitError(ExitCommandError, "invalid arguments", err))
	}

	e, err := openEnv(cmd, opts)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	defer e.close()

	key, err := e.key()
	if err != nil {
		return formatter.Fail(ErrCodeKey, err)
	}

	r, err := write(e, key)
	if err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to write record", err))
	}
	return formatter.Success(AppendResult{ID: string(r.ID), Tag: string(r.Tag), Idx: r.Idx})
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

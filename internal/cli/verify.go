package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
)

// verifyPageSize is how many records are read per Range call.
const verifyPageSize = 500

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Decrypt bool
}

// ChainVerification is the outcome of walking one chain.
type ChainVerification struct {
	Host    string `json:"host"`
	Tag     string `json:"tag"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	OK     bool                `json:"ok"`
	Chains []ChainVerification `json:"chains"`
}

// RenderText prints one line per chain.
func (r VerifyResult) RenderText(w io.Writer) error {
	for _, c := range r.Chains {
		if c.Error != "" {
			fmt.Fprintf(w, "FAIL %s/%s: %s\n", c.Host, c.Tag, c.Error)
			continue
		}
		fmt.Fprintf(w, "ok   %s/%s (%d records)\n", c.Host, c.Tag, c.Records)
	}
	if r.OK {
		fmt.Fprintf(w, "%d chain(s) verified\n", len(r.Chains))
	}
	return nil
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-check every local chain",
		Long: `Walk every local chain from idx 0, recomputing each record id and
checking each parent link. With --decrypt, also authenticate every payload
against the account key.

Exit codes:
  0 - every chain is intact
  1 - at least one chain is corrupt
  2 - command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Decrypt, "decrypt", false, "also authenticate every payload with the key")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	defer e.close()

	var key *seal.Key
	if opts.Decrypt {
		k, err := e.key()
		if err != nil {
			return formatter.Fail(ErrCodeKey, err)
		}
		key = &k
	}

	status, err := e.store.Status(cmd.Context())
	if err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to read status", err))
	}

	result := VerifyResult{OK: true, Chains: []ChainVerification{}}
	for _, k := range status.Chains() {
		formatter.VerboseLog("verifying %s", k)
		n, err := verifyChain(cmd.Context(), e.store, e.engine, key, k)
		cv := ChainVerification{Host: string(k.Host), Tag: string(k.Tag), Records: n}
		if err != nil {
			if !isVerifyFailure(err) {
				return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to read chain", err))
			}
			cv.Error = err.Error()
			result.OK = false
		}
		result.Chains = append(result.Chains, cv)
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.OK {
		return &ExitError{Code: ExitFailure, Message: "verification failed", reported: true}
	}
	return nil
}

// verifyChain walks one chain and returns how many records were intact.
func verifyChain(ctx context.Context, s store.Store, eng *seal.Engine, key *seal.Key, k record.ChainKey) (int, error) {
	var parent *record.ID
	var next record.Idx
	for {
		page, err := s.Range(ctx, k.Host, k.Tag, next, verifyPageSize)
		if err != nil {
			return int(next), err
		}
		for _, r := range page {
			if r.Idx != next {
				return int(next), &gapError{chain: k, want: next, got: r.Idx}
			}
			if err := record.Verify(r, parent); err != nil {
				return int(next), err
			}
			if key != nil {
				aad, err := seal.RecordAAD(r)
				if err != nil {
					return int(next), err
				}
				if _, err := eng.Open(*key, r.Data, aad); err != nil {
					return int(next), fmt.Errorf("record %d: %w", r.Idx, err)
				}
			}
			parent = record.IDPtr(r.ID)
			next++
		}
		if len(page) < verifyPageSize {
			return int(next), nil
		}
	}
}

type gapError struct {
	chain     record.ChainKey
	want, got record.Idx
}

func (e *gapError) Error() string {
	return fmt.Sprintf("%s: missing idx %d (next stored is %d)", e.chain, e.want, e.got)
}

// isVerifyFailure separates a corrupt chain from an unreadable store.
func isVerifyFailure(err error) bool {
	var gap *gapError
	return record.IsChainError(err) ||
		seal.IsCryptoError(err) ||
		store.IsCorruption(err) ||
		errors.As(err, &gap)
}

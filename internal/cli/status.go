package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shellsync/internal/record"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Remote bool
}

// ChainStatus is one row of status output.
type ChainStatus struct {
	Host      string `json:"host"`
	Tag       string `json:"tag"`
	Idx       int64  `json:"idx"`
	ID        string `json:"id"`
	Local     bool   `json:"local"`
	RemoteIdx *int64 `json:"remote_idx,omitempty"`
}

// StatusResult is the output of the status command.
type StatusResult struct {
	Host   string        `json:"host"`
	Chains []ChainStatus `json:"chains"`
}

// RenderText prints a table of chains with the local host marked.
func (r StatusResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "host %s\n", r.Host)
	if len(r.Chains) == 0 {
		fmt.Fprintln(w, "no records")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tTAG\tIDX\tRELAY")
	for _, c := range r.Chains {
		host := c.Host
		if c.Local {
			host += " *"
		}
		relay := "-"
		if c.RemoteIdx != nil {
			relay = fmt.Sprint(*c.RemoteIdx)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", host, c.Tag, c.Idx, relay)
	}
	return tw.Flush()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the tip of every local chain",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "also fetch the relay's tips")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	defer e.close()

	local, err := e.store.Status(cmd.Context())
	if err != nil {
		return formatter.Fail(ErrCodeStore, WrapExitError(ExitCommandError, "failed to read status", err))
	}

	var relay record.Status
	if opts.Remote {
		client, err := newRemoteClient(e.cfg.Sync, e)
		if err != nil {
			return formatter.Fail(ErrCodeConfig, err)
		}
		relay, err = client.Status(cmd.Context())
		if err != nil {
			return formatter.Fail(ErrCodeSync, WrapExitError(ExitCommandError, "failed to fetch relay status", err))
		}
	}

	return formatter.Success(statusResult(e.host, local, relay))
}

func statusResult(host record.HostID, local, relay record.Status) StatusResult {
	out := StatusResult{Host: string(host), Chains: []ChainStatus{}}
	for _, k := range local.Chains() {
		tip, _ := local.Get(k.Host, k.Tag)
		cs := ChainStatus{
			Host:  string(k.Host),
			Tag:   string(k.Tag),
			Idx:   tip.Idx,
			ID:    string(tip.ID),
			Local: k.Host == host,
		}
		if rt, ok := relay.Get(k.Host, k.Tag); ok {
			idx := rt.Idx
			cs.RemoteIdx = &idx
		}
		out.Chains = append(out.Chains, cs)
	}
	return out
}

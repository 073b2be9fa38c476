package syncer

import "github.com/roach88/shellsync/internal/record"

// ChainResult is the outcome of one chain in a run.
type ChainResult struct {
	Chain       record.ChainKey
	Direction   Direction
	Transferred int
	Err         error
}

// Report summarizes a run.
type Report struct {
	Uploaded      int
	Downloaded    int
	DownloadedIDs []record.ID
	Chains        []ChainResult
}

// Failed returns the chains that did not converge.
func (r Report) Failed() []ChainResult {
	var out []ChainResult
	for _, c := range r.Chains {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Transferred returns the number of records moved in either direction.
func (r Report) Transferred() int {
	return r.Uploaded + r.Downloaded
}

package syncer

import "github.com/roach88/shellsync/internal/record"

// Direction says which way records flow for one chain.
type Direction int

const (
	// Upload sends local records the relay lacks.
	Upload Direction = iota + 1

	// Download fetches relay records the local store lacks.
	Download

	// Diverged means both sides hold the same idx with different ids.
	Diverged
)

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	case Diverged:
		return "diverged"
	default:
		return "none"
	}
}

// Operation is the work one chain needs. Local and Remote are the tip idx on
// each side, -1 when that side has no records.
type Operation struct {
	Chain     record.ChainKey
	Direction Direction
	Local     record.Idx
	Remote    record.Idx
	LocalID   record.ID
	RemoteID  record.ID
}

// Count returns the number of records the operation transfers.
func (op Operation) Count() int64 {
	switch op.Direction {
	case Upload:
		return op.Local - op.Remote
	case Download:
		return op.Remote - op.Local
	default:
		return 0
	}
}

// Diff compares two statuses and returns the work per chain, sorted by host
// then tag. Chains with identical tips are omitted.
func Diff(local, remote record.Status) []Operation {
	keys := map[record.ChainKey]struct{}{}
	for _, k := range local.Chains() {
		keys[k] = struct{}{}
	}
	for _, k := range remote.Chains() {
		keys[k] = struct{}{}
	}

	sorted := make([]record.ChainKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	record.SortChains(sorted)

	var ops []Operation
	for _, k := range sorted {
		op := Operation{Chain: k, Local: -1, Remote: -1}
		if tip, ok := local.Get(k.Host, k.Tag); ok {
			op.Local, op.LocalID = tip.Idx, tip.ID
		}
		if tip, ok := remote.Get(k.Host, k.Tag); ok {
			op.Remote, op.RemoteID = tip.Idx, tip.ID
		}

		switch {
		case op.Local > op.Remote:
			op.Direction = Upload
		case op.Remote > op.Local:
			op.Direction = Download
		case op.LocalID != op.RemoteID:
			op.Direction = Diverged
		default:
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shellsync/internal/record"
)

func TestDiff(t *testing.T) {
	local := record.NewStatus()
	local.Set(hostA, "history", record.Tip{Idx: 4, ID: "a4"})
	local.Set(hostA, "alias", record.Tip{Idx: 1, ID: "al1"})
	local.Set(hostB, "history", record.Tip{Idx: 0, ID: "b0"})

	remote := record.NewStatus()
	remote.Set(hostA, "history", record.Tip{Idx: 1, ID: "a1"})
	remote.Set(hostA, "alias", record.Tip{Idx: 1, ID: "al1"})
	remote.Set(hostB, "history", record.Tip{Idx: 3, ID: "b3"})
	remote.Set(hostB, "var", record.Tip{Idx: 0, ID: "v0"})

	ops := Diff(local, remote)
	require.Len(t, ops, 3)

	assert.Equal(t, Operation{
		Chain:     record.ChainKey{Host: hostA, Tag: "history"},
		Direction: Upload,
		Local:     4,
		Remote:    1,
		LocalID:   "a4",
		RemoteID:  "a1",
	}, ops[0])
	assert.Equal(t, int64(3), ops[0].Count())

	assert.Equal(t, Download, ops[1].Direction)
	assert.Equal(t, record.ChainKey{Host: hostB, Tag: "history"}, ops[1].Chain)
	assert.Equal(t, int64(3), ops[1].Count())

	// Chain unknown locally: everything is downloaded.
	assert.Equal(t, Download, ops[2].Direction)
	assert.Equal(t, record.Idx(-1), ops[2].Local)
	assert.Equal(t, int64(1), ops[2].Count())
}

func TestDiff_UploadNewChain(t *testing.T) {
	local := record.NewStatus()
	local.Set(hostA, "history", record.Tip{Idx: 2, ID: "a2"})

	ops := Diff(local, record.NewStatus())
	require.Len(t, ops, 1)
	assert.Equal(t, Upload, ops[0].Direction)
	assert.Equal(t, record.Idx(-1), ops[0].Remote)
	assert.Equal(t, int64(3), ops[0].Count())
}

func TestDiff_EqualStatusesNoWork(t *testing.T) {
	s := record.NewStatus()
	s.Set(hostA, "history", record.Tip{Idx: 2, ID: "a2"})

	assert.Empty(t, Diff(s, s))
	assert.Empty(t, Diff(record.NewStatus(), record.NewStatus()))
}

func TestDiff_SameIdxDifferentID(t *testing.T) {
	local := record.NewStatus()
	local.Set(hostA, "history", record.Tip{Idx: 2, ID: "mine"})
	remote := record.NewStatus()
	remote.Set(hostA, "history", record.Tip{Idx: 2, ID: "theirs"})

	ops := Diff(local, remote)
	require.Len(t, ops, 1)
	assert.Equal(t, Diverged, ops[0].Direction)
	assert.Equal(t, int64(0), ops[0].Count())
}

package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTips is a minimal TipReader backed by a slice per chain.
type memTips struct {
	chains map[ChainKey][]Record
	err    error
}

func newMemTips() *memTips {
	return &memTips{chains: map[ChainKey][]Record{}}
}

func (m *memTips) Last(_ context.Context, host HostID, tag Tag) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	recs := m.chains[ChainKey{Host: host, Tag: tag}]
	if len(recs) == 0 {
		return nil, nil
	}
	r := recs[len(recs)-1]
	return &r, nil
}

func (m *memTips) add(r Record) {
	m.chains[r.Chain()] = append(m.chains[r.Chain()], r)
}

const localHost HostID = "01890a5d-ac96-774b-bcce-b302099a8057"

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

func payload(s string) EncryptedData {
	return EncryptedData{Scheme: "test", Nonce: []byte("n"), Ciphertext: []byte(s)}
}

func TestAppendBuildsChain(t *testing.T) {
	ctx := context.Background()
	tips := newMemTips()
	a := NewAppender(localHost, tips)
	a.Now = fixedNow

	first, err := a.Append(ctx, localHost, "history", "v0", payload("one"))
	require.NoError(t, err)
	assert.Equal(t, Idx(0), first.Idx)
	assert.Nil(t, first.Parent)
	assert.Equal(t, fixedNow().UnixNano(), first.Timestamp)
	require.NoError(t, Verify(first, nil))
	tips.add(first)

	second, err := a.Append(ctx, localHost, "history", "v0", payload("two"))
	require.NoError(t, err)
	assert.Equal(t, Idx(1), second.Idx)
	require.NotNil(t, second.Parent)
	assert.Equal(t, first.ID, *second.Parent)
	require.NoError(t, Verify(second, &first.ID))
}

func TestAppendChainsAreIndependentPerTag(t *testing.T) {
	ctx := context.Background()
	tips := newMemTips()
	a := NewAppender(localHost, tips)

	h, err := a.Append(ctx, localHost, "history", "v0", payload("h"))
	require.NoError(t, err)
	tips.add(h)

	al, err := a.Append(ctx, localHost, "alias", "v0", payload("a"))
	require.NoError(t, err)
	assert.Equal(t, Idx(0), al.Idx)
	assert.Nil(t, al.Parent)
}

func TestAppendRejectsForeignHost(t *testing.T) {
	a := NewAppender(localHost, newMemTips())

	_, err := a.Append(context.Background(), "01890a5d-ac96-774b-bcce-b302099a8058", "history", "v0", payload("x"))
	require.Error(t, err)
	assert.True(t, IsNotOwner(err))
}

func TestAppendPropagatesTipError(t *testing.T) {
	tips := newMemTips()
	tips.err = errors.New("disk on fire")
	a := NewAppender(localHost, tips)

	_, err := a.Append(context.Background(), localHost, "history", "v0", payload("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestAppendWithSeesSlotIdx(t *testing.T) {
	ctx := context.Background()
	tips := newMemTips()
	a := NewAppender(localHost, tips)

	for want := Idx(0); want < 3; want++ {
		r, err := a.AppendWith(ctx, localHost, "var", "v0", func(idx Idx) (EncryptedData, error) {
			assert.Equal(t, want, idx)
			return payload("v"), nil
		})
		require.NoError(t, err)
		tips.add(r)
	}
}

func TestVerifyDetectsEveryFieldMutation(t *testing.T) {
	ctx := context.Background()
	tips := newMemTips()
	a := NewAppender(localHost, tips)

	first, err := a.Append(ctx, localHost, "history", "v0", payload("one"))
	require.NoError(t, err)
	tips.add(first)
	r, err := a.Append(ctx, localHost, "history", "v0", payload("two"))
	require.NoError(t, err)
	require.NoError(t, Verify(r, r.Parent))

	mutations := map[string]func(r *Record){
		"host":       func(r *Record) { r.Host = "01890a5d-ac96-774b-bcce-b302099a8058" },
		"tag":        func(r *Record) { r.Tag = "alias" },
		"version":    func(r *Record) { r.Version = "v9" },
		"timestamp":  func(r *Record) { r.Timestamp-- },
		"ciphertext": func(r *Record) { r.Data.Ciphertext = []byte("twp") },
		"nonce":      func(r *Record) { r.Data.Nonce = []byte("m") },
		"scheme":     func(r *Record) { r.Data.Scheme = "other" },
		"id":         func(r *Record) { r.ID = first.ID },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tampered := r
			tampered.Data = EncryptedData{
				Scheme:     r.Data.Scheme,
				Nonce:      append([]byte(nil), r.Data.Nonce...),
				Ciphertext: append([]byte(nil), r.Data.Ciphertext...),
			}
			mutate(&tampered)
			err := Verify(tampered, tampered.Parent)
			require.Error(t, err)
			assert.True(t, IsIDMismatch(err))
		})
	}
}

func TestVerifyBrokenLink(t *testing.T) {
	ctx := context.Background()
	tips := newMemTips()
	a := NewAppender(localHost, tips)

	first, err := a.Append(ctx, localHost, "history", "v0", payload("one"))
	require.NoError(t, err)
	tips.add(first)
	second, err := a.Append(ctx, localHost, "history", "v0", payload("two"))
	require.NoError(t, err)

	t.Run("wrong expected parent", func(t *testing.T) {
		other := ID("0000")
		err := Verify(second, &other)
		require.Error(t, err)
		assert.True(t, IsBrokenLink(err))
	})

	t.Run("expected genesis", func(t *testing.T) {
		err := Verify(second, nil)
		require.Error(t, err)
		assert.True(t, IsBrokenLink(err))
	})

	t.Run("genesis with parent", func(t *testing.T) {
		bad := first
		bad.Parent = IDPtr(second.ID)
		bad.ID = MustComputeID(bad)
		err := Verify(bad, bad.Parent)
		require.Error(t, err)
		assert.True(t, IsBrokenLink(err))
	})
}

func TestChainErrorMessage(t *testing.T) {
	err := &ChainError{Kind: ErrKindBrokenLink, Host: localHost, Tag: "history", Idx: 3, Message: "gap"}
	assert.Contains(t, err.Error(), "BROKEN_LINK")
	assert.Contains(t, err.Error(), "idx=3")
	assert.True(t, IsChainError(err))
	assert.False(t, IsChainError(errors.New("plain")))
}

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		Host:      "01890a5d-ac96-774b-bcce-b302099a8057",
		Tag:       "history",
		Version:   "v0",
		Idx:       0,
		Timestamp: 1700000000000000000,
		Data: EncryptedData{
			Scheme:     "v2.xchacha20poly1305",
			Nonce:      []byte("nonce-nonce-nonce-nonce!"),
			Ciphertext: []byte("opaque"),
		},
	}
}

func TestComputeIDDeterminism(t *testing.T) {
	r := testRecord()

	id1, err := ComputeID(r)
	require.NoError(t, err)

	id2, err := ComputeID(r)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ComputeID must be deterministic")
	assert.Len(t, string(id1), 64, "SHA-256 hex is 64 characters")
}

func TestComputeIDIgnoresExistingID(t *testing.T) {
	r := testRecord()
	id := MustComputeID(r)

	r.ID = "something-else"
	assert.Equal(t, id, MustComputeID(r))
}

func TestComputeIDChangesWithEveryField(t *testing.T) {
	base := testRecord()
	baseID := MustComputeID(base)

	mutations := map[string]func(r *Record){
		"host":       func(r *Record) { r.Host = "01890a5d-ac96-774b-bcce-b302099a8058" },
		"tag":        func(r *Record) { r.Tag = "alias" },
		"version":    func(r *Record) { r.Version = "v1" },
		"idx":        func(r *Record) { r.Idx = 1 },
		"parent":     func(r *Record) { r.Parent = IDPtr("abc") },
		"timestamp":  func(r *Record) { r.Timestamp++ },
		"scheme":     func(r *Record) { r.Data.Scheme = "v1.aes256gcm" },
		"nonce":      func(r *Record) { r.Data.Nonce[0] ^= 0x01 },
		"ciphertext": func(r *Record) { r.Data.Ciphertext[5] ^= 0x80 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := testRecord()
			mutate(&r)
			assert.NotEqual(t, baseID, MustComputeID(r), "mutating %s must change the id", name)
		})
	}
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"idx":0}`)
	assert.NotEqual(t,
		hashWithDomain(DomainRecord, data),
		hashWithDomain("shellsync/other/v1", data),
	)
}

func TestComputeIDRejectsNonNFC(t *testing.T) {
	r := testRecord()
	r.Version = "e\u0301" // "e" + combining acute, not NFC

	_, err := ComputeID(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NFC")
}

package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord prefixes every record hash. The version suffix leaves room for
// a future id algorithm without ambiguity against v1 ids.
const DomainRecord = "shellsync/record/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeID returns the content address of r. The existing r.ID is ignored.
//
// Every other field is covered, including the parent id and the full sealed
// payload (scheme, nonce and ciphertext), so flipping any bit changes the id.
func ComputeID(r Record) (ID, error) {
	obj := map[string]any{
		"host":      string(r.Host),
		"tag":       string(r.Tag),
		"version":   r.Version,
		"idx":       r.Idx,
		"parent":    string(r.ParentID()),
		"timestamp": r.Timestamp,
		"data": map[string]any{
			"scheme":     r.Data.Scheme,
			"nonce":      r.Data.Nonce,
			"ciphertext": r.Data.Ciphertext,
		},
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ComputeID: failed to marshal: %w", err)
	}

	return ID(hashWithDomain(DomainRecord, canonical)), nil
}

// MustComputeID is like ComputeID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustComputeID(r Record) ID {
	id, err := ComputeID(r)
	if err != nil {
		panic(err)
	}
	return id
}

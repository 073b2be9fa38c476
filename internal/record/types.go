package record

import (
	"fmt"

	"github.com/google/uuid"
)

// HostID identifies one installation. It is generated once and never changes.
type HostID string

// NewHostID returns a fresh time-sortable host id (UUIDv7).
func NewHostID() HostID {
	return HostID(uuid.Must(uuid.NewV7()).String())
}

// ParseHostID validates a host id read from disk or the wire.
func ParseHostID(s string) (HostID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse host id: %w", err)
	}
	return HostID(u.String()), nil
}

// Tag names one logical log (history, alias, var).
type Tag string

// Idx is the zero-based position of a record within its chain.
type Idx = int64

// ID is the hex SHA-256 content address of a record.
type ID string

// EncryptedData is the sealed payload of a record. Only the seal package can
// interpret it; stores and the relay treat it as opaque bytes.
type EncryptedData struct {
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Record is one immutable, hash-linked, encrypted log entry.
type Record struct {
	ID        ID            `json:"id"`
	Host      HostID        `json:"host"`
	Parent    *ID           `json:"parent,omitempty"` // nil only at idx 0
	Tag       Tag           `json:"tag"`
	Version   string        `json:"version"`
	Idx       Idx           `json:"idx"`
	Timestamp int64         `json:"timestamp"` // unix nanoseconds
	Data      EncryptedData `json:"data"`
}

// ParentID returns the parent id, or "" for the first record of a chain.
func (r Record) ParentID() ID {
	if r.Parent == nil {
		return ""
	}
	return *r.Parent
}

// Chain returns the (host, tag) key of the record.
func (r Record) Chain() ChainKey {
	return ChainKey{Host: r.Host, Tag: r.Tag}
}

// ChainKey identifies one append-only chain.
type ChainKey struct {
	Host HostID `json:"host"`
	Tag  Tag    `json:"tag"`
}

func (k ChainKey) String() string {
	return fmt.Sprintf("%s/%s", k.Host, k.Tag)
}

// IDPtr is a convenience for building records with a parent.
func IDPtr(id ID) *ID {
	if id == "" {
		return nil
	}
	return &id
}

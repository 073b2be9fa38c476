// Package alias syncs shell aliases on the "alias" tag.
package alias

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
	"github.com/roach88/shellsync/internal/typed"
)

const (
	Tag     record.Tag = "alias"
	Version            = "v0"
)

// Op is the payload of one alias record. An empty Value with Deleted set
// removes the alias.
type Op struct {
	Name    string `msgpack:"name"`
	Value   string `msgpack:"value,omitempty"`
	Deleted bool   `msgpack:"deleted,omitempty"`
}

// Store appends alias changes and projects the current set.
type Store struct {
	log *typed.Log[Op]
}

// NewStore creates an alias store.
func NewStore(s store.Store, app *record.Appender, eng *seal.Engine) *Store {
	return &Store{log: typed.New[Op](s, app, eng, Tag, Version)}
}

// Log exposes the underlying typed log.
func (s *Store) Log() *typed.Log[Op] {
	return s.log
}

// ValidateName rejects names a shell cannot define.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("alias name is empty")
	}
	if strings.ContainsAny(name, " \t\n=/'\"$`") {
		return errors.New("alias name contains whitespace, quotes, '=', '/' or '$'")
	}
	return nil
}

// Set defines or redefines an alias.
func (s *Store) Set(ctx context.Context, name, value string, key seal.Key) (record.Record, error) {
	if err := ValidateName(name); err != nil {
		return record.Record{}, err
	}
	return s.log.Push(ctx, Op{Name: name, Value: value}, key)
}

// Delete removes an alias.
func (s *Store) Delete(ctx context.Context, name string, key seal.Key) (record.Record, error) {
	if err := ValidateName(name); err != nil {
		return record.Record{}, err
	}
	return s.log.Push(ctx, Op{Name: name, Deleted: true}, key)
}

// Build returns the current aliases across all hosts. The newest change to a
// name wins.
func (s *Store) Build(ctx context.Context, key seal.Key) (map[string]string, error) {
	items, err := s.log.All(ctx, key)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for name, it := range typed.LastWriter(items, func(op Op) string { return op.Name }) {
		if !it.Value.Deleted {
			out[name] = it.Value.Value
		}
	}
	return out, nil
}

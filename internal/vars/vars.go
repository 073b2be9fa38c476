// Package vars syncs shell variables on the "var" tag.
package vars

import (
	"context"
	"errors"
	"regexp"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
	"github.com/roach88/shellsync/internal/typed"
)

const (
	Tag     record.Tag = "var"
	Version            = "v0"
)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Var is a shell variable. Export marks it for the environment of child
// processes.
type Var struct {
	Name   string `msgpack:"name" json:"name"`
	Value  string `msgpack:"value" json:"value"`
	Export bool   `msgpack:"export" json:"export"`
}

// Op is the payload of one var record.
type Op struct {
	Var     Var  `msgpack:"var"`
	Deleted bool `msgpack:"deleted,omitempty"`
}

// Store appends variable changes and projects the current set.
type Store struct {
	log *typed.Log[Op]
}

// NewStore creates a variable store.
func NewStore(s store.Store, app *record.Appender, eng *seal.Engine) *Store {
	return &Store{log: typed.New[Op](s, app, eng, Tag, Version)}
}

// Log exposes the underlying typed log.
func (s *Store) Log() *typed.Log[Op] {
	return s.log
}

// ValidateName accepts POSIX shell identifiers.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return errors.New("variable name must match [A-Za-z_][A-Za-z0-9_]*")
	}
	return nil
}

// Set defines a variable.
func (s *Store) Set(ctx context.Context, name, value string, export bool, key seal.Key) (record.Record, error) {
	if err := ValidateName(name); err != nil {
		return record.Record{}, err
	}
	return s.log.Push(ctx, Op{Var: Var{Name: name, Value: value, Export: export}}, key)
}

// Delete unsets a variable.
func (s *Store) Delete(ctx context.Context, name string, key seal.Key) (record.Record, error) {
	if err := ValidateName(name); err != nil {
		return record.Record{}, err
	}
	return s.log.Push(ctx, Op{Var: Var{Name: name}, Deleted: true}, key)
}

// Build returns the current variables across all hosts, newest change per
// name.
func (s *Store) Build(ctx context.Context, key seal.Key) (map[string]Var, error) {
	items, err := s.log.All(ctx, key)
	if err != nil {
		return nil, err
	}

	out := map[string]Var{}
	for name, it := range typed.LastWriter(items, func(op Op) string { return op.Var.Name }) {
		if !it.Value.Deleted {
			out[name] = it.Value.Var
		}
	}
	return out, nil
}

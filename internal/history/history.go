// Package history stores shell history entries as sealed records on the
// "history" tag.
//
// Every change is appended to the local host's chain: a Create carries a full
// entry, a Delete carries the id of an entry to hide. Deletes may target
// entries written by any host and win regardless of order.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
	"github.com/roach88/shellsync/internal/typed"
)

const (
	Tag     record.Tag = "history"
	Version            = "v0"
)

// Entry is one executed command.
type Entry struct {
	ID        string `msgpack:"id" json:"id"`
	Timestamp int64  `msgpack:"timestamp" json:"timestamp"` // unix nanoseconds
	Duration  int64  `msgpack:"duration" json:"duration"`   // nanoseconds, -1 if unknown
	Exit      int64  `msgpack:"exit" json:"exit"`
	Command   string `msgpack:"command" json:"command"`
	Cwd       string `msgpack:"cwd" json:"cwd"`
	Session   string `msgpack:"session" json:"session"`
	Hostname  string `msgpack:"hostname" json:"hostname"`
}

// NewEntry returns an entry with a fresh time-ordered id.
func NewEntry(at time.Time, command, cwd, session, hostname string) Entry {
	return Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: at.UnixNano(),
		Duration:  -1,
		Exit:      -1,
		Command:   command,
		Cwd:       cwd,
		Session:   session,
		Hostname:  hostname,
	}
}

// Kind says what a change does.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindDelete
)

// Change is the payload of one history record.
type Change struct {
	Kind     Kind   `msgpack:"kind"`
	Entry    *Entry `msgpack:"entry,omitempty"`
	DeleteID string `msgpack:"delete_id,omitempty"`
}

// Store appends and replays history changes.
type Store struct {
	log *typed.Log[Change]
}

// NewStore creates a history store.
func NewStore(s store.Store, app *record.Appender, eng *seal.Engine) *Store {
	return &Store{log: typed.New[Change](s, app, eng, Tag, Version)}
}

// Log exposes the underlying typed log.
func (s *Store) Log() *typed.Log[Change] {
	return s.log
}

// Add records a new entry.
func (s *Store) Add(ctx context.Context, e Entry, key seal.Key) (record.Record, error) {
	if e.ID == "" {
		return record.Record{}, errors.New("history entry has no id")
	}
	return s.log.Push(ctx, Change{Kind: KindCreate, Entry: &e}, key)
}

// Delete records a tombstone for the entry with the given id.
func (s *Store) Delete(ctx context.Context, id string, key seal.Key) (record.Record, error) {
	if id == "" {
		return record.Record{}, errors.New("history delete needs an entry id")
	}
	return s.log.Push(ctx, Change{Kind: KindDelete, DeleteID: id}, key)
}

// Build replays every host's history chain into the live entries, oldest
// first.
func (s *Store) Build(ctx context.Context, key seal.Key) ([]Entry, error) {
	items, err := s.log.All(ctx, key)
	if err != nil {
		return nil, err
	}

	live := map[string]Entry{}
	deleted := map[string]bool{}
	for _, it := range items {
		switch it.Value.Kind {
		case KindCreate:
			if it.Value.Entry == nil {
				return nil, fmt.Errorf("history record %s: create without entry", it.Record.ID)
			}
			live[it.Value.Entry.ID] = *it.Value.Entry
		case KindDelete:
			deleted[it.Value.DeleteID] = true
		default:
			s.log.Skip(it.Record, &typed.DecodeError{
				Tag:     Tag,
				Version: it.Record.Version,
				ID:      it.Record.ID,
				Err:     fmt.Errorf("unknown change kind %d", it.Value.Kind),
			})
		}
	}

	out := make([]Entry, 0, len(live))
	for id, e := range live {
		if !deleted[id] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

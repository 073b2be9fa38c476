// Package store provides durable storage for shellsync record chains.
//
// Store is the capability interface the rest of the system depends on. Two
// backends implement it:
//   - SQLite (default): one row per record, used locally and by the relay
//   - Badger: an embedded key/value alternative for the local installation
//
// # Critical Patterns
//
// Slot uniqueness:
//   - UNIQUE(user_id, host, tag, idx) constraint (SQLite) or an optimistic
//     transaction conflict (Badger) decides every race for a slot
//   - re-pushing the identical record is a no-op; a different record for an
//     occupied slot is a Conflict
//
// Strict append:
//   - a record is accepted only at tip+1 and only if record.Verify accepts
//     its id and parent link against the current tip
//
// Deterministic reads:
//   - Range and Status always return records ordered by idx ASC
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store

// Package record defines the unit of replication for shellsync and the hash
// chain that links records of one (host, tag) pair.
//
// A Record is immutable once written. Its ID is content-addressed over every
// other field, including the parent's ID, so any mutation of a stored record
// is detectable by recomputing the ID (see Verify).
//
// This package imports nothing internal. The store, seal and syncer packages
// all build on it.
//
// Chain shape:
//   - idx 0 has no parent
//   - idx n > 0 has Parent == ID of the record at idx n-1 in the same chain
//   - one (host, tag, idx) slot holds exactly one record, forever
package record

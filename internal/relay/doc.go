// Package relay serves the sync wire protocol over HTTP.
//
// The relay is untrusted storage: it sees only opaque ciphertext, but it
// still verifies every pushed record against its own tip of the chain, so a
// buggy or hostile client cannot corrupt what other hosts will pull. All
// state lives in one SQLite database partitioned by the authenticated user.
package relay

// Package syncer brings a local store and a relay to the same Status.
//
// A run fetches the remote status, diffs it against the local one and, per
// chain, uploads the records the relay lacks or downloads the records the
// local store lacks. Chains are only ever extended: every downloaded record is
// verified against its predecessor before it is stored, and the relay repeats
// the same check on upload.
//
// Progress is exactly what is durably stored on each side, so an interrupted
// run needs no checkpoint. The next run's diff resumes where it stopped.
//
// Failure handling:
//   - ChainViolation and RemoteRejected skip the affected chain; other chains
//     continue and the run reports them in Report.Failed.
//   - NetworkTransient ends the run early. Callers retry on the next run.
//
// At most one run per Syncer is in flight; a concurrent Run returns
// ErrSyncInProgress.
package syncer

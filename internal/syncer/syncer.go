package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/store"
)

// DefaultBatchSize is the number of records per push or pull request.
const DefaultBatchSize = 100

// State is the phase of the current run.
type State int32

const (
	StateIdle State = iota
	StateFetchingRemoteStatus
	StateDiffing
	StatePushing
	StatePulling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingRemoteStatus:
		return "fetching_remote_status"
	case StateDiffing:
		return "diffing"
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	default:
		return "unknown"
	}
}

// Syncer runs sync between one local store and one relay.
//
// Thread-safety model:
//   - Run(): safe from any goroutine; concurrent calls fail fast
//   - State(): safe from any goroutine
//   - with WithLockFile, runs from other processes also fail fast
type Syncer struct {
	local     store.Store
	remote    Remote
	batchSize int
	logger    *slog.Logger
	lockPath  string

	mu    sync.Mutex
	state atomic.Int32
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBatchSize sets the records per request. Non-positive values keep the
// default.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockFile makes Run hold an exclusive lock on path, so a second
// process syncing the same store gets ErrSyncInProgress.
func WithLockFile(path string) Option {
	return func(s *Syncer) {
		s.lockPath = path
	}
}

// New creates a Syncer.
func New(local store.Store, remote Remote, opts ...Option) *Syncer {
	s := &Syncer{
		local:     local,
		remote:    remote,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the phase of the in-flight run, or StateIdle.
func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) setState(st State) {
	s.state.Store(int32(st))
}

// Run performs one sync. The returned error is non-nil only when the run as a
// whole failed (local status unreadable, relay unreachable, a local store
// failure); per-chain failures are in Report.Failed.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	if !s.mu.TryLock() {
		return Report{}, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	if s.lockPath != "" {
		fl := flock.New(s.lockPath)
		locked, err := fl.TryLock()
		if err != nil {
			return Report{}, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !locked {
			return Report{}, ErrSyncInProgress
		}
		defer func() {
			if err := fl.Unlock(); err != nil {
				s.logger.Warn("release sync lock", "path", s.lockPath, "error", err)
			}
		}()
	}
	defer s.setState(StateIdle)

	var report Report

	localStatus, err := s.local.Status(ctx)
	if err != nil {
		return report, err
	}

	s.setState(StateFetchingRemoteStatus)
	remoteStatus, err := s.remote.Status(ctx)
	if err != nil {
		return report, networkError("fetch remote status", err)
	}

	s.setState(StateDiffing)
	ops := Diff(localStatus, remoteStatus)
	s.logger.Debug("sync diff computed",
		"local_chains", localStatus.Len(),
		"remote_chains", remoteStatus.Len(),
		"operations", len(ops),
	)

	for _, op := range ops {
		res := ChainResult{Chain: op.Chain, Direction: op.Direction}
		s.logger.Debug("chain pending",
			"chain", op.Chain.String(),
			"direction", op.Direction.String(),
			"records", op.Count(),
		)

		switch op.Direction {
		case Upload:
			s.setState(StatePushing)
			res.Transferred, res.Err = s.upload(ctx, op)
			report.Uploaded += res.Transferred
		case Download:
			s.setState(StatePulling)
			var ids []record.ID
			ids, res.Err = s.download(ctx, op)
			res.Transferred = len(ids)
			report.Downloaded += len(ids)
			report.DownloadedIDs = append(report.DownloadedIDs, ids...)
		case Diverged:
			res.Err = chainViolation(op.Chain, op.Local, nil,
				"local tip %s and remote tip %s differ at the same idx", op.LocalID, op.RemoteID)
		}
		report.Chains = append(report.Chains, res)

		if res.Err == nil {
			s.logger.Info("chain synced",
				"chain", op.Chain.String(),
				"direction", op.Direction.String(),
				"records", res.Transferred,
			)
			continue
		}
		if IsChainViolation(res.Err) || IsRemoteRejected(res.Err) {
			s.logger.Warn("chain skipped",
				"chain", op.Chain.String(),
				"direction", op.Direction.String(),
				"error", res.Err,
			)
			continue
		}
		// Network and local store failures end the run; the next run's diff
		// resumes from whatever was stored.
		return report, res.Err
	}

	return report, nil
}

// upload pushes (op.Remote, op.Local] in ascending batches.
func (s *Syncer) upload(ctx context.Context, op Operation) (int, error) {
	host, tag := op.Chain.Host, op.Chain.Tag

	// The relay's tip must be a record we hold, or the histories diverged.
	if op.Remote >= 0 {
		at, err := s.local.Range(ctx, host, tag, op.Remote, 1)
		if err != nil {
			return 0, err
		}
		if len(at) == 0 || at[0].ID != op.RemoteID {
			return 0, chainViolation(op.Chain, op.Remote, nil, "remote tip %s is not in the local chain", op.RemoteID)
		}
	}

	sent := 0
	next := op.Remote + 1
	for next <= op.Local {
		limit := min(int64(s.batchSize), op.Local-next+1)
		batch, err := s.local.Range(ctx, host, tag, next, int(limit))
		if err != nil {
			return sent, err
		}
		if len(batch) == 0 {
			return sent, &store.StoreError{
				Kind:    store.ErrKindCorruption,
				Chain:   op.Chain,
				Idx:     next,
				Message: "local chain has a gap below its tip",
			}
		}

		results, err := s.remote.Push(ctx, batch)
		if err != nil {
			return sent, &SyncError{Kind: ErrKindNetworkTransient, Chain: op.Chain, Idx: next, Message: "push batch", Err: err}
		}
		if len(results) != len(batch) {
			return sent, &SyncError{
				Kind:    ErrKindRemoteRejected,
				Chain:   op.Chain,
				Idx:     next,
				Message: "relay returned a result count that does not match the batch",
			}
		}
		for i, res := range results {
			if !res.Accepted {
				return sent, &SyncError{
					Kind:    ErrKindRemoteRejected,
					Chain:   op.Chain,
					Idx:     batch[i].Idx,
					Message: res.Error,
				}
			}
			sent++
		}
		next += int64(len(batch))
	}
	return sent, nil
}

// download pulls (op.Local, op.Remote] in ascending batches, verifying each
// record against its predecessor before storing it.
func (s *Syncer) download(ctx context.Context, op Operation) ([]record.ID, error) {
	host, tag := op.Chain.Host, op.Chain.Tag

	var parent *record.ID
	if op.Local >= 0 {
		id := op.LocalID
		parent = &id
	}

	var ids []record.ID
	next := op.Local + 1
	for next <= op.Remote {
		limit := min(int64(s.batchSize), op.Remote-next+1)
		batch, err := s.remote.Pull(ctx, host, tag, next, int(limit))
		if err != nil {
			return ids, &SyncError{Kind: ErrKindNetworkTransient, Chain: op.Chain, Idx: next, Message: "pull batch", Err: err}
		}
		if len(batch) == 0 {
			return ids, chainViolation(op.Chain, next, nil, "relay returned no records below its advertised tip %d", op.Remote)
		}

		for _, r := range batch {
			if next > op.Remote {
				break
			}
			if r.Host != host || r.Tag != tag || r.Idx != next {
				return ids, chainViolation(op.Chain, next, nil,
					"relay returned %s idx %d for a request at idx %d", r.Chain(), r.Idx, next)
			}
			if err := record.Verify(r, parent); err != nil {
				return ids, chainViolation(op.Chain, next, err, "pulled record failed verification")
			}
			if err := s.local.Push(ctx, r); err != nil {
				if !store.IsRefusal(err) {
					return ids, err
				}
				return ids, chainViolation(op.Chain, next, err, "local store refused pulled record")
			}

			id := r.ID
			parent = &id
			ids = append(ids, r.ID)
			next++
		}
	}
	return ids, nil
}

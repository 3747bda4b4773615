// ============================================================================
// clusterqueue Replication — Peer File Fan-out
// ============================================================================
//
// Package: internal/replication
// File: replication.go
// Purpose: FileReplicator implements jobqueue.Replicator, pushing a job
// record's bytes, a queued-to-archive rename, or a removal (the drain-flag
// marker file being cleared) to every configured peer node over
// internal/rpctransport. It is best-effort: Ganeti's own
// _JobQueue._WriteAndReplicateFileUnlocked logs a warning and proceeds when
// a minority of peers are unreachable rather than failing the write, since
// the local copy is already durable by the time replication runs. Only
// when a strict majority of peers fail does clusterqueue treat that as
// noteworthy (still non-fatal, just louder).
//
// Concurrency: each peer push runs on its own goroutine, fanned out and
// joined with a sync.WaitGroup, mirroring the worker pool's fan-out
// dispatch idiom in internal/worker/worker_pool.go.
//
// ============================================================================

package replication

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nimbusvm/clusterqueue/internal/rpctransport"
)

// RPCRunner is the narrow collaborator FileReplicator drives per peer,
// satisfied by a *grpc.ClientConn-backed rpctransport.JobQueueServiceClient
// in production and by a fake in tests.
type RPCRunner interface {
	UpdateFile(ctx context.Context, req *rpctransport.UpdateFileRequest) (*rpctransport.UpdateFileResponse, error)
	RenameFile(ctx context.Context, req *rpctransport.RenameFileRequest) (*rpctransport.RenameFileResponse, error)
	Purge(ctx context.Context, req *rpctransport.PurgeRequest) (*rpctransport.PurgeResponse, error)
}

// Peer pairs a display address with its RPCRunner.
type Peer struct {
	Addr   string
	Runner RPCRunner
}

// Metrics receives replication-level observations. It is satisfied by
// internal/metrics.Collector; a nil Metrics is legal.
type Metrics interface {
	ReplicationFailure(op string)
}

// FileReplicator fans UpdateFile/RenameFile calls out to every peer.
type FileReplicator struct {
	peers   []Peer
	timeout time.Duration
	logger  *slog.Logger
	metrics Metrics
	readFn  func(path string) ([]byte, error) // overridable in tests
}

// New builds a FileReplicator over peers. A nil or empty peers slice makes
// every call a single-node no-op, same as a nil jobqueue.Replicator. metrics
// may be nil.
func New(peers []Peer, timeout time.Duration, logger *slog.Logger, metrics Metrics) *FileReplicator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileReplicator{peers: peers, timeout: timeout, logger: logger, metrics: metrics, readFn: os.ReadFile}
}

// UpdateFile implements jobqueue.Replicator.
func (r *FileReplicator) UpdateFile(path string) error {
	if len(r.peers) == 0 {
		return nil
	}
	data, err := r.readFn(path)
	if err != nil {
		return err
	}
	r.fanout("UpdateFile", func(ctx context.Context, p Peer) error {
		_, err := p.Runner.UpdateFile(ctx, &rpctransport.UpdateFileRequest{Path: path, Data: data})
		return err
	})
	return nil
}

// RenameFile implements jobqueue.Replicator.
func (r *FileReplicator) RenameFile(oldPath, newPath string) error {
	if len(r.peers) == 0 {
		return nil
	}
	r.fanout("RenameFile", func(ctx context.Context, p Peer) error {
		_, err := p.Runner.RenameFile(ctx, &rpctransport.RenameFileRequest{OldPath: oldPath, NewPath: newPath})
		return err
	})
	return nil
}

// RemoveFile implements jobqueue.Replicator, fanning a peer-side delete out
// over the Purge RPC.
func (r *FileReplicator) RemoveFile(path string) error {
	if len(r.peers) == 0 {
		return nil
	}
	r.fanout("Purge", func(ctx context.Context, p Peer) error {
		_, err := p.Runner.Purge(ctx, &rpctransport.PurgeRequest{Path: path})
		return err
	})
	return nil
}

// fanout runs call against every peer concurrently, logs a warning per
// failed peer and an error if a strict majority fail; it never returns an error, matching Ganeti's
// best-effort replication semantics (see Open Question decision in
// DESIGN.md).
func (r *FileReplicator) fanout(op string, call func(ctx context.Context, p Peer) error) {
	var wg sync.WaitGroup
	failures := make([]bool, len(r.peers))

	for i, peer := range r.peers {
		wg.Add(1)
		go func(i int, peer Peer) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if err := call(ctx, peer); err != nil {
				failures[i] = true
				r.logger.Warn("replication call failed", "op", op, "peer", peer.Addr, "error", err)
				if r.metrics != nil {
					r.metrics.ReplicationFailure(op)
				}
			}
		}(i, peer)
	}
	wg.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	if failed*2 > len(r.peers) {
		r.logger.Error("replication lost majority of peers", "op", op, "failed", failed, "total", len(r.peers))
	}
}

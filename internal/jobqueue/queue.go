// ============================================================================
// clusterqueue Job Queue — Façade
// ============================================================================
//
// Package: internal/jobqueue
// File: queue.go
// Purpose: Queue is the single entry point callers use to submit, cancel,
// reprioritize and archive jobs. It owns the in-memory cache of live job
// records, a filestore.Store for durability and a notifier.Notifier for
// change waits, both used as concrete types. Replication to peers and
// metrics go through the narrow local Replicator and Metrics interfaces, so
// internal/jobqueue does not import internal/replication. The dependency
// waiter registry is not part of the Queue; internal/depmgr is driven by
// the processor.
//
// Locking:
//   mu (RWMutex) guards cache, drained and shuttingDown. submitBatch writes
//   new records outside mu; mutateJob, CancelJob, ChangeJobPriority and
//   archiveLocked persist (and replicate) while holding it.
//
// ============================================================================

package jobqueue

import (
	"fmt"
	"os"
	"sync"

	"github.com/nimbusvm/clusterqueue/internal/filestore"
	"github.com/nimbusvm/clusterqueue/internal/notifier"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Replicator pushes a file's bytes, a rename, or a removal out to peer
// nodes. It is satisfied by internal/replication.FileReplicator; a nil
// Replicator is legal and makes every call a single-node no-op.
type Replicator interface {
	UpdateFile(path string) error
	RenameFile(oldPath, newPath string) error
	RemoveFile(path string) error
}

// Metrics receives queue-level observations. It is satisfied by
// internal/metrics.Collector; a nil Metrics is legal.
type Metrics interface {
	JobSubmitted()
	JobFinished(status types.OpStatus)
	QueueDepth(n int)
}

// SubmitResult pairs a submitted OpInput with its allocated id or the error
// that prevented submission, mirroring Ganeti's partial-batch-failure
// reporting for SubmitManyJobs.
type SubmitResult struct {
	JobID types.JobID
	Err   error
}

// Queue is the job queue façade.
type Queue struct {
	layout    *Layout
	store     *filestore.Store
	notifier  *notifier.Notifier
	replica   Replicator
	metrics   Metrics
	maxJobs   int

	mu           sync.RWMutex
	cache        map[types.JobID]*types.Job
	drained      bool
	shuttingDown bool
}

// Config bundles Queue's collaborators. Replicator and Metrics may be nil.
type Config struct {
	Root         string
	MaxQueueSize int
	BatchSize    int
	Replicator   Replicator
	Metrics      Metrics
}

// New constructs a Queue rooted at cfg.Root, creating the on-disk layout if
// necessary and loading every live job record into the in-memory cache.
func New(cfg Config) (*Queue, error) {
	layout, err := NewLayout(cfg.Root)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		layout:  layout,
		store:   filestore.New(cfg.BatchSize, 0),
		notifier: notifier.New(),
		replica: cfg.Replicator,
		metrics: cfg.Metrics,
		maxJobs: cfg.MaxQueueSize,
		cache:   make(map[types.JobID]*types.Job),
	}

	if err := q.inspect(); err != nil {
		return nil, err
	}
	return q, nil
}

// inspect performs the startup recovery scan: the drain flag is restored
// from the marker file's presence, and every file under jobs/ is loaded
// into cache. A corrupted or unreadable record does not abort startup: it
// is skipped without being logged or moved aside, and is not cached, so a
// later lookup of that job id returns ErrJobNotFound.
func (q *Queue) inspect() error {
	if _, err := os.Stat(q.layout.DrainFlagPath()); err == nil {
		q.drained = true
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("jobqueue: inspect: stat drain flag: %w", err)
	}

	entries, err := os.ReadDir(q.layout.JobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jobqueue: inspect: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := q.layout.JobsDir() + "/" + entry.Name()
		job, err := Restore(path)
		if err != nil {
			// A corrupted or half-written record is skipped at startup;
			// recorded id gaps are expected and tolerated by design.
			continue
		}
		q.cache[job.ID] = job
	}
	return nil
}

// SubmitJob allocates an id, builds the job record from ops, persists it and
// returns the new id. It fails with ErrQueueDrained/ErrShuttingDown/
// ErrQueueFull per the queue's current state.
func (q *Queue) SubmitJob(ops []types.OpInput) (types.JobID, error) {
	results := q.SubmitManyJobs([][]types.OpInput{ops})
	return results[0].JobID, results[0].Err
}

// SubmitManyJobs submits a batch of jobs, each described by its own opcode
// list, and reports success or failure per job — a job whose record fails
// to persist never aborts the others. A shutting-down or drained queue, or
// a batch that would exceed the size limit, rejects every job in the batch.
func (q *Queue) SubmitManyJobs(batch [][]types.OpInput) []SubmitResult {
	return q.submitBatch(batch, false)
}

// SubmitJobToDrainedQueue bypasses the drain check; it exists for
// cluster-internal bookkeeping jobs (e.g. a job that clears the drain flag
// itself) that must still be acceptable while the queue is drained.
func (q *Queue) SubmitJobToDrainedQueue(ops []types.OpInput) (types.JobID, error) {
	results := q.submitBatch([][]types.OpInput{ops}, true)
	return results[0].JobID, results[0].Err
}

func (q *Queue) submitBatch(batch [][]types.OpInput, ignoreDrain bool) []SubmitResult {
	results := make([]SubmitResult, len(batch))

	q.mu.RLock()
	shuttingDown := q.shuttingDown
	drained := q.drained && !ignoreDrain
	size := len(q.cache)
	q.mu.RUnlock()

	if shuttingDown {
		for i := range results {
			results[i].Err = ErrShuttingDown
		}
		return results
	}
	if drained {
		for i := range results {
			results[i].Err = ErrQueueDrained
		}
		return results
	}
	if q.maxJobs > 0 && size+len(batch) > q.maxJobs {
		for i := range results {
			results[i].Err = ErrQueueFull
		}
		return results
	}

	ids, err := q.layout.AllocateIds(len(batch))
	if err != nil {
		for i := range results {
			results[i].Err = fmt.Errorf("jobqueue: allocate ids: %w", err)
		}
		return results
	}
	if q.replica != nil {
		// The serial file must reach peers before any job file it covers,
		// so a peer that only sees a replicated job record can still trust
		// the allocator state behind it.
		if err := q.replica.UpdateFile(q.layout.SerialPath()); err != nil {
			_ = err
		}
	}

	now := types.NowMillis()
	for i, ops := range batch {
		id := ids[i]
		ops2 := make([]types.Opcode, len(ops))
		for j, in := range ops {
			ops2[j] = types.Opcode{Input: in, Status: types.OpQueued, Priority: in.Priority}
		}
		job := &types.Job{
			ID:                id,
			Ops:               ops2,
			ReceivedTimestamp: now,
			Writable:          true,
		}

		if err := q.persist(job); err != nil {
			results[i] = SubmitResult{JobID: id, Err: err}
			continue
		}

		q.mu.Lock()
		q.cache[id] = job
		q.mu.Unlock()

		if q.metrics != nil {
			q.metrics.JobSubmitted()
			q.mu.RLock()
			q.metrics.QueueDepth(len(q.cache))
			q.mu.RUnlock()
		}
		results[i] = SubmitResult{JobID: id}
	}

	return results
}

// persist writes job to its live-record path and best-effort replicates it.
func (q *Queue) persist(job *types.Job) error {
	return q.persistReplicate(job, true)
}

// persistReplicate writes job to its live-record path, replicating to peers
// only when replicate is true. Append-log callbacks use replicate=false, per
// log noise need not hit peers synchronously.
func (q *Queue) persistReplicate(job *types.Job, replicate bool) error {
	path := q.layout.JobPath(job.ID)
	if err := Serialize(q.store, path, job); err != nil {
		return fmt.Errorf("jobqueue: persist job %d: %w", job.ID, err)
	}
	if replicate && q.replica != nil {
		if err := q.replica.UpdateFile(path); err != nil {
			// Replication failures are logged by the replicator itself and
			// never fail the local write; see internal/replication.
			_ = err
		}
	}
	return nil
}

// GetJob returns a copy of the job's current in-memory state.
func (q *Queue) GetJob(id types.JobID) (*types.Job, error) {
	q.mu.RLock()
	job, ok := q.cache[id]
	q.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetOpStatus reports a job's derived overall status as an OpStatus, for use
// by a dependency manager checking whether a job this one depends on has
// reached an acceptable terminal state. It returns ok=false for an unknown
// job id.
func (q *Queue) GetOpStatus(id types.JobID) (types.OpStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.cache[id]
	if !ok {
		return "", false
	}
	return types.OpStatus(job.Status()), true
}

// MutateJob runs fn against job id's in-memory record and persists the
// result if fn returns nil. fn must not retain job beyond the call; the
// queue treats any mutation fn makes as final and durable once MutateJob
// returns successfully.
func (q *Queue) MutateJob(id types.JobID, fn func(job *types.Job) error) error {
	return q.mutateJob(id, fn, true)
}

// MutateJobNoReplicate behaves like MutateJob but skips peer replication,
// for high-frequency updates (opcode feedback lines) that need not reach
// peers synchronously.
func (q *Queue) MutateJobNoReplicate(id types.JobID, fn func(job *types.Job) error) error {
	return q.mutateJob(id, fn, false)
}

func (q *Queue) mutateJob(id types.JobID, fn func(job *types.Job) error, replicate bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.cache[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Archived {
		return ErrArchived
	}

	if err := fn(job); err != nil {
		return err
	}

	return q.persistLockedReplicate(job, replicate)
}

// CancelJob requests cancellation of job id and reports, alongside any
// error, a human-readable message describing what happened — mirroring the
// (ok, message) shape Ganeti's own LUXI CancelJob returns instead of
// raising for the "job already finished" and "already running" cases.
//
// A job still QUEUED (no opcode has started) is canceled and finalized in
// place: nothing is running for a worker to observe a flag on, so there is
// nothing to defer. A job that is WAITING or RUNNING is marked CANCELING
// instead; the worker currently processing it (or about to) observes the
// flag at the next opcode boundary and finalizes it from there. Jobs
// already in a terminal status return ErrNotCancelable.
func (q *Queue) CancelJob(id types.JobID) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.cache[id]
	if !ok {
		return "", ErrJobNotFound
	}
	if job.Archived {
		return "", ErrArchived
	}
	status := job.Status()
	if status.Terminal() {
		return "", ErrNotCancelable
	}

	if status == types.JobQueued {
		MarkUnfinishedOpsCanceled(job, 0)
		if err := q.persistLocked(job); err != nil {
			return "", err
		}
		if q.metrics != nil {
			q.metrics.JobFinished(types.OpStatus(job.Status()))
		}
		return fmt.Sprintf("job %d canceled", id), nil
	}

	for i := range job.Ops {
		if job.Ops[i].Status == types.OpQueued || job.Ops[i].Status == types.OpWaiting {
			job.Ops[i].Status = types.OpCanceling
		}
	}

	if err := q.persistLocked(job); err != nil {
		return "", err
	}
	return fmt.Sprintf("job %d will be canceled", id), nil
}

// ChangeJobPriority updates the priority of every not-yet-finished opcode in
// job id. It does not touch the worker pool; only the pool's
// ChangeTaskPriority can reorder a task already queued there.
func (q *Queue) ChangeJobPriority(id types.JobID, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.cache[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status().Terminal() {
		return fmt.Errorf("jobqueue: job %d already finished, cannot change priority", id)
	}

	for i := range job.Ops {
		if !job.Ops[i].Status.Terminal() {
			job.Ops[i].Priority = priority
		}
	}

	return q.persistLocked(job)
}

// persistLocked persists job while the caller already holds q.mu.
func (q *Queue) persistLocked(job *types.Job) error {
	return q.persistLockedReplicate(job, true)
}

// persistLockedReplicate persists job while the caller already holds q.mu,
// replicating to peers only when replicate is true.
func (q *Queue) persistLockedReplicate(job *types.Job, replicate bool) error {
	if err := q.persistReplicate(job, replicate); err != nil {
		return err
	}
	q.cache[job.ID] = job
	return nil
}

// ArchiveJob moves a single finished job's record from jobs/ to archive/. It
// fails if the job has not reached a terminal status.
func (q *Queue) ArchiveJob(id types.JobID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.archiveLocked(id)
}

func (q *Queue) archiveLocked(id types.JobID) error {
	job, ok := q.cache[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Archived {
		return nil
	}
	if !job.Status().Terminal() {
		return fmt.Errorf("jobqueue: job %d is not finished, cannot archive", id)
	}

	oldPath := q.layout.JobPath(id)
	newPath := q.layout.ArchivePath(id)
	if err := filestore.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("jobqueue: archive job %d: %w", id, err)
	}
	if q.replica != nil {
		_ = q.replica.RenameFile(oldPath, newPath)
	}

	job.Archived = true
	// Archived jobs are released from the cache; a later query that needs
	// them falls back to the archive directory (see queue_query.go).
	delete(q.cache, id)
	if q.metrics != nil {
		q.metrics.QueueDepth(len(q.cache))
	}
	return nil
}

// AutoArchiveJobs archives every finished job whose EndTimestamp is older
// than ageMillis. A negative ageMillis archives every finished job
// regardless of age. It returns the number of jobs archived.
func (q *Queue) AutoArchiveJobs(ageMillis int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := types.NowMillis()
	count := 0
	for id, job := range q.cache {
		if job.Archived || !job.Status().Terminal() {
			continue
		}
		if ageMillis >= 0 {
			if job.EndTimestamp == nil || now-*job.EndTimestamp < ageMillis {
				continue
			}
		}
		if err := q.archiveLocked(id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Close flushes and stops the queue's durability and notification
// subsystems. It does not stop any worker pool driving this queue.
func (q *Queue) Close() error {
	notifyErr := q.notifier.Close()
	storeErr := q.store.Close()
	if storeErr != nil {
		return storeErr
	}
	return notifyErr
}

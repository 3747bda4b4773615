// ============================================================================
// clusterqueue Job Processor — Wait/Run/Finalize State Machine
// ============================================================================
//
// Package: internal/processor
// File: processor.go
// Purpose: Process drives one job's current opcode through QUEUED ->
// WAITING -> RUNNING -> a terminal status, one worker-pool dispatch at a
// time. It never holds the queue's lock across the external
// Executor call: every mutation is its own short jobqueue.MutateJob
// critical section, and the Executor runs entirely between two of them.
//
// Per-job runtime state (the opcode cursor, the dependency-walk cursor and
// the timeout strategy) lives here, not on types.Job, exactly as that
// type's doc comment promises; it is addressed by job id in ctxs and
// dropped once the job reaches a terminal status.
//
// ============================================================================

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nimbusvm/clusterqueue/internal/depmgr"
	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/opcodes"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Metrics receives processor-level observations, alongside the
// queue-submitted/finished/depth counters jobqueue.Metrics already covers.
// It is satisfied by internal/metrics.Collector; a nil Metrics is legal.
type Metrics interface {
	jobqueue.Metrics
	DispatchDuration(seconds float64)
	DependencyWait()
}

// Outcome is the result of one Process call, matching _JobProcessor's
// FINISHED/DEFER/WAITDEP in the original source.
type Outcome int

const (
	// Finished means the job reached a terminal status; it will never be
	// dispatched again.
	Finished Outcome = iota
	// Defer means the job should be re-queued for another dispatch, either
	// at the same priority (still WAITING) or a raised one.
	Defer
	// WaitDep means the job is parked on another job's dependency and will
	// be re-queued by the dependency manager once that job finishes.
	WaitDep
)

func (o Outcome) String() string {
	switch o {
	case Finished:
		return "FINISHED"
	case Defer:
		return "DEFER"
	case WaitDep:
		return "WAITDEP"
	default:
		return "UNKNOWN"
	}
}

// RequeueFunc hands a job back to the worker pool for (re-)dispatch at the
// given priority. The processor calls it itself on DEFER and whenever a
// dependency wakes a parked job, so a caller driving a Task.Run body only
// has to invoke Process and can ignore the returned Outcome. The one DEFER
// that is not re-queued is the queue-shutdown path (requeueQueued), which
// leaves the opcode QUEUED on disk for RecoverJobs.
type RequeueFunc func(id types.JobID, priority int)

// Config bundles a Processor's collaborators.
type Config struct {
	Queue       *jobqueue.Queue
	Deps        *depmgr.Manager
	Registry    *opcodes.Registry
	Requeue     RequeueFunc
	NewStrategy func() TimeoutStrategy // nil uses NewStrategy(0)
	Logger      *slog.Logger
	Metrics     Metrics // nil disables observation
}

// Processor drives jobs through their opcodes.
type Processor struct {
	queue       *jobqueue.Queue
	deps        *depmgr.Manager
	registry    *opcodes.Registry
	requeue     RequeueFunc
	newStrategy func() TimeoutStrategy
	logger      *slog.Logger
	metrics     Metrics

	mu       sync.Mutex
	ctxs     map[types.JobID]*opContext
	jobLocks map[types.JobID]*sync.Mutex
}

type opContext struct {
	opIndex  int
	depIndex int
	strategy TimeoutStrategy
}

// New builds a Processor from cfg.
func New(cfg Config) *Processor {
	newStrategy := cfg.NewStrategy
	if newStrategy == nil {
		newStrategy = func() TimeoutStrategy { return NewStrategy(0) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:       cfg.Queue,
		deps:        cfg.Deps,
		registry:    cfg.Registry,
		requeue:     cfg.Requeue,
		newStrategy: newStrategy,
		logger:      logger,
		metrics:     cfg.Metrics,
		ctxs:        make(map[types.JobID]*opContext),
		jobLocks:    make(map[types.JobID]*sync.Mutex),
	}
}

// Process implements the per-dispatch state machine described above.
func (p *Processor) Process(id types.JobID) (Outcome, error) {
	lock := p.jobLock(id)
	// Invariant 6: at most one worker holds this job's processor_lock at a
	// time. A job can be handed back to the pool (DEFER, a dependency
	// wake-up) while the dispatch that re-queued it still holds the lock,
	// so a second worker picking it up waits here until that dispatch
	// returns.
	lock.Lock()
	defer lock.Unlock()

	job, err := p.queue.GetJob(id)
	if err != nil {
		return 0, err
	}
	if job.Status().Terminal() {
		p.clearJob(id)
		return Finished, nil
	}

	octx := p.opCtxFor(id, job)
	idx := octx.opIndex
	if idx >= len(job.Ops) {
		jobqueue.Fatal("processor: job %d has no pending opcode but status %s is not terminal", id, job.Status())
	}

	if job.Ops[idx].Status == types.OpCanceling {
		return p.finalizeCancel(id, idx)
	}

	if err := p.prepareOpcode(id, idx); err != nil {
		return 0, err
	}

	depOutcome, depMsg := p.walkDependencies(id, idx, octx)
	switch depOutcome {
	case depmgr.Wait:
		return WaitDep, nil
	case depmgr.Cancel:
		return p.finalizeCancel(id, idx)
	case depmgr.WrongStatus, depmgr.Error:
		return p.finalizeError(id, idx, depMsg)
	}

	return p.runOpcode(id, idx, octx)
}

// prepareOpcode transitions a QUEUED opcode to WAITING and stamps the job's
// and opcode's start timestamps the first time either is touched.
func (p *Processor) prepareOpcode(id types.JobID, idx int) error {
	return p.queue.MutateJob(id, func(job *types.Job) error {
		op := &job.Ops[idx]
		if op.Status != types.OpQueued {
			return nil
		}
		op.Status = types.OpWaiting
		now := types.NowMillis()
		if op.StartTimestamp == nil {
			op.StartTimestamp = &now
		}
		if job.StartTimestamp == nil {
			job.StartTimestamp = &now
		}
		return nil
	})
}

// walkDependencies advances octx.depIndex across the opcode's dependency
// list, registering a wait with the dependency manager the first time it
// finds one not yet satisfied.
func (p *Processor) walkDependencies(id types.JobID, idx int, octx *opContext) (depmgr.Outcome, string) {
	job, err := p.queue.GetJob(id)
	if err != nil {
		return depmgr.Error, err.Error()
	}
	depends := job.Ops[idx].Input.DependsOn
	for octx.depIndex < len(depends) {
		dep := depends[octx.depIndex]
		outcome, msg := p.deps.CheckAndRegister(id, dep.JobID, dep.OnStatus, p.queue.GetOpStatus)
		if outcome == depmgr.Continue {
			octx.depIndex++
			continue
		}
		if outcome == depmgr.Wait && p.metrics != nil {
			p.metrics.DependencyWait()
		}
		return outcome, msg
	}
	return depmgr.Continue, ""
}

// runOpcode invokes the external Executor strictly outside the queue lock,
// then interprets its outcome.
func (p *Processor) runOpcode(id types.JobID, idx int, octx *opContext) (Outcome, error) {
	job, err := p.queue.GetJob(id)
	if err != nil {
		return 0, err
	}
	op := job.Ops[idx]

	timeout, bounded := octx.strategy.Next()

	ctx := context.Background()
	var cancel context.CancelFunc
	if bounded {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cb := &callbacks{p: p, jobID: id, opIndex: idx}
	started := time.Now()
	result, execErr := p.registry.Execute(ctx, op.Input.Kind, op.Input.Params, cb)
	if p.metrics != nil {
		p.metrics.DispatchDuration(time.Since(started).Seconds())
	}

	switch {
	case execErr == nil:
		return p.finalizeSuccess(id, idx, result)

	case errors.Is(execErr, opcodes.ErrCanceled):
		return p.finalizeCancel(id, idx)

	case errors.Is(execErr, opcodes.ErrQueueShutdown):
		return p.requeueQueued(id, idx)

	case errors.Is(execErr, opcodes.ErrLockTimeout), errors.Is(execErr, context.DeadlineExceeded):
		return p.handleLockTimeout(id, idx, octx)

	default:
		p.logger.Error("opcode execution failed", "job_id", id, "op_index", idx, "error", execErr)
		return p.finalizeError(id, idx, execErr.Error())
	}
}

// finalizeSuccess marks the opcode SUCCESS; if it was the job's last
// opcode the job itself finalizes, otherwise the cursor advances and the
// caller is handed back DEFER so the job is re-dispatched for its next
// opcode.
func (p *Processor) finalizeSuccess(id types.JobID, idx int, result json.RawMessage) (Outcome, error) {
	var isLast bool
	err := p.queue.MutateJob(id, func(job *types.Job) error {
		now := types.NowMillis()
		op := &job.Ops[idx]
		op.Status = types.OpSuccess
		op.Result = result
		op.EndTimestamp = &now
		isLast = idx == len(job.Ops)-1
		if isLast {
			job.EndTimestamp = &now
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if isLast {
		p.finishJob(id)
		return Finished, nil
	}

	p.mu.Lock()
	octx, ok := p.ctxs[id]
	p.mu.Unlock()
	if ok {
		octx.opIndex = idx + 1
		octx.depIndex = 0
		octx.strategy.Reset()
	}

	p.requeueSelf(id)
	return Defer, nil
}

// finalizeCancel marks opcode idx CANCELED and every later non-terminal
// opcode CANCELED, then finalizes the job.
func (p *Processor) finalizeCancel(id types.JobID, idx int) (Outcome, error) {
	err := p.queue.MutateJob(id, func(job *types.Job) error {
		now := types.NowMillis()
		job.Ops[idx].Status = types.OpCanceled
		job.Ops[idx].EndTimestamp = &now
		jobqueue.MarkUnfinishedOpsCanceled(job, idx+1)
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.finishJob(id)
	return Finished, nil
}

// finalizeError marks opcode idx ERROR with message, marks every later
// unfinished opcode ERROR with "Preceding opcode failed", then finalizes
// the job.
func (p *Processor) finalizeError(id types.JobID, idx int, message string) (Outcome, error) {
	err := p.queue.MutateJob(id, func(job *types.Job) error {
		now := types.NowMillis()
		job.Ops[idx].Status = types.OpError
		job.Ops[idx].Result = jobqueue.EncodeErrorResult(message)
		job.Ops[idx].EndTimestamp = &now
		jobqueue.MarkUnfinishedOpsError(job, idx+1, "Preceding opcode failed")
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.finishJob(id)
	return Finished, nil
}

// requeueQueued reverts opcode idx to QUEUED without finalizing the job, for
// the queue-shutdown path: the job survives and is picked up again on
// restart by RecoverJobs. It is not handed back to the worker pool.
func (p *Processor) requeueQueued(id types.JobID, idx int) (Outcome, error) {
	err := p.queue.MutateJob(id, func(job *types.Job) error {
		job.Ops[idx].Status = types.OpQueued
		return nil
	})
	if err != nil {
		return 0, err
	}
	return Defer, nil
}

// handleLockTimeout implements step 8: when the strategy's next attempt
// would be unbounded and the opcode isn't already at HIGHEST priority, the
// priority is raised (numerically decreased) and the strategy resets;
// otherwise the opcode simply retries at its current priority.
func (p *Processor) handleLockTimeout(id types.JobID, idx int, octx *opContext) (Outcome, error) {
	if _, bounded := octx.strategy.Peek(); !bounded {
		var raised bool
		var newPriority int
		err := p.queue.MutateJob(id, func(job *types.Job) error {
			op := &job.Ops[idx]
			if op.Priority > types.PriorityHighest {
				op.Priority--
				newPriority = op.Priority
				raised = true
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		if raised {
			octx.strategy.Reset()
			p.logger.Debug("raising priority after lock-timeout exhaustion", "job_id", id, "op_index", idx, "new_priority", newPriority)
		}
	}
	p.requeueSelf(id)
	return Defer, nil
}

// finishJob drops id's runtime state, reports the job's final status and
// wakes any job parked on it. It is the single chokepoint every terminal
// path (success, cancel, error) routes through, so it is also the single
// place a terminal-status observation is reported.
func (p *Processor) finishJob(id types.JobID) {
	if p.metrics != nil {
		if job, err := p.queue.GetJob(id); err == nil {
			p.metrics.JobFinished(types.OpStatus(job.Status()))
		}
	}
	p.clearJob(id)
	for _, waiter := range p.deps.NotifyWaiters(id) {
		p.requeueSelf(waiter)
	}
}

// requeueSelf hands id back to the worker pool at its opcode's current
// priority. It is a no-op if no RequeueFunc was configured (tests driving
// Process directly, one call at a time).
func (p *Processor) requeueSelf(id types.JobID) {
	if p.requeue == nil {
		return
	}
	p.requeue(id, p.currentPriority(id))
}

func (p *Processor) currentPriority(id types.JobID) int {
	job, err := p.queue.GetJob(id)
	if err != nil {
		return types.PriorityDefault
	}
	for _, op := range job.Ops {
		if !op.Status.Terminal() {
			return op.Priority
		}
	}
	return types.PriorityDefault
}

// opCtxFor returns id's runtime opcode cursor, creating one positioned at
// the first non-terminal opcode if this is the first time id is processed
// (or it was dropped after a prior terminal run and somehow resurfaced,
// which should not happen but is handled the same way).
func (p *Processor) opCtxFor(id types.JobID, job *types.Job) *opContext {
	p.mu.Lock()
	defer p.mu.Unlock()

	if octx, ok := p.ctxs[id]; ok {
		return octx
	}

	idx := len(job.Ops)
	for i, op := range job.Ops {
		if !op.Status.Terminal() {
			idx = i
			break
		}
	}
	octx := &opContext{opIndex: idx, strategy: p.newStrategy()}
	p.ctxs[id] = octx
	return octx
}

func (p *Processor) clearJob(id types.JobID) {
	p.mu.Lock()
	delete(p.ctxs, id)
	delete(p.jobLocks, id)
	p.mu.Unlock()
}

func (p *Processor) jobLock(id types.JobID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.jobLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		p.jobLocks[id] = lock
	}
	return lock
}

// Task builds a worker.Task-compatible run function for id, ignoring ctx:
// Process manages its own executor timeouts via the timeout strategy
// rather than the pool's per-task context.
func (p *Processor) Task(id types.JobID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Process(id)
		return err
	}
}

// ============================================================================
// clusterqueue Worker Pool - Priority-Ordered Task Executor
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Purpose: A fixed set of worker goroutines draining a container/heap
// priority queue (lower numeric priority first, FIFO within a priority),
// with the ability to reprioritize a still-queued task, pause/resume
// dispatch, and wait out currently running tasks during shutdown.
//
// Concurrency:
//   One mutex guards the heap, the jobIndex lookup, the running set, and the
//   active/stopped flags. A sync.Cond built on that mutex wakes parked
//   workers when a task is pushed, the pool is reactivated, or shutdown is
//   requested. Workers never hold the lock while running a task.
//
// ============================================================================

package worker

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

var (
	// ErrPoolClosed indicates that the current Pool is closed and cannot accept new tasks.
	ErrPoolClosed = errors.New("worker: pool is closed")
	// ErrPoolNotStarted indicates that the Pool has not been started yet.
	ErrPoolNotStarted = errors.New("worker: pool not started")
)

// Pool is a bounded, priority-ordered worker pool.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	heap     taskHeap
	jobIndex map[types.JobID]*item
	running  map[types.JobID]struct{}

	workerCount int
	started     bool
	stopped     bool
	active      bool
	nextSeq     int64

	wg sync.WaitGroup

	onResult func(Result)
}

// NewPool creates a Pool with the given number of worker goroutines.
// onResult, if non-nil, is invoked (from a worker goroutine, so it must not
// block or re-enter the pool) after each task completes.
func NewPool(workerCount int, onResult func(Result)) *Pool {
	p := &Pool{
		jobIndex: make(map[types.JobID]*item),
		running:  make(map[types.JobID]struct{}),
		workerCount: workerCount,
		active:      true,
		onResult:    onResult,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the pool's worker goroutines. It is an error to call Start
// more than once.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("worker: pool already started")
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		w := newGoWorker(i, p)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	return nil
}

// AddManyTasks enqueues tasks for dispatch. It fails only if the pool has
// not started or has been closed.
func (p *Pool) AddManyTasks(tasks []Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	for _, t := range tasks {
		it := &item{task: t, seq: p.nextSeq}
		p.nextSeq++
		heap.Push(&p.heap, it)
		p.jobIndex[t.JobID] = it
	}
	p.cond.Broadcast()
	return nil
}

// ChangeTaskPriority updates the priority of a task still waiting in the
// queue and restores heap order. It returns false if the job is not queued
// (either unknown, or already dispatched to a worker).
func (p *Pool) ChangeTaskPriority(jobID types.JobID, priority int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, ok := p.jobIndex[jobID]
	if !ok || it.index < 0 {
		return false
	}
	it.task.Priority = priority
	heap.Fix(&p.heap, it.index)
	return true
}

// SetActive pauses (false) or resumes (true) dispatch without discarding
// queued tasks. Tasks already running are unaffected.
func (p *Pool) SetActive(active bool) {
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
	p.cond.Broadcast()
}

// HasRunningTasks reports whether any worker currently holds a dispatched
// task.
func (p *Pool) HasRunningTasks() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running) > 0
}

// QueueLength returns the number of tasks waiting to be dispatched.
func (p *Pool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.heap)
}

// next blocks until a task is ready for dispatch or the pool is stopped. It
// is called only from worker goroutines.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.stopped && len(p.heap) == 0 {
			return Task{}, false
		}
		if p.active && len(p.heap) > 0 {
			it := heap.Pop(&p.heap).(*item)
			delete(p.jobIndex, it.task.JobID)
			p.running[it.task.JobID] = struct{}{}
			return it.task, true
		}
		p.cond.Wait()
	}
}

// reportDone marks a task no longer running and forwards its result.
func (p *Pool) reportDone(jobID types.JobID, result Result) {
	p.mu.Lock()
	delete(p.running, jobID)
	p.mu.Unlock()

	if p.onResult != nil {
		p.onResult(result)
	}
}

// TerminateWorkers stops accepting new tasks, lets already-dispatched tasks
// finish, and waits for every worker goroutine to exit. Still-queued tasks
// are dropped; callers needing them re-run should re-submit after restart
// from the persisted queue state.
func (p *Pool) TerminateWorkers() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.heap = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// IsStarted reports whether Start has been called.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// WorkerCount returns the configured number of worker goroutines.
func (p *Pool) WorkerCount() int {
	return p.workerCount
}

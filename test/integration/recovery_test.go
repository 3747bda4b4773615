// ============================================================================
// clusterqueue Recovery Test Suite
// ============================================================================
//
// Package: test/integration
// File: recovery_test.go
// Functionality: end-to-end crash-recovery test exercising
// jobqueue.Queue.RecoverJobs against a queue root left behind by an
// unclean shutdown.
//
// TestEndToEndRecovery:
//   - submit 50 jobs against a fresh queue
//   - let the worker pool run them to completion under a 10% simulated
//     failure rate
//   - verify at least 70% succeed, the remainder fail cleanly (no job is
//     left in a non-terminal status)
//
// TestCrashRecovery_FailsInFlightJobs:
//   - submit a job, mark its opcode RUNNING by hand so it looks left
//     mid-flight, close the queue, then open a second Queue against the
//     same root and call RecoverJobs — it must finalize the abandoned RUNNING
//     job as ERROR rather than silently drop it (Ganeti's own "Unclean
//     master daemon shutdown" behavior).
//
// ============================================================================

package integration

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/clusterqueue/internal/depmgr"
	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/opcodes"
	"github.com/nimbusvm/clusterqueue/internal/processor"
	"github.com/nimbusvm/clusterqueue/internal/worker"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

func TestEndToEndRecovery(t *testing.T) {
	root := t.TempDir()

	reg := opcodes.NewRegistry()
	reg.Register("sim", opcodes.SimulatedExecutor{MaxDelay: 20 * time.Millisecond, FailureRate: 0.1})

	q, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 16})
	require.NoError(t, err)
	defer q.Close()

	deps := depmgr.New()

	var (
		mu       sync.Mutex
		finished int
	)
	pool := worker.NewPool(4, func(r worker.Result) {
		mu.Lock()
		finished++
		mu.Unlock()
	})
	require.NoError(t, pool.Start())
	defer pool.TerminateWorkers()

	var proc *processor.Processor
	proc = processor.New(processor.Config{
		Queue:    q,
		Deps:     deps,
		Registry: reg,
		Requeue: func(id types.JobID, priority int) {
			_ = pool.AddManyTasks([]worker.Task{{JobID: id, Priority: priority, Run: proc.Task(id)}})
		},
	})

	const totalJobs = 50
	ids := make([]types.JobID, 0, totalJobs)
	for i := 0; i < totalJobs; i++ {
		id, err := q.SubmitJob([]types.OpInput{{Kind: "sim"}})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	tasks := make([]worker.Task, 0, totalJobs)
	for _, id := range ids {
		tasks = append(tasks, worker.Task{JobID: id, Priority: types.PriorityDefault, Run: proc.Task(id)})
	}
	require.NoError(t, pool.AddManyTasks(tasks))

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := finished
		mu.Unlock()
		if done >= totalJobs {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	succeeded, failed := 0, 0
	for _, id := range ids {
		job, err := q.GetJob(id)
		require.NoError(t, err)
		require.True(t, job.Status().Terminal(), "job %d left in status %s", id, job.Status())
		if job.Status() == types.JobSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	t.Logf("succeeded=%d failed=%d", succeeded, failed)
	require.GreaterOrEqual(t, succeeded, 35, "at least 70%% of jobs should succeed under a 10%% failure rate")
	require.Equal(t, totalJobs, succeeded+failed)
}

func TestCrashRecovery_FailsInFlightJobs(t *testing.T) {
	root := t.TempDir()

	reg := opcodes.NewRegistry()
	reg.Register("noop", opcodes.NoopExecutor{})

	q, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 1})
	require.NoError(t, err)

	id, err := q.SubmitJob([]types.OpInput{{Kind: "noop"}})
	require.NoError(t, err)

	require.NoError(t, q.MutateJob(id, func(job *types.Job) error {
		job.Ops[0].Status = types.OpRunning
		return nil
	}))
	require.NoError(t, q.Close())

	q2, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 1})
	require.NoError(t, err)
	defer q2.Close()

	_, err = q2.RecoverJobs()
	require.NoError(t, err)

	job, err := q2.GetJob(id)
	require.NoError(t, err)
	require.Equal(t, types.JobError, job.Status())
}

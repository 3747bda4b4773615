// ============================================================================
// clusterqueue Performance Test Suite
// ============================================================================
//
// Package: test/integration
// File: performance_test.go
// Functionality: system-level throughput and crash-recovery-latency tests
// against the real jobqueue/worker/processor stack (no mocks).
//
// Test Environment:
//   - 8 workers
//   - simulated task execution latency: 0-50ms
//   - simulated failure rate: 10%
//
// TestSystemThroughput:
//   submit 500 jobs, measure completion time and success rate.
//   target: >= 5 jobs/s, >= 85% completion rate.
//
// TestRecoveryLatency:
//   submit 500 jobs against a queue, close it before any of them runs, then measure
//   how long a fresh Queue.New + RecoverJobs takes against the same root.
//   target: < 3 seconds.
//
// ============================================================================

package integration

import (
	"sync"
	"testing"
	"time"

	"github.com/nimbusvm/clusterqueue/internal/depmgr"
	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/opcodes"
	"github.com/nimbusvm/clusterqueue/internal/processor"
	"github.com/nimbusvm/clusterqueue/internal/worker"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

func TestSystemThroughput(t *testing.T) {
	root := t.TempDir()

	reg := opcodes.NewRegistry()
	reg.Register("sim", opcodes.SimulatedExecutor{MaxDelay: 50 * time.Millisecond, FailureRate: 0.1})

	q, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 32})
	if err != nil {
		t.Fatalf("failed to open queue: %v", err)
	}
	defer q.Close()

	deps := depmgr.New()

	var (
		mu       sync.Mutex
		finished int
	)
	pool := worker.NewPool(8, func(r worker.Result) {
		mu.Lock()
		finished++
		mu.Unlock()
	})
	if err := pool.Start(); err != nil {
		t.Fatalf("failed to start pool: %v", err)
	}
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

	const totalJobs = 500
	ids := make([]types.JobID, 0, totalJobs)
	for i := 0; i < totalJobs; i++ {
		id, err := q.SubmitJob([]types.OpInput{{Kind: "sim"}})
		if err != nil {
			t.Fatalf("failed to submit job: %v", err)
		}
		ids = append(ids, id)
	}

	startTime := time.Now()

	tasks := make([]worker.Task, 0, totalJobs)
	for _, id := range ids {
		tasks = append(tasks, worker.Task{JobID: id, Priority: types.PriorityDefault, Run: proc.Task(id)})
	}
	if err := pool.AddManyTasks(tasks); err != nil {
		t.Fatalf("failed to enqueue tasks: %v", err)
	}

	maxWaitTime := 60 * time.Second
	deadline := time.Now().Add(maxWaitTime)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := finished
		mu.Unlock()
		if done >= totalJobs {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	elapsedTime := time.Since(startTime)

	succeeded := 0
	for _, id := range ids {
		job, err := q.GetJob(id)
		if err != nil {
			t.Fatalf("failed to look up job %d: %v", id, err)
		}
		if job.Status() == types.JobSuccess {
			succeeded++
		}
	}

	throughput := float64(succeeded) / elapsedTime.Seconds()

	t.Logf("=== Performance Test Results ===")
	t.Logf("Total jobs: %d", totalJobs)
	t.Logf("Succeeded: %d", succeeded)
	t.Logf("Elapsed time: %v", elapsedTime)
	t.Logf("Throughput: %.2f jobs/second", throughput)
	t.Logf("================================")

	expectedThroughput := 5.0
	if throughput < expectedThroughput {
		t.Errorf("throughput %.2f jobs/s is below target of %.2f jobs/s", throughput, expectedThroughput)
	}

	minCompletionRate := 85
	if succeeded < totalJobs*minCompletionRate/100 {
		t.Errorf("completion rate too low: %d/%d (%.1f%%)", succeeded, totalJobs, float64(succeeded)/float64(totalJobs)*100)
	}
}

func TestRecoveryLatency(t *testing.T) {
	root := t.TempDir()

	reg := opcodes.NewRegistry()
	reg.Register("noop", opcodes.NoopExecutor{})

	q1, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 32})
	if err != nil {
		t.Fatalf("failed to open queue: %v", err)
	}

	const totalJobs = 500
	for i := 0; i < totalJobs; i++ {
		if _, err := q1.SubmitJob([]types.OpInput{{Kind: "noop"}}); err != nil {
			t.Fatalf("failed to submit job: %v", err)
		}
	}

	if err := q1.Close(); err != nil {
		t.Fatalf("failed to close queue: %v", err)
	}

	startTime := time.Now()

	q2, err := jobqueue.New(jobqueue.Config{Root: root, BatchSize: 32})
	if err != nil {
		t.Fatalf("failed to reopen queue: %v", err)
	}
	defer q2.Close()

	runnable, err := q2.RecoverJobs()
	if err != nil {
		t.Fatalf("failed to recover jobs: %v", err)
	}

	recoveryTime := time.Since(startTime)

	t.Logf("=== Recovery Latency ===")
	t.Logf("Recovery time: %v", recoveryTime)
	t.Logf("Jobs recovered: %d", len(runnable))
	t.Logf("========================")

	if len(runnable) != totalJobs {
		t.Errorf("expected %d recovered jobs, got %d", totalJobs, len(runnable))
	}
	if recoveryTime > 3*time.Second {
		t.Errorf("recovery time %v exceeds 3s target", recoveryTime)
	}
}

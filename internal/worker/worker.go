// ============================================================================
// clusterqueue Worker - Task Execution Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Purpose: Each worker is an independent goroutine that repeatedly pulls the
// highest-priority ready Task from the pool and runs it under a
// per-task timeout.
//
// ============================================================================

package worker

import (
	"context"
	"time"
)

type goWorker struct {
	id   int
	pool *Pool
}

func newGoWorker(id int, pool *Pool) *goWorker {
	return &goWorker{id: id, pool: pool}
}

// run is the worker's main loop: pull, execute, report, repeat until the
// pool signals shutdown.
func (w *goWorker) run() {
	for {
		task, ok := w.pool.next()
		if !ok {
			return
		}

		start := time.Now()
		ctx := context.Background()
		var cancel context.CancelFunc
		if task.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		} else {
			ctx, cancel = context.WithCancel(ctx)
		}

		err := task.Run(ctx)
		cancel()

		w.pool.reportDone(task.JobID, Result{
			JobID:    task.JobID,
			Err:      err,
			Duration: time.Since(start),
		})
	}
}

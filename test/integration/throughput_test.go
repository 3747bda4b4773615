package integration

import (
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

func BenchmarkThroughput(b *testing.B) {
	reg := opcodes.NewRegistry()
	reg.Register("noop", opcodes.NoopExecutor{})

	q, err := jobqueue.New(jobqueue.Config{Root: b.TempDir(), BatchSize: 64})
	require.NoError(b, err)
	defer q.Close()

	pool := worker.NewPool(8, func(worker.Result) {})
	require.NoError(b, pool.Start())
	defer pool.TerminateWorkers()

	var proc *processor.Processor
	proc = processor.New(processor.Config{
		Queue:    q,
		Deps:     depmgr.New(),
		Registry: reg,
		Requeue: func(id types.JobID, priority int) {
			_ = pool.AddManyTasks([]worker.Task{{JobID: id, Priority: priority, Run: proc.Task(id)}})
		},
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch := make([][]types.OpInput, 1000)
		for j := range batch {
			batch[j] = []types.OpInput{{Kind: "noop"}}
		}
		results := q.SubmitManyJobs(batch)

		tasks := make([]worker.Task, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			tasks = append(tasks, worker.Task{JobID: r.JobID, Priority: types.PriorityDefault, Run: proc.Task(r.JobID)})
		}
		require.NoError(b, pool.AddManyTasks(tasks))
	}
	b.StopTimer()

	deadline := time.Now().Add(30 * time.Second)
	for pool.HasRunningTasks() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
}

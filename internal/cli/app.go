// ============================================================================
// clusterqueue CLI — Daemon Wiring
// ============================================================================
//
// Package: internal/cli
// File: app.go
// Purpose: App assembles the queue, worker pool, processor, dependency
// manager, metrics collector and (optional) replication listener into one
// runnable daemon: config in, collaborators wired, signal-driven graceful
// shutdown out.
//
// ============================================================================

package cli

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimbusvm/clusterqueue/internal/depmgr"
	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/metrics"
	"github.com/nimbusvm/clusterqueue/internal/opcodes"
	"github.com/nimbusvm/clusterqueue/internal/processor"
	"github.com/nimbusvm/clusterqueue/internal/replication"
	"github.com/nimbusvm/clusterqueue/internal/worker"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// App bundles one node's running collaborators.
type App struct {
	Queue     *jobqueue.Queue
	Pool      *worker.Pool
	Processor *processor.Processor
	Deps      *depmgr.Manager
	Metrics   *metrics.Collector
	Registry  *opcodes.Registry
	Replica   *replication.FileReplicator

	logger *slog.Logger
}

// NewApp builds (but does not start) every collaborator described by cfg.
func NewApp(cfg *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := opcodes.NewRegistry()
	reg.Register("noop", opcodes.NoopExecutor{})

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	var peers []replication.Peer
	for _, addr := range cfg.Cluster.Peers {
		runner, _, err := replication.DialPeer(addr)
		if err != nil {
			logger.Warn("failed to dial peer, continuing without it", "addr", addr, "error", err)
			continue
		}
		peers = append(peers, replication.Peer{Addr: addr, Runner: runner})
	}
	replicator := replication.New(peers, 5*time.Second, logger, collector)

	q, err := jobqueue.New(jobqueue.Config{
		Root:         cfg.Queue.Root,
		MaxQueueSize: cfg.Queue.MaxQueueSize,
		BatchSize:    cfg.Queue.BatchSize,
		Replicator:   replicator,
		Metrics:      collector,
	})
	if err != nil {
		return nil, err
	}

	deps := depmgr.New()

	workerCount := cfg.Worker.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	pool := worker.NewPool(workerCount, func(r worker.Result) {
		if r.Err != nil {
			logger.Debug("task dispatch returned error", "job_id", r.JobID, "error", r.Err, "duration", r.Duration)
		}
	})

	// proc's Requeue closure refers back to proc itself once dispatch and
	// re-dispatch are both driven through processor.Task; the variable is
	// declared first so the closure captures it by reference.
	var proc *processor.Processor
	proc = processor.New(processor.Config{
		Queue:    q,
		Deps:     deps,
		Registry: reg,
		Logger:   logger,
		Metrics:  collector,
		Requeue: func(id types.JobID, priority int) {
			_ = pool.AddManyTasks([]worker.Task{{JobID: id, Priority: priority, Run: proc.Task(id)}})
		},
	})

	return &App{
		Queue:     q,
		Pool:      pool,
		Processor: proc,
		Deps:      deps,
		Metrics:   collector,
		Registry:  reg,
		Replica:   replicator,
		logger:    logger,
	}, nil
}

// Start launches the worker pool and replays any work InspectQueue's
// recovery pass found left over from an unclean shutdown.
func (a *App) Start() error {
	if err := a.Pool.Start(); err != nil {
		return err
	}

	runnable, err := a.Queue.RecoverJobs()
	if err != nil {
		return err
	}

	tasks := make([]worker.Task, 0, len(runnable))
	for _, id := range runnable {
		job, err := a.Queue.GetJob(id)
		if err != nil {
			continue
		}
		priority := types.PriorityDefault
		for _, op := range job.Ops {
			if !op.Status.Terminal() {
				priority = op.Priority
				break
			}
		}
		tasks = append(tasks, worker.Task{JobID: id, Priority: priority, Run: a.Processor.Task(id)})
	}
	if len(tasks) > 0 {
		a.logger.Info("re-dispatching recovered jobs", "count", len(tasks))
		return a.Pool.AddManyTasks(tasks)
	}
	return nil
}

// Stop drains the queue and waits for in-flight work to settle.
func (a *App) Stop() {
	a.Queue.PrepareShutdown()
	a.Pool.TerminateWorkers()
	a.Queue.Shutdown()
}

// Submit dispatches ops as a new job and hands it to the pool immediately.
func (a *App) Submit(ops []types.OpInput) (types.JobID, error) {
	id, err := a.Queue.SubmitJob(ops)
	if err != nil {
		return 0, err
	}
	priority := types.PriorityDefault
	if len(ops) > 0 {
		priority = ops[0].Priority
	}
	if err := a.Pool.AddManyTasks([]worker.Task{{JobID: id, Priority: priority, Run: a.Processor.Task(id)}}); err != nil {
		return id, err
	}
	return id, nil
}

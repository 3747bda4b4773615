// ============================================================================
// clusterqueue Job Processor — Executor Callbacks
// ============================================================================
//
// Package: internal/processor
// File: callbacks.go
// Purpose: callbacks implements opcodes.Callbacks for exactly one
// (jobID, opIndex) pair. It never retains a pointer into the queue's cache;
// every call re-resolves the job through the queue façade, avoiding the
// cyclic processor<->job references.
//
// ============================================================================

package processor

import (
	"encoding/json"

	"github.com/nimbusvm/clusterqueue/internal/jobqueue"
	"github.com/nimbusvm/clusterqueue/internal/opcodes"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

type callbacks struct {
	p       *Processor
	jobID   types.JobID
	opIndex int
}

var _ opcodes.Callbacks = (*callbacks)(nil)

// NotifyStart flips the opcode WAITING -> RUNNING, stamping exec_timestamp.
func (c *callbacks) NotifyStart() error {
	var outcomeErr error
	shuttingDown := c.p.queue.ShuttingDown()
	err := c.p.queue.MutateJob(c.jobID, func(job *types.Job) error {
		op := &job.Ops[c.opIndex]
		switch op.Status {
		case types.OpCanceling:
			outcomeErr = opcodes.ErrCanceled
			return outcomeErr
		case types.OpWaiting:
			// expected path
		default:
			jobqueue.Fatal("processor: NotifyStart called with opcode %d of job %d in status %s", c.opIndex, c.jobID, op.Status)
		}
		if shuttingDown {
			outcomeErr = opcodes.ErrQueueShutdown
			return outcomeErr
		}
		op.Status = types.OpRunning
		now := types.NowMillis()
		op.ExecTimestamp = &now
		return nil
	})
	if outcomeErr != nil {
		return outcomeErr
	}
	return err
}

// Feedback appends a log line without forcing synchronous replication.
func (c *callbacks) Feedback(level, message string) {
	_ = c.p.queue.MutateJobNoReplicate(c.jobID, func(job *types.Job) error {
		job.LogSerial++
		op := &job.Ops[c.opIndex]
		encoded, err := json.Marshal(message)
		if err != nil {
			encoded = json.RawMessage(`""`)
		}
		op.Log = append(op.Log, types.LogEntry{
			Serial:    job.LogSerial,
			Timestamp: types.NowMillis(),
			Level:     level,
			Message:   encoded,
		})
		return nil
	})
}

// CheckCancel reports whether this opcode has been asked to cancel.
func (c *callbacks) CheckCancel() bool {
	job, err := c.p.queue.GetJob(c.jobID)
	if err != nil {
		return false
	}
	return job.Ops[c.opIndex].Status == types.OpCanceling
}

// CurrentPriority returns the opcode's live priority.
func (c *callbacks) CurrentPriority() int {
	job, err := c.p.queue.GetJob(c.jobID)
	if err != nil {
		return types.PriorityDefault
	}
	return job.Ops[c.opIndex].Priority
}

// SubmitManyJobs lets the running opcode fan out child jobs.
func (c *callbacks) SubmitManyJobs(batch [][]types.OpInput) ([]opcodes.SubmitOutcome, error) {
	results := c.p.queue.SubmitManyJobs(batch)
	out := make([]opcodes.SubmitOutcome, len(results))
	for i, r := range results {
		out[i] = opcodes.SubmitOutcome{JobID: r.JobID, Err: r.Err}
	}
	return out, nil
}

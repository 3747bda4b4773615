// ============================================================================
// clusterqueue Job Queue — Finalization Helpers
// ============================================================================
//
// Package: internal/jobqueue
// File: finalize.go
// Purpose: Shared opcode-list mutation helpers used both by startup recovery
// (RecoverJobs) and by internal/processor when a job's current opcode
// terminates with ERROR or CANCELED and every later opcode must be marked
// accordingly.
//
// ============================================================================

package jobqueue

import "github.com/nimbusvm/clusterqueue/pkg/types"

// MarkUnfinishedOpsError marks every non-terminal opcode from fromIndex
// onward as ERROR with message, and stamps each one's EndTimestamp. It does
// not persist; the caller (typically inside MutateJob's fn) is responsible
// for that.
func MarkUnfinishedOpsError(job *types.Job, fromIndex int, message string) {
	now := types.NowMillis()
	for i := fromIndex; i < len(job.Ops); i++ {
		op := &job.Ops[i]
		if op.Status.Terminal() {
			continue
		}
		op.Status = types.OpError
		op.Result = EncodeErrorResult(message)
		op.EndTimestamp = &now
	}
	finalizeJobTimestamp(job)
}

// MarkUnfinishedOpsCanceled marks every non-terminal opcode from fromIndex
// onward as CANCELED.
func MarkUnfinishedOpsCanceled(job *types.Job, fromIndex int) {
	now := types.NowMillis()
	for i := fromIndex; i < len(job.Ops); i++ {
		op := &job.Ops[i]
		if op.Status.Terminal() {
			continue
		}
		op.Status = types.OpCanceled
		op.EndTimestamp = &now
	}
	finalizeJobTimestamp(job)
}

// finalizeJobTimestamp sets job.EndTimestamp if the job's derived status is
// now terminal and it has not already been set, satisfying invariant 2.
func finalizeJobTimestamp(job *types.Job) {
	if job.Status().Terminal() && job.EndTimestamp == nil {
		now := types.NowMillis()
		job.EndTimestamp = &now
	}
}

// RecoverJobs implements the startup recovery pass (InspectQueue): QUEUED
// jobs are handed back for dispatch as-is;
// WAITING opcodes are reset to QUEUED so a freshly started worker pool
// re-attempts the lock acquire from scratch; RUNNING or CANCELING jobs
// cannot be trusted to reflect real in-flight state after a restart (no
// worker is actually holding their locks any more) so every one of their
// non-terminal opcodes is finalized as ERROR, the first with "Unclean
// master daemon shutdown" and any opcode after it with "Preceding opcode
// failed", matching invariant 1 (opcodes finalize in list order). It
// returns, in ascending id order, every job id the caller should hand to
// the worker pool for (re-)dispatch.
func (q *Queue) RecoverJobs() ([]types.JobID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var runnable []types.JobID
	for id, job := range q.cache {
		if job.Archived {
			continue
		}
		status := job.Status()
		if status.Terminal() {
			continue
		}

		switch status {
		case types.JobQueued:
			runnable = append(runnable, id)

		case types.JobWaiting:
			for i := range job.Ops {
				if job.Ops[i].Status == types.OpWaiting {
					job.Ops[i].Status = types.OpQueued
				}
			}
			if err := q.persistLocked(job); err != nil {
				return nil, err
			}
			runnable = append(runnable, id)

		case types.JobRunning, types.JobCanceling:
			fromIndex := firstNonTerminalIndex(job.Ops)
			MarkUnfinishedOpsError(job, fromIndex, "Unclean master daemon shutdown")
			relabelSubsequentFailures(job, fromIndex)
			if err := q.persistLocked(job); err != nil {
				return nil, err
			}
		}
	}

	sortJobIDs(runnable)
	return runnable, nil
}

func firstNonTerminalIndex(ops []types.Opcode) int {
	for i, op := range ops {
		if !op.Status.Terminal() {
			return i
		}
	}
	return len(ops)
}

// relabelSubsequentFailures rewrites every ERROR opcode after fromIndex
// (the one MarkUnfinishedOpsError stamped "Unclean master daemon shutdown")
// to carry the standard preceding-opcode-failed message instead.
func relabelSubsequentFailures(job *types.Job, fromIndex int) {
	for i := fromIndex + 1; i < len(job.Ops); i++ {
		op := &job.Ops[i]
		if op.Status == types.OpError {
			op.Result = EncodeErrorResult("Preceding opcode failed")
		}
	}
}

func sortJobIDs(ids []types.JobID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

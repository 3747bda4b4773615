// ============================================================================
// clusterqueue Job Queue — Lifecycle
// ============================================================================
//
// Package: internal/jobqueue
// File: queue_lifecycle.go
// Purpose: Drain flag, shutdown sequencing, and the change-notification
// wait used by long-polling status callers.
//
// ============================================================================

package jobqueue

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/nimbusvm/clusterqueue/internal/filestore"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// drainMarker is the JSON payload behind the queue.drained marker file.
// Only its presence is meaningful; the timestamp is carried for operators
// reading the file by hand.
type drainMarker struct {
	DrainedAt int64 `json:"drained_at_ms"`
}

// SetDrainFlag toggles whether new submissions are rejected. Jobs already
// queued continue to run to completion. The flag is persisted to the
// queue.drained marker file via the same atomic-write path job records use
// and best-effort replicated to peers, so a restart or a failover to
// another node preserves the drain state.
func (q *Queue) SetDrainFlag(drained bool) error {
	path := q.layout.DrainFlagPath()

	if drained {
		if err := q.store.Write(path, drainMarker{DrainedAt: types.NowMillis()}); err != nil {
			return fmt.Errorf("jobqueue: persist drain flag: %w", err)
		}
		if q.replica != nil {
			if err := q.replica.UpdateFile(path); err != nil {
				// Replication failures are logged by the replicator itself
				// and never fail the local write; see internal/replication.
				_ = err
			}
		}
	} else {
		if err := filestore.Remove(path); err != nil {
			return fmt.Errorf("jobqueue: clear drain flag: %w", err)
		}
		if q.replica != nil {
			if err := q.replica.RemoveFile(path); err != nil {
				_ = err
			}
		}
	}

	q.mu.Lock()
	q.drained = drained
	q.mu.Unlock()
	return nil
}

// Drained reports the current drain flag.
func (q *Queue) Drained() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.drained
}

// PrepareShutdown rejects all new submissions immediately, ahead of the
// worker pool actually stopping. It is idempotent.
func (q *Queue) PrepareShutdown() {
	q.mu.Lock()
	q.shuttingDown = true
	q.mu.Unlock()
}

// ShuttingDown reports whether PrepareShutdown has been called.
func (q *Queue) ShuttingDown() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuttingDown
}

// JobChangeResult is what WaitForJobChanges returns once it detects a
// change: the caller's requested field projection, plus every log entry
// newer than the caller's snapshot.
type JobChangeResult struct {
	Info []interface{}
	Log  []types.LogEntry
}

// WaitForJobChanges blocks until job id's requested fields or log tail
// diverge from the caller-supplied snapshot (prevInfo, prevLogSerial), or
// until timeout elapses.
//
// It returns ErrJobNotChanged (the JOB_NOTCHANGED sentinel) if timeout
// elapses with nothing new to report, and (nil, nil) if the job no longer
// exists — the caller's snapshot is moot once the job itself is gone. A job
// already past QUEUED/WAITING/RUNNING is reported immediately regardless of
// whether its projection differs from the snapshot, since a finished job
// will never change again and a caller blocked on it should not wait out
// the full timeout to learn that.
func (q *Queue) WaitForJobChanges(id types.JobID, fields []Field, prevInfo []interface{}, prevLogSerial int64, timeout time.Duration) (*JobChangeResult, error) {
	path := q.layout.JobPath(id)
	deadline := time.Now().Add(timeout)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			// A job generating many changes/messages in quick succession
			// gets a moment to settle before the next check, so a caller
			// polling a chatty job doesn't get woken once per line.
			time.Sleep(100 * time.Millisecond)
		}

		job, err := q.GetJob(id)
		if errors.Is(err, ErrJobNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if result := jobChangeResult(job, fields, prevInfo, prevLogSerial); result != nil {
			return result, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrJobNotChanged
		}
		if _, err := q.notifier.Wait(path, remaining); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrJobNotChanged
		}
	}
}

// jobChangeResult reports job's current projection if it already differs
// from the caller's snapshot, or if job has moved past the statuses that
// could still produce more changes; it returns nil when the caller should
// keep waiting.
func jobChangeResult(job *types.Job, fields []Field, prevInfo []interface{}, prevLogSerial int64) *JobChangeResult {
	status := job.Status()
	info := projectFields(job, fields)
	logEntries := jobLogSince(job, prevLogSerial)

	stillLive := status == types.JobQueued || status == types.JobRunning || status == types.JobWaiting
	infoChanged := !reflect.DeepEqual(info, prevInfo)
	logChanged := len(logEntries) > 0 && logEntries[0].Serial != prevLogSerial

	if !stillLive || infoChanged || logChanged {
		return &JobChangeResult{Info: info, Log: logEntries}
	}
	return nil
}

// jobLogSince collects every log entry across job's opcodes with a serial
// greater than prevLogSerial, sorted ascending by serial.
func jobLogSince(job *types.Job, prevLogSerial int64) []types.LogEntry {
	var out []types.LogEntry
	for _, op := range job.Ops {
		for _, entry := range op.Log {
			if entry.Serial > prevLogSerial {
				out = append(out, entry)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

// Shutdown stops the queue's durability and notification machinery. Callers
// should call PrepareShutdown first and wait for any driving worker pool to
// drain before calling Shutdown.
func (q *Queue) Shutdown() error {
	return q.Close()
}

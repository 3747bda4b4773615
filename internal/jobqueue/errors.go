// ============================================================================
// clusterqueue Job Queue — Error Taxonomy
// ============================================================================
//
// Package: internal/jobqueue
// File: errors.go
// Purpose: Sentinel errors and the ProgrammerError panic path.
//
// ============================================================================

package jobqueue

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by SubmitJob/SubmitManyJobs when the number
	// of persisted job records has reached the configured hard limit.
	ErrQueueFull = errors.New("jobqueue: queue is full")

	// ErrQueueDrained is returned by SubmitJob when the drain flag is set
	// and the caller did not use SubmitJobToDrainedQueue.
	ErrQueueDrained = errors.New("jobqueue: queue is drained")

	// ErrShuttingDown is returned by submission calls once PrepareShutdown
	// has been called.
	ErrShuttingDown = errors.New("jobqueue: queue is shutting down")

	// ErrJobNotFound is returned when a referenced job id has no record.
	ErrJobNotFound = errors.New("jobqueue: job not found")

	// ErrJobLost names a job that should be resident on disk but is missing
	// at the moment its record is needed. No function in this package
	// returns it; a job id with no cached record yields ErrJobNotFound.
	ErrJobLost = errors.New("jobqueue: job file lost")

	// ErrJobFileCorrupted names a job record that fails its checksum check.
	// No function in this package returns it: Restore passes on
	// filestore.ErrCorrupted, and inspect skips such records at startup.
	ErrJobFileCorrupted = errors.New("jobqueue: job file corrupted")

	// ErrNotCancelable is returned by CancelJob when the job's current
	// status cannot transition to CANCELING/CANCELED.
	ErrNotCancelable = errors.New("jobqueue: job cannot be canceled in its current status")

	// ErrArchived is returned when a write is attempted against an
	// archived (and therefore immutable) job.
	ErrArchived = errors.New("jobqueue: job is archived")

	// ErrJobNotChanged is WaitForJobChanges' JOB_NOTCHANGED sentinel: the
	// wait's timeout elapsed without the job's watched fields or log tail
	// diverging from the caller's snapshot.
	ErrJobNotChanged = errors.New("jobqueue: job not changed")
)

// ProgrammerError indicates an invariant violation that should never occur
// in correct code — e.g. an opcode list that fails DeriveStatus's
// assumptions, or a lock released twice. It is always fatal.
type ProgrammerError struct {
	Msg string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("jobqueue: programmer error: %s", e.Msg)
}

// Fatal panics with a ProgrammerError. Call sites use it for conditions the
// rest of the package has already proven cannot happen.
func Fatal(format string, args ...interface{}) {
	panic(&ProgrammerError{Msg: fmt.Sprintf(format, args...)})
}

// errorResult is the encoded payload of an opcode.Result on OpError,
// matching Ganeti's practice of surfacing a human message rather than a
// bare stack trace to callers that were never given the Go error type.
type errorResult struct {
	Error string `json:"error"`
}

// EncodeErrorResult marshals message into the standard opcode.Result shape
// used for every OpError transition in the package.
func EncodeErrorResult(message string) json.RawMessage {
	b, err := json.Marshal(errorResult{Error: message})
	if err != nil {
		Fatal("encode error result: %v", err)
	}
	return b
}

// ============================================================================
// clusterqueue Core Type Definitions
// ============================================================================
//
// Package: pkg/types
// Purpose: Core domain models for the job queue — opcodes, jobs, statuses.
//
// Design Principles:
//   1. Domain-Driven Design - business concepts as types
//   2. Type Safety - custom types prevent primitive obsession
//   3. JSON Serialization - full serialization support for the on-disk layout
//
// Core Types:
//   - Opcode: a single unit of work inside a Job, with its own status
//   - Job: an ordered sequence of Opcodes sharing one lifecycle
//   - JobStatus / OpStatus: status enums
//   - ReasonEntry: submission provenance trail
//
// Timestamps:
//   Unix milliseconds, for cross-platform portability and JSON round-tripping.
//
// ============================================================================

// Package types defines the core domain models for clusterqueue.
package types

import (
	"encoding/json"
	"time"
)

// JobID uniquely identifies a Job.
type JobID int64

// OpStatus represents the execution state of a single Opcode.
type OpStatus string

const (
	OpQueued    OpStatus = "QUEUED"
	OpWaiting   OpStatus = "WAITING"
	OpRunning   OpStatus = "RUNNING"
	OpCanceling OpStatus = "CANCELING"
	OpCanceled  OpStatus = "CANCELED"
	OpSuccess   OpStatus = "SUCCESS"
	OpError     OpStatus = "ERROR"
)

// Terminal reports whether s is one of the Opcode terminal statuses.
func (s OpStatus) Terminal() bool {
	switch s {
	case OpCanceled, OpSuccess, OpError:
		return true
	default:
		return false
	}
}

// JobStatus represents the derived execution state of a whole Job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobWaiting   JobStatus = "WAITING"
	JobRunning   JobStatus = "RUNNING"
	JobCanceling JobStatus = "CANCELING"
	JobCanceled  JobStatus = "CANCELED"
	JobSuccess   JobStatus = "SUCCESS"
	JobError     JobStatus = "ERROR"
)

// Terminal reports whether s is one of the Job terminal statuses.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCanceled, JobSuccess, JobError:
		return true
	default:
		return false
	}
}

// Priority levels. Lower numeric value is dispatched first. These mirror
// Ganeti's op priority scale rather than inventing a new one.
const (
	PriorityLowest  = 19
	PriorityLow     = 10
	PriorityNormal  = 0
	PriorityHigh    = -10
	PriorityHighest = -20
	PriorityDefault = PriorityNormal
)

// ReasonEntry records one hop of a job's submission provenance, e.g. the
// cluster user and command that caused the submission.
type ReasonEntry struct {
	Source    string `json:"source"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Dependency names another job whose status this opcode must observe before
// it may run.
type Dependency struct {
	JobID    JobID      `json:"job_id"`
	OnStatus []OpStatus `json:"on_status"` // empty means "any terminal status except CANCELED"
}

// OpInput is the opaque, executor-specific request payload for an Opcode.
// The concrete admin command handlers that interpret it are out of scope;
// clusterqueue treats it as an addressed blob plus metadata it must
// interpret itself (priority, dependencies, reason trail).
type OpInput struct {
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"params"`
	Priority  int             `json:"priority"`
	DependsOn []Dependency    `json:"depends_on,omitempty"`
	Reason    []ReasonEntry   `json:"reason,omitempty"`
}

// LogEntry is a single timestamped feedback line appended by the executor
// while an Opcode runs.
type LogEntry struct {
	Serial    int64           `json:"serial"`
	Timestamp int64           `json:"timestamp_ms"`
	Level     string          `json:"level"`
	Message   json.RawMessage `json:"message"`
}

// Opcode is one step of a Job's execution. Only Input, Status, Result, Log,
// Priority and the timestamps persist to disk; the rest of a Job's opcode
// bookkeeping (current iterator position, processor lock) is runtime-only
// and lives in the processor package instead.
type Opcode struct {
	Input  OpInput         `json:"input"`
	Status OpStatus        `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Log    []LogEntry      `json:"log,omitempty"`

	Priority int `json:"priority"`

	StartTimestamp *int64 `json:"start_timestamp_ms,omitempty"`
	ExecTimestamp  *int64 `json:"exec_timestamp_ms,omitempty"`
	EndTimestamp   *int64 `json:"end_timestamp_ms,omitempty"`
}

// Job is an ordered list of Opcodes sharing one lifecycle and one on-disk
// record. Status is always derived from Ops; it is never stored as an
// independent field (see DeriveStatus).
type Job struct {
	ID  JobID    `json:"id"`
	Ops []Opcode `json:"ops"`

	ReceivedTimestamp int64  `json:"received_timestamp_ms"`
	StartTimestamp    *int64 `json:"start_timestamp_ms,omitempty"`
	EndTimestamp      *int64 `json:"end_timestamp_ms,omitempty"`

	// LogSerial is the maximum LogEntry.Serial across all of the Job's
	// Opcodes; it is recomputed on Restore, never trusted from disk alone.
	LogSerial int64 `json:"log_serial"`

	Writable bool `json:"writable"`
	Archived bool `json:"archived"`
}

// DeriveStatus implements the job status derivation: the first
// CANCELING/ERROR/CANCELED opcode wins; otherwise the last opcode that is
// neither QUEUED nor SUCCESS wins; otherwise SUCCESS if every opcode
// succeeded, else QUEUED.
func DeriveStatus(ops []Opcode) JobStatus {
	for _, op := range ops {
		switch op.Status {
		case OpCanceling:
			return JobCanceling
		case OpError:
			return JobError
		case OpCanceled:
			return JobCanceled
		}
	}

	var last *Opcode
	for i := range ops {
		op := &ops[i]
		if op.Status != OpQueued && op.Status != OpSuccess {
			last = op
		}
	}
	if last != nil {
		return JobStatus(last.Status)
	}

	allSuccess := len(ops) > 0
	for _, op := range ops {
		if op.Status != OpSuccess {
			allSuccess = false
			break
		}
	}
	if allSuccess {
		return JobSuccess
	}
	return JobQueued
}

// Status is a convenience wrapper around DeriveStatus(j.Ops).
func (j *Job) Status() JobStatus {
	return DeriveStatus(j.Ops)
}

// NowMillis returns the current time truncated to Unix milliseconds, the
// timestamp unit used throughout the on-disk record.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

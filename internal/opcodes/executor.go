// ============================================================================
// clusterqueue Opcode Executors
// ============================================================================
//
// Package: internal/opcodes
// File: executor.go
// Purpose: Executor is the seam between the job processor's state machine
// and the actual cluster operation a given opcode Kind performs. Real
// operation handlers (instance creation, node add, disk replace, and the
// rest of the cluster's command surface) live outside this package's
// scope; Registry only needs to dispatch by Kind string and invoke
// whatever is registered, handing it the narrow Callbacks capability set
// internal/processor implements on the opcode's behalf.
//
// ============================================================================

package opcodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Sentinel errors an Executor returns to signal the processor's three
// non-ordinary outcomes. Any other returned error is
// treated as an opaque execution failure.
var (
	// ErrLockTimeout signals that the executor could not acquire the
	// cluster locks its opcode needs within its allotted timeout; the
	// processor leaves the opcode WAITING and retries with a new timeout.
	ErrLockTimeout = errors.New("opcodes: lock acquire timed out")

	// ErrCanceled signals that the executor observed CheckCancel() return
	// true and unwound cooperatively.
	ErrCanceled = errors.New("opcodes: execution canceled")

	// ErrQueueShutdown signals that the executor observed the queue
	// shutting down mid-execution and returned without completing.
	ErrQueueShutdown = errors.New("opcodes: queue is shutting down")
)

// SubmitOutcome mirrors jobqueue.SubmitResult without internal/opcodes
// depending on internal/jobqueue, for the SubmitManyJobs callback.
type SubmitOutcome struct {
	JobID types.JobID
	Err   error
}

// Callbacks is the capability surface the processor exposes to an
// Executor while its opcode runs. An Executor must
// never reach the queue, worker pool or dependency manager directly; this
// is its entire window onto them.
type Callbacks interface {
	// NotifyStart must be called once the executor has actually acquired
	// whatever locks it needs and is about to do real work. It flips the
	// opcode WAITING -> RUNNING and stamps exec_timestamp. It returns
	// ErrCanceled or ErrQueueShutdown if either was observed at the
	// moment of the call; the executor should stop immediately in that
	// case and propagate the same error.
	NotifyStart() error

	// Feedback appends one log line to the opcode's record at the given
	// level ("info", "warning", "error").
	Feedback(level, message string)

	// CheckCancel reports whether the opcode has been asked to cancel.
	// The executor should poll this at natural checkpoints and return
	// ErrCanceled promptly when it is true.
	CheckCancel() bool

	// CurrentPriority returns the opcode's current priority, for an
	// executor that forwards it to an external lock manager so waiters on
	// the same lock can be reprioritized.
	CurrentPriority() int

	// SubmitManyJobs lets an opcode spawn child jobs (e.g. an instance
	// reinstall fanning out into per-disk jobs) without reaching the
	// queue façade directly.
	SubmitManyJobs(batch [][]types.OpInput) ([]SubmitOutcome, error)
}

// Executor runs a single opcode's Kind against its Params and returns the
// JSON-encodable result to store, or an error. A context deadline, when
// set, is the executor's lock-acquire timeout for this attempt.
type Executor interface {
	Execute(ctx context.Context, kind string, params json.RawMessage, callbacks Callbacks) (json.RawMessage, error)
}

// Registry dispatches by opcode Kind to a registered Executor. An unknown
// Kind is an error rather than a silent no-op, since an opcode the cluster
// cannot execute must fail loudly rather than appear to have succeeded.
type Registry struct {
	handlers map[string]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Executor)}
}

// Register binds kind to executor, overwriting any prior binding.
func (r *Registry) Register(kind string, executor Executor) {
	r.handlers[kind] = executor
}

// Execute dispatches kind to its registered Executor.
func (r *Registry) Execute(ctx context.Context, kind string, params json.RawMessage, callbacks Callbacks) (json.RawMessage, error) {
	executor, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("opcodes: no executor registered for kind %q", kind)
	}
	return executor.Execute(ctx, kind, params, callbacks)
}

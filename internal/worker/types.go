package worker

import (
	"context"
	"time"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Task is a unit of dispatchable work. Run is invoked by a worker goroutine
// with a context canceled on Timeout (a non-positive Timeout means no
// deadline) or once Run returns; TerminateWorkers does not cancel it.
type Task struct {
	JobID    types.JobID
	Priority int
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Result reports how a dispatched Task finished.
type Result struct {
	JobID    types.JobID
	Err      error
	Duration time.Duration
}

// ============================================================================
// clusterqueue Job Queue — Record Serialization
// ============================================================================
//
// Package: internal/jobqueue
// File: codec.go
// Purpose: Serialize persists only the fields that belong on disk; Restore
// recomputes derived fields (LogSerial) instead of trusting them from a
// possibly-stale record.
//
// ============================================================================

package jobqueue

import (
	"github.com/nimbusvm/clusterqueue/internal/filestore"
	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Serialize writes job to path using the store's atomic, checksummed write
// path.
func Serialize(store *filestore.Store, path string, job *types.Job) error {
	return store.Write(path, job)
}

// Restore loads a job record from path and recomputes LogSerial from the
// opcodes' log entries, per invariant 3 (log_serial = max serial across all
// opcode logs).
func Restore(path string) (*types.Job, error) {
	var job types.Job
	if err := filestore.Load(path, &job); err != nil {
		return nil, err
	}

	var maxSerial int64
	for _, op := range job.Ops {
		for _, entry := range op.Log {
			if entry.Serial > maxSerial {
				maxSerial = entry.Serial
			}
		}
	}
	job.LogSerial = maxSerial

	return &job, nil
}

// ============================================================================
// clusterqueue Job Queue — Query
// ============================================================================
//
// Package: internal/jobqueue
// File: queue_query.go
// Purpose: Read-side access to job records: bulk listing, field projection,
// and the legacy positional query shape kept for older callers.
//
// ============================================================================

package jobqueue

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Filter narrows QueryJobs to a subset of jobs.
type Filter struct {
	IDs      []types.JobID // empty means "all jobs"
	Statuses []types.JobStatus

	// IncludeArchived extends the query to the archive directory tree, not
	// just the live cache. It is implied whenever IDs names specific jobs,
	// since a caller asking for a job by id expects an archived one to
	// still resolve; it matters on its own when a caller queries by status
	// (or lists everything) and wants archived jobs folded in too.
	IncludeArchived bool
}

func (f Filter) matches(job *types.Job) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == job.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		status := job.Status()
		found := false
		for _, s := range f.Statuses {
			if s == types.JobStatus(status) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// QueryJobs returns a snapshot of every job matching filter, sorted by id.
// Archived jobs are released from the live cache on archive (see
// archiveLocked), so they only surface here when filter.IDs names them
// specifically or filter.IncludeArchived is set; an unfiltered QueryJobs
// call never pays for a directory walk of the archive tree.
func (q *Queue) QueryJobs(filter Filter) []*types.Job {
	q.mu.RLock()
	out := make([]*types.Job, 0, len(q.cache))
	found := make(map[types.JobID]bool, len(filter.IDs))
	for _, job := range q.cache {
		if filter.matches(job) {
			out = append(out, job)
		}
		if len(filter.IDs) > 0 {
			found[job.ID] = true
		}
	}
	q.mu.RUnlock()

	switch {
	case len(filter.IDs) > 0:
		for _, id := range filter.IDs {
			if found[id] {
				continue
			}
			job, err := Restore(q.layout.ArchivePath(id))
			if err != nil {
				continue
			}
			job.Archived = true
			if filter.matches(job) {
				out = append(out, job)
			}
		}
	case filter.IncludeArchived:
		for _, job := range q.scanArchive() {
			if filter.matches(job) {
				out = append(out, job)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// scanArchive walks every shard directory under the archive tree and loads
// what it finds, tolerating corrupted or half-written records the same way
// inspect's startup scan does.
func (q *Queue) scanArchive() []*types.Job {
	shards, err := os.ReadDir(q.layout.ArchiveDir())
	if err != nil {
		return nil
	}

	var out []*types.Job
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(q.layout.ArchiveDir(), shard.Name())
		entries, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			job, err := Restore(filepath.Join(shardDir, entry.Name()))
			if err != nil {
				continue
			}
			job.Archived = true
			out = append(out, job)
		}
	}
	return out
}

// Field is a projectable job attribute for OldStyleQueryJobs, matching
// Ganeti's selector strings.
type Field string

const (
	FieldID       Field = "id"
	FieldStatus   Field = "status"
	FieldOpCodes  Field = "ops"
	FieldReceived Field = "received_ts"
	FieldStart    Field = "start_ts"
	FieldEnd      Field = "end_ts"
	FieldPriority Field = "priority"
)

// OldStyleQueryJobs reproduces the legacy positional-field query shape:
// callers name fields by string and get back, per job, a slice of values in
// the same order. A job not resident in the live cache is looked up in the
// archive before its position is given up as unknown (nil), preserving
// index alignment with the requested ids.
func (q *Queue) OldStyleQueryJobs(ids []types.JobID, fields []Field) [][]interface{} {
	q.mu.RLock()
	rows := make([][]interface{}, len(ids))
	var missing []int
	for i, id := range ids {
		job, ok := q.cache[id]
		if !ok {
			missing = append(missing, i)
			continue
		}
		rows[i] = projectFields(job, fields)
	}
	q.mu.RUnlock()

	for _, i := range missing {
		job, err := Restore(q.layout.ArchivePath(ids[i]))
		if err != nil {
			continue
		}
		rows[i] = projectFields(job, fields)
	}
	return rows
}

func projectFields(job *types.Job, fields []Field) []interface{} {
	row := make([]interface{}, len(fields))
	for j, f := range fields {
		row[j] = projectField(job, f)
	}
	return row
}

func projectField(job *types.Job, f Field) interface{} {
	switch f {
	case FieldID:
		return job.ID
	case FieldStatus:
		return job.Status()
	case FieldOpCodes:
		return job.Ops
	case FieldReceived:
		return job.ReceivedTimestamp
	case FieldStart:
		return job.StartTimestamp
	case FieldEnd:
		return job.EndTimestamp
	case FieldPriority:
		if len(job.Ops) == 0 {
			return types.PriorityDefault
		}
		return job.Ops[0].Priority
	default:
		return nil
	}
}

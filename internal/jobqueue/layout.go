// ============================================================================
// clusterqueue Job Queue — Serial Allocator & On-Disk Layout
// ============================================================================
//
// Package: internal/jobqueue
// File: layout.go
// Purpose: Job id allocation and the sharded on-disk file layout.
//
// Layout:
//
//	<root>/serial                      decimal text, last allocated id
//	<root>/jobs/job-<id>                live job record
//	<root>/archive/<shard>/job-<id>     archived job record, shard = id/10000*10000
//
// Allocation:
//
//	AllocateIds(n) reserves n consecutive ids by reading the serial file,
//	computing the new high-water mark, and atomically writing it back
//	(write-temp-then-rename, the same primitive internal/filestore uses for
//	job records themselves).
//
// ============================================================================

package jobqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

const shardSize = 10000

// Layout resolves job ids to on-disk paths and allocates new ids.
type Layout struct {
	root string

	mu   sync.Mutex
	last int64
}

// NewLayout creates the on-disk directory structure under root (jobs/,
// archive/, and the serial file) if it does not already exist, and loads
// the current high-water mark from the serial file.
func NewLayout(root string) (*Layout, error) {
	for _, dir := range []string{root, filepath.Join(root, "jobs"), filepath.Join(root, "archive")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create layout dir %s: %w", dir, err)
		}
	}

	l := &Layout{root: root}
	serial, err := l.readSerial()
	if err != nil {
		return nil, err
	}
	l.last = serial
	return l, nil
}

func (l *Layout) serialPath() string {
	return filepath.Join(l.root, "serial")
}

func (l *Layout) readSerial() (int64, error) {
	b, err := os.ReadFile(l.serialPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read serial: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse serial %q: %w", s, err)
	}
	return v, nil
}

func (l *Layout) writeSerial(v int64) error {
	tmp := l.serialPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(v, 10)), 0o644); err != nil {
		return fmt.Errorf("write serial temp: %w", err)
	}
	if err := os.Rename(tmp, l.serialPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename serial: %w", err)
	}
	return nil
}

// AllocateIds reserves n consecutive job ids and returns them in ascending
// order. n must be positive.
func (l *Layout) AllocateIds(n int) ([]types.JobID, error) {
	if n <= 0 {
		return nil, fmt.Errorf("jobqueue: AllocateIds: n must be positive, got %d", n)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]types.JobID, n)
	for i := 0; i < n; i++ {
		l.last++
		ids[i] = types.JobID(l.last)
	}
	if err := l.writeSerial(l.last); err != nil {
		l.last -= int64(n)
		return nil, err
	}
	return ids, nil
}

// JobPath returns the path of a live job record.
func (l *Layout) JobPath(id types.JobID) string {
	return filepath.Join(l.root, "jobs", jobFileName(id))
}

// ArchivePath returns the path an archived job record would occupy.
func (l *Layout) ArchivePath(id types.JobID) string {
	shard := (int64(id) / shardSize) * shardSize
	return filepath.Join(l.root, "archive", fmt.Sprintf("%05d", shard), jobFileName(id))
}

func jobFileName(id types.JobID) string {
	return fmt.Sprintf("job-%d", id)
}

// JobsDir returns the directory holding live job records.
func (l *Layout) JobsDir() string {
	return filepath.Join(l.root, "jobs")
}

// ArchiveDir returns the directory holding archived job records.
func (l *Layout) ArchiveDir() string {
	return filepath.Join(l.root, "archive")
}

// SerialPath returns the path of the serial allocator file, exposed so the
// queue can replicate it to peers before persisting any job whose id it
// covers.
func (l *Layout) SerialPath() string {
	return l.serialPath()
}

// DrainFlagPath returns the path of the queue-wide drain marker file;
// presence of the file means the queue is drained.
func (l *Layout) DrainFlagPath() string {
	return filepath.Join(l.root, "queue.drained")
}

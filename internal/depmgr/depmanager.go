// ============================================================================
// clusterqueue Dependency Manager
// ============================================================================
//
// Package: internal/depmgr
// File: depmanager.go
// Purpose: Tracks jobs waiting on another job's terminal status, and wakes
// them when that job finishes.
//
// Outcomes (CheckAndRegister):
//   CONTINUE   - the dependency is already satisfied, proceed now
//   WAIT       - the dependency job has not finished, caller re-parks
//   CANCEL     - the dependency job was canceled and CANCELED wasn't an
//                acceptable terminal status, caller should cancel too
//   WRONGSTATUS - the dependency finished in a status the caller didn't
//                 accept
//   ERROR      - the dependency is the same job as the caller
//
// Concurrency:
//   One mutex guards the waiters map. The caller supplies a getStatus
//   closure rather than the manager holding a reference to the job store,
//   keeping this package free of any dependency on internal/jobqueue.
//
// ============================================================================

package depmgr

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// Outcome is the result of CheckAndRegister.
type Outcome int

const (
	Continue Outcome = iota
	Wait
	Cancel
	WrongStatus
	Error
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Wait:
		return "WAIT"
	case Cancel:
		return "CANCEL"
	case WrongStatus:
		return "WRONGSTATUS"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusLookup resolves the current terminal-or-not status of a job. It
// returns ok=false if the job is unknown.
type StatusLookup func(types.JobID) (status types.OpStatus, ok bool)

// Manager tracks dependency waiters.
type Manager struct {
	mu      sync.Mutex
	waiters map[types.JobID]mapset.Set[types.JobID] // depJobID -> waiting job ids
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{waiters: make(map[types.JobID]mapset.Set[types.JobID])}
}

// CheckAndRegister checks whether job may proceed past its dependency on
// depJobID being in one of onStatus (an empty onStatus accepts any terminal
// status except CANCELED, which yields Cancel). If the dependency has not finished, job is registered as a
// waiter and Wait is returned; the caller is expected to re-park the job
// and call CheckAndRegister again once notified via NotifyWaiters.
func (m *Manager) CheckAndRegister(job types.JobID, depJobID types.JobID, onStatus []types.OpStatus, getStatus StatusLookup) (Outcome, string) {
	if job == depJobID {
		return Error, fmt.Sprintf("job %d cannot depend on itself", job)
	}

	status, ok := getStatus(depJobID)
	if !ok {
		return Error, fmt.Sprintf("dependency job %d does not exist", depJobID)
	}

	if !status.Terminal() {
		m.mu.Lock()
		set, exists := m.waiters[depJobID]
		if !exists {
			set = mapset.NewSet[types.JobID]()
			m.waiters[depJobID] = set
		}
		set.Add(job)
		m.mu.Unlock()
		return Wait, ""
	}

	m.mu.Lock()
	if set, exists := m.waiters[depJobID]; exists {
		set.Remove(job)
		if set.Cardinality() == 0 {
			delete(m.waiters, depJobID)
		}
	}
	m.mu.Unlock()

	if len(onStatus) == 0 {
		if status == types.OpCanceled {
			return Cancel, fmt.Sprintf("dependency job %d was canceled", depJobID)
		}
		return Continue, ""
	}

	for _, want := range onStatus {
		if status == want {
			return Continue, ""
		}
	}

	if status == types.OpCanceled {
		return Cancel, fmt.Sprintf("dependency job %d was canceled", depJobID)
	}
	return WrongStatus, fmt.Sprintf("dependency job %d finished with status %s, wanted one of %v", depJobID, status, onStatus)
}

// NotifyWaiters returns the set of job ids that had registered a dependency
// on jobID and removes that bookkeeping; callers re-enqueue each returned
// job for processing.
func (m *Manager) NotifyWaiters(jobID types.JobID) []types.JobID {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.waiters[jobID]
	if !ok {
		return nil
	}
	delete(m.waiters, jobID)
	return set.ToSlice()
}

// JobWaiting reports whether job is currently registered as a waiter on any
// dependency.
func (m *Manager) JobWaiting(job types.JobID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, set := range m.waiters {
		if set.Contains(job) {
			return true
		}
	}
	return false
}

// LockInfo exposes pending dependency entries for lock-manager introspection
// (originally Ganeti's AddToLockMonitor). Each entry names the job being
// waited on and the number of jobs currently parked on it.
type LockInfo struct {
	DepJobID    types.JobID
	WaiterCount int
}

// GetLockInfo returns the current set of outstanding dependency waits.
func (m *Manager) GetLockInfo() []LockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := make([]LockInfo, 0, len(m.waiters))
	for depJobID, set := range m.waiters {
		info = append(info, LockInfo{DepJobID: depJobID, WaiterCount: set.Cardinality()})
	}
	return info
}

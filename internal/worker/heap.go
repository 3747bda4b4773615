package worker

import "github.com/nimbusvm/clusterqueue/pkg/types"

// item wraps a Task with the bookkeeping the priority heap needs: seq breaks
// ties between equal priorities in submission order, and index lets
// ChangeTaskPriority find and re-heapify a specific entry in O(log n).
type item struct {
	task  Task
	seq   int64
	index int
}

// taskHeap orders items by Priority ascending (Ganeti priority semantics:
// lower numeric value runs first), then by seq ascending for FIFO tiebreak.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// findByJobID is a linear scan of the heap by job id. ChangeTaskPriority
// does not call it: it looks entries up through the pool's jobIndex map.
func (h taskHeap) findByJobID(id types.JobID) *item {
	for _, it := range h {
		if it.task.JobID == id {
			return it
		}
	}
	return nil
}

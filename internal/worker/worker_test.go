package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

func TestNewPool(t *testing.T) {
	pool := NewPool(4, nil)
	assert.NotNil(t, pool)
	assert.False(t, pool.IsStarted())
	assert.Equal(t, 4, pool.WorkerCount())
}

func TestPool_DispatchesInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []types.JobID

	pool := NewPool(1, nil)
	require.NoError(t, pool.Start())
	defer pool.TerminateWorkers()

	pool.SetActive(false)

	var wg sync.WaitGroup
	mk := func(id types.JobID, prio int) Task {
		wg.Add(1)
		return Task{
			JobID:    id,
			Priority: prio,
			Run: func(ctx context.Context) error {
				defer wg.Done()
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return nil
			},
		}
	}

	require.NoError(t, pool.AddManyTasks([]Task{
		mk(1, types.PriorityLow),
		mk(2, types.PriorityHigh),
		mk(3, types.PriorityNormal),
	}))

	pool.SetActive(true)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, types.JobID(2), order[0])
	assert.Equal(t, types.JobID(3), order[1])
	assert.Equal(t, types.JobID(1), order[2])
}

func TestPool_ChangeTaskPriority_ReordersQueue(t *testing.T) {
	var mu sync.Mutex
	var order []types.JobID
	var wg sync.WaitGroup

	pool := NewPool(1, nil)
	require.NoError(t, pool.Start())
	defer pool.TerminateWorkers()
	pool.SetActive(false)

	mk := func(id types.JobID, prio int) Task {
		wg.Add(1)
		return Task{
			JobID:    id,
			Priority: prio,
			Run: func(ctx context.Context) error {
				defer wg.Done()
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return nil
			},
		}
	}

	require.NoError(t, pool.AddManyTasks([]Task{
		mk(1, types.PriorityNormal),
		mk(2, types.PriorityNormal),
	}))

	assert.True(t, pool.ChangeTaskPriority(2, types.PriorityHigh))
	assert.False(t, pool.ChangeTaskPriority(999, types.PriorityHigh))

	pool.SetActive(true)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, types.JobID(2), order[0])
}

func TestPool_HasRunningTasks(t *testing.T) {
	pool := NewPool(1, nil)
	require.NoError(t, pool.Start())
	defer pool.TerminateWorkers()

	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.AddManyTasks([]Task{{
		JobID: 1,
		Run: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	}}))

	<-started
	assert.True(t, pool.HasRunningTasks())
	close(release)

	require.Eventually(t, func() bool { return !pool.HasRunningTasks() }, time.Second, 5*time.Millisecond)
}

func TestPool_TaskTimeout(t *testing.T) {
	pool := NewPool(1, nil)
	require.NoError(t, pool.Start())
	defer pool.TerminateWorkers()

	var gotErr error
	var done int32

	pool2 := NewPool(1, func(r Result) {
		gotErr = r.Err
		atomic.StoreInt32(&done, 1)
	})
	require.NoError(t, pool2.Start())
	defer pool2.TerminateWorkers()

	require.NoError(t, pool2.AddManyTasks([]Task{{
		JobID:   1,
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, gotErr, context.DeadlineExceeded)
}

func TestPool_TerminateWorkers_WaitsForRunningTask(t *testing.T) {
	pool := NewPool(1, nil)
	require.NoError(t, pool.Start())

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, pool.AddManyTasks([]Task{{
		JobID: 1,
		Run: func(ctx context.Context) error {
			close(started)
			time.Sleep(30 * time.Millisecond)
			close(finished)
			return errors.New("boom")
		},
	}}))

	<-started
	pool.TerminateWorkers()

	select {
	case <-finished:
	default:
		t.Fatal("TerminateWorkers returned before the running task finished")
	}
}

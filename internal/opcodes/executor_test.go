package opcodes

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

// fakeCallbacks is a minimal Callbacks implementation for exercising
// Executor/Registry without a real processor.
type fakeCallbacks struct {
	started  bool
	canceled bool
	logs     []string
}

func (f *fakeCallbacks) NotifyStart() error {
	f.started = true
	return nil
}

func (f *fakeCallbacks) Feedback(level, message string) {
	f.logs = append(f.logs, level+": "+message)
}

func (f *fakeCallbacks) CheckCancel() bool { return f.canceled }

func (f *fakeCallbacks) CurrentPriority() int { return types.PriorityDefault }

func (f *fakeCallbacks) SubmitManyJobs(batch [][]types.OpInput) ([]SubmitOutcome, error) {
	return nil, nil
}

func TestRegistry_DispatchesByKind(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", NoopExecutor{})

	cb := &fakeCallbacks{}
	result, err := r.Execute(context.Background(), "noop", nil, cb)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result))
	assert.True(t, cb.started)
	assert.Contains(t, cb.logs[0], "noop")
}

func TestRegistry_UnknownKindErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "does-not-exist", nil, &fakeCallbacks{})
	assert.Error(t, err)
}

func TestSimulatedExecutor_RespectsContextCancel(t *testing.T) {
	s := SimulatedExecutor{MaxDelay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Execute(ctx, "k", json.RawMessage(`{}`), &fakeCallbacks{})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestSimulatedExecutor_AlwaysFails(t *testing.T) {
	s := SimulatedExecutor{FailureRate: 1}
	_, err := s.Execute(context.Background(), "k", nil, &fakeCallbacks{})
	assert.Error(t, err)
}

func TestSimulatedExecutor_CooperativeCancel(t *testing.T) {
	s := SimulatedExecutor{MaxDelay: 200 * time.Millisecond}
	cb := &fakeCallbacks{canceled: true}
	_, err := s.Execute(context.Background(), "k", nil, cb)
	assert.ErrorIs(t, err, ErrCanceled)
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus_AllQueued(t *testing.T) {
	ops := []Opcode{{Status: OpQueued}, {Status: OpQueued}}
	assert.Equal(t, JobQueued, DeriveStatus(ops))
}

func TestDeriveStatus_AllSuccess(t *testing.T) {
	ops := []Opcode{{Status: OpSuccess}, {Status: OpSuccess}}
	assert.Equal(t, JobSuccess, DeriveStatus(ops))
}

func TestDeriveStatus_RunningWins(t *testing.T) {
	ops := []Opcode{{Status: OpSuccess}, {Status: OpRunning}, {Status: OpQueued}}
	assert.Equal(t, JobRunning, DeriveStatus(ops))
}

func TestDeriveStatus_ErrorTakesPriorityOverLaterOps(t *testing.T) {
	ops := []Opcode{{Status: OpSuccess}, {Status: OpError}, {Status: OpQueued}}
	assert.Equal(t, JobError, DeriveStatus(ops))
}

func TestDeriveStatus_CancelingBeatsRunning(t *testing.T) {
	ops := []Opcode{{Status: OpCanceling}, {Status: OpRunning}}
	assert.Equal(t, JobCanceling, DeriveStatus(ops))
}

func TestDeriveStatus_Empty(t *testing.T) {
	assert.Equal(t, JobQueued, DeriveStatus(nil))
}

func TestOpStatus_Terminal(t *testing.T) {
	assert.True(t, OpSuccess.Terminal())
	assert.True(t, OpError.Terminal())
	assert.True(t, OpCanceled.Terminal())
	assert.False(t, OpRunning.Terminal())
	assert.False(t, OpQueued.Terminal())
}

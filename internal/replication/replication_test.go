package replication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/clusterqueue/internal/rpctransport"
)

type fakeRunner struct {
	fail        bool
	updateCalls int32
	renameCalls int32
	purgeCalls  int32
}

func (f *fakeRunner) UpdateFile(ctx context.Context, req *rpctransport.UpdateFileRequest) (*rpctransport.UpdateFileResponse, error) {
	atomic.AddInt32(&f.updateCalls, 1)
	if f.fail {
		return nil, errors.New("peer unreachable")
	}
	return &rpctransport.UpdateFileResponse{}, nil
}

func (f *fakeRunner) RenameFile(ctx context.Context, req *rpctransport.RenameFileRequest) (*rpctransport.RenameFileResponse, error) {
	atomic.AddInt32(&f.renameCalls, 1)
	if f.fail {
		return nil, errors.New("peer unreachable")
	}
	return &rpctransport.RenameFileResponse{}, nil
}

func (f *fakeRunner) Purge(ctx context.Context, req *rpctransport.PurgeRequest) (*rpctransport.PurgeResponse, error) {
	atomic.AddInt32(&f.purgeCalls, 1)
	if f.fail {
		return nil, errors.New("peer unreachable")
	}
	return &rpctransport.PurgeResponse{}, nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileReplicator_UpdateFile_FansOutToAllPeers(t *testing.T) {
	r1, r2 := &fakeRunner{}, &fakeRunner{}
	repl := New([]Peer{{Addr: "peer1", Runner: r1}, {Addr: "peer2", Runner: r2}}, time.Second, nil, nil)

	path := writeTempFile(t, `{"id":1}`)
	require.NoError(t, repl.UpdateFile(path))

	assert.EqualValues(t, 1, r1.updateCalls)
	assert.EqualValues(t, 1, r2.updateCalls)
}

func TestFileReplicator_UpdateFile_NoPeersIsNoop(t *testing.T) {
	repl := New(nil, time.Second, nil, nil)
	path := writeTempFile(t, `{"id":1}`)
	assert.NoError(t, repl.UpdateFile(path))
}

func TestFileReplicator_UpdateFile_MinorityFailureStillSucceeds(t *testing.T) {
	healthy := &fakeRunner{}
	unhealthy := &fakeRunner{fail: true}
	repl := New([]Peer{
		{Addr: "a", Runner: healthy},
		{Addr: "b", Runner: healthy},
		{Addr: "c", Runner: unhealthy},
	}, time.Second, nil, nil)

	path := writeTempFile(t, `{"id":1}`)
	assert.NoError(t, repl.UpdateFile(path))
	assert.EqualValues(t, 1, unhealthy.updateCalls)
}

func TestFileReplicator_RenameFile_FansOut(t *testing.T) {
	r1 := &fakeRunner{}
	repl := New([]Peer{{Addr: "peer1", Runner: r1}}, time.Second, nil, nil)

	require.NoError(t, repl.RenameFile("/old", "/new"))
	assert.EqualValues(t, 1, r1.renameCalls)
}

func TestFileReplicator_RemoveFile_FansOutAsPurge(t *testing.T) {
	r1 := &fakeRunner{}
	repl := New([]Peer{{Addr: "peer1", Runner: r1}}, time.Second, nil, nil)

	require.NoError(t, repl.RemoveFile("/queue/queue.drained"))
	assert.EqualValues(t, 1, r1.purgeCalls)
}

func TestFileReplicator_UpdateFile_MissingFileErrors(t *testing.T) {
	repl := New([]Peer{{Addr: "peer1", Runner: &fakeRunner{}}}, time.Second, nil, nil)
	err := repl.UpdateFile(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

type fakeMetrics struct {
	failures []string
}

func (f *fakeMetrics) ReplicationFailure(op string) {
	f.failures = append(f.failures, op)
}

func TestFileReplicator_UpdateFile_FailureReportsMetric(t *testing.T) {
	fm := &fakeMetrics{}
	repl := New([]Peer{{Addr: "peer1", Runner: &fakeRunner{fail: true}}}, time.Second, nil, fm)

	path := writeTempFile(t, `{"id":1}`)
	require.NoError(t, repl.UpdateFile(path))

	assert.Equal(t, []string{"UpdateFile"}, fm.failures)
}

package rpctransport

import "github.com/nimbusvm/clusterqueue/pkg/types"

// UpdateFileRequest pushes one job record's full bytes to a peer.
type UpdateFileRequest struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

// UpdateFileResponse is empty on success; transport-level errors surface as
// the gRPC call's error instead of a field here.
type UpdateFileResponse struct{}

// RenameFileRequest replicates a queued-to-archive rename.
type RenameFileRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

type RenameFileResponse struct{}

// PurgeRequest removes a file on the peer. Its one sender is
// FileReplicator.RemoveFile, used when a drain-flag marker file is cleared
// on the master and must disappear on every peer too.
type PurgeRequest struct {
	Path string `json:"path"`
}

type PurgeResponse struct{}

// SubmitJobRequest carries a job submission to whichever node holds the
// master role.
type SubmitJobRequest struct {
	Ops []types.OpInput `json:"ops"`
}

type SubmitJobResponse struct {
	JobID types.JobID `json:"job_id"`
	Error string      `json:"error,omitempty"`
}

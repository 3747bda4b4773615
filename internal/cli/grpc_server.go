// ============================================================================
// clusterqueue CLI — Replication & Remote Submission Listener
// ============================================================================
//
// Package: internal/cli
// File: grpc_server.go
// Purpose: grpcServer implements rpctransport.JobQueueServiceServer on
// behalf of App, applying replicated writes from peers and accepting
// remote job submissions. Every cluster node is assumed to share the same
// on-disk root layout (Ganeti's master-candidate nodes all keep their
// queue under the identical /var/lib/ganeti path), so a replicated path is
// applied as-is rather than rewritten per node.
//
// ============================================================================

package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nimbusvm/clusterqueue/internal/rpctransport"
)

type grpcServer struct {
	app *App
}

// newGRPCServer wraps app for registration with rpctransport.RegisterJobQueueServiceServer.
func newGRPCServer(app *App) *grpcServer {
	return &grpcServer{app: app}
}

func (s *grpcServer) UpdateFile(ctx context.Context, req *rpctransport.UpdateFileRequest) (*rpctransport.UpdateFileResponse, error) {
	if err := writeAtomic(req.Path, req.Data); err != nil {
		return nil, err
	}
	return &rpctransport.UpdateFileResponse{}, nil
}

func (s *grpcServer) RenameFile(ctx context.Context, req *rpctransport.RenameFileRequest) (*rpctransport.RenameFileResponse, error) {
	if err := os.MkdirAll(filepath.Dir(req.NewPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.Rename(req.OldPath, req.NewPath); err != nil {
		return nil, err
	}
	return &rpctransport.RenameFileResponse{}, nil
}

func (s *grpcServer) Purge(ctx context.Context, req *rpctransport.PurgeRequest) (*rpctransport.PurgeResponse, error) {
	if err := os.Remove(req.Path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return &rpctransport.PurgeResponse{}, nil
}

func (s *grpcServer) SubmitJob(ctx context.Context, req *rpctransport.SubmitJobRequest) (*rpctransport.SubmitJobResponse, error) {
	id, err := s.app.Submit(req.Ops)
	if err != nil {
		return &rpctransport.SubmitJobResponse{Error: err.Error()}, nil
	}
	return &rpctransport.SubmitJobResponse{JobID: id}, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".replica-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

package replication

import (
	"context"

	"google.golang.org/grpc"

	"github.com/nimbusvm/clusterqueue/internal/rpctransport"
)

// grpcRunner adapts a dialed *grpc.ClientConn to RPCRunner.
type grpcRunner struct {
	client rpctransport.JobQueueServiceClient
}

// DialPeer connects to a peer node and returns an RPCRunner backed by a
// real gRPC connection over internal/rpctransport.
func DialPeer(addr string) (RPCRunner, *grpc.ClientConn, error) {
	conn, err := rpctransport.DialPeer(addr)
	if err != nil {
		return nil, nil, err
	}
	return &grpcRunner{client: rpctransport.NewJobQueueServiceClient(conn)}, conn, nil
}

func (g *grpcRunner) UpdateFile(ctx context.Context, req *rpctransport.UpdateFileRequest) (*rpctransport.UpdateFileResponse, error) {
	return g.client.UpdateFile(ctx, req)
}

func (g *grpcRunner) RenameFile(ctx context.Context, req *rpctransport.RenameFileRequest) (*rpctransport.RenameFileResponse, error) {
	return g.client.RenameFile(ctx, req)
}

func (g *grpcRunner) Purge(ctx context.Context, req *rpctransport.PurgeRequest) (*rpctransport.PurgeResponse, error) {
	return g.client.Purge(ctx, req)
}

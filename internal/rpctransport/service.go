// ============================================================================
// clusterqueue RPC Transport — JobQueueService
// ============================================================================
//
// Package: internal/rpctransport
// File: service.go
// Purpose: hand-authored equivalent of a protoc-gen-go-grpc output for the
// file-replication and remote-submission RPCs internal/replication and
// internal/cli need: the same ServiceDesc/Handler/Client layout a real
// generator would produce, substituting JSON messages for protobuf-generated
// structs since no .proto exists for this service.
//
// ============================================================================

package rpctransport

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "clusterqueue.v1.JobQueueService"

// JobQueueServiceServer is the server-side contract a node's replication
// listener and remote-submission endpoint implement.
type JobQueueServiceServer interface {
	UpdateFile(context.Context, *UpdateFileRequest) (*UpdateFileResponse, error)
	RenameFile(context.Context, *RenameFileRequest) (*RenameFileResponse, error)
	Purge(context.Context, *PurgeRequest) (*PurgeResponse, error)
	SubmitJob(context.Context, *SubmitJobRequest) (*SubmitJobResponse, error)
}

// JobQueueServiceClient is the client-side contract internal/replication
// drives; its SubmitJob method is the client side of remote submission.
type JobQueueServiceClient interface {
	UpdateFile(ctx context.Context, in *UpdateFileRequest, opts ...grpc.CallOption) (*UpdateFileResponse, error)
	RenameFile(ctx context.Context, in *RenameFileRequest, opts ...grpc.CallOption) (*RenameFileResponse, error)
	Purge(ctx context.Context, in *PurgeRequest, opts ...grpc.CallOption) (*PurgeResponse, error)
	SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error)
}

type jobQueueServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewJobQueueServiceClient wraps cc, which must already have been dialed
// with grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName))
// so every call on it negotiates the JSON codec registered in codec.go.
func NewJobQueueServiceClient(cc grpc.ClientConnInterface) JobQueueServiceClient {
	return &jobQueueServiceClient{cc: cc}
}

func (c *jobQueueServiceClient) UpdateFile(ctx context.Context, in *UpdateFileRequest, opts ...grpc.CallOption) (*UpdateFileResponse, error) {
	out := new(UpdateFileResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/UpdateFile", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *jobQueueServiceClient) RenameFile(ctx context.Context, in *RenameFileRequest, opts ...grpc.CallOption) (*RenameFileResponse, error) {
	out := new(RenameFileResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RenameFile", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *jobQueueServiceClient) Purge(ctx context.Context, in *PurgeRequest, opts ...grpc.CallOption) (*PurgeResponse, error) {
	out := new(PurgeResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Purge", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *jobQueueServiceClient) SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error) {
	out := new(SubmitJobResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/SubmitJob", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterJobQueueServiceServer binds srv to s under the ServiceDesc below.
func RegisterJobQueueServiceServer(s grpc.ServiceRegistrar, srv JobQueueServiceServer) {
	s.RegisterService(&JobQueueService_ServiceDesc, srv)
}

func jobQueueServiceUpdateFileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobQueueServiceServer).UpdateFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/UpdateFile"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobQueueServiceServer).UpdateFile(ctx, req.(*UpdateFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func jobQueueServiceRenameFileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RenameFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobQueueServiceServer).RenameFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RenameFile"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobQueueServiceServer).RenameFile(ctx, req.(*RenameFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func jobQueueServicePurgeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PurgeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobQueueServiceServer).Purge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Purge"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobQueueServiceServer).Purge(ctx, req.(*PurgeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func jobQueueServiceSubmitJobHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitJobRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobQueueServiceServer).SubmitJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SubmitJob"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobQueueServiceServer).SubmitJob(ctx, req.(*SubmitJobRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// JobQueueService_ServiceDesc is the grpc.ServiceDesc for JobQueueService.
// It's only intended for direct use with grpc.ServiceRegistrar.RegisterService,
// and not to be introspected or modified (even as a copy).
var JobQueueService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*JobQueueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UpdateFile", Handler: jobQueueServiceUpdateFileHandler},
		{MethodName: "RenameFile", Handler: jobQueueServiceRenameFileHandler},
		{MethodName: "Purge", Handler: jobQueueServicePurgeHandler},
		{MethodName: "SubmitJob", Handler: jobQueueServiceSubmitJobHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clusterqueue/v1/jobqueue_service.json",
}

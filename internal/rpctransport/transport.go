// ============================================================================
// clusterqueue RPC Transport — Dial/Serve Helpers
// ============================================================================
//
// Package: internal/rpctransport
// File: transport.go
// Purpose: thin wrappers around grpc.NewClient/grpc.NewServer that default
// every call to the JSON codec registered in codec.go, using
// `grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))`
// to dial peers.
//
// ============================================================================

package rpctransport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialPeer connects to a peer node's JobQueueService over plaintext gRPC,
// negotiating the JSON codec. clusterqueue nodes are assumed to run inside
// a trusted cluster network.
func DialPeer(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
}

// NewServer builds a *grpc.Server with srv registered as its
// JobQueueService implementation.
func NewServer(srv JobQueueServiceServer) *grpc.Server {
	s := grpc.NewServer()
	RegisterJobQueueServiceServer(s, srv)
	return s
}

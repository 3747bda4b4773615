// ============================================================================
// clusterqueue RPC Transport — JSON Wire Codec
// ============================================================================
//
// Package: internal/rpctransport
// File: codec.go
// Purpose: registers a JSON encoding.Codec with gRPC so JobQueueService can
// be transported over real grpc.ServiceDesc framing without a .proto file.
// No .proto/.pb.go for this service exists anywhere in the retrieved
// corpus, and generating one is out of scope (no protoc invocation is
// permitted here); this hand-authors the generated-code shape instead,
// using the same google.golang.org/grpc APIs a protoc-gen-go-grpc output
// would use.
//
// ============================================================================

package rpctransport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

// jsonCodec implements encoding.Codec by delegating to encoding/json. It is
// registered once via init: the client selects it with
// grpc.CallContentSubtype("json"), and the server looks it up in the
// registry from each request's content-subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpctransport: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpctransport: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

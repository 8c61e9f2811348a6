// Package grpcjson provides a grpc-go wire codec that marshals request and
// response messages as JSON instead of protobuf, so this module's internal
// services can run real gRPC (streaming, deadlines, status codes) without a
// .proto/protoc-gen-go toolchain step.
package grpcjson

import "encoding/json"

const Name = "json"

// Codec implements grpc/encoding.Codec. Install it server-side with
// grpc.ForceServerCodec and client-side with grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (Codec) Name() string { return Name }

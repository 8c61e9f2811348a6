// Package fleet bridges rover and orchestra processes over a gRPC
// bidirectional stream, replacing the original's Zenoh pub/sub mesh (no
// Zenoh Go binding exists anywhere in the retrieval pack) with a
// topic-tagged envelope stream carried over google.golang.org/grpc.
package fleet

import (
	"context"

	"google.golang.org/grpc"
)

// TopicEnvelope carries one topic's payload, tagged with the entity it
// belongs to. Grounded on the original's "rover/{entity_id}/..." topic
// namespace, flattened into a single field instead of a path string per
// message since there is no broker to route on path segments.
type TopicEnvelope struct {
	EntityID  string `json:"entity_id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Topic names, mirroring the "rover/{id}/..." suffixes in zenoh_bridge/src/main.rs.
const (
	TopicVideo              = "video/raw"
	TopicAudio              = "audio/raw"
	TopicRoverTelemetry     = "telemetry/rover"
	TopicArmTelemetry       = "telemetry/arm"
	TopicServoTelemetry     = "telemetry/servo"
	TopicTrackedDetections  = "video/detections"
	TopicTrackingTelemetry  = "telemetry/tracking"
	TopicMetrics            = "metrics"
	TopicCmdMovement        = "cmd/movement"
	TopicCmdArm             = "cmd/arm"
	TopicCmdCamera          = "cmd/camera"
	TopicCmdAudio           = "cmd/audio"
	TopicCmdAudioStream     = "cmd/audio_stream"
	TopicCmdTracking        = "cmd/tracking"
	TopicCmdTTS             = "cmd/tts"
)

// OverlayStream is the narrow interface both the hand-written server-side
// and client-side stream wrappers satisfy.
type OverlayStream interface {
	Send(*TopicEnvelope) error
	Recv() (*TopicEnvelope, error)
}

type serverStream struct{ grpc.ServerStream }

func (s *serverStream) Send(m *TopicEnvelope) error { return s.ServerStream.SendMsg(m) }
func (s *serverStream) Recv() (*TopicEnvelope, error) {
	m := new(TopicEnvelope)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// OverlayServer is the business-logic interface for the bidi-stream RPC.
type OverlayServer interface {
	Stream(OverlayStream) error
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(OverlayServer).Stream(&serverStream{stream})
}

// ServiceDesc mirrors what protoc-gen-go-grpc emits for a single
// bidi-streaming method, hand-authored because no .proto for the fleet
// overlay exists in the retrieval pack.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "rover.fleet.FleetOverlay",
	HandlerType: (*OverlayServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "Stream", Handler: streamHandler, ServerStreams: true, ClientStreams: true},
	},
}

func RegisterFleetOverlayServer(s grpc.ServiceRegistrar, srv OverlayServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type clientStream struct{ grpc.ClientStream }

func (c *clientStream) Send(m *TopicEnvelope) error { return c.ClientStream.SendMsg(m) }
func (c *clientStream) Recv() (*TopicEnvelope, error) {
	m := new(TopicEnvelope)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// DialOverlayStream opens the client side of the bidi stream.
func DialOverlayStream(ctx context.Context, conn *grpc.ClientConn) (OverlayStream, error) {
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], "/rover.fleet.FleetOverlay/Stream")
	if err != nil {
		return nil, err
	}
	return &clientStream{stream}, nil
}

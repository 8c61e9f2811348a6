// Package actuator is the arm-actuator microservice: a gRPC front for the
// physical joint servos, generalized from the teacher's servo/server.go
// single-claw/camera pin map to an arbitrary configured joint set.
package actuator

import (
	"context"

	"google.golang.org/grpc"
)

// SetJointPositionsRequest commands every named joint to a target angle
// (radians), at most maxVelocity rad/s.
type SetJointPositionsRequest struct {
	JointAngles map[string]float64 `json:"joint_angles"`
	MaxVelocity float64            `json:"max_velocity,omitempty"`
}

type SetJointPositionsReply struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

type StopRequest struct{}

type StopReply struct {
	Ok bool `json:"ok"`
}

type EmergencyStopRequest struct{}

type EmergencyStopReply struct {
	Ok bool `json:"ok"`
}

type GetJointStateRequest struct{}

type JointState struct {
	Name     string  `json:"name"`
	Angle    float64 `json:"angle"`
	MinAngle float64 `json:"min_angle"`
	MaxAngle float64 `json:"max_angle"`
}

type GetJointStateReply struct {
	Joints []JointState `json:"joints"`
}

// Server is the business-logic interface the gRPC handlers dispatch to.
type Server interface {
	SetJointPositions(ctx context.Context, req *SetJointPositionsRequest) (*SetJointPositionsReply, error)
	Stop(ctx context.Context, req *StopRequest) (*StopReply, error)
	EmergencyStop(ctx context.Context, req *EmergencyStopRequest) (*EmergencyStopReply, error)
	GetJointState(ctx context.Context, req *GetJointStateRequest) (*GetJointStateReply, error)
}

// ServiceDesc mirrors what protoc-gen-go-grpc emits for a four-unary-method
// service, hand-authored because no .proto for this service was retrieved.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "rover.actuator.ArmActuator",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetJointPositions", Handler: setJointPositionsHandler},
		{MethodName: "Stop", Handler: stopHandler},
		{MethodName: "EmergencyStop", Handler: emergencyStopHandler},
		{MethodName: "GetJointState", Handler: getJointStateHandler},
	},
}

func setJointPositionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SetJointPositionsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).SetJointPositions(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rover.actuator.ArmActuator/SetJointPositions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).SetJointPositions(ctx, req.(*SetJointPositionsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func stopHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(StopRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Stop(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rover.actuator.ArmActuator/Stop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Stop(ctx, req.(*StopRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func emergencyStopHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(EmergencyStopRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).EmergencyStop(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rover.actuator.ArmActuator/EmergencyStop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).EmergencyStop(ctx, req.(*EmergencyStopRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getJointStateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetJointStateRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetJointState(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rover.actuator.ArmActuator/GetJointState"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetJointState(ctx, req.(*GetJointStateRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func RegisterArmActuatorServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

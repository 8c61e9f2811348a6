package arm

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/loidinhm31/rover-orchestra/internal/actuator"
	"github.com/loidinhm31/rover-orchestra/internal/grpcjson"
)

// GRPCActuatorClient calls the arm-actuator microservice over the JSON gRPC
// codec, replacing the teacher's direct pca9685.ServoGroup calls in
// client/servo.go with an RPC to a separately-running hardware process.
type GRPCActuatorClient struct {
	conn   *grpc.ClientConn
	target string
}

func DialActuator(target string) (*GRPCActuatorClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcjson.Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("arm: dial actuator %s: %w", target, err)
	}
	return &GRPCActuatorClient{conn: conn, target: target}, nil
}

func (c *GRPCActuatorClient) Close() error { return c.conn.Close() }

func (c *GRPCActuatorClient) SetJointPositions(ctx context.Context, jointNames []string, angles []float64, maxVelocity float64) error {
	if len(jointNames) != len(angles) {
		return fmt.Errorf("arm: joint names/angles length mismatch")
	}
	req := &actuator.SetJointPositionsRequest{
		JointAngles: make(map[string]float64, len(jointNames)),
		MaxVelocity: maxVelocity,
	}
	for i, name := range jointNames {
		req.JointAngles[name] = angles[i]
	}
	reply := new(actuator.SetJointPositionsReply)
	if err := c.conn.Invoke(ctx, "/rover.actuator.ArmActuator/SetJointPositions", req, reply); err != nil {
		return fmt.Errorf("arm: SetJointPositions rpc: %w", err)
	}
	if !reply.Ok {
		return fmt.Errorf("arm: actuator rejected joint positions: %s", reply.Err)
	}
	return nil
}

func (c *GRPCActuatorClient) Stop(ctx context.Context) error {
	reply := new(actuator.StopReply)
	if err := c.conn.Invoke(ctx, "/rover.actuator.ArmActuator/Stop", &actuator.StopRequest{}, reply); err != nil {
		return fmt.Errorf("arm: Stop rpc: %w", err)
	}
	return nil
}

func (c *GRPCActuatorClient) EmergencyStop(ctx context.Context) error {
	reply := new(actuator.EmergencyStopReply)
	if err := c.conn.Invoke(ctx, "/rover.actuator.ArmActuator/EmergencyStop", &actuator.EmergencyStopRequest{}, reply); err != nil {
		return fmt.Errorf("arm: EmergencyStop rpc: %w", err)
	}
	return nil
}

func (c *GRPCActuatorClient) GetJointState(ctx context.Context) (*actuator.GetJointStateReply, error) {
	reply := new(actuator.GetJointStateReply)
	if err := c.conn.Invoke(ctx, "/rover.actuator.ArmActuator/GetJointState", &actuator.GetJointStateRequest{}, reply); err != nil {
		return nil, fmt.Errorf("arm: GetJointState rpc: %w", err)
	}
	return reply, nil
}

package arm

import (
	"context"
	"fmt"
	"log"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// Status mirrors the actuator's last reported joint feedback, grounded on
// ArmStatus in arm_command.rs/arm_controller's update_current_state.
type Status struct {
	JointPositions []float64
	IsMoving       bool
	IsHomed        bool
}

// Controller canonicalizes inbound ArmCommands into target joint positions,
// validates them against the configured limits, and forwards them to the
// actuator client. Grounded on arm_controller/src/main.rs's ArmController.
type Controller struct {
	cfg Config

	currentJointPositions []float64
	targetJointPositions  []float64
	status                Status

	client ActuatorClient
}

// ActuatorClient is the narrow interface the controller drives; satisfied by
// *GRPCActuatorClient in actuator_client.go, and fakeable in tests.
type ActuatorClient interface {
	SetJointPositions(ctx context.Context, jointNames []string, angles []float64, maxVelocity float64) error
	Stop(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
}

func NewController(cfg Config, client ActuatorClient) *Controller {
	return &Controller{
		cfg:                   cfg,
		currentJointPositions: make([]float64, cfg.DOF),
		targetJointPositions:  make([]float64, cfg.DOF),
		status:                Status{JointPositions: make([]float64, cfg.DOF)},
		client:                client,
	}
}

// JointNames generates a stable arm_1..arm_N naming scheme; the actuator
// server's configured channel map uses the same names.
func (c *Controller) JointNames() []string {
	names := make([]string, c.cfg.DOF)
	for i := range names {
		names[i] = fmt.Sprintf("arm_%d", i+1)
	}
	return names
}

func (c *Controller) validateJointAngles(angles []float64) error {
	if len(angles) != c.cfg.DOF {
		return fmt.Errorf("arm: joint angles count (%d) doesn't match DOF (%d)", len(angles), c.cfg.DOF)
	}
	for i, a := range angles {
		lim := c.cfg.JointLimits[i]
		if a < lim.MinAngle || a > lim.MaxAngle {
			return fmt.Errorf("arm: joint %d target %.4f outside [%.4f,%.4f]", i, a, lim.MinAngle, lim.MaxAngle)
		}
	}
	return nil
}

// Execute canonicalizes one command into a target joint vector and pushes it
// to the actuator. Unlike the Rust original (which only updates local
// controller state and leaves transport to the caller), this also issues the
// RPC, since no separate dataflow node exists here to forward it.
func (c *Controller) Execute(ctx context.Context, cmd types.ArmCommand) error {
	switch cmd.Kind {
	case types.ArmCmdJointPosition:
		if err := c.validateJointAngles(cmd.JointAngles); err != nil {
			return err
		}
		c.targetJointPositions = append([]float64(nil), cmd.JointAngles...)

	case types.ArmCmdHome:
		c.targetJointPositions = make([]float64, c.cfg.DOF)

	case types.ArmCmdStop:
		c.targetJointPositions = append([]float64(nil), c.currentJointPositions...)
		return c.client.Stop(ctx)

	case types.ArmCmdEmergencyStop:
		c.targetJointPositions = append([]float64(nil), c.currentJointPositions...)
		return c.client.EmergencyStop(ctx)

	case types.ArmCmdRelativeMove:
		if len(cmd.DeltaJoints) != c.cfg.DOF {
			return fmt.Errorf("arm: delta joints count (%d) doesn't match DOF (%d)", len(cmd.DeltaJoints), c.cfg.DOF)
		}
		next := make([]float64, c.cfg.DOF)
		for i := range next {
			next[i] = c.currentJointPositions[i] + cmd.DeltaJoints[i]
		}
		if err := c.validateJointAngles(next); err != nil {
			return err
		}
		c.targetJointPositions = next

	case types.ArmCmdCartesianMove:
		log.Printf("arm: cartesian move (%.3f,%.3f,%.3f) requires inverse kinematics not implemented here; ignoring", cmd.X, cmd.Y, cmd.Z)
		return nil

	default:
		return fmt.Errorf("arm: unknown command kind %q", cmd.Kind)
	}

	maxVelocity := c.cfg.Control.MaxCartesianVelocity
	if cmd.MaxVelocity != nil {
		maxVelocity = *cmd.MaxVelocity
	}
	return c.client.SetJointPositions(ctx, c.JointNames(), c.targetJointPositions, maxVelocity)
}

// UpdateCurrentState ingests actuator feedback, mirroring
// ArmController::update_current_state.
func (c *Controller) UpdateCurrentState(status Status) {
	c.currentJointPositions = status.JointPositions
	c.status = status
}

func (c *Controller) CurrentStatus() Status { return c.status }

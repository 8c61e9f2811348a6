package mecanum

import (
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func velocityCmd(omegaZ, vx, vy float64) types.RoverCommand {
	meta := types.NewCommandMetadata(types.SourceRoverArbiter, types.PriorityNormal)
	return types.NewVelocityCommand(meta, omegaZ, vx, vy)
}

func TestProcessVelocity_AccumulatesWheelPositions(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultLimits())
	out := c.Process(velocityCmd(0, 0.1, 0), 1.0)
	if out.Kind != types.RoverCmdJointPositions {
		t.Fatalf("expected joint positions output, got %v", out.Kind)
	}
	sum := out.Q1 + out.Q2 + out.Q3
	if sum == 0 {
		t.Fatalf("expected nonzero wheel position after driving forward")
	}
	if c.Positions() != [3]float64{out.Q1, out.Q2, out.Q3} {
		t.Fatalf("controller's internal q must match emitted positions")
	}
}

func TestProcessStop_HoldsPosition(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultLimits())
	c.Process(velocityCmd(0, 0.2, 0), 1.0)
	before := c.Positions()

	stopMeta := types.NewCommandMetadata(types.SourceRoverArbiter, types.PriorityEmergency)
	out := c.Process(types.NewStopCommand(stopMeta), 1.0)

	if [3]float64{out.Q1, out.Q2, out.Q3} != before {
		t.Fatalf("stop must hold q, got %+v want %+v", out, before)
	}
}

func TestProcessLegacy_NeverProducesLateralVelocity(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultLimits())
	meta := types.NewCommandMetadata(types.SourceWebBridge, types.PriorityNormal)
	legacy := types.RoverCommand{Metadata: meta, Kind: types.RoverCmdLegacy, Throttle: 1.0, SteeringDeg: 10}
	out := c.Process(legacy, 1.0)
	if out.Kind != types.RoverCmdJointPositions {
		t.Fatalf("expected joint positions output, got %v", out.Kind)
	}
	// With v_y always 0 for legacy, the wheel positions must equal what a
	// Velocity command with the same v_x/omega_z and v_y=0 would produce.
	c2 := NewController(DefaultConfig(), DefaultLimits())
	equiv := c2.Process(velocityCmd(10*3.14159265/180, 1.0, 0), 1.0)
	if !closeEnough(out.Q1, equiv.Q1, 1e-9) || !closeEnough(out.Q2, equiv.Q2, 1e-9) || !closeEnough(out.Q3, equiv.Q3, 1e-9) {
		t.Fatalf("legacy path must behave as v_y=0 velocity command: got %+v want %+v", out, equiv)
	}
}

func TestClampVelocity_LinearMagnitude(t *testing.T) {
	omegaZ, vx, vy := clamp(0, 3, 4, 1.0, 10)
	if !closeEnough(vx, 0.6, 1e-9) || !closeEnough(vy, 0.8, 1e-9) {
		t.Fatalf("expected uniform scale-down to magnitude 1, got vx=%v vy=%v", vx, vy)
	}
	if omegaZ != 0 {
		t.Fatalf("omega should be unaffected by linear clamp")
	}
}

package arm

import (
	"context"
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

type fakeActuator struct {
	lastNames       []string
	lastAngles      []float64
	lastMaxVelocity float64
	stopped         bool
	estopped        bool
}

func (f *fakeActuator) SetJointPositions(ctx context.Context, names []string, angles []float64, maxVelocity float64) error {
	f.lastNames, f.lastAngles, f.lastMaxVelocity = names, angles, maxVelocity
	return nil
}
func (f *fakeActuator) Stop(ctx context.Context) error          { f.stopped = true; return nil }
func (f *fakeActuator) EmergencyStop(ctx context.Context) error { f.estopped = true; return nil }

func newTestController() (*Controller, *fakeActuator) {
	cfg := DefaultConfig()
	fake := &fakeActuator{}
	return NewController(cfg, fake), fake
}

func TestExecute_JointPositionWithinLimitsForwardsToActuator(t *testing.T) {
	c, fake := newTestController()
	angles := make([]float64, c.cfg.DOF)
	err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdJointPosition, JointAngles: angles})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.lastAngles) != c.cfg.DOF {
		t.Fatalf("expected %d angles forwarded, got %d", c.cfg.DOF, len(fake.lastAngles))
	}
}

func TestExecute_JointPositionOutsideLimitsRejected(t *testing.T) {
	c, _ := newTestController()
	angles := make([]float64, c.cfg.DOF)
	angles[0] = 100.0 // far outside +-pi
	err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdJointPosition, JointAngles: angles})
	if err == nil {
		t.Fatalf("expected out-of-limits rejection")
	}
}

func TestExecute_WrongDOFRejected(t *testing.T) {
	c, _ := newTestController()
	err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdJointPosition, JointAngles: []float64{0, 1}})
	if err == nil {
		t.Fatalf("expected DOF mismatch rejection")
	}
}

func TestExecute_HomeTargetsZero(t *testing.T) {
	c, fake := newTestController()
	if err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdHome}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range fake.lastAngles {
		if a != 0 {
			t.Fatalf("expected home to target all-zero joint vector, got %v", fake.lastAngles)
		}
	}
}

func TestExecute_StopCallsActuatorStop(t *testing.T) {
	c, fake := newTestController()
	if err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdStop}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.stopped {
		t.Fatalf("expected Stop to be called on the actuator client")
	}
}

func TestExecute_EmergencyStopCallsActuatorEmergencyStop(t *testing.T) {
	c, fake := newTestController()
	if err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdEmergencyStop}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.estopped {
		t.Fatalf("expected EmergencyStop to be called on the actuator client")
	}
}

func TestExecute_RelativeMoveAddsToCurrentPosition(t *testing.T) {
	c, fake := newTestController()
	c.UpdateCurrentState(Status{JointPositions: make([]float64, c.cfg.DOF)})
	delta := make([]float64, c.cfg.DOF)
	delta[0] = 0.1
	if err := c.Execute(context.Background(), types.ArmCommand{Kind: types.ArmCmdRelativeMove, DeltaJoints: delta}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.lastAngles[0] != 0.1 {
		t.Fatalf("expected relative move to add delta to current position, got %v", fake.lastAngles[0])
	}
}

func TestUpdateCurrentState_TracksActuatorFeedback(t *testing.T) {
	c, _ := newTestController()
	status := Status{JointPositions: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, IsMoving: true, IsHomed: false}
	c.UpdateCurrentState(status)
	if !c.CurrentStatus().IsMoving {
		t.Fatalf("expected current status to reflect actuator feedback")
	}
}

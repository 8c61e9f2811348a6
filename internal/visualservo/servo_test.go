package visualservo

import (
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func trackingOf(state types.TrackingState, target *types.TrackingTarget) types.TrackingTelemetry {
	return types.NewTrackingTelemetry(state, target)
}

func TestProcessTracking_NotTrackingResetsAndStaysManual(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultCameraConfig())
	cmd, telemetry := c.ProcessTracking(trackingOf(types.TrackingEnabled, nil), 0.1)
	if cmd != nil {
		t.Fatalf("expected no command while not tracking")
	}
	if telemetry.ControlMode != types.ControlManual {
		t.Fatalf("expected manual control mode, got %v", telemetry.ControlMode)
	}
}

func TestProcessTracking_CenteredTargetYieldsSmallOmega(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultCameraConfig())
	target := &types.TrackingTarget{
		ClassName: "person",
		BBox:      types.BoundingBox{X1: 0.45, Y1: 0.2, X2: 0.55, Y2: 0.8},
	}
	cmd, telemetry := c.ProcessTracking(trackingOf(types.TrackingTracking, target), 0.1)
	if cmd == nil {
		t.Fatalf("expected a command while actively tracking")
	}
	if telemetry.ControlMode != types.ControlAutonomous {
		t.Fatalf("expected autonomous control mode, got %v", telemetry.ControlMode)
	}
	if telemetry.DistanceEstimate == nil {
		t.Fatalf("expected a distance estimate to be attached")
	}
	if cmd.OmegaZ > 1e-6 || cmd.OmegaZ < -1e-6 {
		t.Fatalf("expected near-zero omega_z for a centered target, got %v", cmd.OmegaZ)
	}
}

func TestProcessTracking_OffCenterTargetDrivesNonzeroOmega(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultCameraConfig())
	// Target well to the right of frame center (error_x = 0.2, beyond dead zone).
	target := &types.TrackingTarget{
		ClassName: "person",
		BBox:      types.BoundingBox{X1: 0.6, Y1: 0.2, X2: 0.8, Y2: 0.8},
	}
	cmd, _ := c.ProcessTracking(trackingOf(types.TrackingTracking, target), 0.1)
	if cmd.OmegaZ == 0 {
		t.Fatalf("expected nonzero omega_z for an off-center target")
	}
}

func TestProcessTracking_DeadZoneSuppressesSmallOffset(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg, DefaultCameraConfig())
	// error_x = 0.01, inside the default 0.05 dead zone.
	target := &types.TrackingTarget{
		ClassName: "person",
		BBox:      types.BoundingBox{X1: 0.46, Y1: 0.2, X2: 0.56, Y2: 0.8},
	}
	cmd, _ := c.ProcessTracking(trackingOf(types.TrackingTracking, target), 0.1)
	if cmd.OmegaZ != 0 {
		t.Fatalf("expected zero omega_z within dead zone, got %v", cmd.OmegaZ)
	}
}

func TestProcessTracking_TooCloseClampsForwardVelocityToZeroOrBackward(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDistance = 5.0 // force the safety branch regardless of estimate
	c := NewController(cfg, DefaultCameraConfig())
	// Tall bbox -> large bbox height in pixels -> small estimated distance.
	target := &types.TrackingTarget{
		ClassName: "person",
		BBox:      types.BoundingBox{X1: 0.45, Y1: 0.0, X2: 0.55, Y2: 1.0},
	}
	cmd, telemetry := c.ProcessTracking(trackingOf(types.TrackingTracking, target), 0.1)
	if cmd.VX > 0 {
		t.Fatalf("expected non-positive v_x when closer than min_distance, got %v", cmd.VX)
	}
	if *telemetry.DistanceEstimate >= cfg.MinDistance {
		t.Fatalf("expected estimated distance below min_distance for this test setup")
	}
}

func TestEstimateDistance_TinyBBoxReturnsLargeDistance(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultCameraConfig())
	bbox := types.BoundingBox{X1: 0.5, Y1: 0.5, X2: 0.5001, Y2: 0.5001}
	d := c.EstimateDistance(bbox, "person")
	if d != 10.0 {
		t.Fatalf("expected fallback distance of 10.0 for a near-zero-height box, got %v", d)
	}
}

func TestEstimateDistance_ClampedToRange(t *testing.T) {
	c := NewController(DefaultConfig(), DefaultCameraConfig())
	// Full-height box of a short class -> distance below 0.5 before clamping.
	bbox := types.BoundingBox{X1: 0.4, Y1: 0.0, X2: 0.6, Y2: 1.0}
	d := c.EstimateDistance(bbox, "cat")
	if d < 0.5 || d > 10.0 {
		t.Fatalf("expected distance clamped to [0.5, 10.0], got %v", d)
	}
}

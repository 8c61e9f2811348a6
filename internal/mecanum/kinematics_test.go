package mecanum

import (
	"math"
	"testing"
)

func closeEnough(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestForwardInverseRoundTrip(t *testing.T) {
	k := New(DefaultConfig())
	cases := []BodyTwist{
		{OmegaZ: 0, VX: 0, VY: 0},
		{OmegaZ: 0.5, VX: 0.3, VY: -0.2},
		{OmegaZ: -1.2, VX: -0.8, VY: 0.4},
	}
	for _, twist := range cases {
		u := k.Forward(twist)
		back := k.Inverse(u)
		if !closeEnough(back.OmegaZ, twist.OmegaZ, 1e-6) ||
			!closeEnough(back.VX, twist.VX, 1e-6) ||
			!closeEnough(back.VY, twist.VY, 1e-6) {
			t.Fatalf("round-trip mismatch: got %+v want %+v", back, twist)
		}
	}
}

func TestForwardZeroTwistIsZeroWheelSpeeds(t *testing.T) {
	k := New(DefaultConfig())
	u := k.Forward(BodyTwist{})
	for i, ui := range u {
		if !closeEnough(ui, 0, 1e-9) {
			t.Fatalf("wheel %d expected 0, got %v", i, ui)
		}
	}
}

// TestForwardPureYaw pins the H matrix's yaw column against values derived
// directly from Modern Robotics Eq. (13.6) for the default geometry, so a
// regression that makes every wheel's yaw contribution identical (as a
// d/r-only column does, ignoring each wheel's gamma sign) is caught even
// though it still round-trips through Inverse.
func TestForwardPureYaw(t *testing.T) {
	k := New(DefaultConfig())
	u := k.Forward(BodyTwist{OmegaZ: 1, VX: 0, VY: 0})
	want := WheelVelocities{3.0, -3.0, 3.0}
	for i := range want {
		if !closeEnough(u[i], want[i], 1e-3) {
			t.Fatalf("wheel %d yaw contribution: got %v want %v", i, u[i], want[i])
		}
	}
}

package webbridge

import (
	"math"
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func TestValidateJointPosition(t *testing.T) {
	if err := ValidateJointPosition(0); err != nil {
		t.Fatalf("0 should be valid: %v", err)
	}
	if err := ValidateJointPosition(math.Pi); err != nil {
		t.Fatalf("pi should be valid: %v", err)
	}
	if err := ValidateJointPosition(-math.Pi); err != nil {
		t.Fatalf("-pi should be valid: %v", err)
	}
	if err := ValidateJointPosition(math.Pi + 0.1); err == nil {
		t.Fatalf("expected error beyond pi")
	}
	if err := ValidateJointPosition(math.NaN()); err == nil {
		t.Fatalf("expected error for NaN")
	}
	if err := ValidateJointPosition(math.Inf(1)); err == nil {
		t.Fatalf("expected error for +Inf")
	}
}

func TestValidateTTSText(t *testing.T) {
	if err := ValidateTTSText("Hello"); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateTTSText(""); err == nil {
		t.Fatalf("expected error for empty text")
	}
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateTTSText(string(long)); err == nil {
		t.Fatalf("expected error for over-length text")
	}
}

func TestValidateAudioData(t *testing.T) {
	if err := ValidateAudioData([]float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateAudioData(nil); err == nil {
		t.Fatalf("expected error for empty samples")
	}
	if err := ValidateAudioData([]float32{float32(math.NaN())}); err == nil {
		t.Fatalf("expected error for NaN sample")
	}
	if err := ValidateAudioData([]float32{float32(math.Inf(1))}); err == nil {
		t.Fatalf("expected error for +Inf sample")
	}
}

func TestValidateDetectionIndex(t *testing.T) {
	if err := ValidateDetectionIndex(2, 5); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateDetectionIndex(5, 5); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}

func TestAuthRateLimiter_CapsAttemptsThenResetClears(t *testing.T) {
	t.Setenv("RATE_LIMIT_AUTH_PER_MINUTE", "2")
	l := NewAuthRateLimiter()
	if !l.CheckAuthAttempt("clientA") {
		t.Fatalf("first attempt should be allowed")
	}
	if !l.CheckAuthAttempt("clientA") {
		t.Fatalf("second attempt should be allowed")
	}
	if l.CheckAuthAttempt("clientA") {
		t.Fatalf("third attempt within the window should be denied")
	}
	l.Reset("clientA")
	if !l.CheckAuthAttempt("clientA") {
		t.Fatalf("after reset, attempt should be allowed again")
	}
}

func TestValidateRosterMembershipAndSubset(t *testing.T) {
	roster := []string{"rover-kiwi", "rover-mango"}
	if err := ValidateRosterMembership("rover-kiwi", roster); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateRosterMembership("rover-ghost", roster); err == nil {
		t.Fatalf("expected error for entity not in roster")
	}
	if err := ValidateRosterSubset([]string{"rover-kiwi", "rover-mango"}, roster); err != nil {
		t.Fatalf("expected valid subset: %v", err)
	}
	if err := ValidateRosterSubset([]string{"rover-kiwi", "rover-ghost"}, roster); err == nil {
		t.Fatalf("expected error for subset containing entity not in roster")
	}
}

func TestValidateRoverCommand(t *testing.T) {
	t.Setenv("MAX_WHEEL_VELOCITY", "2.0")
	if err := ValidateRoverCommand(types.RoverCommand{Kind: types.RoverCmdVelocity, OmegaZ: 1, VX: 0.5, VY: -0.5}); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateRoverCommand(types.RoverCommand{Kind: types.RoverCmdVelocity, VX: 10}); err == nil {
		t.Fatalf("expected error for v_x beyond limit")
	}
	if err := ValidateRoverCommand(types.RoverCommand{Kind: types.RoverCmdStop}); err != nil {
		t.Fatalf("stop command should carry no velocity to validate: %v", err)
	}
}

func TestValidateArmCommand(t *testing.T) {
	if err := ValidateArmCommand(types.ArmCommand{Kind: types.ArmCmdJointPosition, JointAngles: []float64{0, 1, -1}}); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := ValidateArmCommand(types.ArmCommand{Kind: types.ArmCmdJointPosition, JointAngles: []float64{0, math.Pi + 0.1}}); err == nil {
		t.Fatalf("expected error for out-of-range joint angle")
	}
	if err := ValidateArmCommand(types.ArmCommand{Kind: types.ArmCmdEmergencyStop}); err != nil {
		t.Fatalf("emergency stop should always be admitted: %v", err)
	}
}

func TestSession_IdleDetection(t *testing.T) {
	s := NewSession("sess-1", "client-1")
	if s.IsIdle() {
		t.Fatalf("freshly created session should not be idle")
	}
	s.LastActivity = s.LastActivity.Add(-IdleTimeout - 1)
	if !s.IsIdle() {
		t.Fatalf("session past idle timeout should be idle")
	}
}

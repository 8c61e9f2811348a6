package webbridge

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ValidateJointPosition rejects non-finite angles and anything outside
// [-pi, pi].
func ValidateJointPosition(angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("joint angle must be a finite number")
	}
	if angle < -math.Pi || angle > math.Pi {
		return fmt.Errorf("joint angle %v out of range [-pi, pi]", angle)
	}
	return nil
}

// ValidateWheelVelocity rejects non-finite velocities and anything beyond
// MAX_WHEEL_VELOCITY (default 2.0 m/s).
func ValidateWheelVelocity(velocity float64) error {
	maxVelocity := envFloat("MAX_WHEEL_VELOCITY", 2.0)
	if math.IsNaN(velocity) || math.IsInf(velocity, 0) {
		return fmt.Errorf("wheel velocity must be a finite number")
	}
	if math.Abs(velocity) > maxVelocity {
		return fmt.Errorf("wheel velocity %v exceeds limit %v", velocity, maxVelocity)
	}
	return nil
}

// ValidateTTSText rejects empty strings and anything beyond
// MAX_TTS_TEXT_LENGTH (default 1000 bytes).
func ValidateTTSText(text string) error {
	maxLength := envIntOr("MAX_TTS_TEXT_LENGTH", 1000)
	if len(text) == 0 {
		return fmt.Errorf("tts text cannot be empty")
	}
	if len(text) > maxLength {
		return fmt.Errorf("tts text length %d exceeds limit %d", len(text), maxLength)
	}
	return nil
}

// ValidateAudioData rejects empty sample sets, anything beyond
// MAX_AUDIO_SAMPLES_PER_MESSAGE (default 16000), and any non-finite sample.
func ValidateAudioData(samples []float32) error {
	maxSamples := envIntOr("MAX_AUDIO_SAMPLES_PER_MESSAGE", 16000)
	if len(samples) == 0 {
		return fmt.Errorf("audio data cannot be empty")
	}
	if len(samples) > maxSamples {
		return fmt.Errorf("audio sample count %d exceeds limit %d", len(samples), maxSamples)
	}
	for i, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return fmt.Errorf("audio sample at index %d is not finite", i)
		}
	}
	return nil
}

// ValidateDetectionIndex rejects an out-of-bounds detection selection index.
func ValidateDetectionIndex(index, max int) error {
	if index < 0 || index >= max {
		return fmt.Errorf("detection index %d out of bounds (max: %d)", index, max)
	}
	return nil
}

// ValidateRosterMembership rejects an entity_id not present in roster, for
// fleet_select and single-id fleet_subscription actions.
func ValidateRosterMembership(entityID string, roster []string) error {
	for _, id := range roster {
		if id == entityID {
			return nil
		}
	}
	return fmt.Errorf("entity_id %q is not in the fleet roster", entityID)
}

// ValidateRosterSubset rejects any id in ids not present in roster, for the
// fleet_subscription set_active action.
func ValidateRosterSubset(ids, roster []string) error {
	for _, id := range ids {
		if err := ValidateRosterMembership(id, roster); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRoverCommand rejects a rover_command whose velocity components are
// non-finite or exceed MAX_WHEEL_VELOCITY, for the RoverCmdVelocity and
// RoverCmdLegacy variants (the only ones carrying commanded velocities).
func ValidateRoverCommand(cmd types.RoverCommand) error {
	switch cmd.Kind {
	case types.RoverCmdVelocity:
		if err := ValidateWheelVelocity(cmd.OmegaZ); err != nil {
			return fmt.Errorf("omega_z: %w", err)
		}
		if err := ValidateWheelVelocity(cmd.VX); err != nil {
			return fmt.Errorf("v_x: %w", err)
		}
		if err := ValidateWheelVelocity(cmd.VY); err != nil {
			return fmt.Errorf("v_y: %w", err)
		}
	case types.RoverCmdLegacy:
		if err := ValidateWheelVelocity(cmd.Throttle); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
	}
	return nil
}

// ValidateArmCommand rejects an arm command with an out-of-range or
// malformed joint target, for the variants that carry one.
func ValidateArmCommand(cmd types.ArmCommand) error {
	switch cmd.Kind {
	case types.ArmCmdJointPosition:
		for i, angle := range cmd.JointAngles {
			if err := ValidateJointPosition(angle); err != nil {
				return fmt.Errorf("joint_angles[%d]: %w", i, err)
			}
		}
	case types.ArmCmdRelativeMove:
		for i, delta := range cmd.DeltaJoints {
			if err := ValidateJointPosition(delta); err != nil {
				return fmt.Errorf("delta_joints[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ParseAllowedOrigins reads ALLOWED_ORIGINS (comma-separated), defaulting to
// the local dev frontends.
func ParseAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		raw = "http://localhost:3000,http://localhost:5173"
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

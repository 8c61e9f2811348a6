package arm

import "testing"

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidate_JointLimitsMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JointLimits = cfg.JointLimits[:cfg.DOF-1]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for joint limits count mismatch")
	}
}

func TestValidate_DHParamsMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kinematics.DHParams = cfg.Kinematics.DHParams[:cfg.DOF-1]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for DH parameter count mismatch")
	}
}

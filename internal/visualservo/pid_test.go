package visualservo

import "testing"

func TestPID_ProportionalOnly(t *testing.T) {
	pid := NewPID(1.0, 0, 0, -10, 10)
	if out := pid.Update(5.0, 0.1); out != 5.0 {
		t.Fatalf("expected 5.0, got %v", out)
	}
	if out := pid.Update(-3.0, 0.1); out != -3.0 {
		t.Fatalf("expected -3.0, got %v", out)
	}
}

func TestPID_OutputLimits(t *testing.T) {
	pid := NewPID(1.0, 0, 0, -5, 5)
	if out := pid.Update(10.0, 0.1); out != 5.0 {
		t.Fatalf("expected clamp to 5.0, got %v", out)
	}
	if out := pid.Update(-10.0, 0.1); out != -5.0 {
		t.Fatalf("expected clamp to -5.0, got %v", out)
	}
}

func TestPID_IntegralAccumulates(t *testing.T) {
	pid := NewPID(0, 1.0, 0, -10, 10)
	if out := pid.Update(1.0, 0.1); !closeEnough(out, 0.1, 1e-9) {
		t.Fatalf("expected 0.1, got %v", out)
	}
	if out := pid.Update(1.0, 0.1); !closeEnough(out, 0.2, 1e-9) {
		t.Fatalf("expected 0.2, got %v", out)
	}
	if out := pid.Update(1.0, 0.1); !closeEnough(out, 0.3, 1e-9) {
		t.Fatalf("expected 0.3, got %v", out)
	}
}

func TestPID_ResetBehavesAsFirstUpdate(t *testing.T) {
	pid := NewPID(1.0, 1.0, 1.0, -10, 10)
	pid.Update(5.0, 0.1)
	pid.Update(5.0, 0.1)
	pid.Reset()

	// After reset: P=5.0, I accumulates fresh to 0.5, D=0 on first update.
	out := pid.Update(5.0, 0.1)
	if !closeEnough(out, 5.5, 1e-9) {
		t.Fatalf("expected 5.5 after reset, got %v", out)
	}
}

func closeEnough(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

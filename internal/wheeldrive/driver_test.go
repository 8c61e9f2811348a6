package wheeldrive

import "testing"

func TestWheelDuty_ForwardScalesLinearly(t *testing.T) {
	duty, forward := wheelDuty(5, 10)
	if !forward {
		t.Fatalf("expected forward direction for positive velocity")
	}
	if duty != 50 {
		t.Fatalf("expected duty 50, got %v", duty)
	}
}

func TestWheelDuty_ReverseFlipsDirection(t *testing.T) {
	duty, forward := wheelDuty(-7.5, 10)
	if forward {
		t.Fatalf("expected reverse direction for negative velocity")
	}
	if duty != 75 {
		t.Fatalf("expected duty 75, got %v", duty)
	}
}

func TestWheelDuty_ClampsAt100(t *testing.T) {
	duty, forward := wheelDuty(25, 10)
	if !forward || duty != 100 {
		t.Fatalf("expected clamped forward duty 100, got duty=%v forward=%v", duty, forward)
	}
	duty, forward = wheelDuty(-25, 10)
	if forward || duty != 100 {
		t.Fatalf("expected clamped reverse duty 100, got duty=%v forward=%v", duty, forward)
	}
}

func TestWheelDuty_ZeroMaxSpeedIsSafe(t *testing.T) {
	duty, _ := wheelDuty(5, 0)
	if duty != 0 {
		t.Fatalf("expected zero duty when maxRadPerSec is non-positive, got %v", duty)
	}
}

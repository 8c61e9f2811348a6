package arbiter

import (
	"testing"
	"time"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func cmdAt(priority types.CommandPriority, kind types.RoverCommandKind, ageAgo time.Duration) types.RoverCommand {
	meta := types.NewCommandMetadata(types.SourceWebBridge, priority)
	meta.Timestamp = time.Now().Add(-ageAgo).UnixMilli()
	return types.RoverCommand{Metadata: meta, Kind: kind}
}

func TestResolve_ServoBeatsManualWhenHigher(t *testing.T) {
	a := New(DefaultCommandTimeout)
	a.SubmitManual(cmdAt(types.PriorityNormal, types.RoverCmdVelocity, 0))
	a.SubmitServo(cmdAt(types.PriorityHigh, types.RoverCmdVelocity, 0))

	got := a.Resolve()
	if got.Metadata.Source != types.SourceWebBridge || got.Metadata.Priority != types.PriorityHigh {
		t.Fatalf("expected the servo (high priority) command, got %+v", got)
	}
}

func TestResolve_TieGoesToManual(t *testing.T) {
	a := New(DefaultCommandTimeout)
	manual := cmdAt(types.PriorityHigh, types.RoverCmdVelocity, 0)
	manual.VX = 0.2
	servo := cmdAt(types.PriorityHigh, types.RoverCmdVelocity, 0)
	servo.VX = 0.9
	a.SubmitManual(manual)
	a.SubmitServo(servo)

	got := a.Resolve()
	if got.VX != 0.2 {
		t.Fatalf("expected manual to win the priority tie, got VX=%v", got.VX)
	}
}

func TestResolve_EmergencyClearsServo(t *testing.T) {
	a := New(DefaultCommandTimeout)
	a.SubmitServo(cmdAt(types.PriorityHigh, types.RoverCmdVelocity, 0))
	a.SubmitManual(cmdAt(types.PriorityEmergency, types.RoverCmdStop, 0))

	got := a.Resolve()
	if got.Kind != types.RoverCmdStop {
		t.Fatalf("expected emergency stop to win, got %+v", got)
	}

	// servo cache was cleared; a later resolve with no new servo input stays manual.
	got2 := a.Resolve()
	if got2.Kind != types.RoverCmdStop {
		t.Fatalf("expected stop to persist once servo cache was cleared, got %+v", got2)
	}
}

func TestResolve_WatchdogTripsOnStaleCommand(t *testing.T) {
	a := New(10 * time.Millisecond)
	a.SubmitManual(cmdAt(types.PriorityNormal, types.RoverCmdVelocity, 50*time.Millisecond))

	got := a.Resolve()
	if got.Kind != types.RoverCmdStop {
		t.Fatalf("expected watchdog stop for stale command, got %+v", got)
	}
}

func TestResolve_SingleSourcePassesThrough(t *testing.T) {
	a := New(DefaultCommandTimeout)
	a.SubmitServo(cmdAt(types.PriorityHigh, types.RoverCmdVelocity, 0))

	got := a.Resolve()
	if got.Kind != types.RoverCmdVelocity {
		t.Fatalf("expected the lone servo command, got %+v", got)
	}
}

// Package arbiter fuses concurrent rover command sources (manual and visual
// servo) into one canonical command per tick, enforcing strict priority with
// a manual-override tie-break and a stale-command watchdog.
//
// Grounded on rover-kiwi/rover_controller/src/main.rs's select_command, with
// one deliberate deviation: the priority tie-break favors manual, not servo
// (the source's `>=` check), per the override doctrine.
package arbiter

import (
	"log"
	"sync"
	"time"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

const DefaultCommandTimeout = 500 * time.Millisecond

// Arbiter holds the most recently received command from each source and
// resolves them on demand.
type Arbiter struct {
	mu sync.Mutex

	manual *types.RoverCommand
	servo  *types.RoverCommand

	lastEmitted    *types.RoverCommand
	commandTimeout time.Duration
}

func New(commandTimeout time.Duration) *Arbiter {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	return &Arbiter{commandTimeout: commandTimeout}
}

// SubmitManual records a new manual-path command (web/keyboard/voice).
func (a *Arbiter) SubmitManual(cmd types.RoverCommand) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cmd.Metadata.Priority == types.PriorityEmergency {
		a.servo = nil
	}
	a.manual = &cmd
}

// SubmitServo records a new visual-servo command (always High priority).
func (a *Arbiter) SubmitServo(cmd types.RoverCommand) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servo = &cmd
}

// Resolve selects the canonical command to emit right now: the higher
// priority of the two pending sources, ties going to manual; the sole
// pending source if only one exists; or a watchdog Stop if the last emitted
// command is stale and was not itself a Stop.
func (a *Arbiter) Resolve() types.RoverCommand {
	a.mu.Lock()
	defer a.mu.Unlock()

	var chosen *types.RoverCommand
	switch {
	case a.manual != nil && a.servo != nil:
		if a.servo.Metadata.Priority > a.manual.Metadata.Priority {
			chosen = a.servo
		} else {
			chosen = a.manual
		}
	case a.manual != nil:
		chosen = a.manual
	case a.servo != nil:
		chosen = a.servo
	}

	if chosen == nil {
		if a.lastEmitted != nil {
			chosen = a.lastEmitted
		} else {
			stop := types.NewStopCommand(types.NewCommandMetadata(types.SourceRoverArbiter, types.PriorityEmergency))
			chosen = &stop
		}
	}

	age := time.Since(time.UnixMilli(chosen.Metadata.Timestamp))
	if chosen.Kind != types.RoverCmdStop && age > a.commandTimeout {
		log.Printf("arbiter: watchdog trip, last command age %s exceeds %s, emitting stop", age, a.commandTimeout)
		stop := types.NewStopCommand(types.NewCommandMetadata(types.SourceRoverArbiter, types.PriorityEmergency))
		chosen = &stop
	}

	out := *chosen
	a.lastEmitted = &out
	return out
}

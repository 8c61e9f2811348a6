package mecanum

import (
	"log"
	"math"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// Limits bounds the controller's velocity and wheel-speed clamping.
type Limits struct {
	VMax          float64 // max linear speed magnitude, m/s
	OmegaMax      float64 // max angular speed, rad/s
	UMax          float64 // wheel speed warn threshold, rad/s (logged, not clamped)
	VMaxLegacy    float64 // throttle=1.0 -> this speed, m/s
	SteeringGain  float64 // legacy steering_deg -> rad/s gain k
}

func DefaultLimits() Limits {
	return Limits{VMax: 1.0, OmegaMax: 2.0, UMax: 20.0, VMaxLegacy: 1.0, SteeringGain: 1.0}
}

// Controller integrates arbitrated RoverCommands into wheel positions.
type Controller struct {
	kin    *Kinematics
	limits Limits
	q      [3]float64 // accumulated wheel positions, rad
	u      [3]float64 // last commanded wheel angular velocities, rad/s
}

func NewController(cfg Config, limits Limits) *Controller {
	return &Controller{kin: New(cfg), limits: limits}
}

// Positions returns the current accumulated wheel positions.
func (c *Controller) Positions() [3]float64 { return c.q }

// Velocities returns the wheel angular velocities behind the most recent
// Process call, for a hardware driver to translate into PWM duty cycles.
func (c *Controller) Velocities() [3]float64 { return c.u }

// Process consumes one arbitrated command and returns the JointPositions
// command to emit downstream (to the URDF sink / actuator layer).
func (c *Controller) Process(cmd types.RoverCommand, dt float64) types.RoverCommand {
	switch cmd.Kind {
	case types.RoverCmdVelocity:
		return c.processVelocity(cmd, dt)
	case types.RoverCmdJointPositions:
		c.q = [3]float64{cmd.Q1, cmd.Q2, cmd.Q3}
		c.u = [3]float64{}
		return cmd
	case types.RoverCmdLegacy:
		vx := cmd.Throttle * c.limits.VMaxLegacy
		omegaZ := cmd.SteeringDeg * math.Pi / 180 * c.limits.SteeringGain
		vel := types.NewVelocityCommand(cmd.Metadata, omegaZ, vx, 0)
		return c.processVelocity(vel, dt)
	case types.RoverCmdStop:
		c.u = [3]float64{}
		return types.RoverCommand{
			Metadata: cmd.Metadata,
			Kind:     types.RoverCmdJointPositions,
			Q1:       c.q[0], Q2: c.q[1], Q3: c.q[2],
		}
	default:
		return cmd
	}
}

func (c *Controller) processVelocity(cmd types.RoverCommand, dt float64) types.RoverCommand {
	omegaZ, vx, vy := clamp(cmd.OmegaZ, cmd.VX, cmd.VY, c.limits.VMax, c.limits.OmegaMax)

	u := c.kin.Forward(BodyTwist{OmegaZ: omegaZ, VX: vx, VY: vy})
	for i, ui := range u {
		if math.Abs(ui) > c.limits.UMax {
			log.Printf("mecanum: wheel %d speed %.3f rad/s exceeds %.3f (not clamped)", i, ui, c.limits.UMax)
		}
		c.q[i] += ui * dt
	}
	c.u = [3]float64(u)

	return types.RoverCommand{
		Metadata: cmd.Metadata,
		Kind:     types.RoverCmdJointPositions,
		Q1:       c.q[0], Q2: c.q[1], Q3: c.q[2],
	}
}

func clamp(omegaZ, vx, vy, vMax, omegaMax float64) (float64, float64, float64) {
	mag := math.Hypot(vx, vy)
	if mag > vMax && mag > 0 {
		scale := vMax / mag
		vx *= scale
		vy *= scale
	}
	if omegaZ > omegaMax {
		omegaZ = omegaMax
	} else if omegaZ < -omegaMax {
		omegaZ = -omegaMax
	}
	return omegaZ, vx, vy
}

// Package visualservo implements the dual-axis visual servo controller: a
// lateral (centering) and longitudinal (distance) PID loop driven by object
// tracking telemetry.
//
// Grounded on original_source/rover-kiwi/visual_servo_controller/src/pid.rs
// and src/main.rs.
package visualservo

// PID is an anti-windup proportional-integral-derivative controller.
type PID struct {
	Kp, Ki, Kd         float64
	OutputMin, OutputMax float64

	integral      float64
	previousError float64
	firstUpdate   bool
}

func NewPID(kp, ki, kd, outputMin, outputMax float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, OutputMin: outputMin, OutputMax: outputMax, firstUpdate: true}
}

// Update feeds a new error sample and returns the clamped control output.
// The derivative term is zeroed on the first update after construction or
// reset, since there is no previous error to differentiate against.
func (p *PID) Update(err, dt float64) float64 {
	pTerm := p.Kp * err

	p.integral += err * dt
	iTerm := p.Ki * p.integral

	var dTerm float64
	if p.firstUpdate {
		p.firstUpdate = false
	} else {
		dTerm = p.Kd * (err - p.previousError) / dt
	}
	p.previousError = err

	output := pTerm + iTerm + dTerm
	clamped := clampF(output, p.OutputMin, p.OutputMax)

	if clamped >= p.OutputMax || clamped <= p.OutputMin {
		p.integral -= err * dt
	}

	return clamped
}

func (p *PID) Reset() {
	p.integral = 0
	p.previousError = 0
	p.firstUpdate = true
}

func (p *PID) SetGains(kp, ki, kd float64) {
	p.Kp, p.Ki, p.Kd = kp, ki, kd
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

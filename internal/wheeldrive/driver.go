// Package wheeldrive turns mecanum wheel angular velocities into GPIO motor
// driver signals: one software-PWM enable pin plus a forward/reverse pin
// pair per wheel. Grounded on client/motorshield.go's PWM/Motor pair,
// narrowed from its four-motor car-chassis pin map to the three wheels of
// the mecanum/omni chassis and driven by velocity instead of a fixed
// forward/reverse/test API.
package wheeldrive

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// pwm implements a simple software PWM on a single enable pin.
type pwm struct {
	pin   rpio.Pin
	freq  time.Duration
	duty  float64 // 0-100
	quit  chan struct{}
	guard sync.Mutex
}

func newPWM(pin rpio.Pin, hz int) *pwm {
	p := &pwm{pin: pin, freq: time.Second / time.Duration(hz), quit: make(chan struct{})}
	pin.Output()
	go p.run()
	return p
}

func (p *pwm) run() {
	ticker := time.NewTicker(p.freq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.guard.Lock()
			d := p.duty / 100.0
			p.guard.Unlock()

			high := time.Duration(float64(p.freq) * d)
			p.pin.High()
			time.Sleep(high)
			p.pin.Low()
			time.Sleep(p.freq - high)
		case <-p.quit:
			p.pin.Low()
			return
		}
	}
}

func (p *pwm) setDutyCycle(duty float64) {
	if duty < 0 {
		duty = 0
	} else if duty > 100 {
		duty = 100
	}
	p.guard.Lock()
	p.duty = duty
	p.guard.Unlock()
}

func (p *pwm) stop() { close(p.quit) }

// WheelPins names the three GPIO pins (BCM numbering) driving one wheel's
// motor controller: PWM enable plus a forward/reverse direction pair.
type WheelPins struct {
	EnablePin  rpio.Pin
	ForwardPin rpio.Pin
	ReversePin rpio.Pin
}

// Wheel drives one motor from a commanded angular velocity.
type Wheel struct {
	pwm     *pwm
	forward rpio.Pin
	reverse rpio.Pin
}

func newWheel(pins WheelPins) *Wheel {
	pins.EnablePin.Output()
	pins.ForwardPin.Output()
	pins.ReversePin.Output()
	pins.EnablePin.Low()
	pins.ForwardPin.Low()
	pins.ReversePin.Low()

	return &Wheel{pwm: newPWM(pins.EnablePin, 50), forward: pins.ForwardPin, reverse: pins.ReversePin}
}

// wheelDuty converts a commanded angular velocity into a 0-100 PWM duty
// cycle and a forward/reverse direction, clamped at maxRadPerSec.
func wheelDuty(radPerSec, maxRadPerSec float64) (duty float64, forward bool) {
	if maxRadPerSec <= 0 {
		return 0, true
	}
	duty = (radPerSec / maxRadPerSec) * 100
	forward = duty >= 0
	if duty < 0 {
		duty = -duty
	}
	if duty > 100 {
		duty = 100
	}
	return duty, forward
}

// setVelocity drives the wheel towards radPerSec, clamped to maxRadPerSec
// and converted to a 0-100 PWM duty cycle proportional to the magnitude.
func (w *Wheel) setVelocity(radPerSec, maxRadPerSec float64) {
	duty, forward := wheelDuty(radPerSec, maxRadPerSec)
	if forward {
		w.forward.High()
		w.reverse.Low()
	} else {
		w.forward.Low()
		w.reverse.High()
	}
	w.pwm.setDutyCycle(duty)
}

func (w *Wheel) stop() {
	w.pwm.setDutyCycle(0)
	w.forward.Low()
	w.reverse.Low()
}

// Driver owns the three wheel motor channels of a mecanum/omni chassis and
// translates mecanum.Controller's wheel-velocity output into GPIO signals.
type Driver struct {
	wheels       [3]*Wheel
	maxRadPerSec float64
}

func NewDriver(pins [3]WheelPins, maxRadPerSec float64) (*Driver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("wheeldrive: rpio.Open: %w", err)
	}
	d := &Driver{maxRadPerSec: maxRadPerSec}
	for i, p := range pins {
		d.wheels[i] = newWheel(p)
	}
	return d, nil
}

// Drive sets each wheel's velocity from a mecanum forward-kinematics
// output, where u[i] is wheel i's commanded angular velocity in rad/s.
func (d *Driver) Drive(u [3]float64) {
	for i, w := range d.wheels {
		w.setVelocity(u[i], d.maxRadPerSec)
	}
}

func (d *Driver) Stop() {
	for _, w := range d.wheels {
		w.stop()
	}
}

func (d *Driver) Close() error {
	d.Stop()
	for _, w := range d.wheels {
		w.pwm.stop()
	}
	return rpio.Close()
}

// Package mecanum implements the body-twist <-> wheel-velocity kinematic
// mapping and the velocity-command controller built on top of it.
//
// Grounded on robo_rover_lib/src/utils/mecanum_kinematics.rs: same default
// geometry constants, same 3x3 H-matrix construction, same forward/inverse
// pair (inverse via the Moore-Penrose pseudoinverse of H).
package mecanum

import "math"

// BodyTwist is the commanded/estimated velocity in the rover chassis frame.
type BodyTwist struct {
	OmegaZ, VX, VY float64
}

// WheelVelocities are the three wheel angular velocities in rad/s.
type WheelVelocities [3]float64

// Config is the kinematic geometry of a three-wheel mecanum/omni chassis.
type Config struct {
	WheelRadius  float64    // r
	ChassisRadius float64   // d
	Gamma        [3]float64 // sliding angles, radians
	Beta         [3]float64 // wheel mounting angles, radians
}

func deg(d float64) float64 { return d * math.Pi / 180 }

// DefaultConfig mirrors the original's default geometry.
func DefaultConfig() Config {
	return Config{
		WheelRadius:   0.05,
		ChassisRadius: 0.15,
		Gamma:         [3]float64{deg(45), deg(-45), deg(45)},
		Beta:          [3]float64{deg(0), deg(120), deg(240)},
	}
}

// Kinematics holds the precomputed 3x3 H matrix for a Config.
type Kinematics struct {
	cfg Config
	h   [3][3]float64
}

func New(cfg Config) *Kinematics {
	k := &Kinematics{cfg: cfg}
	k.h = computeH(cfg)
	return k
}

// computeH builds the wheel-velocity-from-twist matrix, Modern Robotics Eq.
// (13.6): for wheel i at position (x_i, y_i) = (d*cos(beta_i), d*sin(beta_i))
// in the body frame,
//
//	h_i(0) = 1/(r*cos(gamma_i)) * [ x_i*sin(beta_i+gamma_i) - y_i*cos(beta_i+gamma_i), cos(beta_i+gamma_i), sin(beta_i+gamma_i) ]
func computeH(cfg Config) [3][3]float64 {
	var h [3][3]float64
	r := cfg.WheelRadius
	d := cfg.ChassisRadius
	for i := 0; i < 3; i++ {
		beta := cfg.Beta[i]
		gamma := cfg.Gamma[i]
		x := d * math.Cos(beta)
		y := d * math.Sin(beta)
		denom := r * math.Cos(gamma)
		h[i][0] = (x*math.Sin(beta+gamma) - y*math.Cos(beta+gamma)) / denom
		h[i][1] = math.Cos(beta+gamma) / denom
		h[i][2] = math.Sin(beta+gamma) / denom
	}
	return h
}

// Forward maps a body twist to wheel angular velocities: u = H . twist.
func (k *Kinematics) Forward(t BodyTwist) WheelVelocities {
	v := [3]float64{t.OmegaZ, t.VX, t.VY}
	var u WheelVelocities
	for i := 0; i < 3; i++ {
		u[i] = k.h[i][0]*v[0] + k.h[i][1]*v[1] + k.h[i][2]*v[2]
	}
	return u
}

// Inverse maps wheel angular velocities back to a body twist via the
// Moore-Penrose pseudoinverse of H (H is 3x3 here, so this is a direct
// inverse when H is non-singular, which holds for any valid mounting
// geometry). Round-trips Forward within numerical precision.
func (k *Kinematics) Inverse(u WheelVelocities) BodyTwist {
	inv, ok := invert3x3(k.h)
	if !ok {
		return BodyTwist{}
	}
	v := [3]float64{
		inv[0][0]*u[0] + inv[0][1]*u[1] + inv[0][2]*u[2],
		inv[1][0]*u[0] + inv[1][1]*u[1] + inv[1][2]*u[2],
		inv[2][0]*u[0] + inv[2][1]*u[1] + inv[2][2]*u[2],
	}
	return BodyTwist{OmegaZ: v[0], VX: v[1], VY: v[2]}
}

func invert3x3(m [3][3]float64) ([3][3]float64, bool) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])

	if math.Abs(det) < 1e-12 {
		return [3][3]float64{}, false
	}
	invDet := 1 / det

	var inv [3][3]float64
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet
	return inv, true
}

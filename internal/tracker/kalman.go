// Package tracker implements a SORT-style multi-object tracker: per-track
// constant-velocity Kalman filter plus greedy highest-IoU-first association,
// gated by class-name match.
//
// Grounded on original_source/object_tracker/src/main.rs.
package tracker

// Kalman is a constant-velocity filter over state [x, y, vx, vy], measuring
// position only. Process/measurement noise are fixed diagonal values from
// config, matching the original's simplified covariance handling.
type Kalman struct {
	x [4]float64 // x, y, vx, vy
	p [4][4]float64

	processNoise     float64
	measurementNoise float64
}

func NewKalman(x, y, processNoise, measurementNoise float64) *Kalman {
	k := &Kalman{x: [4]float64{x, y, 0, 0}, processNoise: processNoise, measurementNoise: measurementNoise}
	for i := 0; i < 4; i++ {
		k.p[i][i] = 1.0
	}
	return k
}

// Predict advances the state by one unit time step under constant velocity.
func (k *Kalman) Predict() {
	k.x[0] += k.x[2]
	k.x[1] += k.x[3]
	for i := 0; i < 4; i++ {
		k.p[i][i] += k.processNoise
	}
}

func (k *Kalman) Position() (float64, float64) { return k.x[0], k.x[1] }

// Update corrects the state with a position measurement. On singular
// innovation covariance the update is skipped and the caller is told so
// (KalmanSingular policy: track continues predict-only until next healthy
// update).
func (k *Kalman) Update(mx, my float64) (ok bool) {
	// Measurement matrix H = [[1,0,0,0],[0,1,0,0]]; innovation covariance
	// S = H P H^T + R is the top-left 2x2 block of P plus R on the diagonal.
	s00 := k.p[0][0] + k.measurementNoise
	s01 := k.p[0][1]
	s10 := k.p[1][0]
	s11 := k.p[1][1] + k.measurementNoise

	det := s00*s11 - s01*s10
	if det == 0 || (det > -1e-12 && det < 1e-12) {
		return false
	}
	invDet := 1 / det
	si00 := s11 * invDet
	si01 := -s01 * invDet
	si10 := -s10 * invDet
	si11 := s00 * invDet

	innovX := mx - k.x[0]
	innovY := my - k.x[1]

	// Kalman gain K = P H^T S^-1 (4x2); apply to state and covariance.
	var kg [4][2]float64
	for i := 0; i < 4; i++ {
		phT0 := k.p[i][0]
		phT1 := k.p[i][1]
		kg[i][0] = phT0*si00 + phT1*si10
		kg[i][1] = phT0*si01 + phT1*si11
	}

	for i := 0; i < 4; i++ {
		k.x[i] += kg[i][0]*innovX + kg[i][1]*innovY
	}

	// P <- (I - K H) P
	var newP [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			khp := kg[i][0]*k.p[0][j] + kg[i][1]*k.p[1][j]
			newP[i][j] = k.p[i][j] - khp
		}
	}
	k.p = newP
	return true
}

package visualservo

import (
	"log"
	"os"
	"strconv"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// CameraConfig describes the mounted camera used for pinhole distance
// estimation.
type CameraConfig struct {
	FocalLengthPixels float32
	ImageWidth        uint32
	ImageHeight       uint32
	CameraHeight      float32
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{FocalLengthPixels: 500.0, ImageWidth: 640, ImageHeight: 480, CameraHeight: 0.5}
}

// Config holds the servo loop's PID gains, safety limits, and per-class
// object heights used for distance estimation.
type Config struct {
	LateralKp, LateralKi, LateralKd             float64
	LongitudinalKp, LongitudinalKi, LongitudinalKd float64

	MinDistance        float32
	MaxVelocity        float64
	MaxAngularVelocity float64

	TargetBBoxHeight float32
	DeadZone         float32

	PersonHeight        float32
	DogHeight           float32
	CatHeight           float32
	DefaultObjectHeight float32
}

func DefaultConfig() Config {
	return Config{
		LateralKp: 1.5, LateralKi: 0.0, LateralKd: 0.2,
		LongitudinalKp: 0.8, LongitudinalKi: 0.0, LongitudinalKd: 0.15,
		MinDistance: 1.0, MaxVelocity: 0.5, MaxAngularVelocity: 1.0,
		TargetBBoxHeight: 0.3, DeadZone: 0.05,
		PersonHeight: 1.7, DogHeight: 0.5, CatHeight: 0.3, DefaultObjectHeight: 0.5,
	}
}

// ConfigFromEnv overlays DefaultConfig with LATERAL_PID_*, LONGITUDINAL_PID_*,
// MIN_DISTANCE, MAX_VELOCITY, MAX_ANGULAR_VELOCITY, TARGET_BBOX_HEIGHT, and
// DEAD_ZONE when set, matching the servo node's original env-driven tuning.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	envFloat64(&c.LateralKp, "LATERAL_PID_KP")
	envFloat64(&c.LateralKi, "LATERAL_PID_KI")
	envFloat64(&c.LateralKd, "LATERAL_PID_KD")
	envFloat64(&c.LongitudinalKp, "LONGITUDINAL_PID_KP")
	envFloat64(&c.LongitudinalKi, "LONGITUDINAL_PID_KI")
	envFloat64(&c.LongitudinalKd, "LONGITUDINAL_PID_KD")
	envFloat64(&c.MaxVelocity, "MAX_VELOCITY")
	envFloat64(&c.MaxAngularVelocity, "MAX_ANGULAR_VELOCITY")

	envFloat32(&c.MinDistance, "MIN_DISTANCE")
	envFloat32(&c.TargetBBoxHeight, "TARGET_BBOX_HEIGHT")
	envFloat32(&c.DeadZone, "DEAD_ZONE")
	return c
}

func envFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

// Controller turns tracking telemetry into a rover velocity command plus
// enriched telemetry (distance estimate, control output, control mode).
//
// Grounded on
// original_source/rover-kiwi/visual_servo_controller/src/main.rs
// ServoController.
type Controller struct {
	cfg       Config
	camera    CameraConfig
	lateral   *PID
	longitudinal *PID
}

func NewController(cfg Config, camera CameraConfig) *Controller {
	return &Controller{
		cfg:    cfg,
		camera: camera,
		lateral: NewPID(cfg.LateralKp, cfg.LateralKi, cfg.LateralKd,
			-cfg.MaxAngularVelocity, cfg.MaxAngularVelocity),
		longitudinal: NewPID(cfg.LongitudinalKp, cfg.LongitudinalKi, cfg.LongitudinalKd,
			-cfg.MaxVelocity, cfg.MaxVelocity),
	}
}

// EstimateDistance uses the pinhole camera model: distance = (real_height *
// focal_length) / bbox_height_pixels, clamped to [0.5, 10.0]. Returns 10.0
// when the box is too small to measure reliably.
func (c *Controller) EstimateDistance(bbox types.BoundingBox, className string) float32 {
	realHeight := c.cfg.DefaultObjectHeight
	switch className {
	case "person":
		realHeight = c.cfg.PersonHeight
	case "dog":
		realHeight = c.cfg.DogHeight
	case "cat":
		realHeight = c.cfg.CatHeight
	}

	bboxHeightPixels := bbox.Height() * float32(c.camera.ImageHeight)
	if bboxHeightPixels < 1.0 {
		return 10.0
	}

	distance := (realHeight * c.camera.FocalLengthPixels) / bboxHeightPixels
	if distance < 0.5 {
		return 0.5
	}
	if distance > 10.0 {
		return 10.0
	}
	return distance
}

// ProcessTracking consumes one tracking telemetry sample and produces an
// optional rover command (only while actively Tracking) plus the telemetry
// enriched with distance estimate, control output, and control mode.
func (c *Controller) ProcessTracking(telemetry types.TrackingTelemetry, dt float64) (*types.RoverCommand, types.TrackingTelemetry) {
	if telemetry.State != types.TrackingTracking {
		c.lateral.Reset()
		c.longitudinal.Reset()
		telemetry.ControlMode = types.ControlManual
		return nil, telemetry
	}

	target := telemetry.Target
	if target == nil {
		log.Printf("visualservo: state is Tracking but no target present")
		telemetry.ControlMode = types.ControlManual
		return nil, telemetry
	}

	centerX, _ := target.BBox.Center()
	errorX := centerX - 0.5
	if errorX < 0 {
		if -errorX < c.cfg.DeadZone {
			errorX = 0
		}
	} else if errorX < c.cfg.DeadZone {
		errorX = 0
	}

	estimatedDistance := c.EstimateDistance(target.BBox, target.ClassName)

	currentBBoxHeight := target.BBox.Height()
	errorSize := c.cfg.TargetBBoxHeight - currentBBoxHeight

	omegaZ := -c.lateral.Update(float64(errorX), dt)
	vx := c.longitudinal.Update(float64(errorSize), dt)

	if estimatedDistance < c.cfg.MinDistance {
		if vx > 0 {
			vx = 0
		}
		log.Printf("visualservo: target too close (%.2fm < %.2fm), limiting forward motion",
			estimatedDistance, c.cfg.MinDistance)
	}

	vx = clampF(vx, -c.cfg.MaxVelocity, c.cfg.MaxVelocity)
	omegaZ = clampF(omegaZ, -c.cfg.MaxAngularVelocity, c.cfg.MaxAngularVelocity)

	controlOutput := types.ControlOutput{OmegaZ: omegaZ, VX: vx, ErrorX: errorX, ErrorSize: errorSize}
	telemetry.DistanceEstimate = &estimatedDistance
	telemetry.ControlOutput = &controlOutput
	telemetry.ControlMode = types.ControlAutonomous

	meta := types.NewCommandMetadata(types.SourceVisualServo, types.PriorityHigh)
	cmd := types.NewVelocityCommand(meta, omegaZ, vx, 0.0)
	return &cmd, telemetry
}

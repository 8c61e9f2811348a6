// Package arm implements the degrees-of-freedom-agnostic arm controller:
// joint-limit validated command canonicalization over a TOML-configured
// kinematic chain, dispatching to the arm-actuator microservice.
package arm

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// JointLimit bounds one joint's travel and motion, grounded on
// robo_rover_lib's config.rs JointLimit.
type JointLimit struct {
	MinAngle        float64 `toml:"min_angle"`
	MaxAngle        float64 `toml:"max_angle"`
	MaxVelocity     float64 `toml:"max_velocity"`
	MaxAcceleration float64 `toml:"max_acceleration"`
}

// DHParameter is one row of the Denavit-Hartenberg chain.
type DHParameter struct {
	A     float64 `toml:"a"`
	Alpha float64 `toml:"alpha"`
	D     float64 `toml:"d"`
	Theta float64 `toml:"theta"`
}

type KinematicsConfig struct {
	LinkLengths []float64     `toml:"link_lengths"`
	DHParams    []DHParameter `toml:"dh_parameters"`
	BaseOffset  [3]float64    `toml:"base_offset"`
}

type ControlConfig struct {
	MaxCartesianVelocity     float64 `toml:"max_cartesian_velocity"`
	MaxCartesianAcceleration float64 `toml:"max_cartesian_acceleration"`
	PositionTolerance        float64 `toml:"position_tolerance"`
	OrientationTolerance     float64 `toml:"orientation_tolerance"`
}

// Config is the top-level arm description, loaded from a TOML file.
type Config struct {
	Name        string           `toml:"name"`
	DOF         int              `toml:"dof"`
	JointLimits []JointLimit     `toml:"joint_limits"`
	Kinematics  KinematicsConfig `toml:"kinematics"`
	Control     ControlConfig    `toml:"control"`
}

func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("arm: load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.JointLimits) != c.DOF {
		return fmt.Errorf("arm: joint limits count (%d) doesn't match DOF (%d)", len(c.JointLimits), c.DOF)
	}
	if len(c.Kinematics.DHParams) != c.DOF {
		return fmt.Errorf("arm: DH parameters count (%d) doesn't match DOF (%d)", len(c.Kinematics.DHParams), c.DOF)
	}
	return nil
}

func DefaultConfig() Config {
	limit := JointLimit{MinAngle: -3.14159, MaxAngle: 3.14159, MaxVelocity: 1.0, MaxAcceleration: 2.0}
	dh := DHParameter{}
	limits := make([]JointLimit, 6)
	dhs := make([]DHParameter, 6)
	for i := range limits {
		limits[i] = limit
		dhs[i] = dh
	}
	return Config{
		Name:        "arm_6dof",
		DOF:         6,
		JointLimits: limits,
		Kinematics:  KinematicsConfig{DHParams: dhs},
		Control:     ControlConfig{MaxCartesianVelocity: 0.1, MaxCartesianAcceleration: 0.2, PositionTolerance: 0.005, OrientationTolerance: 0.02},
	}
}

package types

import "github.com/google/uuid"

// CommandPriority orders rover command sources; comparison is plain integer
// ordering (Low < Normal < High < Emergency).
type CommandPriority int

const (
	PriorityLow CommandPriority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

// InputSource identifies where a command originated, for logging and for
// distinguishing manual from autonomous paths in the arbiter.
type InputSource string

const (
	SourceKeyboard      InputSource = "keyboard"
	SourceWebBridge     InputSource = "web_bridge"
	SourceFleetOverlay  InputSource = "fleet_overlay"
	SourceAutonomous    InputSource = "autonomous"
	SourceRoverArbiter  InputSource = "rover_controller"
	SourceVisualServo   InputSource = "visual_servo"
	SourceVoiceCommand  InputSource = "voice_command"
)

// CommandMetadata is carried by every rover/arm command.
type CommandMetadata struct {
	CommandID string          `json:"command_id"`
	Timestamp int64           `json:"timestamp"`
	Source    InputSource     `json:"source"`
	Priority  CommandPriority `json:"priority"`
}

func NewCommandMetadata(source InputSource, priority CommandPriority) CommandMetadata {
	return CommandMetadata{
		CommandID: uuid.NewString(),
		Timestamp: NowMillis(),
		Source:    source,
		Priority:  priority,
	}
}

// RoverCommandKind enumerates the closed set of rover command variants.
type RoverCommandKind string

const (
	RoverCmdVelocity      RoverCommandKind = "velocity"
	RoverCmdJointPositions RoverCommandKind = "joint_positions"
	RoverCmdStop          RoverCommandKind = "stop"
	RoverCmdLegacy        RoverCommandKind = "legacy"
)

// RoverCommand is a tagged union over the rover's command variants. Only the
// fields relevant to Kind are populated; this mirrors the closed-enum
// doctrine from the spec's design notes rather than open polymorphism.
type RoverCommand struct {
	Metadata CommandMetadata  `json:"metadata"`
	Kind     RoverCommandKind `json:"kind"`

	OmegaZ float64 `json:"omega_z,omitempty"`
	VX     float64 `json:"v_x,omitempty"`
	VY     float64 `json:"v_y,omitempty"`

	Q1 float64 `json:"q1,omitempty"`
	Q2 float64 `json:"q2,omitempty"`
	Q3 float64 `json:"q3,omitempty"`

	Throttle    float64 `json:"throttle,omitempty"`
	Brake       float64 `json:"brake,omitempty"`
	SteeringDeg float64 `json:"steering_deg,omitempty"`
}

func NewVelocityCommand(meta CommandMetadata, omegaZ, vx, vy float64) RoverCommand {
	return RoverCommand{Metadata: meta, Kind: RoverCmdVelocity, OmegaZ: omegaZ, VX: vx, VY: vy}
}

func NewStopCommand(meta CommandMetadata) RoverCommand {
	return RoverCommand{Metadata: meta, Kind: RoverCmdStop}
}

// ArmCommandKind enumerates the closed set of arm command variants.
type ArmCommandKind string

const (
	ArmCmdJointPosition  ArmCommandKind = "joint_position"
	ArmCmdCartesianMove  ArmCommandKind = "cartesian_move"
	ArmCmdRelativeMove   ArmCommandKind = "relative_move"
	ArmCmdHome           ArmCommandKind = "home"
	ArmCmdStop           ArmCommandKind = "stop"
	ArmCmdEmergencyStop  ArmCommandKind = "emergency_stop"
)

type ArmCommand struct {
	Kind ArmCommandKind `json:"kind"`

	JointAngles []float64 `json:"joint_angles,omitempty"`
	MaxVelocity *float64  `json:"max_velocity,omitempty"`

	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Z     float64 `json:"z,omitempty"`
	Roll  float64 `json:"roll,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
	Yaw   float64 `json:"yaw,omitempty"`

	DeltaJoints []float64 `json:"delta_joints,omitempty"`
}

type ArmCommandWithMetadata struct {
	Command  *ArmCommand     `json:"command,omitempty"`
	Metadata CommandMetadata `json:"metadata"`
}

// CompleteJointState is the URDF joint vector: 3 mecanum wheel joints
// followed by 6 arm joints, in a fixed model-defined name order.
type CompleteJointState struct {
	Names     []string  `json:"names"`
	Positions []float64 `json:"positions"`
}

func NewCompleteJointState() CompleteJointState {
	return CompleteJointState{
		Names: []string{
			"ST3215_Servo_Motor-v1-2_Revolute-60",
			"ST3215_Servo_Motor-v1-1_Revolute-62",
			"ST3215_Servo_Motor-v1_Revolute-64",
			"STS3215_03a-v1_Revolute-45",
			"STS3215_03a-v1-1_Revolute-49",
			"STS3215_03a-v1-2_Revolute-51",
			"STS3215_03a-v1-3_Revolute-53",
			"STS3215_03a_Wrist_Roll-v1_Revolute-55",
			"STS3215_03a-v1-4_Revolute-57",
		},
		Positions: make([]float64, 9),
	}
}

func (s *CompleteJointState) SetRoverPositions(w1, w2, w3 float64) {
	if len(s.Positions) >= 3 {
		s.Positions[0], s.Positions[1], s.Positions[2] = w1, w2, w3
	}
}

func (s *CompleteJointState) SetArmPositions(armJoints []float64) {
	for i, pos := range armJoints {
		if i+3 < len(s.Positions) {
			s.Positions[i+3] = pos
		}
	}
}

func (s CompleteJointState) RoverPositions() [3]float64 {
	var out [3]float64
	for i := 0; i < 3 && i < len(s.Positions); i++ {
		out[i] = s.Positions[i]
	}
	return out
}

func (s CompleteJointState) ArmPositions() []float64 {
	if len(s.Positions) <= 3 {
		return nil
	}
	return append([]float64(nil), s.Positions[3:]...)
}

package types

import "time"

// BoundingBox is a normalized axis-aligned box in [0,1] image coordinates.
type BoundingBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (b BoundingBox) Center() (float32, float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

func (b BoundingBox) Width() float32  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float32 { return b.Y2 - b.Y1 }
func (b BoundingBox) Area() float32   { return b.Width() * b.Height() }

// IoU computes intersection-over-union with another box. Symmetric, in [0,1].
func (b BoundingBox) IoU(o BoundingBox) float32 {
	x1 := max32(b.X1, o.X1)
	y1 := max32(b.Y1, o.Y1)
	x2 := min32(b.X2, o.X2)
	y2 := min32(b.Y2, o.Y2)

	if x2 < x1 || y2 < y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - intersection
	if union > 0 {
		return intersection / union
	}
	return 0
}

// ToPixels converts to pixel coordinates given image dimensions.
func (b BoundingBox) ToPixels(width, height uint32) (x1, y1, x2, y2 uint32) {
	return uint32(b.X1 * float32(width)), uint32(b.Y1 * float32(height)),
		uint32(b.X2 * float32(width)), uint32(b.Y2 * float32(height))
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Detection is a single result from the object detector. TrackingID is
// assigned exclusively by the tracker, never by the detector.
type Detection struct {
	BBox       BoundingBox `json:"bbox"`
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float32     `json:"confidence"`
	TrackingID *uint32     `json:"tracking_id,omitempty"`
}

// DetectionFrame carries all detections for one camera frame.
type DetectionFrame struct {
	EntityID   string      `json:"entity_id,omitempty"`
	FrameID    uint64      `json:"frame_id"`
	Timestamp  int64       `json:"timestamp"`
	Width      uint32      `json:"width"`
	Height     uint32      `json:"height"`
	Detections []Detection `json:"detections"`
}

func NowMillis() int64 { return time.Now().UnixMilli() }

// TrackingTarget is the object currently selected for visual servoing.
type TrackingTarget struct {
	TrackingID uint32      `json:"tracking_id"`
	ClassName  string      `json:"class_name"`
	BBox       BoundingBox `json:"bbox"`
	LastSeen   int64       `json:"last_seen"`
	Confidence float32     `json:"confidence"`
	LostFrames uint32      `json:"lost_frames"`
}

func (t TrackingTarget) IsLost(maxLostFrames uint32) bool {
	return t.LostFrames > maxLostFrames
}

// TrackingState is the tracker's current mode.
type TrackingState string

const (
	TrackingDisabled   TrackingState = "disabled"
	TrackingEnabled    TrackingState = "enabled"
	TrackingTracking   TrackingState = "tracking"
	TrackingTargetLost TrackingState = "target_lost"
)

// ControlMode reports whether the rover is currently under manual or
// autonomous (visual servo) control.
type ControlMode string

const (
	ControlManual     ControlMode = "manual"
	ControlAutonomous ControlMode = "autonomous"
)

// ControlOutput is the visual servo's raw control signal, kept for telemetry.
type ControlOutput struct {
	OmegaZ    float64 `json:"omega_z"`
	VX        float64 `json:"v_x"`
	ErrorX    float32 `json:"error_x"`
	ErrorSize float32 `json:"error_size"`
}

// TrackingTelemetry is what the tracker/servo publish to the web bridge.
type TrackingTelemetry struct {
	EntityID         string         `json:"entity_id,omitempty"`
	State            TrackingState  `json:"state"`
	Target           *TrackingTarget `json:"target,omitempty"`
	DistanceEstimate *float32       `json:"distance_estimate,omitempty"`
	ControlOutput    *ControlOutput `json:"control_output,omitempty"`
	ControlMode      ControlMode    `json:"control_mode"`
	Timestamp        int64          `json:"timestamp"`
}

func NewTrackingTelemetry(state TrackingState, target *TrackingTarget) TrackingTelemetry {
	return TrackingTelemetry{
		State:       state,
		Target:      target,
		ControlMode: ControlManual,
		Timestamp:   NowMillis(),
	}
}

// TrackingCommand is a tagged command controlling the tracker, mirroring the
// closed set of operator actions the web bridge can issue.
type TrackingCommandKind string

const (
	TrackingCmdEnable           TrackingCommandKind = "enable"
	TrackingCmdDisable          TrackingCommandKind = "disable"
	TrackingCmdSelectTarget     TrackingCommandKind = "select_target"
	TrackingCmdSelectTargetByID TrackingCommandKind = "select_target_by_id"
	TrackingCmdClearTarget      TrackingCommandKind = "clear_target"
)

type TrackingCommand struct {
	Kind            TrackingCommandKind `json:"type"`
	DetectionIndex  int                 `json:"detection_index,omitempty"`
	TrackingID      uint32              `json:"tracking_id,omitempty"`
	Timestamp       int64               `json:"timestamp"`
}

package types

// Frame is a single raw camera frame. Invariant: len(Bytes) == Width*Height*3
// for the only supported encoding, RGB8.
type FrameEncoding string

const EncodingRGB8 FrameEncoding = "rgb8"

type Frame struct {
	EntityID  string
	FrameID   uint64
	Timestamp int64
	Width     uint32
	Height    uint32
	Encoding  FrameEncoding
	Bytes     []byte
}

// RoverTelemetry is a legacy flat pose/velocity telemetry shape. Nothing in
// this module emits it; the rover telemetry topic carries CompleteJointState.
type RoverTelemetry struct {
	EntityID  string  `json:"entity_id,omitempty"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	Yaw       float64 `json:"yaw"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

// NodeMetrics are the per-node samples the performance monitor aggregates.
type NodeMetrics struct {
	NodeID               string  `json:"node_id"`
	FPS                  float32 `json:"fps"`
	AvgProcessingTimeMs  float32 `json:"avg_processing_time_ms"`
	MaxProcessingTimeMs  float32 `json:"max_processing_time_ms"`
	CPUUsagePercent      float32 `json:"cpu_usage_percent"`
	MemoryUsageMB        float32 `json:"memory_usage_mb"`
	QueueSize            int     `json:"queue_size"`
	DroppedFrames        uint64  `json:"dropped_frames"`
	Timestamp            int64   `json:"timestamp"`
}

// SystemMetrics is the monitor's single published snapshot.
type SystemMetrics struct {
	EntityID              string                 `json:"entity_id,omitempty"`
	TotalCPUPercent       float32                `json:"total_cpu_percent"`
	TotalMemoryMB         float32                `json:"total_memory_mb"`
	AvailableMemoryMB     float32                `json:"available_memory_mb"`
	TotalSystemMemoryMB   float32                `json:"total_system_memory_mb"`
	DataflowFPS           float32                `json:"dataflow_fps"`
	EndToEndLatencyMs     float32                `json:"end_to_end_latency_ms"`
	NodeMetrics           map[string]NodeMetrics `json:"node_metrics"`
	Timestamp             int64                  `json:"timestamp"`
}

func NewSystemMetrics() SystemMetrics {
	return SystemMetrics{
		NodeMetrics: make(map[string]NodeMetrics),
		Timestamp:   NowMillis(),
	}
}

func (m *SystemMetrics) UpdateNode(nm NodeMetrics) {
	m.NodeMetrics[nm.NodeID] = nm
}

// CalculateDataflowFPS sets DataflowFPS to the minimum FPS across the given
// vision-pipeline node names that are present in NodeMetrics.
func (m *SystemMetrics) CalculateDataflowFPS(visionNodes []string) {
	min := float32(0)
	found := false
	for _, name := range visionNodes {
		nm, ok := m.NodeMetrics[name]
		if !ok {
			continue
		}
		if !found || nm.FPS < min {
			min = nm.FPS
			found = true
		}
	}
	if found {
		m.DataflowFPS = min
	} else {
		m.DataflowFPS = 0
	}
}

// CalculateEndToEndLatency sums average processing time across the given
// vision-pipeline node names, approximating camera-to-web-UI latency.
func (m *SystemMetrics) CalculateEndToEndLatency(visionNodes []string) {
	var sum float32
	for _, name := range visionNodes {
		if nm, ok := m.NodeMetrics[name]; ok {
			sum += nm.AvgProcessingTimeMs
		}
	}
	m.EndToEndLatencyMs = sum
}

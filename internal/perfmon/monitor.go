// Package perfmon samples system and dataflow-node performance metrics,
// grounded on robo_rover_lib/src/types/performance_types.rs.
package perfmon

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// visionNodes is the node set over which dataflow FPS is the minimum and
// end-to-end latency is summed, matching
// SystemMetrics::calculate_dataflow_fps exactly.
var visionNodes = []string{"gst-camera", "object-detector", "object-tracker", "visual-servo-controller"}

// Config mirrors performance_types.rs's PerformanceConfig.
type Config struct {
	CollectionInterval time.Duration
	MonitorCPU         bool
	MonitorMemory      bool
	MonitorQueues      bool
	MonitoredNodes     []string
}

func DefaultConfig() Config {
	return Config{CollectionInterval: time.Second, MonitorCPU: true, MonitorMemory: true, MonitorQueues: true}
}

// NodeSampler reports per-tick instrumentation for one dataflow node;
// *dataflow.NodeStats implements this without this package importing
// internal/dataflow.
type NodeSampler interface {
	NodeID() string
	FPS() float32
	AvgProcessingTimeMs() float32
	MaxProcessingTimeMs() float32
	QueueSize() int
	DroppedFrames() uint64
}

// Monitor samples system-wide CPU/memory on a ticker and merges in
// per-node samples registered by the dataflow graph.
type Monitor struct {
	cfg Config

	mu       sync.Mutex
	samplers []NodeSampler
	latest   types.SystemMetrics
	entityID string
}

func NewMonitor(cfg Config, entityID string) *Monitor {
	return &Monitor{cfg: cfg, entityID: entityID, latest: types.NewSystemMetrics()}
}

func (m *Monitor) RegisterNode(s NodeSampler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samplers = append(m.samplers, s)
}

// Run samples metrics every CollectionInterval until stop is closed,
// invoking publish with each freshly computed snapshot.
func (m *Monitor) Run(stop <-chan struct{}, publish func(types.SystemMetrics)) {
	ticker := time.NewTicker(m.cfg.CollectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			publish(m.sample())
		}
	}
}

func (m *Monitor) sample() types.SystemMetrics {
	snap := types.NewSystemMetrics()
	snap.EntityID = m.entityID

	if m.cfg.MonitorCPU {
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			snap.TotalCPUPercent = float32(percents[0])
		}
	}
	if m.cfg.MonitorMemory {
		if vm, err := mem.VirtualMemory(); err == nil {
			snap.TotalMemoryMB = float32(vm.Used) / (1024 * 1024)
			snap.AvailableMemoryMB = float32(vm.Available) / (1024 * 1024)
			snap.TotalSystemMemoryMB = float32(vm.Total) / (1024 * 1024)
		}
	}

	m.mu.Lock()
	samplers := append([]NodeSampler(nil), m.samplers...)
	m.mu.Unlock()

	for _, s := range samplers {
		snap.UpdateNode(types.NodeMetrics{
			NodeID:              s.NodeID(),
			FPS:                 s.FPS(),
			AvgProcessingTimeMs: s.AvgProcessingTimeMs(),
			MaxProcessingTimeMs: s.MaxProcessingTimeMs(),
			QueueSize:           s.QueueSize(),
			DroppedFrames:       s.DroppedFrames(),
			Timestamp:           types.NowMillis(),
		})
	}

	snap.CalculateDataflowFPS(visionNodes)
	snap.CalculateEndToEndLatency(visionNodes)

	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	return snap
}

func (m *Monitor) Latest() types.SystemMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

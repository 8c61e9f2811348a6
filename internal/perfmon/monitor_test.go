package perfmon

import (
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func TestCalculateDataflowFPS_TakesMinimumAcrossVisionNodes(t *testing.T) {
	s := types.NewSystemMetrics()
	s.UpdateNode(types.NodeMetrics{NodeID: "gst-camera", FPS: 30})
	s.UpdateNode(types.NodeMetrics{NodeID: "object-detector", FPS: 12})
	s.UpdateNode(types.NodeMetrics{NodeID: "object-tracker", FPS: 25})
	s.CalculateDataflowFPS(visionNodes)
	if s.DataflowFPS != 12 {
		t.Fatalf("expected dataflow FPS to be the minimum (12), got %v", s.DataflowFPS)
	}
}

func TestCalculateDataflowFPS_IgnoresNonVisionNodes(t *testing.T) {
	s := types.NewSystemMetrics()
	s.UpdateNode(types.NodeMetrics{NodeID: "fleet-bridge", FPS: 1})
	s.CalculateDataflowFPS(visionNodes)
	if s.DataflowFPS != 0 {
		t.Fatalf("expected 0 when no vision nodes are present, got %v", s.DataflowFPS)
	}
}

func TestCalculateEndToEndLatency_SumsVisionNodeAverages(t *testing.T) {
	s := types.NewSystemMetrics()
	s.UpdateNode(types.NodeMetrics{NodeID: "gst-camera", AvgProcessingTimeMs: 5})
	s.UpdateNode(types.NodeMetrics{NodeID: "object-detector", AvgProcessingTimeMs: 20})
	s.UpdateNode(types.NodeMetrics{NodeID: "visual-servo-controller", AvgProcessingTimeMs: 3})
	s.CalculateEndToEndLatency(visionNodes)
	if s.EndToEndLatencyMs != 28 {
		t.Fatalf("expected summed latency of 28ms, got %v", s.EndToEndLatencyMs)
	}
}

type fakeSampler struct{ id string }

func (f fakeSampler) NodeID() string              { return f.id }
func (f fakeSampler) FPS() float32                { return 10 }
func (f fakeSampler) AvgProcessingTimeMs() float32 { return 1 }
func (f fakeSampler) MaxProcessingTimeMs() float32 { return 2 }
func (f fakeSampler) QueueSize() int               { return 0 }
func (f fakeSampler) DroppedFrames() uint64        { return 0 }

func TestMonitor_SampleMergesRegisteredNodes(t *testing.T) {
	m := NewMonitor(DefaultConfig(), "rover-1")
	m.RegisterNode(fakeSampler{id: "object-tracker"})
	snap := m.sample()
	if _, ok := snap.NodeMetrics["object-tracker"]; !ok {
		t.Fatalf("expected registered node to appear in the sampled snapshot")
	}
	if snap.EntityID != "rover-1" {
		t.Fatalf("expected entity id to be carried into the snapshot")
	}
}

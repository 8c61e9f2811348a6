package tracker

import (
	"testing"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

func box(x1, y1, x2, y2 float32) types.BoundingBox {
	return types.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func detFrame(id uint64, dets ...types.Detection) types.DetectionFrame {
	return types.DetectionFrame{FrameID: id, Timestamp: int64(id), Width: 640, Height: 480, Detections: dets}
}

func TestIoU_IdenticalAndDisjoint(t *testing.T) {
	a := box(0, 0, 0.5, 0.5)
	if a.IoU(a) != 1.0 {
		t.Fatalf("identical boxes must have IoU 1.0, got %v", a.IoU(a))
	}
	b := box(0.6, 0.6, 0.9, 0.9)
	if a.IoU(b) != 0.0 {
		t.Fatalf("disjoint boxes must have IoU 0.0, got %v", a.IoU(b))
	}
}

func TestProcess_SpawnThenPublishAfterMinHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinHits = 2
	tr := New(cfg)

	f1 := detFrame(1, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.4, 0.4, 0.6, 0.6)})
	out1, _ := tr.Process(f1)
	if len(out1.Detections) != 0 {
		t.Fatalf("new track must not publish before min_hits, got %d detections", len(out1.Detections))
	}

	f2 := detFrame(2, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.41, 0.41, 0.61, 0.61)})
	out2, _ := tr.Process(f2)
	if len(out2.Detections) != 1 || out2.Detections[0].TrackingID == nil {
		t.Fatalf("expected one published tracked detection with a tracking_id, got %+v", out2.Detections)
	}
}

func TestProcess_IDNeverReused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 1
	cfg.MinHits = 1
	tr := New(cfg)

	out1, _ := tr.Process(detFrame(1, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.1, 0.1, 0.2, 0.2)}))
	firstID := *out1.Detections[0].TrackingID

	// age it out (max_age=1: frame 2 and 3 have no match -> frames_since_update reaches 2 > 1)
	tr.Process(detFrame(2))
	tr.Process(detFrame(3))

	out4, _ := tr.Process(detFrame(4, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.1, 0.1, 0.2, 0.2)}))
	newID := *out4.Detections[0].TrackingID
	if newID == firstID {
		t.Fatalf("track ids must never be reused, got %d twice", firstID)
	}
}

func TestProcess_ClassMismatchNeverAssociates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinHits = 1
	tr := New(cfg)
	tr.Process(detFrame(1, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.4, 0.4, 0.6, 0.6)}))

	// second frame: identical box but different class -> must spawn a new track, not match.
	out, _ := tr.Process(detFrame(2, types.Detection{ClassName: "dog", Confidence: 0.9, BBox: box(0.4, 0.4, 0.6, 0.6)}))
	if len(out.Detections) != 1 {
		t.Fatalf("expected dog detection published as its own new track")
	}
}

func TestProcess_RetirementTransitionsSelectedTargetToLost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 3
	cfg.MinHits = 1
	tr := New(cfg)

	out, _ := tr.Process(detFrame(0, types.Detection{ClassName: "person", Confidence: 0.9, BBox: box(0.4, 0.4, 0.6, 0.6)}))
	id := *out.Detections[0].TrackingID
	tr.HandleCommand(types.TrackingCommand{Kind: types.TrackingCmdSelectTargetByID, TrackingID: id})

	for i := 1; i <= 4; i++ {
		_, telemetry := tr.Process(detFrame(uint64(i)))
		if i == 4 {
			if telemetry.State != types.TrackingTargetLost {
				t.Fatalf("expected TargetLost after max_age exceeded, got %v", telemetry.State)
			}
		}
	}
}

func TestProcess_EmptyDetectionsStillAgesAndPublishesTelemetry(t *testing.T) {
	tr := New(DefaultConfig())
	_, telemetry := tr.Process(detFrame(1))
	if telemetry.State != types.TrackingDisabled {
		t.Fatalf("expected disabled state with no prior Enable, got %v", telemetry.State)
	}
}

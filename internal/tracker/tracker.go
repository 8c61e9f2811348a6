package tracker

import (
	"log"
	"sort"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// Config holds the tracker's lifecycle and association parameters.
type Config struct {
	MaxAge           uint32
	MinHits          uint32
	IoUThreshold     float32
	ProcessNoise     float64
	MeasurementNoise float64
}

func DefaultConfig() Config {
	return Config{MaxAge: 5, MinHits: 3, IoUThreshold: 0.3, ProcessNoise: 1e-2, MeasurementNoise: 1e-1}
}

type track struct {
	id                uint32
	classname         string
	bbox              types.BoundingBox
	confidence        float32
	kalman            *Kalman
	framesSinceUpdate uint32
	totalFrames       uint32
	lastSeenMs        int64
	width, height     float32 // last known box size, carried through predict
}

// Tracker maintains tracks for exactly one rover/entity.
type Tracker struct {
	cfg     Config
	tracks  map[uint32]*track
	nextID  uint32

	trackingEnabled bool
	selectedID      *uint32
	state           types.TrackingState
}

func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, tracks: make(map[uint32]*track), state: types.TrackingDisabled}
}

// HandleCommand applies an operator tracking command and returns the
// resulting state.
func (t *Tracker) HandleCommand(cmd types.TrackingCommand) types.TrackingState {
	switch cmd.Kind {
	case types.TrackingCmdEnable:
		t.trackingEnabled = true
		if t.state == types.TrackingDisabled {
			t.state = types.TrackingEnabled
		}
	case types.TrackingCmdDisable:
		t.trackingEnabled = false
		t.selectedID = nil
		t.state = types.TrackingDisabled
	case types.TrackingCmdSelectTargetByID:
		if _, ok := t.tracks[cmd.TrackingID]; ok {
			id := cmd.TrackingID
			t.selectedID = &id
			t.trackingEnabled = true
			t.state = types.TrackingTracking
		} else {
			log.Printf("tracker: select_target_by_id: unknown track %d", cmd.TrackingID)
		}
	case types.TrackingCmdSelectTarget:
		log.Printf("tracker: select_target by detection index is reserved, ignoring")
	case types.TrackingCmdClearTarget:
		t.selectedID = nil
		if t.trackingEnabled {
			t.state = types.TrackingEnabled
		}
	}
	return t.state
}

// Process runs one detection-frame cycle: predict, associate, update, spawn,
// retire, publish.
func (t *Tracker) Process(frame types.DetectionFrame) (types.DetectionFrame, types.TrackingTelemetry) {
	for _, tr := range t.tracks {
		tr.kalman.Predict()
		x, y := tr.kalman.Position()
		tr.bbox = centeredBBox(x, y, tr.width, tr.height)
	}

	matches, unmatchedDet := t.associate(frame.Detections)

	for trackID, detIdx := range matches {
		tr := t.tracks[trackID]
		det := frame.Detections[detIdx]
		cx, cy := det.BBox.Center()
		if !tr.kalman.Update(float64(cx), float64(cy)) {
			log.Printf("tracker: singular innovation covariance for track %d, skipping update", trackID)
		} else {
			tr.bbox = det.BBox
		}
		tr.width, tr.height = det.BBox.Width(), det.BBox.Height()
		tr.confidence = det.Confidence
		tr.framesSinceUpdate = 0
		tr.totalFrames++
		tr.lastSeenMs = frame.Timestamp
	}

	for _, detIdx := range unmatchedDet {
		det := frame.Detections[detIdx]
		cx, cy := det.BBox.Center()
		id := t.nextID
		t.nextID++
		t.tracks[id] = &track{
			id:          id,
			classname:   det.ClassName,
			bbox:        det.BBox,
			confidence:  det.Confidence,
			kalman:      NewKalman(float64(cx), float64(cy), t.cfg.ProcessNoise, t.cfg.MeasurementNoise),
			totalFrames: 1,
			lastSeenMs:  frame.Timestamp,
			width:       det.BBox.Width(),
			height:      det.BBox.Height(),
		}
		// A track spawned this frame counts as matched to its detection: it
		// is not aged this frame and is published once it reaches MinHits.
		matches[id] = detIdx
	}

	for trackID := range t.tracks {
		if _, matched := matches[trackID]; !matched {
			t.tracks[trackID].framesSinceUpdate++
		}
	}

	for trackID, tr := range t.tracks {
		if tr.framesSinceUpdate > t.cfg.MaxAge {
			delete(t.tracks, trackID)
			if t.selectedID != nil && *t.selectedID == trackID {
				t.selectedID = nil
				if t.trackingEnabled {
					t.state = types.TrackingTargetLost
				}
			}
		}
	}

	if t.selectedID != nil {
		if tr, ok := t.tracks[*t.selectedID]; ok {
			if uint32(float64(t.cfg.MaxAge)/2) < tr.framesSinceUpdate {
				t.state = types.TrackingTargetLost
			} else if t.state != types.TrackingTargetLost {
				t.state = types.TrackingTracking
			}
		}
	}

	out := types.DetectionFrame{
		EntityID: frame.EntityID, FrameID: frame.FrameID, Timestamp: frame.Timestamp,
		Width: frame.Width, Height: frame.Height,
	}
	for trackID, detIdx := range matches {
		tr := t.tracks[trackID]
		if tr.totalFrames < t.cfg.MinHits {
			continue
		}
		det := frame.Detections[detIdx]
		id := trackID
		det.TrackingID = &id
		out.Detections = append(out.Detections, det)
	}

	telemetry := types.NewTrackingTelemetry(t.state, t.selectedTarget())
	telemetry.EntityID = frame.EntityID
	telemetry.Timestamp = frame.Timestamp
	return out, telemetry
}

func (t *Tracker) selectedTarget() *types.TrackingTarget {
	if t.selectedID == nil {
		return nil
	}
	tr, ok := t.tracks[*t.selectedID]
	if !ok {
		return nil
	}
	return &types.TrackingTarget{
		TrackingID: tr.id,
		ClassName:  tr.classname,
		BBox:       tr.bbox,
		LastSeen:   tr.lastSeenMs,
		Confidence: tr.confidence,
		LostFrames: tr.framesSinceUpdate,
	}
}

type candidate struct {
	trackID uint32
	detIdx  int
	iou     float32
}

// associate greedily matches the highest IoU pair first, gating on
// class-name equality (mismatch forces IoU=0, so it never matches), each
// track and each detection used at most once. Ties on IoU break toward the
// lower detection index through the sort comparator.
func (t *Tracker) associate(dets []types.Detection) (matches map[uint32]int, unmatchedDet []int) {
	matches = make(map[uint32]int)
	var candidates []candidate

	for trackID, tr := range t.tracks {
		for di, d := range dets {
			if d.ClassName != tr.classname {
				continue
			}
			iou := tr.bbox.IoU(d.BBox)
			if iou >= t.cfg.IoUThreshold {
				candidates = append(candidates, candidate{trackID: trackID, detIdx: di, iou: iou})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		return candidates[i].detIdx < candidates[j].detIdx
	})

	usedTrack := make(map[uint32]bool)
	usedDet := make(map[int]bool)
	for _, c := range candidates {
		if usedTrack[c.trackID] || usedDet[c.detIdx] {
			continue
		}
		matches[c.trackID] = c.detIdx
		usedTrack[c.trackID] = true
		usedDet[c.detIdx] = true
	}

	for di := range dets {
		if !usedDet[di] {
			unmatchedDet = append(unmatchedDet, di)
		}
	}
	return matches, unmatchedDet
}

func centeredBBox(cx, cy float64, width, height float32) types.BoundingBox {
	return types.BoundingBox{
		X1: float32(cx) - width/2, Y1: float32(cy) - height/2,
		X2: float32(cx) + width/2, Y2: float32(cy) + height/2,
	}
}

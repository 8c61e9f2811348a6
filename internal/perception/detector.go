// Package perception wraps object detection inference over captured camera
// frames into the DetectionFrame shape the tracker expects.
//
// Grounded on original_source/object_detector/src/main.rs (preprocess/
// postprocess/NMS pipeline), re-expressed over gocv's DNN module in place of
// onnxruntime+ndarray, following the gocv.Mat idiom already used by
// cvpipe/pipeline.go for the Haar-cascade face detector.
package perception

import (
	"fmt"
	"image"
	"os"
	"sort"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// cocoClasses is the fixed 80-class label set the reference YOLO export was
// trained against.
var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// Config controls confidence/NMS gating and the optional class allow-list.
type Config struct {
	ModelPath           string
	ConfidenceThreshold float32
	NMSThreshold        float32
	TargetClasses       []string
	InputWidth          int
	InputHeight         int
}

func DefaultConfig() Config {
	return Config{
		ModelPath: "models/yolov12n.onnx", ConfidenceThreshold: 0.5, NMSThreshold: 0.4,
		InputWidth: 640, InputHeight: 640,
	}
}

// ConfigFromEnv overlays DefaultConfig with MODEL_PATH, CONFIDENCE_THRESHOLD,
// NMS_THRESHOLD, and TARGET_CLASSES, matching the detector node's original
// env-driven tuning.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.ConfidenceThreshold = float32(f)
		}
	}
	if v := os.Getenv("NMS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.NMSThreshold = float32(f)
		}
	}
	if v := os.Getenv("TARGET_CLASSES"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				c.TargetClasses = append(c.TargetClasses, trimmed)
			}
		}
	}
	return c
}

// Detector runs YOLO-style inference over an RGB8 frame and returns a
// DetectionFrame of normalized-coordinate boxes.
type Detector struct {
	cfg          Config
	net          gocv.Net
	frameCounter uint64
}

func NewDetector(cfg Config) (*Detector, error) {
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("perception: failed to load ONNX model from %s", cfg.ModelPath)
	}
	return &Detector{cfg: cfg, net: net}, nil
}

func (d *Detector) Close() error {
	return d.net.Close()
}

// Detect runs inference on one RGB8 frame and returns a populated
// DetectionFrame (TrackingID left nil; assigned later by the tracker).
func (d *Detector) Detect(rgb []byte, width, height uint32) (types.DetectionFrame, error) {
	mat, err := gocv.NewMatFromBytes(int(height), int(width), gocv.MatTypeCV8UC3, rgb)
	if err != nil {
		return types.DetectionFrame{}, fmt.Errorf("perception: frame to mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.cfg.InputWidth, d.cfg.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets, err := d.postprocess(output)
	if err != nil {
		return types.DetectionFrame{}, err
	}

	frameID := d.frameCounter
	d.frameCounter++

	return types.DetectionFrame{
		FrameID: frameID, Timestamp: types.NowMillis(),
		Width: width, Height: height, Detections: dets,
	}, nil
}

// postprocess mirrors YoloDetector::postprocess_output: output is
// [1, 4+numClasses, numDetections] with box center/size in model-input
// pixel space; scores are per-class, one-hot-argmax selected. Boxes are
// normalized to [0,1] against the model's input size, matching the
// original's (not the source frame's) normalization.
func (d *Detector) postprocess(output gocv.Mat) ([]types.Detection, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("perception: unexpected output rank %d", len(sizes))
	}
	numFeatures := sizes[1]
	numDetections := sizes[2]
	numClasses := numFeatures - 4

	var raw []types.Detection
	for i := 0; i < numDetections; i++ {
		cx := output.GetFloatAt3(0, 0, i)
		cy := output.GetFloatAt3(0, 1, i)
		w := output.GetFloatAt3(0, 2, i)
		h := output.GetFloatAt3(0, 3, i)

		maxScore := float32(0)
		maxClassID := 0
		for c := 0; c < numClasses; c++ {
			score := output.GetFloatAt3(0, 4+c, i)
			if score > maxScore {
				maxScore = score
				maxClassID = c
			}
		}

		if maxScore < d.cfg.ConfidenceThreshold {
			continue
		}

		className := "unknown"
		if maxClassID < len(cocoClasses) {
			className = cocoClasses[maxClassID]
		}
		if len(d.cfg.TargetClasses) > 0 && !contains(d.cfg.TargetClasses, className) {
			continue
		}

		x1 := clamp01((cx - w/2) / float32(d.cfg.InputWidth))
		y1 := clamp01((cy - h/2) / float32(d.cfg.InputHeight))
		x2 := clamp01((cx + w/2) / float32(d.cfg.InputWidth))
		y2 := clamp01((cy + h/2) / float32(d.cfg.InputHeight))

		raw = append(raw, types.Detection{
			BBox: types.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
			ClassID: maxClassID, ClassName: className, Confidence: maxScore,
		})
	}

	return applyNMS(raw, d.cfg.NMSThreshold), nil
}

// applyNMS suppresses same-class boxes overlapping at or above nmsThreshold
// with a higher-confidence box, confidence-descending.
func applyNMS(dets []types.Detection, nmsThreshold float32) []types.Detection {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}
	for i := range dets {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if !keep[j] || dets[i].ClassID != dets[j].ClassID {
				continue
			}
			if dets[i].BBox.IoU(dets[j].BBox) >= nmsThreshold {
				keep[j] = false
			}
		}
	}

	out := make([]types.Detection, 0, len(dets))
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package capture turns a camera device into a stream of RGB8 frames via a
// gst-launch-1.0 subprocess, the same decoder-via-subprocess approach
// cvpipe/pipeline.go uses for the WebRTC H264 transcode path, here pointed
// at a raw v4l2 source instead of an RTP one.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"gocv.io/x/gocv"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// Config describes the capture device and target frame geometry.
type Config struct {
	Device       string // e.g. /dev/video0
	Width        int
	Height       int
	FPS          int
}

func DefaultConfig() Config {
	return Config{Device: "/dev/video0", Width: 640, Height: 480, FPS: 30}
}

// Pipeline reads raw RGB frames from a gst-launch-1.0 process (its
// videoconvert stage outputs RGB) and emits them as RGB8, matching the
// dataflow frame encoding contract.
type Pipeline struct {
	cfg    Config
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frames chan types.Frame
}

// Start launches the capture subprocess and begins decoding frames in the
// background. Call Stop to terminate it.
func Start(ctx context.Context, cfg Config, entityID string) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "gst-launch-1.0",
		"-q",
		"v4l2src", fmt.Sprintf("device=%s", cfg.Device),
		"!", fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.FPS),
		"!", "videoconvert",
		"!", "video/x-raw,format=RGB",
		"!", "fdsink", "fd=1",
	)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: stdout pipe: %w", err)
	}

	p := &Pipeline{cfg: cfg, cmd: cmd, stdout: stdout, cancel: cancel, frames: make(chan types.Frame, 4)}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("capture: start gst-launch-1.0: %w", err)
	}

	p.wg.Add(1)
	go p.readLoop(entityID)

	return p, nil
}

func (p *Pipeline) readLoop(entityID string) {
	defer p.wg.Done()
	defer close(p.frames)

	reader := bufio.NewReader(p.stdout)
	frameBytes := p.cfg.Width * p.cfg.Height * 3
	buf := make([]byte, frameBytes)
	var frameID uint64

	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err != io.EOF {
				log.Printf("capture: read error: %v", err)
			}
			return
		}

		frame := types.Frame{
			EntityID: entityID, FrameID: frameID, Timestamp: types.NowMillis(),
			Width: uint32(p.cfg.Width), Height: uint32(p.cfg.Height),
			Encoding: types.EncodingRGB8, Bytes: append([]byte(nil), buf...),
		}
		frameID++

		select {
		case p.frames <- frame:
		default:
			// drop oldest to keep pace with the capture rate
			select {
			case <-p.frames:
			default:
			}
			p.frames <- frame
		}
	}
}

// Frames returns the channel new captured frames are published on.
func (p *Pipeline) Frames() <-chan types.Frame { return p.frames }

func (p *Pipeline) Stop() {
	p.cancel()
	if p.cmd != nil {
		_ = p.cmd.Wait()
	}
	p.wg.Wait()
}

// bgrToRGB converts an in-place BGR gocv.Mat to RGB, used when a caller
// receives frames from a BGR-only source (e.g. a pre-recorded file probed
// with gocv.VideoCapture instead of the gst RGB caps above).
func bgrToRGB(mat gocv.Mat) {
	gocv.CvtColor(mat, &mat, gocv.ColorBGRToRGB)
}

// FromFile opens a video file with gocv's VideoCapture and emits a Frame for
// each decoded image, converting gocv's native BGR Mats to RGB8; a frame is
// dropped when the frames channel is full. Used for bench/replay runs where
// no live v4l2 device is attached.
func FromFile(ctx context.Context, path string, entityID string) (*Pipeline, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open file %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))

	p := &Pipeline{
		cfg:    Config{Width: width, Height: height},
		cancel: cancel,
		frames: make(chan types.Frame, 4),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.frames)
		defer cap.Close()

		mat := gocv.NewMat()
		defer mat.Close()

		var frameID uint64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ok := cap.Read(&mat); !ok || mat.Empty() {
				return
			}
			bgrToRGB(mat)

			frame := types.Frame{
				EntityID: entityID, FrameID: frameID, Timestamp: types.NowMillis(),
				Width: uint32(mat.Cols()), Height: uint32(mat.Rows()),
				Encoding: types.EncodingRGB8, Bytes: append([]byte(nil), mat.ToBytes()...),
			}
			frameID++

			select {
			case p.frames <- frame:
			default:
			}
		}
	}()

	return p, nil
}

// Package audiocapture turns a microphone device into a stream of raw f32
// PCM chunks via an ffmpeg subprocess, the uplink half of the audio/raw
// fleet topic. Grounded on client/streaming.go's ffmpeg-subprocess
// approach (VideoArgsHigh/AudioArgs), here decoding to raw float32 samples
// instead of re-encoding to RTP/Opus, since outbound audio to the operator
// travels over the WebRTC media plane (internal/webbridge/media.go)
// separately from this topic's speech-stub feed.
package audiocapture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
)

// Config describes the capture device and PCM format.
type Config struct {
	Device     string // e.g. hw:1,0 (ALSA)
	SampleRate int
	Channels   int
	ChunkSize  int // samples per published chunk
}

func DefaultConfig() Config {
	return Config{Device: "hw:1,0", SampleRate: 48000, Channels: 1, ChunkSize: 960}
}

// Pipeline decodes raw little-endian f32 PCM from an ffmpeg subprocess.
type Pipeline struct {
	cfg    Config
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	wg     sync.WaitGroup

	chunks chan []float32
}

func Start(ctx context.Context, cfg Config) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "warning",
		"-f", "alsa", "-ar", fmt.Sprintf("%d", cfg.SampleRate), "-ac", fmt.Sprintf("%d", cfg.Channels),
		"-i", cfg.Device,
		"-f", "f32le", "-acodec", "pcm_f32le", "pipe:1",
	)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("audiocapture: stdout pipe: %w", err)
	}

	p := &Pipeline{cfg: cfg, cmd: cmd, stdout: stdout, cancel: cancel, chunks: make(chan []float32, 4)}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("audiocapture: start ffmpeg: %w", err)
	}

	p.wg.Add(1)
	go p.readLoop()

	return p, nil
}

func (p *Pipeline) readLoop() {
	defer p.wg.Done()
	defer close(p.chunks)

	reader := bufio.NewReader(p.stdout)
	raw := make([]byte, p.cfg.ChunkSize*4)

	for {
		if _, err := io.ReadFull(reader, raw); err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "audiocapture: read error: %v\n", err)
			}
			return
		}

		samples := decodeF32LE(raw)

		select {
		case p.chunks <- samples:
		default:
			select {
			case <-p.chunks:
			default:
			}
			p.chunks <- samples
		}
	}
}

// decodeF32LE decodes a buffer of little-endian f32 PCM samples, the wire
// format ffmpeg's pcm_f32le encoder emits on stdout.
func decodeF32LE(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// Chunks returns the channel new captured PCM chunks are published on.
func (p *Pipeline) Chunks() <-chan []float32 { return p.chunks }

func (p *Pipeline) Stop() {
	p.cancel()
	if p.cmd != nil {
		_ = p.cmd.Wait()
	}
	p.wg.Wait()
}

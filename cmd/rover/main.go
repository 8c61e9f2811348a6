// cmd/rover/main.go wires one rover's full dataflow graph: camera capture,
// object detection, tracking, visual servo, command arbitration, mecanum
// kinematics and arm control, bridged to the orchestra over the fleet
// overlay stream and driven onto real wheel/arm hardware. Generalizes the
// teacher's single WebRTC room join (client/client.go's cl.Setup) into the
// larger node graph this rover architecture requires.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/loidinhm31/rover-orchestra/internal/arbiter"
	"github.com/loidinhm31/rover-orchestra/internal/arm"
	"github.com/loidinhm31/rover-orchestra/internal/audiocapture"
	"github.com/loidinhm31/rover-orchestra/internal/capture"
	"github.com/loidinhm31/rover-orchestra/internal/dataflow"
	"github.com/loidinhm31/rover-orchestra/internal/fleet"
	"github.com/loidinhm31/rover-orchestra/internal/grpcjson"
	"github.com/loidinhm31/rover-orchestra/internal/mecanum"
	"github.com/loidinhm31/rover-orchestra/internal/perception"
	"github.com/loidinhm31/rover-orchestra/internal/perfmon"
	"github.com/loidinhm31/rover-orchestra/internal/tracker"
	"github.com/loidinhm31/rover-orchestra/internal/types"
	"github.com/loidinhm31/rover-orchestra/internal/visualservo"
	"github.com/loidinhm31/rover-orchestra/internal/wheeldrive"
)

func main() {
	entityID := flag.String("entity-id", "rover-1", "this rover's fleet entity id")
	orchestraAddr := flag.String("orchestra", "localhost:50052", "fleet overlay gRPC address")
	actuatorAddr := flag.String("actuator", "localhost:50051", "arm actuator gRPC address")
	armConfigPath := flag.String("arm-config", "", "path to arm TOML config (empty uses the default 6-DOF arm)")
	device := flag.String("device", "/dev/video0", "v4l2 capture device")
	audioDevice := flag.String("audio-device", "", "ALSA microphone device (e.g. hw:1,0); empty disables audio uplink")
	modelPath := flag.String("model", os.Getenv("ROVER_DETECTOR_MODEL"), "ONNX detector model path")
	tickRate := flag.Duration("tick", 33*time.Millisecond, "command arbitration / kinematics tick period")
	maxWheelRadPerSec := flag.Float64("max-wheel-speed", mecanum.DefaultLimits().UMax, "wheel angular velocity at 100% PWM duty, rad/s")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	capCfg := capture.DefaultConfig()
	capCfg.Device = *device
	pipeline, err := capture.Start(ctx, capCfg, *entityID)
	if err != nil {
		log.Fatalf("rover: capture.Start: %v", err)
	}
	defer pipeline.Stop()

	detCfg := perception.DefaultConfig()
	if *modelPath != "" {
		detCfg.ModelPath = *modelPath
	}
	detector, err := perception.NewDetector(detCfg)
	if err != nil {
		log.Fatalf("rover: perception.NewDetector: %v", err)
	}
	defer detector.Close()

	trk := tracker.New(tracker.DefaultConfig())
	servo := visualservo.NewController(visualservo.ConfigFromEnv(), visualservo.DefaultCameraConfig())
	arb := arbiter.New(arbiter.DefaultCommandTimeout)
	mec := mecanum.NewController(mecanum.DefaultConfig(), mecanum.DefaultLimits())

	wheels, err := wheeldrive.NewDriver(defaultWheelPins(), *maxWheelRadPerSec)
	if err != nil {
		log.Printf("rover: wheeldrive.NewDriver unavailable, running without wheel hardware: %v", err)
		wheels = nil
	} else {
		defer wheels.Close()
	}

	armCfg := arm.DefaultConfig()
	if *armConfigPath != "" {
		loaded, err := arm.LoadConfig(*armConfigPath)
		if err != nil {
			log.Fatalf("rover: arm.LoadConfig: %v", err)
		}
		armCfg = loaded
	}
	if err := armCfg.Validate(); err != nil {
		log.Fatalf("rover: arm config invalid: %v", err)
	}
	actuatorClient, err := arm.DialActuator(*actuatorAddr)
	if err != nil {
		log.Fatalf("rover: arm.DialActuator: %v", err)
	}
	defer actuatorClient.Close()
	armCtl := arm.NewController(armCfg, actuatorClient)

	conn, err := grpc.NewClient(*orchestraAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcjson.Codec{})))
	if err != nil {
		log.Fatalf("rover: grpc.NewClient(orchestra): %v", err)
	}
	defer conn.Close()
	stream, err := fleet.DialOverlayStream(ctx, conn)
	if err != nil {
		log.Fatalf("rover: fleet.DialOverlayStream: %v", err)
	}
	bridge := fleet.NewRoverBridge(*entityID, stream)

	bridge.OnTopic(fleet.TopicCmdMovement, func(env fleet.TopicEnvelope) {
		var cmd types.RoverCommand
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			log.Printf("rover: decode movement command: %v", err)
			return
		}
		arb.SubmitManual(cmd)
	})
	bridge.OnTopic(fleet.TopicCmdArm, func(env fleet.TopicEnvelope) {
		var cmd types.ArmCommandWithMetadata
		if err := json.Unmarshal(env.Payload, &cmd); err != nil || cmd.Command == nil {
			log.Printf("rover: decode arm command: %v", err)
			return
		}
		if err := armCtl.Execute(ctx, *cmd.Command); err != nil {
			log.Printf("rover: arm execute: %v", err)
		}
	})
	bridge.OnTopic(fleet.TopicCmdTracking, func(env fleet.TopicEnvelope) {
		var cmd types.TrackingCommand
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			log.Printf("rover: decode tracking command: %v", err)
			return
		}
		trk.HandleCommand(cmd)
	})
	bridge.OnTopic(fleet.TopicCmdTTS, func(env fleet.TopicEnvelope) {
		// Text-to-speech synthesis is an external collaborator stubbed
		// behind this port; this logs the request in place of driving a
		// speaker.
		log.Printf("rover: tts stub: %s", string(env.Payload))
	})
	bridge.OnTopic(fleet.TopicCmdAudioStream, func(env fleet.TopicEnvelope) {
		log.Printf("rover: audio_stream stub: %d bytes (playback not implemented)", len(env.Payload))
	})

	if *audioDevice != "" {
		audioCfg := audiocapture.DefaultConfig()
		audioCfg.Device = *audioDevice
		audioPipe, err := audiocapture.Start(ctx, audioCfg)
		if err != nil {
			log.Printf("rover: audiocapture.Start: %v", err)
		} else {
			defer audioPipe.Stop()
			go func() {
				for chunk := range audioPipe.Chunks() {
					payload := make([]byte, len(chunk)*4)
					for i, s := range chunk {
						binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(s))
					}
					if err := bridge.Publish(fleet.TopicAudio, payload); err != nil {
						log.Printf("rover: publish audio: %v", err)
					}
				}
			}()
		}
	}

	go func() {
		if err := bridge.Run(ctx); err != nil {
			log.Printf("rover: fleet bridge run: %v", err)
		}
	}()

	monitor := perfmon.NewMonitor(perfmon.DefaultConfig(), *entityID)
	detectorStats := dataflow.NewNodeStats("object-detector", nil)
	trackerStats := dataflow.NewNodeStats("object-tracker", nil)
	monitor.RegisterNode(detectorStats)
	monitor.RegisterNode(trackerStats)

	go visionLoop(pipeline, detector, trk, servo, arb, bridge, detectorStats, trackerStats)
	go commandLoop(ctx, *tickRate, arb, mec, armCtl, wheels, bridge)
	go monitor.Run(ctx.Done(), func(snap types.SystemMetrics) {
		payload, err := json.Marshal(snap)
		if err != nil {
			return
		}
		if err := bridge.Publish(fleet.TopicMetrics, payload); err != nil {
			log.Printf("rover: publish metrics: %v", err)
		}
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("rover: shutting down")
}

// visionLoop runs the camera-to-servo pipeline: detect, track, and turn
// tracking telemetry into a visual-servo rover command submitted to the
// arbiter under the servo priority.
func visionLoop(
	pipeline *capture.Pipeline,
	detector *perception.Detector,
	trk *tracker.Tracker,
	servo *visualservo.Controller,
	arb *arbiter.Arbiter,
	bridge *fleet.RoverBridge,
	detectorStats, trackerStats *dataflow.NodeStats,
) {
	lastTick := time.Now()
	for frame := range pipeline.Frames() {
		var detFrame types.DetectionFrame
		detectorStats.Record(func() {
			var err error
			detFrame, err = detector.Detect(frame.Bytes, frame.Width, frame.Height)
			if err != nil {
				log.Printf("rover: detect: %v", err)
			}
		})
		detFrame.EntityID = frame.EntityID

		var tracked types.DetectionFrame
		var telemetry types.TrackingTelemetry
		trackerStats.Record(func() {
			tracked, telemetry = trk.Process(detFrame)
		})
		tracked.EntityID = frame.EntityID
		telemetry.EntityID = frame.EntityID

		if payload, err := json.Marshal(tracked); err == nil {
			_ = bridge.Publish(fleet.TopicTrackedDetections, payload)
		}

		now := time.Now()
		dt := now.Sub(lastTick).Seconds()
		lastTick = now

		cmd, telemetry := servo.ProcessTracking(telemetry, dt)
		if cmd != nil {
			arb.SubmitServo(*cmd)
		}
		if payload, err := json.Marshal(telemetry); err == nil {
			_ = bridge.Publish(fleet.TopicTrackingTelemetry, payload)
		}
	}
}

// commandLoop resolves the arbitrated command on a fixed tick, drives the
// mecanum controller and current arm state into one joint-state frame, and
// publishes rover telemetry.
func commandLoop(ctx context.Context, period time.Duration, arb *arbiter.Arbiter, mec *mecanum.Controller, armCtl *arm.Controller, wheels *wheeldrive.Driver, bridge *fleet.RoverBridge) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			if wheels != nil {
				wheels.Stop()
			}
			return
		case <-ticker.C:
			now := time.Now()
			dt := now.Sub(lastTick).Seconds()
			lastTick = now

			resolved := arb.Resolve()
			jointCmd := mec.Process(resolved, dt)
			if wheels != nil {
				wheels.Drive(mec.Velocities())
			}

			state := types.NewCompleteJointState()
			state.SetRoverPositions(jointCmd.Q1, jointCmd.Q2, jointCmd.Q3)
			state.SetArmPositions(armCtl.CurrentStatus().JointPositions)

			if payload, err := json.Marshal(state); err == nil {
				_ = bridge.Publish(fleet.TopicRoverTelemetry, payload)
			}
			if payload, err := json.Marshal(armCtl.CurrentStatus()); err == nil {
				_ = bridge.Publish(fleet.TopicArmTelemetry, payload)
			}
		}
	}
}

// defaultWheelPins is the BCM GPIO pin map for the three mecanum wheel
// motor drivers. Analogous to client/motorshield.go's motorConfigs map,
// narrowed to the three wheel channels this chassis has.
func defaultWheelPins() [3]wheeldrive.WheelPins {
	return [3]wheeldrive.WheelPins{
		{EnablePin: rpio.Pin(12), ForwardPin: rpio.Pin(5), ReversePin: rpio.Pin(6)},
		{EnablePin: rpio.Pin(13), ForwardPin: rpio.Pin(16), ReversePin: rpio.Pin(19)},
		{EnablePin: rpio.Pin(18), ForwardPin: rpio.Pin(20), ReversePin: rpio.Pin(21)},
	}
}

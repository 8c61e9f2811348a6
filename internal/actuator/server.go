package actuator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
)

// JointChannel binds a named joint to a PCA9685 channel and its travel
// limits in radians.
type JointChannel struct {
	Channel  int
	MinAngle float64
	MaxAngle float64
}

const moverTick = 50 * time.Millisecond

type jointState struct {
	cfg   JointChannel
	angle float64
}

// Hardware is the server's grounded-on-servo/server.go mover pattern,
// generalized from a fixed claw/camera pin map to an arbitrary configured
// joint set driven by a PCA9685 servo group.
type Hardware struct {
	pca *pca9685.ServoGroup

	mu     sync.Mutex
	joints map[string]*jointState
	movers map[string]chan struct{}
}

func NewHardware(sg *pca9685.ServoGroup, joints map[string]JointChannel) *Hardware {
	states := make(map[string]*jointState, len(joints))
	for name, jc := range joints {
		mid := (jc.MinAngle + jc.MaxAngle) / 2
		states[name] = &jointState{cfg: jc, angle: mid}
		sg.GetServo(jc.Channel).SetAngle(physic.Angle(mid))
	}
	return &Hardware{pca: sg, joints: states, movers: make(map[string]chan struct{})}
}

func (h *Hardware) SetJointPositions(ctx context.Context, req *SetJointPositionsRequest) (*SetJointPositionsReply, error) {
	maxVelocity := req.MaxVelocity
	if maxVelocity <= 0 {
		maxVelocity = 1.0 // rad/s, matches the teacher's default move speed
	}

	for name, target := range req.JointAngles {
		h.mu.Lock()
		st, ok := h.joints[name]
		if !ok {
			h.mu.Unlock()
			return &SetJointPositionsReply{Ok: false, Err: fmt.Sprintf("unknown joint %q", name)}, nil
		}
		if target < st.cfg.MinAngle || target > st.cfg.MaxAngle {
			h.mu.Unlock()
			return &SetJointPositionsReply{Ok: false, Err: fmt.Sprintf("joint %q target %.3f outside [%.3f,%.3f]", name, target, st.cfg.MinAngle, st.cfg.MaxAngle)}, nil
		}
		if stop, busy := h.movers[name]; busy {
			close(stop)
			delete(h.movers, name)
		}
		stop := make(chan struct{})
		h.movers[name] = stop
		h.mu.Unlock()

		go h.moveJoint(name, st, target, maxVelocity, stop)
	}

	return &SetJointPositionsReply{Ok: true}, nil
}

func (h *Hardware) moveJoint(name string, st *jointState, target, maxVelocity float64, stop chan struct{}) {
	ticker := time.NewTicker(moverTick)
	defer ticker.Stop()
	step := maxVelocity * moverTick.Seconds()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			delta := target - st.angle
			if delta == 0 {
				h.mu.Unlock()
				delete(h.movers, name)
				return
			}
			if delta > step {
				delta = step
			} else if delta < -step {
				delta = -step
			}
			st.angle += delta
			newAngle := st.angle
			h.mu.Unlock()

			if err := h.pca.GetServo(st.cfg.Channel).SetAngle(physic.Angle(newAngle)); err != nil {
				log.Printf("actuator: joint %s set angle error: %v", name, err)
			}
		}
	}
}

func (h *Hardware) Stop(ctx context.Context, req *StopRequest) (*StopReply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, stop := range h.movers {
		close(stop)
		delete(h.movers, name)
	}
	return &StopReply{Ok: true}, nil
}

func (h *Hardware) EmergencyStop(ctx context.Context, req *EmergencyStopRequest) (*EmergencyStopReply, error) {
	if _, err := h.Stop(ctx, &StopRequest{}); err != nil {
		return nil, err
	}
	return &EmergencyStopReply{Ok: true}, nil
}

func (h *Hardware) GetJointState(ctx context.Context, req *GetJointStateRequest) (*GetJointStateReply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joints := make([]JointState, 0, len(h.joints))
	for name, st := range h.joints {
		joints = append(joints, JointState{Name: name, Angle: st.angle, MinAngle: st.cfg.MinAngle, MaxAngle: st.cfg.MaxAngle})
	}
	return &GetJointStateReply{Joints: joints}, nil
}

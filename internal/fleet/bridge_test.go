package fleet

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStream is an in-memory OverlayStream backed by two channels, letting
// tests drive both halves of Stream() without a real gRPC transport.
type fakeStream struct {
	in  chan *TopicEnvelope
	out chan *TopicEnvelope

	mu     sync.Mutex
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{in: make(chan *TopicEnvelope, 8), out: make(chan *TopicEnvelope, 8)}
}

func (s *fakeStream) Send(m *TopicEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.out <- m
	return nil
}

func (s *fakeStream) Recv() (*TopicEnvelope, error) {
	m, ok := <-s.in
	if !ok {
		return nil, errors.New("stream closed")
	}
	return m, nil
}

func (s *fakeStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.in)
	}
}

func TestOrchestraBridge_StreamRegistersRoverFromFirstEnvelope(t *testing.T) {
	ob := NewOrchestraBridge()
	fs := newFakeStream()
	fs.in <- &TopicEnvelope{EntityID: "rover-kiwi", Topic: TopicRoverTelemetry, Payload: []byte(`{}`)}

	done := make(chan struct{})
	go func() {
		ob.Stream(fs)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if ob.IsConnected("rover-kiwi") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected rover-kiwi to become connected")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if ob.SelectedEntity() != "rover-kiwi" {
		t.Fatalf("expected first connected rover to be auto-selected")
	}

	fs.close()
	<-done
	if ob.IsConnected("rover-kiwi") {
		t.Fatalf("expected rover-kiwi to be disconnected after stream closes")
	}
}

func TestOrchestraBridge_SelectEntityRejectsInactiveRover(t *testing.T) {
	ob := NewOrchestraBridge()
	if err := ob.SelectEntity("ghost-rover"); err == nil {
		t.Fatalf("expected selecting an inactive rover to fail")
	}
}

func TestOrchestraBridge_PublishToSelectedForwardsOnStream(t *testing.T) {
	ob := NewOrchestraBridge()
	fs := newFakeStream()
	fs.in <- &TopicEnvelope{EntityID: "rover-kiwi", Topic: TopicRoverTelemetry}

	go ob.Stream(fs)

	deadline := time.After(time.Second)
	for !ob.IsConnected("rover-kiwi") {
		select {
		case <-deadline:
			t.Fatalf("expected rover-kiwi to become connected")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := ob.PublishToSelected(TopicCmdMovement, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case env := <-fs.out:
		if env.Topic != TopicCmdMovement {
			t.Fatalf("expected command routed to selected rover, got topic %s", env.Topic)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a command envelope to be sent downlink")
	}
}

func TestOrchestraBridge_ActivateDeactivateAreIdempotent(t *testing.T) {
	ob := NewOrchestraBridge()

	ob.Activate("rover-kiwi")
	ob.Activate("rover-kiwi")
	if got := ob.Active(); len(got) != 1 || got[0] != "rover-kiwi" {
		t.Fatalf("expected activating twice to leave a single entry, got %v", got)
	}

	ob.Deactivate("rover-kiwi")
	ob.Deactivate("rover-kiwi")
	if got := ob.Active(); len(got) != 0 {
		t.Fatalf("expected deactivating twice to leave an empty set, got %v", got)
	}
}

func TestOrchestraBridge_SetActiveRemovesStragglersAndIsIdempotent(t *testing.T) {
	ob := NewOrchestraBridge()
	ob.Activate("rover-kiwi")
	ob.Activate("rover-mango")

	ob.SetActive([]string{"rover-mango", "rover-plum"})
	if ob.IsActive("rover-kiwi") {
		t.Fatalf("expected rover-kiwi to be dropped by SetActive")
	}
	if !ob.IsActive("rover-mango") || !ob.IsActive("rover-plum") {
		t.Fatalf("expected rover-mango and rover-plum to be active")
	}

	ob.SetActive([]string{"rover-mango", "rover-plum"})
	if !ob.IsActive("rover-mango") || !ob.IsActive("rover-plum") {
		t.Fatalf("expected repeating SetActive with the same ids to be a no-op")
	}
}

func TestOrchestraBridge_RunForwardingSkipsInactiveRovers(t *testing.T) {
	ob := NewOrchestraBridge()
	fsActive := newFakeStream()
	fsActive.in <- &TopicEnvelope{EntityID: "rover-active", Topic: TopicRoverTelemetry, Payload: []byte(`{}`)}
	fsInactive := newFakeStream()
	fsInactive.in <- &TopicEnvelope{EntityID: "rover-inactive", Topic: TopicRoverTelemetry, Payload: []byte(`{}`)}

	go ob.Stream(fsActive)
	go ob.Stream(fsInactive)

	deadline := time.After(time.Second)
	for !ob.IsConnected("rover-active") || !ob.IsConnected("rover-inactive") {
		select {
		case <-deadline:
			t.Fatalf("expected both rovers to connect")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	ob.Activate("rover-active")

	// Each fake stream's first envelope (used above to identify the rover)
	// is also queued onto its recv channel, so RunForwarding has exactly one
	// buffered message per rover to drain without sending anything further.
	stop := make(chan struct{})
	defer close(stop)
	delivered := make(chan string, 4)
	go ob.RunForwarding(stop, func(entityID string, _ TopicEnvelope) { delivered <- entityID })

	select {
	case id := <-delivered:
		if id != "rover-active" {
			t.Fatalf("expected delivery from rover-active, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a delivery from the active rover")
	}

	select {
	case id := <-delivered:
		t.Fatalf("expected no delivery from the inactive rover, got one from %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

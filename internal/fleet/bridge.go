package fleet

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/loidinhm31/rover-orchestra/internal/types"
)

// RoverBridge is the rover-side half of the overlay: it owns a single
// client stream to the orchestra and multiplexes local topic traffic over
// it, in place of the original's per-topic Zenoh publishers/subscribers.
type RoverBridge struct {
	entityID string
	stream   OverlayStream

	mu       sync.Mutex
	handlers map[string]func(TopicEnvelope)
}

func NewRoverBridge(entityID string, stream OverlayStream) *RoverBridge {
	return &RoverBridge{entityID: entityID, stream: stream, handlers: make(map[string]func(TopicEnvelope))}
}

// OnTopic registers a handler for inbound command envelopes addressed to
// this rover on the given topic (e.g. TopicCmdMovement).
func (b *RoverBridge) OnTopic(topic string, fn func(TopicEnvelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = fn
}

// Publish sends one topic payload uplink to the orchestra.
func (b *RoverBridge) Publish(topic string, payload []byte) error {
	return b.stream.Send(&TopicEnvelope{EntityID: b.entityID, Topic: topic, Payload: payload, Timestamp: types.NowMillis()})
}

// Run reads inbound command envelopes until the stream closes or ctx is done,
// dispatching each to its registered handler.
func (b *RoverBridge) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env, err := b.stream.Recv()
		if err != nil {
			return fmt.Errorf("fleet: rover bridge recv: %w", err)
		}
		b.mu.Lock()
		fn, ok := b.handlers[env.Topic]
		b.mu.Unlock()
		if ok {
			fn(*env)
		} else {
			log.Printf("fleet: rover bridge: no handler for topic %q", env.Topic)
		}
	}
}

// roverConn is the orchestra's per-rover connection state: a live stream
// plus the channel its read-pump publishes received envelopes onto.
type roverConn struct {
	entityID string
	stream   OverlayStream
	recv     chan TopicEnvelope
	cancel   context.CancelFunc
}

// OrchestraBridge is the orchestra-side overlay endpoint: it accepts one
// stream per connected rover, tags uplink telemetry with entity_id, and
// routes downlink commands to whichever rover is currently selected.
// Grounded on zenoh_bridge/src/main.rs's RoverSubscriptions / active_rovers
// map / selected_entity state: rovers (stream liveness) and active
// (subscription membership) are tracked independently, exactly as the
// original keeps a connected-session map separate from active_rovers.
type OrchestraBridge struct {
	mu       sync.Mutex
	rovers   map[string]*roverConn
	active   map[string]bool
	selected string
}

func NewOrchestraBridge() *OrchestraBridge {
	return &OrchestraBridge{rovers: make(map[string]*roverConn), active: make(map[string]bool)}
}

// Stream implements OverlayServer: the first envelope received on a newly
// opened stream identifies the rover (its EntityID), after which the
// connection is registered as connected until the stream errors out.
// Registration does not add the rover to the active-subscription set.
func (o *OrchestraBridge) Stream(stream OverlayStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &roverConn{entityID: first.EntityID, stream: stream, recv: make(chan TopicEnvelope, 64), cancel: cancel}

	o.mu.Lock()
	o.rovers[first.EntityID] = conn
	if o.selected == "" {
		o.selected = first.EntityID
	}
	o.mu.Unlock()
	log.Printf("fleet: rover %q connected", first.EntityID)

	conn.recv <- *first
	defer func() {
		cancel()
		o.mu.Lock()
		if o.rovers[first.EntityID] == conn {
			delete(o.rovers, first.EntityID)
		}
		o.mu.Unlock()
		close(conn.recv)
		log.Printf("fleet: rover %q disconnected", first.EntityID)
	}()

	for {
		env, err := stream.Recv()
		if err != nil {
			return err
		}
		select {
		case conn.recv <- *env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Roster returns every rover with a currently open overlay stream,
// independent of subscription state.
func (o *OrchestraBridge) Roster() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.rovers))
	for id := range o.rovers {
		ids = append(ids, id)
	}
	return ids
}

// IsConnected reports whether entityID has a live overlay stream.
func (o *OrchestraBridge) IsConnected(entityID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.rovers[entityID]
	return ok
}

// Active returns the subset of the roster currently subscribed to uplink
// forwarding.
func (o *OrchestraBridge) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// IsActive reports whether entityID is in the active-subscription set.
func (o *OrchestraBridge) IsActive(entityID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[entityID]
}

// Activate subscribes entityID to uplink forwarding. Idempotent: activating
// an already-active entity is a no-op, mirroring
// handle_fleet_subscription_command's ActivateRover branch.
func (o *OrchestraBridge) Activate(entityID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[entityID] = true
}

// Deactivate unsubscribes entityID from uplink forwarding. Idempotent:
// deactivating an already-inactive entity is a no-op, mirroring
// handle_fleet_subscription_command's DeactivateRover branch.
func (o *OrchestraBridge) Deactivate(entityID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, entityID)
}

// SetActive replaces the active set with exactly ids, removing stragglers
// before adding new members, mirroring
// handle_fleet_subscription_command's SetActiveRovers branch (remove then
// add). Idempotent: calling it twice with the same ids leaves the set
// unchanged.
func (o *OrchestraBridge) SetActive(ids []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for id := range o.active {
		if !want[id] {
			delete(o.active, id)
		}
	}
	for id := range want {
		o.active[id] = true
	}
}

// SelectEntity routes subsequent downlink commands to entityID, mirroring
// fleet_select_command's handling in the original bridge.
func (o *OrchestraBridge) SelectEntity(entityID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.rovers[entityID]; !ok || !o.active[entityID] {
		return fmt.Errorf("fleet: cannot select inactive rover %q", entityID)
	}
	o.selected = entityID
	return nil
}

func (o *OrchestraBridge) SelectedEntity() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// PublishToSelected sends a command payload downlink to whichever rover is
// currently selected.
func (o *OrchestraBridge) PublishToSelected(topic string, payload []byte) error {
	o.mu.Lock()
	conn, ok := o.rovers[o.selected]
	selected := o.selected
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("fleet: no active rover selected")
	}
	return conn.stream.Send(&TopicEnvelope{EntityID: selected, Topic: topic, Payload: payload, Timestamp: types.NowMillis()})
}

// Channels returns the current set of per-rover receive channels, used by
// FanIn to merge uplink traffic from every connected rover.
func (o *OrchestraBridge) Channels() []NamedChan {
	o.mu.Lock()
	defer o.mu.Unlock()
	chans := make([]NamedChan, 0, len(o.rovers))
	for id, conn := range o.rovers {
		chans = append(chans, NamedChan{EntityID: id, Ch: conn.recv})
	}
	return chans
}

// RunForwarding fans in every connected rover's uplink traffic, tags
// structured telemetry with its source entity_id, and hands each envelope to
// publish (typically feeding the web bridge hub or dataflow graph) — but
// only for rovers currently in the active-subscription set. A rover not in
// active never has a message delivered on its behalf, even while its stream
// stays open and buffering in the background.
func (o *OrchestraBridge) RunForwarding(stop <-chan struct{}, publish func(entityID string, env TopicEnvelope)) {
	for {
		chans := o.Channels()
		if len(chans) == 0 {
			select {
			case <-stop:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}
		entityID, env, ok := FanIn(chans, stop)
		if !ok {
			select {
			case <-stop:
				return
			default:
				continue // a rover's channel closed on disconnect
			}
		}
		if !o.IsActive(entityID) {
			continue
		}
		if IsStructuredTelemetry(env.Topic) {
			env.Payload = TagEntityID(env.Payload, entityID)
		}
		publish(entityID, env)
	}
}

package webbridge

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
)

// EventKind is the closed set of control-plane message types a client may
// send or receive. Unlike the teacher's open string-keyed command registry,
// the rover bridge validates against this fixed set before dispatch.
type EventKind string

const (
	// Inbound: the initial credential exchange, exempt from the
	// authenticated-session gate in readPump.
	EventAuth EventKind = "auth"

	// Inbound command/control kinds.
	EventSelectEntity       EventKind = "fleet_select"
	EventRoverCommand       EventKind = "rover_command"
	EventArmCommand         EventKind = "arm_command"
	EventTrackingCommand    EventKind = "tracking_command"
	EventCameraControl      EventKind = "camera_control"
	EventAudioControl       EventKind = "audio_control"
	EventTTSCommand         EventKind = "tts_command"
	EventAudioStream        EventKind = "audio_stream"
	EventVoiceCommandAudio  EventKind = "voice_command_audio"
	EventPerformanceControl EventKind = "performance_control"
	EventFleetSubscribe     EventKind = "fleet_subscription"

	// Outbound status/telemetry kinds.
	EventFleetStatus       EventKind = "fleet_status"
	EventActiveRovers      EventKind = "active_rovers_status"
	EventDetections        EventKind = "detections"
	EventTrackingTelemetry EventKind = "tracking_telemetry"
	EventServoTelemetry    EventKind = "servo_telemetry"
	EventTranscription     EventKind = "transcription"
	EventPerformanceMetric EventKind = "performance_metrics"

	// Generic fallback for telemetry topics not broken out into their own
	// named kind (rover/arm telemetry).
	EventTelemetry EventKind = "telemetry"
	EventError     EventKind = "error"
)

// ErrAuthFailed is returned by the auth handler on a bad credential pair.
// readPump disconnects the session rather than letting it retry silently,
// per the spec's "do not reveal which of username/password was wrong".
var ErrAuthFailed = errors.New("webbridge: authentication failed")

// InboundEvent is a parsed client->bridge message; Payload is left raw so
// each handler can validate before unmarshalling into its specific type.
type InboundEvent struct {
	Kind    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OutboundEvent is a bridge->client message.
type OutboundEvent struct {
	Kind    EventKind   `json:"type"`
	Payload interface{} `json:"payload"`
}

// Handler processes one inbound event for a session.
type Handler func(sess *Session, payload json.RawMessage) error

// Client is one live WebSocket connection, paired with a Session.
type Client struct {
	Conn    *websocket.Conn
	Send    chan OutboundEvent
	Session *Session
}

// Hub is the control-plane WebSocket broker: every connected client (one per
// /ws connection, each with its own Session) receives the same
// telemetry/roster broadcasts.
// Generalized from the teacher's websocket/websocket.go room-keyed Hub.
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]bool
	handlers map[EventKind]Handler

	register   chan *Client
	unregister chan *Client
	broadcast  chan OutboundEvent
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		handlers:   make(map[EventKind]Handler),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan OutboundEvent, 64),
	}
}

func (h *Hub) OnEvent(kind EventKind, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = fn
}

func (h *Hub) Broadcast(ev OutboundEvent) { h.broadcast <- ev }

// Unicast delivers ev to the live client whose session has the given id
// (each /ws connection gets its own Session, so at most one matches).
func (h *Hub) Unicast(sessionID string, ev OutboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.Session.ID != sessionID {
			continue
		}
		select {
		case c.Send <- ev:
		default:
		}
	}
}

// Run drives the hub's registration/unregistration/broadcast loop. Call
// once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.Send <- ev:
				default:
					close(c.Send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if os.Getenv("ENVIRONMENT") != "production" {
			return true
		}
		for _, allowed := range ParseAllowedOrigins() {
			if origin == allowed {
				return true
			}
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades an HTTP request to a WebSocket control-plane connection,
// registers it with the hub, and blocks on the read pump until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sess *Session, cmdLimiter *CommandRateLimiter) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("webbridge: upgrade failed: %v", err)
		return
	}

	client := &Client{Conn: conn, Send: make(chan OutboundEvent, 32), Session: sess}
	h.register <- client
	go client.writePump()
	h.readPump(client, cmdLimiter)
}

func (h *Hub) readPump(c *Client, cmdLimiter *CommandRateLimiter) {
	defer func() {
		h.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			log.Printf("webbridge: read error for session %s: %v", c.Session.ID, err)
			return
		}

		var ev InboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.Send <- OutboundEvent{Kind: EventError, Payload: "malformed event"}
			continue
		}

		if !cmdLimiter.CheckCommand(c.Session.ClientID) {
			c.Send <- OutboundEvent{Kind: EventError, Payload: "rate limit exceeded"}
			continue
		}

		if ev.Kind != EventAuth && !c.Session.Authenticated {
			c.Send <- OutboundEvent{Kind: EventError, Payload: "not authenticated"}
			continue
		}

		h.mu.Lock()
		handler, ok := h.handlers[ev.Kind]
		h.mu.Unlock()
		if !ok {
			c.Send <- OutboundEvent{Kind: EventError, Payload: "unknown event type"}
			continue
		}

		c.Session.Touch()
		if err := handler(c.Session, ev.Payload); err != nil {
			c.Send <- OutboundEvent{Kind: EventError, Payload: err.Error()}
			if ev.Kind == EventAuth {
				// AuthFailed: disconnect rather than let the client retry
				// silently against an open, unauthenticated connection.
				return
			}
		}
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()
	for ev := range c.Send {
		if err := c.Conn.WriteJSON(ev); err != nil {
			log.Printf("webbridge: write error for session %s: %v", c.Session.ID, err)
			return
		}
	}
}

// cmd/orchestra/main.go is the fleet orchestra: it accepts rover overlay
// streams over gRPC, fronts them with an operator-facing WebSocket control
// plane and WebRTC media plane, and serves TURN credentials. Adapted from
// the teacher's root main.go (static file server, /ws, /turn-credentials),
// generalized from a single-room relay into a multi-rover fleet front end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/loidinhm31/rover-orchestra/internal/fleet"
	"github.com/loidinhm31/rover-orchestra/internal/grpcjson"
	"github.com/loidinhm31/rover-orchestra/internal/types"
	"github.com/loidinhm31/rover-orchestra/internal/webbridge"
)

// buildFleetStatus and buildActiveRoversStatus snapshot the overlay bridge's
// current roster/selection/active-subscription state into the two status
// types: FleetStatus is unicast to a session on auth and broadcast on entity
// selection; ActiveRoversStatus is broadcast on every fleet_subscription
// change (§3, §4.B, §4.G).
func buildFleetStatus(b *fleet.OrchestraBridge) types.FleetStatus {
	return types.FleetStatus{SelectedEntity: b.SelectedEntity(), FleetRoster: b.Roster(), Timestamp: types.NowMillis()}
}

func buildActiveRoversStatus(b *fleet.OrchestraBridge) types.ActiveRoversStatus {
	return types.ActiveRoversStatus{ActiveRovers: b.Active(), Timestamp: types.NowMillis()}
}

// eventKindForTopic maps an overlay topic to its named outbound event kind
// (§6), so each telemetry channel discriminates on its own kind instead of
// funneling through one generic bucket. Topics with no dedicated named kind
// (rover/arm telemetry) fall back to the generic telemetry kind.
func eventKindForTopic(topic string) (webbridge.EventKind, bool) {
	switch topic {
	case fleet.TopicRoverTelemetry, fleet.TopicArmTelemetry:
		return webbridge.EventTelemetry, true
	case fleet.TopicServoTelemetry:
		return webbridge.EventServoTelemetry, true
	case fleet.TopicTrackedDetections:
		return webbridge.EventDetections, true
	case fleet.TopicTrackingTelemetry:
		return webbridge.EventTrackingTelemetry, true
	case fleet.TopicMetrics:
		return webbridge.EventPerformanceMetric, true
	default:
		return "", false
	}
}

func main() {
	grpcAddr := flag.String("grpc-addr", ":50052", "fleet overlay gRPC listen address")
	httpAddr := flag.String("http-addr", ":8080", "operator-facing HTTP/WebSocket listen address")
	webDir := flag.String("web-dir", "./web", "static operator UI directory")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	overlayBridge := fleet.NewOrchestraBridge()
	if initial := os.Getenv("ACTIVE_ROVERS"); initial != "" {
		overlayBridge.SetActive(strings.Split(initial, ","))
	}

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Fatalf("orchestra: net.Listen: %v", err)
	}
	grpcSrv := grpc.NewServer(grpc.ForceServerCodec(grpcjson.Codec{}))
	fleet.RegisterFleetOverlayServer(grpcSrv, overlayBridge)
	go func() {
		log.Printf("orchestra: fleet overlay listening on %s", *grpcAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("orchestra: grpc serve: %v", err)
		}
	}()

	hub := webbridge.NewHub()
	go hub.Run()

	mediaServer := webbridge.NewMediaServer()
	authLimiter := webbridge.NewAuthRateLimiter()
	cmdLimiter := webbridge.NewCommandRateLimiter()

	authUsername := os.Getenv("AUTH_USERNAME")
	authPassword := os.Getenv("AUTH_PASSWORD")

	hub.OnEvent(webbridge.EventAuth, func(sess *webbridge.Session, payload json.RawMessage) error {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
		if req.Username != authUsername || req.Password != authPassword {
			return webbridge.ErrAuthFailed
		}
		authLimiter.Reset(sess.ClientID)
		sess.Authenticated = true
		hub.Unicast(sess.ID, webbridge.OutboundEvent{Kind: webbridge.EventFleetStatus, Payload: buildFleetStatus(overlayBridge)})
		return nil
	})

	hub.OnEvent(webbridge.EventSelectEntity, func(sess *webbridge.Session, payload json.RawMessage) error {
		var cmd types.FleetSelectCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return err
		}
		if err := webbridge.ValidateRosterMembership(cmd.EntityID, overlayBridge.Roster()); err != nil {
			return err
		}
		if err := overlayBridge.SelectEntity(cmd.EntityID); err != nil {
			return err
		}
		sess.SelectedEntity = cmd.EntityID
		// Broadcast the new status to every session before the first
		// command against the newly selected rover is published (§4.B).
		hub.Broadcast(webbridge.OutboundEvent{Kind: webbridge.EventFleetStatus, Payload: buildFleetStatus(overlayBridge)})
		return nil
	})

	hub.OnEvent(webbridge.EventFleetSubscribe, func(sess *webbridge.Session, payload json.RawMessage) error {
		var cmd types.FleetSubscriptionCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return err
		}
		roster := overlayBridge.Roster()
		switch cmd.Action {
		case types.SubscriptionActivate:
			if err := webbridge.ValidateRosterMembership(cmd.EntityID, roster); err != nil {
				return err
			}
			overlayBridge.Activate(cmd.EntityID)
		case types.SubscriptionDeactivate:
			if err := webbridge.ValidateRosterMembership(cmd.EntityID, roster); err != nil {
				return err
			}
			overlayBridge.Deactivate(cmd.EntityID)
		case types.SubscriptionSetActive:
			if err := webbridge.ValidateRosterSubset(cmd.EntityIDs, roster); err != nil {
				return err
			}
			overlayBridge.SetActive(cmd.EntityIDs)
		default:
			return fmt.Errorf("fleet_subscription: unknown action %q", cmd.Action)
		}
		hub.Broadcast(webbridge.OutboundEvent{Kind: webbridge.EventActiveRovers, Payload: buildActiveRoversStatus(overlayBridge)})
		return nil
	})

	hub.OnEvent(webbridge.EventRoverCommand, func(sess *webbridge.Session, payload json.RawMessage) error {
		var cmd types.RoverCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return err
		}
		if err := webbridge.ValidateRoverCommand(cmd); err != nil {
			return err
		}
		cmd.Metadata = types.NewCommandMetadata(types.SourceWebBridge, cmd.Metadata.Priority)
		encoded, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		return overlayBridge.PublishToSelected(fleet.TopicCmdMovement, encoded)
	})
	hub.OnEvent(webbridge.EventArmCommand, func(sess *webbridge.Session, payload json.RawMessage) error {
		var armCmd types.ArmCommand
		if err := json.Unmarshal(payload, &armCmd); err != nil {
			return err
		}
		if err := webbridge.ValidateArmCommand(armCmd); err != nil {
			return err
		}
		wrapped := types.ArmCommandWithMetadata{
			Command:  &armCmd,
			Metadata: types.NewCommandMetadata(types.SourceWebBridge, types.PriorityNormal),
		}
		encoded, err := json.Marshal(wrapped)
		if err != nil {
			return err
		}
		return overlayBridge.PublishToSelected(fleet.TopicCmdArm, encoded)
	})
	hub.OnEvent(webbridge.EventTrackingCommand, func(sess *webbridge.Session, payload json.RawMessage) error {
		return overlayBridge.PublishToSelected(fleet.TopicCmdTracking, payload)
	})

	go overlayBridge.RunForwarding(ctx.Done(), func(entityID string, env fleet.TopicEnvelope) {
		kind, ok := eventKindForTopic(env.Topic)
		if !ok {
			return
		}
		var payload interface{}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			payload = string(env.Payload)
		}
		hub.Broadcast(webbridge.OutboundEvent{Kind: kind, Payload: map[string]interface{}{
			"entity_id": entityID,
			"topic":     env.Topic,
			"data":      payload,
		}})
	})

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(*webDir)))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			clientID = uuid.NewString()
		}
		if !authLimiter.CheckAuthAttempt(clientID) {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
		sess := webbridge.NewSession(uuid.NewString(), clientID)
		hub.ServeWS(w, r, sess, cmdLimiter)
	})

	mux.HandleFunc("/turn-credentials", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		sess := webbridge.NewSession("", clientID)
		webbridge.ServeTURNCredentials(sess)(w, r)
	})

	mux.HandleFunc("/media/ws", func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Query().Get("entity_id")
		peerID := r.URL.Query().Get("peer_id")
		isPublisher := r.URL.Query().Get("publisher") == "true"
		if entityID == "" || peerID == "" {
			http.Error(w, "entity_id and peer_id are required", http.StatusBadRequest)
			return
		}
		var mediaSess *webbridge.Session
		if !isPublisher {
			mediaSess = webbridge.NewSession(peerID, peerID)
		}
		mediaServer.ServeSignaling(w, r, entityID, peerID, isPublisher, mediaSess)
	})

	httpSrv := &http.Server{Addr: *httpAddr, Handler: mux}
	go func() {
		log.Printf("orchestra: operator HTTP/WebSocket listening on %s", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("orchestra: http serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("orchestra: shutting down")
	cancel()
	grpcSrv.GracefulStop()
	_ = httpSrv.Close()
}

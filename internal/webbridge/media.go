package webbridge

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// MediaSignal is the WebRTC signaling envelope exchanged over the media
// WebSocket: SDP offers/answers and trickled ICE candidates.
type MediaSignal struct {
	Kind      string                   `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// mediaPeer is one WebRTC-capable participant: either the rover itself
// (the sole publisher for its room) or an operator viewer (a subscriber).
type mediaPeer struct {
	id        string
	room      *MediaRoom
	conn      *websocket.Conn
	send      chan MediaSignal
	pc        *webrtc.PeerConnection
	publisher bool

	// session is nil for the publisher peer; for a subscriber it carries
	// the per-session video/audio throttle state the forwarding loop gates
	// delivery on.
	session *Session

	candMu    sync.Mutex
	candQueue []webrtc.ICECandidateInit
	remoteSet bool
}

// MediaRoom fans one rover's published video/audio tracks out to every
// operator subscriber currently watching `rover/<entity_id>/video`.
// Generalized from the teacher's webrtc/sfu.go sfuRoom/sfuPeer pattern,
// narrowed from N publishers to exactly one (the rover) per room.
type MediaRoom struct {
	mu       sync.Mutex
	entityID string
	peers    map[string]*mediaPeer
}

// MediaServer owns one MediaRoom per active rover entity.
type MediaServer struct {
	mu    sync.Mutex
	rooms map[string]*MediaRoom
	api   *webrtc.API
}

func NewMediaServer() *MediaServer {
	return &MediaServer{rooms: make(map[string]*MediaRoom), api: newMediaAPI()}
}

func newMediaAPI() *webrtc.API {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		panic(err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}, {Type: "goog-remb"}},
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		panic(err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		panic(err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir))
}

func (s *MediaServer) getRoom(entityID string) *MediaRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[entityID]; ok {
		return r
	}
	r := &MediaRoom{entityID: entityID, peers: make(map[string]*mediaPeer)}
	s.rooms[entityID] = r
	return r
}

// ServeSignaling upgrades to a WebSocket and runs one peer's signaling loop.
// isPublisher distinguishes the rover's own uplink from an operator's
// viewer connection. sess is the subscriber's throttle/drop-counter state;
// nil for the publisher, which has no fan-out to gate.
func (s *MediaServer) ServeSignaling(w http.ResponseWriter, r *http.Request, entityID, peerID string, isPublisher bool, sess *Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("webbridge: media upgrade failed: %v", err)
		return
	}

	room := s.getRoom(entityID)
	pc, err := s.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		log.Printf("webbridge: peer connection failed: %v", err)
		conn.Close()
		return
	}

	p := &mediaPeer{id: peerID, room: room, conn: conn, send: make(chan MediaSignal, 16), pc: pc, publisher: isPublisher, session: sess}
	room.addPeer(p)
	defer room.removePeer(p.id)

	s.wirePeer(p, room)

	go p.writePump()
	p.readPump()
}

func (r *MediaRoom) addPeer(p *mediaPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.id] = p
}

func (r *MediaRoom) removePeer(id string) {
	r.mu.Lock()
	p, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()
	if ok && p.pc != nil {
		p.pc.Close()
	}
}

func (r *MediaRoom) subscribers(exceptID string) []*mediaPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mediaPeer
	for id, p := range r.peers {
		if id != exceptID && !p.publisher {
			out = append(out, p)
		}
	}
	return out
}

func (s *MediaServer) wirePeer(p *mediaPeer, room *MediaRoom) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		p.send <- MediaSignal{Kind: "candidate", Candidate: &init}
	})

	if p.publisher {
		p.pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			s.forwardToSubscribers(p, room, remote)
		})
	}
}

// subscriberTrack pairs a subscriber with its own forwarding track, so each
// subscriber's video delivery can be gated independently by that
// subscriber's Session.AllowVideoFrame throttle (§4.G).
type subscriberTrack struct {
	sub   *mediaPeer
	local *webrtc.TrackLocalStaticRTP
}

// forwardToSubscribers republishes one rover-uplinked track to every current
// subscriber, each over its own local track so per-session throttling can
// apply independently. A keyframe (PLI) is requested from the publisher so
// subscribers don't wait for the next natural IDR. Subscribers joining after
// forwarding has started are not retrofitted onto this track; they pick it
// up from the next OnTrack call for that rover.
func (s *MediaServer) forwardToSubscribers(pub *mediaPeer, room *MediaRoom, remote *webrtc.TrackRemote) {
	var targets []subscriberTrack
	for _, sub := range room.subscribers(pub.id) {
		local, err := webrtc.NewTrackLocalStaticRTP(remote.Codec().RTPCodecCapability, remote.ID(), room.entityID)
		if err != nil {
			log.Printf("webbridge: failed to create forwarding track: %v", err)
			continue
		}
		if _, err := sub.pc.AddTrack(local); err != nil {
			log.Printf("webbridge: failed to add track to subscriber %s: %v", sub.id, err)
			continue
		}
		targets = append(targets, subscriberTrack{sub: sub, local: local})
	}

	isVideo := remote.Kind() == webrtc.RTPCodecTypeVideo

	go func() {
		var pkt *rtp.Packet
		var err error
		// allow holds each subscriber's video decision for the frame in
		// progress; a frame ends with the RTP packet carrying the marker bit.
		allow := make([]bool, len(targets))
		frameStart := true
		for {
			pkt, _, err = remote.ReadRTP()
			if err != nil {
				return
			}
			now := time.Now()
			for i, t := range targets {
				if t.sub.session != nil {
					if isVideo {
						if frameStart {
							allow[i] = t.sub.session.AllowVideoFrame(now)
						}
						if !allow[i] {
							continue
						}
					} else if !t.sub.session.AllowAudioFrame(now) {
						continue
					}
				}
				if err := t.local.WriteRTP(pkt); err != nil {
					continue
				}
			}
			frameStart = pkt.Marker
		}
	}()

	requestKeyframe(pub.pc)
}

// requestKeyframe sends one PLI to the publisher for each of its video
// receivers. It is called once per forwarded track and has no rate limit of
// its own.
func requestKeyframe(pc *webrtc.PeerConnection) {
	for _, receiver := range pc.GetReceivers() {
		track := receiver.Track()
		if track == nil || track.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		_ = pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
	}
}

func (p *mediaPeer) writePump() {
	defer p.conn.Close()
	for sig := range p.send {
		if err := p.conn.WriteJSON(sig); err != nil {
			return
		}
	}
}

func (p *mediaPeer) readPump() {
	defer func() {
		close(p.send)
		p.conn.Close()
	}()

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var sig MediaSignal
		if err := json.Unmarshal(raw, &sig); err != nil {
			continue
		}
		switch sig.Kind {
		case "offer":
			p.handleOffer(sig)
		case "answer":
			if sig.SDP != nil {
				_ = p.pc.SetRemoteDescription(*sig.SDP)
				p.flushCandidates()
			}
		case "candidate":
			p.handleCandidate(sig)
		}
	}
}

func (p *mediaPeer) handleOffer(sig MediaSignal) {
	if sig.SDP == nil {
		return
	}
	if err := p.pc.SetRemoteDescription(*sig.SDP); err != nil {
		log.Printf("webbridge: SetRemoteDescription failed: %v", err)
		return
	}
	p.flushCandidates()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("webbridge: CreateAnswer failed: %v", err)
		return
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		log.Printf("webbridge: SetLocalDescription failed: %v", err)
		return
	}
	p.send <- MediaSignal{Kind: "answer", SDP: p.pc.LocalDescription()}
}

func (p *mediaPeer) handleCandidate(sig MediaSignal) {
	if sig.Candidate == nil {
		return
	}
	p.candMu.Lock()
	defer p.candMu.Unlock()
	if !p.remoteSet {
		p.candQueue = append(p.candQueue, *sig.Candidate)
		return
	}
	if err := p.pc.AddICECandidate(*sig.Candidate); err != nil {
		log.Printf("webbridge: AddICECandidate failed: %v", err)
	}
}

func (p *mediaPeer) flushCandidates() {
	p.candMu.Lock()
	defer p.candMu.Unlock()
	p.remoteSet = true
	for _, c := range p.candQueue {
		_ = p.pc.AddICECandidate(c)
	}
	p.candQueue = nil
}

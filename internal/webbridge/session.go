// Package webbridge is the operator-facing gateway: a WebSocket control
// plane for commands/telemetry and a WebRTC media plane for video, fronting
// one or many rovers behind a single authenticated session per browser tab.
//
// Grounded on original_source/orchestra/web_bridge/src/security.rs and
// src/main.rs, re-expressed with the teacher's websocket/websocket.go hub
// pattern.
package webbridge

import (
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const staleLimiterAge = 5 * time.Minute

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters is a per-client-id set of token-bucket limiters with
// periodic eviction of stale entries, matching the original's
// HashMap<String, (RateLimiter, Instant)> with a 5 minute retention window.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	newLimiter func() *rate.Limiter
}

func newClientLimiters(newLimiter func() *rate.Limiter) *clientLimiters {
	return &clientLimiters{limiters: make(map[string]*limiterEntry), newLimiter: newLimiter}
}

func (c *clientLimiters) allow(clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.limiters {
		if now.Sub(e.lastSeen) >= staleLimiterAge {
			delete(c.limiters, id)
		}
	}

	e, ok := c.limiters[clientID]
	if !ok {
		e = &limiterEntry{limiter: c.newLimiter()}
		c.limiters[clientID] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

func (c *clientLimiters) reset(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, clientID)
}

// AuthRateLimiter caps authentication attempts per client id, default 5/min
// (RATE_LIMIT_AUTH_PER_MINUTE).
type AuthRateLimiter struct{ *clientLimiters }

func NewAuthRateLimiter() *AuthRateLimiter {
	maxAttempts := envInt("RATE_LIMIT_AUTH_PER_MINUTE", 5)
	return &AuthRateLimiter{newClientLimiters(func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxAttempts)), maxAttempts)
	})}
}

func (l *AuthRateLimiter) CheckAuthAttempt(clientID string) bool { return l.allow(clientID) }
func (l *AuthRateLimiter) Reset(clientID string)                 { l.reset(clientID) }

// CommandRateLimiter caps command throughput per client id, default
// 100/sec (RATE_LIMIT_COMMANDS_PER_SECOND).
type CommandRateLimiter struct{ *clientLimiters }

func NewCommandRateLimiter() *CommandRateLimiter {
	maxCommands := envInt("RATE_LIMIT_COMMANDS_PER_SECOND", 100)
	return &CommandRateLimiter{newClientLimiters(func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(maxCommands), maxCommands)
	})}
}

func (l *CommandRateLimiter) CheckCommand(clientID string) bool { return l.allow(clientID) }

// FrameCounters tallies a session's per-kind media fan-out outcomes.
type FrameCounters struct {
	VideoSent    uint64
	VideoDropped uint64
	AudioSent    uint64
}

// Session is one authenticated operator connection: a control-plane
// WebSocket identity plus the entity it currently has selected in the fleet
// roster, plus the per-session media throttle state for its video/audio
// fan-out. IsIdle reports a session silent for more than IdleTimeout; the
// hub does not evict idle sessions.
type Session struct {
	ID             string
	ClientID       string
	SelectedEntity string
	Authenticated  bool
	LastActivity   time.Time

	VideoEnabled bool
	AudioEnabled bool
	TargetFPS    float64
	Counters     FrameCounters

	lastVideoT time.Time
	lastAudioT time.Time
}

const IdleTimeout = 5 * time.Minute

const defaultTargetFPS = 15.0

func NewSession(id, clientID string) *Session {
	return &Session{
		ID:           id,
		ClientID:     clientID,
		LastActivity: time.Now(),
		VideoEnabled: true,
		AudioEnabled: true,
		TargetFPS:    envFloat("VIDEO_TARGET_FPS", defaultTargetFPS),
	}
}

func (s *Session) Touch() { s.LastActivity = time.Now() }

func (s *Session) IsIdle() bool { return time.Since(s.LastActivity) > IdleTimeout }

// AllowVideoFrame reports whether a video frame may be emitted to this
// session at now: enabled and at least 1000/target_fps ms have elapsed
// since the last one. A disallowed frame counts as dropped, not sent.
func (s *Session) AllowVideoFrame(now time.Time) bool {
	if !s.VideoEnabled || s.TargetFPS <= 0 {
		s.Counters.VideoDropped++
		return false
	}
	interval := time.Duration(1000/s.TargetFPS*float64(time.Millisecond))
	if !s.lastVideoT.IsZero() && now.Sub(s.lastVideoT) < interval {
		s.Counters.VideoDropped++
		return false
	}
	s.lastVideoT = now
	s.Counters.VideoSent++
	return true
}

// AllowAudioFrame allows delivery whenever audio is enabled for the session:
// audio has no per-session rate throttle, only the transport's own
// back-pressure (§4.G). An allowed frame updates the last-seen timestamp and
// sent counter for observability.
func (s *Session) AllowAudioFrame(now time.Time) bool {
	if !s.AudioEnabled {
		return false
	}
	s.lastAudioT = now
	s.Counters.AudioSent++
	return true
}

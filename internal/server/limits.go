package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Protocol limits. These values are part of the wire contract and the
// documented client experience; keep them in one place.
const (
	// heartbeatInterval is the cadence of server pings per session.
	heartbeatInterval = 15 * time.Second

	// heartbeatTimeout evicts a session with no inbound frames for this long.
	heartbeatTimeout = 45 * time.Second

	// rateLimitWindow is the sliding window for chat-message rate limiting.
	rateLimitWindow = 5 * time.Second

	// rateLimitMax is the number of chats allowed inside one window.
	// The rateLimitMax+1'th chat in a window is dropped.
	rateLimitMax = 12

	// maxFileSize caps announced file transfers.
	maxFileSize = 10 * 1024 * 1024

	// maxMessageRunes truncates chat text before construction.
	maxMessageRunes = 1024

	// handshakeTimeout bounds how long an unauthenticated connection may
	// sit before sending its hello.
	handshakeTimeout = 30 * time.Second
)

// ConnRateLimiter throttles connection attempts before the handshake:
// a token bucket per source IP plus one global bucket. Stale per-IP
// entries are dropped by a background sweep.
type ConnRateLimiter struct {
	mu      sync.Mutex
	perIP   map[string]*ipLimiter
	ipRate  rate.Limit
	ipBurst int
	ipTTL   time.Duration

	global *rate.Limiter
	logger zerolog.Logger
	stop   chan struct{}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnRateLimiterConfig configures NewConnRateLimiter. Zero values fall
// back to the defaults from Config.
type ConnRateLimiterConfig struct {
	IPBurst     int
	IPRate      float64
	IPTTL       time.Duration
	GlobalBurst int
	GlobalRate  float64
	Logger      zerolog.Logger
}

// NewConnRateLimiter builds a limiter and starts its cleanup sweep.
func NewConnRateLimiter(cfg ConnRateLimiterConfig) *ConnRateLimiter {
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = 10
	}
	if cfg.IPRate <= 0 {
		cfg.IPRate = 1
	}
	if cfg.IPTTL <= 0 {
		cfg.IPTTL = 5 * time.Minute
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 300
	}
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = 50
	}

	l := &ConnRateLimiter{
		perIP:   make(map[string]*ipLimiter),
		ipRate:  rate.Limit(cfg.IPRate),
		ipBurst: cfg.IPBurst,
		ipTTL:   cfg.IPTTL,
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		logger:  cfg.Logger.With().Str("component", "conn_rate_limiter").Logger(),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow reports whether a connection from ip may proceed. The global
// bucket is checked first so a distributed flood cannot bypass it.
func (l *ConnRateLimiter) Allow(ip string) bool {
	if !l.global.Allow() {
		l.logger.Warn().Str("ip", ip).Msg("connection rejected by global rate limit")
		return false
	}

	l.mu.Lock()
	entry, ok := l.perIP[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.ipRate, l.ipBurst)}
		l.perIP[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	if !entry.limiter.Allow() {
		l.logger.Warn().Str("ip", ip).Msg("connection rejected by per-IP rate limit")
		return false
	}
	return true
}

// Stop terminates the cleanup sweep.
func (l *ConnRateLimiter) Stop() {
	close(l.stop)
}

func (l *ConnRateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.ipTTL)
			l.mu.Lock()
			for ip, entry := range l.perIP {
				if entry.lastSeen.Before(cutoff) {
					delete(l.perIP, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/EmpoweredVote/EV-Profiles/internal/config"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

// RateLimit applies a token bucket per client address. Requests over the
// limit get 429 with Retry-After. Every handler wrapped by the returned
// middleware draws from the same buckets.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	clients := newClientLimiters(cfg, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !clients.allow(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one bucket per client. A client idle long enough for
// its bucket to refill is forgotten.
type clientLimiters struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newClientLimiters(cfg config.RateLimitConfig, now func() time.Time) *clientLimiters {
	idle := limiterIdleTTL
	if cfg.RequestsPerSecond > 0 {
		refill := time.Duration(float64(cfg.Burst) / cfg.RequestsPerSecond * float64(time.Second))
		if refill > idle {
			idle = refill
		}
	}
	return &clientLimiters{
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.Burst,
		idle:      idle,
		now:       now,
		clients:   make(map[string]*clientLimiter),
		lastSweep: now(),
	}
}

func (c *clientLimiters) allow(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= limiterSweepEvery {
		c.sweep(now)
	}

	cl, ok := c.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweep must be called with mu held.
func (c *clientLimiters) sweep(now time.Time) {
	for key, cl := range c.clients {
		if now.Sub(cl.lastSeen) >= c.idle {
			delete(c.clients, key)
		}
	}
	c.lastSweep = now
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

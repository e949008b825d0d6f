// Package ratelimit applies a per-client token bucket to incoming
// requests, keyed by the resolved client IP.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solfoundry/solforge/internal/middleware/realip"
)

// Config tunes the limiter.
type Config struct {
	Enabled bool
	// RequestsPerMin is the sustained allowance per client.
	RequestsPerMin int
	// BurstSize is how far a client may run ahead of the sustained rate.
	BurstSize int
	// CleanupMinutes controls how long an idle client's bucket survives.
	CleanupMinutes int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per client IP and evicts idle ones.
type Limiter struct {
	refill rate.Limit
	burst  int
	maxAge time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
}

// New starts a limiter; its eviction goroutine runs until Stop.
func New(cfg Config) *Limiter {
	maxAge := time.Duration(cfg.CleanupMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}

	l := &Limiter{
		refill:  rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.BurstSize,
		maxAge:  maxAge,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Stop ends the eviction goroutine.
func (l *Limiter) Stop() {
	close(l.done)
}

// Allow reports whether the client identified by ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.lim.Allow()
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.maxAge)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

func exempt(path string) bool {
	switch path {
	case "/health", "/healthz", "/readyz":
		return true
	}
	return false
}

// Middleware wraps handlers with the limiter. Health check paths are
// never limited. When disabled it is a no-op and starts nothing.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Handler
}

// Handler is the middleware function over an existing Limiter.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(realip.GetClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

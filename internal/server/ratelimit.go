package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"adbridge/internal/metrics"
	"adbridge/pkg/logging"
)

// idleClientWindow is how long an unused per-client limiter is kept.
const idleClientWindow = 5 * time.Minute

// RateLimiter enforces per-client throttling.
type RateLimiter struct {
	limit         rate.Limit
	burst         int
	window        time.Duration
	trustForward  bool
	metrics       *metrics.Metrics
	metricOutcome string

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per client
// with the given burst. It returns nil, which allows everything, when
// requestsPerMinute <= 0.
func NewRateLimiter(requestsPerMinute float64, burst int, trustForwarded bool) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:        rate.Limit(requestsPerMinute / 60.0),
		burst:        burst,
		window:       idleClientWindow,
		trustForward: trustForwarded,
		clients:      make(map[string]*clientLimiter),
		now:          time.Now,
	}
}

// WithMetrics counts rejected requests as callback outcome "rate_limited".
func (r *RateLimiter) WithMetrics(m *metrics.Metrics) *RateLimiter {
	if r != nil {
		r.metrics = m
		r.metricOutcome = "rate_limited"
	}
	return r
}

// Middleware wraps next with throttling. Rejected requests get 429 and
// never reach next.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := clientIP(req, r.trustForward)
		if !r.getLimiter(key).Allow() {
			logging.Warn("RateLimit", "Rejected %s %s from %s", req.Method, req.URL.Path, key)
			if r.metricOutcome != "" {
				r.metrics.Callback(r.metricOutcome)
			}
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests. Please slow down.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	r.cleanupLocked(now)
	return limiter
}

func (r *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > r.window {
			delete(r.clients, key)
		}
	}
}

// clientIP returns the address used as the rate limit key. With
// trustForwarded the first X-Forwarded-For entry wins.
func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

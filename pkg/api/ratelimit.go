package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/genolytics/labmetrics/pkg/config"
	"golang.org/x/time/rate"
)

// visitorRegistry hands out one token bucket per client IP. Idle
// entries are pruned lazily whenever the registry is consulted, so no
// background goroutine is needed and the map stays bounded by the set
// of recently active clients.
type visitorRegistry struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastPrune time.Time
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newVisitorRegistry(requestsPerMinute, burst int, ttl time.Duration) *visitorRegistry {
	return &visitorRegistry{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		ttl:       ttl,
		lastPrune: time.Now(),
	}
}

// take consumes one token from the client's bucket, creating the
// bucket on first sight. Returns false when the client is over budget.
func (vr *visitorRegistry) take(ip string) bool {
	now := time.Now()

	vr.mu.Lock()
	defer vr.mu.Unlock()

	if now.Sub(vr.lastPrune) > vr.ttl {
		vr.pruneLocked(now)
	}

	v, ok := vr.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(vr.limit, vr.burst)}
		vr.visitors[ip] = v
	}

	v.lastSeen = now

	return v.bucket.Allow()
}

// pruneLocked drops visitors idle for longer than the TTL. Caller
// holds vr.mu.
func (vr *visitorRegistry) pruneLocked(now time.Time) {
	for ip, v := range vr.visitors {
		if now.Sub(v.lastSeen) > vr.ttl {
			delete(vr.visitors, ip)
		}
	}

	vr.lastPrune = now
}

// rateLimitMiddleware enforces the configured per-IP request budget.
func (s *server) rateLimitMiddleware(
	cfg config.RateLimitConfig,
) func(http.Handler) http.Handler {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	ttl, err := cfg.ClientTTLDuration()
	if err != nil || ttl <= 0 {
		ttl, _ = time.ParseDuration(config.DefaultRateLimitClientTTL)
	}

	registry := newVisitorRegistry(cfg.RequestsPerMinute, burst, ttl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !registry.take(extractIP(r)) {
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client's IP address, preferring the first hop
// of an X-Forwarded-For chain over the socket address.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit limits each client IP to rps requests per second with the
// given burst. rps <= 0 disables limiting.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters := newClientLimiters(rate.Limit(rps), max(burst, 1))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(extractClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// idleTTL is how long an unused per-client limiter is kept.
const idleTTL = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	byIP  map[string]*clientLimiter
	swept time.Time
	nowFn func() time.Time
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		limit: limit,
		burst: burst,
		byIP:  make(map[string]*clientLimiter),
		nowFn: time.Now,
	}
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if now.Sub(c.swept) > idleTTL {
		for k, v := range c.byIP {
			if now.Sub(v.lastSeen) > idleTTL {
				delete(c.byIP, k)
			}
		}
		c.swept = now
	}

	cl, ok := c.byIP[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(c.limit, c.burst)}
		c.byIP[ip] = cl
	}
	cl.lastSeen = now
	return cl.lim
}

// extractClientIP prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

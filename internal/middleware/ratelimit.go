package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/holotutor/hub-server-go/internal/config"
)

// Limiter decides whether one more request from the identifier fits its
// window.
type Limiter interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) bool
}

// RateLimit guards the REST surface per client IP. Denials answer 429 with
// the limit advertised so well-behaved clients can back off.
func RateLimit(limiter Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), clientIP(r), limit, config.RateLimitWindow) {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("Retry-After", strconv.Itoa(int(config.RateLimitWindow.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

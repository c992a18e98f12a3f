package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"study-notes/ratelimit"
)

// RateLimit applies limiter per client IP under scope. A nil limiter disables it.
// Run chimw.RealIP first when behind a proxy.
func RateLimit(limiter ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), scope+":"+clientIP(r))
			if err != nil {
				slog.ErrorContext(r.Context(), "rate limiter failed", "scope", scope, "error", err)
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests"})
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

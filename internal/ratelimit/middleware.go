package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LimitedMessage is the body message of a 429 response.
const LimitedMessage = "Too many requests from this IP, please try again later."

var rateLimitedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "codesphere_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	},
)

func init() {
	prometheus.MustRegister(rateLimitedTotal)
}

// Middleware limits requests per client IP. Run it after chi's RealIP so
// RemoteAddr holds the client address. A limiter error lets the request
// through.
func Middleware(l Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				logger.Error("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				rateLimitedTotal.Inc()
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				if err := json.NewEncoder(w).Encode(map[string]any{
					"error":   true,
					"message": LimitedMessage,
				}); err != nil {
					logger.Error("encode rate limit response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey strips the port from RemoteAddr when there is one.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

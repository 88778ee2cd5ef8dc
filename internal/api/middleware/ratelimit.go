package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/metrics"
	"github.com/parley-chat/parley/internal/store"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter implements fixed-window rate limiting backed by Redis.
// With a nil store (development without Redis) it passes everything
// through.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limits map[string]RateLimit
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /users":          {60, time.Minute},
			"POST /conversations":  {60, time.Minute},
			"POST /conversations/": {120, time.Minute}, // messages, mark-read
			"PUT /conversations/":  {600, time.Minute}, // typing writes are chatty
			"GET /users":           {120, time.Minute},
			"GET /conversations":   {240, time.Minute},
			"GET /conversations/":  {240, time.Minute},
		},
	}
}

// match finds the limit bucket for a request. Longest prefix wins so
// "POST /conversations/" shadows "POST /conversations".
func (rl *RateLimiter) match(r *http.Request) (string, RateLimit, bool) {
	key := r.Method + " " + r.URL.Path
	var best string
	var limit RateLimit
	for pattern, l := range rl.limits {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			best = pattern
			limit = l
		}
	}
	return best, limit, best != ""
}

// Middleware enforces the configured limits per client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		bucket, limit, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		caller := clientIP(r)
		allowed, err := rl.redis.CheckRateLimit(r.Context(), bucket, caller, limit.Requests)
		if err != nil {
			// Redis trouble should not take the API down
			rl.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			metrics.RateLimitHits.WithLabelValues(bucket).Inc()
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		if err := rl.redis.IncrementRateLimit(r.Context(), bucket, caller, limit.Window); err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit increment failed")
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller address, without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

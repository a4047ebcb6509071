package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"pulsepoll/internal/cache"
)

// RateLimiter is a fixed-window request limiter backed by shared counters.
// If the counting store is unreachable it fails open: availability wins over
// strict enforcement for this control.
type RateLimiter struct {
	store  cache.RateLimitStore
	scope  string
	window time.Duration
	max    int64
}

// NewRateLimiter creates a limiter for one named scope.
func NewRateLimiter(store cache.RateLimitStore, scope string, window time.Duration, max int64) *RateLimiter {
	return &RateLimiter{
		store:  store,
		scope:  scope,
		window: window,
		max:    max,
	}
}

// Middleware admits or rejects requests per origin.
func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := ClientIP(r)

		count, ttl, err := m.store.Hit(r.Context(), m.scope, origin, m.window)
		if err != nil {
			log.Printf("Rate limiter degraded: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > m.max {
			if ttl <= 0 {
				ttl = m.window
			}
			retryAfterSec := int64((ttl + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":        "Too many requests",
				"message":      "Please slow down and try again later.",
				"retryAfterMs": ttl.Milliseconds(),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

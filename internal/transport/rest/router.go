package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pulsepoll/internal/cache"
	"pulsepoll/internal/config"
	"pulsepoll/internal/service"
	"pulsepoll/internal/transport/rest/handler"
	"pulsepoll/internal/transport/rest/middleware"
	"pulsepoll/internal/transport/ws"
)

const version = "1.0.0"

var startTime = time.Now()

// Container holds all dependencies for the router.
type Container struct {
	Config         *config.Config
	AuthService    *service.AuthService
	PollService    *service.PollService
	VoteService    *service.VoteService
	RateLimitStore cache.RateLimitStore
	WSHandler      *ws.Handler
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	pollHandler := handler.NewPollHandler(c.PollService, c.VoteService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)
	globalLimiter := middleware.NewRateLimiter(c.RateLimitStore, "global", c.Config.RateLimitWindow, c.Config.RateLimitMax)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.Config.CORSAllowedOrigins))

	// Health check, outside the rate limit
	r.HandleFunc("/health", healthHandler).Methods("GET")

	// API v1 routes, all behind the global fixed-window limit
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(globalLimiter.Middleware)

	v1.HandleFunc("/health", healthHandler).Methods("GET")
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	v1.HandleFunc("/polls", pollHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/polls/{shareCode}", pollHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/polls/{shareCode}/vote", pollHandler.Vote).Methods("POST", "OPTIONS")

	// WebSocket route
	v1.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	// Admin routes (require admin auth)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/polls/{shareCode}/deactivate", pollHandler.Deactivate).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/polls/{shareCode}/reactivate", pollHandler.Reactivate).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/polls/{shareCode}", pollHandler.Delete).Methods("DELETE", "OPTIONS")

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startTime).Seconds(),
	})
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

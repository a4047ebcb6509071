package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"

	"pulsepoll/internal/cache"
	"pulsepoll/internal/config"
	"pulsepoll/internal/repository"
	"pulsepoll/internal/service"
	"pulsepoll/internal/transport/rest"
	"pulsepoll/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// The unique vote index is the authoritative duplicate guard; refuse to
	// serve without it.
	indexCtx, cancelIndex := context.WithTimeout(ctx, 10*time.Second)
	defer cancelIndex()
	if err := repository.EnsureIndexes(indexCtx, db); err != nil {
		log.Fatal("Failed to create indexes:", err)
	}

	// Redis connection. Rate limiting, vote locks, and the tally cache all
	// fail open, so a missing Redis degrades the service instead of
	// stopping it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("Warning: failed to ping Redis, running degraded: %v", err)
	} else {
		log.Println("Connected to Redis")
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories
	pollRepo := repository.NewPollRepo(db)
	voteRepo := repository.NewVoteRepo(db)

	// Initialize caches
	tallyCache := cache.NewTallyCache(rdb)
	voteLocks := cache.NewVoteLockCache(rdb)
	rateLimits := cache.NewRateLimitStore(rdb)

	// Initialize services
	authSvc := service.NewAuthService(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)
	pollSvc := service.NewPollService(pollRepo, voteRepo, tallyCache)
	voteSvc := service.NewVoteService(pollRepo, voteRepo, tallyCache, voteLocks, wsHub)

	// WebSocket handler with its own per-IP upgrade limiter
	wsLimiter := ws.NewIPRateLimiter(rate.Limit(1), 5)
	wsHandler := ws.NewHandler(wsHub, pollSvc, wsLimiter)

	// Create router with container
	container := &rest.Container{
		Config:         cfg,
		AuthService:    authSvc,
		PollService:    pollSvc,
		VoteService:    voteSvc,
		RateLimitStore: rateLimits,
		WSHandler:      wsHandler,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("PulsePoll server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

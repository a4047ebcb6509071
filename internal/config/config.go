package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	Port               string
	MongoURI           string
	MongoDB            string
	RedisAddr          string
	RedisPassword      string
	CORSAllowedOrigins string

	// Global fixed-window rate limit applied to every API request.
	RateLimitWindow time.Duration
	RateLimitMax    int64

	AdminUsername string
	AdminPassword string
	JWTSecret     string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "4000"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB", "pulsepoll"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		RateLimitWindow:    time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		RateLimitMax:       getEnvInt("RATE_LIMIT_MAX_REQUESTS", 60),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", "password123"),
		JWTSecret:          getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

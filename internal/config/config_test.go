package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "RATE_LIMIT_WINDOW_MS", "RATE_LIMIT_MAX_REQUESTS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "4000" {
		t.Errorf("Port = %q, want 4000", cfg.Port)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 60 {
		t.Errorf("RateLimitMax = %d, want 60", cfg.RateLimitMax)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "5000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("ADMIN_USERNAME", "operator")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RateLimitWindow != 5*time.Second {
		t.Errorf("RateLimitWindow = %v, want 5s", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 10 {
		t.Errorf("RateLimitMax = %d, want 10", cfg.RateLimitMax)
	}
	if cfg.AdminUsername != "operator" {
		t.Errorf("AdminUsername = %q, want operator", cfg.AdminUsername)
	}
}

func TestLoadMalformedInt(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "not-a-number")

	if cfg := Load(); cfg.RateLimitMax != 60 {
		t.Errorf("RateLimitMax = %d, want default 60", cfg.RateLimitMax)
	}
}

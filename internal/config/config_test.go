package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CONVERSATION_TTL", "")
	t.Setenv("STORE_DRIVER", "")

	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.ConversationTTL != 30*24*time.Hour {
		t.Errorf("expected 30 day TTL, got %s", cfg.ConversationTTL)
	}
	if cfg.StoreDriver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.StoreDriver)
	}
	if cfg.GroqBaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("unexpected groq base url %q", cfg.GroqBaseURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_REQUEST_TIMEOUT", "15s")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	if cfg.ServerPort != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.ServerPort)
	}
	if cfg.ChatRequestTimeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %s", cfg.ChatRequestTimeout)
	}
	if cfg.RateLimitRequests != 5 {
		t.Errorf("expected 5 requests, got %d", cfg.RateLimitRequests)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "many")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()

	if cfg.RateLimitRequests != 60 {
		t.Errorf("expected fallback 60, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("expected fallback 1m, got %s", cfg.RateLimitWindow)
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing disabled on invalid bool")
	}
}

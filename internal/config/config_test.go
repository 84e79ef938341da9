package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Backend != "gemini" {
		t.Errorf("Backend = %q, want gemini", cfg.Backend)
	}
	if cfg.RequestsPerMinute != 30 {
		t.Errorf("RequestsPerMinute = %d, want 30", cfg.RequestsPerMinute)
	}
	if !cfg.FallbackOnFailure {
		t.Error("FallbackOnFailure should default to true")
	}
	if cfg.FastScreenDefault {
		t.Error("FastScreenDefault should default to false")
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_BACKEND", "gateway")
	t.Setenv("MAX_CONCURRENT_CALLS", "2")
	t.Setenv("FALLBACK_ON_FAILURE", "false")
	t.Setenv("RESULT_CACHE_TTL", "90s")
	t.Setenv("MAX_TRANSACTIONS_PER_PROMPT", "10")

	cfg := Load()

	if cfg.Backend != "gateway" {
		t.Errorf("Backend = %q, want gateway", cfg.Backend)
	}
	if cfg.MaxConcurrentCalls != 2 {
		t.Errorf("MaxConcurrentCalls = %d, want 2", cfg.MaxConcurrentCalls)
	}
	if cfg.FallbackOnFailure {
		t.Error("FallbackOnFailure should be false")
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.MaxTransactionsPerPrompt != 10 {
		t.Errorf("MaxTransactionsPerPrompt = %d, want 10", cfg.MaxTransactionsPerPrompt)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_CALLS", "lots")
	t.Setenv("RESULT_CACHE_TTL", "soon")

	cfg := Load()

	if cfg.MaxConcurrentCalls != 4 {
		t.Errorf("MaxConcurrentCalls = %d, want default 4", cfg.MaxConcurrentCalls)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want default 5m", cfg.CacheTTL)
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}
	if cfg.RateLimit.PerMinute != 55 {
		t.Errorf("Expected RateLimit.PerMinute to be 55, got %d", cfg.RateLimit.PerMinute)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected Retry.MaxAttempts to be 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Expected Cache.Backend to be sqlite, got %s", cfg.Cache.Backend)
	}
	if cfg.Screener.BenchmarkSymbol != "SPY" {
		t.Errorf("Expected BenchmarkSymbol to be SPY, got %s", cfg.Screener.BenchmarkSymbol)
	}
}

func TestLoad_DefaultTTLs(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tests := []struct {
		category string
		want     time.Duration
	}{
		{TTLSymbols, 24 * time.Hour},
		{TTLFinancials, 24 * time.Hour},
		{TTLMetrics, 12 * time.Hour},
		{TTLDailyQuote, time.Hour},
		{TTLInsider, 24 * time.Hour},
		{TTLEstimates, 12 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := cfg.Cache.TTL[tt.category]; got != tt.want {
				t.Errorf("TTL[%s] = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "test-key")
	t.Setenv("ENV", "production")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("CACHE_TTL_DAILY_QUOTE", "15m")
	t.Setenv("WORKERS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}
	if cfg.RateLimit.PerMinute != 30 {
		t.Errorf("Expected PerMinute 30, got %d", cfg.RateLimit.PerMinute)
	}
	if cfg.Cache.TTL[TTLDailyQuote] != 15*time.Minute {
		t.Errorf("Expected daily-quote TTL 15m, got %v", cfg.Cache.TTL[TTLDailyQuote])
	}
	if cfg.Screener.Workers != 8 {
		t.Errorf("Expected Workers 8, got %d", cfg.Screener.Workers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing api key", map[string]string{"FINNHUB_API_KEY": ""}},
		{"bad env", map[string]string{"ENV": "qa"}},
		{"ceiling above provider limit", map[string]string{"RATE_LIMIT_PER_MINUTE": "61"}},
		{"malformed int", map[string]string{"RATE_LIMIT_PER_MINUTE": "fast"}},
		{"malformed duration", map[string]string{"CACHE_TTL_METRICS": "tomorrow"}},
		{"redis backend without redis", map[string]string{"CACHE_BACKEND": "redis"}},
		{"zero workers", map[string]string{"WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FINNHUB_API_KEY", "test-key")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Error("Expected Load() to fail")
			}
		})
	}
}

func TestLoadLocal_NoCredentials(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "")

	cfg, err := LoadLocal()
	if err != nil {
		t.Fatalf("LoadLocal() failed: %v", err)
	}
	if cfg.Finnhub.APIKey != "" {
		t.Errorf("Expected empty API key, got %q", cfg.Finnhub.APIKey)
	}
}

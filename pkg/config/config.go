package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the screener
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Upstream provider
	Finnhub FinnhubConfig

	// Response cache
	Cache CacheConfig

	// Outbound call pacing and retries
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Breaker   BreakerConfig

	// Redis (optional shared cache / limiter backend)
	Redis RedisConfig

	// Screening run
	Screener ScreenerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// FinnhubConfig holds provider credentials and endpoint
type FinnhubConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Cache TTL category names. The cache package keys its entries by these.
const (
	TTLSymbols      = "symbols"
	TTLProfile      = "profile"
	TTLFinancials   = "financials"
	TTLMetrics      = "metrics"
	TTLDailyQuote   = "daily-quote"
	TTLPriceHistory = "price-history"
	TTLInsider      = "insider"
	TTLEstimates    = "estimates"
)

// defaultTTLs are the expiry durations per cache category
var defaultTTLs = map[string]string{
	TTLSymbols:      "24h",
	TTLProfile:      "24h",
	TTLFinancials:   "24h",
	TTLMetrics:      "12h",
	TTLDailyQuote:   "1h",
	TTLPriceHistory: "24h",
	TTLInsider:      "24h",
	TTLEstimates:    "12h",
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	Backend string // sqlite, redis, memory
	Dir     string // empty means the XDG cache home
	TTL     map[string]time.Duration
}

// RateLimitConfig holds the outbound call ceiling
type RateLimitConfig struct {
	Backend   string // local, redis
	PerMinute int
	Burst     int
}

// RetryConfig holds retry/backoff configuration for transient failures
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	MaxFailures uint32
	Cooldown    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ScreenerConfig holds screening run settings
type ScreenerConfig struct {
	Workers         int
	SymbolTimeout   time.Duration
	OutputDir       string
	StrategyConfig  string // path to strategy YAML, empty means built-in defaults
	BenchmarkSymbol string
	Schedule        string // cron spec for the scheduler command
}

// providerCallCeiling is the free-tier provider limit per minute.
const providerCallCeiling = 60

// Load reads configuration from environment variables and requires
// provider credentials.
// ⭐ SSOT: the only caller of os.Getenv
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Finnhub.APIKey == "" {
		return nil, fmt.Errorf("config validation failed: FINNHUB_API_KEY is required")
	}
	return cfg, nil
}

// LoadLocal reads configuration without requiring provider credentials.
// Used by commands that only touch local state, such as cache maintenance.
func LoadLocal() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	loadEnvFile()

	env := &envReader{}
	cfg := &Config{
		Port: env.str("PORT", "8089"),
		Env:  env.str("ENV", "development"),

		Finnhub: FinnhubConfig{
			APIKey:  env.str("FINNHUB_API_KEY", ""),
			BaseURL: env.str("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
			Timeout: env.duration("HTTP_TIMEOUT", "30s"),
		},

		Cache: CacheConfig{
			Backend: env.str("CACHE_BACKEND", "sqlite"),
			Dir:     env.str("CACHE_DIR", ""),
			TTL:     make(map[string]time.Duration, len(defaultTTLs)),
		},

		RateLimit: RateLimitConfig{
			Backend:   env.str("RATE_LIMIT_BACKEND", "local"),
			PerMinute: env.int("RATE_LIMIT_PER_MINUTE", 55),
			Burst:     env.int("RATE_LIMIT_BURST", 1),
		},

		Retry: RetryConfig{
			MaxAttempts:  env.int("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: env.duration("RETRY_INITIAL_DELAY", "2s"),
			MaxDelay:     env.duration("RETRY_MAX_DELAY", "10s"),
		},

		Breaker: BreakerConfig{
			MaxFailures: uint32(env.int("BREAKER_MAX_FAILURES", 10)),
			Cooldown:    env.duration("BREAKER_COOLDOWN", "60s"),
		},

		Redis: RedisConfig{
			Host:     env.str("REDIS_HOST", "localhost"),
			Port:     env.str("REDIS_PORT", "6379"),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.int("REDIS_DB", 0),
			Enabled:  env.bool("REDIS_ENABLED", false),
		},

		Screener: ScreenerConfig{
			Workers:         env.int("WORKERS", 4),
			SymbolTimeout:   env.duration("SYMBOL_TIMEOUT", "2m"),
			OutputDir:       env.str("OUTPUT_DIR", "data"),
			StrategyConfig:  env.str("STRATEGY_CONFIG", ""),
			BenchmarkSymbol: env.str("BENCHMARK_SYMBOL", "SPY"),
			Schedule:        env.str("SCREEN_SCHEDULE", "0 30 16 * * 1-5"),
		},

		LogLevel:  env.str("LOG_LEVEL", "info"),
		LogFormat: env.str("LOG_FORMAT", "json"),

		MetricsEnabled: env.bool("METRICS_ENABLED", true),
	}

	for category, def := range defaultTTLs {
		key := "CACHE_TTL_" + strings.ToUpper(strings.ReplaceAll(category, "-", "_"))
		cfg.Cache.TTL[category] = env.duration(key, def)
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks ranges and enumerations
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: sqlite, redis, memory")
	}
	if c.RateLimit.Backend != "local" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: local, redis")
	}
	if (c.Cache.Backend == "redis" || c.RateLimit.Backend == "redis") && !c.Redis.Enabled {
		return fmt.Errorf("redis backends require REDIS_ENABLED=true")
	}

	if c.RateLimit.PerMinute <= 0 || c.RateLimit.PerMinute > providerCallCeiling {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be in 1..%d, got %d", providerCallCeiling, c.RateLimit.PerMinute)
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.Burst > c.RateLimit.PerMinute {
		return fmt.Errorf("RATE_LIMIT_BURST must be in 1..RATE_LIMIT_PER_MINUTE, got %d", c.RateLimit.Burst)
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("RETRY_INITIAL_DELAY must be positive and not exceed RETRY_MAX_DELAY")
	}

	for category, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl for %q must be positive", category)
		}
	}

	if c.Screener.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive")
	}
	if c.Screener.BenchmarkSymbol == "" {
		return fmt.Errorf("BENCHMARK_SYMBOL is required")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// envReader reads typed values and remembers every malformed one so that
// Load can refuse to start instead of silently using a default.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) int(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func (r *envReader) bool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func (r *envReader) duration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	d, err := time.ParseDuration(valueStr)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

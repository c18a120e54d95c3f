package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.InDelta(t, 1.0, cfg.Hyper.Weights.Sum(), 1e-9)
	assert.InDelta(t, 1.0, cfg.Trend.Weights.Sum(), 1e-9)
	assert.InDelta(t, 1.0, cfg.Hyper.Moat.MaxPoints(), 1e-9)
	assert.Empty(t, Warn(cfg))
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, data, err := Load("")
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial file overrides only named keys", func(t *testing.T) {
		path := writeYAML(t, `
meta:
  config_id: no-rs
trend_durability:
  filters:
    rs_persistence: false
hyperperformance:
  min_market_cap: 2000000000
`)
		cfg, data, err := Load(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, "no-rs", cfg.Meta.ConfigID)
		assert.False(t, cfg.Trend.Filters.RSPersistence)
		assert.True(t, cfg.Trend.Filters.Regime, "unnamed toggles keep their defaults")
		assert.Equal(t, 2e9, cfg.Hyper.MinMarketCap)
		assert.Equal(t, 0.30, cfg.Hyper.Weights.RevenueCAGR)
	})

	t.Run("example file loads", func(t *testing.T) {
		path := "../../config/strategy.example.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Skip("example config not found")
		}
		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "example", cfg.Meta.ConfigID)
		assert.Len(t, cfg.Themes, 3)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		path := writeYAML(t, "hyperperformance:\n  wieghts:\n    eps_cagr: 0.3\n")
		_, _, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wieghts")
	})

	t.Run("invalid weights fail validation", func(t *testing.T) {
		path := writeYAML(t, "hyperperformance:\n  weights:\n    eps_cagr: 0.5\n")
		_, _, err := Load(path)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"missing config id", func(c *Config) { c.Meta.ConfigID = "" }, "meta.config_id"},
		{"trend weights off", func(c *Config) { c.Trend.Weights.RSPersistence = 0.5 }, "trend_durability.weights"},
		{"negative weight", func(c *Config) {
			c.Hyper.Weights.Acceleration = -0.05
			c.Hyper.Weights.RevenueCAGR = 0.40
		}, "hyperperformance.weights.acceleration"},
		{"inverted bounds", func(c *Config) { c.Hyper.Bounds.FCFMargin = Bounds{0.3, -0.1} }, "hyperperformance.bounds.fcf_margin"},
		{"equal bounds", func(c *Config) { c.Hyper.Bounds.EPSCAGR = Bounds{0.2, 0.2} }, "hyperperformance.bounds.eps_cagr"},
		{"coverage above one", func(c *Config) { c.Hyper.MinCoverage = 1.5 }, "hyperperformance.min_coverage"},
		{"ascending tiers", func(c *Config) { c.Hyper.Moat.ROIC = []Tier{{0.10, 0.15}, {0.15, 0.30}} }, "hyperperformance.moat.roic"},
		{"moat above one", func(c *Config) { c.Hyper.Moat.StabilityPoints = 0.5 }, "hyperperformance.moat"},
		{"short ma not shorter", func(c *Config) { c.Metrics.Technical.MAShortWeeks = 80 }, "metrics.technical"},
		{"slope threshold above window", func(c *Config) { c.Metrics.Technical.SlopeMinPositiveWeeks = 30 }, "metrics.technical.slope_min_positive_weeks"},
		{"percentile out of range", func(c *Config) { c.Metrics.Technical.RSStrongPercentile = 120 }, "metrics.technical.rs_strong_percentile"},
		{"rs persistence out of range", func(c *Config) { c.Trend.Thresholds.MinRSPersistence = 70 }, "trend_durability.thresholds.min_rs_persistence"},
		{"duplicate theme", func(c *Config) { c.Themes = append(c.Themes, ThemeRule{Name: "ai", Keywords: []string{"x"}}) }, "themes[3].name"},
		{"empty theme", func(c *Config) { c.Themes = []ThemeRule{{Name: "Cloud"}} }, "themes[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Trend.Filters = TrendFilters{}
	cfg.Hyper.MinCoverage = 0.3

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"LOW_COVERAGE", "NO_TREND_FILTERS"}, codes)
}

func TestHash(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, _ := Hash(Default())
	assert.Equal(t, a, b, "hash must be deterministic")

	changed := Default()
	changed.Trend.Filters.Valuation = false
	c, _ := Hash(changed)
	assert.NotEqual(t, a, c)
}

func TestNewProvenance(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	p, err := NewProvenance(Default(), []byte("meta: {}"), "run-1", now)
	require.NoError(t, err)
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, "default", p.ConfigID)
	assert.Equal(t, "meta: {}", p.ConfigYAML)
	assert.Equal(t, now, p.CreatedAt)
	assert.Len(t, p.ConfigHash, 64)
}

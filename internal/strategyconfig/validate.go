package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidationError fails startup
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but questionable setting
type Warning struct {
	Code    string
	Message string
}

const weightEpsilon = 1e-6

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}

	// === Metrics ===
	m := cfg.Metrics
	if m.DefaultTaxRate < 0 || m.DefaultTaxRate >= 1 {
		return ValidationError{"metrics.default_tax_rate", "must be in [0, 1)"}
	}
	if m.InsiderLookbackDays <= 0 {
		return ValidationError{"metrics.insider_lookback_days", "must be > 0"}
	}
	if m.TrendYears < 3 {
		return ValidationError{"metrics.trend_years", "must be >= 3"}
	}
	if m.MinStabilityPeriods < 2 {
		return ValidationError{"metrics.min_stability_periods", "must be >= 2"}
	}
	if err := validateTechnical(m.Technical); err != nil {
		return err
	}

	// === Hyperperformance ===
	h := cfg.Hyper
	if err := validateWeightsSum(h.Weights.Sum(), 1.0); err != nil {
		return ValidationError{"hyperperformance.weights", err.Error()}
	}
	for name, w := range map[string]float64{
		"revenue_cagr": h.Weights.RevenueCAGR, "eps_cagr": h.Weights.EPSCAGR,
		"fcf_margin": h.Weights.FCFMargin, "returns": h.Weights.Returns,
		"sentiment": h.Weights.Sentiment, "acceleration": h.Weights.Acceleration,
	} {
		if w < 0 {
			return ValidationError{"hyperperformance.weights." + name, "must be >= 0"}
		}
	}

	bounds := []struct {
		field string
		b     Bounds
	}{
		{"revenue_cagr", h.Bounds.RevenueCAGR},
		{"eps_cagr", h.Bounds.EPSCAGR},
		{"fcf_margin", h.Bounds.FCFMargin},
		{"returns", h.Bounds.Returns},
		{"forward_growth", h.Bounds.ForwardGrowth},
		{"acceleration", h.Bounds.Acceleration},
	}
	for _, b := range bounds {
		if b.b.Min >= b.b.Max {
			return ValidationError{"hyperperformance.bounds." + b.field, fmt.Sprintf("min (%g) must be < max (%g)", b.b.Min, b.b.Max)}
		}
	}

	if err := validatePctRange(h.MinCoverage, "hyperperformance.min_coverage"); err != nil {
		return err
	}
	if h.MinMarketCap < 0 {
		return ValidationError{"hyperperformance.min_market_cap", "must be >= 0"}
	}
	if err := validatePctRange(h.MoatBonus, "hyperperformance.moat_bonus"); err != nil {
		return err
	}
	if err := validateMoat(h.Moat); err != nil {
		return err
	}

	// === Trend durability ===
	t := cfg.Trend
	if err := validateWeightsSum(t.Weights.Sum(), 1.0); err != nil {
		return ValidationError{"trend_durability.weights", err.Error()}
	}
	if err := validatePctRange(t.MinCoverage, "trend_durability.min_coverage"); err != nil {
		return err
	}
	if err := validatePctRange(t.Thresholds.MinRSPersistence, "trend_durability.thresholds.min_rs_persistence"); err != nil {
		return err
	}
	if t.Thresholds.MinRevenueCAGR < 0 {
		return ValidationError{"trend_durability.thresholds.min_revenue_cagr", "must be >= 0"}
	}
	if t.Thresholds.PEMultiplier <= 0 {
		return ValidationError{"trend_durability.thresholds.pe_multiplier", "must be > 0"}
	}
	if t.Thresholds.NoGrowthPE <= 0 || t.Thresholds.UnknownGrowthPE <= 0 {
		return ValidationError{"trend_durability.thresholds", "no_growth_pe and unknown_growth_pe must be > 0"}
	}

	// === Themes ===
	seen := make(map[string]bool, len(cfg.Themes))
	for i, rule := range cfg.Themes {
		field := fmt.Sprintf("themes[%d]", i)
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[strings.ToLower(name)] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate theme %q", name)}
		}
		seen[strings.ToLower(name)] = true
		if len(rule.Keywords) == 0 && len(rule.Sectors) == 0 {
			return ValidationError{field, "must have keywords or sectors"}
		}
		for j, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return ValidationError{fmt.Sprintf("%s.keywords[%d]", field, j), "must not be empty"}
			}
		}
	}

	return nil
}

func validateTechnical(t Technical) error {
	positive := []struct {
		field string
		v     int
	}{
		{"ma_short_weeks", t.MAShortWeeks},
		{"ma_long_weeks", t.MALongWeeks},
		{"slope_window_weeks", t.SlopeWindowWeeks},
		{"rs_window_days", t.RSWindowDays},
		{"rs_history_days", t.RSHistoryDays},
		{"near_ma_weeks", t.NearMAWeeks},
		{"vol_short_weeks", t.VolShortWeeks},
		{"vol_long_weeks", t.VolLongWeeks},
		{"stair_window_weeks", t.StairWindowWeeks},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return ValidationError{"metrics.technical." + p.field, "must be > 0"}
		}
	}

	if t.MAShortWeeks >= t.MALongWeeks {
		return ValidationError{"metrics.technical", "ma_short_weeks must be < ma_long_weeks"}
	}
	if t.SlopeMinPositiveWeeks < 0 || t.SlopeMinPositiveWeeks > t.SlopeWindowWeeks {
		return ValidationError{"metrics.technical.slope_min_positive_weeks", "must be in [0, slope_window_weeks]"}
	}
	if t.VolShortWeeks >= t.VolLongWeeks {
		return ValidationError{"metrics.technical", "vol_short_weeks must be < vol_long_weeks"}
	}
	if t.RSStrongPercentile < 0 || t.RSStrongPercentile > 100 {
		return ValidationError{"metrics.technical.rs_strong_percentile", "must be in [0, 100]"}
	}
	if t.ViolationRSPercentile < 0 || t.ViolationRSPercentile > 100 {
		return ValidationError{"metrics.technical.violation_rs_percentile", "must be in [0, 100]"}
	}
	if err := validatePctRange(t.BenchmarkDrawdownMin, "metrics.technical.benchmark_drawdown_min"); err != nil {
		return err
	}
	if err := validatePctRange(t.NearMATolerance, "metrics.technical.near_ma_tolerance"); err != nil {
		return err
	}
	if t.VolContractionRatio <= 0 {
		return ValidationError{"metrics.technical.vol_contraction_ratio", "must be > 0"}
	}
	return validatePctRange(t.StairMinPositiveShare, "metrics.technical.stair_min_positive_share")
}

func validateMoat(m Moat) error {
	tiers := map[string][]Tier{
		"roic":              m.ROIC,
		"insider_buy_ratio": m.InsiderBuyRatio,
		"analyst_buy_ratio": m.AnalystBuyRatio,
	}
	for name, list := range tiers {
		for i, tier := range list {
			if tier.Points < 0 || tier.Points > 1 {
				return ValidationError{fmt.Sprintf("hyperperformance.moat.%s[%d].points", name, i), "must be in [0, 1]"}
			}
			if i > 0 && tier.Threshold >= list[i-1].Threshold {
				return ValidationError{fmt.Sprintf("hyperperformance.moat.%s", name), "thresholds must be strictly descending"}
			}
		}
	}

	if m.StabilityFullStdDev < 0 || m.StabilityFullStdDev >= m.StabilityZeroStdDev {
		return ValidationError{"hyperperformance.moat", "stability_full_stddev must be >= 0 and < stability_zero_stddev"}
	}
	if m.AccelerationFull <= 0 {
		return ValidationError{"hyperperformance.moat.acceleration_full", "must be > 0"}
	}
	if total := m.MaxPoints(); total > 1+weightEpsilon {
		return ValidationError{"hyperperformance.moat", fmt.Sprintf("maximum score must be <= 1, got %.4f", total)}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Hyper.MinCoverage < 0.5 {
		warnings = append(warnings, Warning{
			Code:    "LOW_COVERAGE",
			Message: "hyperperformance.min_coverage < 0.5: symbols backed by a minority of weight can rank",
		})
	}

	f := cfg.Trend.Filters
	if !f.Regime && !f.RSPersistence && !f.EarningsQuality && !f.TrendStructure && !f.Valuation {
		warnings = append(warnings, Warning{
			Code:    "NO_TREND_FILTERS",
			Message: "every trend_durability filter is disabled",
		})
	}

	if len(cfg.Themes) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_THEMES",
			Message: "no theme rules configured",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(sum, target float64) error {
	if math.Abs(sum-target) > weightEpsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

// validatePctRange checks a fraction is within [0, 1]
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

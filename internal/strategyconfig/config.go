package strategyconfig

// Config is the full screening configuration: how metrics are derived and
// how each strategy weighs and filters them.
// ⭐ SSOT: every scoring weight, bound and threshold lives here
type Config struct {
	Meta    Meta          `yaml:"meta" json:"meta"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Hyper   Hyper         `yaml:"hyperperformance" json:"hyperperformance"`
	Trend   Trend         `yaml:"trend_durability" json:"trend_durability"`
	Themes  []ThemeRule   `yaml:"themes" json:"themes"`
}

// Meta identifies the configuration in run reports
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// MetricsConfig holds metric derivation settings
type MetricsConfig struct {
	DefaultTaxRate      float64   `yaml:"default_tax_rate" json:"default_tax_rate"`
	InsiderLookbackDays int       `yaml:"insider_lookback_days" json:"insider_lookback_days"`
	TrendYears          int       `yaml:"trend_years" json:"trend_years"` // annual points used for trend signs
	MinStabilityPeriods int       `yaml:"min_stability_periods" json:"min_stability_periods"`
	Technical           Technical `yaml:"technical" json:"technical"`
}

// Technical holds long-horizon technical windows. Week counts are weekly
// bars; day counts are trading days.
type Technical struct {
	MAShortWeeks          int     `yaml:"ma_short_weeks" json:"ma_short_weeks"`
	MALongWeeks           int     `yaml:"ma_long_weeks" json:"ma_long_weeks"`
	SlopeWindowWeeks      int     `yaml:"slope_window_weeks" json:"slope_window_weeks"`
	SlopeMinPositiveWeeks int     `yaml:"slope_min_positive_weeks" json:"slope_min_positive_weeks"`
	RSWindowDays          int     `yaml:"rs_window_days" json:"rs_window_days"`
	RSHistoryDays         int     `yaml:"rs_history_days" json:"rs_history_days"`
	RSStrongPercentile    float64 `yaml:"rs_strong_percentile" json:"rs_strong_percentile"`
	ViolationRSPercentile float64 `yaml:"violation_rs_percentile" json:"violation_rs_percentile"`
	BenchmarkDrawdownMin  float64 `yaml:"benchmark_drawdown_min" json:"benchmark_drawdown_min"` // fraction, e.g. 0.05
	NearMAWeeks           int     `yaml:"near_ma_weeks" json:"near_ma_weeks"`
	NearMATolerance       float64 `yaml:"near_ma_tolerance" json:"near_ma_tolerance"`
	VolShortWeeks         int     `yaml:"vol_short_weeks" json:"vol_short_weeks"`
	VolLongWeeks          int     `yaml:"vol_long_weeks" json:"vol_long_weeks"`
	VolContractionRatio   float64 `yaml:"vol_contraction_ratio" json:"vol_contraction_ratio"`
	StairWindowWeeks      int     `yaml:"stair_window_weeks" json:"stair_window_weeks"`
	StairMinPositiveShare float64 `yaml:"stair_min_positive_share" json:"stair_min_positive_share"`
}

// Bounds is a normalisation range. Values are clamped into [Min, Max]
// before being mapped onto 0-100.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Tier awards Points when a value reaches Threshold. Tier lists are
// ordered by descending threshold and the first match wins.
type Tier struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Points    float64 `yaml:"points" json:"points"`
}

// Hyper configures the hyperperformance strategy
type Hyper struct {
	Weights      HyperWeights `yaml:"weights" json:"weights"`
	Bounds       HyperBounds  `yaml:"bounds" json:"bounds"`
	MinCoverage  float64      `yaml:"min_coverage" json:"min_coverage"`
	MinMarketCap float64      `yaml:"min_market_cap" json:"min_market_cap"` // USD, 0 disables
	MoatBonus    float64      `yaml:"moat_bonus" json:"moat_bonus"`         // multiplier = 1 + bonus*moat
	Moat         Moat         `yaml:"moat" json:"moat"`
}

// HyperWeights are the component weights (sum = 1.0)
type HyperWeights struct {
	RevenueCAGR  float64 `yaml:"revenue_cagr" json:"revenue_cagr"`
	EPSCAGR      float64 `yaml:"eps_cagr" json:"eps_cagr"`
	FCFMargin    float64 `yaml:"fcf_margin" json:"fcf_margin"`
	Returns      float64 `yaml:"returns" json:"returns"`     // ROIC/ROE
	Sentiment    float64 `yaml:"sentiment" json:"sentiment"` // insider/analyst/forward growth
	Acceleration float64 `yaml:"acceleration" json:"acceleration"`
}

// Sum returns the sum of all weights
func (w HyperWeights) Sum() float64 {
	return w.RevenueCAGR + w.EPSCAGR + w.FCFMargin + w.Returns + w.Sentiment + w.Acceleration
}

// HyperBounds are the normalisation ranges per component
type HyperBounds struct {
	RevenueCAGR   Bounds `yaml:"revenue_cagr" json:"revenue_cagr"`
	EPSCAGR       Bounds `yaml:"eps_cagr" json:"eps_cagr"`
	FCFMargin     Bounds `yaml:"fcf_margin" json:"fcf_margin"`
	Returns       Bounds `yaml:"returns" json:"returns"`
	ForwardGrowth Bounds `yaml:"forward_growth" json:"forward_growth"`
	Acceleration  Bounds `yaml:"acceleration" json:"acceleration"`
}

// Moat configures the 0-1 moat score
type Moat struct {
	ROIC                []Tier  `yaml:"roic" json:"roic"`
	StabilityFullStdDev float64 `yaml:"stability_full_stddev" json:"stability_full_stddev"`
	StabilityZeroStdDev float64 `yaml:"stability_zero_stddev" json:"stability_zero_stddev"`
	StabilityPoints     float64 `yaml:"stability_points" json:"stability_points"`
	AccelerationFull    float64 `yaml:"acceleration_full" json:"acceleration_full"`
	AccelerationPoints  float64 `yaml:"acceleration_points" json:"acceleration_points"`
	InsiderBuyRatio     []Tier  `yaml:"insider_buy_ratio" json:"insider_buy_ratio"`
	AnalystBuyRatio     []Tier  `yaml:"analyst_buy_ratio" json:"analyst_buy_ratio"`
}

// MaxPoints returns the largest moat score the configuration can award
func (m Moat) MaxPoints() float64 {
	top := func(tiers []Tier) float64 {
		best := 0.0
		for _, t := range tiers {
			if t.Points > best {
				best = t.Points
			}
		}
		return best
	}
	return top(m.ROIC) + m.StabilityPoints + m.AccelerationPoints + top(m.InsiderBuyRatio) + top(m.AnalystBuyRatio)
}

// Trend configures the trend durability strategy
type Trend struct {
	Filters          TrendFilters    `yaml:"filters" json:"filters"`
	RequireUSListing bool            `yaml:"require_us_listing" json:"require_us_listing"`
	Thresholds       TrendThresholds `yaml:"thresholds" json:"thresholds"`
	Weights          TrendWeights    `yaml:"weights" json:"weights"`
	MinCoverage      float64         `yaml:"min_coverage" json:"min_coverage"`
}

// TrendFilters toggles each qualification filter. A disabled filter is
// not evaluated and is reported as skipped.
type TrendFilters struct {
	Regime          bool `yaml:"regime" json:"regime"`
	RSPersistence   bool `yaml:"rs_persistence" json:"rs_persistence"`
	EarningsQuality bool `yaml:"earnings_quality" json:"earnings_quality"`
	TrendStructure  bool `yaml:"trend_structure" json:"trend_structure"`
	Valuation       bool `yaml:"valuation" json:"valuation"`
}

// TrendThresholds are the qualification thresholds
type TrendThresholds struct {
	MinRSPersistence float64 `yaml:"min_rs_persistence" json:"min_rs_persistence"`
	MinRevenueCAGR   float64 `yaml:"min_revenue_cagr" json:"min_revenue_cagr"`
	PEMultiplier     float64 `yaml:"pe_multiplier" json:"pe_multiplier"`
	NoGrowthPE       float64 `yaml:"no_growth_pe" json:"no_growth_pe"`           // justified P/E when growth <= 0
	UnknownGrowthPE  float64 `yaml:"unknown_growth_pe" json:"unknown_growth_pe"` // ceiling when growth is unknown
}

// TrendWeights are the sub-score weights (sum = 1.0)
type TrendWeights struct {
	TrendDurability        float64 `yaml:"trend_durability" json:"trend_durability"`
	RSPersistence          float64 `yaml:"rs_persistence" json:"rs_persistence"`
	FundamentalRunway      float64 `yaml:"fundamental_runway" json:"fundamental_runway"`
	InstitutionalStability float64 `yaml:"institutional_stability" json:"institutional_stability"`
}

// Sum returns the sum of all weights
func (w TrendWeights) Sum() float64 {
	return w.TrendDurability + w.RSPersistence + w.FundamentalRunway + w.InstitutionalStability
}

// ThemeRule tags a company with Name when a keyword appears as a whole word
// in its industry or name, or when its industry equals one of Sectors.
type ThemeRule struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Sectors  []string `yaml:"sectors" json:"sectors"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Meta: Meta{
			ConfigID: "default",
			Version:  "1",
		},
		Metrics: MetricsConfig{
			DefaultTaxRate:      0.21,
			InsiderLookbackDays: 365,
			TrendYears:          5,
			MinStabilityPeriods: 4,
			Technical: Technical{
				MAShortWeeks:          40,
				MALongWeeks:           80,
				SlopeWindowWeeks:      26,
				SlopeMinPositiveWeeks: 20,
				RSWindowDays:          252,
				RSHistoryDays:         378,
				RSStrongPercentile:    85,
				ViolationRSPercentile: 70,
				BenchmarkDrawdownMin:  0.05,
				NearMAWeeks:           13,
				NearMATolerance:       0.05,
				VolShortWeeks:         20,
				VolLongWeeks:          52,
				VolContractionRatio:   0.8,
				StairWindowWeeks:      52,
				StairMinPositiveShare: 0.6,
			},
		},
		Hyper: Hyper{
			Weights: HyperWeights{
				RevenueCAGR:  0.30,
				EPSCAGR:      0.30,
				FCFMargin:    0.15,
				Returns:      0.10,
				Sentiment:    0.10,
				Acceleration: 0.05,
			},
			Bounds: HyperBounds{
				RevenueCAGR:   Bounds{0, 0.50},
				EPSCAGR:       Bounds{0, 0.50},
				FCFMargin:     Bounds{-0.10, 0.30},
				Returns:       Bounds{0, 0.30},
				ForwardGrowth: Bounds{0, 0.50},
				Acceleration:  Bounds{-0.10, 0.10},
			},
			MinCoverage: 0.5,
			MoatBonus:   0.2,
			Moat: Moat{
				ROIC:                []Tier{{0.15, 0.30}, {0.10, 0.15}},
				StabilityFullStdDev: 0.05,
				StabilityZeroStdDev: 0.10,
				StabilityPoints:     0.25,
				AccelerationFull:    0.10,
				AccelerationPoints:  0.20,
				InsiderBuyRatio:     []Tier{{0.70, 0.15}, {0.50, 0.10}},
				AnalystBuyRatio:     []Tier{{0.70, 0.10}, {0.50, 0.05}},
			},
		},
		Trend: Trend{
			Filters: TrendFilters{
				Regime:          true,
				RSPersistence:   true,
				EarningsQuality: true,
				TrendStructure:  true,
				Valuation:       true,
			},
			RequireUSListing: true,
			Thresholds: TrendThresholds{
				MinRSPersistence: 0.70,
				MinRevenueCAGR:   0.15,
				PEMultiplier:     2,
				NoGrowthPE:       15,
				UnknownGrowthPE:  100,
			},
			Weights: TrendWeights{
				TrendDurability:        0.30,
				RSPersistence:          0.30,
				FundamentalRunway:      0.25,
				InstitutionalStability: 0.15,
			},
			MinCoverage: 0.5,
		},
		Themes: []ThemeRule{
			{
				Name:     "AI",
				Keywords: []string{"artificial intelligence", "machine learning", "ai", "neural", "deep learning"},
			},
			{
				Name:     "Semiconductors",
				Keywords: []string{"semiconductor", "semiconductors", "chip", "microchip", "processor", "gpu", "cpu"},
				Sectors:  []string{"Semiconductors"},
			},
			{
				Name:     "Energy Infrastructure",
				Keywords: []string{"energy", "power", "electricity", "renewable", "solar", "wind", "battery"},
				Sectors:  []string{"Utilities"},
			},
		},
	}
}

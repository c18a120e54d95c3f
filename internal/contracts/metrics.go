package contracts

import "time"

// DerivedMetrics is the per-symbol metric set computed from one
// RawFinancialRecord. Ratios are fractions (0.45 = 45%), RS percentiles are
// 0-100. Every field is independently optional.
// ⭐ SSOT: MetricsEngine → ScoringEngine
type DerivedMetrics struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name,omitempty"`
	AsOf   time.Time `json:"as_of"`

	// Market snapshot
	Price     Float `json:"price"`
	MarketCap Float `json:"market_cap"`
	USListed  Flag  `json:"us_listed"`

	// Growth
	RevenueCAGR3Y    Float `json:"revenue_cagr_3yr"`
	RevenueCAGR5Y    Float `json:"revenue_cagr_5yr"`
	EPSCAGR3Y        Float `json:"eps_cagr_3yr"`
	EPSCAGR5Y        Float `json:"eps_cagr_5yr"`
	FCFCAGR3Y        Float `json:"fcf_cagr_3yr"`
	QoQAcceleration  Float `json:"qoq_acceleration"`
	ForwardEPSGrowth Float `json:"forward_eps_growth"`

	// Profitability
	FCFMargin       Float `json:"fcf_margin"`
	OperatingMargin Float `json:"operating_margin"`
	GrossMargin     Float `json:"gross_margin"`
	ROIC            Float `json:"roic"`
	ROE             Float `json:"roe"`
	MarginStability Float `json:"margin_stability"` // std-dev of annual operating margins

	// Quality trends
	MarginExpansion     Flag `json:"margin_expansion"`
	MarginTrendPositive Flag `json:"margin_trend_positive"`
	ROICTrendPositive   Flag `json:"roic_trend_positive"`
	GrossMarginTrend    Flag `json:"gross_margin_trend_positive"`

	// Leverage and valuation
	DebtToEBITDA Float `json:"debt_to_ebitda"`
	PERatio      Float `json:"pe_ratio"`

	// Sentiment
	InsiderBuyRatio        Float `json:"insider_buy_ratio"`
	InsiderNetShares       Float `json:"insider_net_shares"`
	AnalystBuyRatio        Float `json:"analyst_buy_ratio"`
	InstitutionalStability Float `json:"institutional_stability"`

	Themes []string `json:"themes"`

	// Long horizon technicals
	MA40W                 Float     `json:"ma_40w"`
	MA80W                 Float     `json:"ma_80w"`
	MA80SlopePositiveWeek Int       `json:"ma80_slope_positive_weeks"`
	MA80SlopeWindow       int       `json:"ma80_slope_window"`
	RegimeAligned         Flag      `json:"regime_aligned"`
	RSPercentile          Float     `json:"rs_percentile"`
	RSPercentileHistory   []float64 `json:"rs_percentile_history,omitempty"`
	RSPersistence         Float     `json:"rs_persistence"`
	RSResilient           Flag      `json:"rs_resilient"`
	MaxDrawdown           Float     `json:"max_drawdown"`
	BenchmarkMaxDrawdown  Float     `json:"benchmark_max_drawdown"`
	NearRisingMA          Flag      `json:"near_rising_ma"`
	VolContracting        Flag      `json:"vol_contracting"`
	StairStep             Flag      `json:"stair_step"`
	StructuralViolation   Flag      `json:"structural_violation"`
}

// BestRevenueCAGR prefers the 5-year rate and falls back to 3-year
func (m *DerivedMetrics) BestRevenueCAGR() Float {
	return FirstOK(m.RevenueCAGR5Y, m.RevenueCAGR3Y)
}

// BestEPSCAGR prefers the 5-year rate and falls back to 3-year
func (m *DerivedMetrics) BestEPSCAGR() Float {
	return FirstOK(m.EPSCAGR5Y, m.EPSCAGR3Y)
}

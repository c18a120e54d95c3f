package scoring

import (
	"fmt"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Strategy names
const (
	NameHyper = "hyperperformance"
	NameTrend = "trend"
)

// Hyperperformance sub-score names
const (
	SubRevenueCAGR  = "revenue_cagr"
	SubEPSCAGR      = "eps_cagr"
	SubFCFMargin    = "fcf_margin"
	SubReturns      = "returns"
	SubSentiment    = "sentiment"
	SubAcceleration = "acceleration"
)

// HyperStrategy scores short-horizon growth: normalised growth,
// profitability and sentiment inputs combined by fixed weights, then
// boosted by a moat multiplier.
type HyperStrategy struct {
	cfg    strategyconfig.Hyper
	logger *logger.Logger
}

// NewHyperStrategy creates the hyperperformance strategy
func NewHyperStrategy(cfg strategyconfig.Hyper, log *logger.Logger) *HyperStrategy {
	return &HyperStrategy{
		cfg:    cfg,
		logger: log.WithField("module", "scoring").WithField("strategy", NameHyper),
	}
}

var _ contracts.Strategy = (*HyperStrategy)(nil)

// Name implements contracts.Strategy
func (s *HyperStrategy) Name() string {
	return NameHyper
}

// Score implements contracts.Strategy
func (s *HyperStrategy) Score(m *contracts.DerivedMetrics) contracts.Outcome {
	if floor := s.cfg.MinMarketCap; floor > 0 {
		if mc, ok := m.MarketCap.Get(); ok && mc < floor {
			return s.disqualify(m, "market_cap", contracts.ReasonMarketCapBelowMinimum,
				fmt.Sprintf("market cap %.0f below %.0f", mc, floor))
		}
	}

	result := combine(s.components(m))
	if result.coverage <= s.cfg.MinCoverage {
		s.logger.WithFields(map[string]interface{}{
			"symbol":   m.Symbol,
			"coverage": result.coverage,
		}).Debug("Insufficient data")
		return s.disqualify(m, "coverage", contracts.ReasonInsufficientData,
			fmt.Sprintf("coverage %.2f not above %.2f", result.coverage, s.cfg.MinCoverage))
	}

	moat := s.Moat(m)
	composite := clamp(result.score*(1+s.cfg.MoatBonus*moat), 0, 100)

	return contracts.Outcome{Candidate: &contracts.ScoredCandidate{
		Symbol:         m.Symbol,
		Name:           m.Name,
		Strategy:       NameHyper,
		CompositeScore: round(composite),
		SubScores:      result.subScores,
		MoatScore:      contracts.Some(round(moat)),
		Coverage:       round(result.coverage),
		Violation:      m.StructuralViolation.Or(false),
		Themes:         themes(m),
		Price:          m.Price,
		MarketCap:      m.MarketCap,
		AsOf:           m.AsOf,
	}}
}

// components returns the weighted inputs, each normalised to 0-100
func (s *HyperStrategy) components(m *contracts.DerivedMetrics) []component {
	w, b := s.cfg.Weights, s.cfg.Bounds
	unit := strategyconfig.Bounds{Min: 0, Max: 1}

	returns := mean(normalized(m.ROIC, b.Returns), normalized(m.ROE, b.Returns))
	sentiment := mean(
		normalized(m.InsiderBuyRatio, unit),
		normalized(m.AnalystBuyRatio, unit),
		normalized(m.ForwardEPSGrowth, b.ForwardGrowth),
	)

	return []component{
		{SubRevenueCAGR, w.RevenueCAGR, normalized(m.BestRevenueCAGR(), b.RevenueCAGR)},
		{SubEPSCAGR, w.EPSCAGR, normalized(m.BestEPSCAGR(), b.EPSCAGR)},
		{SubFCFMargin, w.FCFMargin, normalized(m.FCFMargin, b.FCFMargin)},
		{SubReturns, w.Returns, returns},
		{SubSentiment, w.Sentiment, sentiment},
		{SubAcceleration, w.Acceleration, normalized(m.QoQAcceleration, b.Acceleration)},
	}
}

// Moat scores durable advantage on 0-1 from high ROIC, stable margins,
// revenue acceleration, insider buying and analyst support. Missing inputs
// add nothing.
func (s *HyperStrategy) Moat(m *contracts.DerivedMetrics) float64 {
	cfg := s.cfg.Moat
	var points float64

	if roic, ok := m.ROIC.Get(); ok {
		points += tierPoints(roic, cfg.ROIC)
	}

	if sd, ok := m.MarginStability.Get(); ok {
		switch {
		case sd <= cfg.StabilityFullStdDev:
			points += cfg.StabilityPoints
		case sd < cfg.StabilityZeroStdDev:
			share := (cfg.StabilityZeroStdDev - sd) / (cfg.StabilityZeroStdDev - cfg.StabilityFullStdDev)
			points += cfg.StabilityPoints * share
		}
	}

	if acc, ok := m.QoQAcceleration.Get(); ok && acc > 0 && cfg.AccelerationFull > 0 {
		points += cfg.AccelerationPoints * clamp(acc/cfg.AccelerationFull, 0, 1)
	}

	if r, ok := m.InsiderBuyRatio.Get(); ok {
		points += tierPoints(r, cfg.InsiderBuyRatio)
	}
	if r, ok := m.AnalystBuyRatio.Get(); ok {
		points += tierPoints(r, cfg.AnalystBuyRatio)
	}

	return clamp(points, 0, 1)
}

func (s *HyperStrategy) disqualify(m *contracts.DerivedMetrics, filter string, reason contracts.ReasonCode, detail string) contracts.Outcome {
	return contracts.Outcome{Disqualification: &contracts.Disqualification{
		Symbol:   m.Symbol,
		Strategy: NameHyper,
		Filter:   filter,
		Reason:   reason,
		Detail:   detail,
	}}
}

// themes never returns nil so reports always carry a list
func themes(m *contracts.DerivedMetrics) []string {
	if m.Themes == nil {
		return []string{}
	}
	return m.Themes
}

package scoring

import (
	"fmt"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Trend durability filter and sub-score names
const (
	FilterRegime          = "regime"
	FilterRSPersistence   = "rs_persistence"
	FilterEarningsQuality = "earnings_quality"
	FilterTrendStructure  = "trend_structure"
	FilterValuation       = "valuation"

	SubTrendDurability        = "trend_durability"
	SubRSPersistence          = "rs_persistence"
	SubFundamentalRunway      = "fundamental_runway"
	SubInstitutionalStability = "institutional_stability"
)

// filterResult is the verdict of one qualification filter
type filterResult struct {
	pass   bool
	reason contracts.ReasonCode
	detail string
}

func pass() filterResult {
	return filterResult{pass: true}
}

func fail(reason contracts.ReasonCode, format string, args ...interface{}) filterResult {
	return filterResult{reason: reason, detail: fmt.Sprintf(format, args...)}
}

// trendFilter is one toggleable qualification step
type trendFilter struct {
	name    string
	enabled func(strategyconfig.TrendFilters) bool
	check   func(s *TrendStrategy, m *contracts.DerivedMetrics) filterResult
}

// trendFilters run in this order; the first failure disqualifies
var trendFilters = []trendFilter{
	{FilterRegime, func(f strategyconfig.TrendFilters) bool { return f.Regime }, (*TrendStrategy).checkRegime},
	{FilterRSPersistence, func(f strategyconfig.TrendFilters) bool { return f.RSPersistence }, (*TrendStrategy).checkRS},
	{FilterEarningsQuality, func(f strategyconfig.TrendFilters) bool { return f.EarningsQuality }, (*TrendStrategy).checkEarningsQuality},
	{FilterTrendStructure, func(f strategyconfig.TrendFilters) bool { return f.TrendStructure }, (*TrendStrategy).checkTrendStructure},
	{FilterValuation, func(f strategyconfig.TrendFilters) bool { return f.Valuation }, (*TrendStrategy).checkValuation},
}

// TrendStrategy scores long-horizon trend durability behind a chain of
// toggleable qualification filters
type TrendStrategy struct {
	cfg    strategyconfig.Trend
	tech   strategyconfig.Technical
	logger *logger.Logger
}

// NewTrendStrategy creates the trend durability strategy
func NewTrendStrategy(cfg strategyconfig.Trend, tech strategyconfig.Technical, log *logger.Logger) *TrendStrategy {
	return &TrendStrategy{
		cfg:    cfg,
		tech:   tech,
		logger: log.WithField("module", "scoring").WithField("strategy", NameTrend),
	}
}

var _ contracts.Strategy = (*TrendStrategy)(nil)

// Name implements contracts.Strategy
func (s *TrendStrategy) Name() string {
	return NameTrend
}

// Score implements contracts.Strategy
func (s *TrendStrategy) Score(m *contracts.DerivedMetrics) contracts.Outcome {
	if s.cfg.RequireUSListing && !m.USListed.Or(false) {
		return s.disqualify(m, "listing", fail(contracts.ReasonNotUSListed, "not a plain US listing"))
	}

	statuses := make(map[string]contracts.FilterStatus, len(trendFilters))
	for _, f := range trendFilters {
		if !f.enabled(s.cfg.Filters) {
			statuses[f.name] = contracts.FilterSkipped
			continue
		}
		if r := f.check(s, m); !r.pass {
			s.logger.WithFields(map[string]interface{}{
				"symbol": m.Symbol,
				"filter": f.name,
				"reason": r.reason,
			}).Debug("Filter failed")
			return s.disqualify(m, f.name, r)
		}
		statuses[f.name] = contracts.FilterPassed
	}

	w := s.cfg.Weights
	result := combine([]component{
		{SubTrendDurability, w.TrendDurability, s.trendDurabilityScore(m)},
		{SubRSPersistence, w.RSPersistence, s.rsScore(m)},
		{SubFundamentalRunway, w.FundamentalRunway, s.runwayScore(m)},
		{SubInstitutionalStability, w.InstitutionalStability, s.institutionalScore(m)},
	})
	if result.coverage <= s.cfg.MinCoverage {
		return s.disqualify(m, "coverage", fail(contracts.ReasonInsufficientData,
			"coverage %.2f not above %.2f", result.coverage, s.cfg.MinCoverage))
	}

	return contracts.Outcome{Candidate: &contracts.ScoredCandidate{
		Symbol:         m.Symbol,
		Name:           m.Name,
		Strategy:       NameTrend,
		CompositeScore: round(clamp(result.score, 0, 100)),
		SubScores:      result.subScores,
		Coverage:       round(result.coverage),
		Filters:        statuses,
		Violation:      m.StructuralViolation.Or(false),
		Themes:         themes(m),
		Price:          m.Price,
		MarketCap:      m.MarketCap,
		AsOf:           m.AsOf,
	}}
}

func (s *TrendStrategy) checkRegime(m *contracts.DerivedMetrics) filterResult {
	aligned, ok := m.RegimeAligned.Get()
	if !ok {
		return fail(contracts.ReasonInsufficientPriceHistory, "moving averages unavailable")
	}
	if !aligned {
		return fail(contracts.ReasonRegimeMisaligned, "price %.2f, 40w %.2f, 80w %.2f, rising weeks %d/%d",
			m.Price.Or(0), m.MA40W.Or(0), m.MA80W.Or(0), m.MA80SlopePositiveWeek.Or(0), m.MA80SlopeWindow)
	}
	return pass()
}

func (s *TrendStrategy) checkRS(m *contracts.DerivedMetrics) filterResult {
	persistence, ok := m.RSPersistence.Get()
	resilient, rok := m.RSResilient.Get()
	if !ok || !rok {
		return fail(contracts.ReasonInsufficientPriceHistory, "relative strength history unavailable")
	}
	if persistence < s.cfg.Thresholds.MinRSPersistence || !resilient {
		return fail(contracts.ReasonRSNotPersistent, "persistence %.2f, resilient %t", persistence, resilient)
	}
	return pass()
}

func (s *TrendStrategy) checkEarningsQuality(m *contracts.DerivedMetrics) filterResult {
	growth := m.BestRevenueCAGR().Or(-1) >= s.cfg.Thresholds.MinRevenueCAGR || m.MarginExpansion.Or(false)
	efficiency := m.ROICTrendPositive.Or(false) || m.MarginTrendPositive.Or(false)
	if !growth || !efficiency {
		return fail(contracts.ReasonEarningsQuality, "growth %t, efficiency %t", growth, efficiency)
	}
	return pass()
}

func (s *TrendStrategy) checkTrendStructure(m *contracts.DerivedMetrics) filterResult {
	stair := m.StairStep.Or(false)
	base := m.VolContracting.Or(false) && m.NearRisingMA.Or(false)
	if !stair && !base {
		return fail(contracts.ReasonTrendStructure, "no stair-step and no tight base near a rising average")
	}
	return pass()
}

// checkValuation rejects only multiples that growth cannot justify. The
// justified P/E is twice the growth rate in percent (FCF CAGR, else revenue
// CAGR), or a fixed multiple when growth is not positive.
func (s *TrendStrategy) checkValuation(m *contracts.DerivedMetrics) filterResult {
	th := s.cfg.Thresholds
	pe, ok := m.PERatio.Get()
	if !ok || pe <= 0 {
		return pass()
	}

	growth, ok := contracts.FirstOK(m.FCFCAGR3Y, m.BestRevenueCAGR()).Get()
	if !ok {
		if pe > th.UnknownGrowthPE {
			return fail(contracts.ReasonValuation, "P/E %.1f above %.1f with unknown growth", pe, th.UnknownGrowthPE)
		}
		return pass()
	}

	justified := th.NoGrowthPE
	if growth > 0 {
		justified = 2 * growth * 100
	}
	if ceiling := justified * th.PEMultiplier; pe > ceiling {
		return fail(contracts.ReasonValuation, "P/E %.1f above %.1f (growth %.1f%%)", pe, ceiling, growth*100)
	}
	return pass()
}

// trendDurabilityScore: regime 30, rising-slope share 30, stair-step 20,
// volatility contraction 10, no structural violation 10
func (s *TrendStrategy) trendDurabilityScore(m *contracts.DerivedMetrics) contracts.Float {
	aligned, ok := m.RegimeAligned.Get()
	weeks, wok := m.MA80SlopePositiveWeek.Get()
	if !ok || !wok || m.MA80SlopeWindow <= 0 {
		return contracts.None[float64]()
	}

	var score float64
	if aligned {
		score += 30
	}
	score += 30 * float64(weeks) / float64(m.MA80SlopeWindow)
	if m.StairStep.Or(false) {
		score += 20
	}
	if m.VolContracting.Or(false) {
		score += 10
	}
	if !m.StructuralViolation.Or(false) {
		score += 10
	}
	return contracts.Some(clamp(score, 0, 100))
}

// rsScore: current RS tier (40/30/20), persistence share 40, resilience 20
func (s *TrendStrategy) rsScore(m *contracts.DerivedMetrics) contracts.Float {
	rs, ok := m.RSPercentile.Get()
	persistence, pok := m.RSPersistence.Get()
	if !ok || !pok {
		return contracts.None[float64]()
	}

	var score float64
	switch {
	case rs >= 90:
		score += 40
	case rs >= s.tech.RSStrongPercentile:
		score += 30
	case rs >= 75:
		score += 20
	}
	score += 40 * persistence
	if m.RSResilient.Or(false) {
		score += 20
	}
	return contracts.Some(clamp(score, 0, 100))
}

// runwayScore: revenue quality and capital efficiency, 50 each
func (s *TrendStrategy) runwayScore(m *contracts.DerivedMetrics) contracts.Float {
	cagr := m.BestRevenueCAGR()
	if !cagr.OK() && !m.MarginExpansion.OK() && !m.MarginTrendPositive.OK() &&
		!m.ROICTrendPositive.OK() && !m.GrossMarginTrend.OK() {
		return contracts.None[float64]()
	}

	var quality float64
	if cagr.Or(-1) >= s.cfg.Thresholds.MinRevenueCAGR {
		quality += 0.5
	}
	if m.MarginExpansion.Or(false) {
		quality += 0.3
	}
	if m.MarginTrendPositive.Or(false) {
		quality += 0.2
	}

	var efficiency float64
	if m.ROICTrendPositive.Or(false) {
		efficiency += 0.5
	}
	if m.GrossMarginTrend.Or(false) {
		efficiency += 0.5
	}

	return contracts.Some(clamp(quality*50+efficiency*50, 0, 100))
}

func (s *TrendStrategy) institutionalScore(m *contracts.DerivedMetrics) contracts.Float {
	v, ok := m.InstitutionalStability.Get()
	if !ok {
		return contracts.None[float64]()
	}
	return contracts.Some(clamp(v*100, 0, 100))
}

func (s *TrendStrategy) disqualify(m *contracts.DerivedMetrics, filter string, r filterResult) contracts.Outcome {
	return contracts.Outcome{Disqualification: &contracts.Disqualification{
		Symbol:   m.Symbol,
		Strategy: NameTrend,
		Filter:   filter,
		Reason:   r.reason,
		Detail:   r.detail,
	}}
}

// Package metrics derives per-symbol metrics from raw provider records.
// Computation is pure: no I/O, and any missing input leaves the dependent
// metrics unavailable instead of failing the symbol.
package metrics

import (
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Engine computes DerivedMetrics
// ⭐ SSOT: metric derivation happens only here
type Engine struct {
	cfg    strategyconfig.MetricsConfig
	themes *ThemeClassifier
	logger *logger.Logger
}

// NewEngine creates a metrics engine
func NewEngine(cfg *strategyconfig.Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg.Metrics,
		themes: NewThemeClassifier(cfg.Themes),
		logger: log.WithField("module", "metrics"),
	}
}

var _ contracts.MetricsComputer = (*Engine)(nil)

// Compute derives every metric it can from record. benchmark holds the
// benchmark's daily bars for relative strength and may be empty.
func (e *Engine) Compute(record *contracts.RawFinancialRecord, benchmark []contracts.PricePoint) contracts.DerivedMetrics {
	m := contracts.DerivedMetrics{
		Symbol: record.Symbol,
		AsOf:   record.AsOf,
		Themes: []string{},
	}

	e.snapshot(&m, record)

	annual := buildAnnual(record, e.cfg.DefaultTaxRate)
	e.growth(&m, annual, record)
	e.profitability(&m, annual, record)
	e.sentiment(&m, record)
	e.technicals(&m, record.Prices, benchmark)

	e.logger.WithFields(map[string]interface{}{
		"symbol":        m.Symbol,
		"annual_years":  len(annual.revenue.years()),
		"price_bars":    len(record.Prices),
		"revenue_cagr":  m.BestRevenueCAGR().OK(),
		"eps_cagr":      m.BestEPSCAGR().OK(),
		"rs_percentile": m.RSPercentile.OK(),
		"unavailable":   len(record.Unavailable),
	}).Debug("Computed metrics")

	return m
}

// snapshot fills identity, market data and themes
func (e *Engine) snapshot(m *contracts.DerivedMetrics, record *contracts.RawFinancialRecord) {
	if p := record.Profile; p != nil {
		m.Name = p.Name
		m.MarketCap = p.MarketCap
		m.USListed = contracts.Some(IsUSListed(record.Symbol, p))
		m.Themes = e.themes.Classify(p.Industry, p.Name)
	}

	switch {
	case record.Quote != nil:
		m.Price = contracts.Some(record.Quote.Price)
	case len(record.Prices) > 0:
		m.Price = contracts.Some(record.Prices[len(record.Prices)-1].Close)
	}
}

// growth fills CAGRs, acceleration and forward growth
func (e *Engine) growth(m *contracts.DerivedMetrics, a annualData, record *contracts.RawFinancialRecord) {
	revenue := a.revenue.values()
	eps := a.eps.values()

	m.RevenueCAGR3Y = CAGR(revenue, 3)
	m.RevenueCAGR5Y = CAGR(revenue, 5)
	m.EPSCAGR3Y = CAGR(eps, 3)
	m.EPSCAGR5Y = CAGR(eps, 5)
	m.FCFCAGR3Y = CAGR(a.fcf.values(), 3)

	m.QoQAcceleration = QoQAcceleration(quarterlyRevenue(record))
	m.ForwardEPSGrowth = ForwardEPSGrowth(a.eps, record.EPSEstimates)
}

// sentiment fills insider, analyst and holder-stability metrics
func (e *Engine) sentiment(m *contracts.DerivedMetrics, record *contracts.RawFinancialRecord) {
	lookback := time.Duration(e.cfg.InsiderLookbackDays) * 24 * time.Hour
	m.InsiderBuyRatio, m.InsiderNetShares = InsiderActivity(record.Insider, record.AsOf, lookback)
	m.AnalystBuyRatio = AnalystBuyRatio(record.Recommendations)
	m.InstitutionalStability = InstitutionalStability(record.Recommendations, e.cfg.MinStabilityPeriods)
}

// US listing venues as the provider names them
var usExchanges = []string{"NASDAQ", "NEW YORK STOCK EXCHANGE", "NYSE", "CBOE", "BATS"}

// IsUSListed reports a plain US listing: a US venue, USD quotes and a
// ticker of at most five letters without a class suffix.
func IsUSListed(symbol string, p *contracts.CompanyProfile) bool {
	if p == nil {
		return false
	}
	if len(symbol) == 0 || len(symbol) > 5 || strings.ContainsAny(symbol, ".-") {
		return false
	}
	if !strings.EqualFold(p.Currency, "USD") {
		return false
	}

	exchange := strings.ToUpper(p.Exchange)
	for _, venue := range usExchanges {
		if strings.Contains(exchange, venue) {
			return true
		}
	}
	return false
}

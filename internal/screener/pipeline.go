// Package screener wires data acquisition, metric derivation and scoring
// into screening runs.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// ErrNoData is returned when no fragment at all could be fetched for a symbol
var ErrNoData = errors.New("no data")

// DataSource fetches per-symbol records and benchmark prices
type DataSource interface {
	contracts.RecordSource
	FetchPrices(ctx context.Context, symbol string) ([]contracts.PricePoint, error)
}

// Pipeline turns a symbol into metrics and metrics into an outcome
// ⭐ SSOT: Orchestrator → core entry points
type Pipeline struct {
	source          DataSource
	engine          contracts.MetricsComputer
	benchmarkSymbol string
	logger          *logger.Logger
}

// NewPipeline creates a pipeline. benchmarkSymbol may be empty to disable
// relative strength.
func NewPipeline(source DataSource, engine contracts.MetricsComputer, benchmarkSymbol string, log *logger.Logger) *Pipeline {
	return &Pipeline{
		source:          source,
		engine:          engine,
		benchmarkSymbol: strings.ToUpper(benchmarkSymbol),
		logger:          log.WithField("module", "screener"),
	}
}

// Benchmark fetches the benchmark's daily bars. A failed fetch is logged
// and returns nil, leaving relative strength unavailable.
func (p *Pipeline) Benchmark(ctx context.Context) []contracts.PricePoint {
	if p.benchmarkSymbol == "" {
		return nil
	}

	prices, err := p.source.FetchPrices(ctx, p.benchmarkSymbol)
	if err != nil {
		p.logger.WithError(err).WithField("benchmark", p.benchmarkSymbol).
			Warn("Benchmark unavailable, relative strength disabled")
		return nil
	}

	p.logger.WithFields(map[string]interface{}{
		"benchmark": p.benchmarkSymbol,
		"bars":      len(prices),
	}).Info("Benchmark loaded")
	return prices
}

// Fetch returns the raw record for symbol
func (p *Pipeline) Fetch(ctx context.Context, symbol string) *contracts.RawFinancialRecord {
	return p.source.FetchRecord(ctx, symbol)
}

// Compute derives metrics from an already fetched record
func (p *Pipeline) Compute(record *contracts.RawFinancialRecord, benchmark []contracts.PricePoint) contracts.DerivedMetrics {
	return p.engine.Compute(record, benchmark)
}

// GetMetrics fetches symbol and the benchmark and derives the symbol's
// metrics. It fails only with ErrNoData when nothing at all could be
// fetched.
func (p *Pipeline) GetMetrics(ctx context.Context, symbol string) (contracts.DerivedMetrics, error) {
	record, err := p.fetchRecord(ctx, symbol)
	if err != nil {
		return contracts.DerivedMetrics{Symbol: record.Symbol, AsOf: record.AsOf, Themes: []string{}}, err
	}
	return p.Compute(record, p.Benchmark(ctx)), nil
}

// MetricsWith is GetMetrics against a benchmark already loaded for a run
func (p *Pipeline) MetricsWith(ctx context.Context, symbol string, benchmark []contracts.PricePoint) (contracts.DerivedMetrics, error) {
	record, err := p.fetchRecord(ctx, symbol)
	if err != nil {
		return contracts.DerivedMetrics{Symbol: record.Symbol, AsOf: record.AsOf, Themes: []string{}}, err
	}
	return p.Compute(record, benchmark), nil
}

func (p *Pipeline) fetchRecord(ctx context.Context, symbol string) (*contracts.RawFinancialRecord, error) {
	record := p.Fetch(ctx, symbol)
	if record.Empty() {
		return record, fmt.Errorf("%s: %w (%s)", record.Symbol, ErrNoData, UnavailableSummary(record))
	}
	return record, nil
}

// Score applies strategy to metrics
func (p *Pipeline) Score(m contracts.DerivedMetrics, strategy contracts.Strategy) contracts.Outcome {
	return strategy.Score(&m)
}

// UnavailableSummary lists missing fragments as "type=reason", sorted
func UnavailableSummary(record *contracts.RawFinancialRecord) string {
	parts := make([]string, 0, len(record.Unavailable))
	for dt, reason := range record.Unavailable {
		parts = append(parts, fmt.Sprintf("%s=%s", dt, reason))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

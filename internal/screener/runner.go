package screener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// Processing outcomes for metrics and logs
const (
	OutcomeQualified    = "qualified"
	OutcomeDisqualified = "disqualified"
	OutcomeFailed       = "failed"
)

// Result is one symbol's screening result
type Result struct {
	RunID   string
	Symbol  string
	Metrics *contracts.DerivedMetrics // nil when nothing was fetched
	Outcome contracts.Outcome
	Elapsed time.Duration
}

// Config holds runner settings
type Config struct {
	Workers       int           // concurrent symbols (default 4)
	SymbolTimeout time.Duration // per-symbol deadline (default 2m)
}

// Runner screens a symbol list with a bounded worker pool
type Runner struct {
	pipeline *Pipeline
	strategy contracts.Strategy
	cfg      Config
	clock    clock.Clock
	metrics  *monitoring.Registry
	logger   *logger.Logger
}

// NewRunner creates a runner for one strategy
func NewRunner(p *Pipeline, strategy contracts.Strategy, cfg Config, clk clock.Clock, metrics *monitoring.Registry, log *logger.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SymbolTimeout <= 0 {
		cfg.SymbolTimeout = 2 * time.Minute
	}
	return &Runner{
		pipeline: p,
		strategy: strategy,
		cfg:      cfg,
		clock:    clk,
		metrics:  metrics,
		logger:   log.WithField("module", "runner").WithField("strategy", strategy.Name()),
	}
}

// Strategy returns the strategy the runner scores with
func (r *Runner) Strategy() contracts.Strategy {
	return r.strategy
}

// Run screens symbols under a fresh run ID and streams results as they
// finish. The channel is closed when every fed symbol is done. Cancelling
// ctx stops feeding new symbols; symbols already in flight still report.
func (r *Runner) Run(ctx context.Context, symbols []string) <-chan Result {
	return r.RunWithID(ctx, uuid.NewString(), symbols)
}

// RunWithID is Run with a caller-chosen run ID
func (r *Runner) RunWithID(ctx context.Context, runID string, symbols []string) <-chan Result {
	results := make(chan Result, r.cfg.Workers)
	jobs := make(chan string)
	started := r.clock.Now()

	log := r.logger.WithField("run_id", runID)
	log.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"workers": r.cfg.Workers,
	}).Info("Screening started")

	// Every symbol of the run sees the same benchmark snapshot
	benchmark := r.pipeline.Benchmark(ctx)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for symbol := range jobs {
				res := r.screen(ctx, runID, symbol, benchmark)
				log.WithFields(map[string]interface{}{
					"worker":  workerID,
					"symbol":  symbol,
					"outcome": outcomeLabel(res.Outcome),
					"elapsed": res.Elapsed.String(),
				}).Debug("Symbol screened")
				results <- res
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, symbol := range symbols {
			if ctx.Err() == nil {
				select {
				case <-ctx.Done():
				case jobs <- symbol:
					continue
				}
			}
			log.WithField("reason", ctx.Err().Error()).Warn("Screening cancelled, no new symbols fed")
			return
		}
	}()

	go func() {
		wg.Wait()
		elapsed := r.clock.Now().Sub(started)
		r.metrics.ObserveRun(r.strategy.Name(), elapsed)
		log.WithField("duration", elapsed.String()).Info("Screening finished")
		close(results)
	}()

	return results
}

// screen processes one symbol under its own deadline
func (r *Runner) screen(ctx context.Context, runID, symbol string, benchmark []contracts.PricePoint) Result {
	start := r.clock.Now()
	symCtx, cancel := context.WithTimeout(ctx, r.cfg.SymbolTimeout)
	defer cancel()

	res := Result{RunID: runID, Symbol: symbol}

	m, err := r.pipeline.MetricsWith(symCtx, symbol, benchmark)
	switch {
	case ctx.Err() != nil:
		// Fragments cut short by the cancellation would score as missing data
		res.Outcome = r.disqualify(symbol, contracts.ReasonCancelled, "run cancelled")
	case timedOut(ctx, symCtx):
		res.Outcome = r.disqualify(symbol, contracts.ReasonTimeout, "symbol deadline exceeded")
	case errors.Is(err, ErrNoData):
		r.logger.WithError(err).WithField("symbol", symbol).Warn("No data for symbol")
		res.Outcome = r.disqualify(symbol, contracts.ReasonNoData, err.Error())
	default:
		res.Metrics = &m
		res.Outcome = r.strategy.Score(&m)
	}

	res.Elapsed = r.clock.Now().Sub(start)
	r.metrics.SymbolProcessed(r.strategy.Name(), outcomeLabel(res.Outcome))
	return res
}

// timedOut reports a symbol deadline that fired while the run was live
func timedOut(parent, symCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(symCtx.Err(), context.DeadlineExceeded)
}

func (r *Runner) disqualify(symbol string, reason contracts.ReasonCode, detail string) contracts.Outcome {
	return contracts.Outcome{Disqualification: &contracts.Disqualification{
		Symbol:   symbol,
		Strategy: r.strategy.Name(),
		Reason:   reason,
		Detail:   detail,
	}}
}

func outcomeLabel(o contracts.Outcome) string {
	switch {
	case o.Qualified():
		return OutcomeQualified
	case o.Disqualification != nil &&
		(o.Disqualification.Reason == contracts.ReasonNoData ||
			o.Disqualification.Reason == contracts.ReasonTimeout ||
			o.Disqualification.Reason == contracts.ReasonCancelled):
		return OutcomeFailed
	default:
		return OutcomeDisqualified
	}
}

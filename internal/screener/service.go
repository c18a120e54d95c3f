package screener

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// ErrRunInProgress is returned when a strategy already has a run in flight
var ErrRunInProgress = errors.New("run already in progress")

// Request describes one screening run
type Request struct {
	RunID    string   // empty means a fresh UUID
	Strategy string   // scoring.NameHyper or scoring.NameTrend
	Symbols  []string // empty means the configured universe
	OnResult func(Result)
}

// Run is a finished screening run and the configuration it ran under
type Run struct {
	Summary    *Summary
	Provenance *strategyconfig.Provenance
}

// Service runs screens for any configured strategy and remembers the
// latest finished run per strategy
// ⭐ SSOT: the one place a screening run is assembled
type Service struct {
	pipeline   *Pipeline
	strategies *strategyconfig.Config
	configYAML []byte
	runCfg     Config
	universe   contracts.UniverseSource
	clock      clock.Clock
	metrics    *monitoring.Registry
	logger     *logger.Logger

	mu      sync.Mutex
	running map[string]string
	latest  map[string]*Run
}

// NewService creates a screening service. configYAML is the raw strategy
// file recorded in provenance and may be nil for built-in defaults.
func NewService(
	p *Pipeline,
	strategies *strategyconfig.Config,
	configYAML []byte,
	runCfg Config,
	universe contracts.UniverseSource,
	clk clock.Clock,
	metrics *monitoring.Registry,
	log *logger.Logger,
) *Service {
	return &Service{
		pipeline:   p,
		strategies: strategies,
		configYAML: configYAML,
		runCfg:     runCfg,
		universe:   universe,
		clock:      clk,
		metrics:    metrics,
		logger:     log.WithField("module", "service"),
		running:    make(map[string]string),
		latest:     make(map[string]*Run),
	}
}

// Screen runs req to completion. Only one run per strategy may be in
// flight at a time.
func (s *Service) Screen(ctx context.Context, req Request) (*Run, error) {
	strategy, err := scoring.New(req.Strategy, s.strategies, s.logger)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := s.begin(strategy.Name(), runID); err != nil {
		return nil, err
	}
	defer s.end(strategy.Name())

	symbols := req.Symbols
	if len(symbols) == 0 {
		if s.universe == nil {
			return nil, fmt.Errorf("no symbols given and no universe configured")
		}
		symbols, err = s.universe.Symbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("load universe: %w", err)
		}
	}

	prov, err := strategyconfig.NewProvenance(s.strategies, s.configYAML, runID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("build provenance: %w", err)
	}

	runner := NewRunner(s.pipeline, strategy, s.runCfg, s.clock, s.metrics, s.logger)
	summary := Collect(runID, strategy.Name(), runner.RunWithID(ctx, runID, symbols), req.OnResult)

	run := &Run{Summary: summary, Provenance: prov}
	if ctx.Err() == nil {
		s.mu.Lock()
		s.latest[strategy.Name()] = run
		s.mu.Unlock()
	}

	counts := summary.ReasonCounts()
	fields := map[string]interface{}{
		"run_id":    runID,
		"strategy":  strategy.Name(),
		"screened":  summary.Screened,
		"qualified": len(summary.Ranking.Candidates),
	}
	for reason, n := range counts {
		fields["excluded_"+string(reason)] = n
	}
	s.logger.WithFields(fields).Info("Run summary")

	return run, ctx.Err()
}

// Latest returns the most recent complete run for strategy
func (s *Service) Latest(strategy string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.latest[strategy]
	return run, ok
}

// Running returns the run ID in flight for strategy, if any
func (s *Service) Running(strategy string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.running[strategy]
	return id, ok
}

// Metrics computes metrics for a single symbol
func (s *Service) Metrics(ctx context.Context, symbol string) (contracts.DerivedMetrics, error) {
	return s.pipeline.GetMetrics(ctx, symbol)
}

func (s *Service) begin(strategy, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.running[strategy]; ok {
		return fmt.Errorf("%s: %w (run %s)", strategy, ErrRunInProgress, current)
	}
	s.running[strategy] = runID
	return nil
}

func (s *Service) end(strategy string) {
	s.mu.Lock()
	delete(s.running, strategy)
	s.mu.Unlock()
}

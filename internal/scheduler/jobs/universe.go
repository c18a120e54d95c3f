package jobs

import (
	"context"
	"fmt"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// UniverseJob lists the universe ahead of the screen so the symbol list
// is already cached when the run starts
type UniverseJob struct {
	source   contracts.UniverseSource
	schedule string
	logger   *logger.Logger
}

// NewUniverseJob creates a universe refresh job
func NewUniverseJob(source contracts.UniverseSource, schedule string, log *logger.Logger) *UniverseJob {
	return &UniverseJob{
		source:   source,
		schedule: schedule,
		logger:   log.WithField("job", "universe"),
	}
}

// Name returns the job name
func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule
func (j *UniverseJob) Schedule() string {
	return j.schedule
}

// Run lists the universe
func (j *UniverseJob) Run(ctx context.Context) error {
	symbols, err := j.source.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list universe: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("list universe: provider returned no symbols")
	}

	j.logger.WithField("symbols", len(symbols)).Info("Universe refreshed")
	return nil
}

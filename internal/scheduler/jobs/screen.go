package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Screener runs screens
type Screener interface {
	Screen(ctx context.Context, req screener.Request) (*screener.Run, error)
}

// ReportWriter persists finished runs
type ReportWriter interface {
	Write(s *screener.Summary, prov *strategyconfig.Provenance) (*report.Files, error)
}

// ScreenJob screens the configured universe with each strategy in turn
// and writes a report per strategy
// ⭐ SSOT: scheduled screening runs are defined only here
type ScreenJob struct {
	screener   Screener
	writer     ReportWriter
	strategies []string
	schedule   string
	logger     *logger.Logger
}

// NewScreenJob creates a screening job for strategies on schedule
func NewScreenJob(s Screener, writer ReportWriter, strategies []string, schedule string, log *logger.Logger) *ScreenJob {
	return &ScreenJob{
		screener:   s,
		writer:     writer,
		strategies: strategies,
		schedule:   schedule,
		logger:     log.WithField("job", "screen"),
	}
}

// Name returns the job name
func (j *ScreenJob) Name() string {
	return "screen"
}

// Schedule returns the cron schedule
func (j *ScreenJob) Schedule() string {
	return j.schedule
}

// Run screens with every strategy. A strategy that is already running
// elsewhere is skipped; other failures are returned after the remaining
// strategies have run.
func (j *ScreenJob) Run(ctx context.Context) error {
	var errs []error

	for _, strategy := range j.strategies {
		run, err := j.screener.Screen(ctx, screener.Request{Strategy: strategy})
		switch {
		case errors.Is(err, screener.ErrRunInProgress):
			j.logger.WithField("strategy", strategy).Warn("Strategy already running, skipped")
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", strategy, err))
			continue
		}

		files, err := j.writer.Write(run.Summary, run.Provenance)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", strategy, err))
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"strategy":  strategy,
			"run_id":    run.Summary.RunID,
			"qualified": len(run.Summary.Ranking.Candidates),
			"report":    files.JSON,
		}).Info("Scheduled screen completed")
	}

	return errors.Join(errs...)
}

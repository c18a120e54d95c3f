package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/universe"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

type fakeScreener struct {
	errs map[string]error
	seen []string
}

func (f *fakeScreener) Screen(_ context.Context, req screener.Request) (*screener.Run, error) {
	f.seen = append(f.seen, req.Strategy)
	if err := f.errs[req.Strategy]; err != nil {
		return nil, err
	}
	return &screener.Run{
		Summary:    &screener.Summary{RunID: "run-" + req.Strategy, Strategy: req.Strategy},
		Provenance: &strategyconfig.Provenance{RunID: "run-" + req.Strategy},
	}, nil
}

type fakeWriter struct {
	written []string
	fail    bool
}

func (w *fakeWriter) Write(s *screener.Summary, _ *strategyconfig.Provenance) (*report.Files, error) {
	if w.fail {
		return nil, errors.New("disk full")
	}
	w.written = append(w.written, s.RunID)
	return &report.Files{JSON: s.RunID + ".json"}, nil
}

func TestScreenJob_RunsEveryStrategy(t *testing.T) {
	fs := &fakeScreener{}
	fw := &fakeWriter{}
	job := NewScreenJob(fs, fw, scoring.Names, "0 30 16 * * 1-5", logger.Nop())

	assert.Equal(t, "screen", job.Name())
	assert.Equal(t, "0 30 16 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{scoring.NameHyper, scoring.NameTrend}, fs.seen)
	assert.Equal(t, []string{"run-hyperperformance", "run-trend"}, fw.written)
}

func TestScreenJob_Failures(t *testing.T) {
	fs := &fakeScreener{errs: map[string]error{
		scoring.NameHyper: fmt.Errorf("%s: %w", scoring.NameHyper, screener.ErrRunInProgress),
		scoring.NameTrend: errors.New("load universe: status_503"),
	}}
	fw := &fakeWriter{}
	job := NewScreenJob(fs, fw, scoring.Names, "@daily", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trend: load universe")
	assert.NotContains(t, err.Error(), "in progress", "busy strategy is skipped, not failed")
	assert.Empty(t, fw.written)

	fw.fail = true
	fs.errs = nil
	err = job.Run(context.Background())
	assert.ErrorContains(t, err, "hyperperformance report: disk full")
	assert.ErrorContains(t, err, "trend report: disk full")
}

type failingSource struct{}

func (failingSource) Symbols(context.Context) ([]string, error) {
	return nil, errors.New("status_401")
}

func TestUniverseJob(t *testing.T) {
	job := NewUniverseJob(universe.Static{"AAPL", "MSFT"}, "@every 6h", logger.Nop())
	assert.Equal(t, "universe_refresh", job.Name())
	assert.Equal(t, "@every 6h", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))

	assert.ErrorContains(t, NewUniverseJob(universe.Static{}, "@daily", logger.Nop()).Run(context.Background()), "no symbols")
	assert.ErrorContains(t, NewUniverseJob(failingSource{}, "@daily", logger.Nop()).Run(context.Background()), "status_401")
}

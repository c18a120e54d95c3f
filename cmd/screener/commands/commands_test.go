package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/universe"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

func TestTable(t *testing.T) {
	out := table([]string{"JOB", "SCHEDULE"}, [][]string{
		{"universe_refresh", "0 0 6 * * 1-5"},
		{"screen", "@daily"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "JOB")
	assert.Contains(t, lines[1], "universe_refresh")
	assert.Equal(t, strings.Index(lines[1], "0 0 6"), strings.Index(lines[2], "@daily"), "columns aligned")
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	PrintCandidates(&buf, []contracts.ScoredCandidate{
		{Rank: 1, Symbol: "NVDA", CompositeScore: 96.41, Coverage: 0.7, MoatScore: contracts.Some(0.3), Themes: []string{"AI"}},
	})
	out := buf.String()
	assert.Contains(t, out, "NVDA")
	assert.Contains(t, out, "96.41")
	assert.Contains(t, out, "70%")
	assert.Contains(t, out, "n/a", "missing price")

	buf.Reset()
	PrintCandidates(&buf, nil)
	assert.Contains(t, buf.String(), "No candidates qualified")
}

func TestPrintReasons(t *testing.T) {
	var buf bytes.Buffer
	PrintReasons(&buf, map[contracts.ReasonCode]int{
		contracts.ReasonNoData:           1,
		contracts.ReasonInsufficientData: 4,
		contracts.ReasonTimeout:          1,
	})
	out := buf.String()

	first := strings.Index(out, string(contracts.ReasonInsufficientData))
	noData := strings.Index(out, string(contracts.ReasonNoData))
	timeout := strings.Index(out, string(contracts.ReasonTimeout))
	assert.True(t, first < noData && noData < timeout, "count descending, then name")
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	PrintMetrics(&buf, contracts.DerivedMetrics{
		Symbol:        "NVDA",
		RevenueCAGR3Y: contracts.Some(0.452),
		RegimeAligned: contracts.Some(true),
	})
	out := buf.String()
	assert.Contains(t, out, "45.2%")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "n/a")
}

func TestUniverseSelection(t *testing.T) {
	a := &app{log: logger.Nop()}
	ctx := context.Background()

	src, err := a.universe(&universeFlags{symbols: []string{"msft", "aapl", "nvda"}, limit: 2})
	require.NoError(t, err)
	symbols, err := src.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	path := filepath.Join(t.TempDir(), "watchlist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# growth\nnvda, amd\n"), 0o644))
	src, err = a.universe(&universeFlags{file: path})
	require.NoError(t, err)
	assert.IsType(t, universe.FileSource{}, src)
	symbols, err = src.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "NVDA"}, symbols)

	_, err = a.universe(&universeFlags{htmlURL: "ftp://example.com/list"})
	assert.ErrorContains(t, err, "http(s) URL")
}

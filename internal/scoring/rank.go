package scoring

import (
	"fmt"
	"sort"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Names lists the available strategies
var Names = []string{NameHyper, NameTrend}

// New returns the strategy registered under name
func New(name string, cfg *strategyconfig.Config, log *logger.Logger) (contracts.Strategy, error) {
	switch name {
	case NameHyper:
		return NewHyperStrategy(cfg.Hyper, log), nil
	case NameTrend:
		return NewTrendStrategy(cfg.Trend, cfg.Metrics.Technical, log), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names)
	}
}

// Rank orders candidates by composite score descending, ties broken by
// symbol ascending, and assigns 1-based ranks. Disqualifications are
// ordered by symbol. The result does not depend on input order.
// ⭐ SSOT: ranking order is defined only here
func Rank(outcomes []contracts.Outcome) contracts.Ranking {
	ranking := contracts.Ranking{
		Candidates:        make([]contracts.ScoredCandidate, 0, len(outcomes)),
		Disqualifications: make([]contracts.Disqualification, 0),
	}

	for _, o := range outcomes {
		switch {
		case o.Candidate != nil:
			ranking.Candidates = append(ranking.Candidates, *o.Candidate)
		case o.Disqualification != nil:
			ranking.Disqualifications = append(ranking.Disqualifications, *o.Disqualification)
		}
	}

	sort.Slice(ranking.Candidates, func(i, j int) bool {
		a, b := ranking.Candidates[i], ranking.Candidates[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		return a.Symbol < b.Symbol
	})
	for i := range ranking.Candidates {
		ranking.Candidates[i].Rank = i + 1
	}

	sort.Slice(ranking.Disqualifications, func(i, j int) bool {
		a, b := ranking.Disqualifications[i], ranking.Disqualifications[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Strategy < b.Strategy
	})

	return ranking
}

// ReasonCounts tallies disqualifications by reason
func ReasonCounts(ds []contracts.Disqualification) map[contracts.ReasonCode]int {
	counts := make(map[contracts.ReasonCode]int)
	for _, d := range ds {
		counts[d.Reason]++
	}
	return counts
}

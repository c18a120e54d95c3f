package screener

import (
	"sort"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
)

// Summary is a completed run
type Summary struct {
	RunID    string
	Strategy string
	Screened int
	Ranking  contracts.Ranking
	Metrics  map[string]contracts.DerivedMetrics
}

// Collect drains the results of run runID and ranks them. onResult, when
// non-nil, sees each result as it arrives.
func Collect(runID, strategy string, results <-chan Result, onResult func(Result)) *Summary {
	s := &Summary{
		RunID:    runID,
		Strategy: strategy,
		Metrics:  make(map[string]contracts.DerivedMetrics),
	}

	var outcomes []contracts.Outcome
	for res := range results {
		if onResult != nil {
			onResult(res)
		}
		s.Screened++
		outcomes = append(outcomes, res.Outcome)
		if res.Metrics != nil {
			s.Metrics[res.Symbol] = *res.Metrics
		}
	}

	s.Ranking = scoring.Rank(outcomes)
	return s
}

// ReasonCounts tallies disqualifications by reason
func (s *Summary) ReasonCounts() map[contracts.ReasonCode]int {
	return scoring.ReasonCounts(s.Ranking.Disqualifications)
}

// ThemeCounts tallies qualified candidates per theme, most common first
func (s *Summary) ThemeCounts() []ThemeCount {
	counts := make(map[string]int)
	for _, c := range s.Ranking.Candidates {
		for _, theme := range c.Themes {
			counts[theme]++
		}
	}

	out := make([]ThemeCount, 0, len(counts))
	for theme, n := range counts {
		out = append(out, ThemeCount{Theme: theme, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Theme < out[j].Theme
	})
	return out
}

// ThemeCount is the number of candidates carrying a theme
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

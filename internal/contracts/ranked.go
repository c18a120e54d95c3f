package contracts

import "time"

// ReasonCode explains why a symbol was excluded
type ReasonCode string

const (
	ReasonNoData                   ReasonCode = "no_data"
	ReasonInsufficientData         ReasonCode = "insufficient_data"
	ReasonInsufficientPriceHistory ReasonCode = "insufficient_price_history"
	ReasonRegimeMisaligned         ReasonCode = "regime_misaligned"
	ReasonRSNotPersistent          ReasonCode = "rs_not_persistent"
	ReasonEarningsQuality          ReasonCode = "earnings_quality"
	ReasonTrendStructure           ReasonCode = "trend_structure"
	ReasonValuation                ReasonCode = "valuation"
	ReasonMarketCapBelowMinimum    ReasonCode = "market_cap_below_minimum"
	ReasonNotUSListed              ReasonCode = "not_us_listed"
	ReasonTimeout                  ReasonCode = "timeout"
	ReasonCancelled                ReasonCode = "cancelled"
)

// FilterStatus is the result of one qualification filter
type FilterStatus string

const (
	FilterPassed  FilterStatus = "passed"
	FilterSkipped FilterStatus = "skipped"
)

// ScoredCandidate is a symbol that passed every enabled filter
// ⭐ SSOT: ScoringEngine → outputs
type ScoredCandidate struct {
	Symbol         string                  `json:"symbol"`
	Name           string                  `json:"name,omitempty"`
	Strategy       string                  `json:"strategy"`
	Rank           int                     `json:"rank"` // 1-based, 0 until ranked
	CompositeScore float64                 `json:"composite_score"`
	SubScores      map[string]float64      `json:"sub_scores"`
	MoatScore      Float                   `json:"moat_score"`
	Coverage       float64                 `json:"coverage"` // share of weight backed by data
	Filters        map[string]FilterStatus `json:"filters,omitempty"`
	Violation      bool                    `json:"structural_violation"`
	Themes         []string                `json:"themes"`
	Price          Float                   `json:"price"`
	MarketCap      Float                   `json:"market_cap"`
	AsOf           time.Time               `json:"as_of"`
}

// IsTopRanked checks if the candidate is within the top n ranks
func (c *ScoredCandidate) IsTopRanked(n int) bool {
	return c.Rank > 0 && c.Rank <= n
}

// Disqualification records why a symbol was excluded
type Disqualification struct {
	Symbol   string     `json:"symbol"`
	Strategy string     `json:"strategy"`
	Filter   string     `json:"filter,omitempty"`
	Reason   ReasonCode `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// Outcome is the result of scoring one symbol: exactly one of Candidate
// or Disqualification is set.
type Outcome struct {
	Candidate        *ScoredCandidate  `json:"candidate,omitempty"`
	Disqualification *Disqualification `json:"disqualification,omitempty"`
}

// Qualified reports whether the symbol produced a candidate
func (o Outcome) Qualified() bool {
	return o.Candidate != nil
}

// Symbol returns the symbol the outcome is about
func (o Outcome) Symbol() string {
	if o.Candidate != nil {
		return o.Candidate.Symbol
	}
	if o.Disqualification != nil {
		return o.Disqualification.Symbol
	}
	return ""
}

// Ranking is the ordered result of a screening run
type Ranking struct {
	Candidates        []ScoredCandidate  `json:"candidates"`
	Disqualifications []Disqualification `json:"disqualifications"`
}

// Top returns at most n ranked candidates
func (r Ranking) Top(n int) []ScoredCandidate {
	if n <= 0 || n >= len(r.Candidates) {
		return r.Candidates
	}
	return r.Candidates[:n]
}

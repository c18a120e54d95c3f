package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

func candidate(symbol string, score float64) contracts.Outcome {
	return contracts.Outcome{Candidate: &contracts.ScoredCandidate{Symbol: symbol, CompositeScore: score}}
}

func disqualified(symbol string, reason contracts.ReasonCode) contracts.Outcome {
	return contracts.Outcome{Disqualification: &contracts.Disqualification{Symbol: symbol, Reason: reason}}
}

func symbols(cs []contracts.ScoredCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Symbol
	}
	return out
}

func TestRank(t *testing.T) {
	outcomes := []contracts.Outcome{
		candidate("MSFT", 80),
		disqualified("XOM", contracts.ReasonValuation),
		candidate("NVDA", 95),
		candidate("AMD", 80),
		disqualified("BRK.B", contracts.ReasonNotUSListed),
		candidate("AAPL", 70.5),
	}

	r := Rank(outcomes)

	assert.Equal(t, []string{"NVDA", "AMD", "MSFT", "AAPL"}, symbols(r.Candidates), "ties broken by symbol")
	for i, c := range r.Candidates {
		assert.Equal(t, i+1, c.Rank)
	}

	require.Len(t, r.Disqualifications, 2)
	assert.Equal(t, "BRK.B", r.Disqualifications[0].Symbol)
	assert.Equal(t, "XOM", r.Disqualifications[1].Symbol)

	assert.Equal(t, map[contracts.ReasonCode]int{
		contracts.ReasonValuation:   1,
		contracts.ReasonNotUSListed: 1,
	}, ReasonCounts(r.Disqualifications))
}

func TestRank_Empty(t *testing.T) {
	r := Rank(nil)
	assert.NotNil(t, r.Candidates)
	assert.NotNil(t, r.Disqualifications)
	assert.Empty(t, r.Candidates)
}

func TestRank_PermutationStable(t *testing.T) {
	var outcomes []contracts.Outcome
	for i, sym := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		outcomes = append(outcomes, candidate(sym, float64(i%3)*10))
	}
	outcomes = append(outcomes, disqualified("Z", contracts.ReasonNoData), disqualified("Y", contracts.ReasonTimeout))

	want := Rank(outcomes)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]contracts.Outcome, len(outcomes))
		copy(shuffled, outcomes)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		assert.Equal(t, want, Rank(shuffled))
	}
}

func TestRank_DoesNotMutateOutcomes(t *testing.T) {
	o := candidate("NVDA", 90)
	Rank([]contracts.Outcome{o})
	assert.Equal(t, 0, o.Candidate.Rank)
}

func TestNew(t *testing.T) {
	cfg := strategyconfig.Default()

	for _, name := range Names {
		s, err := New(name, cfg, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := New("momentum", cfg, logger.Nop())
	assert.Error(t, err)
}

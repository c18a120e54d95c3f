// Package scoring turns DerivedMetrics into qualified, scored candidates or
// disqualifications, and ranks them.
package scoring

import (
	"math"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
)

// Normalize maps v onto 0-100 between b.Min and b.Max, clamped
func Normalize(v float64, b strategyconfig.Bounds) float64 {
	if b.Max <= b.Min {
		return 0
	}
	return clamp(100*(v-b.Min)/(b.Max-b.Min), 0, 100)
}

// component is one weighted input of a composite score
type component struct {
	name   string
	weight float64
	score  contracts.Float // 0-100, unavailable when the input is missing
}

// combined is a redistributed weighted score
type combined struct {
	score     float64
	coverage  float64            // share of the configured weight backed by data
	subScores map[string]float64 // available components only
}

// combine drops unavailable components and rescales the remaining weights
// to sum to one. Coverage is the available weight over the total weight.
// ⭐ SSOT: missing-input policy (proportional redistribution)
func combine(components []component) combined {
	var total, available, weighted float64
	sub := make(map[string]float64, len(components))

	for _, c := range components {
		total += c.weight
		s, ok := c.score.Get()
		if !ok {
			continue
		}
		available += c.weight
		weighted += c.weight * s
		sub[c.name] = round(s)
	}

	out := combined{subScores: sub}
	if total > 0 {
		out.coverage = available / total
	}
	if available > 0 {
		out.score = weighted / available
	}
	return out
}

// mean averages the available values
func mean(values ...contracts.Float) contracts.Float {
	var sum float64
	n := 0
	for _, v := range values {
		if x, ok := v.Get(); ok {
			sum += x
			n++
		}
	}
	if n == 0 {
		return contracts.None[float64]()
	}
	return contracts.Some(sum / float64(n))
}

// normalized maps an optional value through Normalize
func normalized(v contracts.Float, b strategyconfig.Bounds) contracts.Float {
	if x, ok := v.Get(); ok {
		return contracts.Some(Normalize(x, b))
	}
	return contracts.None[float64]()
}

// tierPoints returns the points of the first tier (highest threshold first)
// that v reaches
func tierPoints(v float64, tiers []strategyconfig.Tier) float64 {
	for _, t := range tiers {
		if v >= t.Threshold {
			return t.Points
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round keeps reported scores to four decimals
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

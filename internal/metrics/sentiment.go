package metrics

import (
	"math"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// Insider transaction codes
const (
	insiderPurchase = "P"
	insiderSale     = "S"
)

// InsiderActivity returns the share of open-market purchases among
// purchases and sales dated within lookback before asOf (count based), and
// the net share change of those trades.
func InsiderActivity(txs []contracts.InsiderTransaction, asOf time.Time, lookback time.Duration) (ratio, netShares contracts.Float) {
	start := asOf.Add(-lookback)

	var buys, sells int
	var net float64
	for _, tx := range txs {
		if tx.TransactionDate.Before(start) || tx.TransactionDate.After(asOf) {
			continue
		}
		switch tx.Code {
		case insiderPurchase:
			buys++
			net += math.Abs(tx.Change)
		case insiderSale:
			sells++
			net -= math.Abs(tx.Change)
		}
	}

	if buys+sells == 0 {
		return contracts.None[float64](), contracts.None[float64]()
	}
	return contracts.Some(float64(buys) / float64(buys+sells)), contracts.Some(net)
}

// AnalystBuyRatio returns (strongBuy+buy)/total for the latest period
func AnalystBuyRatio(trends []contracts.RecommendationTrend) contracts.Float {
	if len(trends) == 0 {
		return contracts.None[float64]()
	}
	latest := trends[len(trends)-1]
	total := latest.Total()
	if total == 0 {
		return contracts.None[float64]()
	}
	return contracts.Some(float64(latest.StrongBuy+latest.Buy) / float64(total))
}

// InstitutionalStability is a holder-stability proxy built from the
// analyst recommendation history: one minus the mean absolute period to
// period change of the buy share, in percentage points, divided by 10 and
// clamped to [0, 1]. Needs at least minPeriods periods with coverage.
func InstitutionalStability(trends []contracts.RecommendationTrend, minPeriods int) contracts.Float {
	const maxPeriods = 12

	shares := make([]float64, 0, len(trends))
	for _, t := range trends {
		if total := t.Total(); total > 0 {
			shares = append(shares, 100*float64(t.StrongBuy+t.Buy)/float64(total))
		}
	}
	if len(shares) > maxPeriods {
		shares = shares[len(shares)-maxPeriods:]
	}
	if len(shares) < minPeriods || len(shares) < 2 {
		return contracts.None[float64]()
	}

	var sum float64
	for i := 1; i < len(shares); i++ {
		sum += math.Abs(shares[i] - shares[i-1])
	}
	meanChange := sum / float64(len(shares)-1)
	return contracts.Some(clamp(1-meanChange/10, 0, 1))
}

// ForwardEPSGrowth compares the consensus estimate for the first fiscal
// year after the latest reported EPS with that EPS.
func ForwardEPSGrowth(eps series, estimates []contracts.EPSEstimate) contracts.Float {
	lastYear, found := 0, false
	for y := range eps {
		if !found || y > lastYear {
			lastYear, found = y, true
		}
	}
	if !found {
		return contracts.None[float64]()
	}

	actual := eps[lastYear]
	if actual <= 0 {
		return contracts.None[float64]()
	}

	for _, est := range estimates {
		if est.Year > lastYear {
			return contracts.Some(est.EPSAvg/actual - 1)
		}
	}
	return contracts.None[float64]()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

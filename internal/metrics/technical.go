package metrics

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
)

// WeeklyCloses resamples daily bars (oldest first) to the last close of
// each ISO week.
func WeeklyCloses(prices []contracts.PricePoint) []float64 {
	weekly := make([]float64, 0, len(prices)/5+1)
	var lastYear, lastWeek int
	for i, p := range prices {
		year, week := p.Date.ISOWeek()
		if i > 0 && year == lastYear && week == lastWeek {
			weekly[len(weekly)-1] = p.Close
			continue
		}
		weekly = append(weekly, p.Close)
		lastYear, lastWeek = year, week
	}
	return weekly
}

// sma returns the simple moving average series; entries before the first
// full window are zero.
func sma(values []float64, period int) []float64 {
	if period <= 1 {
		return append([]float64(nil), values...)
	}
	return talib.Sma(values, period)
}

// PositiveSlopeWeeks counts the weeks among the last window whose moving
// average did not fall week over week. ma is a talib series, zero before
// its first full window.
func PositiveSlopeWeeks(ma []float64, period, window int) contracts.Int {
	if len(ma) < period+window {
		return contracts.None[int]()
	}
	count := 0
	for i := len(ma) - window; i < len(ma); i++ {
		if ma[i]-ma[i-1] >= 0 {
			count++
		}
	}
	return contracts.Some(count)
}

// MaxDrawdown returns the largest peak-to-trough decline as a non-positive
// fraction.
func MaxDrawdown(closes []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			if dd := c/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// alignCloses pairs stock and benchmark closes on common trading days
func alignCloses(stock, benchmark []contracts.PricePoint) (s, b []float64) {
	day := func(t time.Time) string { return t.UTC().Format("2006-01-02") }

	bench := make(map[string]float64, len(benchmark))
	for _, p := range benchmark {
		bench[day(p.Date)] = p.Close
	}

	s = make([]float64, 0, len(stock))
	b = make([]float64, 0, len(stock))
	for _, p := range stock {
		if bc, ok := bench[day(p.Date)]; ok && bc > 0 && p.Close > 0 {
			s = append(s, p.Close)
			b = append(b, bc)
		}
	}
	return s, b
}

// RSPercentiles returns, for each of the last history days, the share
// (0-100) of the preceding window relative-strength values that the day's
// value exceeds. Relative strength is stock over benchmark cumulative
// performance; the common base cancels in the ranking, so the close ratio
// is used directly.
func RSPercentiles(stock, benchmark []float64, window, history int) []float64 {
	n := len(stock)
	if n != len(benchmark) || n <= window {
		return nil
	}

	rel := make([]float64, n)
	for i := range stock {
		rel[i] = stock[i] / benchmark[i]
	}

	start := n - history
	if start < window {
		start = window
	}

	out := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		below := 0
		for _, v := range rel[i-window : i] {
			if v < rel[i] {
				below++
			}
		}
		out = append(out, 100*float64(below)/float64(window))
	}
	return out
}

// technicals fills the long-horizon trend fields
func (e *Engine) technicals(m *contracts.DerivedMetrics, prices, benchmark []contracts.PricePoint) {
	t := e.cfg.Technical
	m.MA80SlopeWindow = t.SlopeWindowWeeks

	if len(prices) == 0 {
		return
	}

	weekly := WeeklyCloses(prices)
	last := weekly[len(weekly)-1]

	var maShort, maLong []float64
	if len(weekly) >= t.MAShortWeeks {
		maShort = sma(weekly, t.MAShortWeeks)
		m.MA40W = contracts.Some(maShort[len(maShort)-1])
	}
	if len(weekly) >= t.MALongWeeks {
		maLong = sma(weekly, t.MALongWeeks)
		m.MA80W = contracts.Some(maLong[len(maLong)-1])
		m.MA80SlopePositiveWeek = PositiveSlopeWeeks(maLong, t.MALongWeeks, t.SlopeWindowWeeks)
	}

	if short, ok := m.MA40W.Get(); ok {
		if long, ok := m.MA80W.Get(); ok {
			if weeks, ok := m.MA80SlopePositiveWeek.Get(); ok {
				m.RegimeAligned = contracts.Some(RegimeAligned(last, short, long, weeks, t))
			}
		}
	}

	e.relativeStrength(m, prices, benchmark)
	e.structure(m, weekly, maShort)

	if long, ok := m.MA80W.Get(); ok {
		if rs, ok := m.RSPercentile.Get(); ok {
			m.StructuralViolation = contracts.Some(last < long && rs < t.ViolationRSPercentile)
		}
	}
}

// relativeStrength fills RS percentile, persistence and resilience
func (e *Engine) relativeStrength(m *contracts.DerivedMetrics, prices, benchmark []contracts.PricePoint) {
	t := e.cfg.Technical

	stockCloses := make([]float64, len(prices))
	for i, p := range prices {
		stockCloses[i] = p.Close
	}
	m.MaxDrawdown = contracts.Some(MaxDrawdown(lastN(stockCloses, t.RSHistoryDays)))

	if len(benchmark) == 0 {
		return
	}

	s, b := alignCloses(prices, benchmark)
	if len(s) < 2 {
		return
	}

	stockDD := MaxDrawdown(lastN(s, t.RSHistoryDays))
	benchDD := MaxDrawdown(lastN(b, t.RSHistoryDays))
	m.MaxDrawdown = contracts.Some(stockDD)
	m.BenchmarkMaxDrawdown = contracts.Some(benchDD)
	m.RSResilient = contracts.Some(benchDD >= -t.BenchmarkDrawdownMin || stockDD > benchDD)

	history := RSPercentiles(s, b, t.RSWindowDays, t.RSHistoryDays)
	if len(history) == 0 {
		return
	}
	m.RSPercentile = contracts.Some(history[len(history)-1])
	m.RSPercentileHistory = history

	// Days without history count as not strong, so a short listing cannot
	// reach the persistence share on a partial window
	strong := 0
	for _, p := range history {
		if p >= t.RSStrongPercentile {
			strong++
		}
	}
	m.RSPersistence = contracts.Some(float64(strong) / float64(max(t.RSHistoryDays, len(history))))
}

// structure fills near-rising-MA, volatility contraction and stair-step
func (e *Engine) structure(m *contracts.DerivedMetrics, weekly, maShort []float64) {
	t := e.cfg.Technical
	n := len(weekly)

	if maShort != nil && n >= t.MAShortWeeks+t.NearMAWeeks {
		var dist float64
		for i := n - t.NearMAWeeks; i < n; i++ {
			dist += weekly[i]/maShort[i] - 1
		}
		dist /= float64(t.NearMAWeeks)
		rising := maShort[n-1] > maShort[n-1-t.NearMAWeeks]
		m.NearRisingMA = contracts.Some(math.Abs(dist) < t.NearMATolerance && rising)
	}

	if n > t.VolLongWeeks {
		returns := make([]float64, 0, n-1)
		for i := 1; i < n; i++ {
			returns = append(returns, weekly[i]/weekly[i-1]-1)
		}
		short := stat.StdDev(lastN(returns, t.VolShortWeeks), nil)
		long := stat.StdDev(lastN(returns, t.VolLongWeeks), nil)
		m.VolContracting = contracts.Some(short < t.VolContractionRatio*long)
	}

	if w := t.StairWindowWeeks; n >= 2*w {
		positive := 0
		for i := n - w; i < n; i++ {
			if weekly[i] > weekly[i-w] {
				positive++
			}
		}
		m.StairStep = contracts.Some(float64(positive)/float64(w) >= t.StairMinPositiveShare)
	}
}

func lastN(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// RegimeAligned reports close > short MA > long MA with a persistently
// rising long MA
func RegimeAligned(price, maShort, maLong float64, positiveWeeks int, t strategyconfig.Technical) bool {
	return price > maShort && maShort > maLong && positiveWeeks >= t.SlopeMinPositiveWeeks
}

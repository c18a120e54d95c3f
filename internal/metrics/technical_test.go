package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
)

// dailyBars builds weekday bars from 2019-06-03 to 2024-05-31 with
// close(i) = f(i)
func dailyBars(f func(i int) float64) []contracts.PricePoint {
	start := time.Date(2019, 6, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	var bars []contracts.PricePoint
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := f(i)
		bars = append(bars, contracts.PricePoint{Date: d, Open: c, High: c, Low: c, Close: c})
		i++
	}
	return bars
}

func flat(level float64) func(int) float64 {
	return func(int) float64 { return level }
}

func TestWeeklyCloses(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []contracts.PricePoint
	for i := 0; i < 10; i++ {
		d := monday.AddDate(0, 0, i)
		bars = append(bars, contracts.PricePoint{Date: d, Close: float64(i + 1)})
	}

	assert.Equal(t, []float64{7, 10}, WeeklyCloses(bars), "last close of each ISO week")
	assert.Empty(t, WeeklyCloses(nil))
}

func TestPositiveSlopeWeeks(t *testing.T) {
	ma := sma([]float64{1, 2, 3, 4, 5, 3, 4, 6}, 2)
	got := PositiveSlopeWeeks(ma, 2, 5)
	require.True(t, got.OK())
	assert.Equal(t, 3, got.Or(0))

	assert.False(t, PositiveSlopeWeeks(ma, 2, 7).OK(), "window reaches into the warm-up")
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{100, 120, 60, 90, 130}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestRSPercentiles(t *testing.T) {
	stock := []float64{1, 2, 3, 4, 5, 6}
	bench := []float64{1, 1, 1, 1, 1, 1}

	got := RSPercentiles(stock, bench, 3, 2)
	assert.Equal(t, []float64{100, 100}, got)

	falling := []float64{6, 5, 4, 3, 2, 1}
	assert.Equal(t, []float64{0, 0, 0}, RSPercentiles(falling, bench, 3, 10), "history capped by the window warm-up")

	assert.Nil(t, RSPercentiles(stock, bench[:5], 3, 2), "length mismatch")
	assert.Nil(t, RSPercentiles(stock[:3], bench[:3], 3, 2), "shorter than the window")
}

func TestRegimeAligned(t *testing.T) {
	tech := newTestEngine().cfg.Technical

	tests := []struct {
		name  string
		price float64
		short float64
		long  float64
		weeks int
		want  bool
	}{
		{"aligned", 120, 110, 100, 26, true},
		{"minimum rising weeks", 120, 110, 100, 20, true},
		{"long MA not rising enough", 120, 110, 100, 19, false},
		{"price below short MA", 105, 110, 100, 26, false},
		{"short MA below long MA", 120, 95, 100, 26, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegimeAligned(tt.price, tt.short, tt.long, tt.weeks, tech))
		})
	}
}

func TestCompute_UptrendAgainstFlatBenchmark(t *testing.T) {
	record := &contracts.RawFinancialRecord{
		Symbol: "UP",
		AsOf:   asOf,
		Prices: dailyBars(func(i int) float64 { return 100 * math.Pow(1.0008, float64(i)) }),
	}
	benchmark := dailyBars(flat(400))

	m := newTestEngine().Compute(record, benchmark)

	require.True(t, m.MA40W.OK())
	require.True(t, m.MA80W.OK())
	assert.Greater(t, m.Price.Or(0), m.MA40W.Or(0))
	assert.Greater(t, m.MA40W.Or(0), m.MA80W.Or(0))
	assert.Equal(t, 26, m.MA80SlopePositiveWeek.Or(0))
	assert.True(t, m.RegimeAligned.Or(false))

	assert.Equal(t, 100.0, m.RSPercentile.Or(0))
	assert.Len(t, m.RSPercentileHistory, 378)
	assert.Equal(t, 1.0, m.RSPersistence.Or(0))
	assert.True(t, m.RSResilient.Or(false))
	assert.Equal(t, 0.0, m.MaxDrawdown.Or(-1))
	assert.Equal(t, 0.0, m.BenchmarkMaxDrawdown.Or(-1))

	assert.True(t, m.StairStep.Or(false))
	assert.False(t, m.StructuralViolation.Or(true))
	assert.True(t, m.VolContracting.OK())
	assert.True(t, m.NearRisingMA.OK())
}

func TestCompute_DowntrendIsViolation(t *testing.T) {
	record := &contracts.RawFinancialRecord{
		Symbol: "DOWN",
		AsOf:   asOf,
		Prices: dailyBars(func(i int) float64 { return 100 * math.Pow(0.9995, float64(i)) }),
	}
	benchmark := dailyBars(flat(400))

	m := newTestEngine().Compute(record, benchmark)

	assert.False(t, m.RegimeAligned.Or(true))
	assert.Equal(t, 0, m.MA80SlopePositiveWeek.Or(-1))
	assert.Equal(t, 0.0, m.RSPercentile.Or(-1))
	assert.Equal(t, 0.0, m.RSPersistence.Or(-1))
	assert.True(t, m.StructuralViolation.Or(false))
	assert.False(t, m.StairStep.Or(true))
	assert.Less(t, m.MaxDrawdown.Or(0), 0.0)
	assert.True(t, m.RSResilient.Or(false), "benchmark never drew down")
}

func TestCompute_ShortHistory(t *testing.T) {
	bars := dailyBars(func(i int) float64 { return 100 + float64(i) })
	record := &contracts.RawFinancialRecord{Symbol: "IPO", Prices: bars[len(bars)-100:]}

	m := newTestEngine().Compute(record, nil)

	assert.True(t, m.Price.OK())
	assert.False(t, m.MA40W.OK(), "20 weeks of data")
	assert.False(t, m.MA80W.OK())
	assert.False(t, m.RegimeAligned.OK())
	assert.False(t, m.RSPercentile.OK(), "no benchmark")
	assert.True(t, m.MaxDrawdown.OK())
	assert.False(t, m.StructuralViolation.OK())
}

func TestCompute_PersistenceNeedsFullWindow(t *testing.T) {
	bars := dailyBars(func(i int) float64 { return 100 * math.Pow(1.0008, float64(i)) })
	record := &contracts.RawFinancialRecord{Symbol: "NEW", AsOf: asOf, Prices: bars[len(bars)-452:]}

	m := newTestEngine().Compute(record, dailyBars(flat(400)))

	require.Len(t, m.RSPercentileHistory, 200, "252-day window leaves 200 days of history")
	assert.Equal(t, 100.0, m.RSPercentile.Or(0))
	assert.InDelta(t, 200.0/378.0, m.RSPersistence.Or(0), 1e-12)
	assert.Less(t, m.RSPersistence.Or(1), strategyconfig.Default().Trend.Thresholds.MinRSPersistence)
}

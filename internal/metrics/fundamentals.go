package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// Provider point-in-time metric names. Values are percentages unless noted.
var (
	metricROIC            = []string{"roiTTM", "roiAnnual"}
	metricROE             = []string{"roeTTM", "roeRfy"}
	metricGrossMargin     = []string{"grossMarginTTM", "grossMarginAnnual"}
	metricOperatingMargin = []string{"operatingMarginTTM", "operatingMarginAnnual"}
	metricPE              = []string{"peTTM", "peBasicExclExtraTTM", "peExclExtraTTM", "peNormalizedAnnual"} // multiple
)

// percentMetric returns the first available provider metric as a fraction
func percentMetric(b *contracts.BasicFinancials, names []string) contracts.Float {
	for _, n := range names {
		if v, ok := b.MetricValue(n).Get(); ok {
			return contracts.Some(v / 100)
		}
	}
	return contracts.None[float64]()
}

func rawMetric(b *contracts.BasicFinancials, names []string) contracts.Float {
	for _, n := range names {
		if v, ok := b.MetricValue(n).Get(); ok {
			return contracts.Some(v)
		}
	}
	return contracts.None[float64]()
}

// slope fits y = a + b*x over x = 0..n-1 and returns b
func slope(values []float64) float64 {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, b := stat.LinearRegression(xs, values, nil, false)
	return b
}

// TrendPositive reports whether values (oldest first) both end above where
// they started and have a positive least-squares slope. Needs 3 points.
func TrendPositive(values []float64) contracts.Flag {
	if len(values) < 3 {
		return contracts.None[bool]()
	}
	return contracts.Some(values[len(values)-1] > values[0] && slope(values) > 0)
}

// Expansion reports whether the last value exceeds the first
func Expansion(values []float64) contracts.Flag {
	if len(values) < 2 {
		return contracts.None[bool]()
	}
	return contracts.Some(values[len(values)-1] > values[0])
}

// StdDev returns the sample standard deviation, needing 3 points
func StdDev(values []float64) contracts.Float {
	if len(values) < 3 {
		return contracts.None[float64]()
	}
	return contracts.Some(stat.StdDev(values, nil))
}

// profitability fills margins, returns, leverage and valuation
func (e *Engine) profitability(m *contracts.DerivedMetrics, a annualData, record *contracts.RawFinancialRecord) {
	ratios := record.Ratios
	window := e.cfg.TrendYears

	m.FCFMargin = a.fcfMargin.last()
	m.OperatingMargin = contracts.FirstOK(a.opMargin.last(), percentMetric(ratios, metricOperatingMargin))
	m.GrossMargin = contracts.FirstOK(a.grossMargin.last(), percentMetric(ratios, metricGrossMargin))
	m.ROIC = contracts.FirstOK(a.roic.last(), percentMetric(ratios, metricROIC))
	m.ROE = contracts.FirstOK(a.roe.last(), percentMetric(ratios, metricROE))

	opMargins := a.opMargin.tail(window)
	m.MarginStability = StdDev(opMargins)
	m.MarginExpansion = Expansion(opMargins)
	m.MarginTrendPositive = TrendPositive(opMargins)
	m.ROICTrendPositive = TrendPositive(a.roic.tail(window))
	m.GrossMarginTrend = TrendPositive(a.grossMargin.tail(window))

	m.DebtToEBITDA = debtToEBITDA(a, ratios)
	m.PERatio = peRatio(m.Price, a, ratios)
}

// debtToEBITDA uses the latest filing with an EBITDA figure, falling back
// to the provider's annual totals.
func debtToEBITDA(a annualData, ratios *contracts.BasicFinancials) contracts.Float {
	latest, found := 0, false
	for y := range a.ebitda {
		if !found || y > latest {
			latest, found = y, true
		}
	}
	if found && a.ebitda[latest] > 0 {
		return contracts.Some(a.netDebt[latest] / a.ebitda[latest])
	}

	debt, debtOK := ratios.MetricValue("totalDebtAnnual").Get()
	ebitda, ebitdaOK := ratios.MetricValue("ebitdaAnnual").Get()
	if debtOK && ebitdaOK && ebitda > 0 {
		cash := ratios.MetricValue("cashAnnual").Or(0)
		return contracts.Some((debt - cash) / ebitda)
	}
	return contracts.None[float64]()
}

// peRatio prefers the provider multiple and falls back to price over the
// latest annual EPS. Loss makers have no P/E.
func peRatio(price contracts.Float, a annualData, ratios *contracts.BasicFinancials) contracts.Float {
	if pe, ok := rawMetric(ratios, metricPE).Get(); ok && pe > 0 {
		return contracts.Some(pe)
	}

	p, ok := price.Get()
	if !ok {
		return contracts.None[float64]()
	}
	if eps, ok := a.eps.last().Get(); ok && eps > 0 {
		return contracts.Some(p / eps)
	}
	return contracts.None[float64]()
}

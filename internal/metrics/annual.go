package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// gaap expands concept names to both the prefixed and the bare form the
// provider uses depending on filing vintage.
func gaap(names ...string) []string {
	out := make([]string, 0, len(names)*2)
	for _, n := range names {
		out = append(out, "us-gaap_"+n, n)
	}
	return out
}

// Reporting concepts, in order of preference
var (
	conceptRevenue = gaap(
		"Revenues",
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"RevenueFromContractWithCustomerIncludingAssessedTax",
		"SalesRevenueNet",
	)
	conceptOperatingIncome = gaap("OperatingIncomeLoss")
	conceptNetIncome       = gaap("NetIncomeLoss", "ProfitLoss")
	conceptEPS             = gaap("EarningsPerShareDiluted", "EarningsPerShareBasic")
	conceptGrossProfit     = gaap("GrossProfit")
	conceptTaxExpense      = gaap("IncomeTaxExpenseBenefit")
	conceptPretaxIncome    = gaap(
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
	)
	conceptDepreciation = gaap("DepreciationDepletionAndAmortization", "DepreciationAndAmortization", "Depreciation")

	conceptOperatingCashFlow = gaap("NetCashProvidedByUsedInOperatingActivities")
	conceptCapex             = gaap("PaymentsToAcquirePropertyPlantAndEquipment")

	conceptEquity = gaap(
		"StockholdersEquity",
		"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
	)
	conceptLongTermDebt = gaap("LongTermDebtNoncurrent", "LongTermDebt")
	conceptCurrentDebt  = gaap("LongTermDebtCurrent", "DebtCurrent")
	conceptCash         = gaap("CashAndCashEquivalentsAtCarryingValue")
)

// Provider ratio series names (fractions)
const (
	seriesEPS             = "eps"
	seriesROIC            = "roic"
	seriesROE             = "roe"
	seriesGrossMargin     = "grossMargin"
	seriesOperatingMargin = "operatingMargin"
)

// series is an annual series keyed by fiscal year
type series map[int]float64

// merge fills years missing from s with values from fallback
func (s series) merge(fallback series) series {
	for y, v := range fallback {
		if _, ok := s[y]; !ok {
			s[y] = v
		}
	}
	return s
}

// years returns every fiscal year from the series' first to its latest,
// oldest first
func (s series) years() []int {
	lo, hi, found := 0, 0, false
	for y := range s {
		if !found {
			lo, hi, found = y, y, true
			continue
		}
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	if !found {
		return nil
	}

	years := make([]int, 0, hi-lo+1)
	for y := lo; y <= hi; y++ {
		years = append(years, y)
	}
	return years
}

// values returns the series over its own year range, oldest first. Years
// without a value inside the range are unavailable.
func (s series) values() []contracts.Float {
	years := s.years()
	out := make([]contracts.Float, len(years))
	for i, y := range years {
		if v, ok := s[y]; ok {
			out[i] = contracts.Some(v)
		}
	}
	return out
}

// last returns the most recent value
func (s series) last() contracts.Float {
	years := s.years()
	if len(years) == 0 {
		return contracts.None[float64]()
	}
	return contracts.Some(s[years[len(years)-1]])
}

// tail returns the available values of the series' last n years, oldest first
func (s series) tail(n int) []float64 {
	years := s.years()
	if len(years) > n {
		years = years[len(years)-n:]
	}
	out := make([]float64, 0, len(years))
	for _, y := range years {
		if v, ok := s[y]; ok {
			out = append(out, v)
		}
	}
	return out
}

// annualData is everything derived from annual filings and ratio series,
// keyed by the fiscal year the filings report.
type annualData struct {
	revenue     series
	eps         series
	fcf         series
	fcfMargin   series
	opMargin    series
	grossMargin series
	roic        series
	roe         series

	netDebt series
	ebitda  series
}

// buildAnnual extracts annual series from reported statements, then fills
// gaps from the provider ratio series.
func buildAnnual(record *contracts.RawFinancialRecord, defaultTaxRate float64) annualData {
	a := annualData{
		revenue:     series{},
		eps:         series{},
		fcf:         series{},
		fcfMargin:   series{},
		opMargin:    series{},
		grossMargin: series{},
		roic:        series{},
		roe:         series{},
		netDebt:     series{},
		ebitda:      series{},
	}

	for _, p := range record.Annual {
		y := p.Year
		revenue := p.Value(contracts.SectionIncome, conceptRevenue...)
		opIncome := p.Value(contracts.SectionIncome, conceptOperatingIncome...)
		netIncome := p.Value(contracts.SectionIncome, conceptNetIncome...)
		equity := p.Value(contracts.SectionBalance, conceptEquity...)
		cash := p.Value(contracts.SectionBalance, conceptCash...).Or(0)
		debt := p.Value(contracts.SectionBalance, conceptLongTermDebt...).Or(0) +
			p.Value(contracts.SectionBalance, conceptCurrentDebt...).Or(0)

		if v, ok := revenue.Get(); ok {
			a.revenue[y] = v
		}
		if v, ok := p.Value(contracts.SectionIncome, conceptEPS...).Get(); ok {
			a.eps[y] = v
		}

		rev, revOK := revenue.Get()
		revOK = revOK && rev > 0

		if op, ok := opIncome.Get(); ok && revOK {
			a.opMargin[y] = op / rev
		}
		if gp, ok := p.Value(contracts.SectionIncome, conceptGrossProfit...).Get(); ok && revOK {
			a.grossMargin[y] = gp / rev
		}

		ocf, ocfOK := p.Value(contracts.SectionCashFlow, conceptOperatingCashFlow...).Get()
		capex, capexOK := p.Value(contracts.SectionCashFlow, conceptCapex...).Get()
		if ocfOK && capexOK {
			fcf := ocf - math.Abs(capex)
			a.fcf[y] = fcf
			if revOK {
				a.fcfMargin[y] = fcf / rev
			}
		}

		if op, ok := opIncome.Get(); ok {
			if eq, ok := equity.Get(); ok {
				taxRate := effectiveTaxRate(p, defaultTaxRate)
				if invested := eq + debt - cash; invested > 0 {
					a.roic[y] = op * (1 - taxRate) / invested
				}
			}
			if da, ok := p.Value(contracts.SectionCashFlow, conceptDepreciation...).Get(); ok {
				a.ebitda[y] = op + math.Abs(da)
				a.netDebt[y] = debt - cash
			}
		}

		if ni, ok := netIncome.Get(); ok {
			if eq, ok := equity.Get(); ok && eq > 0 {
				a.roe[y] = ni / eq
			}
		}
	}

	if record.Ratios != nil {
		cal := newFiscalCalendar(record.Annual)
		a.eps.merge(ratioSeries(record.Ratios, seriesEPS, cal))
		a.roic.merge(ratioSeries(record.Ratios, seriesROIC, cal))
		a.roe.merge(ratioSeries(record.Ratios, seriesROE, cal))
		a.grossMargin.merge(ratioSeries(record.Ratios, seriesGrossMargin, cal))
		a.opMargin.merge(ratioSeries(record.Ratios, seriesOperatingMargin, cal))
	}

	return a
}

// effectiveTaxRate derives the filing's tax rate, falling back to def when
// pretax income is not positive or the rate is implausible.
func effectiveTaxRate(p contracts.StatementPeriod, def float64) float64 {
	tax, taxOK := p.Value(contracts.SectionIncome, conceptTaxExpense...).Get()
	pretax, pretaxOK := p.Value(contracts.SectionIncome, conceptPretaxIncome...).Get()
	if !taxOK || !pretaxOK || pretax <= 0 {
		return def
	}
	rate := tax / pretax
	if rate < 0 || rate > 0.5 {
		return def
	}
	return rate
}

// ratioSeries converts a provider annual ratio series to a series keyed by
// fiscal year. The provider lists one point per fiscal year end.
func ratioSeries(b *contracts.BasicFinancials, name string, cal fiscalCalendar) series {
	out := series{}
	for _, p := range b.Annual[name] {
		out[cal.year(p.Period)] = p.Value
	}
	return out
}

// fiscalMatchWindow is how far a ratio period end may sit from a filing's
// period end and still belong to that filing's fiscal year
const fiscalMatchWindow = 45 * 24 * time.Hour

// fiscalCalendar maps period end dates onto the fiscal years reported by
// annual filings. Companies whose fiscal year ends early in a calendar year
// label it with the previous year.
type fiscalCalendar struct {
	filings []contracts.StatementPeriod
	shift   int // filing year minus end-date year, most common across filings
}

func newFiscalCalendar(annual []contracts.StatementPeriod) fiscalCalendar {
	cal := fiscalCalendar{}
	counts := make(map[int]int)
	for _, p := range annual {
		if p.EndDate.IsZero() || p.Year == 0 {
			continue
		}
		cal.filings = append(cal.filings, p)
		counts[p.Year-p.EndDate.Year()]++
	}

	best := -1
	for shift, n := range counts {
		if n > best || (n == best && shift > cal.shift) {
			cal.shift, best = shift, n
		}
	}
	return cal
}

// year returns the fiscal year of a period ending at end: the year of the
// filing ending closest to it, else the calendar year adjusted by the
// filings' usual shift.
func (c fiscalCalendar) year(end time.Time) int {
	for _, p := range c.filings {
		d := end.Sub(p.EndDate)
		if d < fiscalMatchWindow && d > -fiscalMatchWindow {
			return p.Year
		}
	}
	return end.Year() + c.shift
}

// CAGR returns the compound annual growth rate over the last years
// intervals of values (oldest first). It is unavailable when years <= 0,
// the series is too short, any value in the span is missing, the start
// value is not positive or the end value is negative.
// ⭐ SSOT: growth rates are computed only here
func CAGR(values []contracts.Float, years int) contracts.Float {
	if years <= 0 || len(values) < years+1 {
		return contracts.None[float64]()
	}

	span := values[len(values)-1-years:]
	for _, v := range span {
		if !v.OK() {
			return contracts.None[float64]()
		}
	}

	v0, _ := span[0].Get()
	v1, _ := span[len(span)-1].Get()
	if v0 <= 0 || v1 < 0 {
		return contracts.None[float64]()
	}
	return contracts.Some(math.Pow(v1/v0, 1/float64(years)) - 1)
}

// quarterKey orders fiscal quarters
type quarterKey struct {
	year    int
	quarter int
}

func (k quarterKey) index() int {
	return k.year*4 + k.quarter - 1
}

// quarterlyRevenue returns three-month revenue per fiscal quarter. Fourth
// quarters are filed on the annual form with full-year figures and are
// derived as the annual total less the first three quarters.
func quarterlyRevenue(record *contracts.RawFinancialRecord) map[quarterKey]float64 {
	quarters := make(map[quarterKey]float64)
	annualTotals := make(map[int]float64)

	for _, p := range record.Quarterly {
		rev, ok := p.Value(contracts.SectionIncome, conceptRevenue...).Get()
		if !ok {
			continue
		}
		switch {
		case p.Quarter == 0, p.Quarter == 4 && strings.HasPrefix(strings.ToUpper(p.Form), "10-K"):
			annualTotals[p.Year] = rev
		case p.Quarter >= 1 && p.Quarter <= 4:
			quarters[quarterKey{p.Year, p.Quarter}] = rev
		}
	}

	for _, p := range record.Annual {
		if _, ok := annualTotals[p.Year]; ok {
			continue
		}
		if rev, ok := p.Value(contracts.SectionIncome, conceptRevenue...).Get(); ok {
			annualTotals[p.Year] = rev
		}
	}

	for year, total := range annualTotals {
		q4 := quarterKey{year, 4}
		if _, ok := quarters[q4]; ok {
			continue
		}
		q1, ok1 := quarters[quarterKey{year, 1}]
		q2, ok2 := quarters[quarterKey{year, 2}]
		q3, ok3 := quarters[quarterKey{year, 3}]
		if ok1 && ok2 && ok3 {
			if v := total - q1 - q2 - q3; v > 0 {
				quarters[q4] = v
			}
		}
	}

	return quarters
}

// QoQAcceleration compares the latest quarter-over-quarter growth with the
// one before it: (q1-q2)/q2 - (q2-q3)/q3 with q1 the latest of three
// consecutive quarters.
func QoQAcceleration(quarters map[quarterKey]float64) contracts.Float {
	if len(quarters) < 3 {
		return contracts.None[float64]()
	}

	keys := make([]quarterKey, 0, len(quarters))
	for k := range quarters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].index() < keys[j].index() })

	n := len(keys)
	k1, k2, k3 := keys[n-1], keys[n-2], keys[n-3]
	if k1.index()-k2.index() != 1 || k2.index()-k3.index() != 1 {
		return contracts.None[float64]()
	}

	q1, q2, q3 := quarters[k1], quarters[k2], quarters[k3]
	if q2 <= 0 || q3 <= 0 {
		return contracts.None[float64]()
	}
	return contracts.Some((q1-q2)/q2 - (q2-q3)/q3)
}

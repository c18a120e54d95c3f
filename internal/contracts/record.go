package contracts

import (
	"sort"
	"time"
)

// DataType identifies one kind of upstream data fragment
type DataType string

const (
	DataProfile             DataType = "profile"
	DataQuote               DataType = "quote"
	DataFinancialsAnnual    DataType = "financials-annual"
	DataFinancialsQuarterly DataType = "financials-quarterly"
	DataBasicFinancials     DataType = "basic-financials"
	DataCandles             DataType = "candles"
	DataInsider             DataType = "insider"
	DataRecommendations     DataType = "recommendations"
	DataEPSEstimates        DataType = "eps-estimates"
	DataSymbols             DataType = "symbols"
)

// AllRecordTypes are the per-symbol fragments a full record is built from
var AllRecordTypes = []DataType{
	DataProfile,
	DataQuote,
	DataFinancialsAnnual,
	DataFinancialsQuarterly,
	DataBasicFinancials,
	DataCandles,
	DataInsider,
	DataRecommendations,
	DataEPSEstimates,
}

// RawFinancialRecord is everything fetched for one symbol. Any fragment may
// be missing; Unavailable records why.
type RawFinancialRecord struct {
	Symbol string    `json:"symbol"`
	AsOf   time.Time `json:"as_of"`

	Profile         *CompanyProfile       `json:"profile,omitempty"`
	Quote           *Quote                `json:"quote,omitempty"`
	Annual          []StatementPeriod     `json:"annual,omitempty"`    // oldest first
	Quarterly       []StatementPeriod     `json:"quarterly,omitempty"` // oldest first
	Ratios          *BasicFinancials      `json:"ratios,omitempty"`
	Prices          []PricePoint          `json:"prices,omitempty"` // daily, oldest first
	Insider         []InsiderTransaction  `json:"insider,omitempty"`
	Recommendations []RecommendationTrend `json:"recommendations,omitempty"` // oldest first
	EPSEstimates    []EPSEstimate         `json:"eps_estimates,omitempty"`   // oldest first

	Unavailable map[DataType]string `json:"unavailable,omitempty"`
}

// MarkUnavailable records why a fragment is missing
func (r *RawFinancialRecord) MarkUnavailable(dt DataType, reason string) {
	if r.Unavailable == nil {
		r.Unavailable = make(map[DataType]string)
	}
	r.Unavailable[dt] = reason
}

// Empty reports whether no fragment at all was obtained
func (r *RawFinancialRecord) Empty() bool {
	return r.Profile == nil && r.Quote == nil && len(r.Annual) == 0 &&
		len(r.Quarterly) == 0 && r.Ratios == nil && len(r.Prices) == 0 &&
		len(r.Insider) == 0 && len(r.Recommendations) == 0 && len(r.EPSEstimates) == 0
}

// CompanyProfile is static company information
type CompanyProfile struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Exchange          string `json:"exchange"`
	Currency          string `json:"currency"`
	Country           string `json:"country"`
	Industry          string `json:"industry"`
	IPO               string `json:"ipo,omitempty"`
	MarketCap         Float  `json:"market_cap"` // USD
	SharesOutstanding Float  `json:"shares_outstanding"`
}

// Quote is the latest daily quote
type Quote struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PrevClose     float64   `json:"prev_close"`
	Time          time.Time `json:"time"`
}

// PricePoint is one OHLCV bar
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Statement sections
const (
	SectionIncome   = "ic"
	SectionBalance  = "bs"
	SectionCashFlow = "cf"
)

// StatementPeriod is one reported filing period. Quarter is 0 for annual
// filings. Sections map a reporting concept to its value.
type StatementPeriod struct {
	Year     int                           `json:"year"`
	Quarter  int                           `json:"quarter"`
	Form     string                        `json:"form"`
	EndDate  time.Time                     `json:"end_date"`
	Sections map[string]map[string]float64 `json:"sections"`
}

// Value returns the first concept present in section
func (p StatementPeriod) Value(section string, concepts ...string) Float {
	values := p.Sections[section]
	for _, c := range concepts {
		if v, ok := values[c]; ok {
			return Some(v)
		}
	}
	return None[float64]()
}

// SortPeriods orders periods oldest first
func SortPeriods(periods []StatementPeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year < periods[j].Year
		}
		return periods[i].Quarter < periods[j].Quarter
	})
}

// SeriesPoint is one value of a ratio time series
type SeriesPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"v"`
}

// BasicFinancials holds point-in-time ratios and their history. Metric
// values are as reported by the provider (percent where the provider uses
// percent); series values are fractions.
type BasicFinancials struct {
	Metric    map[string]float64       `json:"metric"`
	Annual    map[string][]SeriesPoint `json:"annual"`    // oldest first
	Quarterly map[string][]SeriesPoint `json:"quarterly"` // oldest first
}

// MetricValue returns a point-in-time metric
func (b *BasicFinancials) MetricValue(name string) Float {
	if b == nil {
		return None[float64]()
	}
	if v, ok := b.Metric[name]; ok {
		return Some(v)
	}
	return None[float64]()
}

// InsiderTransaction is one reported insider trade
type InsiderTransaction struct {
	Name            string    `json:"name"`
	Share           float64   `json:"share"`
	Change          float64   `json:"change"`
	Code            string    `json:"code"`
	Price           float64   `json:"price"`
	TransactionDate time.Time `json:"transaction_date"`
}

// RecommendationTrend is one period of analyst recommendations
type RecommendationTrend struct {
	Period     time.Time `json:"period"`
	StrongBuy  int       `json:"strong_buy"`
	Buy        int       `json:"buy"`
	Hold       int       `json:"hold"`
	Sell       int       `json:"sell"`
	StrongSell int       `json:"strong_sell"`
}

// Total returns the number of recommendations in the period
func (r RecommendationTrend) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// EPSEstimate is a consensus EPS estimate for a fiscal period
type EPSEstimate struct {
	Period         time.Time `json:"period"`
	Year           int       `json:"year"`
	EPSAvg         float64   `json:"eps_avg"`
	NumberAnalysts int       `json:"number_analysts"`
}

package finnhub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// flexFloat accepts JSON numbers, numeric strings and null. Valid is false
// for null and for strings that are not numbers.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexFloat{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
		if err != nil {
			*f = flexFloat{}
			return nil
		}
		*f = flexFloat{Value: v, Valid: true}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat{Value: v, Valid: true}
	return nil
}

func (f flexFloat) optional() contracts.Float {
	if !f.Valid {
		return contracts.None[float64]()
	}
	return contracts.Some(f.Value)
}

// parseDate accepts the date layouts the provider uses
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Wire types

type profileResponse struct {
	Country              string    `json:"country"`
	Currency             string    `json:"currency"`
	Exchange             string    `json:"exchange"`
	Industry             string    `json:"finnhubIndustry"`
	IPO                  string    `json:"ipo"`
	MarketCapitalization flexFloat `json:"marketCapitalization"` // millions
	Name                 string    `json:"name"`
	ShareOutstanding     flexFloat `json:"shareOutstanding"` // millions
	Ticker               string    `json:"ticker"`
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Time          int64   `json:"t"`
}

type reportedItem struct {
	Concept string    `json:"concept"`
	Unit    string    `json:"unit"`
	Label   string    `json:"label"`
	Value   flexFloat `json:"value"`
}

type reportedFiling struct {
	Year    int    `json:"year"`
	Quarter int    `json:"quarter"`
	Form    string `json:"form"`
	EndDate string `json:"endDate"`
	Report  struct {
		BS []reportedItem `json:"bs"`
		CF []reportedItem `json:"cf"`
		IC []reportedItem `json:"ic"`
	} `json:"report"`
}

type reportedResponse struct {
	Symbol string           `json:"symbol"`
	Data   []reportedFiling `json:"data"`
}

type seriesPoint struct {
	Period string    `json:"period"`
	V      flexFloat `json:"v"`
}

type metricResponse struct {
	Metric map[string]flexFloat `json:"metric"`
	Series struct {
		Annual    map[string][]seriesPoint `json:"annual"`
		Quarterly map[string][]seriesPoint `json:"quarterly"`
	} `json:"series"`
}

type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

type insiderResponse struct {
	Data []struct {
		Name             string    `json:"name"`
		Share            flexFloat `json:"share"`
		Change           flexFloat `json:"change"`
		TransactionDate  string    `json:"transactionDate"`
		TransactionCode  string    `json:"transactionCode"`
		TransactionPrice flexFloat `json:"transactionPrice"`
	} `json:"data"`
	Symbol string `json:"symbol"`
}

type recommendationResponse []struct {
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Period     string `json:"period"`
	Sell       int    `json:"sell"`
	StrongBuy  int    `json:"strongBuy"`
	StrongSell int    `json:"strongSell"`
}

type epsEstimateResponse struct {
	Data []struct {
		EPSAvg         flexFloat `json:"epsAvg"`
		NumberAnalysts int       `json:"numberAnalysts"`
		Period         string    `json:"period"`
		Year           int       `json:"year"`
	} `json:"data"`
}

// SymbolInfo is one entry of the exchange symbol list
type SymbolInfo struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Currency    string `json:"currency"`
	MIC         string `json:"mic"`
}

// Decoders

func decodeProfile(payload []byte) (*contracts.CompanyProfile, error) {
	var r profileResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if r.Ticker == "" && r.Name == "" {
		return nil, fmt.Errorf("decode profile: no company data")
	}

	p := &contracts.CompanyProfile{
		Symbol:   r.Ticker,
		Name:     r.Name,
		Exchange: r.Exchange,
		Currency: r.Currency,
		Country:  r.Country,
		Industry: r.Industry,
		IPO:      r.IPO,
	}
	if r.MarketCapitalization.Valid && r.MarketCapitalization.Value > 0 {
		p.MarketCap = contracts.Some(r.MarketCapitalization.Value * 1e6)
	}
	if r.ShareOutstanding.Valid && r.ShareOutstanding.Value > 0 {
		p.SharesOutstanding = contracts.Some(r.ShareOutstanding.Value * 1e6)
	}
	return p, nil
}

func decodeQuote(payload []byte) (*contracts.Quote, error) {
	var r quoteResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	// Unknown symbols come back as an all-zero quote.
	if r.Current <= 0 {
		return nil, fmt.Errorf("decode quote: no price")
	}

	return &contracts.Quote{
		Price:         r.Current,
		Change:        r.Change,
		PercentChange: r.PercentChange,
		High:          r.High,
		Low:           r.Low,
		Open:          r.Open,
		PrevClose:     r.PrevClose,
		Time:          time.Unix(r.Time, 0).UTC(),
	}, nil
}

func decodeReported(payload []byte) ([]contracts.StatementPeriod, error) {
	var r reportedResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode financials: %w", err)
	}

	sections := func(items []reportedItem) map[string]float64 {
		out := make(map[string]float64, len(items))
		for _, it := range items {
			if it.Value.Valid && it.Concept != "" {
				if _, dup := out[it.Concept]; !dup {
					out[it.Concept] = it.Value.Value
				}
			}
		}
		return out
	}

	// One period per (year, quarter); the most recent filing wins on
	// amendments because the provider lists newest first.
	seen := make(map[[2]int]bool)
	periods := make([]contracts.StatementPeriod, 0, len(r.Data))
	for _, f := range r.Data {
		id := [2]int{f.Year, f.Quarter}
		if f.Year == 0 || seen[id] {
			continue
		}
		seen[id] = true

		end, _ := parseDate(f.EndDate)
		periods = append(periods, contracts.StatementPeriod{
			Year:    f.Year,
			Quarter: f.Quarter,
			Form:    f.Form,
			EndDate: end,
			Sections: map[string]map[string]float64{
				contracts.SectionIncome:   sections(f.Report.IC),
				contracts.SectionBalance:  sections(f.Report.BS),
				contracts.SectionCashFlow: sections(f.Report.CF),
			},
		})
	}

	if len(periods) == 0 {
		return nil, fmt.Errorf("decode financials: no filings")
	}
	contracts.SortPeriods(periods)
	return periods, nil
}

func decodeSeries(in map[string][]seriesPoint) map[string][]contracts.SeriesPoint {
	out := make(map[string][]contracts.SeriesPoint, len(in))
	for name, points := range in {
		series := make([]contracts.SeriesPoint, 0, len(points))
		for _, p := range points {
			t, err := parseDate(p.Period)
			if err != nil || !p.V.Valid {
				continue
			}
			series = append(series, contracts.SeriesPoint{Period: t, Value: p.V.Value})
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Period.Before(series[j].Period) })
		if len(series) > 0 {
			out[name] = series
		}
	}
	return out
}

func decodeBasicFinancials(payload []byte) (*contracts.BasicFinancials, error) {
	var r metricResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}

	metric := make(map[string]float64, len(r.Metric))
	for k, v := range r.Metric {
		if v.Valid {
			metric[k] = v.Value
		}
	}

	b := &contracts.BasicFinancials{
		Metric:    metric,
		Annual:    decodeSeries(r.Series.Annual),
		Quarterly: decodeSeries(r.Series.Quarterly),
	}
	if len(b.Metric) == 0 && len(b.Annual) == 0 && len(b.Quarterly) == 0 {
		return nil, fmt.Errorf("decode metrics: no data")
	}
	return b, nil
}

func decodeCandles(payload []byte) ([]contracts.PricePoint, error) {
	var r candleResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	if r.Status != "ok" {
		return nil, fmt.Errorf("decode candles: status %q", r.Status)
	}

	n := len(r.Time)
	if len(r.Close) != n || len(r.Open) != n || len(r.High) != n || len(r.Low) != n {
		return nil, fmt.Errorf("decode candles: ragged arrays")
	}

	points := make([]contracts.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		if r.Close[i] <= 0 {
			continue
		}
		p := contracts.PricePoint{
			Date:  time.Unix(r.Time[i], 0).UTC(),
			Open:  r.Open[i],
			High:  r.High[i],
			Low:   r.Low[i],
			Close: r.Close[i],
		}
		if i < len(r.Volume) {
			p.Volume = r.Volume[i]
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if len(points) == 0 {
		return nil, fmt.Errorf("decode candles: no bars")
	}
	return points, nil
}

func decodeInsider(payload []byte) ([]contracts.InsiderTransaction, error) {
	var r insiderResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode insider: %w", err)
	}

	txs := make([]contracts.InsiderTransaction, 0, len(r.Data))
	for _, d := range r.Data {
		date, err := parseDate(d.TransactionDate)
		if err != nil {
			continue
		}
		txs = append(txs, contracts.InsiderTransaction{
			Name:            d.Name,
			Share:           d.Share.Value,
			Change:          d.Change.Value,
			Code:            strings.ToUpper(strings.TrimSpace(d.TransactionCode)),
			Price:           d.TransactionPrice.Value,
			TransactionDate: date,
		})
	}
	return txs, nil
}

func decodeRecommendations(payload []byte) ([]contracts.RecommendationTrend, error) {
	var r recommendationResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}

	trends := make([]contracts.RecommendationTrend, 0, len(r))
	for _, d := range r {
		period, err := parseDate(d.Period)
		if err != nil {
			continue
		}
		trends = append(trends, contracts.RecommendationTrend{
			Period:     period,
			StrongBuy:  d.StrongBuy,
			Buy:        d.Buy,
			Hold:       d.Hold,
			Sell:       d.Sell,
			StrongSell: d.StrongSell,
		})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Period.Before(trends[j].Period) })
	return trends, nil
}

func decodeEPSEstimates(payload []byte) ([]contracts.EPSEstimate, error) {
	var r epsEstimateResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode eps estimates: %w", err)
	}

	out := make([]contracts.EPSEstimate, 0, len(r.Data))
	for _, d := range r.Data {
		period, err := parseDate(d.Period)
		if err != nil || !d.EPSAvg.Valid {
			continue
		}
		year := d.Year
		if year == 0 {
			year = period.Year()
		}
		out = append(out, contracts.EPSEstimate{
			Period:         period,
			Year:           year,
			EPSAvg:         d.EPSAvg.Value,
			NumberAnalysts: d.NumberAnalysts,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func decodeSymbols(payload []byte) ([]SymbolInfo, error) {
	var out []SymbolInfo
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	return out, nil
}

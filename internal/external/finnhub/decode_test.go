package finnhub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      float64
		wantValid bool
		wantErr   bool
	}{
		{"number", `12.5`, 12.5, true, false},
		{"negative", `-3`, -3, true, false},
		{"numeric string", `"42.25"`, 42.25, true, false},
		{"thousands separator", `"1,250"`, 1250, true, false},
		{"null", `null`, 0, false, false},
		{"non numeric string", `"N/A"`, 0, false, false},
		{"object", `{}`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexFloat
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, f.Valid)
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-03-31", "2024-03-31 00:00:00", "2024-03-31T00:00:00Z"} {
		d, err := parseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, time.March, d.Month())
	}

	_, err := parseDate("31/03/2024")
	assert.Error(t, err)
}

func TestDecodeReported(t *testing.T) {
	payload := []byte(`{"symbol":"AAPL","data":[
		{"year":2023,"quarter":0,"form":"10-K","endDate":"2023-09-30 00:00:00","report":{
			"ic":[{"concept":"us-gaap_Revenues","value":383285000000},{"concept":"us-gaap_NetIncomeLoss","value":"96995000000"}],
			"bs":[{"concept":"us-gaap_StockholdersEquity","value":62146000000}],
			"cf":[{"concept":"us-gaap_NetCashProvidedByUsedInOperatingActivities","value":null}]}},
		{"year":2023,"quarter":0,"form":"10-K/A","endDate":"2023-09-30","report":{"ic":[{"concept":"us-gaap_Revenues","value":1}]}},
		{"year":2021,"quarter":0,"form":"10-K","endDate":"2021-09-25","report":{"ic":[{"concept":"us-gaap_Revenues","value":365817000000}]}},
		{"year":2022,"quarter":0,"form":"10-K","endDate":"2022-09-24","report":{"ic":[{"concept":"us-gaap_Revenues","value":394328000000}]}}
	]}`)

	periods, err := decodeReported(payload)
	require.NoError(t, err)
	require.Len(t, periods, 3, "duplicate (year, quarter) keeps the first filing")

	assert.Equal(t, []int{2021, 2022, 2023}, []int{periods[0].Year, periods[1].Year, periods[2].Year})

	latest := periods[2]
	assert.Equal(t, 383285000000.0, latest.Value(contracts.SectionIncome, "us-gaap_Revenues").Or(0))
	assert.Equal(t, 96995000000.0, latest.Value(contracts.SectionIncome, "us-gaap_NetIncomeLoss").Or(0))
	assert.Equal(t, 62146000000.0, latest.Value(contracts.SectionBalance, "us-gaap_StockholdersEquity").Or(0))
	assert.False(t, latest.Value(contracts.SectionCashFlow, "us-gaap_NetCashProvidedByUsedInOperatingActivities").OK(),
		"null values are absent, not zero")

	_, err = decodeReported([]byte(`{"data":[]}`))
	assert.Error(t, err)
}

func TestDecodeCandles(t *testing.T) {
	payload := []byte(`{"s":"ok",
		"t":[1704153600,1704067200,1704240000],
		"o":[10,9,0],"h":[11,10,0],"l":[9,8,0],"c":[10.5,9.5,0],"v":[100,90,0]}`)

	points, err := decodeCandles(payload)
	require.NoError(t, err)
	require.Len(t, points, 2, "zero closes are dropped")
	assert.True(t, points[0].Date.Before(points[1].Date))
	assert.Equal(t, 9.5, points[0].Close)
	assert.Equal(t, 100.0, points[1].Volume)

	_, err = decodeCandles([]byte(`{"s":"no_data"}`))
	assert.Error(t, err)

	_, err = decodeCandles([]byte(`{"s":"ok","t":[1,2],"c":[1],"o":[1,2],"h":[1,2],"l":[1,2]}`))
	assert.Error(t, err)
}

func TestDecodeProfileAndQuote(t *testing.T) {
	p, err := decodeProfile([]byte(`{"ticker":"AAPL","name":"Apple Inc","marketCapitalization":"2800000","shareOutstanding":null}`))
	require.NoError(t, err)
	assert.Equal(t, 2.8e12, p.MarketCap.Or(0))
	assert.False(t, p.SharesOutstanding.OK())

	_, err = decodeProfile([]byte(`{"country":"US"}`))
	assert.Error(t, err)

	_, err = decodeQuote([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	assert.Error(t, err, "unknown symbols return an all-zero quote")
}

func TestDecodeInsiderAndEstimates(t *testing.T) {
	txs, err := decodeInsider([]byte(`{"symbol":"TSLA","data":[
		{"name":"A","share":1000,"change":500,"transactionDate":"2024-02-01","transactionCode":"p","transactionPrice":190.5},
		{"name":"B","share":800,"change":-200,"transactionDate":"bad","transactionCode":"S"}]}`))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "P", txs[0].Code)

	recs, err := decodeRecommendations([]byte(`[
		{"period":"2024-05-01","strongBuy":10,"buy":20,"hold":5,"sell":1,"strongSell":0},
		{"period":"2024-04-01","strongBuy":8,"buy":18,"hold":7,"sell":2,"strongSell":1}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, time.April, recs[0].Period.Month())
	assert.Equal(t, 36, recs[1].Total())

	est, err := decodeEPSEstimates([]byte(`{"data":[
		{"epsAvg":7.1,"numberAnalysts":30,"period":"2025-12-31","year":2025},
		{"epsAvg":null,"numberAnalysts":0,"period":"2026-12-31","year":2026},
		{"epsAvg":6.2,"numberAnalysts":32,"period":"2024-12-31"}]}`))
	require.NoError(t, err)
	require.Len(t, est, 2)
	assert.Equal(t, 2024, est[0].Year)
	assert.Equal(t, 7.1, est[1].EPSAvg)
}

package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_JSON(t *testing.T) {
	type payload struct {
		A Float `json:"a"`
		B Float `json:"b"`
		C Flag  `json:"c"`
	}

	data, err := json.Marshal(payload{A: Some(0.0), C: Some(true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0,"b":null,"c":true}`, string(data))

	var back payload
	require.NoError(t, json.Unmarshal(data, &back))

	v, ok := back.A.Get()
	assert.True(t, ok, "explicit zero must stay available")
	assert.Equal(t, 0.0, v)
	assert.False(t, back.B.OK())
	assert.True(t, back.C.Or(false))
}

func TestFirstOK(t *testing.T) {
	tests := []struct {
		name   string
		in     []Float
		want   float64
		wantOK bool
	}{
		{"first available", []Float{Some(1.0), Some(2.0)}, 1.0, true},
		{"skips unavailable", []Float{None[float64](), Some(2.0)}, 2.0, true},
		{"none available", []Float{None[float64](), None[float64]()}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstOK(tt.in...).Get()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatementPeriod_Value(t *testing.T) {
	p := StatementPeriod{
		Year: 2023,
		Sections: map[string]map[string]float64{
			SectionIncome: {"us-gaap_Revenues": 100},
		},
	}

	assert.Equal(t, 100.0, p.Value(SectionIncome, "us-gaap_SalesRevenueNet", "us-gaap_Revenues").Or(-1))
	assert.False(t, p.Value(SectionCashFlow, "us-gaap_Revenues").OK())
}

func TestSortPeriods(t *testing.T) {
	periods := []StatementPeriod{
		{Year: 2023, Quarter: 2},
		{Year: 2022, Quarter: 3},
		{Year: 2023, Quarter: 1},
	}
	SortPeriods(periods)

	assert.Equal(t, 2022, periods[0].Year)
	assert.Equal(t, 1, periods[1].Quarter)
	assert.Equal(t, 2, periods[2].Quarter)
}

func TestRawFinancialRecord_Unavailable(t *testing.T) {
	r := &RawFinancialRecord{Symbol: "AAPL"}
	assert.True(t, r.Empty())

	r.MarkUnavailable(DataInsider, "status_403")
	assert.Equal(t, "status_403", r.Unavailable[DataInsider])

	r.Quote = &Quote{Price: 190}
	assert.False(t, r.Empty())
}

func TestOutcome(t *testing.T) {
	q := Outcome{Candidate: &ScoredCandidate{Symbol: "NVDA", Rank: 3}}
	d := Outcome{Disqualification: &Disqualification{Symbol: "XOM", Reason: ReasonValuation}}

	assert.True(t, q.Qualified())
	assert.Equal(t, "NVDA", q.Symbol())
	assert.True(t, q.Candidate.IsTopRanked(3))
	assert.False(t, q.Candidate.IsTopRanked(2))
	assert.False(t, d.Qualified())
	assert.Equal(t, "XOM", d.Symbol())
}

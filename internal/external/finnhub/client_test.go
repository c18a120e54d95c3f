package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/cache"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/httputil"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

var start = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

var testTTLs = cache.TTLs{
	config.TTLSymbols:      24 * time.Hour,
	config.TTLProfile:      24 * time.Hour,
	config.TTLFinancials:   24 * time.Hour,
	config.TTLMetrics:      12 * time.Hour,
	config.TTLDailyQuote:   time.Hour,
	config.TTLPriceHistory: 24 * time.Hour,
	config.TTLInsider:      24 * time.Hour,
	config.TTLEstimates:    12 * time.Hour,
}

// fakeProvider serves canned bodies per path and counts calls
type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies map[string]string
	status map[string]int
	tokens []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:  make(map[string]int),
		bodies: make(map[string]string),
		status: make(map[string]int),
	}
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if freq := r.URL.Query().Get("freq"); freq != "" {
		key += "?freq=" + freq
	}

	f.mu.Lock()
	f.calls[key]++
	f.tokens = append(f.tokens, r.Header.Get("X-Finnhub-Token"))
	body, ok := f.bodies[key]
	status := f.status[key]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"denied"}`))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(body))
}

func (f *fakeProvider) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newTestClient(t *testing.T, provider *fakeProvider) (*Client, *clock.Fake) {
	t.Helper()
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	clk := clock.NewFake(start)
	cfg := &config.Config{
		Finnhub: config.FinnhubConfig{APIKey: "test-key", BaseURL: server.URL + "/api/v1", Timeout: 5 * time.Second},
		Retry:   config.RetryConfig{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: 2 * time.Second},
	}
	httpClient := httputil.New(cfg, logger.Nop(), clk, nil)
	store := cache.NewMemory(testTTLs, clk, nil)

	return NewClient(cfg, httpClient, store, clk, logger.Nop()), clk
}

func TestFetch_CacheIdempotence(t *testing.T) {
	provider := newFakeProvider()
	provider.bodies["/stock/profile2"] = `{"ticker":"NVDA","name":"NVIDIA Corp","marketCapitalization":3000000}`
	client, clk := newTestClient(t, provider)
	ctx := context.Background()

	first := client.Fetch(ctx, "NVDA", contracts.DataProfile)
	require.False(t, first.Unavailable)
	assert.False(t, first.FromCache)

	clk.Advance(23 * time.Hour)
	second := client.Fetch(ctx, "NVDA", contracts.DataProfile)
	require.False(t, second.Unavailable)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, 1, provider.count("/stock/profile2"), "second fetch within ttl must not hit the network")

	clk.Advance(2 * time.Hour)
	third := client.Fetch(ctx, "NVDA", contracts.DataProfile)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, provider.count("/stock/profile2"))

	for _, tok := range provider.tokens {
		assert.Equal(t, "test-key", tok)
	}
}

func TestFetch_CandleKeyStableAcrossTime(t *testing.T) {
	provider := newFakeProvider()
	provider.bodies["/stock/candle"] = `{"s":"ok","c":[10,11],"o":[10,11],"h":[10,11],"l":[10,11],"v":[1,1],"t":[1700000000,1700086400]}`
	client, clk := newTestClient(t, provider)
	ctx := context.Background()

	client.Fetch(ctx, "AAPL", contracts.DataCandles)
	clk.Advance(time.Hour) // from/to move, cache key must not
	frag := client.Fetch(ctx, "AAPL", contracts.DataCandles)

	assert.True(t, frag.FromCache)
	assert.Equal(t, 1, provider.count("/stock/candle"))
}

func TestFetch_Unavailable(t *testing.T) {
	tests := []struct {
		name       string
		dt         contracts.DataType
		path       string
		body       string
		status     int
		wantReason string
	}{
		{"not found", contracts.DataProfile, "/stock/profile2", "", 0, "status_404"},
		{"premium endpoint", contracts.DataEPSEstimates, "/stock/eps-estimate?freq=annual", "", http.StatusForbidden, "status_403"},
		{"empty object", contracts.DataProfile, "/stock/profile2", `{}`, 0, "empty_payload"},
		{"empty array", contracts.DataRecommendations, "/stock/recommendation", `[]`, 0, "empty_payload"},
		{"no candle data", contracts.DataCandles, "/stock/candle", `{"s":"no_data"}`, 0, "no_data"},
		{"provider error body", contracts.DataQuote, "/quote", `{"error":"Invalid API key"}`, 0, "provider_error"},
		{"exhausted retries", contracts.DataQuote, "/quote", "", http.StatusServiceUnavailable, "retries_exhausted_status_503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider()
			if tt.body != "" {
				provider.bodies[tt.path] = tt.body
			}
			if tt.status != 0 {
				provider.status[tt.path] = tt.status
			}
			client, _ := newTestClient(t, provider)

			frag := client.Fetch(context.Background(), "ZZZZ", tt.dt)
			assert.True(t, frag.Unavailable)
			assert.Equal(t, tt.wantReason, frag.Reason)

			// Failures are never cached.
			client.Fetch(context.Background(), "ZZZZ", tt.dt)
			assert.GreaterOrEqual(t, provider.count(tt.path), 2)
		})
	}
}

func TestFetchRecord_PartialData(t *testing.T) {
	provider := newFakeProvider()
	provider.bodies["/stock/profile2"] = `{"ticker":"MSFT","name":"Microsoft Corp","exchange":"NASDAQ NMS - GLOBAL MARKET","currency":"USD","finnhubIndustry":"Technology","marketCapitalization":3100000,"shareOutstanding":7430}`
	provider.bodies["/quote"] = `{"c":420.5,"d":1.2,"dp":0.29,"h":421,"l":415,"o":416,"pc":419.3,"t":1717430400}`
	provider.bodies["/stock/financials-reported?freq=quarterly"] = `{"data":"not-a-list"}`
	provider.status["/stock/insider-transactions"] = http.StatusForbidden
	client, _ := newTestClient(t, provider)

	record := client.FetchRecord(context.Background(), "msft",
		contracts.DataProfile,
		contracts.DataQuote,
		contracts.DataFinancialsQuarterly,
		contracts.DataInsider,
	)

	assert.Equal(t, "MSFT", record.Symbol)
	assert.Equal(t, start, record.AsOf)
	require.NotNil(t, record.Profile)
	assert.Equal(t, "Microsoft Corp", record.Profile.Name)
	assert.Equal(t, 3.1e12, record.Profile.MarketCap.Or(0))
	require.NotNil(t, record.Quote)
	assert.Equal(t, 420.5, record.Quote.Price)

	assert.Equal(t, "decode_failed", record.Unavailable[contracts.DataFinancialsQuarterly])
	assert.Equal(t, "status_403", record.Unavailable[contracts.DataInsider])
	assert.Len(t, record.Unavailable, 2)
}

func TestFetchRecord_Cancelled(t *testing.T) {
	client, _ := newTestClient(t, newFakeProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record := client.FetchRecord(ctx, "AAPL", contracts.DataProfile, contracts.DataQuote)
	assert.True(t, record.Empty())
	assert.Equal(t, "cancelled", record.Unavailable[contracts.DataProfile])
}

func TestSymbols(t *testing.T) {
	provider := newFakeProvider()
	provider.bodies["/stock/symbol"] = `[{"symbol":"AAPL","description":"APPLE INC","type":"Common Stock","currency":"USD","mic":"XNAS"},{"symbol":"BRK.B","description":"BERKSHIRE","type":"Common Stock","currency":"USD","mic":"XNYS"}]`
	client, _ := newTestClient(t, provider)

	symbols, err := client.Symbols(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "AAPL", symbols[0].Symbol)
	assert.Equal(t, "Common Stock", symbols[0].Type)

	_, err = client.Symbols(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.count("/stock/symbol"))
}

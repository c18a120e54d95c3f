package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/api/handlers"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// fakeScreener replays canned results for any run
type fakeScreener struct {
	results []screener.Result
	metrics map[string]contracts.DerivedMetrics

	mu       sync.Mutex
	latest   map[string]*screener.Run
	running  map[string]string
	requests []screener.Request
	done     chan string
}

func newFakeScreener() *fakeScreener {
	qualified := &contracts.ScoredCandidate{Symbol: "GOOD", Strategy: scoring.NameHyper, CompositeScore: 88, Coverage: 1}
	return &fakeScreener{
		results: []screener.Result{
			{Symbol: "GOOD", Outcome: contracts.Outcome{Candidate: qualified}, Elapsed: 120 * time.Millisecond},
			{Symbol: "BAD", Outcome: contracts.Outcome{Disqualification: &contracts.Disqualification{
				Symbol: "BAD", Strategy: scoring.NameHyper, Filter: "coverage", Reason: contracts.ReasonInsufficientData,
			}}},
		},
		metrics: map[string]contracts.DerivedMetrics{
			"GOOD": {Symbol: "GOOD", RevenueCAGR3Y: contracts.Some(0.45)},
		},
		latest:  make(map[string]*screener.Run),
		running: make(map[string]string),
		done:    make(chan string, 4),
	}
}

func (f *fakeScreener) Screen(ctx context.Context, req screener.Request) (*screener.Run, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var outcomes []contracts.Outcome
	for _, res := range f.results {
		res.RunID = req.RunID
		if req.OnResult != nil {
			req.OnResult(res)
		}
		outcomes = append(outcomes, res.Outcome)
	}

	run := &screener.Run{
		Summary: &screener.Summary{
			RunID:    req.RunID,
			Strategy: req.Strategy,
			Screened: len(f.results),
			Ranking:  scoring.Rank(outcomes),
		},
		Provenance: &strategyconfig.Provenance{RunID: req.RunID, ConfigHash: "abc"},
	}

	f.mu.Lock()
	f.latest[req.Strategy] = run
	f.mu.Unlock()
	f.done <- req.RunID
	return run, nil
}

func (f *fakeScreener) Latest(strategy string) (*screener.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.latest[strategy]
	return run, ok
}

func (f *fakeScreener) Running(strategy string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.running[strategy]
	return id, ok
}

func (f *fakeScreener) Metrics(_ context.Context, symbol string) (contracts.DerivedMetrics, error) {
	m, ok := f.metrics[symbol]
	if !ok {
		return contracts.DerivedMetrics{}, fmt.Errorf("%s: %w", symbol, screener.ErrNoData)
	}
	return m, nil
}

type fakeWriter struct {
	written chan string
}

func (w *fakeWriter) Write(s *screener.Summary, _ *strategyconfig.Provenance) (*report.Files, error) {
	w.written <- s.RunID
	return &report.Files{}, nil
}

type testEnv struct {
	server   *httptest.Server
	screener *fakeScreener
	writer   *fakeWriter
	registry *monitoring.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := newFakeScreener()
	fw := &fakeWriter{written: make(chan string, 4)}
	reg := monitoring.NewRegistry()

	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}

	h := handlers.NewScreenHandler(context.Background(), fs, fw, newID, logger.Nop())
	srv := httptest.NewServer(NewRouter(h, reg, logger.Nop()))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, screener: fs, writer: fw, registry: reg}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
		return ""
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"stock-screener-api"}`, string(body))
}

func TestListStrategies(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.get(t, "/api/strategies")
	assert.JSONEq(t, `{"strategies":["hyperperformance","trend"]}`, string(body))
}

func TestScreenLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/screen/hyperperformance")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no run yet")

	post, err := http.Post(env.server.URL+"/api/screen/hyperperformance?symbols=good,bad,good", "application/json", nil)
	require.NoError(t, err)
	defer post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	var started handlers.RunResponse
	require.NoError(t, json.NewDecoder(post.Body).Decode(&started))
	assert.Equal(t, handlers.RunResponse{RunID: "run-1", Strategy: scoring.NameHyper, Symbols: 2}, started)

	assert.Equal(t, "run-1", waitFor(t, env.screener.done))
	assert.Equal(t, "run-1", waitFor(t, env.writer.written), "report persisted")
	assert.Equal(t, []string{"BAD", "GOOD"}, env.screener.requests[0].Symbols)

	resp, body := env.get(t, "/api/screen/hyperperformance?top=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc report.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, 2, doc.Screened)
	assert.Equal(t, 1, doc.Qualified)
	assert.Equal(t, "abc", doc.Provenance.ConfigHash)
	require.Len(t, doc.Candidates, 1)
	assert.Equal(t, 1, doc.Candidates[0].Rank)
	assert.Equal(t, 1, doc.Reasons[contracts.ReasonInsufficientData])

	resp, body = env.get(t, "/api/screen/hyperperformance/disqualified")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ds []contracts.Disqualification
	require.NoError(t, json.Unmarshal(body, &ds))
	require.Len(t, ds, 1)
	assert.Equal(t, "BAD", ds[0].Symbol)
}

func TestScreen_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/screen/momentum")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.screener.running[scoring.NameTrend] = "busy-run"

	resp, body := env.get(t, "/api/screen/trend")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, string(body), "busy-run")

	post, err := http.Post(env.server.URL+"/api/screen/trend", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusConflict, post.StatusCode)
	assert.Empty(t, env.screener.requests, "no run started while busy")
}

func TestGetMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/metrics/good")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "GOOD", m["symbol"])
	assert.Equal(t, 0.45, m["revenue_cagr_3yr"])
	assert.Nil(t, m["eps_cagr_3yr"], "unavailable metric is null")

	resp, body = env.get(t, "/api/metrics/NOPE")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "no data")
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SymbolProcessed(scoring.NameTrend, screener.OutcomeQualified)

	resp, body := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `screener_symbols_processed_total{outcome="qualified",strategy="trend"} 1`)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/stream/hyperperformance?symbols=GOOD,BAD"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msgs []handlers.StreamMessage
	for {
		var msg handlers.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		msgs = append(msgs, msg)
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, handlers.MessageStarted, msgs[0].Type)
	assert.Equal(t, "run-1", msgs[0].RunID)

	assert.Equal(t, handlers.MessageResult, msgs[1].Type)
	assert.Equal(t, "GOOD", msgs[1].Symbol)
	require.NotNil(t, msgs[1].Candidate)
	assert.Equal(t, int64(120), msgs[1].ElapsedMs)

	assert.Equal(t, "BAD", msgs[2].Symbol)
	require.NotNil(t, msgs[2].Disqualification)
	assert.Equal(t, contracts.ReasonInsufficientData, msgs[2].Disqualification.Reason)

	summary := msgs[3]
	assert.Equal(t, handlers.MessageSummary, summary.Type)
	assert.Equal(t, 2, summary.Screened)
	assert.Equal(t, 1, summary.Qualified)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, "GOOD", summary.Candidates[0].Symbol)

	assert.Equal(t, "run-1", waitFor(t, env.writer.written))
}

func TestStream_UnknownStrategy(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/stream/momentum"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package monitoring

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.CacheHit("financials")
	r.CacheHit("financials")
	r.CacheMiss("daily-quote")
	r.ProviderRequest("profile", "ok")
	r.ProviderRetry("status_429")
	r.SymbolProcessed("hyper", "qualified")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheHits.WithLabelValues("financials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheMisses.WithLabelValues("daily-quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderRequests.WithLabelValues("profile", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderRetries.WithLabelValues("status_429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SymbolsProcessed.WithLabelValues("hyper", "qualified")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.CacheHit("financials")
	r.ObserveRateLimitWait(time.Second)
	r.ObserveRun("trend", time.Minute)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.CacheMiss("profile")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "screener_cache_misses_total"))
}

// Package finnhub is the DataClient: it fetches provider data through the
// response cache, the shared rate limiter and the retrying HTTP client.
package finnhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/cache"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/httputil"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Defaults for history windows
const (
	DefaultPriceYears      = 5
	DefaultInsiderLookback = 730 // days requested; the metrics engine narrows further
)

// Client handles communication with the Finnhub REST API
// ⭐ SSOT: Finnhub calls happen only in this package
type Client struct {
	http    *httputil.Client
	cache   cache.Store
	clock   clock.Clock
	logger  *logger.Logger
	apiKey  string
	baseURL string

	priceYears  int
	insiderDays int
}

// NewClient creates a DataClient
func NewClient(cfg *config.Config, httpClient *httputil.Client, store cache.Store, clk clock.Clock, log *logger.Logger) *Client {
	return &Client{
		http:        httpClient,
		cache:       store,
		clock:       clk,
		logger:      log.WithField("module", "finnhub"),
		apiKey:      cfg.Finnhub.APIKey,
		baseURL:     strings.TrimRight(cfg.Finnhub.BaseURL, "/"),
		priceYears:  DefaultPriceYears,
		insiderDays: DefaultInsiderLookback,
	}
}

// WithPriceYears sets how many years of daily candles are requested
func (c *Client) WithPriceYears(years int) *Client {
	if years > 0 {
		c.priceYears = years
	}
	return c
}

// Fragment is one fetched data type. Exactly one of Payload or Unavailable
// is meaningful.
type Fragment struct {
	DataType    contracts.DataType
	Payload     []byte
	FromCache   bool
	Unavailable bool
	Reason      string
}

func unavailable(dt contracts.DataType, reason string) Fragment {
	return Fragment{DataType: dt, Unavailable: true, Reason: reason}
}

// endpoint describes how one data type is requested and cached
type endpoint struct {
	path     string
	category string
	// keyParams identify the request in the cache; they must be stable
	// across runs so that time-relative requests still hit.
	keyParams func(c *Client) url.Values
	// query builds the actual request parameters at time now
	query func(c *Client, symbol string, now time.Time) url.Values
}

func symbolQuery(extra url.Values) func(*Client, string, time.Time) url.Values {
	return func(_ *Client, symbol string, _ time.Time) url.Values {
		q := url.Values{"symbol": {symbol}}
		for k, v := range extra {
			q[k] = v
		}
		return q
	}
}

var endpoints = map[contracts.DataType]endpoint{
	contracts.DataProfile: {
		path:     "/stock/profile2",
		category: config.TTLProfile,
		query:    symbolQuery(nil),
	},
	contracts.DataQuote: {
		path:     "/quote",
		category: config.TTLDailyQuote,
		query:    symbolQuery(nil),
	},
	contracts.DataFinancialsAnnual: {
		path:     "/stock/financials-reported",
		category: config.TTLFinancials,
		query:    symbolQuery(url.Values{"freq": {"annual"}}),
	},
	contracts.DataFinancialsQuarterly: {
		path:     "/stock/financials-reported",
		category: config.TTLFinancials,
		query:    symbolQuery(url.Values{"freq": {"quarterly"}}),
	},
	contracts.DataBasicFinancials: {
		path:     "/stock/metric",
		category: config.TTLMetrics,
		query:    symbolQuery(url.Values{"metric": {"all"}}),
	},
	contracts.DataCandles: {
		path:     "/stock/candle",
		category: config.TTLPriceHistory,
		keyParams: func(c *Client) url.Values {
			return url.Values{"resolution": {"D"}, "years": {strconv.Itoa(c.priceYears)}}
		},
		query: func(c *Client, symbol string, now time.Time) url.Values {
			from := now.AddDate(-c.priceYears, 0, 0)
			return url.Values{
				"symbol":     {symbol},
				"resolution": {"D"},
				"from":       {strconv.FormatInt(from.Unix(), 10)},
				"to":         {strconv.FormatInt(now.Unix(), 10)},
			}
		},
	},
	contracts.DataInsider: {
		path:     "/stock/insider-transactions",
		category: config.TTLInsider,
		keyParams: func(c *Client) url.Values {
			return url.Values{"days": {strconv.Itoa(c.insiderDays)}}
		},
		query: func(c *Client, symbol string, now time.Time) url.Values {
			return url.Values{
				"symbol": {symbol},
				"from":   {now.AddDate(0, 0, -c.insiderDays).Format("2006-01-02")},
				"to":     {now.Format("2006-01-02")},
			}
		},
	},
	contracts.DataRecommendations: {
		path:     "/stock/recommendation",
		category: config.TTLEstimates,
		query:    symbolQuery(nil),
	},
	contracts.DataEPSEstimates: {
		path:     "/stock/eps-estimate",
		category: config.TTLEstimates,
		query:    symbolQuery(url.Values{"freq": {"annual"}}),
	},
	contracts.DataSymbols: {
		path:     "/stock/symbol",
		category: config.TTLSymbols,
		query: func(_ *Client, exchange string, _ time.Time) url.Values {
			return url.Values{"exchange": {exchange}}
		},
	},
}

// Fetch returns one data type for symbol: from the cache when fresh,
// otherwise from the provider, caching what it gets. Failures are reported
// as an unavailable fragment, never as an error.
func (c *Client) Fetch(ctx context.Context, symbol string, dt contracts.DataType) Fragment {
	ep, ok := endpoints[dt]
	if !ok {
		return unavailable(dt, "unsupported_data_type")
	}

	var keyParams url.Values
	if ep.keyParams != nil {
		keyParams = ep.keyParams(c)
	} else {
		keyParams = ep.query(c, symbol, time.Time{})
		keyParams.Del("symbol")
		keyParams.Del("exchange")
	}
	key := cache.Key(dt, symbol, keyParams)

	if payload, ok := c.cache.Get(ctx, key, ep.category); ok {
		return Fragment{DataType: dt, Payload: payload, FromCache: true}
	}

	reqURL := c.baseURL + ep.path + "?" + ep.query(c, symbol, c.clock.Now()).Encode()
	resp, err := c.http.Get(ctx, string(dt), reqURL, http.Header{"X-Finnhub-Token": {c.apiKey}})
	if err != nil {
		reason := failureReason(err)
		c.logger.WithFields(map[string]interface{}{
			"symbol":    symbol,
			"data_type": string(dt),
			"reason":    reason,
		}).Debug("Data type unavailable")
		return unavailable(dt, reason)
	}

	if reason := emptyReason(resp.Body); reason != "" {
		return unavailable(dt, reason)
	}

	if err := c.cache.Put(ctx, key, ep.category, resp.Body); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}

	return Fragment{DataType: dt, Payload: resp.Body}
}

// failureReason maps a transport error to a reason code
func failureReason(err error) string {
	var se *httputil.StatusError
	switch {
	case errors.As(err, &se) && se.Permanent():
		return fmt.Sprintf("status_%d", se.StatusCode)
	case errors.As(err, &se):
		return fmt.Sprintf("retries_exhausted_status_%d", se.StatusCode)
	case errors.Is(err, httputil.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "network_error"
	}
}

// emptyReason reports why a 2xx body carries no usable data
func emptyReason(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return "empty_payload"
	case bytes.Equal(trimmed, []byte("{}")), bytes.Equal(trimmed, []byte("[]")):
		return "empty_payload"
	case !json.Valid(trimmed):
		return "malformed_payload"
	}

	if trimmed[0] == '{' {
		var probe struct {
			Error  string `json:"error"`
			Status string `json:"s"`
		}
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if probe.Error != "" {
				return "provider_error"
			}
			if probe.Status == "no_data" {
				return "no_data"
			}
		}
	}
	return ""
}

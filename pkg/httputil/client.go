package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 32 << 20

// ErrCircuitOpen is returned while the circuit breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker open")

// Acquirer grants permission for one outbound call
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// StatusError reports a non-2xx response that was not recovered by retries
type StatusError struct {
	StatusCode int
	Attempts   int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d after %d attempt(s): %s", e.StatusCode, e.Attempts, e.Body)
}

// Permanent reports whether retrying could not help
func (e *StatusError) Permanent() bool {
	return !IsRetryableError(e.StatusCode)
}

// Client is an HTTP client wrapper with pacing, retry and circuit breaking
// ⭐ SSOT: every provider HTTP request goes through this client
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	retryConfig RetryConfig
	limiter     Acquirer
	breaker     *gobreaker.CircuitBreaker
	clock       clock.Clock
	metrics     *monitoring.Registry
}

// New creates a client from config
func New(cfg *config.Config, log *logger.Logger, clk clock.Clock, metrics *monitoring.Registry) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Finnhub.Timeout,
		},
		logger: log.WithField("module", "httputil"),
		retryConfig: RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Enabled:      true,
		},
		clock:   clk,
		metrics: metrics,
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	if c.retryConfig.MaxAttempts <= 0 {
		c.retryConfig.MaxAttempts = 1
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "finnhub",
			MaxRequests: 1,
			Timeout:     cfg.Breaker.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				var se *StatusError
				if errors.As(err, &se) {
					return se.Permanent()
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.WithFields(map[string]interface{}{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
	}

	return c
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxAttempts int, initialDelay, maxDelay time.Duration) *Client {
	c.retryConfig = RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Enabled:      true,
	}
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// WithRateLimiter gates every attempt on limiter
func (c *Client) WithRateLimiter(limiter Acquirer) *Client {
	c.limiter = limiter
	return c
}

// Get performs a GET request. label names the request in logs and metrics.
// Transient failures (network errors, timeouts, 429, 5xx) are retried with
// exponential backoff, waiting at least the provider's reset window on 429.
func (c *Client) Get(ctx context.Context, label, rawURL string, header http.Header) (*Response, error) {
	state := newRetryState(c.retryConfig)
	log := c.logger.WithFields(map[string]interface{}{
		"label": label,
		"url":   redact(rawURL),
	})

	for {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		state.begin()
		startTime := c.clock.Now()
		resp, err := c.attempt(ctx, rawURL, header)
		if resp != nil {
			resp.Attempts = state.attempt
		}

		var (
			result outcome
			hint   time.Duration
		)
		switch {
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.ProviderRequest(label, "circuit_open")
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			result = outcomeTransient
		default:
			result = classifyStatus(resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				hint = resetHint(resp.Header, c.clock.Now())
			}
		}

		switch result {
		case outcomeSuccess:
			c.metrics.ProviderRequest(label, "ok")
			log.WithFields(map[string]interface{}{
				"status_code": resp.StatusCode,
				"attempt":     state.attempt,
				"duration":    c.clock.Now().Sub(startTime).String(),
			}).Debug("HTTP request completed")
			return resp, nil

		case outcomePermanent:
			c.metrics.ProviderRequest(label, "permanent")
			return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: state.attempt, Body: snippet(resp.Body)}
		}

		reason := "network"
		if err == nil {
			reason = fmt.Sprintf("status_%d", resp.StatusCode)
		}
		c.metrics.ProviderRequest(label, "transient")

		if !state.fail(c.clock.Now(), hint) {
			log.WithField("attempts", state.attempt).Warn("HTTP request failed, retries exhausted")
			if err != nil {
				return nil, fmt.Errorf("%s failed after %d attempt(s): %w", label, state.attempt, err)
			}
			return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: state.attempt, Body: snippet(resp.Body)}
		}

		c.metrics.ProviderRetry(reason)
		log.WithFields(map[string]interface{}{
			"attempt":       state.attempt,
			"reason":        reason,
			"next_eligible": state.nextEligible.Format(time.RFC3339),
		}).Warn("Retrying HTTP request")

		if err := c.clock.SleepUntil(ctx, state.nextEligible); err != nil {
			return nil, err
		}
	}
}

// attempt performs a single HTTP round trip through the breaker
func (c *Client) attempt(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	run := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create GET request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}
		if IsRetryableError(resp.StatusCode) {
			// Counted as a failure by the breaker; the caller still sees resp.
			return resp, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}

	if c.breaker == nil {
		out, err := run()
		return unwrap(out, err)
	}

	out, err := c.breaker.Execute(run)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return unwrap(out, err)
}

// unwrap turns a retryable status back into a response for classification
func unwrap(out interface{}, err error) (*Response, error) {
	resp, _ := out.(*Response)
	var se *StatusError
	if resp != nil && errors.As(err, &se) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// redact drops credentials from a URL before it is logged
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

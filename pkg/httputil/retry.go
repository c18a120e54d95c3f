package httputil

import (
	"net/http"
	"strconv"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts  int // total attempts including the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// outcome classifies one attempt
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTransient
	outcomePermanent
)

// retryState is the explicit retry state machine for one logical request
type retryState struct {
	cfg          RetryConfig
	attempt      int       // attempts made so far
	nextEligible time.Time // earliest instant of the next attempt
}

func newRetryState(cfg RetryConfig) *retryState {
	return &retryState{cfg: cfg}
}

// begin records that an attempt is being made
func (s *retryState) begin() {
	s.attempt++
}

// backoff returns InitialDelay * 2^(attempt-1), capped at MaxDelay
func (s *retryState) backoff() time.Duration {
	d := s.cfg.InitialDelay
	for i := 1; i < s.attempt; i++ {
		d *= 2
		if d >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if d > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return d
}

// fail transitions after a transient failure at now. It returns false when
// no attempts remain. hint is the provider's reset window, if any, and
// takes precedence when it is longer than the backoff.
func (s *retryState) fail(now time.Time, hint time.Duration) bool {
	if !s.cfg.Enabled || s.attempt >= s.cfg.MaxAttempts {
		return false
	}

	wait := s.backoff()
	if hint > wait {
		wait = hint
	}
	s.nextEligible = now.Add(wait)
	return true
}

// IsRetryableError checks if a status code should be retried
func IsRetryableError(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

func classifyStatus(statusCode int) outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return outcomeSuccess
	case IsRetryableError(statusCode):
		return outcomeTransient
	default:
		return outcomePermanent
	}
}

// resetHint reads the provider's rate limit reset window from Retry-After
// (seconds or HTTP date) or X-Ratelimit-Reset (unix seconds).
func resetHint(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil && t.After(now) {
			return t.Sub(now)
		}
	}

	if v := h.Get("X-Ratelimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if reset := time.Unix(epoch, 0); reset.After(now) {
				return reset.Sub(now)
			}
		}
	}

	return 0
}

// Package ratelimit paces outbound provider calls so that no rolling
// window ever carries more than the configured ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// Acquirer grants permission for one outbound call
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Config defines the ceiling
type Config struct {
	Ceiling int           // maximum calls per Window
	Window  time.Duration // rolling window length
	Burst   int           // token bucket burst for smooth pacing
}

// Limiter combines a token bucket for smooth pacing with a sliding window
// log that enforces the hard ceiling.
// ⭐ SSOT: the single gate for provider calls
type Limiter struct {
	mu      sync.Mutex
	pacer   *rate.Limiter
	grants  []time.Time // reserved slots, ascending
	cfg     Config
	clock   clock.Clock
	logger  *logger.Logger
	metrics *monitoring.Registry
}

// New creates a limiter
func New(cfg Config, clk clock.Clock, log *logger.Logger, metrics *monitoring.Registry) (*Limiter, error) {
	if cfg.Ceiling <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit ceiling and window must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Burst > cfg.Ceiling {
		cfg.Burst = cfg.Ceiling
	}

	every := cfg.Window / time.Duration(cfg.Ceiling)
	return &Limiter{
		pacer:   rate.NewLimiter(rate.Every(every), cfg.Burst),
		grants:  make([]time.Time, 0, cfg.Ceiling),
		cfg:     cfg,
		clock:   clk,
		logger:  log.WithField("module", "ratelimit"),
		metrics: metrics,
	}, nil
}

// Acquire blocks until one more call may be issued. A cancelled context
// returns its error; the reserved slot stays counted.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.clock.Now()
	at := l.reserve(now)
	wait := at.Sub(now)
	l.metrics.ObserveRateLimitWait(wait)

	if wait <= 0 {
		return nil
	}

	if wait > time.Second {
		l.logger.WithField("wait", wait.String()).Debug("Waiting for rate limit slot")
	}
	return l.clock.SleepUntil(ctx, at)
}

// reserve books the earliest slot at or after now that satisfies both the
// pacing bucket and the window ceiling. Slots are handed out in ascending
// order.
func (l *Limiter) reserve(now time.Time) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := now
	if n := len(l.grants); n > 0 && l.grants[n-1].After(at) {
		at = l.grants[n-1]
	}

	r := l.pacer.ReserveN(at, 1)
	if d := r.DelayFrom(at); d > 0 {
		at = at.Add(d)
	}

	// Windows are closed, so a grant exactly W before at still counts.
	l.prune(at.Add(-l.cfg.Window))

	if len(l.grants) >= l.cfg.Ceiling {
		// Move past the point where the oldest blocking grant leaves the window.
		oldest := l.grants[len(l.grants)-l.cfg.Ceiling]
		if earliest := oldest.Add(l.cfg.Window + time.Millisecond); earliest.After(at) {
			at = earliest
		}
		l.prune(at.Add(-l.cfg.Window))
	}

	l.grants = append(l.grants, at)
	return at
}

func (l *Limiter) prune(cutoff time.Time) {
	i := 0
	for i < len(l.grants) && l.grants[i].Before(cutoff) {
		i++
	}
	l.grants = l.grants[i:]
}

// InWindow returns how many retained grants fall in the closed window
// ending at t
func (l *Limiter) InWindow(t time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := t.Add(-l.cfg.Window)
	n := 0
	for _, g := range l.grants {
		if !g.Before(cutoff) && !g.After(t) {
			n++
		}
	}
	return n
}

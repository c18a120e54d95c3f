package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/cache"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/external/finnhub"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/metrics"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/ratelimit"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/universe"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/httputil"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/redis"
)

// universeFlags select where the symbol list comes from
type universeFlags struct {
	symbols      []string
	file         string
	htmlURL      string
	htmlSelector string
	htmlColumn   int
	exchange     string
	limit        int
}

func (u *universeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&u.symbols, "symbols", nil, "explicit symbols, comma separated")
	cmd.Flags().StringVar(&u.file, "file", "", "symbol list file, one or more per line")
	cmd.Flags().StringVar(&u.htmlURL, "html-url", "", "page with an HTML table of symbols")
	cmd.Flags().StringVar(&u.htmlSelector, "html-selector", "table", "CSS selector of the symbol table")
	cmd.Flags().IntVar(&u.htmlColumn, "html-column", 0, "zero-based symbol column of the table")
	cmd.Flags().StringVar(&u.exchange, "exchange", "US", "provider exchange code for the default universe")
	cmd.Flags().IntVar(&u.limit, "limit", 0, "screen only the first N symbols (0 = all)")
}

// app holds every shared resource of one CLI invocation
// ⭐ SSOT: all dependencies are constructed here and injected
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	clock        clock.Clock
	metrics      *monitoring.Registry
	strategies   *strategyconfig.Config
	strategyYAML []byte
	http         *httputil.Client
	client       *finnhub.Client
	source       contracts.UniverseSource
	service      *screener.Service
	writer       *report.Writer

	closers []func() error
}

// newApp loads configuration and wires the screening stack
func newApp(ctx context.Context, u *universeFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if strategyConfig != "" {
		cfg.Screener.StrategyConfig = strategyConfig
	}

	a := &app{
		cfg:   cfg,
		log:   logger.New(cfg),
		clock: clock.New(),
	}
	if cfg.MetricsEnabled {
		a.metrics = monitoring.NewRegistry()
	}

	a.strategies, a.strategyYAML, err = strategyconfig.Load(cfg.Screener.StrategyConfig)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	for _, w := range strategyconfig.Warn(a.strategies) {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}

	store, limiter, err := a.openBackends(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.http = httputil.New(cfg, a.log, a.clock, a.metrics).WithRateLimiter(limiter)
	a.client = finnhub.NewClient(cfg, a.http, store, a.clock, a.log).WithPriceYears(historyYears)

	a.source, err = a.universe(u)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := metrics.NewEngine(a.strategies, a.log)
	pipeline := screener.NewPipeline(a.client, engine, cfg.Screener.BenchmarkSymbol, a.log)
	a.service = screener.NewService(
		pipeline,
		a.strategies,
		a.strategyYAML,
		screener.Config{Workers: cfg.Screener.Workers, SymbolTimeout: cfg.Screener.SymbolTimeout},
		a.source,
		a.clock,
		a.metrics,
		a.log,
	)
	a.writer = report.NewWriter(cfg.Screener.OutputDir, a.log)

	a.log.WithFields(map[string]interface{}{
		"cache":      cfg.Cache.Backend,
		"rate_limit": cfg.RateLimit.Backend,
		"per_minute": cfg.RateLimit.PerMinute,
		"workers":    cfg.Screener.Workers,
		"config_id":  a.strategies.Meta.ConfigID,
	}).Debug("Screener initialized")

	return a, nil
}

// openBackends opens the response cache and the rate limiter selected by
// configuration
func (a *app) openBackends(ctx context.Context) (cache.Store, httputil.Acquirer, error) {
	cfg := a.cfg

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		rdb = client
		a.closers = append(a.closers, client.Close)
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		store = redis.NewCache(rdb, "screener", cfg.Cache.TTL, a.clock, a.log)
	case "memory":
		store = cache.NewMemory(cfg.Cache.TTL, a.clock, a.metrics)
	default:
		sqlite, err := cache.Open(cache.DefaultPath(cfg.Cache.Dir), cfg.Cache.TTL, a.clock, a.log, a.metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		a.closers = append(a.closers, sqlite.Close)
		store = sqlite
	}

	if cfg.RateLimit.Backend == "redis" {
		limiter := redis.NewRateLimiter(rdb, "screener", a.clock).Bind(redis.FinnhubRateLimit(cfg.RateLimit.PerMinute))
		return store, limiter, nil
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Ceiling: cfg.RateLimit.PerMinute,
		Window:  time.Minute,
		Burst:   cfg.RateLimit.Burst,
	}, a.clock, a.log, a.metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("create rate limiter: %w", err)
	}
	return store, limiter, nil
}

// universe builds the symbol source from flags; the provider's US common
// stock list is the default
func (a *app) universe(u *universeFlags) (contracts.UniverseSource, error) {
	if u == nil {
		return universe.NewProviderSource(a.client, "US", a.log), nil
	}

	var source contracts.UniverseSource
	switch {
	case len(u.symbols) > 0:
		source = universe.Static(u.symbols)
	case u.file != "":
		source = universe.FileSource{Path: u.file}
	case u.htmlURL != "":
		if !strings.HasPrefix(u.htmlURL, "http") {
			return nil, fmt.Errorf("--html-url must be an http(s) URL")
		}
		// Scraping is not a provider call and bypasses the limiter
		scraper := httputil.New(a.cfg, a.log, a.clock, a.metrics)
		source = universe.NewHTMLTableSource(scraper, u.htmlURL, u.htmlSelector, u.htmlColumn)
	default:
		source = universe.NewProviderSource(a.client, u.exchange, a.log)
	}

	if u.limit > 0 {
		source = universe.Limited{Source: source, N: u.limit}
	}
	return source, nil
}

// Close releases the cache and Redis connections
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}

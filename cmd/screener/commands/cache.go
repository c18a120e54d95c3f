package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/cache"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local response cache",
	Long: `Manages the SQLite response cache. Entries are never deleted
automatically; stale entries are refetched on the next read.

Subcommands:
  stats   - entries per category, fresh and stale
  clear   - delete entries (all, or one category)

Example:
  go run ./cmd/screener cache stats
  go run ./cmd/screener cache clear --category price-history`,
}

var (
	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache entries per category",
		RunE:  runCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete cache entries",
		RunE:  runCacheClear,
	}

	cacheCategory string
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cacheCategory, "category", "", "only this ttl category")
}

// openLocalCache opens the SQLite cache without requiring provider
// credentials
func openLocalCache() (*cache.SQLiteStore, *config.Config, error) {
	cfg, err := config.LoadLocal()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	store, err := cache.Open(cache.DefaultPath(cfg.Cache.Dir), cfg.Cache.TTL, clock.New(), logger.New(cfg), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return store, cfg, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, cfg, err := openLocalCache()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "Response cache", [][2]string{
		{"Path", cache.DefaultPath(cfg.Cache.Dir)},
	})

	if len(stats) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  (empty)"))
		return nil
	}

	rows := make([][]string, 0, len(stats)+1)
	total := cache.Stats{Category: "total"}
	for _, s := range stats {
		rows = append(rows, []string{
			s.Category,
			cfg.Cache.TTL[s.Category].String(),
			fmt.Sprintf("%d", s.Entries),
			fmt.Sprintf("%d", s.Fresh),
			fmt.Sprintf("%d", s.Stale),
		})
		total.Entries += s.Entries
		total.Fresh += s.Fresh
		total.Stale += s.Stale
	}
	rows = append(rows, []string{
		total.Category, "",
		fmt.Sprintf("%d", total.Entries),
		fmt.Sprintf("%d", total.Fresh),
		fmt.Sprintf("%d", total.Stale),
	})

	fmt.Fprint(out, table([]string{"CATEGORY", "TTL", "ENTRIES", "FRESH", "STALE"}, rows))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, cfg, err := openLocalCache()
	if err != nil {
		return err
	}
	defer store.Close()

	if cacheCategory != "" {
		if _, ok := cfg.Cache.TTL[cacheCategory]; !ok {
			return fmt.Errorf("unknown cache category %q", cacheCategory)
		}
	}

	removed, err := store.Clear(cmd.Context(), cacheCategory)
	if err != nil {
		return err
	}

	scope := "all categories"
	if cacheCategory != "" {
		scope = cacheCategory
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✅ Removed %d entries (%s)", removed, scope)))
	return nil
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/external/finnhub"
)

var (
	// Global flags
	strategyConfig string
	verbose        bool
	historyYears   int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Growth and trend stock screener",
	Long: `Stock Screener CLI

Screens US-listed stocks with two strategies:
  hyperperformance  revenue/EPS CAGR, margins, returns, sentiment and moat
  trend             long-horizon trend durability with qualification filters

Provider responses are cached locally and every call is rate limited.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener screen hyperperformance --limit 50
  go run ./cmd/screener screen trend --symbols NVDA,MSFT,AAPL
  go run ./cmd/screener metrics NVDA
  go run ./cmd/screener cache stats
  go run ./cmd/screener api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyConfig, "strategy-config", "", "strategy YAML (default is STRATEGY_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().IntVar(&historyYears, "history-years", finnhub.DefaultPriceYears, "years of daily prices requested per symbol")
}

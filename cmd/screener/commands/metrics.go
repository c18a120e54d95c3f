package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics SYMBOL",
	Short: "Show derived metrics for one symbol",
	Long: `Fetches (or reads from cache) every data type for one symbol and prints
the derived metrics the strategies score. Unavailable metrics print as n/a.

Example:
  go run ./cmd/screener metrics NVDA
  go run ./cmd/screener metrics NVDA --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMetrics,
}

var metricsJSON bool

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "print JSON instead of a table")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	ctx := cmd.Context()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.service.Metrics(ctx, symbol)
	if err != nil {
		return fmt.Errorf("metrics for %s: %w", symbol, err)
	}

	out := cmd.OutOrStdout()
	if metricsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	PrintMetrics(out, m)
	return nil
}

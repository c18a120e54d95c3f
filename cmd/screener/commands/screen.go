package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen [hyperperformance|trend]",
	Short: "Screen the universe and write a ranked report",
	Long: `Screens every symbol of the universe with one strategy, prints the top
candidates and writes JSON and CSV reports to OUTPUT_DIR.

The universe defaults to the provider's US common stock list. Use one of
--symbols, --file or --html-url to screen a different list, and --limit to
cap its size. Ctrl+C stops feeding new symbols and reports what finished.

Example:
  go run ./cmd/screener screen hyperperformance --limit 100
  go run ./cmd/screener screen trend --symbols NVDA,MSFT,AAPL --top 10
  go run ./cmd/screener screen trend --file watchlist.txt`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: scoring.Names,
	RunE:      runScreen,
}

var (
	screenUniverse universeFlags
	screenTop      int
	screenNoReport bool
	screenQuiet    bool
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenUniverse.register(screenCmd)
	screenCmd.Flags().IntVar(&screenTop, "top", 25, "candidates to print (0 = all)")
	screenCmd.Flags().BoolVar(&screenNoReport, "no-report", false, "skip writing report files")
	screenCmd.Flags().BoolVarP(&screenQuiet, "quiet", "q", false, "no per-symbol progress")
}

func runScreen(cmd *cobra.Command, args []string) error {
	strategy := args[0]
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, &screenUniverse)
	if err != nil {
		return err
	}
	defer a.Close()

	symbols, err := a.source.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(symbols) == 0 {
		PrintWarning(out, "Universe is empty, nothing to screen")
		return nil
	}

	PrintHeader(out, "Screen: "+strategy, [][2]string{
		{"Symbols", fmt.Sprintf("%d", len(symbols))},
		{"Workers", fmt.Sprintf("%d", a.cfg.Screener.Workers)},
		{"Config", a.strategies.Meta.ConfigID},
		{"Started", a.clock.Now().Format(time.RFC3339)},
	})

	done := 0
	started := a.clock.Now()
	run, err := a.service.Screen(ctx, screener.Request{
		Strategy: strategy,
		Symbols:  symbols,
		OnResult: func(res screener.Result) {
			done++
			if !screenQuiet {
				PrintProgress(out, strategy, res, done, len(symbols))
			}
		},
	})
	switch {
	case errors.Is(err, context.Canceled) && run != nil:
		PrintWarning(out, fmt.Sprintf("Interrupted after %d of %d symbols", done, len(symbols)))
	case err != nil:
		return err
	}

	summary := run.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%d of %d qualified in %s\n\n",
		len(summary.Ranking.Candidates), summary.Screened, a.clock.Now().Sub(started).Round(time.Second))
	PrintCandidates(out, summary.Ranking.Top(screenTop))
	PrintReasons(out, summary.ReasonCounts())

	if screenNoReport {
		return nil
	}
	files, err := a.writer.Write(summary, run.Provenance)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	PrintFiles(out, files)
	return nil
}

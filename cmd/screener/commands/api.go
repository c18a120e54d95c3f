package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/api"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                              - Health check
  GET  /metrics                             - Prometheus metrics
  GET  /api/strategies                      - Available strategies
  POST /api/screen/{strategy}?symbols=...   - Start a run in the background
  GET  /api/screen/{strategy}?top=N         - Latest finished run
  GET  /api/screen/{strategy}/disqualified  - Exclusions of the latest run
  GET  /api/metrics/{symbol}                - Derived metrics for one symbol
  GET  /api/stream/{strategy}?symbols=...   - Websocket: run and stream results

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8090 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiUniverse      universeFlags
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default is PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "also run the scheduled screens in this process")
	apiUniverse.register(apiCmd)
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, &apiUniverse)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	screenHandler := handlers.NewScreenHandler(ctx, a.service, a.writer, uuid.NewString, a.log)
	router := api.NewRouter(screenHandler, a.metrics, a.log)
	server := api.New(a.cfg, a.log, router)

	if apiWithScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Server running on http://localhost:%s", a.cfg.Port)))
	fmt.Fprintln(out, dimStyle.Render("Press Ctrl+C to stop"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scheduler"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scheduler/jobs"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/config"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run screens on a cron schedule",
	Long: `Runs the screening jobs on cron schedules (six fields, with seconds).

Jobs:
  universe_refresh - lists the universe ahead of the screen (--universe-schedule)
  screen           - screens with every strategy and writes reports (SCREEN_SCHEDULE)

Subcommands:
  start   - run the scheduler until Ctrl+C
  run     - run one job now and wait for it
  list    - registered jobs and their schedules

Example:
  go run ./cmd/screener schedule start
  go run ./cmd/screener schedule run screen --limit 50`,
}

var (
	scheduleStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	scheduleRunCmd = &cobra.Command{
		Use:   "run JOB",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	scheduleListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	scheduleUniverse   universeFlags
	universeSchedule   string
	scheduleStrategies []string
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleListCmd)

	scheduleUniverse.register(scheduleStartCmd)
	scheduleUniverse.register(scheduleRunCmd)
	for _, c := range []*cobra.Command{scheduleStartCmd, scheduleRunCmd, apiCmd} {
		c.Flags().StringVar(&universeSchedule, "universe-schedule", "0 0 6 * * 1-5", "cron spec of the universe refresh")
		c.Flags().StringSliceVar(&scheduleStrategies, "strategies", scoring.Names, "strategies the screen job runs")
	}
}

// newScheduler registers the universe and screen jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.clock, a.log)

	if err := sched.AddJob(jobs.NewUniverseJob(a.source, universeSchedule, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewScreenJob(a.service, a.writer, scheduleStrategies, a.cfg.Screener.Schedule, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, &scheduleUniverse)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render("✅ Scheduler started"))
	printJobs(cmd, sched)
	fmt.Fprintln(out, dimStyle.Render("Press Ctrl+C to stop"))

	<-ctx.Done()

	fmt.Fprintln(out, "Shutting down scheduler...")
	sched.Stop()
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), &scheduleUniverse)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !result.Success {
		PrintError(out, fmt.Sprintf("Job %s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Job %s completed in %s", result.JobName, result.Duration.Round(time.Second))))
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLocal()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rows := [][]string{
		{"universe_refresh", universeSchedule},
		{"screen", cfg.Screener.Schedule},
	}
	fmt.Fprint(cmd.OutOrStdout(), table([]string{"JOB", "SCHEDULE"}, rows))
	return nil
}

func printJobs(cmd *cobra.Command, sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	rows := make([][]string, 0, len(stats))
	for _, name := range sched.GetAllJobs() {
		rows = append(rows, []string{name, stats[name].Schedule})
	}
	fmt.Fprint(cmd.OutOrStdout(), table([]string{"JOB", "SCHEDULE"}, rows))
}

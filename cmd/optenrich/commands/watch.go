package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/optenrich/internal/scheduler"
	"github.com/wonny/optenrich/internal/scheduler/jobs"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the batch on a cron schedule",
	Long: `Starts a scheduler that runs the batch on a cron schedule (six fields,
seconds first). Inputs whose combined output already exists are skipped,
so each scheduled run only picks up new trading days.

Stop with Ctrl+C.

Example:
  go run ./cmd/optenrich watch
  go run ./cmd/optenrich watch --schedule "0 */30 9-16 * * 1-5" --now`,
	RunE: runWatch,
}

var watchFlags struct {
	schedule     string
	now          bool
	skipExisting bool
	retries      int
	retryDelay   time.Duration
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBatchFlags(watchCmd)

	f := watchCmd.Flags()
	f.StringVar(&watchFlags.schedule, "schedule", "", "cron schedule (default from WATCH_SCHEDULE)")
	f.BoolVar(&watchFlags.now, "now", false, "run once immediately before waiting for the schedule")
	f.BoolVar(&watchFlags.skipExisting, "skip-existing", true, "skip inputs whose output exists")
	f.IntVar(&watchFlags.retries, "retries", 1, "retries for a failed scheduled run")
	f.DurationVar(&watchFlags.retryDelay, "retry-delay", time.Minute, "pause between retries")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyBatchFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Watch.Schedule = watchFlags.schedule
	}
	if cmd.Flags().Changed("skip-existing") {
		cfg.Watch.SkipExisting = watchFlags.skipExisting
	}

	orch, profile, err := newOrchestrator(cmd, cfg)
	if err != nil {
		return err
	}

	bc := batchConfig(cfg)
	bc.SkipExisting = cfg.Watch.SkipExisting

	log := newLogger(cfg)
	job := jobs.NewBatchJob(orch, bc, cfg.Watch.Schedule, log)

	sched := scheduler.New(log, scheduler.WithRetry(watchFlags.retries, watchFlags.retryDelay))
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printBanner("Option Enrichment Watch", cfg, profile)
	PrintKeyValue("Schedule", cfg.Watch.Schedule, 10)
	PrintKeyValue("Skip done", FormatBool(bc.SkipExisting), 10)
	PrintSeparator()

	sched.Start(ctx)
	defer sched.Stop()

	if watchFlags.now {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
		if s := job.LastSummary(); s != nil && s.Seen > 0 {
			printSummary(s)
		}
	}

	next, err := sched.Next(job.Name())
	if err == nil {
		PrintInfo(fmt.Sprintf("Next run at %s", next.Format(time.RFC3339)))
	}
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Println("\nShutting down scheduler...")
	return ctx.Err()
}

package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/wonny/optenrich/internal/batch"
	"github.com/wonny/optenrich/internal/scheduler"
	"github.com/wonny/optenrich/pkg/logger"
)

// Runner runs one batch
type Runner interface {
	Run(ctx context.Context, cfg batch.Config) (*batch.Summary, error)
}

// BatchJob enriches every new file in the input folder on a schedule.
// At most one batch runs at a time, whether started by a tick or by RunJob.
type BatchJob struct {
	runner   Runner
	config   batch.Config
	schedule string
	logger   *logger.Logger

	running sync.Mutex

	mu         sync.Mutex
	last       *batch.Summary
	overlapped bool
}

// NewBatchJob creates a new batch job
func NewBatchJob(runner Runner, cfg batch.Config, schedule string, log *logger.Logger) *BatchJob {
	return &BatchJob{
		runner:   runner,
		config:   cfg,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *BatchJob) Name() string {
	return "enrich_batch"
}

// Schedule returns the cron schedule
func (j *BatchJob) Schedule() string {
	return j.schedule
}

// Run executes one batch. Per-file failures are logged, not returned;
// an empty input folder is not an error. A call made while another batch is
// still running returns immediately without touching any file.
func (j *BatchJob) Run(ctx context.Context) error {
	if !j.running.TryLock() {
		j.mu.Lock()
		j.overlapped = true
		j.mu.Unlock()
		j.logger.Warn("Previous batch still running, skipping")
		return nil
	}
	defer j.running.Unlock()

	j.logger.Debug("Starting scheduled batch")

	summary, err := j.runner.Run(ctx, j.config)

	j.mu.Lock()
	j.last = summary
	j.overlapped = false
	j.mu.Unlock()

	if errors.Is(err, batch.ErrNoInputFiles) {
		j.logger.Info("No input files, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	if summary.Seen > 0 {
		j.logger.WithRun(summary.RunID).WithFields(logger.Fields{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
		}).Info("Scheduled batch completed")
	}
	return nil
}

// LastSummary returns the summary of the most recent completed run, or nil
func (j *BatchJob) LastSummary() *batch.Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// LastOutcome describes the most recent call to Run
func (j *BatchJob) LastOutcome() (scheduler.Outcome, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.overlapped {
		return scheduler.Outcome{Overlapped: true}, true
	}
	if j.last == nil {
		return scheduler.Outcome{}, false
	}
	return scheduler.Outcome{
		RunID:     j.last.RunID,
		Seen:      j.last.Seen,
		Succeeded: j.last.Succeeded,
		Failed:    j.last.Failed,
		Skipped:   j.last.Skipped,
	}, true
}

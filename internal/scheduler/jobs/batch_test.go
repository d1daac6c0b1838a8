package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optenrich/internal/batch"
	"github.com/wonny/optenrich/internal/scheduler"
	"github.com/wonny/optenrich/pkg/logger"
)

type stubRunner struct {
	summary *batch.Summary
	err     error
	got     batch.Config
}

func (s *stubRunner) Run(_ context.Context, cfg batch.Config) (*batch.Summary, error) {
	s.got = cfg
	return s.summary, s.err
}

func TestBatchJob(t *testing.T) {
	cfg := batch.Config{InputDir: "in", OutputDir: "out", Pattern: "*.parquet", SkipExisting: true}

	t.Run("per-file failures are not job failures", func(t *testing.T) {
		stub := &stubRunner{summary: &batch.Summary{Seen: 3, Succeeded: 2, Failed: 1}}
		job := NewBatchJob(stub, cfg, "0 45 15 * * 1-5", logger.Nop())

		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, cfg, stub.got)
		assert.Equal(t, 1, job.LastSummary().Failed)
		assert.Equal(t, "enrich_batch", job.Name())
		assert.Equal(t, "0 45 15 * * 1-5", job.Schedule())
	})

	t.Run("empty folder", func(t *testing.T) {
		stub := &stubRunner{summary: &batch.Summary{}, err: batch.ErrNoInputFiles}
		job := NewBatchJob(stub, cfg, "@daily", logger.Nop())
		assert.NoError(t, job.Run(context.Background()))
	})

	t.Run("orchestration fault", func(t *testing.T) {
		stub := &stubRunner{summary: &batch.Summary{}, err: errors.New("input folder: missing")}
		job := NewBatchJob(stub, cfg, "@daily", logger.Nop())
		assert.Error(t, job.Run(context.Background()))
	})
}

// blockingRunner holds every run open until release is closed
type blockingRunner struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingRunner) Run(_ context.Context, _ batch.Config) (*batch.Summary, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return &batch.Summary{RunID: "r1", Seen: 2, Succeeded: 2}, nil
}

func TestBatchJobNeverOverlaps(t *testing.T) {
	runner := &blockingRunner{entered: make(chan struct{}, 1), release: make(chan struct{})}
	job := NewBatchJob(runner, batch.Config{Pattern: "*.parquet"}, "@daily", logger.Nop())

	done := make(chan error, 1)
	go func() { done <- job.Run(context.Background()) }()
	<-runner.entered

	// A second start while the first batch is busy must not reach the runner.
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int32(1), runner.calls.Load())

	o, ok := job.LastOutcome()
	require.True(t, ok)
	assert.True(t, o.Overlapped)

	close(runner.release)
	require.NoError(t, <-done)

	o, ok = job.LastOutcome()
	require.True(t, ok)
	assert.False(t, o.Overlapped)
	assert.Equal(t, scheduler.Outcome{RunID: "r1", Seen: 2, Succeeded: 2}, o)

	// Once released, the next start runs again.
	runner.release = make(chan struct{})
	close(runner.release)
	require.NoError(t, job.Run(context.Background()))
	<-runner.entered
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestBatchJobThroughScheduler(t *testing.T) {
	stub := &stubRunner{summary: &batch.Summary{RunID: "r2", Seen: 3, Succeeded: 2, Failed: 1}}
	job := NewBatchJob(stub, batch.Config{Pattern: "*.parquet"}, "@daily", logger.Nop())

	s := scheduler.New(logger.Nop(), scheduler.WithRetry(0, time.Millisecond))
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob(job.Name()))

	h, err := s.GetJobHistory(job.Name())
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	require.NotNil(t, h.Results[0].Outcome)
	assert.Equal(t, 1, h.Results[0].Outcome.Failed)
	assert.Equal(t, 1, s.GetJobStats()[job.Name()].FilesFailed)
}

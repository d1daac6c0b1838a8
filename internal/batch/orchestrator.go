// Package batch walks an input folder and runs the per-file pipeline on
// every matching file, isolating per-file failures.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/export"
	"github.com/wonny/optenrich/pkg/logger"
)

var (
	// ErrNoInputFiles is returned when the pattern matches nothing
	ErrNoInputFiles = errors.New("no input files matched")
	// ErrInterrupted is returned when the run was stopped by the operator
	ErrInterrupted = errors.New("batch interrupted")
)

// Processor runs the full pipeline on one file
type Processor interface {
	Process(ctx context.Context, input string) (*contracts.FileResult, error)
}

// Config describes one batch run
type Config struct {
	InputDir     string
	OutputDir    string
	Pattern      string
	SkipExisting bool
	Parallel     bool
}

// Summary is the outcome of one batch run
type Summary struct {
	RunID     string                  `json:"run_id"`
	Started   time.Time               `json:"started"`
	Duration  time.Duration           `json:"duration"`
	Seen      int                     `json:"seen"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Skipped   int                     `json:"skipped"`
	Failures  []contracts.Failure     `json:"failures,omitempty"`
	Results   []*contracts.FileResult `json:"-"`
}

// HasFailures reports whether any file failed
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

// Orchestrator processes files one at a time in name order
type Orchestrator struct {
	processor Processor
	logger    *logger.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(processor Processor, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		processor: processor,
		logger:    log.Module("batch"),
	}
}

// Match returns the files in dir matching pattern, sorted by name
func Match(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input folder %s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every matching file. A per-file failure is recorded in the
// summary and the batch continues. The returned error is reserved for
// batch-level faults: no matching files, an unreadable input folder or an
// interrupt.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Summary, error) {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	log := o.logger.WithRun(summary.RunID)
	defer func() {
		summary.Duration = time.Since(summary.Started)
	}()

	if cfg.Parallel {
		log.Warn("parallel processing is not supported, files run sequentially")
	}

	files, err := Match(cfg.InputDir, cfg.Pattern)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		return summary, fmt.Errorf("%w: %s in %s", ErrNoInputFiles, cfg.Pattern, cfg.InputDir)
	}

	log.WithFields(logger.Fields{
		"files":   len(files),
		"input":   cfg.InputDir,
		"output":  cfg.OutputDir,
		"pattern": cfg.Pattern,
	}).Info("batch started")

	for i, file := range files {
		if ctx.Err() != nil {
			break
		}

		name := filepath.Base(file)
		flog := log.WithFile(name).WithField("progress", fmt.Sprintf("%d/%d", i+1, len(files)))

		if cfg.SkipExisting && exists(export.OutputPath(file, cfg.OutputDir)) {
			summary.Skipped++
			flog.Info("output exists, skipping")
			continue
		}

		summary.Seen++
		result, err := o.processor.Process(ctx, file)
		if result != nil {
			summary.Results = append(summary.Results, result)
		}

		if err == nil {
			summary.Succeeded++
			flog.Info("file succeeded")
			continue
		}

		failure := contracts.FailureFromError(name, err)
		if result != nil && result.Failure != nil {
			failure = *result.Failure
		}

		if failure.Kind == contracts.KindCanceled || ctx.Err() != nil {
			flog.Warn("file interrupted")
			break
		}

		summary.Failed++
		summary.Failures = append(summary.Failures, failure)
		flog.WithError(err).WithField("kind", failure.Kind).Error("file failed")
	}

	if ctx.Err() != nil {
		log.WithFields(logger.Fields{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		}).Warn("batch interrupted")
		return summary, ErrInterrupted
	}

	log.WithFields(logger.Fields{
		"seen":      summary.Seen,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("batch finished")

	return summary, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/enrich"
	"github.com/wonny/optenrich/internal/export"
	"github.com/wonny/optenrich/internal/extract"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/internal/moneyness"
	"github.com/wonny/optenrich/internal/profiler"
	"github.com/wonny/optenrich/internal/schema"
	"github.com/wonny/optenrich/internal/symbol"
	"github.com/wonny/optenrich/pkg/config"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// Config holds per-file processing options
type Config struct {
	OutputDir  string
	Validate   bool
	KeepTemp   bool
	OptionRoot string
	TieBreak   enrich.TieBreak
	Extract    extract.Config
}

// ConfigFrom builds a runner Config from application configuration
func ConfigFrom(cfg *config.Config) (Config, error) {
	tb, err := enrich.ParseTieBreak(cfg.Pipeline.JoinTieBreak)
	if err != nil {
		return Config{}, err
	}
	return Config{
		OutputDir:  cfg.Pipeline.OutputFolder,
		Validate:   cfg.Pipeline.Validate,
		KeepTemp:   cfg.Pipeline.KeepTemp,
		OptionRoot: cfg.Market.OptionRoot,
		TieBreak:   tb,
		Extract: extract.Config{
			IndexSymbol:  cfg.Market.IndexSymbol,
			FutureSymbol: cfg.Market.FutureSymbol,
			SessionStart: cfg.Market.SessionStart,
			SessionEnd:   cfg.Market.SessionEnd,
		},
	}, nil
}

// step is one stage bound to its implementation
type step struct {
	stage contracts.Stage
	run   func(ctx context.Context, fc *FileContext) (map[string]int64, error)
}

// Runner processes one input file through all stages
// ⭐ SSOT: stage order is defined here only
type Runner struct {
	config  Config
	profile *profiler.Profile
	logger  *logger.Logger
}

// NewRunner creates a new Runner
func NewRunner(config Config, profile *profiler.Profile, log *logger.Logger) *Runner {
	return &Runner{
		config:  config,
		profile: profile,
		logger:  log.Module("pipeline"),
	}
}

func (r *Runner) steps() []step {
	return []step{
		{contracts.StageSchema, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			return nil, schema.Ensure(ctx, fc.DB)
		}},
		{contracts.StageExtract, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			counts, err := extract.NewExtractor(fc.DB, fc.Validator, r.config.Extract, fc.Logger).Run(ctx, fc.Input)
			return counts.Map(), err
		}},
		{contracts.StageDecompose, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			report, err := symbol.NewDecomposer(fc.DB, fc.Validator, r.config.OptionRoot, fc.Logger).Run(ctx)
			return report.Counts(), err
		}},
		{contracts.StageEnrich, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			cfg := enrich.Config{
				TieBreak:          r.config.TieBreak,
				LargeRowThreshold: r.profile.LargeRowThreshold,
			}
			report, err := enrich.NewEnricher(fc.DB, fc.Validator, cfg, fc.Logger).Run(ctx)
			return report.Counts(), err
		}},
		{contracts.StageClassify, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			report, err := moneyness.NewClassifier(fc.DB, fc.Validator, fc.Logger).Run(ctx)
			return report.Counts(), err
		}},
		{contracts.StageExport, func(ctx context.Context, fc *FileContext) (map[string]int64, error) {
			report, err := export.NewExporter(fc.DB, fc.Validator, fc.Logger).Run(ctx, fc.Output)
			return report.Counts(), err
		}},
	}
}

// Process runs every stage on input in order and stops at the first failure.
// The scratch database is closed, and removed unless KeepTemp is set,
// whatever the outcome.
func (r *Runner) Process(ctx context.Context, input string) (result *contracts.FileResult, err error) {
	start := time.Now()
	name := filepath.Base(input)
	log := r.logger.WithFile(name)

	result = &contracts.FileResult{
		Input:  input,
		Output: export.OutputPath(input, r.config.OutputDir),
	}
	defer func() {
		result.Duration = time.Since(start)
		if err != nil {
			f := contracts.FailureFromError(name, err)
			result.Failure = &f
		}
	}()

	if err := ctx.Err(); err != nil {
		return result, contracts.NewStageError(contracts.StageSchema, err)
	}

	scratch := database.ScratchPath(input)
	if err := database.RemoveFiles(scratch); err != nil {
		return result, contracts.NewStageError(contracts.StageSchema, fmt.Errorf("remove stale scratch: %w", err))
	}

	db, err := database.Open(ctx, scratch, r.profile.Settings())
	if err != nil {
		return result, contracts.NewStageError(contracts.StageSchema, err)
	}
	defer r.cleanup(db, scratch, log)

	ledger := contracts.NewLedger()
	fc := &FileContext{
		Input:       input,
		Output:      result.Output,
		ScratchPath: scratch,
		DB:          db,
		Ledger:      ledger,
		Validator:   gate.NewValidator(db, ledger, r.config.Validate, log),
		Logger:      log,
	}

	log.Infof("Processing file: %s", name)

	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return result, contracts.NewStageError(s.stage, err)
		}

		timer := profiler.StartTimer(s.stage)
		counts, runErr := s.run(ctx, fc)
		report := timer.Stop()
		report.Counts = counts

		if runErr != nil {
			se := contracts.NewStageError(s.stage, runErr)
			log.WithError(se.Err).WithStage(s.stage.String()).
				WithField("kind", se.Kind).Error("stage failed")
			return result, se
		}

		fc.Reports = append(fc.Reports, report)
		result.Reports = fc.Reports
		log.WithStage(s.stage.String()).WithCounts(counts).WithFields(logger.Fields{
			"seconds":       report.Duration.Seconds(),
			"mem_change_mb": float64(report.MemDelta()) / (1 << 20),
			"final_mem_mb":  float64(report.MemEnd) / (1 << 20),
		}).Infof("%s done", s.stage.Description())
	}

	result.Success = true
	log.WithField("output", result.Output).Info("file processed")
	return result, nil
}

func (r *Runner) cleanup(db *database.DB, scratch string, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("failed to close scratch database")
	}

	if r.config.KeepTemp {
		log.WithField("scratch", scratch).Info("keeping scratch database")
		return
	}

	if err := database.RemoveFiles(scratch); err != nil {
		log.WithError(err).Warn("failed to remove scratch database")
		return
	}
	log.Debug("scratch database removed")
}

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/optenrich/internal/batch"
	"github.com/wonny/optenrich/internal/pipeline"
	"github.com/wonny/optenrich/internal/profiler"
	"github.com/wonny/optenrich/pkg/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich every matching file in the input folder",
	Long: `Processes every file matching the pattern in the input folder, one at a
time, and writes <name>_combined.parquet to the output folder.

A file that fails any stage is recorded in the summary and the batch moves on.
The exit code is 0 even when files failed unless --strict is given.

Example:
  go run ./cmd/optenrich run -i data/parquet -o data/combined
  go run ./cmd/optenrich run -i data/parquet -o out -p "2*-01-2024.parquet" -m 50 --strict`,
	RunE: runBatch,
}

var runFlags struct {
	input    string
	output   string
	pattern  string
	memory   int
	validate bool
	keepTemp bool
	strict   bool
	parallel bool
	tieBreak string
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBatchFlags(runCmd)
	runCmd.Flags().BoolVar(&runFlags.strict, "strict", false, "exit 2 when any file failed")
}

// addBatchFlags registers the flags shared by run and watch
func addBatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&runFlags.input, "input-folder", "i", "", "folder with source parquet files")
	f.StringVarP(&runFlags.output, "output-folder", "o", "", "folder for combined parquet files")
	f.StringVarP(&runFlags.pattern, "file-pattern", "p", "*.parquet", "glob for input file names")
	f.IntVarP(&runFlags.memory, "memory-percent", "m", 75, "share of total RAM for the engine")
	f.BoolVar(&runFlags.validate, "validate", true, "row-count gates between stages")
	f.BoolVarP(&runFlags.keepTemp, "keep-temp", "k", false, "keep per-file scratch databases")
	f.BoolVar(&runFlags.parallel, "parallel", false, "process files concurrently (not supported, ignored)")
	f.StringVar(&runFlags.tieBreak, "tie-break", "first", "duplicate join key policy (first|last)")
}

// applyBatchFlags overrides cfg with every flag set on the command line
func applyBatchFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("input-folder") {
		cfg.Pipeline.InputFolder = runFlags.input
	}
	if f.Changed("output-folder") {
		cfg.Pipeline.OutputFolder = runFlags.output
	}
	if f.Changed("file-pattern") {
		cfg.Pipeline.FilePattern = runFlags.pattern
	}
	if f.Changed("memory-percent") {
		cfg.Pipeline.MemoryPercent = runFlags.memory
	}
	if f.Changed("validate") {
		cfg.Pipeline.Validate = runFlags.validate
	}
	if f.Changed("keep-temp") {
		cfg.Pipeline.KeepTemp = runFlags.keepTemp
	}
	if f.Changed("parallel") {
		cfg.Pipeline.Parallel = runFlags.parallel
	}
	if f.Changed("tie-break") {
		cfg.Pipeline.JoinTieBreak = runFlags.tieBreak
	}
	if f.Lookup("strict") != nil && f.Changed("strict") {
		cfg.Pipeline.Strict = runFlags.strict
	}
	return cfg.Validate()
}

// batchConfig builds the orchestrator config from cfg
func batchConfig(cfg *config.Config) batch.Config {
	return batch.Config{
		InputDir:  cfg.Pipeline.InputFolder,
		OutputDir: cfg.Pipeline.OutputFolder,
		Pattern:   cfg.Pipeline.FilePattern,
		Parallel:  cfg.Pipeline.Parallel,
	}
}

// newOrchestrator wires profile, runner and orchestrator for cfg
func newOrchestrator(cmd *cobra.Command, cfg *config.Config) (*batch.Orchestrator, *profiler.Profile, error) {
	log := newLogger(cfg)

	profile, err := profiler.Detect(cmd.Context(), cfg.Pipeline.MemoryPercent)
	if err != nil {
		return nil, nil, err
	}

	runnerCfg, err := pipeline.ConfigFrom(cfg)
	if err != nil {
		return nil, nil, err
	}

	runner := pipeline.NewRunner(runnerCfg, profile, log)
	return batch.NewOrchestrator(runner, log), profile, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyBatchFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	orch, profile, err := newOrchestrator(cmd, cfg)
	if err != nil {
		return err
	}

	printBanner("Option Enrichment Batch", cfg, profile)
	if cfg.Pipeline.Parallel {
		PrintWarning("--parallel is not supported; files are processed one at a time")
	}

	summary, runErr := orch.Run(cmd.Context(), batchConfig(cfg))
	if summary != nil && summary.Seen > 0 {
		printSummary(summary)
	}
	if runErr != nil {
		return runErr
	}

	if cfg.Pipeline.Strict && summary.HasFailures() {
		return &FailedFilesError{Failed: summary.Failed, Total: summary.Seen}
	}
	return nil
}

// printBanner prints the configuration banner
func printBanner(title string, cfg *config.Config, profile *profiler.Profile) {
	PrintHeader(title, [][2]string{
		{"Input", cfg.Pipeline.InputFolder},
		{"Output", cfg.Pipeline.OutputFolder},
		{"Pattern", cfg.Pipeline.FilePattern},
		{"Validation", FormatBool(cfg.Pipeline.Validate)},
		{"Keep temp", FormatBool(cfg.Pipeline.KeepTemp)},
		{"Tie-break", cfg.Pipeline.JoinTieBreak},
		{"CPUs", strconv.Itoa(profile.CPUCount)},
		{"Memory", fmt.Sprintf("%.1f GB total, %d GB limit (%d%%)",
			profile.TotalMemoryGB(), profile.MemoryLimitGB, profile.MemoryPercent)},
		{"Chunk size", strconv.Itoa(profile.LargeRowThreshold)},
	})
}

// printSummary prints totals and the failed-files table
func printSummary(s *batch.Summary) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Println("  Summary")
	PrintSeparator()
	PrintKeyValue("Run", s.RunID, 10)
	PrintKeyValue("Files", strconv.Itoa(s.Seen), 10)
	PrintKeyValue("Succeeded", strconv.Itoa(s.Succeeded), 10)
	PrintKeyValue("Failed", strconv.Itoa(s.Failed), 10)
	if s.Skipped > 0 {
		PrintKeyValue("Skipped", strconv.Itoa(s.Skipped), 10)
	}
	PrintKeyValue("Time", FormatDuration(s.Duration), 10)
	PrintSeparator()

	if !s.HasFailures() {
		PrintSuccess("All files processed")
		return
	}

	fmt.Println()
	widths := []int{24, 14, 12, 60}
	PrintTableHeader([]string{"FILE", "STAGE", "KIND", "ERROR"}, widths)
	for _, f := range s.Failures {
		PrintTableRow([]string{
			Truncate(f.File, widths[0]),
			f.Stage.String(),
			string(f.Kind),
			Truncate(f.Message, widths[3]),
		}, widths)
	}
	fmt.Println()
	PrintError(fmt.Sprintf("%d of %d files failed", s.Failed, s.Seen))
}

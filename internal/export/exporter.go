package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/internal/moneyness"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// OutputSuffix is appended to the input base name
const OutputSuffix = "_combined.parquet"

// OutputPath returns <outputDir>/<input base without extension>_combined.parquet
func OutputPath(input, outputDir string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+OutputSuffix)
}

// Report holds cardinalities around the extreme-bucket removal
type Report struct {
	Before  int64
	After   int64
	Removed int64
	Output  string
}

// Counts returns the report as stage counts
func (r Report) Counts() map[string]int64 {
	return map[string]int64{
		"before":  r.Before,
		"after":   r.After,
		"removed": r.Removed,
	}
}

// Exporter writes the final ordered artifact
type Exporter struct {
	db        *database.DB
	validator *gate.Validator
	logger    *logger.Logger
}

// NewExporter creates a new Exporter
func NewExporter(db *database.DB, validator *gate.Validator, log *logger.Logger) *Exporter {
	return &Exporter{
		db:        db,
		validator: validator,
		logger:    log.Module("export"),
	}
}

// Run removes DEEPITM/DEEPOTM rows and writes cal_data ordered by
// (date, time, symbol) to output. The file is written next to output and
// renamed into place, so a failed export never leaves a partial artifact.
func (x *Exporter) Run(ctx context.Context, output string) (Report, error) {
	report := Report{Output: output}

	if err := x.validator.CheckReady(ctx, contracts.RelCalData, gate.MinReady); err != nil {
		return report, err
	}

	before, err := x.db.Count(ctx, contracts.RelCalData)
	if err != nil {
		return report, err
	}
	report.Before = before

	if _, err := x.db.Exec(ctx,
		"DELETE FROM cal_data WHERE moneyness IN (?, ?)", moneyness.DeepITM, moneyness.DeepOTM); err != nil {
		return report, fmt.Errorf("remove extreme buckets: %w", err)
	}

	after, err := x.db.Count(ctx, contracts.RelCalData)
	if err != nil {
		return report, err
	}
	report.After = after
	report.Removed = before - after
	x.validator.Ledger().Record(contracts.RelCalData, after)

	x.logger.WithFields(logger.Fields{
		"before":  report.Before,
		"after":   report.After,
		"removed": report.Removed,
	}).Info("extreme buckets removed")

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	tmp := output + ".partial"
	_ = os.Remove(tmp)

	copySQL := fmt.Sprintf(
		"COPY (SELECT * FROM cal_data ORDER BY date, time, symbol) TO %s (FORMAT parquet)",
		database.Quote(tmp))
	if _, err := x.db.Exec(ctx, copySQL); err != nil {
		_ = os.Remove(tmp)
		return report, fmt.Errorf("write %s: %w", filepath.Base(output), err)
	}

	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return report, fmt.Errorf("publish %s: %w", filepath.Base(output), err)
	}

	x.logger.WithFields(logger.Fields{
		"output": output,
		"rows":   report.After,
	}).Info("export complete")
	return report, nil
}

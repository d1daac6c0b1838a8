package contracts

import "time"

// Pipeline Stage definitions (SSOT)
// Every log line, report and failure record uses these constants.
//
// Per-file flow:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Schema  Extract  Decompose  Enrich  Classify  Export

// Stage represents a pipeline stage
type Stage string

const (
	// StageSchema S0: scratch relations and indices
	// Location: internal/schema/
	StageSchema Stage = "S0_SCHEMA"

	// StageExtract S1: filtered copy-in of options, index and future rows
	// Location: internal/extract/
	StageExtract Stage = "S1_EXTRACT"

	// StageDecompose S2: option symbol grammar → splits
	// Location: internal/symbol/
	StageDecompose Stage = "S2_DECOMPOSE"

	// StageEnrich S3: keyed joins and derived columns → cal_data
	// Location: internal/enrich/
	StageEnrich Stage = "S3_ENRICH"

	// StageClassify S4: moneyness buckets
	// Location: internal/moneyness/
	StageClassify Stage = "S4_CLASSIFY"

	// StageExport S5: extreme bucket removal and ordered parquet write
	// Location: internal/export/
	StageExport Stage = "S5_EXPORT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageSchema:
		return "S0"
	case StageExtract:
		return "S1"
	case StageDecompose:
		return "S2"
	case StageEnrich:
		return "S3"
	case StageClassify:
		return "S4"
	case StageExport:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageSchema:
		return "Schema bootstrap"
	case StageExtract:
		return "Option/index/future extraction"
	case StageDecompose:
		return "Symbol decomposition"
	case StageEnrich:
		return "Cross-table enrichment"
	case StageClassify:
		return "Moneyness classification"
	case StageExport:
		return "Ordered export"
	default:
		return "Unknown"
	}
}

// DefaultKind is the failure kind assigned to a stage error that is neither
// a gate failure nor a cancellation.
func (s Stage) DefaultKind() FailureKind {
	switch s {
	case StageExtract:
		return KindExtraction
	default:
		return KindStorage
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageSchema,
		StageExtract,
		StageDecompose,
		StageEnrich,
		StageClassify,
		StageExport,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageReport is the success result of one stage on one file
type StageReport struct {
	Stage    Stage            `json:"stage"`
	Counts   map[string]int64 `json:"counts,omitempty"`
	Duration time.Duration    `json:"duration"`
	MemStart uint64           `json:"mem_start_bytes"`
	MemEnd   uint64           `json:"mem_end_bytes"`
}

// MemDelta returns the signed change in resident memory across the stage
func (r StageReport) MemDelta() int64 {
	return int64(r.MemEnd) - int64(r.MemStart)
}

// FileResult represents the outcome of processing one input file
type FileResult struct {
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	Success  bool          `json:"success"`
	Reports  []StageReport `json:"reports"`
	Failure  *Failure      `json:"failure,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CompletedStages lists the stages that finished successfully, in order
func (r *FileResult) CompletedStages() []Stage {
	stages := make([]Stage, 0, len(r.Reports))
	for _, rep := range r.Reports {
		stages = append(stages, rep.Stage)
	}
	return stages
}

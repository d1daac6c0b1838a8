package pipeline

import (
	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// FileContext is the per-file state threaded through every stage.
// It is created fresh for each input and discarded with the scratch database.
type FileContext struct {
	Input       string
	Output      string
	ScratchPath string

	DB        *database.DB
	Ledger    *contracts.Ledger
	Validator *gate.Validator
	Logger    *logger.Logger

	Reports []contracts.StageReport
}

// Counts merges the counts of every completed stage, later stages win
func (fc *FileContext) Counts() map[string]int64 {
	out := make(map[string]int64)
	for _, r := range fc.Reports {
		for k, v := range r.Counts {
			out[k] = v
		}
	}
	return out
}

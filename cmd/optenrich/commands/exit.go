package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/optenrich/internal/batch"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitFault       = 1
	ExitFailedFiles = 2
	ExitInterrupted = 130
)

// FailedFilesError is returned under strict exit when any file failed
type FailedFilesError struct {
	Failed int
	Total  int
}

func (e *FailedFilesError) Error() string {
	return fmt.Sprintf("%d of %d files failed", e.Failed, e.Total)
}

// ExitCode maps the error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ff *FailedFilesError
	switch {
	case errors.Is(err, batch.ErrInterrupted), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &ff):
		return ExitFailedFiles
	default:
		return ExitFault
	}
}

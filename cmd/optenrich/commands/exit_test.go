package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/optenrich/internal/batch"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"fault", errors.New("input folder: no such file"), ExitFault},
		{"no input", fmt.Errorf("%w: *.parquet", batch.ErrNoInputFiles), ExitFault},
		{"strict failures", &FailedFilesError{Failed: 1, Total: 3}, ExitFailedFiles},
		{"interrupted", batch.ErrInterrupted, ExitInterrupted},
		{"canceled", fmt.Errorf("watch: %w", context.Canceled), ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

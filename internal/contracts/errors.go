package contracts

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a file (or the whole run) failed
type FailureKind string

const (
	// KindExtraction: unreadable source file, malformed date/time text
	KindExtraction FailureKind = "extraction"
	// KindGate: a relation did not reach its minimum row count
	KindGate FailureKind = "gate"
	// KindStorage: scratch database or output artifact fault
	KindStorage FailureKind = "storage"
	// KindOrchestration: batch-level fault, fatal to the run
	KindOrchestration FailureKind = "orchestration"
	// KindCanceled: interrupted by the operator
	KindCanceled FailureKind = "canceled"
)

// GateError reports a relation that is missing or below its minimum row count
type GateError struct {
	Relation string
	Observed int64
	Required int64
	Missing  bool
}

func (e *GateError) Error() string {
	if e.Missing {
		return fmt.Sprintf("gate %s: relation does not exist", e.Relation)
	}
	return fmt.Sprintf("gate %s: %d rows, need at least %d", e.Relation, e.Observed, e.Required)
}

// StageError wraps the cause of a failed stage with its taxonomy
type StageError struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage.ShortName(), e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError classifies err for the given stage.
// Gate failures and context cancellation take precedence over the stage default.
func NewStageError(stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}

	kind := stage.DefaultKind()
	var ge *GateError
	switch {
	case errors.As(err, &ge):
		kind = KindGate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	}

	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Failure is one entry of the batch failure log
type Failure struct {
	File    string      `json:"file"`
	Stage   Stage       `json:"stage,omitempty"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// FailureFromError builds a Failure for file from any error returned by the pipeline
func FailureFromError(file string, err error) Failure {
	f := Failure{File: file, Kind: KindOrchestration, Message: err.Error()}

	var se *StageError
	if errors.As(err, &se) {
		f.Stage = se.Stage
		f.Kind = se.Kind
		f.Message = se.Err.Error()
		return f
	}

	if errors.Is(err, context.Canceled) {
		f.Kind = KindCanceled
	}
	return f
}

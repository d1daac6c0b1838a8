package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBarKey(t *testing.T) {
	d := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	tm := time.Date(1970, 1, 1, 9, 15, 0, 0, time.UTC)

	key := NewBarKey(d, tm)
	assert.Equal(t, int32(19747), key.Day)
	assert.Equal(t, int64((9*3600+15*60)*1_000_000), key.Clock)

	// Only the wall clock of the time value matters.
	other := NewBarKey(d, time.Date(2000, 6, 1, 9, 15, 0, 0, time.UTC))
	assert.Equal(t, key, other)

	later := NewBarKey(d, tm.Add(time.Minute))
	assert.NotEqual(t, key, later)
}

func TestEnrichedRowValues(t *testing.T) {
	d := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	row := EnrichedRow{
		RawOption: RawOption{
			Symbol: "NIFTY25JAN2421500CE",
			Date:   d,
			Open:   Valid[int32](100),
			Volume: Valid[int64](50),
		},
		Instrument:  Valid("NIFTY"),
		StrikePrice: Valid[int32](21500),
		Idx:         IndexBar{Open: Valid[int32](1), Close: Valid[int32](4)},
	}

	vals := row.Values()
	require.Len(t, vals, len(CalDataColumns))

	assert.Equal(t, "NIFTY25JAN2421500CE", vals[0])
	assert.Equal(t, "NIFTY", vals[1])
	assert.Nil(t, vals[2], "expiry_date")
	assert.Equal(t, d, vals[3])
	assert.Equal(t, int32(21500), vals[6])
	assert.Nil(t, vals[8], "spot")
	assert.Equal(t, int32(100), vals[11])
	assert.Nil(t, vals[12], "high")
	assert.Equal(t, int64(50), vals[15])
	assert.Nil(t, vals[17], "moneyness")
	assert.Equal(t, int32(1), vals[18], "idx_open")
	assert.Equal(t, int32(4), vals[21], "idx_close")
	for i := 22; i < 28; i++ {
		assert.Nil(t, vals[i], CalDataColumns[i])
	}
}

func TestStageOrder(t *testing.T) {
	stages := AllStages()
	require.Len(t, stages, 6)
	for i, s := range stages {
		assert.Equal(t, fmt.Sprintf("S%d", i), s.ShortName())
		assert.True(t, IsValidStage(s.String()))
	}
	assert.False(t, IsValidStage("S9_NOPE"))
}

func TestNewStageError(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		err   error
		want  FailureKind
	}{
		{"gate", StageExtract, &GateError{Relation: RelOptions, Observed: 5, Required: 100}, KindGate},
		{"wrapped gate", StageEnrich, fmt.Errorf("enrich: %w", &GateError{Relation: RelSplits}), KindGate},
		{"canceled", StageEnrich, fmt.Errorf("scan: %w", context.Canceled), KindCanceled},
		{"extraction default", StageExtract, errors.New("bad date"), KindExtraction},
		{"storage default", StageExport, errors.New("disk full"), KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := NewStageError(tt.stage, tt.err)
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, tt.stage, se.Stage)
			assert.ErrorIs(t, se, tt.err)
		})
	}

	inner := NewStageError(StageSchema, errors.New("x"))
	assert.Same(t, inner, NewStageError(StageExport, fmt.Errorf("outer: %w", inner)))
}

func TestFailureFromError(t *testing.T) {
	err := NewStageError(StageExtract, &GateError{Relation: RelOptions, Observed: 42, Required: 100})
	f := FailureFromError("day2.parquet", fmt.Errorf("process: %w", err))

	assert.Equal(t, "day2.parquet", f.File)
	assert.Equal(t, StageExtract, f.Stage)
	assert.Equal(t, KindGate, f.Kind)
	assert.Contains(t, f.Message, "42 rows, need at least 100")

	plain := FailureFromError("x.parquet", errors.New("boom"))
	assert.Equal(t, KindOrchestration, plain.Kind)
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	_, ok := l.Count(RelOptions)
	assert.False(t, ok)

	l.Record(RelOptions, 120)
	l.Record(RelCalData, 90)
	l.Record(RelOptions, 150)

	c, ok := l.Count(RelOptions)
	assert.True(t, ok)
	assert.Equal(t, int64(150), c)
	assert.Equal(t, []string{RelCalData, RelOptions}, l.Relations())

	snap := l.Snapshot()
	snap[RelOptions] = 0
	c, _ = l.Count(RelOptions)
	assert.Equal(t, int64(150), c)
}

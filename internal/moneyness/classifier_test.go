package moneyness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/internal/schema"
	"github.com/wonny/optenrich/internal/testutil"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// seedCalData inserts one cal_data row per (type, distance); a nil distance
// is written as NULL.
func seedCalData(t *testing.T, db *database.DB, rows []struct {
	optType  string
	distance *int32
}) {
	t.Helper()
	var values []string
	for i, r := range rows {
		d := "NULL"
		if r.distance != nil {
			d = fmt.Sprint(*r.distance)
		}
		values = append(values, fmt.Sprintf(
			"('S%d', DATE '2024-01-22', TIME '10:00:00', '%s', %s)", i, r.optType, d))
	}
	_, err := db.Exec(context.Background(),
		"INSERT INTO cal_data (symbol, date, time, option_type, strdifference) VALUES "+strings.Join(values, ","))
	require.NoError(t, err)
}

func ptr(v int32) *int32 { return &v }

func TestClassifierRun(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenMemory(t)
	require.NoError(t, schema.Ensure(ctx, db))

	seedCalData(t, db, []struct {
		optType  string
		distance *int32
	}{
		{"CE", ptr(0)},
		{"CE", ptr(-501)},
		{"CE", ptr(551)},
		{"PE", ptr(-501)},
		{"PE", ptr(75)},
		{"PE", ptr(75)},
		{"CE", nil},
		{"XX", ptr(0)},
	})

	v := gate.NewValidator(db, contracts.NewLedger(), false, logger.Nop())
	report, err := NewClassifier(db, v, logger.Nop()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Pairs)
	assert.Equal(t, int64(6), report.Labeled)
	assert.Equal(t, int64(2), report.Unlabeled)
	assert.Equal(t, int64(1), report.Distribution[ATM])
	assert.Equal(t, int64(1), report.Distribution[DeepITM])
	assert.Equal(t, int64(2), report.Distribution[DeepOTM])
	assert.Equal(t, int64(2), report.Distribution["ATM-1"])

	got := map[string]sql.NullString{}
	rows, err := db.Conn.QueryContext(ctx, "SELECT symbol, moneyness FROM cal_data")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var (
			sym string
			m   sql.NullString
		)
		require.NoError(t, rows.Scan(&sym, &m))
		got[sym] = m
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, ATM, got["S0"].String)
	assert.Equal(t, DeepITM, got["S1"].String)
	assert.Equal(t, DeepOTM, got["S3"].String)
	assert.False(t, got["S6"].Valid, "null distance stays null")
	assert.False(t, got["S7"].Valid, "unknown type stays null")

	exists, err := db.TableExists(ctx, mapTable)
	require.NoError(t, err)
	assert.False(t, exists, "map table dropped")
}

func TestClassifierGate(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenMemory(t)
	require.NoError(t, schema.Ensure(ctx, db))

	v := gate.NewValidator(db, contracts.NewLedger(), true, logger.Nop())
	_, err := NewClassifier(db, v, logger.Nop()).Run(ctx)

	var ge *contracts.GateError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, contracts.RelCalData, ge.Relation)
	assert.Equal(t, int64(gate.MinReady), ge.Required)
}

package enrich

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/internal/schema"
	"github.com/wonny/optenrich/internal/testutil"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

const seedSQL = `
INSERT INTO options VALUES
	('NIFTY25JAN2421500CE', DATE '2024-01-22', TIME '10:00:00', 100, 110, 90, 105, 10, 1000),
	('NIFTY25JAN2421500CE', DATE '2024-01-22', TIME '10:01:00', 105, 115, 95, 110, 20, 1100),
	('NIFTYXYZ',            DATE '2024-01-22', TIME '10:00:00', 1, 1, 1, 1, 1, 1),
	('NIFTY25JAN2421500PE', DATE '2024-01-22', TIME '10:02:00', 50, 55, 45, 52, 5, 500),
	('NIFTY25JAN2421500PE', DATE '2024-01-22', TIME '10:01:00', NULL, NULL, NULL, NULL, NULL, NULL);
INSERT INTO splits VALUES
	('NIFTY25JAN2421500CE', 'NIFTY', DATE '2024-01-25', 21500, 'CE', DATE '2024-01-22'),
	('NIFTY25JAN2421500PE', 'NIFTY', DATE '2024-01-25', 21500, 'PE', DATE '2024-01-22');
INSERT INTO index_data VALUES
	(DATE '2024-01-22', TIME '10:00:00', 21470, 21490, 21460, 21480),
	(DATE '2024-01-22', TIME '10:00:00', 21475, 21495, 21465, 21490),
	(DATE '2024-01-22', TIME '10:01:00', 21480, 21510, 21470, 21500);
INSERT INTO future_data VALUES
	(DATE '2024-01-22', TIME '10:00:00', 21520, 21540, 21510, 21530, 900, 50000),
	(DATE '2024-01-22', TIME '10:01:00', 21530, 21550, 21520, 21545, 950, 50100);
`

func seeded(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db := testutil.OpenMemory(t)
	require.NoError(t, schema.Ensure(ctx, db))
	_, err := db.Exec(ctx, seedSQL)
	require.NoError(t, err)
	return db
}

type calRow struct {
	instrument    sql.NullString
	strike        sql.NullInt32
	spot          sql.NullInt32
	strdifference sql.NullInt32
	dte           sql.NullInt32
	expiryDay     sql.NullInt32
	futClose      sql.NullInt32
	open          sql.NullInt32
}

func fetch(t *testing.T, db *database.DB, symbol, clock string) calRow {
	t.Helper()
	var r calRow
	err := db.Conn.QueryRowContext(context.Background(), `
		SELECT instrument, strike_price, spot, strdifference, dte, expiry_day, fut_close, open
		FROM cal_data WHERE symbol = ? AND time = CAST(? AS TIME)`, symbol, clock).
		Scan(&r.instrument, &r.strike, &r.spot, &r.strdifference, &r.dte, &r.expiryDay, &r.futClose, &r.open)
	require.NoError(t, err)
	return r
}

func run(t *testing.T, db *database.DB, cfg Config, ledger *contracts.Ledger) Report {
	t.Helper()
	v := gate.NewValidator(db, ledger, false, logger.Nop())
	report, err := NewEnricher(db, v, cfg, logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestRunJoinsAndDerives(t *testing.T) {
	db := seeded(t)
	report := run(t, db, Config{TieBreak: KeepFirst}, contracts.NewLedger())

	assert.Equal(t, int64(5), report.Rows)
	assert.Equal(t, int64(1), report.NullSpot, "10:02 has no index bar")
	assert.Equal(t, int64(1), report.NullStrike, "NIFTYXYZ has no split")
	assert.Equal(t, 1, report.DuplicateIndex)
	assert.Zero(t, report.DuplicateFuture)
	assert.False(t, report.Chunked)

	ce := fetch(t, db, "NIFTY25JAN2421500CE", "10:00:00")
	assert.Equal(t, "NIFTY", ce.instrument.String)
	assert.Equal(t, int32(21500), ce.strike.Int32)
	assert.Equal(t, int32(21480), ce.spot.Int32, "first index bar wins")
	assert.Equal(t, int32(20), ce.strdifference.Int32)
	assert.Equal(t, int32(3), ce.dte.Int32)
	assert.Equal(t, int32(time.Thursday), ce.expiryDay.Int32)
	assert.Equal(t, int32(21530), ce.futClose.Int32)

	later := fetch(t, db, "NIFTY25JAN2421500CE", "10:01:00")
	assert.Equal(t, int32(0), later.strdifference.Int32)
	assert.True(t, later.strdifference.Valid)

	xyz := fetch(t, db, "NIFTYXYZ", "10:00:00")
	assert.False(t, xyz.instrument.Valid)
	assert.False(t, xyz.strike.Valid)
	assert.True(t, xyz.spot.Valid)
	assert.False(t, xyz.strdifference.Valid)
	assert.False(t, xyz.dte.Valid)

	orphan := fetch(t, db, "NIFTY25JAN2421500PE", "10:02:00")
	assert.True(t, orphan.strike.Valid)
	assert.False(t, orphan.spot.Valid)
	assert.False(t, orphan.strdifference.Valid)
	assert.False(t, orphan.futClose.Valid)
	assert.True(t, orphan.dte.Valid)

	nullPrices := fetch(t, db, "NIFTY25JAN2421500PE", "10:01:00")
	assert.False(t, nullPrices.open.Valid)
	assert.Equal(t, int32(0), nullPrices.strdifference.Int32)
}

func TestRunTieBreakLast(t *testing.T) {
	db := seeded(t)
	run(t, db, Config{TieBreak: KeepLast}, contracts.NewLedger())

	ce := fetch(t, db, "NIFTY25JAN2421500CE", "10:00:00")
	assert.Equal(t, int32(21490), ce.spot.Int32, "last index bar wins")
	assert.Equal(t, int32(10), ce.strdifference.Int32)
}

func TestRunChunked(t *testing.T) {
	db := seeded(t)
	ledger := contracts.NewLedger()
	ledger.Record(contracts.RelOptions, 5)

	report := run(t, db, Config{TieBreak: KeepFirst, LargeRowThreshold: 2}, ledger)

	assert.True(t, report.Chunked)
	assert.Equal(t, 2, report.Flushes)
	assert.Equal(t, int64(5), report.Rows)

	count, err := db.Count(context.Background(), contracts.RelCalData)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestRunGates(t *testing.T) {
	db := seeded(t)
	v := gate.NewValidator(db, contracts.NewLedger(), true, logger.Nop())

	_, err := NewEnricher(db, v, Config{}, logger.Nop()).Run(context.Background())

	var ge *contracts.GateError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, contracts.RelCalData, ge.Relation, "inputs pass MinReady, cal_data misses MinCalData")
	assert.Equal(t, int64(5), ge.Observed)
}

func TestParseTieBreak(t *testing.T) {
	tb, err := ParseTieBreak("LAST")
	require.NoError(t, err)
	assert.Equal(t, KeepLast, tb)

	tb, err = ParseTieBreak("first")
	require.NoError(t, err)
	assert.Equal(t, KeepFirst, tb)

	_, err = ParseTieBreak("newest")
	assert.Error(t, err)
}

func TestIndexPolicy(t *testing.T) {
	first := newIndex[string, int](KeepFirst)
	last := newIndex[string, int](KeepLast)
	for i, k := range []string{"a", "b", "a", "a"} {
		first.put(k, i)
		last.put(k, i)
	}

	v, _ := first.get("a")
	assert.Equal(t, 0, v)
	v, _ = last.get("a")
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, first.duplicates)
	assert.Equal(t, 2, first.len())
}

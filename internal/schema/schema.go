package schema

import (
	"context"
	"fmt"

	"github.com/wonny/optenrich/pkg/database"
)

// Tables are created in this order. cal_data columns follow
// contracts.CalDataColumns.
var tables = []struct {
	name string
	ddl  string
}{
	{"options", `CREATE TABLE IF NOT EXISTS options (
		symbol VARCHAR,
		date   DATE,
		time   TIME,
		open   INTEGER,
		high   INTEGER,
		low    INTEGER,
		close  INTEGER,
		volume BIGINT,
		oi     BIGINT
	)`},
	{"index_data", `CREATE TABLE IF NOT EXISTS index_data (
		date      DATE,
		time      TIME,
		idx_open  INTEGER,
		idx_high  INTEGER,
		idx_low   INTEGER,
		idx_close INTEGER
	)`},
	{"future_data", `CREATE TABLE IF NOT EXISTS future_data (
		date       DATE,
		time       TIME,
		fut_open   INTEGER,
		fut_high   INTEGER,
		fut_low    INTEGER,
		fut_close  INTEGER,
		fut_volume BIGINT,
		fut_oi     BIGINT
	)`},
	{"splits", `CREATE TABLE IF NOT EXISTS splits (
		symbol       VARCHAR,
		instrument   VARCHAR,
		expiry_date  DATE,
		strike_price INTEGER,
		option_type  VARCHAR,
		date         DATE
	)`},
	{"cal_data", `CREATE TABLE IF NOT EXISTS cal_data (
		symbol        VARCHAR,
		instrument    VARCHAR,
		expiry_date   DATE,
		date          DATE,
		time          TIME,
		expiry_day    INTEGER,
		strike_price  INTEGER,
		option_type   VARCHAR,
		spot          INTEGER,
		strdifference INTEGER,
		dte           INTEGER,
		open          INTEGER,
		high          INTEGER,
		low           INTEGER,
		close         INTEGER,
		volume        BIGINT,
		oi            BIGINT,
		moneyness     VARCHAR,
		idx_open      INTEGER,
		idx_high      INTEGER,
		idx_low       INTEGER,
		idx_close     INTEGER,
		fut_open      INTEGER,
		fut_high      INTEGER,
		fut_low       INTEGER,
		fut_close     INTEGER,
		fut_volume    BIGINT,
		fut_oi        BIGINT
	)`},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_option_datetime ON options(date, time)",
	"CREATE INDEX IF NOT EXISTS idx_option_symbol ON options(symbol)",
	"CREATE INDEX IF NOT EXISTS idx_index_datetime ON index_data(date, time)",
	"CREATE INDEX IF NOT EXISTS idx_future_datetime ON future_data(date, time)",
	"CREATE INDEX IF NOT EXISTS idx_split_symbol ON splits(symbol)",
	"CREATE INDEX IF NOT EXISTS idx_cal_datetime ON cal_data(date, time)",
}

// Ensure creates the five scratch relations and their indices if absent.
// Calling it twice on the same session is a no-op.
func Ensure(ctx context.Context, db *database.DB) error {
	for _, t := range tables {
		if _, err := db.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}

	for _, stmt := range indexes {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// Tables returns the relation names Ensure creates, in creation order
func Tables() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.name
	}
	return names
}

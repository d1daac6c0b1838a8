// Package testutil builds source parquet fixtures and scratch sessions for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/optenrich/pkg/database"
)

// Fixture defaults matching the production instrument conventions
const (
	IndexSymbol  = "NIFTY"
	FutureSymbol = "NIFTY-I"
	SpotBase     = 21500
)

// Tick is one source row as written by the upstream converter
type Tick struct {
	Symbol string
	Date   string // DD-MM-YYYY
	Time   string // HH:MM:SS
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	OI     float64
}

// OpenMemory opens an in-memory session closed at test cleanup
func OpenMemory(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), "", database.Settings{Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteParquet writes ticks to path with the source column layout
func WriteParquet(t testing.TB, path string, ticks []Tick) {
	t.Helper()
	ctx := context.Background()

	db := OpenMemory(t)
	_, err := db.Exec(ctx, `CREATE TABLE src (
		symbol VARCHAR, date VARCHAR, time VARCHAR,
		open DOUBLE, high DOUBLE, low DOUBLE, close DOUBLE,
		volume DOUBLE, oi DOUBLE
	)`)
	require.NoError(t, err)

	err = db.WithAppender(ctx, "src", func(a *database.Appender) error {
		for _, tk := range ticks {
			if err := a.Append(tk.Symbol, tk.Date, tk.Time, tk.Open, tk.High, tk.Low, tk.Close, tk.Volume, tk.OI); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_, err = db.Exec(ctx, fmt.Sprintf("COPY src TO %s (FORMAT parquet)", database.Quote(path)))
	require.NoError(t, err)
}

// Minutes returns n consecutive HH:MM:SS stamps starting at start
func Minutes(start string, n int) []string {
	t0, err := time.Parse("15:04:05", start)
	if err != nil {
		panic(err)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Minute).Format("15:04:05")
	}
	return out
}

// TradingDay builds one index tick, one future tick and one tick per option
// symbol at every stamp. The index close is SpotBase at every stamp.
func TradingDay(date string, stamps []string, optionSymbols ...string) []Tick {
	var ticks []Tick
	for i, ts := range stamps {
		ticks = append(ticks,
			Tick{Symbol: IndexSymbol, Date: date, Time: ts,
				Open: SpotBase - 10, High: SpotBase + 20, Low: SpotBase - 20, Close: SpotBase},
			Tick{Symbol: FutureSymbol, Date: date, Time: ts,
				Open: SpotBase + 40, High: SpotBase + 60, Low: SpotBase + 30, Close: SpotBase + 50,
				Volume: float64(1000 + i), OI: 500000},
		)
		for j, sym := range optionSymbols {
			px := float64(100 + j)
			ticks = append(ticks, Tick{
				Symbol: sym, Date: date, Time: ts,
				Open: px, High: px + 5, Low: px - 5, Close: px + 0.4,
				Volume: float64(10 * (i + 1)), OI: float64(2000 + j),
			})
		}
	}
	return ticks
}

// StrikeSymbols returns weekly option symbols around the base spot, for
// example NIFTY25JAN2421500CE. Strikes step by 50 from lo to hi inclusive.
func StrikeSymbols(expiry string, lo, hi int, types ...string) []string {
	var out []string
	for k := lo; k <= hi; k += 50 {
		for _, typ := range types {
			out = append(out, fmt.Sprintf("NIFTY%s%d%s", expiry, k, typ))
		}
	}
	return out
}

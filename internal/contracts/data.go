package contracts

import (
	"database/sql"
	"database/sql/driver"
	"time"
)

// Relation names inside the per-file scratch database
const (
	RelOptions = "options"
	RelIndex   = "index_data"
	RelFuture  = "future_data"
	RelSplits  = "splits"
	RelCalData = "cal_data"
)

// Option types accepted by the symbol grammar
const (
	Call = "CE"
	Put  = "PE"
)

// RawOption is one option tick as extracted from the source file.
// Identity: (Symbol, Date, Time). Price fields are NULL when the source was.
type RawOption struct {
	Symbol string
	Date   time.Time
	Time   time.Time
	Open   sql.Null[int32]
	High   sql.Null[int32]
	Low    sql.Null[int32]
	Close  sql.Null[int32]
	Volume sql.Null[int64]
	OI     sql.Null[int64]
}

// Key returns the (date, time) join key of the tick
func (o RawOption) Key() BarKey {
	return NewBarKey(o.Date, o.Time)
}

// IndexBar is one underlying index bar
type IndexBar struct {
	Open  sql.Null[int32]
	High  sql.Null[int32]
	Low   sql.Null[int32]
	Close sql.Null[int32]
}

// FutureBar is one near-month future bar
type FutureBar struct {
	Open   sql.Null[int32]
	High   sql.Null[int32]
	Low    sql.Null[int32]
	Close  sql.Null[int32]
	Volume sql.Null[int64]
	OI     sql.Null[int64]
}

// BarKey identifies a bar by trade date and time of day.
// Day counts days since 1970-01-01, Clock counts microseconds since midnight.
type BarKey struct {
	Day   int32
	Clock int64
}

// NewBarKey builds a key from a DATE value and a TIME value.
// Only the calendar date of d and the wall clock of t are used.
func NewBarKey(d, t time.Time) BarKey {
	y, m, dd := d.Date()
	day := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC).Unix() / 86400
	clock := int64(t.Hour())*3600 + int64(t.Minute())*60 + int64(t.Second())
	return BarKey{
		Day:   int32(day),
		Clock: clock*1_000_000 + int64(t.Nanosecond()/1000),
	}
}

// SymbolSplit is the decomposition of one distinct option symbol
type SymbolSplit struct {
	Symbol     string
	Instrument string
	Expiry     time.Time
	Strike     int32
	OptionType string
	FirstSeen  time.Time
}

// EnrichedRow is one row of cal_data.
// Split fields stay NULL when the symbol failed decomposition, idx/fut
// fields when no bar matched the tick's (date, time).
type EnrichedRow struct {
	RawOption
	Instrument    sql.Null[string]
	ExpiryDate    sql.Null[time.Time]
	ExpiryDay     sql.Null[int32]
	StrikePrice   sql.Null[int32]
	OptionType    sql.Null[string]
	Spot          sql.Null[int32]
	StrDifference sql.Null[int32]
	DTE           sql.Null[int32]
	Moneyness     sql.Null[string]
	Idx           IndexBar
	Fut           FutureBar
}

// CalDataColumns lists cal_data columns in table order
var CalDataColumns = []string{
	"symbol", "instrument", "expiry_date", "date", "time", "expiry_day",
	"strike_price", "option_type", "spot", "strdifference", "dte",
	"open", "high", "low", "close", "volume", "oi", "moneyness",
	"idx_open", "idx_high", "idx_low", "idx_close",
	"fut_open", "fut_high", "fut_low", "fut_close", "fut_volume", "fut_oi",
}

// Values returns the row in CalDataColumns order, nil for NULL
func (r *EnrichedRow) Values() []driver.Value {
	return []driver.Value{
		r.Symbol,
		nullable(r.Instrument),
		nullable(r.ExpiryDate),
		r.Date,
		r.Time,
		nullable(r.ExpiryDay),
		nullable(r.StrikePrice),
		nullable(r.OptionType),
		nullable(r.Spot),
		nullable(r.StrDifference),
		nullable(r.DTE),
		nullable(r.Open),
		nullable(r.High),
		nullable(r.Low),
		nullable(r.Close),
		nullable(r.Volume),
		nullable(r.OI),
		nullable(r.Moneyness),
		nullable(r.Idx.Open),
		nullable(r.Idx.High),
		nullable(r.Idx.Low),
		nullable(r.Idx.Close),
		nullable(r.Fut.Open),
		nullable(r.Fut.High),
		nullable(r.Fut.Low),
		nullable(r.Fut.Close),
		nullable(r.Fut.Volume),
		nullable(r.Fut.OI),
	}
}

// Valid wraps v as a non-NULL value
func Valid[T any](v T) sql.Null[T] {
	return sql.Null[T]{V: v, Valid: true}
}

func nullable[T any](n sql.Null[T]) driver.Value {
	if !n.Valid {
		return nil
	}
	return n.V
}

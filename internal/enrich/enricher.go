package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// Config controls joins and chunking
type Config struct {
	TieBreak          TieBreak
	LargeRowThreshold int // option count above which the appender flushes in chunks
}

// Report summarises one enrichment run
type Report struct {
	Rows            int64
	NullSpot        int64
	NullStrike      int64
	DuplicateSplits int
	DuplicateIndex  int
	DuplicateFuture int
	Chunked         bool
	Flushes         int
}

// Counts returns the report as stage counts
func (r Report) Counts() map[string]int64 {
	return map[string]int64{
		contracts.RelCalData: r.Rows,
		"null_spot":          r.NullSpot,
		"null_strike":        r.NullStrike,
		"duplicate_index":    int64(r.DuplicateIndex),
		"duplicate_future":   int64(r.DuplicateFuture),
	}
}

// Enricher builds cal_data from options, splits, index_data and future_data
type Enricher struct {
	db        *database.DB
	validator *gate.Validator
	config    Config
	logger    *logger.Logger
}

// NewEnricher creates a new Enricher
func NewEnricher(db *database.DB, validator *gate.Validator, config Config, log *logger.Logger) *Enricher {
	if config.TieBreak == "" {
		config.TieBreak = KeepFirst
	}
	return &Enricher{
		db:        db,
		validator: validator,
		config:    config,
		logger:    log.Module("enrich"),
	}
}

// Run seeds cal_data from options and back-fills split, index and future
// fields through in-memory hash indexes, deriving expiry_day, strdifference
// and dte per row.
func (e *Enricher) Run(ctx context.Context) (Report, error) {
	var report Report

	if err := e.validator.CheckAll(ctx, gate.MinReady,
		contracts.RelOptions, contracts.RelSplits, contracts.RelIndex, contracts.RelFuture); err != nil {
		return report, err
	}

	splits, err := e.loadSplits(ctx)
	if err != nil {
		return report, err
	}
	idx, err := e.loadIndex(ctx)
	if err != nil {
		return report, err
	}
	fut, err := e.loadFuture(ctx)
	if err != nil {
		return report, err
	}
	report.DuplicateSplits = splits.duplicates
	report.DuplicateIndex = idx.duplicates
	report.DuplicateFuture = fut.duplicates

	for rel, dups := range map[string]int{
		contracts.RelSplits: splits.duplicates,
		contracts.RelIndex:  idx.duplicates,
		contracts.RelFuture: fut.duplicates,
	} {
		if dups > 0 {
			e.logger.WithFields(logger.Fields{
				"relation":   rel,
				"duplicates": dups,
				"tie_break":  e.config.TieBreak,
			}).Warn("duplicate join keys")
		}
	}

	chunk := 0
	if options, ok := e.validator.Ledger().Count(contracts.RelOptions); ok && options > int64(e.config.LargeRowThreshold) && e.config.LargeRowThreshold > 0 {
		chunk = e.config.LargeRowThreshold
		report.Chunked = true
		e.logger.WithFields(logger.Fields{
			"options":    options,
			"chunk_size": chunk,
		}).Info("large file, appending in chunks")
	}

	rows, err := e.db.Conn.QueryContext(ctx, `
		SELECT symbol, date, time, open, high, low, close, volume, oi
		FROM options`)
	if err != nil {
		return report, fmt.Errorf("read options: %w", err)
	}
	defer rows.Close()

	err = e.db.WithAppender(ctx, contracts.RelCalData, func(a *database.Appender) error {
		for rows.Next() {
			var row contracts.EnrichedRow
			o := &row.RawOption
			if err := rows.Scan(&o.Symbol, &o.Date, &o.Time, &o.Open, &o.High, &o.Low, &o.Close, &o.Volume, &o.OI); err != nil {
				return fmt.Errorf("scan option: %w", err)
			}

			if s, ok := splits.get(o.Symbol); ok {
				applySplit(&row, s)
			}
			key := o.Key()
			if bar, ok := idx.get(key); ok {
				row.Idx = bar
				row.Spot = bar.Close
			}
			if bar, ok := fut.get(key); ok {
				row.Fut = bar
			}
			derive(&row)

			if !row.Spot.Valid {
				report.NullSpot++
			}
			if !row.StrikePrice.Valid {
				report.NullStrike++
			}

			if err := a.Append(row.Values()...); err != nil {
				return err
			}
			report.Rows++

			if chunk > 0 && report.Rows%int64(chunk) == 0 {
				if err := a.Flush(); err != nil {
					return err
				}
				report.Flushes++
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return rows.Err()
	})
	if err != nil {
		return report, fmt.Errorf("build cal_data: %w", err)
	}

	e.validator.Ledger().Record(contracts.RelCalData, report.Rows)
	e.logger.WithFields(logger.Fields{
		"rows":        report.Rows,
		"null_spot":   report.NullSpot,
		"null_strike": report.NullStrike,
		"index_keys":  idx.len(),
		"future_keys": fut.len(),
	}).Info("cal data created")

	if err := e.validator.CheckReady(ctx, contracts.RelCalData, gate.MinCalData); err != nil {
		return report, err
	}
	return report, nil
}

func applySplit(row *contracts.EnrichedRow, s contracts.SymbolSplit) {
	row.Instrument = contracts.Valid(s.Instrument)
	row.ExpiryDate = contracts.Valid(s.Expiry)
	row.StrikePrice = contracts.Valid(s.Strike)
	row.OptionType = contracts.Valid(s.OptionType)
}

// derive fills expiry_day (Sunday=0), strdifference and dte
func derive(row *contracts.EnrichedRow) {
	if row.ExpiryDate.Valid {
		exp := row.ExpiryDate.V
		row.ExpiryDay = contracts.Valid(int32(exp.Weekday()))
		row.DTE = contracts.Valid(civilDay(exp) - civilDay(row.Date))
	}
	if row.StrikePrice.Valid && row.Spot.Valid {
		row.StrDifference = contracts.Valid(row.StrikePrice.V - row.Spot.V)
	}
}

// civilDay returns days since 1970-01-01 for the calendar date of t
func civilDay(t time.Time) int32 {
	return contracts.NewBarKey(t, time.Time{}).Day
}

func (e *Enricher) loadSplits(ctx context.Context) (*index[string, contracts.SymbolSplit], error) {
	ix := newIndex[string, contracts.SymbolSplit](e.config.TieBreak)

	rows, err := e.db.Conn.QueryContext(ctx, `
		SELECT symbol, instrument, expiry_date, strike_price, option_type, date
		FROM splits ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("read splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s contracts.SymbolSplit
		if err := rows.Scan(&s.Symbol, &s.Instrument, &s.Expiry, &s.Strike, &s.OptionType, &s.FirstSeen); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		ix.put(s.Symbol, s)
	}
	return ix, rows.Err()
}

func (e *Enricher) loadIndex(ctx context.Context) (*index[contracts.BarKey, contracts.IndexBar], error) {
	ix := newIndex[contracts.BarKey, contracts.IndexBar](e.config.TieBreak)

	rows, err := e.db.Conn.QueryContext(ctx, `
		SELECT date, time, idx_open, idx_high, idx_low, idx_close
		FROM index_data ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("read index_data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d, t time.Time
			b    contracts.IndexBar
		)
		if err := rows.Scan(&d, &t, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("scan index bar: %w", err)
		}
		ix.put(contracts.NewBarKey(d, t), b)
	}
	return ix, rows.Err()
}

func (e *Enricher) loadFuture(ctx context.Context) (*index[contracts.BarKey, contracts.FutureBar], error) {
	ix := newIndex[contracts.BarKey, contracts.FutureBar](e.config.TieBreak)

	rows, err := e.db.Conn.QueryContext(ctx, `
		SELECT date, time, fut_open, fut_high, fut_low, fut_close, fut_volume, fut_oi
		FROM future_data ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("read future_data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d, t time.Time
			b    contracts.FutureBar
		)
		if err := rows.Scan(&d, &t, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.OI); err != nil {
			return nil, fmt.Errorf("scan future bar: %w", err)
		}
		ix.put(contracts.NewBarKey(d, t), b)
	}
	return ix, rows.Err()
}

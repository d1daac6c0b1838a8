package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// Config selects which source rows land in which relation
type Config struct {
	IndexSymbol  string // e.g. NIFTY
	FutureSymbol string // e.g. NIFTY-I
	SessionStart string // HH:MM:SS, inclusive
	SessionEnd   string // HH:MM:SS, inclusive
}

// Counts are the rows inserted per relation
type Counts struct {
	Options int64
	Index   int64
	Future  int64
}

// Map returns the counts keyed by relation name
func (c Counts) Map() map[string]int64 {
	return map[string]int64{
		contracts.RelOptions: c.Options,
		contracts.RelIndex:   c.Index,
		contracts.RelFuture:  c.Future,
	}
}

// Extractor copies one source parquet file into the raw relations
type Extractor struct {
	db        *database.DB
	validator *gate.Validator
	config    Config
	logger    *logger.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(db *database.DB, validator *gate.Validator, config Config, log *logger.Logger) *Extractor {
	return &Extractor{
		db:        db,
		validator: validator,
		config:    config,
		logger:    log.Module("extract"),
	}
}

// Source columns: symbol, date (DD-MM-YYYY text), time (HH:MM:SS text),
// open, high, low, close, volume, oi. The window predicate is shared by all three copies.
const (
	optionsInsert = `
		INSERT INTO options
		SELECT
			symbol,
			CAST(strptime(date, '%%d-%%m-%%Y') AS DATE),
			CAST(time AS TIME),
			CAST(ROUND(open) AS INTEGER),
			CAST(ROUND(high) AS INTEGER),
			CAST(ROUND(low) AS INTEGER),
			CAST(ROUND(close) AS INTEGER),
			CAST(ROUND(volume) AS BIGINT),
			CAST(ROUND(oi) AS BIGINT)
		FROM read_parquet(%s)
		WHERE (symbol LIKE '%%CE%%' OR symbol LIKE '%%PE%%') AND date IS NOT NULL
		  AND CAST(time AS TIME) BETWEEN CAST(? AS TIME) AND CAST(? AS TIME)`

	indexInsert = `
		INSERT INTO index_data
		SELECT
			CAST(strptime(date, '%%d-%%m-%%Y') AS DATE),
			CAST(time AS TIME),
			CAST(ROUND(open) AS INTEGER),
			CAST(ROUND(high) AS INTEGER),
			CAST(ROUND(low) AS INTEGER),
			CAST(ROUND(close) AS INTEGER)
		FROM read_parquet(%s)
		WHERE symbol = ? AND date IS NOT NULL
		  AND CAST(time AS TIME) BETWEEN CAST(? AS TIME) AND CAST(? AS TIME)`

	futureInsert = `
		INSERT INTO future_data
		SELECT
			CAST(strptime(date, '%%d-%%m-%%Y') AS DATE),
			CAST(time AS TIME),
			CAST(ROUND(open) AS INTEGER),
			CAST(ROUND(high) AS INTEGER),
			CAST(ROUND(low) AS INTEGER),
			CAST(ROUND(close) AS INTEGER),
			CAST(ROUND(volume) AS BIGINT),
			CAST(ROUND(oi) AS BIGINT)
		FROM read_parquet(%s)
		WHERE symbol = ? AND date IS NOT NULL
		  AND CAST(time AS TIME) BETWEEN CAST(? AS TIME) AND CAST(? AS TIME)`
)

// Run populates options, index_data and future_data from source.
// Each copy is followed by its gate; the first failing gate stops the stage.
func (e *Extractor) Run(ctx context.Context, source string) (Counts, error) {
	var counts Counts

	if _, err := os.Stat(source); err != nil {
		return counts, fmt.Errorf("source file: %w", err)
	}
	src := database.Quote(source)
	start, end := e.config.SessionStart, e.config.SessionEnd

	// 1. Options (CE/PE)
	n, err := e.db.Exec(ctx, fmt.Sprintf(optionsInsert, src), start, end)
	if err != nil {
		return counts, fmt.Errorf("extract options: %w", err)
	}
	counts.Options = n
	e.record(contracts.RelOptions, n)
	if err := e.validator.CheckReady(ctx, contracts.RelOptions, gate.MinOptions); err != nil {
		return counts, err
	}

	// 2. Index
	n, err = e.db.Exec(ctx, fmt.Sprintf(indexInsert, src), e.config.IndexSymbol, start, end)
	if err != nil {
		return counts, fmt.Errorf("extract index %s: %w", e.config.IndexSymbol, err)
	}
	counts.Index = n
	e.record(contracts.RelIndex, n)
	if err := e.validator.CheckReady(ctx, contracts.RelIndex, gate.MinIndex); err != nil {
		return counts, err
	}

	// 3. Future
	n, err = e.db.Exec(ctx, fmt.Sprintf(futureInsert, src), e.config.FutureSymbol, start, end)
	if err != nil {
		return counts, fmt.Errorf("extract future %s: %w", e.config.FutureSymbol, err)
	}
	counts.Future = n
	e.record(contracts.RelFuture, n)
	if err := e.validator.CheckReady(ctx, contracts.RelFuture, gate.MinFuture); err != nil {
		return counts, err
	}

	return counts, nil
}

func (e *Extractor) record(relation string, n int64) {
	e.validator.Ledger().Record(relation, n)
	e.logger.WithFields(logger.Fields{
		"relation": relation,
		"rows":     n,
	}).Info("rows extracted")
}

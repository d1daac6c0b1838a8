package symbol

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// SampleSize bounds the failed-symbol sample
const SampleSize = 5

// Report summarises one decomposition run
type Report struct {
	Candidates    int      // distinct symbols with the root prefix
	Parsed        int      // splits rows written
	FailedSymbols int      // distinct candidates that did not parse
	FailedRows    int64    // option rows carrying those symbols
	Sample        []string // first failed symbols in name order
}

// Counts returns the report as stage counts
func (r Report) Counts() map[string]int64 {
	return map[string]int64{
		contracts.RelSplits: int64(r.Parsed),
		"failed_symbols":    int64(r.FailedSymbols),
		"failed_rows":       r.FailedRows,
	}
}

// Decomposer builds the splits relation from distinct option symbols
type Decomposer struct {
	db        *database.DB
	validator *gate.Validator
	root      string
	logger    *logger.Logger
}

// NewDecomposer creates a Decomposer for symbols starting with root
func NewDecomposer(db *database.DB, validator *gate.Validator, root string, log *logger.Logger) *Decomposer {
	return &Decomposer{
		db:        db,
		validator: validator,
		root:      root,
		logger:    log.Module("symbol"),
	}
}

type candidate struct {
	symbol    string
	firstSeen time.Time
	rows      int64
}

// Run parses every distinct candidate symbol and writes one splits row per
// parsed symbol. Unparsed symbols are counted, never fatal; only the splits
// gate can fail the stage.
func (d *Decomposer) Run(ctx context.Context) (Report, error) {
	var report Report

	if err := d.validator.CheckReady(ctx, contracts.RelOptions, gate.MinReady); err != nil {
		return report, err
	}

	candidates, err := d.candidates(ctx)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)

	splits := make([]contracts.SymbolSplit, 0, len(candidates))
	for _, c := range candidates {
		res := Parse(c.symbol)
		split, ok := res.Split(c.firstSeen)
		if !ok {
			report.FailedSymbols++
			report.FailedRows += c.rows
			if len(report.Sample) < SampleSize {
				report.Sample = append(report.Sample, c.symbol)
			}
			d.logger.WithFields(logger.Fields{
				"symbol": c.symbol,
				"reason": res.Reason,
			}).Debug("symbol did not parse")
			continue
		}
		splits = append(splits, split)
	}

	err = d.db.WithAppender(ctx, contracts.RelSplits, func(a *database.Appender) error {
		for _, s := range splits {
			if err := a.Append(s.Symbol, s.Instrument, s.Expiry, s.Strike, s.OptionType, s.FirstSeen); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("write splits: %w", err)
	}
	report.Parsed = len(splits)
	d.validator.Ledger().Record(contracts.RelSplits, int64(report.Parsed))

	d.logger.WithFields(logger.Fields{
		"candidates": report.Candidates,
		"parsed":     report.Parsed,
	}).Info("split data created")

	if report.FailedSymbols > 0 {
		log := d.logger.WithFields(logger.Fields{
			"failed_symbols": report.FailedSymbols,
			"failed_rows":    report.FailedRows,
		})
		if d.validator.Enabled() {
			log = log.WithField("sample", report.Sample)
		}
		log.Warnf("%d %s option symbols could not be parsed", report.FailedSymbols, d.root)
	}

	if err := d.validator.CheckReady(ctx, contracts.RelSplits, gate.MinSplits); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Decomposer) candidates(ctx context.Context) ([]candidate, error) {
	rows, err := d.db.Conn.QueryContext(ctx, `
		SELECT symbol, MIN(date), COUNT(*)
		FROM options
		WHERE starts_with(symbol, ?)
		GROUP BY symbol
		ORDER BY symbol`, d.root)
	if err != nil {
		return nil, fmt.Errorf("distinct symbols: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.symbol, &c.firstSeen, &c.rows); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

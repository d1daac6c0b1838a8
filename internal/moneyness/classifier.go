package moneyness

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/internal/gate"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

const mapTable = "moneyness_map"

// Report summarises one classification run
type Report struct {
	Pairs        int              // distinct (option_type, strdifference) pairs
	Labeled      int64            // rows with a bucket
	Unlabeled    int64            // rows left NULL
	Distribution map[string]int64 // rows per bucket
}

// Counts returns the report as stage counts
func (r Report) Counts() map[string]int64 {
	return map[string]int64{
		"labeled":   r.Labeled,
		"unlabeled": r.Unlabeled,
		"pairs":     int64(r.Pairs),
	}
}

// Classifier assigns moneyness buckets to cal_data
type Classifier struct {
	db        *database.DB
	validator *gate.Validator
	logger    *logger.Logger
}

// NewClassifier creates a new Classifier
func NewClassifier(db *database.DB, validator *gate.Validator, log *logger.Logger) *Classifier {
	return &Classifier{
		db:        db,
		validator: validator,
		logger:    log.Module("moneyness"),
	}
}

// Run labels every cal_data row through Classify. Each distinct
// (option_type, strdifference) pair is classified once and applied with a
// single keyed update.
func (c *Classifier) Run(ctx context.Context) (Report, error) {
	report := Report{Distribution: make(map[string]int64)}

	if err := c.validator.CheckReady(ctx, contracts.RelCalData, gate.MinReady); err != nil {
		return report, err
	}

	type pair struct {
		optType  string
		distance int32
		label    string
	}

	rows, err := c.db.Conn.QueryContext(ctx, `
		SELECT DISTINCT option_type, strdifference
		FROM cal_data
		WHERE option_type IN ('CE', 'PE') AND strdifference IS NOT NULL`)
	if err != nil {
		return report, fmt.Errorf("distinct distances: %w", err)
	}

	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.optType, &p.distance); err != nil {
			rows.Close()
			return report, fmt.Errorf("scan distance: %w", err)
		}
		label := Classify(p.optType, contracts.Valid(p.distance))
		if !label.Valid {
			continue
		}
		p.label = label.V
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}
	report.Pairs = len(pairs)

	if _, err := c.db.Exec(ctx, fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s (option_type VARCHAR, strdifference INTEGER, moneyness VARCHAR)", mapTable)); err != nil {
		return report, fmt.Errorf("create %s: %w", mapTable, err)
	}
	defer func() {
		if _, err := c.db.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+mapTable); err != nil {
			c.logger.WithError(err).Warn("failed to drop moneyness map")
		}
	}()

	err = c.db.WithAppender(ctx, mapTable, func(a *database.Appender) error {
		for _, p := range pairs {
			if err := a.Append(p.optType, p.distance, p.label); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("write %s: %w", mapTable, err)
	}

	if _, err := c.db.Exec(ctx, fmt.Sprintf(`
		UPDATE cal_data
		SET moneyness = m.moneyness
		FROM %s m
		WHERE cal_data.option_type = m.option_type
		  AND cal_data.strdifference = m.strdifference`, mapTable)); err != nil {
		return report, fmt.Errorf("apply moneyness: %w", err)
	}

	if err := c.distribution(ctx, &report); err != nil {
		return report, err
	}
	c.logDistribution(report)

	if err := c.validator.CheckReady(ctx, contracts.RelCalData, gate.MinCalData); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Classifier) distribution(ctx context.Context, report *Report) error {
	rows, err := c.db.Conn.QueryContext(ctx,
		"SELECT moneyness, COUNT(*) FROM cal_data GROUP BY moneyness")
	if err != nil {
		return fmt.Errorf("moneyness distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label sql.NullString
			n     int64
		)
		if err := rows.Scan(&label, &n); err != nil {
			return fmt.Errorf("scan distribution: %w", err)
		}
		if !label.Valid {
			report.Unlabeled += n
			continue
		}
		report.Distribution[label.String] = n
		report.Labeled += n
	}
	return rows.Err()
}

func (c *Classifier) logDistribution(report Report) {
	fields := logger.Fields{}
	for _, label := range Labels() {
		if n := report.Distribution[label]; n > 0 {
			fields[label] = n
		}
	}
	fields["unlabeled"] = report.Unlabeled

	c.logger.WithFields(fields).WithField("pairs", report.Pairs).Info("moneyness assigned")
	if report.Unlabeled > 0 {
		c.logger.Warnf("%d rows have no moneyness bucket", report.Unlabeled)
	}
}

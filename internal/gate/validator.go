package gate

import (
	"context"
	"fmt"

	"github.com/wonny/optenrich/internal/contracts"
	"github.com/wonny/optenrich/pkg/database"
	"github.com/wonny/optenrich/pkg/logger"
)

// Minimum row counts between stages
const (
	MinOptions = 100 // minimum viable trading day
	MinIndex   = 10  // session existence
	MinFuture  = 10
	MinSplits  = 10
	MinCalData = 100
	MinReady   = 1 // re-checks before dependent stages
)

// Validator checks relation readiness and records observed counts
type Validator struct {
	db      *database.DB
	ledger  *contracts.Ledger
	enabled bool
	logger  *logger.Logger
}

// NewValidator creates a Validator for one file session.
// A disabled validator passes every check without touching the database.
func NewValidator(db *database.DB, ledger *contracts.Ledger, enabled bool, log *logger.Logger) *Validator {
	return &Validator{
		db:      db,
		ledger:  ledger,
		enabled: enabled,
		logger:  log.Module("gate"),
	}
}

// Enabled reports whether checks are performed
func (v *Validator) Enabled() bool {
	return v.enabled
}

// Ledger returns the per-file ledger the validator writes to
func (v *Validator) Ledger() *contracts.Ledger {
	return v.ledger
}

// CheckReady returns nil when relation exists and holds at least minRows rows.
// Otherwise it returns a *contracts.GateError.
func (v *Validator) CheckReady(ctx context.Context, relation string, minRows int64) error {
	if !v.enabled {
		return nil
	}

	exists, err := v.db.TableExists(ctx, relation)
	if err != nil {
		return fmt.Errorf("check %s: %w", relation, err)
	}
	if !exists {
		return &contracts.GateError{Relation: relation, Required: minRows, Missing: true}
	}

	count, err := v.db.Count(ctx, relation)
	if err != nil {
		return fmt.Errorf("check %s: %w", relation, err)
	}
	v.ledger.Record(relation, count)

	if count < minRows {
		v.logger.WithFields(logger.Fields{
			"relation": relation,
			"observed": count,
			"required": minRows,
		}).Warn("gate failed")
		return &contracts.GateError{Relation: relation, Observed: count, Required: minRows}
	}

	v.logger.WithFields(logger.Fields{
		"relation": relation,
		"rows":     count,
	}).Debug("gate passed")
	return nil
}

// CheckAll runs CheckReady for every relation in order and stops at the first failure
func (v *Validator) CheckAll(ctx context.Context, minRows int64, relations ...string) error {
	for _, rel := range relations {
		if err := v.CheckReady(ctx, rel, minRows); err != nil {
			return err
		}
	}
	return nil
}

package moneyness

import (
	"database/sql"
	"math"

	"github.com/wonny/optenrich/internal/contracts"
)

// Bucket labels
const (
	DeepITM = "DEEPITM"
	DeepOTM = "DEEPOTM"
	ATM     = "ATM"
)

// Band maps an inclusive strike-distance range to a label per option type
type Band struct {
	Lower int32
	Upper int32
	Call  string
	Put   string
}

// Contains reports whether d lies in [Lower, Upper]
func (b Band) Contains(d int32) bool {
	return d >= b.Lower && d <= b.Upper
}

// Label returns the band's label for optionType, or "" for other types
func (b Band) Label(optionType string) string {
	switch optionType {
	case contracts.Call:
		return b.Call
	case contracts.Put:
		return b.Put
	default:
		return ""
	}
}

// Table is the breakpoint table in ascending distance order.
// Distance is strike - spot. Distance 0 lies in both the ATM-1 and ATM bands
// and resolves to ATM.
var Table = []Band{
	{math.MinInt32, -501, DeepITM, DeepOTM},
	{-500, -451, "ATM-10", "ATM+10"},
	{-450, -401, "ATM-9", "ATM+9"},
	{-400, -351, "ATM-8", "ATM+8"},
	{-350, -301, "ATM-7", "ATM+7"},
	{-300, -251, "ATM-6", "ATM+6"},
	{-250, -201, "ATM-5", "ATM+5"},
	{-200, -151, "ATM-4", "ATM+4"},
	{-150, -101, "ATM-3", "ATM+3"},
	{-100, -51, "ATM-2", "ATM+2"},
	{-50, 0, "ATM-1", "ATM+1"},
	{0, 50, ATM, ATM},
	{51, 100, "ATM+1", "ATM-1"},
	{101, 150, "ATM+2", "ATM-2"},
	{151, 200, "ATM+3", "ATM-3"},
	{201, 250, "ATM+4", "ATM-4"},
	{251, 300, "ATM+5", "ATM-5"},
	{301, 350, "ATM+6", "ATM-6"},
	{351, 400, "ATM+7", "ATM-7"},
	{401, 450, "ATM+8", "ATM-8"},
	{451, 500, "ATM+9", "ATM-9"},
	{501, 550, "ATM+10", "ATM-10"},
	{551, math.MaxInt32, DeepOTM, DeepITM},
}

// lookup returns the band containing d; the ATM band wins overlaps
func lookup(d int32) (Band, bool) {
	var (
		hit   Band
		found bool
	)
	for _, b := range Table {
		if !b.Contains(d) {
			continue
		}
		if !found || b.Call == ATM {
			hit, found = b, true
		}
	}
	return hit, found
}

// Classify returns the bucket for (optionType, distance). The result is NULL
// when the option type is not CE/PE or the distance is NULL.
func Classify(optionType string, distance sql.Null[int32]) sql.Null[string] {
	if !distance.Valid {
		return sql.Null[string]{}
	}
	b, ok := lookup(distance.V)
	if !ok {
		return sql.Null[string]{}
	}
	label := b.Label(optionType)
	if label == "" {
		return sql.Null[string]{}
	}
	return contracts.Valid(label)
}

// Labels returns the 23 bucket labels from most in-the-money call side to
// most out-of-the-money, i.e. the Call column of Table in order.
func Labels() []string {
	out := make([]string, 0, len(Table))
	for _, b := range Table {
		out = append(out, b.Call)
	}
	return out
}

// IsExtreme reports whether label is one of the two catch-all buckets
func IsExtreme(label string) bool {
	return label == DeepITM || label == DeepOTM
}

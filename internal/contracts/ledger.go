package contracts

import "sort"

// Ledger records the last observed row count per relation for one file.
// A fresh Ledger is created for every input file.
type Ledger struct {
	counts map[string]int64
}

// NewLedger returns an empty ledger
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[string]int64)}
}

// Record stores the observed count for relation
func (l *Ledger) Record(relation string, count int64) {
	l.counts[relation] = count
}

// Count returns the last observed count and whether one was recorded
func (l *Ledger) Count(relation string) (int64, bool) {
	c, ok := l.counts[relation]
	return c, ok
}

// Relations returns recorded relation names, sorted
func (l *Ledger) Relations() []string {
	names := make([]string, 0, len(l.counts))
	for name := range l.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all recorded counts
func (l *Ledger) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

package enrich

import (
	"fmt"
	"strings"
)

// TieBreak decides which source row wins when a join key repeats
type TieBreak string

const (
	// KeepFirst keeps the first row in source order
	KeepFirst TieBreak = "first"
	// KeepLast keeps the last row in source order
	KeepLast TieBreak = "last"
)

// ParseTieBreak parses "first" or "last", case-insensitively
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(s)) {
	case KeepFirst:
		return KeepFirst, nil
	case KeepLast:
		return KeepLast, nil
	default:
		return "", fmt.Errorf("unknown tie-break %q (want first or last)", s)
	}
}

// index is a hash index over one joined-from relation
type index[K comparable, V any] struct {
	rows       map[K]V
	policy     TieBreak
	duplicates int
}

func newIndex[K comparable, V any](policy TieBreak) *index[K, V] {
	return &index[K, V]{rows: make(map[K]V), policy: policy}
}

// put inserts v under key, applying the tie-break on repeats
func (ix *index[K, V]) put(key K, v V) {
	if _, seen := ix.rows[key]; seen {
		ix.duplicates++
		if ix.policy == KeepFirst {
			return
		}
	}
	ix.rows[key] = v
}

func (ix *index[K, V]) get(key K) (V, bool) {
	v, ok := ix.rows[key]
	return v, ok
}

func (ix *index[K, V]) len() int {
	return len(ix.rows)
}

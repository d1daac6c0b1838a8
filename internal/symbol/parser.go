package symbol

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/optenrich/internal/contracts"
)

// months maps the exact upper-case month token to its number
var months = map[string]time.Month{
	"JAN": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"APR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AUG": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DEC": time.December,
}

// Parsed holds the grammar fields of one option symbol
type Parsed struct {
	Instrument string
	Day        int
	Month      time.Month
	Year       int // two-digit year as written
	Strike     int32
	OptionType string
}

// Expiry returns the contract expiry date (2000+YY, MM, DD) in UTC
func (p *Parsed) Expiry() time.Time {
	return time.Date(2000+p.Year, p.Month, p.Day, 0, 0, 0, 0, time.UTC)
}

// Result is the tagged outcome of Parse: Parsed is nil when the symbol did
// not match and Reason says where it stopped.
type Result struct {
	Symbol string
	Parsed *Parsed
	Reason string
}

// OK reports whether the symbol matched the grammar
func (r Result) OK() bool {
	return r.Parsed != nil
}

// Split converts a parsed result into a splits row
func (r Result) Split(firstSeen time.Time) (contracts.SymbolSplit, bool) {
	if r.Parsed == nil {
		return contracts.SymbolSplit{}, false
	}
	return contracts.SymbolSplit{
		Symbol:     r.Symbol,
		Instrument: r.Parsed.Instrument,
		Expiry:     r.Parsed.Expiry(),
		Strike:     r.Parsed.Strike,
		OptionType: r.Parsed.OptionType,
		FirstSeen:  firstSeen,
	}, true
}

// Parse decomposes an option symbol of the form
//
//	INSTRUMENT DD MON YY STRIKE TYPE      e.g. NIFTY 25 JAN 24 21500 CE
//
// INSTRUMENT is one or more A-Z letters, DD and YY are two digits, MON is one
// of JAN..DEC, STRIKE is one or more digits and TYPE is CE or PE. The whole
// symbol must match and matching is case-sensitive.
func Parse(s string) Result {
	unparsed := func(format string, args ...any) Result {
		return Result{Symbol: s, Reason: fmt.Sprintf(format, args...)}
	}

	i := 0
	for i < len(s) && isUpper(s[i]) {
		i++
	}
	if i == 0 {
		return unparsed("missing instrument")
	}
	instrument := s[:i]

	if i+2 > len(s) || !isDigit(s[i]) || !isDigit(s[i+1]) {
		return unparsed("day at %d", i)
	}
	day := int(s[i]-'0')*10 + int(s[i+1]-'0')
	i += 2

	if i+3 > len(s) {
		return unparsed("month at %d", i)
	}
	month, ok := months[s[i:i+3]]
	if !ok {
		return unparsed("unknown month %q", s[i:i+3])
	}
	i += 3

	// YY followed by the strike: one digit run split after two digits.
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j-i < 3 {
		return unparsed("year/strike at %d", i)
	}
	year := int(s[i]-'0')*10 + int(s[i+1]-'0')

	var strike int64
	for _, c := range []byte(s[i+2 : j]) {
		strike = strike*10 + int64(c-'0')
		if strike > math.MaxInt32 {
			return unparsed("strike overflows")
		}
	}

	optType := s[j:]
	if optType != contracts.Call && optType != contracts.Put {
		return unparsed("option type %q", optType)
	}

	p := &Parsed{
		Instrument: instrument,
		Day:        day,
		Month:      month,
		Year:       year,
		Strike:     int32(strike),
		OptionType: optType,
	}

	// Reject dates time.Date would normalise, e.g. 31FEB.
	exp := p.Expiry()
	if exp.Day() != day || exp.Month() != month {
		return unparsed("invalid expiry %02d%s%02d", day, s[i-3:i], year)
	}

	return Result{Symbol: s, Parsed: p}
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

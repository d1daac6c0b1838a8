package symbol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		symbol     string
		instrument string
		expiry     string
		strike     int32
		optType    string
	}{
		{"NIFTY25JAN2421500CE", "NIFTY", "2024-01-25", 21500, "CE"},
		{"NIFTY25JAN2421500PE", "NIFTY", "2024-01-25", 21500, "PE"},
		{"NIFTY01FEB2418000PE", "NIFTY", "2024-02-01", 18000, "PE"},
		{"BANKNIFTY28DEC23480CE", "BANKNIFTY", "2023-12-28", 480, "CE"},
		{"NIFTY29FEB2450CE", "NIFTY", "2024-02-29", 50, "CE"},
		{"NIFTY31OCT250PE", "NIFTY", "2025-10-31", 0, "PE"},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			res := Parse(tt.symbol)
			require.True(t, res.OK(), "reason: %s", res.Reason)

			p := res.Parsed
			assert.Equal(t, tt.instrument, p.Instrument)
			assert.Equal(t, tt.expiry, p.Expiry().Format("2006-01-02"))
			assert.Equal(t, tt.strike, p.Strike)
			assert.Equal(t, tt.optType, p.OptionType)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
	}{
		{"no grammar", "NIFTYXYZ"},
		{"empty", ""},
		{"index ticker", "NIFTY"},
		{"future ticker", "NIFTY-I"},
		{"lower case month", "NIFTY25jan2421500CE"},
		{"lower case instrument", "nifty25JAN2421500CE"},
		{"unknown month", "NIFTY25JNA2421500CE"},
		{"one digit day", "NIFTY5JAN2421500CE"},
		{"missing strike", "NIFTY25JAN24CE"},
		{"missing type", "NIFTY25JAN2421500"},
		{"future type", "NIFTY25JAN2421500FUT"},
		{"trailing text", "NIFTY25JAN2421500CEX"},
		{"leading digit", "1NIFTY25JAN2421500CE"},
		{"invalid day", "NIFTY31FEB2421500CE"},
		{"day zero", "NIFTY00JAN2421500CE"},
		{"strike overflow", "NIFTY25JAN2499999999999CE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.symbol)
			assert.False(t, res.OK())
			assert.Nil(t, res.Parsed)
			assert.Equal(t, tt.symbol, res.Symbol)
			assert.NotEmpty(t, res.Reason)

			_, ok := res.Split(time.Now())
			assert.False(t, ok)
		})
	}
}

func TestParseDeterministic(t *testing.T) {
	seen := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)

	a, okA := Parse("NIFTY25JAN2421500CE").Split(seen)
	b, okB := Parse("NIFTY25JAN2421500CE").Split(seen)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)

	c, _ := Parse("NIFTY25JAN2421550CE").Split(seen)
	assert.NotEqual(t, a.Symbol, c.Symbol)
	assert.Equal(t, seen, a.FirstSeen)
}

func TestMonthTable(t *testing.T) {
	assert.Len(t, months, 12)
	for tok, m := range months {
		assert.Equal(t, tok, strings.ToUpper(m.String()[:3]))
	}
}

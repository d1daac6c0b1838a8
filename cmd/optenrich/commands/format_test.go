package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "gate opt…", Truncate("gate options: 40 rows", 9))
	assert.Equal(t, "g", Truncate("gate", 1))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1.50s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "on", FormatBool(true))
	assert.Equal(t, "off", FormatBool(false))
}

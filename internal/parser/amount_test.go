package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeAmount_Valid(t *testing.T) {
	assert.Equal(t, "12.50", SafeAmount("12.50").StringFixed(2))
	assert.Equal(t, "1234.56", SafeAmount("1,234.56").StringFixed(2))
	assert.Equal(t, "12.50", SafeAmount("  12.50 ").StringFixed(2))
	assert.Equal(t, "-3.00", SafeAmount("-3.00").StringFixed(2))
}

// SafeAmount is total: malformed or blank cells degrade to zero, never
// to an error.
func TestSafeAmount_MalformedIsZero(t *testing.T) {
	for _, input := range []string{"", " ", "N/A", "12.5.0", "SGD 12", "--"} {
		assert.True(t, SafeAmount(input).IsZero(), "input %q", input)
	}
}

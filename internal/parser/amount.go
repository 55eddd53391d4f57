package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SafeAmount parses an amount cell from a statement export. Exports leave
// the cell for the inapplicable side blank or non-numeric, so this parse
// is total: any malformed input yields zero rather than an error.
func SafeAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Package amount parses payment amounts expressed in minor currency units.
package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMinorUnits parses s as a positive whole number of minor units
// ("100" is one yuan). Only plain decimal digits are accepted, so the value
// handed to the SDK is the one the host sent: signs, fractions ("100.00"),
// exponents ("1e2") and zero are rejected.
func ParseMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("amount %q must be plain digits", s)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %q must be positive", s)
	}
	if d.GreaterThan(decimal.NewFromInt(maxMinorUnits)) {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	return d.IntPart(), nil
}

// maxMinorUnits bounds a single face payment well inside int64.
const maxMinorUnits = 1_000_000_000_00

// FormatMinorUnits renders n as the decimal string the SDK expects.
func FormatMinorUnits(n int64) string {
	return decimal.NewFromInt(n).String()
}

// Major renders n minor units as a major-unit amount with two decimals, for logs.
func Major(n int64) string {
	return decimal.New(n, -2).StringFixed(2)
}

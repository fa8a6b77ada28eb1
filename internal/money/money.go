// Package money provides exact fixed-point monetary arithmetic.
//
// Every amount that leaves this package for persistence or display is
// rounded half-up to two fractional digits. Ratio computations never
// divide by zero; an empty denominator yields 0.00 so reports always
// render.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept on stored amounts.
const Places = 2

// Epsilon is the tolerance used when comparing paid amounts against
// document totals.
var Epsilon = decimal.New(1, -4) // 0.0001

// Zero is the canonical 0.00 amount.
var Zero = decimal.Zero.Round(Places)

// Hundred is used for percentage math.
var Hundred = decimal.NewFromInt(100)

// Round rounds an amount half-up to two fractional digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns n/d expressed as a percentage, rounded to two
// places. A zero or negative denominator yields 0.00.
func Percent(n, d decimal.Decimal) decimal.Decimal {
	if d.LessThanOrEqual(decimal.Zero) {
		return Zero
	}
	return n.Div(d).Mul(Hundred).Round(Places)
}

// ClampPercent limits a percentage to the [0, 100] range.
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(decimal.Zero) {
		return Zero
	}
	if p.GreaterThan(Hundred) {
		return Hundred.Round(Places)
	}
	return p
}

// Parse converts caller-supplied text into an amount. Malformed input
// and amounts with more than two fractional digits are rejected here,
// before they can enter the ledger.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	if d.Exponent() < -Places {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, Places)
	}
	return d, nil
}

// MustParse is Parse for trusted literals in tests and fixtures.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Package tax maps a shipping region to a sales-tax rate and computes tax and
// totals with two-digit half-up rounding.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount is rounded to.
const Scale = 2

// stateRatePercent holds US state rates in percent. Rates are simplified demo
// values, not legal advice.
var stateRatePercent = map[string]string{
	"AL": "9.0", "AK": "2.0", "AZ": "8.0", "AR": "9.5", "CA": "8.5",
	"CO": "8.0", "CT": "6.5", "DE": "0.0", "FL": "7.0", "GA": "7.5",
	"HI": "4.5", "ID": "6.0", "IL": "9.0", "IN": "7.0", "IA": "7.0",
	"KS": "8.5", "KY": "6.0", "LA": "9.5", "ME": "5.5", "MD": "6.0",
	"MA": "6.25", "MI": "6.0", "MN": "7.5", "MS": "7.0", "MO": "8.0",
	"MT": "0.0", "NE": "7.0", "NV": "8.0", "NH": "0.0", "NJ": "6.5",
	"NM": "8.0", "NY": "8.5", "NC": "7.0", "ND": "7.0", "OH": "7.0",
	"OK": "9.0", "OR": "0.0", "PA": "6.5", "RI": "7.0", "SC": "7.5",
	"SD": "6.5", "TN": "9.5", "TX": "8.0", "UT": "7.0", "VT": "6.0",
	"VA": "5.5", "WA": "9.0", "WV": "6.5", "WI": "5.5", "WY": "5.5",
}

var hundred = decimal.NewFromInt(100)

// Policy is an immutable region → rate table. The zero value charges no tax.
type Policy struct {
	rates map[string]decimal.Decimal
}

// Default returns the built-in US state table.
func Default() Policy {
	p, err := FromPercent(stateRatePercent)
	if err != nil {
		panic(err)
	}
	return p
}

// FromPercent builds a policy from percentage strings such as "8.5".
// Rates must lie in [0, 100).
func FromPercent(table map[string]string) (Policy, error) {
	rates := make(map[string]decimal.Decimal, len(table))
	for region, pct := range table {
		v, err := decimal.NewFromString(pct)
		if err != nil {
			return Policy{}, &RateError{Region: region, Value: pct}
		}
		if v.IsNegative() || v.GreaterThanOrEqual(hundred) {
			return Policy{}, &RateError{Region: region, Value: pct}
		}
		rates[normalize(region)] = v.Div(hundred)
	}
	return Policy{rates: rates}, nil
}

// RateError reports an unusable entry in a rate table.
type RateError struct {
	Region string
	Value  string
}

func (e *RateError) Error() string {
	return "invalid tax rate " + e.Value + " for region " + e.Region
}

// RateFor returns the rate as a fraction. Unknown or empty regions get zero:
// the policy fails open.
func (p Policy) RateFor(region string) decimal.Decimal {
	if r, ok := p.rates[normalize(region)]; ok {
		return r
	}
	return decimal.Zero
}

// Tax returns subtotal * rate rounded half-up to two digits.
func (p Policy) Tax(subtotal decimal.Decimal, region string) decimal.Decimal {
	return roundHalfUp(subtotal.Mul(p.RateFor(region)))
}

// Total returns subtotal + Tax(subtotal, region), rounded the same way.
func (p Policy) Total(subtotal decimal.Decimal, region string) decimal.Decimal {
	return roundHalfUp(roundHalfUp(subtotal).Add(p.Tax(subtotal, region)))
}

// Breakdown returns the rounded subtotal, tax and total in one call so that
// callers never mix independently rounded values.
func (p Policy) Breakdown(subtotal decimal.Decimal, region string) (sub, tax, total decimal.Decimal) {
	sub = roundHalfUp(subtotal)
	tax = p.Tax(subtotal, region)
	return sub, tax, sub.Add(tax)
}

// Format renders an amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// roundHalfUp rounds to Scale digits. decimal.Round rounds half away from
// zero, which is half-up for the non-negative amounts handled here.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

func normalize(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

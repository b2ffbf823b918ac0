/*
Package generic provides the domain-agnostic primitives shared by the payroll
and vacation engines.

PURPOSE:
  Money amounts, day quantities, civil dates and error types live here so the
  calculators in rules/, payroll/ and vacation/ agree on precision and
  rounding without depending on each other.

KEY CONCEPTS IN THIS FILE (types.go):
  - decimal.Decimal: every currency amount and every day count
  - Rounding: the ONE place where "round to currency unit" is defined
  - Floor2: truncation to hundredths used for partial-day accrual

ROUNDING POLICY:
  Every line item is rounded when it is computed, never only at the total.
  Rounding is half away from zero (decimal.Round semantics):
    Rounding{Places: 0}.Round(2.5)  = 3
    Rounding{Places: 0}.Round(-2.5) = -3
  A currency with fractional units (e.g. 2 decimals) only changes Places.

SEE ALSO:
  - time.go: Date and HolidaySet
  - errors.go: sentinel and structured errors
  - rules/types.go: CountryRuleTable.Rounding() picks the policy per currency
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING - Single "round to currency unit" primitive
// =============================================================================

// Rounding rounds monetary amounts to a currency's smallest unit.
type Rounding struct {
	Places int32
}

// WholeUnits rounds to whole currency units (CLP, JPY, ...).
var WholeUnits = Rounding{Places: 0}

// Round rounds d half away from zero to r.Places decimals.
func (r Rounding) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(r.Places)
}

// Percent returns base * rate / 100 rounded to the currency unit.
func (r Rounding) Percent(base, ratePercent decimal.Decimal) decimal.Decimal {
	return r.Round(base.Mul(ratePercent).Div(hundred))
}

// Floor2 truncates a non-negative quantity to hundredths.
// Partial vacation days are tracked this way, never rounded up.
func Floor2(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// =============================================================================
// HELPERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

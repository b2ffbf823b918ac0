/*
Package rules holds the per-country payroll parameters.

PURPOSE:
  A CountryRuleTable is pure data: contribution rates, overtime multipliers,
  vacation accrual parameters and the progressive income-tax bracket table
  of one jurisdiction. Adding a country is registering another table, not
  shipping another code path.

UNITS:
  - PensionRate, HealthRate, Unemployment*Rate: percentages (10 = 10%)
  - TaxBracket.Rate: fraction in [0, 1]
  - TaxBracket.Lower/Upper/Subtraction: multiples of the monthly tax unit

BRACKET INVARIANTS (checked by Validate, enforced by Registry.Register):
  1. At least one bracket, the first starting at 0
  2. Sorted ascending, each Upper equals the next Lower (contiguous)
  3. Only the last bracket is open-ended (Upper not set)
  => every non-negative income maps to exactly one bracket

SEE ALSO:
  - registry.go: country-code keyed lookup
  - chile.go: the CL table
  - payroll/tax.go: the resolver consuming the brackets
*/
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TAX BRACKET
// =============================================================================

// TaxBracket is one marginal-rate band expressed in tax units.
// Tax inside the band is income*Rate - Subtraction*taxUnit (closed form).
type TaxBracket struct {
	Lower       decimal.Decimal
	Upper       decimal.NullDecimal // !Valid = open-ended
	Rate        decimal.Decimal
	Subtraction decimal.Decimal
}

// OpenEnded reports whether the bracket has no upper bound.
func (b TaxBracket) OpenEnded() bool { return !b.Upper.Valid }

// Contains reports whether incomeInUnits lies in [Lower, Upper).
func (b TaxBracket) Contains(incomeInUnits decimal.Decimal) bool {
	if incomeInUnits.LessThan(b.Lower) {
		return false
	}
	return b.OpenEnded() || incomeInUnits.LessThan(b.Upper.Decimal)
}

// Bracket is a convenience constructor; upper < 0 means open-ended.
func Bracket(lower, upper, rate, subtraction float64) TaxBracket {
	b := TaxBracket{
		Lower:       decimal.NewFromFloat(lower),
		Rate:        decimal.NewFromFloat(rate),
		Subtraction: decimal.NewFromFloat(subtraction),
	}
	if upper >= 0 {
		b.Upper = decimal.NewNullDecimal(decimal.NewFromFloat(upper))
	}
	return b
}

// =============================================================================
// COUNTRY RULE TABLE
// =============================================================================

// CountryRuleTable is immutable once registered.
type CountryRuleTable struct {
	Code             string
	Name             string
	Currency         string
	CurrencyDecimals int32

	// Vacation accrual
	VacationBaseDays        decimal.Decimal // working days per year
	SeniorityThresholdYears int             // years after which extra days accrue
	ExtraDaysPerYear        decimal.Decimal // per year at/after the threshold

	// Statutory contributions (employee share unless noted), percentages
	PensionRate              decimal.Decimal
	HealthRate               decimal.Decimal
	UnemploymentEmployeeRate decimal.Decimal
	UnemploymentEmployerRate decimal.Decimal

	// Overtime
	OvertimeOrdinaryMultiplier decimal.Decimal
	OvertimeSpecialMultiplier  decimal.Decimal // rest day / holiday
	MaxWeeklyOvertimeHours     decimal.Decimal // advisory only

	TaxBrackets []TaxBracket
}

// Rounding returns the currency's rounding policy.
func (t CountryRuleTable) Rounding() generic.Rounding {
	return generic.Rounding{Places: t.CurrencyDecimals}
}

// Clone returns a deep copy so callers cannot mutate registered brackets.
func (t CountryRuleTable) Clone() CountryRuleTable {
	c := t
	c.TaxBrackets = append([]TaxBracket(nil), t.TaxBrackets...)
	return c
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every parameter and the bracket invariants.
func (t CountryRuleTable) Validate() error {
	if t.Code == "" {
		return &generic.RuleTableError{Country: "?", Field: "code", Reason: "is required"}
	}
	if t.Currency == "" {
		return &generic.RuleTableError{Country: t.Code, Field: "currency", Reason: "is required"}
	}
	if t.CurrencyDecimals < 0 || t.CurrencyDecimals > 4 {
		return &generic.RuleTableError{Country: t.Code, Field: "currency_decimals", Reason: "must be within [0, 4]"}
	}
	if t.SeniorityThresholdYears < 0 {
		return &generic.RuleTableError{Country: t.Code, Field: "seniority_threshold_years", Reason: "must not be negative"}
	}

	nonNegative := []struct {
		field string
		value decimal.Decimal
	}{
		{"vacation_base_days", t.VacationBaseDays},
		{"extra_days_per_year", t.ExtraDaysPerYear},
		{"pension_rate", t.PensionRate},
		{"health_rate", t.HealthRate},
		{"unemployment_employee_rate", t.UnemploymentEmployeeRate},
		{"unemployment_employer_rate", t.UnemploymentEmployerRate},
		{"max_weekly_overtime_hours", t.MaxWeeklyOvertimeHours},
	}
	for _, f := range nonNegative {
		if f.value.IsNegative() {
			return &generic.RuleTableError{Country: t.Code, Field: f.field, Reason: "must not be negative"}
		}
	}

	one := decimal.NewFromInt(1)
	if t.OvertimeOrdinaryMultiplier.LessThan(one) {
		return &generic.RuleTableError{Country: t.Code, Field: "overtime_ordinary_multiplier", Reason: "must be at least 1"}
	}
	if t.OvertimeSpecialMultiplier.LessThan(one) {
		return &generic.RuleTableError{Country: t.Code, Field: "overtime_special_multiplier", Reason: "must be at least 1"}
	}

	return ValidateBrackets(t.Code, t.TaxBrackets)
}

// ValidateBrackets checks the ordering, contiguity and open-end invariants.
func ValidateBrackets(country string, brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return &generic.BracketTableError{Country: country, Index: 0, Reason: "table is empty"}
	}
	if !brackets[0].Lower.IsZero() {
		return &generic.BracketTableError{Country: country, Index: 0, Reason: "first bracket must start at 0"}
	}

	last := len(brackets) - 1
	for i, b := range brackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return &generic.BracketTableError{Country: country, Index: i, Reason: "rate must be within [0, 1]"}
		}
		if b.Subtraction.IsNegative() {
			return &generic.BracketTableError{Country: country, Index: i, Reason: "subtraction term must not be negative"}
		}
		if i == last {
			if !b.OpenEnded() {
				return &generic.BracketTableError{Country: country, Index: i, Reason: "last bracket must be open-ended"}
			}
			break
		}
		if b.OpenEnded() {
			return &generic.BracketTableError{Country: country, Index: i, Reason: "only the last bracket may be open-ended"}
		}
		if !b.Upper.Decimal.GreaterThan(b.Lower) {
			return &generic.BracketTableError{Country: country, Index: i, Reason: "upper bound must exceed lower bound"}
		}
		if next := brackets[i+1]; !next.Lower.Equal(b.Upper.Decimal) {
			return &generic.BracketTableError{
				Country: country,
				Index:   i + 1,
				Reason:  fmt.Sprintf("lower bound %s does not continue previous upper bound %s", next.Lower, b.Upper.Decimal),
			}
		}
	}
	return nil
}

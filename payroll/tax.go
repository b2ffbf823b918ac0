package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

// =============================================================================
// TAX BRACKET RESOLVER
// =============================================================================

// ResolveTax computes progressive income tax in closed form:
//
//	units = income / taxUnit
//	tax   = income*rate - subtraction*taxUnit   (bracket containing units)
//
// clamped at zero and rounded to the currency unit. Brackets are expected to
// have passed rules.ValidateBrackets; a table that still fails to cover the
// income is reported as a configuration error, never as zero tax.
func ResolveTax(taxableIncome, taxUnitValue decimal.Decimal, brackets []rules.TaxBracket, rounding generic.Rounding) (decimal.Decimal, error) {
	if !taxUnitValue.IsPositive() {
		return decimal.Zero, generic.ErrInvalidTaxUnit
	}
	if !taxableIncome.IsPositive() {
		return decimal.Zero, nil
	}

	b, err := findBracket(taxableIncome.Div(taxUnitValue), brackets)
	if err != nil {
		return decimal.Zero, err
	}
	if b.Rate.IsZero() {
		return decimal.Zero, nil
	}

	tax := taxableIncome.Mul(b.Rate).Sub(b.Subtraction.Mul(taxUnitValue))
	return rounding.Round(generic.NonNegative(tax)), nil
}

func findBracket(incomeInUnits decimal.Decimal, brackets []rules.TaxBracket) (rules.TaxBracket, error) {
	for _, b := range brackets {
		if b.Contains(incomeInUnits) {
			return b, nil
		}
	}
	return rules.TaxBracket{}, &generic.BracketTableError{
		Index:  len(brackets),
		Reason: fmt.Sprintf("no bracket covers %s tax units", incomeInUnits.StringFixed(4)),
	}
}

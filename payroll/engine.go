/*
engine.go - Gross-to-net payroll calculation

PURPOSE:
  Turns one period's validated numbers into an itemized payroll result.
  Pure and deterministic: no I/O, no clock, no shared state. Safe to call
  from any number of goroutines.

ALGORITHM:
  1. Proration     proratedBase = base - base*absent/workingDays
                   (absent == 0 keeps base exactly)
  2. Taxable base  proratedBase + overtime   (allowances are non-taxable)
  3. Statutory     pension, health (+ private surcharge), unemployment,
                   each a percentage of the taxable base, each rounded
  4. Income tax    ResolveTax(taxableBase - statutory, taxUnit)
  5. Gross         proratedBase + overtime + all allowances
  6. Totals        deductions = statutory + tax + other
                   net = max(0, gross - deductions)

EXAMPLE (CL, UTM 67,294):
  base 800,000, nothing else
  pension 80,000  health 56,000  unemployment 4,800
  taxable income 659,200 = 9.8 UTM -> zero-rate bracket -> tax 0
  gross 800,000  deductions 140,800  net 659,200

SEE ALSO:
  - tax.go: ResolveTax
  - overtime.go: how OvertimeTotal is produced per record
  - service.go: assembles Input from stored data and persists the Result
*/
package payroll

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

// =============================================================================
// INPUT / RESULT
// =============================================================================

// Input is one period's validated payroll figures. Amounts are in the
// currency of the rule table; rates are percentages.
type Input struct {
	BaseSalary         decimal.Decimal
	OvertimeTotal      decimal.Decimal // sum of approved overtime amounts
	TransportAllowance decimal.Decimal
	FoodAllowance      decimal.Decimal
	OtherAllowances    decimal.Decimal

	AbsentDays          int // unpaid
	WorkingDaysInPeriod int // proration denominator

	PensionRateOverride decimal.NullDecimal
	HealthRateOverride  decimal.NullDecimal
	HealthSurchargeRate decimal.Decimal // private health plan on top of the health rate

	OtherDeductions decimal.Decimal
}

// Validate performs the range checks CalculatePayroll leaves to its caller:
// no negative amount, absences within the period, override rates within
// [0, 100]. With every deduction non-negative, net never exceeds gross.
func (in Input) Validate() error {
	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"base_salary", in.BaseSalary},
		{"overtime_total", in.OvertimeTotal},
		{"transport_allowance", in.TransportAllowance},
		{"food_allowance", in.FoodAllowance},
		{"other_allowances", in.OtherAllowances},
		{"health_surcharge_rate", in.HealthSurchargeRate},
		{"other_deductions", in.OtherDeductions},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return generic.Invalid(a.field, "must not be negative")
		}
	}
	if in.WorkingDaysInPeriod < 0 {
		return generic.Invalid("working_days", "must not be negative")
	}
	if in.AbsentDays < 0 || in.AbsentDays > in.WorkingDaysInPeriod {
		return generic.Invalid("absent_days", "must be within 0..%d, got %d", in.WorkingDaysInPeriod, in.AbsentDays)
	}
	hundred := decimal.NewFromInt(100)
	overrides := []struct {
		field string
		rate  decimal.NullDecimal
	}{
		{"pension_rate_override", in.PensionRateOverride},
		{"health_rate_override", in.HealthRateOverride},
	}
	for _, o := range overrides {
		if o.rate.Valid && (o.rate.Decimal.IsNegative() || o.rate.Decimal.GreaterThan(hundred)) {
			return generic.Invalid(o.field, "must be a percentage within [0, 100]")
		}
	}
	return nil
}

// Result is the itemized payroll. It is a value: produced once, never mutated.
type Result struct {
	// Haberes
	BaseSalary         decimal.Decimal `json:"base_salary"`
	ProratedBase       decimal.Decimal `json:"prorated_base"`
	OvertimeTotal      decimal.Decimal `json:"overtime_total"`
	TransportAllowance decimal.Decimal `json:"transport_allowance"`
	FoodAllowance      decimal.Decimal `json:"food_allowance"`
	OtherAllowances    decimal.Decimal `json:"other_allowances"`
	GrossSalary        decimal.Decimal `json:"gross_salary"`

	// Bases
	TaxableBase   decimal.Decimal `json:"taxable_base"`
	TaxableIncome decimal.Decimal `json:"taxable_income"`
	TaxUnitValue  decimal.Decimal `json:"tax_unit_value"`

	// Descuentos
	PensionRate        decimal.Decimal `json:"pension_rate"`
	PensionAmount      decimal.Decimal `json:"pension_amount"`
	HealthRate         decimal.Decimal `json:"health_rate"`
	HealthAmount       decimal.Decimal `json:"health_amount"`
	UnemploymentRate   decimal.Decimal `json:"unemployment_rate"`
	UnemploymentAmount decimal.Decimal `json:"unemployment_amount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	OtherDeductions    decimal.Decimal `json:"other_deductions"`
	TotalDeductions    decimal.Decimal `json:"total_deductions"`

	NetSalary decimal.Decimal `json:"net_salary"`
}

// =============================================================================
// ENGINE
// =============================================================================

// CalculatePayroll computes the payroll for one period.
//
// The only errors are configuration errors: a non-positive tax unit
// (ErrInvalidTaxUnit) or a bracket table that does not cover the income.
// Range checks on the input are the caller's job.
func CalculatePayroll(in Input, table rules.CountryRuleTable, taxUnitValue decimal.Decimal) (Result, error) {
	if !taxUnitValue.IsPositive() {
		return Result{}, generic.ErrInvalidTaxUnit
	}
	round := table.Rounding()

	// 1. Proration
	proratedBase := in.BaseSalary
	if in.AbsentDays > 0 && in.WorkingDaysInPeriod > 0 {
		absent := decimal.NewFromInt(int64(in.AbsentDays))
		days := decimal.NewFromInt(int64(in.WorkingDaysInPeriod))
		proratedBase = round.Round(in.BaseSalary.Sub(in.BaseSalary.Mul(absent).Div(days)))
	}

	// 2. Taxable base
	taxableBase := proratedBase.Add(in.OvertimeTotal)

	// 3. Statutory deductions
	pensionRate := table.PensionRate
	if in.PensionRateOverride.Valid {
		pensionRate = in.PensionRateOverride.Decimal
	}
	healthRate := table.HealthRate
	if in.HealthRateOverride.Valid {
		healthRate = in.HealthRateOverride.Decimal
	}
	healthRate = healthRate.Add(in.HealthSurchargeRate)
	unemploymentRate := table.UnemploymentEmployeeRate

	pension := round.Percent(taxableBase, pensionRate)
	health := round.Percent(taxableBase, healthRate)
	unemployment := round.Percent(taxableBase, unemploymentRate)

	// 4. Income tax
	taxableIncome := taxableBase.Sub(pension).Sub(health).Sub(unemployment)
	tax, err := ResolveTax(taxableIncome, taxUnitValue, table.TaxBrackets, round)
	if err != nil {
		var bErr *generic.BracketTableError
		if errors.As(err, &bErr) {
			bErr.Country = table.Code
		}
		return Result{}, err
	}

	// 5. Gross
	gross := generic.Sum(proratedBase, in.OvertimeTotal, in.TransportAllowance, in.FoodAllowance, in.OtherAllowances)

	// 6. Totals
	totalDeductions := generic.Sum(pension, health, unemployment, tax, in.OtherDeductions)

	return Result{
		BaseSalary:         in.BaseSalary,
		ProratedBase:       proratedBase,
		OvertimeTotal:      in.OvertimeTotal,
		TransportAllowance: in.TransportAllowance,
		FoodAllowance:      in.FoodAllowance,
		OtherAllowances:    in.OtherAllowances,
		GrossSalary:        gross,

		TaxableBase:   taxableBase,
		TaxableIncome: taxableIncome,
		TaxUnitValue:  taxUnitValue,

		PensionRate:        pensionRate,
		PensionAmount:      pension,
		HealthRate:         healthRate,
		HealthAmount:       health,
		UnemploymentRate:   unemploymentRate,
		UnemploymentAmount: unemployment,
		TaxAmount:          tax,
		OtherDeductions:    in.OtherDeductions,
		TotalDeductions:    totalDeductions,

		NetSalary: generic.NonNegative(gross.Sub(totalDeductions)),
	}, nil
}

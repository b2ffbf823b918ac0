/*
Package factory converts country rule tables to and from JSON.

PURPOSE:
  Rule tables are data. They are stored as one JSON document per country
  and edited through the API, so adding a jurisdiction is inserting a row.
  The factory is the single place that knows the JSON shape.

JSON SCHEMA:
  {
    "code": "CL",
    "name": "Chile",
    "currency": "CLP",
    "currency_decimals": 0,
    "vacation": {
      "base_days": 15,
      "seniority_threshold_years": 10,
      "extra_days_per_year": 1
    },
    "contributions": {
      "pension_rate": 10,
      "health_rate": 7,
      "unemployment_employee_rate": 0.6,
      "unemployment_employer_rate": 2.4
    },
    "overtime": {
      "ordinary_multiplier": 1.5,
      "special_multiplier": 2,
      "max_weekly_hours": 10
    },
    "tax_brackets": [
      {"lower": 0,    "upper": 13.5, "rate": 0,    "subtraction": 0},
      ...
      {"lower": 310,  "upper": null, "rate": 0.40, "subtraction": 37.864}
    ]
  }

  Rates under "contributions" are percentages; bracket rates are fractions;
  bracket bounds and subtraction terms are in tax units. A null (or
  missing) upper bound marks the open-ended top bracket.

USAGE:
  f := NewRuleTableFactory()
  table, err := f.Parse(data)   // decoded AND validated
  data, err := f.Marshal(table)

SEE ALSO:
  - rules/types.go: CountryRuleTable and its invariants
  - store/sqlite: country_rules.config_json
*/
package factory

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleTableJSON is the JSON representation of a CountryRuleTable.
type RuleTableJSON struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	Currency         string            `json:"currency"`
	CurrencyDecimals int32             `json:"currency_decimals"`
	Vacation         VacationJSON      `json:"vacation"`
	Contributions    ContributionsJSON `json:"contributions"`
	Overtime         OvertimeJSON      `json:"overtime"`
	TaxBrackets      []TaxBracketJSON  `json:"tax_brackets"`
}

type VacationJSON struct {
	BaseDays                decimal.Decimal `json:"base_days"`
	SeniorityThresholdYears int             `json:"seniority_threshold_years"`
	ExtraDaysPerYear        decimal.Decimal `json:"extra_days_per_year"`
}

type ContributionsJSON struct {
	PensionRate              decimal.Decimal `json:"pension_rate"`
	HealthRate               decimal.Decimal `json:"health_rate"`
	UnemploymentEmployeeRate decimal.Decimal `json:"unemployment_employee_rate"`
	UnemploymentEmployerRate decimal.Decimal `json:"unemployment_employer_rate"`
}

type OvertimeJSON struct {
	OrdinaryMultiplier decimal.Decimal `json:"ordinary_multiplier"`
	SpecialMultiplier  decimal.Decimal `json:"special_multiplier"`
	MaxWeeklyHours     decimal.Decimal `json:"max_weekly_hours"`
}

type TaxBracketJSON struct {
	Lower       decimal.Decimal  `json:"lower"`
	Upper       *decimal.Decimal `json:"upper"` // null = open-ended
	Rate        decimal.Decimal  `json:"rate"`
	Subtraction decimal.Decimal  `json:"subtraction"`
}

// =============================================================================
// FACTORY
// =============================================================================

// RuleTableFactory creates rule tables from JSON.
type RuleTableFactory struct{}

func NewRuleTableFactory() *RuleTableFactory {
	return &RuleTableFactory{}
}

// Parse decodes and validates a rule table document.
func (f *RuleTableFactory) Parse(data []byte) (rules.CountryRuleTable, error) {
	var rj RuleTableJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return rules.CountryRuleTable{}, fmt.Errorf("%w: %v", generic.ErrInvalidRuleTable, err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts and validates.
func (f *RuleTableFactory) FromJSON(rj RuleTableJSON) (rules.CountryRuleTable, error) {
	t := rules.CountryRuleTable{
		Code:             rules.NormalizeCode(rj.Code),
		Name:             rj.Name,
		Currency:         rj.Currency,
		CurrencyDecimals: rj.CurrencyDecimals,

		VacationBaseDays:        rj.Vacation.BaseDays,
		SeniorityThresholdYears: rj.Vacation.SeniorityThresholdYears,
		ExtraDaysPerYear:        rj.Vacation.ExtraDaysPerYear,

		PensionRate:              rj.Contributions.PensionRate,
		HealthRate:               rj.Contributions.HealthRate,
		UnemploymentEmployeeRate: rj.Contributions.UnemploymentEmployeeRate,
		UnemploymentEmployerRate: rj.Contributions.UnemploymentEmployerRate,

		OvertimeOrdinaryMultiplier: rj.Overtime.OrdinaryMultiplier,
		OvertimeSpecialMultiplier:  rj.Overtime.SpecialMultiplier,
		MaxWeeklyOvertimeHours:     rj.Overtime.MaxWeeklyHours,
	}
	for _, bj := range rj.TaxBrackets {
		b := rules.TaxBracket{Lower: bj.Lower, Rate: bj.Rate, Subtraction: bj.Subtraction}
		if bj.Upper != nil {
			b.Upper = decimal.NewNullDecimal(*bj.Upper)
		}
		t.TaxBrackets = append(t.TaxBrackets, b)
	}

	if err := t.Validate(); err != nil {
		return rules.CountryRuleTable{}, err
	}
	return t, nil
}

// ToJSON converts a table back to its JSON representation.
func (f *RuleTableFactory) ToJSON(t rules.CountryRuleTable) RuleTableJSON {
	rj := RuleTableJSON{
		Code:             t.Code,
		Name:             t.Name,
		Currency:         t.Currency,
		CurrencyDecimals: t.CurrencyDecimals,
		Vacation: VacationJSON{
			BaseDays:                t.VacationBaseDays,
			SeniorityThresholdYears: t.SeniorityThresholdYears,
			ExtraDaysPerYear:        t.ExtraDaysPerYear,
		},
		Contributions: ContributionsJSON{
			PensionRate:              t.PensionRate,
			HealthRate:               t.HealthRate,
			UnemploymentEmployeeRate: t.UnemploymentEmployeeRate,
			UnemploymentEmployerRate: t.UnemploymentEmployerRate,
		},
		Overtime: OvertimeJSON{
			OrdinaryMultiplier: t.OvertimeOrdinaryMultiplier,
			SpecialMultiplier:  t.OvertimeSpecialMultiplier,
			MaxWeeklyHours:     t.MaxWeeklyOvertimeHours,
		},
		TaxBrackets: make([]TaxBracketJSON, 0, len(t.TaxBrackets)),
	}
	for _, b := range t.TaxBrackets {
		bj := TaxBracketJSON{Lower: b.Lower, Rate: b.Rate, Subtraction: b.Subtraction}
		if b.Upper.Valid {
			upper := b.Upper.Decimal
			bj.Upper = &upper
		}
		rj.TaxBrackets = append(rj.TaxBrackets, bj)
	}
	return rj
}

// Marshal encodes a table as JSON.
func (f *RuleTableFactory) Marshal(t rules.CountryRuleTable) ([]byte, error) {
	return json.Marshal(f.ToJSON(t))
}

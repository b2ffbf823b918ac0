package rules

import "github.com/shopspring/decimal"

// Chile returns the CL rule table (tax brackets in UTM, in force from January 2025).
func Chile() CountryRuleTable {
	return CountryRuleTable{
		Code:             "CL",
		Name:             "Chile",
		Currency:         "CLP",
		CurrencyDecimals: 0,

		VacationBaseDays:        decimal.NewFromInt(15),
		SeniorityThresholdYears: 10,
		ExtraDaysPerYear:        decimal.NewFromInt(1),

		PensionRate:              decimal.RequireFromString("10.00"),
		HealthRate:               decimal.RequireFromString("7.00"),
		UnemploymentEmployeeRate: decimal.RequireFromString("0.60"),
		UnemploymentEmployerRate: decimal.RequireFromString("2.40"),

		OvertimeOrdinaryMultiplier: decimal.RequireFromString("1.50"),
		OvertimeSpecialMultiplier:  decimal.RequireFromString("2.00"),
		MaxWeeklyOvertimeHours:     decimal.NewFromInt(10),

		TaxBrackets: []TaxBracket{
			Bracket(0, 13.5, 0, 0),
			Bracket(13.5, 30, 0.04, 0.54),
			Bracket(30, 50, 0.08, 1.74),
			Bracket(50, 70, 0.135, 4.49),
			Bracket(70, 90, 0.23, 11.14),
			Bracket(90, 120, 0.304, 17.794),
			Bracket(120, 310, 0.355, 23.914),
			Bracket(310, -1, 0.40, 37.864),
		},
	}
}

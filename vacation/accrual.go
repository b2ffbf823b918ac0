/*
Package vacation calculates statutory paid-leave entitlement.

PURPOSE:
  How many vacation days an employee has earned, how many working days a
  request consumes, and whether a request fits the remaining balance.
  The calculators are pure; Service and AccrualRefresher add storage.

ACCRUAL:
  monthsElapsed = calendar months since hire (year*12 + month, day ignored)
  < 12 months:   floor2(baseDays * months / 12)
  >= 12 months:  years = months / 12
                 perYear = baseDays + seniority bonus
                 earned  = years*perYear + floor2(perYear * (months % 12) / 12)

  Seniority bonus (CL: from year 10, +1 day per year):
    years >= threshold  ->  (years - threshold + 1) * extraDaysPerYear

  The bonus applies to EVERY completed year and to the running year as soon
  as the threshold is crossed. A table without a bonus sets
  extraDaysPerYear to 0.

  Partial-day accrual is truncated to hundredths, never rounded up:
    15 days, 7 months -> 8.75
    15 days, 5 months -> 6.25
    15 days, 1 month  -> 1.25

BALANCE:
  available    = max(0, earned + carried - taken)
  afterRequest = available - requested   (may be negative)
  canApprove   = afterRequest >= 0

SEE ALSO:
  - service.go: Summary and Check against stored balances
  - refresher.go: periodic days_earned refresh
*/
package vacation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

var (
	twelve  = decimal.NewFromInt(12)
	halfDay = decimal.NewFromFloat(0.5)
)

// DaysEarned returns the vacation days accrued from hireDate to asOf.
func DaysEarned(hireDate, asOf generic.Date, table rules.CountryRuleTable) decimal.Decimal {
	months := generic.MonthsBetween(hireDate, asOf)
	base := table.VacationBaseDays

	if months < 12 {
		return generic.Floor2(base.Mul(decimal.NewFromInt(int64(months))).Div(twelve))
	}

	years := months / 12
	perYear := base.Add(seniorityBonus(years, table))
	full := perYear.Mul(decimal.NewFromInt(int64(years)))
	partial := generic.Floor2(perYear.Mul(decimal.NewFromInt(int64(months % 12))).Div(twelve))
	return full.Add(partial)
}

func seniorityBonus(years int, table rules.CountryRuleTable) decimal.Decimal {
	threshold := table.SeniorityThresholdYears
	if years < threshold {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(years - threshold + 1)).Mul(table.ExtraDaysPerYear)
}

// WorkingDays counts the days in [start, end] that are neither weekend days
// nor holidays. Returns 0 when end is before start.
func WorkingDays(start, end generic.Date, holidays generic.HolidaySet) int {
	count := 0
	for _, d := range (generic.Period{Start: start, End: end}).Days() {
		if d.IsWeekend() || holidays.Contains(d) {
			continue
		}
		count++
	}
	return count
}

// RequestDays sizes a leave request. A half day is always 0.5 and does not
// look at the calendar.
func RequestDays(start, end generic.Date, half bool, holidays generic.HolidaySet) decimal.Decimal {
	if half {
		return halfDay
	}
	return decimal.NewFromInt(int64(WorkingDays(start, end, holidays)))
}

// BalanceResult is the outcome of a balance check. Nothing is persisted.
type BalanceResult struct {
	Available    decimal.Decimal `json:"available"`
	AfterRequest decimal.Decimal `json:"after_request"`
	CanApprove   bool            `json:"can_approve"`
}

// Balance checks a request of requested days against earned, taken and
// carried days.
func Balance(earned, taken, carried, requested decimal.Decimal) BalanceResult {
	available := generic.NonNegative(earned.Add(carried).Sub(taken))
	after := available.Sub(requested)
	return BalanceResult{
		Available:    available,
		AfterRequest: after,
		CanApprove:   !after.IsNegative(),
	}
}

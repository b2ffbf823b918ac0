package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

// =============================================================================
// OVERTIME VALUATOR
// =============================================================================

// Category classifies an overtime entry for multiplier selection.
type Category string

const (
	CategoryOrdinary Category = "ordinary"
	CategoryRestDay  Category = "restday"
	CategoryHoliday  Category = "holiday"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryOrdinary, CategoryRestDay, CategoryHoliday:
		return c, nil
	}
	return "", generic.Invalid("category", "must be one of ordinary, restday, holiday; got %q", s)
}

// Multiplier returns the rule table's multiplier for the category.
func (c Category) Multiplier(table rules.CountryRuleTable) decimal.Decimal {
	if c == CategoryOrdinary {
		return table.OvertimeOrdinaryMultiplier
	}
	return table.OvertimeSpecialMultiplier
}

// Schedule is the working pattern used to derive an hourly rate.
// Zero fields fall back to the defaults.
type Schedule struct {
	HoursPerDay         int
	WorkingDaysPerMonth int
}

const (
	DefaultHoursPerDay         = 8
	DefaultWorkingDaysPerMonth = 26

	// MaxOvertimeHoursPerEntry bounds a single overtime entry; callers
	// enforce it, the valuator does not.
	MaxOvertimeHoursPerEntry = 12
)

// DefaultSchedule is 8 hours x 26 days.
var DefaultSchedule = Schedule{HoursPerDay: DefaultHoursPerDay, WorkingDaysPerMonth: DefaultWorkingDaysPerMonth}

func (s Schedule) normalized() Schedule {
	if s.HoursPerDay <= 0 {
		s.HoursPerDay = DefaultHoursPerDay
	}
	if s.WorkingDaysPerMonth <= 0 {
		s.WorkingDaysPerMonth = DefaultWorkingDaysPerMonth
	}
	return s
}

// HourlyRate divides a monthly salary by the scheduled hours.
func HourlyRate(monthlySalary decimal.Decimal, s Schedule, rounding generic.Rounding) decimal.Decimal {
	s = s.normalized()
	hours := decimal.NewFromInt(int64(s.HoursPerDay * s.WorkingDaysPerMonth))
	return rounding.Round(monthlySalary.Div(hours))
}

// OvertimeAmount values hours of overtime: round(hours * rate * multiplier).
// No range validation happens here.
func OvertimeAmount(hours, hourlyRate decimal.Decimal, c Category, table rules.CountryRuleTable) decimal.Decimal {
	return table.Rounding().Round(hours.Mul(hourlyRate).Mul(c.Multiplier(table)))
}

// ValidateOvertimeHours is the caller-side bound check for one entry.
func ValidateOvertimeHours(hours decimal.Decimal) error {
	if !hours.IsPositive() || hours.GreaterThan(decimal.NewFromInt(MaxOvertimeHoursPerEntry)) {
		return generic.Invalid("hours", "must be within (0, %d], got %s", MaxOvertimeHoursPerEntry, hours)
	}
	return nil
}

package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date ranges for pay periods and vacation years
// =============================================================================

// Period is an inclusive range of civil dates.
//
// Examples:
//   - Pay period March 2025: Mar 1 - Mar 31
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Service year of an employee hired 2020-01-06: Jan 6 - Jan 5
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthPeriod is the pay period of one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// YearPeriod is one calendar year.
func YearPeriod(year int) Period {
	return Period{Start: NewDate(year, time.January, 1), End: NewDate(year, time.December, 31)}
}

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodCalendarMonth PeriodType = "calendar_month" // payroll
	PeriodCalendarYear  PeriodType = "calendar_year"  // vacation balance year
	PeriodAnniversary   PeriodType = "anniversary"    // service year from the hire date
)

// PeriodConfig defines how to calculate periods.
type PeriodConfig struct {
	Type PeriodType

	// For anniversary: the anchor date (the hire date)
	AnchorDate *Date
}

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period that contains the given date.
func (pc PeriodConfig) PeriodFor(d Date) Period {
	switch pc.Type {
	case PeriodCalendarMonth:
		return MonthPeriod(d.Year, d.Month)

	case PeriodAnniversary:
		if pc.AnchorDate == nil {
			return YearPeriod(d.Year)
		}
		return pc.anniversaryPeriod(d)

	default:
		return YearPeriod(d.Year)
	}
}

func (pc PeriodConfig) anniversaryPeriod(d Date) Period {
	anchor := *pc.AnchorDate
	if d.Before(anchor) {
		return Period{Start: anchor, End: anchor.AddMonths(12).AddDays(-1)}
	}

	// last anniversary on or before d
	years := completedMonths(anchor, d) / 12
	start := anchor.AddMonths(12 * years)
	return Period{Start: start, End: anchor.AddMonths(12 * (years + 1)).AddDays(-1)}
}

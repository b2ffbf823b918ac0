package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil calendar date (no time of day, no zone)
// =============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day. It is comparable and safe as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool  { return d.Time().After(other.Time()) }
func (d Date) IsZero() bool           { return d == Date{} }

func (d Date) AddDays(n int) Date   { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.Time().AddDate(0, n, 0)) }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// IsWeekend reports Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.Time().Format(dateLayout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthsBetween returns the calendar months from 'from' to 'to': the
// difference of year*12+month, ignoring the day of month. An employee hired
// on the 31st has one month on the last day of the next month, and ten years
// on the anniversary month. Returns 0 when to is before from.
func MonthsBetween(from, to Date) int {
	months := (to.Year-from.Year)*12 + int(to.Month-from.Month)
	if months < 0 {
		return 0
	}
	return months
}

// completedMonths is MonthsBetween, but a month only counts once its day of
// month is reached again: 2024-01-31 -> 2024-02-29 is 0 months.
func completedMonths(from, to Date) int {
	months := MonthsBetween(from, to)
	if months > 0 && to.Day < from.Day {
		months--
	}
	return months
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month+1, 1).AddDays(-1)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working public holiday for a country.
type Holiday struct {
	ID          string `json:"id"`
	CountryCode string `json:"country_code"`
	Date        Date   `json:"date"`
	Name        string `json:"name"`
	Recurring   bool   `json:"recurring"` // same month/day every year
}

// HolidaySet is a set of non-working dates.
type HolidaySet map[Date]struct{}

// NewHolidaySet builds a set from dates.
func NewHolidaySet(dates ...Date) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Contains is nil-safe.
func (s HolidaySet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

// ExpandHolidays turns stored holidays into concrete dates within [from, to],
// repeating recurring holidays for every year in the range.
func ExpandHolidays(holidays []Holiday, from, to Date) HolidaySet {
	set := make(HolidaySet)
	for _, h := range holidays {
		if !h.Recurring {
			if !h.Date.Before(from) && !h.Date.After(to) {
				set[h.Date] = struct{}{}
			}
			continue
		}
		for year := from.Year; year <= to.Year; year++ {
			d := Date{Year: year, Month: h.Date.Month, Day: h.Date.Day}
			if !d.Before(from) && !d.After(to) {
				set[d] = struct{}{}
			}
		}
	}
	return set
}

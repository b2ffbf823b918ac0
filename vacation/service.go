package vacation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
	"go.uber.org/zap"
)

// RuleSource resolves a country's rule table. *rules.Registry implements it.
type RuleSource interface {
	Lookup(code string) (rules.CountryRuleTable, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store  TxStore
	Rules  RuleSource
	Logger *zap.Logger
	Now    func() time.Time
}

func NewService(store TxStore, rs RuleSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Rules: rs, Logger: logger.Named("vacation.service"), Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Summary is an employee's vacation position for one year.
type Summary struct {
	EmployeeID    string          `json:"employee_id"`
	Year          int             `json:"year"`
	AsOf          generic.Date    `json:"as_of"`
	HireDate      generic.Date    `json:"hire_date"`
	DaysEarned    decimal.Decimal `json:"days_earned"`
	DaysTaken     decimal.Decimal `json:"days_taken"`
	DaysCarried   decimal.Decimal `json:"days_carried"`
	DaysForfeited decimal.Decimal `json:"days_forfeited"`
	ServiceYear   generic.Period  `json:"service_year"` // anniversary year containing AsOf
	BalanceResult
}

// Summary computes earned days as of asOf and combines them with the
// stored taken/carried/forfeited days for year. A zero asOf means today.
func (s *Service) Summary(ctx context.Context, employeeID string, asOf generic.Date, year int) (Summary, error) {
	if asOf.IsZero() {
		asOf = generic.DateOf(s.now())
	}
	emp, table, err := s.employeeTable(ctx, employeeID)
	if err != nil {
		return Summary{}, err
	}
	stored, err := s.Store.GetBalance(ctx, emp.ID, year)
	if err != nil {
		return Summary{}, err
	}

	earned := DaysEarned(emp.HireDate, asOf, table)
	return Summary{
		EmployeeID:    emp.ID,
		Year:          year,
		AsOf:          asOf,
		HireDate:      emp.HireDate,
		DaysEarned:    earned,
		DaysTaken:     stored.DaysTaken,
		DaysCarried:   stored.DaysCarried,
		DaysForfeited: stored.DaysForfeited,
		ServiceYear:   generic.PeriodConfig{Type: generic.PeriodAnniversary, AnchorDate: &emp.HireDate}.PeriodFor(asOf),
		BalanceResult: Balance(earned, stored.DaysTaken, stored.DaysCarried, decimal.Zero),
	}, nil
}

// CheckRequest asks whether a leave request fits the balance.
type CheckRequest struct {
	EmployeeID string
	AsOf       generic.Date
	Start      generic.Date
	End        generic.Date
	HalfDay    bool
}

type CheckResult struct {
	RequestedDays decimal.Decimal `json:"requested_days"`
	Summary
}

// Check sizes the request against the employee's country holidays and
// checks it against the balance for the start date's year. Nothing is
// written.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	if req.Start.IsZero() || req.End.IsZero() {
		return CheckResult{}, generic.Invalid("start_date", "start and end dates are required")
	}
	if req.End.Before(req.Start) {
		return CheckResult{}, generic.Invalid("end_date", "must not be before start_date")
	}
	if req.HalfDay && req.Start != req.End {
		return CheckResult{}, generic.Invalid("half_day", "only allowed for single-day requests")
	}

	summary, err := s.Summary(ctx, req.EmployeeID, req.AsOf, req.Start.Year)
	if err != nil {
		return CheckResult{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return CheckResult{}, err
	}
	holidays, err := s.Holidays(ctx, emp.CountryCode, req.Start, req.End)
	if err != nil {
		return CheckResult{}, err
	}

	requested := RequestDays(req.Start, req.End, req.HalfDay, holidays)
	summary.BalanceResult = Balance(summary.DaysEarned, summary.DaysTaken, summary.DaysCarried, requested)

	s.Logger.Debug("vacation request checked",
		zap.String("employee_id", emp.ID),
		zap.String("requested", requested.String()),
		zap.Bool("can_approve", summary.CanApprove),
	)
	return CheckResult{RequestedDays: requested, Summary: summary}, nil
}

// Holidays returns the country's holiday dates within [from, to].
func (s *Service) Holidays(ctx context.Context, countryCode string, from, to generic.Date) (generic.HolidaySet, error) {
	list, err := s.Store.ListHolidays(ctx, rules.NormalizeCode(countryCode), from, to)
	if err != nil {
		return nil, err
	}
	return generic.ExpandHolidays(list, from, to), nil
}

// WorkingDaysIn counts working days in [from, to] for a country.
func (s *Service) WorkingDaysIn(ctx context.Context, countryCode string, from, to generic.Date) (int, error) {
	if to.Before(from) {
		return 0, generic.Invalid("end_date", "must not be before start_date")
	}
	holidays, err := s.Holidays(ctx, countryCode, from, to)
	if err != nil {
		return 0, err
	}
	return WorkingDays(from, to, holidays), nil
}

// UpdateBalance stores taken/carried/forfeited days for a year. Earned days
// are kept in sync by the refresher and are recomputed on read.
func (s *Service) UpdateBalance(ctx context.Context, b BalanceRecord) (BalanceRecord, error) {
	if b.Year < 1900 || b.Year > 9999 {
		return BalanceRecord{}, generic.Invalid("year", "out of range: %d", b.Year)
	}
	for field, v := range map[string]decimal.Decimal{
		"days_taken":     b.DaysTaken,
		"days_carried":   b.DaysCarried,
		"days_forfeited": b.DaysForfeited,
	} {
		if v.IsNegative() {
			return BalanceRecord{}, generic.Invalid(field, "must not be negative")
		}
	}
	emp, table, err := s.employeeTable(ctx, b.EmployeeID)
	if err != nil {
		return BalanceRecord{}, err
	}

	now := s.now()
	b.DaysEarned = DaysEarned(emp.HireDate, yearAsOf(b.Year, now), table)
	b.UpdatedAt = now
	if err := s.Store.SaveBalance(ctx, b); err != nil {
		s.Logger.Error("failed to save vacation balance", zap.String("employee_id", b.EmployeeID), zap.Error(err))
		return BalanceRecord{}, err
	}
	s.Logger.Info("vacation balance updated", zap.String("employee_id", b.EmployeeID), zap.Int("year", b.Year))
	return b, nil
}

func (s *Service) employeeTable(ctx context.Context, employeeID string) (generic.Employee, rules.CountryRuleTable, error) {
	emp, err := s.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return generic.Employee{}, rules.CountryRuleTable{}, err
	}
	table, err := s.Rules.Lookup(emp.CountryCode)
	if err != nil {
		return generic.Employee{}, rules.CountryRuleTable{}, err
	}
	return emp, table, nil
}

// yearAsOf is the accrual date for a balance year: today for the running
// year, December 31 for past years and January 1 for future ones.
func yearAsOf(year int, now time.Time) generic.Date {
	today := generic.DateOf(now)
	p := generic.YearPeriod(year)
	switch {
	case today.After(p.End):
		return p.End
	case today.Before(p.Start):
		return p.Start
	}
	return today
}

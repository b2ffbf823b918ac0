/*
service.go - Payroll generation and overtime lifecycle

PURPOSE:
  Everything around CalculatePayroll that touches storage: assembling the
  Input from an employee's contract and approved overtime, persisting the
  result, and consuming the overtime so it is paid exactly once.

GUARANTEES:
  - At most one payroll per (employee, year, month). Checked inside the
    transaction and backed by a uniqueness constraint in the store, so two
    concurrent runs for the same period produce one record and one
    ErrPayrollExists.
  - Overtime summed into a payroll is flagged consumed in the SAME
    transaction that saves the payroll. If fewer records are flagged than
    were summed, another run got there first and the whole transaction is
    rolled back with ErrConcurrentModification.
  - The rule table is resolved from the employee's country code on every
    run. There is no fallback country.

OVERTIME LIFECYCLE:
  pending --approve--> approved --Generate--> paid
     \--reject--> rejected

SEE ALSO:
  - engine.go: CalculatePayroll
  - store.go: Store / TxStore
  - store/sqlite: the production TxStore
*/
package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
	"go.uber.org/zap"
)

// RuleSource resolves a country's rule table. *rules.Registry implements it.
type RuleSource interface {
	Lookup(code string) (rules.CountryRuleTable, error)
}

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
	return &Service{
		Store:  store,
		Rules:  rs,
		Logger: logger.Named("payroll.service"),
		Now:    time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// =============================================================================
// EMPLOYEES AND CONTRACTS
// =============================================================================

// CreateEmployee registers an employee. The country must have a rule table.
func (s *Service) CreateEmployee(ctx context.Context, e generic.Employee) (generic.Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return generic.Employee{}, generic.Invalid("name", "is required")
	}
	if e.HireDate.IsZero() {
		return generic.Employee{}, generic.Invalid("hire_date", "is required")
	}
	e.CountryCode = rules.NormalizeCode(e.CountryCode)
	if _, err := s.Rules.Lookup(e.CountryCode); err != nil {
		return generic.Employee{}, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = generic.EmployeeActive
	}
	e.CreatedAt = s.now()

	if err := s.Store.SaveEmployee(ctx, e); err != nil {
		s.log().Error("failed to save employee", zap.String("employee_id", e.ID), zap.Error(err))
		return generic.Employee{}, err
	}
	s.log().Info("employee created", zap.String("employee_id", e.ID), zap.String("country", e.CountryCode))
	return e, nil
}

// AddContract stores a new current contract for the employee, replacing
// whichever contract was current before.
func (s *Service) AddContract(ctx context.Context, c Contract) (Contract, error) {
	if err := validateContract(c); err != nil {
		return Contract{}, err
	}
	if _, err := s.Store.GetEmployee(ctx, c.EmployeeID); err != nil {
		return Contract{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.IsCurrent = true
	c.CreatedAt = s.now()

	if err := s.Store.SaveContract(ctx, c); err != nil {
		s.log().Error("failed to save contract", zap.String("employee_id", c.EmployeeID), zap.Error(err))
		return Contract{}, err
	}
	s.log().Info("contract added",
		zap.String("employee_id", c.EmployeeID),
		zap.String("contract_id", c.ID),
		zap.String("base_salary", c.BaseSalary.String()),
	)
	return c, nil
}

func validateContract(c Contract) error {
	if c.EmployeeID == "" {
		return generic.Invalid("employee_id", "is required")
	}
	if c.StartDate.IsZero() {
		return generic.Invalid("start_date", "is required")
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return generic.Invalid("end_date", "must not be before start_date")
	}
	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"base_salary", c.BaseSalary},
		{"transport_allowance", c.TransportAllowance},
		{"food_allowance", c.FoodAllowance},
		{"other_allowances", c.OtherAllowances},
		{"health_surcharge_rate", c.HealthSurchargeRate},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return generic.Invalid(a.field, "must not be negative")
		}
	}
	if c.HourlyRate.Valid && c.HourlyRate.Decimal.IsNegative() {
		return generic.Invalid("hourly_rate", "must not be negative")
	}
	for field, rate := range map[string]decimal.NullDecimal{"pension_rate": c.PensionRate, "health_rate": c.HealthRate} {
		if rate.Valid && (rate.Decimal.IsNegative() || rate.Decimal.GreaterThan(decimal.NewFromInt(100))) {
			return generic.Invalid(field, "must be a percentage within [0, 100]")
		}
	}
	return nil
}

// =============================================================================
// OVERTIME
// =============================================================================

// OvertimeEntry is a request to log overtime hours.
type OvertimeEntry struct {
	EmployeeID  string
	Date        generic.Date
	Hours       decimal.Decimal
	Category    Category
	Description string
}

// RecordOvertime values and stores an overtime entry as pending.
func (s *Service) RecordOvertime(ctx context.Context, e OvertimeEntry) (OvertimeRecord, error) {
	if err := ValidateOvertimeHours(e.Hours); err != nil {
		return OvertimeRecord{}, err
	}
	if e.Category == "" {
		e.Category = CategoryOrdinary
	}
	if _, err := ParseCategory(string(e.Category)); err != nil {
		return OvertimeRecord{}, err
	}
	if e.Date.IsZero() {
		return OvertimeRecord{}, generic.Invalid("date", "is required")
	}

	emp, err := s.Store.GetEmployee(ctx, e.EmployeeID)
	if err != nil {
		return OvertimeRecord{}, err
	}
	table, err := s.Rules.Lookup(emp.CountryCode)
	if err != nil {
		return OvertimeRecord{}, err
	}
	contract, err := s.Store.CurrentContract(ctx, emp.ID)
	if err != nil {
		return OvertimeRecord{}, err
	}

	rate := contract.OvertimeRate(table.Rounding())
	rec := OvertimeRecord{
		ID:          uuid.NewString(),
		EmployeeID:  emp.ID,
		Date:        e.Date,
		Hours:       e.Hours,
		Category:    e.Category,
		Multiplier:  e.Category.Multiplier(table),
		HourlyRate:  rate,
		Amount:      OvertimeAmount(e.Hours, rate, e.Category, table),
		Description: e.Description,
		Status:      OvertimePending,
		CreatedAt:   s.now(),
	}
	if err := s.Store.SaveOvertime(ctx, rec); err != nil {
		s.log().Error("failed to save overtime", zap.String("employee_id", emp.ID), zap.Error(err))
		return OvertimeRecord{}, err
	}

	s.log().Info("overtime recorded",
		zap.String("overtime_id", rec.ID),
		zap.String("employee_id", emp.ID),
		zap.String("hours", rec.Hours.String()),
		zap.String("amount", rec.Amount.String()),
	)
	return rec, nil
}

func (s *Service) ApproveOvertime(ctx context.Context, id string) (OvertimeRecord, error) {
	return s.transitionOvertime(ctx, id, OvertimeApproved)
}

func (s *Service) RejectOvertime(ctx context.Context, id string) (OvertimeRecord, error) {
	return s.transitionOvertime(ctx, id, OvertimeRejected)
}

// Only pending records can be approved or rejected.
func (s *Service) transitionOvertime(ctx context.Context, id string, to OvertimeStatus) (OvertimeRecord, error) {
	if err := s.Store.UpdateOvertimeStatus(ctx, id, OvertimePending, to); err != nil {
		return OvertimeRecord{}, err
	}
	s.log().Info("overtime status changed", zap.String("overtime_id", id), zap.String("status", string(to)))
	return s.Store.GetOvertime(ctx, id)
}

// =============================================================================
// GENERATE
// =============================================================================

// GenerateRequest asks for the payroll of one employee for one month.
type GenerateRequest struct {
	EmployeeID      string
	Year            int
	Month           int
	AbsentDays      int
	VacationDays    int
	OtherDeductions decimal.Decimal
	TaxUnitValue    decimal.Decimal // UTM for the period; required
	Notes           string
	CreatedBy       string
}

func (r GenerateRequest) validate() error {
	if r.EmployeeID == "" {
		return generic.Invalid("employee_id", "is required")
	}
	if r.Year < 1900 || r.Year > 9999 {
		return generic.Invalid("year", "out of range: %d", r.Year)
	}
	if r.Month < 1 || r.Month > 12 {
		return generic.Invalid("month", "must be within 1..12, got %d", r.Month)
	}
	if r.AbsentDays < 0 || r.AbsentDays > DefaultWorkingDaysPerMonth {
		return generic.Invalid("absent_days", "must be within 0..%d, got %d", DefaultWorkingDaysPerMonth, r.AbsentDays)
	}
	if r.VacationDays < 0 {
		return generic.Invalid("vacation_days", "must not be negative")
	}
	if r.OtherDeductions.IsNegative() {
		return generic.Invalid("other_deductions", "must not be negative")
	}
	if !r.TaxUnitValue.IsPositive() {
		return generic.ErrInvalidTaxUnit
	}
	return nil
}

// Generate computes and persists the payroll for one employee and month,
// consuming the employee's approved overtime for that month.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (PayrollRecord, error) {
	if err := req.validate(); err != nil {
		return PayrollRecord{}, err
	}
	l := s.log().With(
		zap.String("employee_id", req.EmployeeID),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
	)

	var rec PayrollRecord
	err := s.Store.WithTx(ctx, func(tx Store) error {
		exists, err := tx.PayrollExists(ctx, req.EmployeeID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: employee %s %04d-%02d", generic.ErrPayrollExists, req.EmployeeID, req.Year, req.Month)
		}

		emp, err := tx.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		table, err := s.Rules.Lookup(emp.CountryCode)
		if err != nil {
			return err
		}
		contract, err := tx.CurrentContract(ctx, emp.ID)
		if err != nil {
			return err
		}

		period := generic.MonthPeriod(req.Year, time.Month(req.Month))
		overtime, err := tx.ApprovedOvertime(ctx, emp.ID, period.Start, period.End)
		if err != nil {
			return err
		}
		overtimeTotal := decimal.Zero
		ids := make([]string, 0, len(overtime))
		for _, o := range overtime {
			overtimeTotal = overtimeTotal.Add(o.Amount)
			ids = append(ids, o.ID)
		}

		in := Input{
			BaseSalary:          contract.BaseSalary,
			OvertimeTotal:       overtimeTotal,
			TransportAllowance:  contract.TransportAllowance,
			FoodAllowance:       contract.FoodAllowance,
			OtherAllowances:     contract.OtherAllowances,
			AbsentDays:          req.AbsentDays,
			WorkingDaysInPeriod: DefaultWorkingDaysPerMonth,
			PensionRateOverride: contract.PensionRate,
			HealthRateOverride:  contract.HealthRate,
			HealthSurchargeRate: contract.HealthSurchargeRate,
			OtherDeductions:     req.OtherDeductions,
		}
		if err := in.Validate(); err != nil {
			return err
		}
		result, err := CalculatePayroll(in, table, req.TaxUnitValue)
		if err != nil {
			return err
		}

		rec = PayrollRecord{
			ID:           uuid.NewString(),
			EmployeeID:   emp.ID,
			ContractID:   contract.ID,
			CountryCode:  table.Code,
			Currency:     table.Currency,
			PeriodYear:   req.Year,
			PeriodMonth:  req.Month,
			WorkingDays:  DefaultWorkingDaysPerMonth - req.AbsentDays,
			AbsentDays:   req.AbsentDays,
			VacationDays: req.VacationDays,
			Result:       result,
			OvertimeIDs:  ids,
			Status:       PayrollDraft,
			Notes:        req.Notes,
			CreatedBy:    req.CreatedBy,
			CreatedAt:    s.now(),
		}
		if err := tx.SavePayroll(ctx, rec); err != nil {
			return err
		}

		if len(ids) == 0 {
			return nil
		}
		n, err := tx.ConsumeOvertime(ctx, rec.ID, ids)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return fmt.Errorf("%w: consumed %d of %d overtime records", generic.ErrConcurrentModification, n, len(ids))
		}
		return nil
	})
	if err != nil {
		if generic.IsConflict(err) || generic.IsClientError(err) || generic.IsNotFound(err) {
			l.Warn("payroll not generated", zap.Error(err))
		} else {
			l.Error("payroll generation failed", zap.Error(err))
		}
		return PayrollRecord{}, err
	}

	l.Info("payroll generated",
		zap.String("payroll_id", rec.ID),
		zap.String("gross", rec.GrossSalary.String()),
		zap.String("net", rec.NetSalary.String()),
		zap.Int("overtime_records", len(rec.OvertimeIDs)),
	)
	return rec, nil
}

// =============================================================================
// QUERIES AND STATUS
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (PayrollRecord, error) {
	return s.Store.GetPayroll(ctx, id)
}

func (s *Service) List(ctx context.Context, f PayrollFilter) ([]PayrollRecord, error) {
	return s.Store.ListPayrolls(ctx, f)
}

// UpdateStatus moves a payroll one step along draft -> issued -> paid.
func (s *Service) UpdateStatus(ctx context.Context, id string, next PayrollStatus) (PayrollRecord, error) {
	var rec PayrollRecord
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.GetPayroll(ctx, id)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", generic.ErrInvalidTransition, cur.Status, next)
		}
		if err := tx.UpdatePayrollStatus(ctx, id, cur.Status, next); err != nil {
			return err
		}
		cur.Status = next
		rec = cur
		return nil
	})
	if err != nil {
		return PayrollRecord{}, err
	}
	s.log().Info("payroll status changed", zap.String("payroll_id", id), zap.String("status", string(next)))
	return rec, nil
}

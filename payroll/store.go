package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is the employment contract a payroll is computed from. Only one
// contract per employee is current at a time.
type Contract struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	StartDate  generic.Date    `json:"start_date"`
	EndDate    *generic.Date   `json:"end_date,omitempty"` // nil = indefinite
	BaseSalary decimal.Decimal `json:"base_salary"`

	// HourlyRate overrides HourlyRate(BaseSalary) for overtime when set.
	HourlyRate decimal.NullDecimal `json:"hourly_rate"`

	TransportAllowance decimal.Decimal `json:"transport_allowance"`
	FoodAllowance      decimal.Decimal `json:"food_allowance"`
	OtherAllowances    decimal.Decimal `json:"other_allowances"`

	PensionRate         decimal.NullDecimal `json:"pension_rate"`
	HealthRate          decimal.NullDecimal `json:"health_rate"`
	HealthSurchargeRate decimal.Decimal     `json:"health_surcharge_rate"`

	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
}

// OvertimeRate is the hourly rate overtime is valued at under this contract.
func (c Contract) OvertimeRate(rounding generic.Rounding) decimal.Decimal {
	if c.HourlyRate.Valid && c.HourlyRate.Decimal.IsPositive() {
		return c.HourlyRate.Decimal
	}
	return HourlyRate(c.BaseSalary, DefaultSchedule, rounding)
}

// =============================================================================
// OVERTIME RECORD
// =============================================================================

type OvertimeStatus string

const (
	OvertimePending  OvertimeStatus = "pending"
	OvertimeApproved OvertimeStatus = "approved"
	OvertimeRejected OvertimeStatus = "rejected"
	OvertimePaid     OvertimeStatus = "paid" // consumed by a payroll
)

// OvertimeRecord is one logged overtime entry. Amount is computed once, at
// recording time, by OvertimeAmount.
type OvertimeRecord struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	Date        generic.Date    `json:"date"`
	Hours       decimal.Decimal `json:"hours"`
	Category    Category        `json:"category"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Status      OvertimeStatus  `json:"status"`
	PayrollID   string          `json:"payroll_id,omitempty"` // set once consumed
	CreatedAt   time.Time       `json:"created_at"`
}

// =============================================================================
// PAYROLL RECORD
// =============================================================================

type PayrollStatus string

const (
	PayrollDraft  PayrollStatus = "draft"
	PayrollIssued PayrollStatus = "issued"
	PayrollPaid   PayrollStatus = "paid"
)

// CanTransition reports whether a payroll may move from s to next.
// draft -> issued -> paid, one step at a time.
func (s PayrollStatus) CanTransition(next PayrollStatus) bool {
	switch s {
	case PayrollDraft:
		return next == PayrollIssued
	case PayrollIssued:
		return next == PayrollPaid
	}
	return false
}

func ParsePayrollStatus(s string) (PayrollStatus, error) {
	switch st := PayrollStatus(s); st {
	case PayrollDraft, PayrollIssued, PayrollPaid:
		return st, nil
	}
	return "", generic.Invalid("status", "must be one of draft, issued, paid; got %q", s)
}

// PayrollRecord is a persisted payroll: every Result field plus the period
// and audit data around it.
type PayrollRecord struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	ContractID  string `json:"contract_id"`
	CountryCode string `json:"country_code"`
	Currency    string `json:"currency"`
	PeriodYear  int    `json:"period_year"`
	PeriodMonth int    `json:"period_month"`

	WorkingDays  int `json:"working_days"`
	AbsentDays   int `json:"absent_days"`
	VacationDays int `json:"vacation_days"`

	Result

	OvertimeIDs []string      `json:"overtime_ids,omitempty"`
	Status      PayrollStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedBy   string        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PayrollFilter narrows ListPayrolls. Zero fields match everything.
type PayrollFilter struct {
	EmployeeID string
	Year       int
	Month      int
	Status     PayrollStatus
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence the payroll service needs.
type Store interface {
	generic.EmployeeStore

	SaveContract(ctx context.Context, c Contract) error
	// CurrentContract returns ErrNoActiveContract when none is flagged current.
	CurrentContract(ctx context.Context, employeeID string) (Contract, error)

	SaveOvertime(ctx context.Context, r OvertimeRecord) error
	GetOvertime(ctx context.Context, id string) (OvertimeRecord, error)
	// UpdateOvertimeStatus moves a record from one status to another and
	// returns ErrInvalidTransition if it is not currently in from.
	UpdateOvertimeStatus(ctx context.Context, id string, from, to OvertimeStatus) error
	// ApprovedOvertime lists approved, unconsumed records dated in [from, to].
	ApprovedOvertime(ctx context.Context, employeeID string, from, to generic.Date) ([]OvertimeRecord, error)
	// ConsumeOvertime links approved, unconsumed records to a payroll, marks
	// them paid and returns how many it flagged.
	ConsumeOvertime(ctx context.Context, payrollID string, ids []string) (int, error)

	PayrollExists(ctx context.Context, employeeID string, year, month int) (bool, error)
	// SavePayroll returns ErrPayrollExists when the period is taken.
	SavePayroll(ctx context.Context, p PayrollRecord) error
	GetPayroll(ctx context.Context, id string) (PayrollRecord, error)
	ListPayrolls(ctx context.Context, f PayrollFilter) ([]PayrollRecord, error)
	UpdatePayrollStatus(ctx context.Context, id string, from, to PayrollStatus) error
}

// TxStore runs fn atomically: everything fn writes is committed together or
// not at all.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

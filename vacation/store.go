package vacation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// BalanceRecord is an employee's stored vacation ledger for one year.
type BalanceRecord struct {
	EmployeeID    string          `json:"employee_id"`
	Year          int             `json:"year"`
	DaysEarned    decimal.Decimal `json:"days_earned"`
	DaysTaken     decimal.Decimal `json:"days_taken"`
	DaysCarried   decimal.Decimal `json:"days_carried"`
	DaysForfeited decimal.Decimal `json:"days_forfeited"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Store is the persistence the vacation service needs.
type Store interface {
	generic.EmployeeStore
	generic.HolidayStore

	// GetBalance returns the stored record, or a zero record for
	// (employeeID, year) when none exists yet.
	GetBalance(ctx context.Context, employeeID string, year int) (BalanceRecord, error)
	// SaveBalance inserts or replaces the whole record.
	SaveBalance(ctx context.Context, b BalanceRecord) error
	// SetDaysEarned inserts or updates only days_earned, leaving taken,
	// carried and forfeited as they are.
	SetDaysEarned(ctx context.Context, employeeID string, year int, earned decimal.Decimal, at time.Time) error
	// AddDaysTaken adds days to days_taken, creating the record when missing.
	AddDaysTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal, at time.Time) error

	SaveLeaveRequest(ctx context.Context, r LeaveRequest) error
	// GetLeaveRequest returns ErrRequestNotFound for an unknown id.
	GetLeaveRequest(ctx context.Context, id string) (LeaveRequest, error)
	ListLeaveRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error)
	// ReviewLeaveRequest moves a request from one status to another and
	// records the review. Returns ErrInvalidTransition if it is not
	// currently in from.
	ReviewLeaveRequest(ctx context.Context, id string, from, to RequestStatus, rv Review) error
}

// TxStore runs fn atomically: everything fn writes is committed together or
// not at all.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

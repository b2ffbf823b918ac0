/*
request.go - Leave requests

PURPOSE:
  Stores leave requests sized at creation time and moves them through
  review. Approving a vacation request consumes balance.

LIFECYCLE:
  pending --approve--> approved
     |----reject---> rejected
     \----cancel---> cancelled

  Only pending requests change status. Every final status is terminal.

GUARANTEES:
  - Days are sized once, at creation: 0.5 for a half day, otherwise the
    working days in [start, end] for the employee's country. A request that
    covers no working day is rejected.
  - Approving a vacation request re-checks the balance of the start date's
    year and adds the days to days_taken in the SAME transaction that flips
    the status. Two concurrent approvals of one request take it once; the
    loser gets ErrInvalidTransition and its increment is rolled back.
  - Other request types (paid/unpaid leave, other) never touch the balance.

SEE ALSO:
  - accrual.go: RequestDays, Balance
  - service.go: Check (the same sizing, without storing anything)
*/
package vacation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// TYPES
// =============================================================================

type RequestType string

const (
	RequestVacation    RequestType = "vacation"
	RequestPaidLeave   RequestType = "paid_leave"
	RequestUnpaidLeave RequestType = "unpaid_leave"
	RequestOther       RequestType = "other"
)

func ParseRequestType(s string) (RequestType, error) {
	switch t := RequestType(strings.ToLower(s)); t {
	case RequestVacation, RequestPaidLeave, RequestUnpaidLeave, RequestOther:
		return t, nil
	}
	return "", generic.Invalid("request_type", "must be one of vacation, paid_leave, unpaid_leave, other; got %q", s)
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// LeaveRequest is a stored request for time off.
type LeaveRequest struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employee_id"`
	Type          RequestType     `json:"request_type"`
	Start         generic.Date    `json:"start_date"`
	End           generic.Date    `json:"end_date"`
	Days          decimal.Decimal `json:"working_days"`
	HalfDay       bool            `json:"is_half_day"`
	HalfDayPeriod string          `json:"half_day_period,omitempty"` // AM or PM
	Reason        string          `json:"reason,omitempty"`
	Status        RequestStatus   `json:"status"`
	ReviewedBy    string          `json:"reviewed_by,omitempty"`
	ReviewNotes   string          `json:"review_notes,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Review is who decided a request, and why.
type Review struct {
	By    string
	Notes string
	At    time.Time
}

// RequestFilter narrows ListLeaveRequests. Zero fields match everything.
type RequestFilter struct {
	EmployeeID string
	Status     RequestStatus
}

// NewRequest is a leave request as submitted.
type NewRequest struct {
	EmployeeID    string
	Type          RequestType
	Start         generic.Date
	End           generic.Date
	HalfDay       bool
	HalfDayPeriod string
	Reason        string
}

func (r NewRequest) validate() error {
	if r.EmployeeID == "" {
		return generic.Invalid("employee_id", "is required")
	}
	if _, err := ParseRequestType(string(r.Type)); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return generic.Invalid("start_date", "start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return generic.Invalid("end_date", "must not be before start_date")
	}
	if r.HalfDay && r.Start != r.End {
		return generic.Invalid("half_day", "only allowed for single-day requests")
	}
	switch r.HalfDayPeriod {
	case "", "AM", "PM":
	default:
		return generic.Invalid("half_day_period", "must be AM or PM, got %q", r.HalfDayPeriod)
	}
	return nil
}

// =============================================================================
// CREATE AND QUERY
// =============================================================================

// CreateRequest sizes and stores a pending leave request.
func (s *Service) CreateRequest(ctx context.Context, nr NewRequest) (LeaveRequest, error) {
	if err := nr.validate(); err != nil {
		return LeaveRequest{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, nr.EmployeeID)
	if err != nil {
		return LeaveRequest{}, err
	}
	holidays, err := s.Holidays(ctx, emp.CountryCode, nr.Start, nr.End)
	if err != nil {
		return LeaveRequest{}, err
	}
	days := RequestDays(nr.Start, nr.End, nr.HalfDay, holidays)
	if !days.IsPositive() {
		return LeaveRequest{}, generic.Invalid("end_date", "request covers no working day")
	}

	req := LeaveRequest{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Type:       nr.Type,
		Start:      nr.Start,
		End:        nr.End,
		Days:       days,
		HalfDay:    nr.HalfDay,
		Reason:     strings.TrimSpace(nr.Reason),
		Status:     RequestPending,
		CreatedAt:  s.now(),
	}
	if nr.HalfDay {
		req.HalfDayPeriod = nr.HalfDayPeriod
		if req.HalfDayPeriod == "" {
			req.HalfDayPeriod = "AM"
		}
	}
	if err := s.Store.SaveLeaveRequest(ctx, req); err != nil {
		return LeaveRequest{}, err
	}
	s.Logger.Info("leave request created",
		zap.String("request_id", req.ID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("type", string(req.Type)),
		zap.String("days", req.Days.String()),
	)
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (LeaveRequest, error) {
	return s.Store.GetLeaveRequest(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error) {
	return s.Store.ListLeaveRequests(ctx, f)
}

// =============================================================================
// REVIEW
// =============================================================================

// ApproveRequest approves a pending request. For vacation requests the days
// are checked against the balance and added to days_taken atomically.
func (s *Service) ApproveRequest(ctx context.Context, id, by, notes string) (LeaveRequest, error) {
	var out LeaveRequest
	err := s.Store.InTx(ctx, func(tx Store) error {
		req, err := tx.GetLeaveRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return fmt.Errorf("%w: request %s is %s", generic.ErrInvalidTransition, id, req.Status)
		}

		rv := Review{By: by, Notes: strings.TrimSpace(notes), At: s.now()}
		if req.Type == RequestVacation {
			if err := s.takeDays(ctx, tx, req, rv.At); err != nil {
				return err
			}
		}
		if err := tx.ReviewLeaveRequest(ctx, id, RequestPending, RequestApproved, rv); err != nil {
			return err
		}
		out = reviewed(req, RequestApproved, rv)
		return nil
	})
	if err != nil {
		s.Logger.Warn("leave request not approved", zap.String("request_id", id), zap.Error(err))
		return LeaveRequest{}, err
	}
	s.Logger.Info("leave request approved",
		zap.String("request_id", id),
		zap.String("employee_id", out.EmployeeID),
		zap.String("days", out.Days.String()),
	)
	return out, nil
}

func (s *Service) RejectRequest(ctx context.Context, id, by, notes string) (LeaveRequest, error) {
	return s.closeRequest(ctx, id, RequestRejected, by, notes)
}

func (s *Service) CancelRequest(ctx context.Context, id, by, notes string) (LeaveRequest, error) {
	return s.closeRequest(ctx, id, RequestCancelled, by, notes)
}

// takeDays re-checks the balance for the start date's year with earned days
// as of the approval date, then records the days as taken.
func (s *Service) takeDays(ctx context.Context, tx Store, req LeaveRequest, at time.Time) error {
	emp, err := tx.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return err
	}
	table, err := s.Rules.Lookup(emp.CountryCode)
	if err != nil {
		return err
	}
	year := req.Start.Year
	stored, err := tx.GetBalance(ctx, emp.ID, year)
	if err != nil {
		return err
	}
	earned := DaysEarned(emp.HireDate, yearAsOf(year, at), table)
	if b := Balance(earned, stored.DaysTaken, stored.DaysCarried, req.Days); !b.CanApprove {
		return fmt.Errorf("%w: %s days requested, %s available", generic.ErrInsufficientBalance, req.Days, b.Available)
	}
	return tx.AddDaysTaken(ctx, emp.ID, year, req.Days, at)
}

func (s *Service) closeRequest(ctx context.Context, id string, to RequestStatus, by, notes string) (LeaveRequest, error) {
	req, err := s.Store.GetLeaveRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	rv := Review{By: by, Notes: strings.TrimSpace(notes), At: s.now()}
	if err := s.Store.ReviewLeaveRequest(ctx, id, RequestPending, to, rv); err != nil {
		return LeaveRequest{}, err
	}
	s.Logger.Info("leave request closed", zap.String("request_id", id), zap.String("status", string(to)))
	return reviewed(req, to, rv), nil
}

func reviewed(req LeaveRequest, to RequestStatus, rv Review) LeaveRequest {
	at := rv.At
	req.Status = to
	req.ReviewedBy = rv.By
	req.ReviewNotes = rv.Notes
	req.ReviewedAt = &at
	return req
}

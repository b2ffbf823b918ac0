/*
errors.go - Centralized error types

PURPOSE:
  The calculators are total over their numeric domain and return no errors
  for valid numbers. Errors exist for the two things callers can get wrong:

  1. Configuration errors - a rule table that violates the bracket
     invariants, a missing/non-positive tax-unit value, an unknown country.
  2. Input validation errors - rejected BEFORE any calculator is invoked
     (negative salary, absence days beyond the period, overtime hours
     outside (0, 12]).

  Plus the persistence conflicts the surrounding service must surface
  (payroll already generated, overtime consumed concurrently) and the
  balance check that blocks approving an oversized vacation request.

USAGE:
  if errors.Is(err, generic.ErrPayrollExists) { ... 409 ... }

  var verr *generic.ValidationError
  if errors.As(err, &verr) { ... verr.Field ... }

SEE ALSO:
  - rules/registry.go: raises BracketTableError at registration
  - payroll/service.go: raises ValidationError and conflicts
  - api/handlers.go: maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTaxUnit is returned when the tax-unit value is missing or not
	// positive. There is no fallback value.
	ErrInvalidTaxUnit = errors.New("tax unit value must be positive")

	// ErrBracketTable is returned when a bracket table is not sorted,
	// not contiguous, or not open-ended.
	ErrBracketTable = errors.New("invalid tax bracket table")

	// ErrInvalidRuleTable is returned for rule-table parameters out of range.
	ErrInvalidRuleTable = errors.New("invalid country rule table")

	// ErrCountryNotFound is returned when no rule table is registered for a country.
	ErrCountryNotFound = errors.New("country rule table not found")

	// ErrInvalidInput is returned when caller-side validation rejects input.
	ErrInvalidInput = errors.New("invalid input")

	ErrEmployeeNotFound = errors.New("employee not found")
	ErrNoActiveContract = errors.New("employee has no active contract")
	ErrPayrollNotFound  = errors.New("payroll not found")
	ErrOvertimeNotFound = errors.New("overtime record not found")
	ErrHolidayNotFound  = errors.New("holiday not found")
	ErrRequestNotFound  = errors.New("leave request not found")

	// ErrInsufficientBalance is returned when a vacation request exceeds the
	// available days at approval time.
	ErrInsufficientBalance = errors.New("insufficient vacation balance")

	// ErrPayrollExists is returned when a payroll for (employee, period) exists.
	ErrPayrollExists = errors.New("payroll already exists for period")

	// ErrInvalidTransition is returned for a status change that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrentModification is returned when records changed underneath a
	// transaction (e.g. overtime consumed by a concurrent payroll run).
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BracketTableError describes which bracket broke which invariant.
type BracketTableError struct {
	Country string
	Index   int
	Reason  string
}

func (e *BracketTableError) Error() string {
	return fmt.Sprintf("tax brackets for %s: bracket %d: %s", e.Country, e.Index, e.Reason)
}

func (e *BracketTableError) Unwrap() error { return ErrBracketTable }

// RuleTableError describes an out-of-range rule-table parameter.
type RuleTableError struct {
	Country string
	Field   string
	Reason  string
}

func (e *RuleTableError) Error() string {
	return fmt.Sprintf("rule table %s: %s %s", e.Country, e.Field, e.Reason)
}

func (e *RuleTableError) Unwrap() error { return ErrInvalidRuleTable }

// ValidationError is a user-facing input validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTaxUnit) ||
		errors.Is(err, ErrBracketTable) ||
		errors.Is(err, ErrInvalidRuleTable) ||
		errors.Is(err, ErrNoActiveContract) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCountryNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrPayrollNotFound) ||
		errors.Is(err, ErrOvertimeNotFound) ||
		errors.Is(err, ErrHolidayNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsConflict returns true if the error is a uniqueness or concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPayrollExists) ||
		errors.Is(err, ErrConcurrentModification)
}

/*
store.go - Persistence interfaces shared by the services

PURPOSE:
  Defines the interface between the domain logic and the database for the
  data both the payroll and the vacation services read: employees and the
  public-holiday calendar. Each service composes these with its own
  records (payroll.Store, vacation.Store).

KEY INTERFACES:
  EmployeeStore: Employee master data
  HolidayStore:  Holidays per country, one-off or recurring

NOT-FOUND CONTRACT:
  Lookups by id return the package sentinels (ErrEmployeeNotFound,
  ErrHolidayNotFound) wrapped with the id, so callers test with errors.Is.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - payroll/store.go: Contracts, overtime, payrolls, TxStore
  - vacation/store.go: Vacation balances
*/
package generic

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EmployeeStore reads and writes employee master data.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	// GetEmployee returns ErrEmployeeNotFound for unknown ids.
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
}

// HolidayStore keeps the public-holiday calendar per country.
type HolidayStore interface {
	SaveHoliday(ctx context.Context, h Holiday) error
	// DeleteHoliday returns ErrHolidayNotFound for unknown ids.
	DeleteHoliday(ctx context.Context, id string) error
	// ListHolidays returns the country's one-off holidays dated in
	// [from, to] and all of its recurring holidays.
	ListHolidays(ctx context.Context, countryCode string, from, to Date) ([]Holiday, error)
}

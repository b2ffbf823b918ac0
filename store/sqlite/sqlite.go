/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the services use, in one
  database file:

INTERFACES IMPLEMENTED:
  payroll.TxStore:  employees, contracts, overtime, payrolls (+ WithTx)
  vacation.TxStore: employees, holidays, vacation balances, leave
                    requests (+ InTx)
  rules.Store:      country rule tables as JSON documents

KEY TABLES:
  country_rules:      One JSON rule table per country code
  employees:          Employee master data (country code drives the rules)
  contracts:          Salary, allowances, rate overrides; one current per employee
  overtime:           Valued overtime entries and their consumption link
  payrolls:           Every calculated field of a payroll, per employee and month
  holidays:           Public holidays per country (one-off or recurring)
  vacation_balances:  Earned/taken/carried/forfeited days per employee and year
  leave_requests:     Sized leave requests and their review

AT-MOST-ONCE GUARANTEES:
  - idx_payrolls_employee_period is UNIQUE(employee_id, period_year,
    period_month). A violating insert maps to generic.ErrPayrollExists.
  - ConsumeOvertime only flags rows that are still approved and unlinked
    and reports how many it flagged, so a caller can detect a race.

AMOUNTS:
  Money and day quantities are stored as TEXT decimal strings, never REAL,
  so values round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole callback; the store handed to the callback runs its statements on
  the *sql.Tx without touching the mutex again.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/store.go, vacation/store.go, rules/registry.go: interfaces
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rules"
	"github.com/warp/payroll-engine/vacation"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS country_rules (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		national_id TEXT,
		name TEXT NOT NULL,
		email TEXT,
		hire_date TEXT NOT NULL,
		country_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT,
		base_salary TEXT NOT NULL,
		hourly_rate TEXT,
		transport_allowance TEXT NOT NULL DEFAULT '0',
		food_allowance TEXT NOT NULL DEFAULT '0',
		other_allowances TEXT NOT NULL DEFAULT '0',
		pension_rate TEXT,
		health_rate TEXT,
		health_surcharge_rate TEXT NOT NULL DEFAULT '0',
		is_current INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee_current
		ON contracts(employee_id, is_current);

	CREATE TABLE IF NOT EXISTS payrolls (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		contract_id TEXT NOT NULL,
		country_code TEXT NOT NULL,
		currency TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		working_days INTEGER NOT NULL,
		absent_days INTEGER NOT NULL,
		vacation_days INTEGER NOT NULL,
		base_salary TEXT NOT NULL,
		prorated_base TEXT NOT NULL,
		overtime_total TEXT NOT NULL,
		transport_allowance TEXT NOT NULL,
		food_allowance TEXT NOT NULL,
		other_allowances TEXT NOT NULL,
		gross_salary TEXT NOT NULL,
		taxable_base TEXT NOT NULL,
		taxable_income TEXT NOT NULL,
		tax_unit_value TEXT NOT NULL,
		pension_rate TEXT NOT NULL,
		pension_amount TEXT NOT NULL,
		health_rate TEXT NOT NULL,
		health_amount TEXT NOT NULL,
		unemployment_rate TEXT NOT NULL,
		unemployment_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		other_deductions TEXT NOT NULL,
		total_deductions TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- At most one payroll per employee and month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payrolls_employee_period
		ON payrolls(employee_id, period_year, period_month);

	CREATE TABLE IF NOT EXISTS overtime (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		category TEXT NOT NULL,
		multiplier TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		payroll_id TEXT REFERENCES payrolls(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_overtime_employee_status_date
		ON overtime(employee_id, status, date);
	CREATE INDEX IF NOT EXISTS idx_overtime_payroll
		ON overtime(payroll_id) WHERE payroll_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		country_code TEXT NOT NULL,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_country_date
		ON holidays(country_code, date);

	CREATE TABLE IF NOT EXISTS vacation_balances (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		year INTEGER NOT NULL,
		days_earned TEXT NOT NULL DEFAULT '0',
		days_taken TEXT NOT NULL DEFAULT '0',
		days_carried TEXT NOT NULL DEFAULT '0',
		days_forfeited TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		request_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		working_days TEXT NOT NULL,
		is_half_day INTEGER NOT NULL DEFAULT 0,
		half_day_period TEXT,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT,
		review_notes TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee_status
		ON leave_requests(employee_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// InTx is WithTx for the vacation service.
func (s *Store) InTx(ctx context.Context, fn func(store vacation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every statement on the open transaction. The parent's lock
// is already held.
type txStore struct {
	q querier
}

func (ts *txStore) SaveEmployee(ctx context.Context, e generic.Employee) error {
	return saveEmployee(ctx, ts.q, e)
}
func (ts *txStore) GetEmployee(ctx context.Context, id string) (generic.Employee, error) {
	return getEmployee(ctx, ts.q, id)
}
func (ts *txStore) ListActiveEmployees(ctx context.Context) ([]generic.Employee, error) {
	return listActiveEmployees(ctx, ts.q)
}
func (ts *txStore) SaveContract(ctx context.Context, c payroll.Contract) error {
	return saveContract(ctx, ts.q, c)
}
func (ts *txStore) CurrentContract(ctx context.Context, employeeID string) (payroll.Contract, error) {
	return currentContract(ctx, ts.q, employeeID)
}
func (ts *txStore) SaveOvertime(ctx context.Context, r payroll.OvertimeRecord) error {
	return saveOvertime(ctx, ts.q, r)
}
func (ts *txStore) GetOvertime(ctx context.Context, id string) (payroll.OvertimeRecord, error) {
	return getOvertime(ctx, ts.q, id)
}
func (ts *txStore) UpdateOvertimeStatus(ctx context.Context, id string, from, to payroll.OvertimeStatus) error {
	return updateOvertimeStatus(ctx, ts.q, id, from, to)
}
func (ts *txStore) ApprovedOvertime(ctx context.Context, employeeID string, from, to generic.Date) ([]payroll.OvertimeRecord, error) {
	return approvedOvertime(ctx, ts.q, employeeID, from, to)
}
func (ts *txStore) ConsumeOvertime(ctx context.Context, payrollID string, ids []string) (int, error) {
	return consumeOvertime(ctx, ts.q, payrollID, ids)
}
func (ts *txStore) PayrollExists(ctx context.Context, employeeID string, year, month int) (bool, error) {
	return payrollExists(ctx, ts.q, employeeID, year, month)
}
func (ts *txStore) SavePayroll(ctx context.Context, p payroll.PayrollRecord) error {
	return savePayroll(ctx, ts.q, p)
}
func (ts *txStore) GetPayroll(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	return getPayroll(ctx, ts.q, id)
}
func (ts *txStore) ListPayrolls(ctx context.Context, f payroll.PayrollFilter) ([]payroll.PayrollRecord, error) {
	return listPayrolls(ctx, ts.q, f)
}
func (ts *txStore) UpdatePayrollStatus(ctx context.Context, id string, from, to payroll.PayrollStatus) error {
	return updatePayrollStatus(ctx, ts.q, id, from, to)
}
func (ts *txStore) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	return saveHoliday(ctx, ts.q, h)
}
func (ts *txStore) DeleteHoliday(ctx context.Context, id string) error {
	return deleteHoliday(ctx, ts.q, id)
}
func (ts *txStore) ListHolidays(ctx context.Context, countryCode string, from, to generic.Date) ([]generic.Holiday, error) {
	return listHolidays(ctx, ts.q, countryCode, from, to)
}
func (ts *txStore) GetBalance(ctx context.Context, employeeID string, year int) (vacation.BalanceRecord, error) {
	return getBalance(ctx, ts.q, employeeID, year)
}
func (ts *txStore) SaveBalance(ctx context.Context, b vacation.BalanceRecord) error {
	return saveBalance(ctx, ts.q, b)
}
func (ts *txStore) SetDaysEarned(ctx context.Context, employeeID string, year int, earned decimal.Decimal, at time.Time) error {
	return setDaysEarned(ctx, ts.q, employeeID, year, earned, at)
}
func (ts *txStore) AddDaysTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal, at time.Time) error {
	return addDaysTaken(ctx, ts.q, employeeID, year, days, at)
}
func (ts *txStore) SaveLeaveRequest(ctx context.Context, r vacation.LeaveRequest) error {
	return saveLeaveRequest(ctx, ts.q, r)
}
func (ts *txStore) GetLeaveRequest(ctx context.Context, id string) (vacation.LeaveRequest, error) {
	return getLeaveRequest(ctx, ts.q, id)
}
func (ts *txStore) ListLeaveRequests(ctx context.Context, f vacation.RequestFilter) ([]vacation.LeaveRequest, error) {
	return listLeaveRequests(ctx, ts.q, f)
}
func (ts *txStore) ReviewLeaveRequest(ctx context.Context, id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	return reviewLeaveRequest(ctx, ts.q, id, from, to, rv)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, e)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActiveEmployees(ctx, s.db)
}

const employeeColumns = `id, COALESCE(national_id, ''), name, COALESCE(email, ''), hire_date, country_code, status, created_at`

func saveEmployee(ctx context.Context, q querier, e generic.Employee) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, national_id, name, email, hire_date, country_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			national_id = excluded.national_id,
			name = excluded.name,
			email = excluded.email,
			hire_date = excluded.hire_date,
			country_code = excluded.country_code,
			status = excluded.status
	`,
		e.ID,
		nullString(e.NationalID),
		e.Name,
		nullString(e.Email),
		e.HireDate.String(),
		e.CountryCode,
		string(e.Status),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func getEmployee(ctx context.Context, q querier, id string) (generic.Employee, error) {
	row := q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, err
}

func listActiveEmployees(ctx context.Context, q querier) ([]generic.Employee, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE status = ? ORDER BY id`, string(generic.EmployeeActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row scanner) (generic.Employee, error) {
	var e generic.Employee
	var hire, status, created string
	if err := row.Scan(&e.ID, &e.NationalID, &e.Name, &e.Email, &hire, &e.CountryCode, &status, &created); err != nil {
		return generic.Employee{}, err
	}
	var err error
	if e.HireDate, err = generic.ParseDate(hire); err != nil {
		return generic.Employee{}, err
	}
	e.Status = generic.EmployeeStatus(status)
	e.CreatedAt = parseTime(created)
	return e, nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

// SaveContract stores a contract. A current contract clears the flag on the
// employee's other contracts in the same transaction.
func (s *Store) SaveContract(ctx context.Context, c payroll.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveContract(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CurrentContract(ctx context.Context, employeeID string) (payroll.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return currentContract(ctx, s.db, employeeID)
}

func saveContract(ctx context.Context, q querier, c payroll.Contract) error {
	if c.IsCurrent {
		if _, err := q.ExecContext(ctx,
			`UPDATE contracts SET is_current = 0 WHERE employee_id = ? AND id <> ?`,
			c.EmployeeID, c.ID,
		); err != nil {
			return fmt.Errorf("failed to clear current contract: %w", err)
		}
	}

	var endDate sql.NullString
	if c.EndDate != nil {
		endDate = sql.NullString{String: c.EndDate.String(), Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO contracts
		(id, employee_id, start_date, end_date, base_salary, hourly_rate,
		 transport_allowance, food_allowance, other_allowances,
		 pension_rate, health_rate, health_surcharge_rate, is_current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			base_salary = excluded.base_salary,
			hourly_rate = excluded.hourly_rate,
			transport_allowance = excluded.transport_allowance,
			food_allowance = excluded.food_allowance,
			other_allowances = excluded.other_allowances,
			pension_rate = excluded.pension_rate,
			health_rate = excluded.health_rate,
			health_surcharge_rate = excluded.health_surcharge_rate,
			is_current = excluded.is_current
	`,
		c.ID,
		c.EmployeeID,
		c.StartDate.String(),
		endDate,
		c.BaseSalary.String(),
		nullDecimal(c.HourlyRate),
		c.TransportAllowance.String(),
		c.FoodAllowance.String(),
		c.OtherAllowances.String(),
		nullDecimal(c.PensionRate),
		nullDecimal(c.HealthRate),
		c.HealthSurchargeRate.String(),
		c.IsCurrent,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

func currentContract(ctx context.Context, q querier, employeeID string) (payroll.Contract, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, employee_id, start_date, end_date, base_salary, hourly_rate,
		       transport_allowance, food_allowance, other_allowances,
		       pension_rate, health_rate, health_surcharge_rate, is_current, created_at
		FROM contracts
		WHERE employee_id = ? AND is_current = 1
		ORDER BY start_date DESC
		LIMIT 1
	`, employeeID)

	var c payroll.Contract
	var start, created string
	var end sql.NullString
	err := row.Scan(
		&c.ID, &c.EmployeeID, &start, &end, &c.BaseSalary, &c.HourlyRate,
		&c.TransportAllowance, &c.FoodAllowance, &c.OtherAllowances,
		&c.PensionRate, &c.HealthRate, &c.HealthSurchargeRate, &c.IsCurrent, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Contract{}, fmt.Errorf("%w: %s", generic.ErrNoActiveContract, employeeID)
	}
	if err != nil {
		return payroll.Contract{}, err
	}

	if c.StartDate, err = generic.ParseDate(start); err != nil {
		return payroll.Contract{}, err
	}
	if end.Valid {
		d, err := generic.ParseDate(end.String)
		if err != nil {
			return payroll.Contract{}, err
		}
		c.EndDate = &d
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// =============================================================================
// OVERTIME
// =============================================================================

func (s *Store) SaveOvertime(ctx context.Context, r payroll.OvertimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveOvertime(ctx, s.db, r)
}

func (s *Store) GetOvertime(ctx context.Context, id string) (payroll.OvertimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOvertime(ctx, s.db, id)
}

func (s *Store) UpdateOvertimeStatus(ctx context.Context, id string, from, to payroll.OvertimeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateOvertimeStatus(ctx, s.db, id, from, to)
}

func (s *Store) ApprovedOvertime(ctx context.Context, employeeID string, from, to generic.Date) ([]payroll.OvertimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return approvedOvertime(ctx, s.db, employeeID, from, to)
}

func (s *Store) ConsumeOvertime(ctx context.Context, payrollID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return consumeOvertime(ctx, s.db, payrollID, ids)
}

const overtimeColumns = `id, employee_id, date, hours, category, multiplier, hourly_rate, amount,
	COALESCE(description, ''), status, COALESCE(payroll_id, ''), created_at`

func saveOvertime(ctx context.Context, q querier, r payroll.OvertimeRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO overtime
		(id, employee_id, date, hours, category, multiplier, hourly_rate, amount,
		 description, status, payroll_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.EmployeeID,
		r.Date.String(),
		r.Hours.String(),
		string(r.Category),
		r.Multiplier.String(),
		r.HourlyRate.String(),
		r.Amount.String(),
		nullString(r.Description),
		string(r.Status),
		nullString(r.PayrollID),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save overtime: %w", err)
	}
	return nil
}

func getOvertime(ctx context.Context, q querier, id string) (payroll.OvertimeRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+overtimeColumns+` FROM overtime WHERE id = ?`, id)
	r, err := scanOvertime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.OvertimeRecord{}, fmt.Errorf("%w: %s", generic.ErrOvertimeNotFound, id)
	}
	return r, err
}

func updateOvertimeStatus(ctx context.Context, q querier, id string, from, to payroll.OvertimeStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE overtime SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update overtime: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cur, err := getOvertime(ctx, q, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: overtime %s is %s, not %s", generic.ErrInvalidTransition, id, cur.Status, from)
}

func approvedOvertime(ctx context.Context, q querier, employeeID string, from, to generic.Date) ([]payroll.OvertimeRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+overtimeColumns+`
		FROM overtime
		WHERE employee_id = ? AND status = ? AND payroll_id IS NULL
		  AND date >= ? AND date <= ?
		ORDER BY date, id
	`, employeeID, string(payroll.OvertimeApproved), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.OvertimeRecord
	for rows.Next() {
		r, err := scanOvertime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func consumeOvertime(ctx context.Context, q querier, payrollID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+3)
	args = append(args, string(payroll.OvertimePaid), payrollID)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(payroll.OvertimeApproved))

	res, err := q.ExecContext(ctx, `
		UPDATE overtime SET status = ?, payroll_id = ?
		WHERE id IN (`+placeholders(len(ids))+`)
		  AND status = ? AND payroll_id IS NULL
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to consume overtime: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanOvertime(row scanner) (payroll.OvertimeRecord, error) {
	var r payroll.OvertimeRecord
	var date, category, status, created string
	err := row.Scan(
		&r.ID, &r.EmployeeID, &date, &r.Hours, &category, &r.Multiplier, &r.HourlyRate, &r.Amount,
		&r.Description, &status, &r.PayrollID, &created,
	)
	if err != nil {
		return payroll.OvertimeRecord{}, err
	}
	if r.Date, err = generic.ParseDate(date); err != nil {
		return payroll.OvertimeRecord{}, err
	}
	r.Category = payroll.Category(category)
	r.Status = payroll.OvertimeStatus(status)
	r.CreatedAt = parseTime(created)
	return r, nil
}

// =============================================================================
// PAYROLLS
// =============================================================================

func (s *Store) PayrollExists(ctx context.Context, employeeID string, year, month int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return payrollExists(ctx, s.db, employeeID, year, month)
}

func (s *Store) SavePayroll(ctx context.Context, p payroll.PayrollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayroll(ctx, s.db, p)
}

func (s *Store) GetPayroll(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayroll(ctx, s.db, id)
}

func (s *Store) ListPayrolls(ctx context.Context, f payroll.PayrollFilter) ([]payroll.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPayrolls(ctx, s.db, f)
}

func (s *Store) UpdatePayrollStatus(ctx context.Context, id string, from, to payroll.PayrollStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayrollStatus(ctx, s.db, id, from, to)
}

const payrollColumns = `id, employee_id, contract_id, country_code, currency, period_year, period_month,
	working_days, absent_days, vacation_days,
	base_salary, prorated_base, overtime_total, transport_allowance, food_allowance, other_allowances,
	gross_salary, taxable_base, taxable_income, tax_unit_value,
	pension_rate, pension_amount, health_rate, health_amount, unemployment_rate, unemployment_amount,
	tax_amount, other_deductions, total_deductions, net_salary,
	status, COALESCE(notes, ''), COALESCE(created_by, ''), created_at`

const payrollInsertColumns = `id, employee_id, contract_id, country_code, currency, period_year, period_month,
	working_days, absent_days, vacation_days,
	base_salary, prorated_base, overtime_total, transport_allowance, food_allowance, other_allowances,
	gross_salary, taxable_base, taxable_income, tax_unit_value,
	pension_rate, pension_amount, health_rate, health_amount, unemployment_rate, unemployment_amount,
	tax_amount, other_deductions, total_deductions, net_salary,
	status, notes, created_by, created_at`

func payrollExists(ctx context.Context, q querier, employeeID string, year, month int) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payrolls WHERE employee_id = ? AND period_year = ? AND period_month = ?`,
		employeeID, year, month,
	).Scan(&n)
	return n > 0, err
}

func savePayroll(ctx context.Context, q querier, p payroll.PayrollRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payrolls (`+payrollInsertColumns+`)
		VALUES (`+placeholders(34)+`)
	`,
		p.ID, p.EmployeeID, p.ContractID, p.CountryCode, p.Currency, p.PeriodYear, p.PeriodMonth,
		p.WorkingDays, p.AbsentDays, p.VacationDays,
		p.BaseSalary.String(), p.ProratedBase.String(), p.OvertimeTotal.String(),
		p.TransportAllowance.String(), p.FoodAllowance.String(), p.OtherAllowances.String(),
		p.GrossSalary.String(), p.TaxableBase.String(), p.TaxableIncome.String(), p.TaxUnitValue.String(),
		p.PensionRate.String(), p.PensionAmount.String(), p.HealthRate.String(), p.HealthAmount.String(),
		p.UnemploymentRate.String(), p.UnemploymentAmount.String(),
		p.TaxAmount.String(), p.OtherDeductions.String(), p.TotalDeductions.String(), p.NetSalary.String(),
		string(p.Status), nullString(p.Notes), nullString(p.CreatedBy), formatTime(p.CreatedAt),
	)
	if err != nil {
		if isPayrollPeriodError(err) {
			return fmt.Errorf("%w: employee %s %04d-%02d", generic.ErrPayrollExists, p.EmployeeID, p.PeriodYear, p.PeriodMonth)
		}
		return fmt.Errorf("failed to save payroll: %w", err)
	}
	return nil
}

func getPayroll(ctx context.Context, q querier, id string) (payroll.PayrollRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+payrollColumns+` FROM payrolls WHERE id = ?`, id)
	p, err := scanPayroll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayrollRecord{}, fmt.Errorf("%w: %s", generic.ErrPayrollNotFound, id)
	}
	if err != nil {
		return payroll.PayrollRecord{}, err
	}
	if p.OvertimeIDs, err = overtimeIDs(ctx, q, p.ID); err != nil {
		return payroll.PayrollRecord{}, err
	}
	return p, nil
}

func listPayrolls(ctx context.Context, q querier, f payroll.PayrollFilter) ([]payroll.PayrollRecord, error) {
	var where []string
	var args []any
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Year != 0 {
		where = append(where, "period_year = ?")
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		where = append(where, "period_month = ?")
		args = append(args, f.Month)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + payrollColumns + ` FROM payrolls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period_year DESC, period_month DESC, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []payroll.PayrollRecord
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows must be closed first: :memory: runs on a single connection
	for i := range out {
		if out[i].OvertimeIDs, err = overtimeIDs(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func updatePayrollStatus(ctx context.Context, q querier, id string, from, to payroll.PayrollStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE payrolls SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cur, err := getPayroll(ctx, q, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: payroll %s is %s, not %s", generic.ErrInvalidTransition, id, cur.Status, from)
}

func overtimeIDs(ctx context.Context, q querier, payrollID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM overtime WHERE payroll_id = ? ORDER BY date, id`, payrollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPayroll(row scanner) (payroll.PayrollRecord, error) {
	var p payroll.PayrollRecord
	var status, created string
	err := row.Scan(
		&p.ID, &p.EmployeeID, &p.ContractID, &p.CountryCode, &p.Currency, &p.PeriodYear, &p.PeriodMonth,
		&p.WorkingDays, &p.AbsentDays, &p.VacationDays,
		&p.BaseSalary, &p.ProratedBase, &p.OvertimeTotal, &p.TransportAllowance, &p.FoodAllowance, &p.OtherAllowances,
		&p.GrossSalary, &p.TaxableBase, &p.TaxableIncome, &p.TaxUnitValue,
		&p.PensionRate, &p.PensionAmount, &p.HealthRate, &p.HealthAmount, &p.UnemploymentRate, &p.UnemploymentAmount,
		&p.TaxAmount, &p.OtherDeductions, &p.TotalDeductions, &p.NetSalary,
		&status, &p.Notes, &p.CreatedBy, &created,
	)
	if err != nil {
		return payroll.PayrollRecord{}, err
	}
	p.Status = payroll.PayrollStatus(status)
	p.CreatedAt = parseTime(created)
	return p, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday saves or updates a holiday.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveHoliday(ctx, s.db, h)
}

// DeleteHoliday removes a holiday.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteHoliday(ctx, s.db, id)
}

// ListHolidays returns one-off holidays in [from, to] plus every recurring
// holiday. An empty countryCode matches every country.
func (s *Store) ListHolidays(ctx context.Context, countryCode string, from, to generic.Date) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHolidays(ctx, s.db, countryCode, from, to)
}

func saveHoliday(ctx context.Context, q querier, h generic.Holiday) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO holidays (id, country_code, date, name, recurring)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			country_code = excluded.country_code,
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`, h.ID, h.CountryCode, h.Date.String(), h.Name, h.Recurring)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func deleteHoliday(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrHolidayNotFound, id)
	}
	return nil
}

func listHolidays(ctx context.Context, q querier, countryCode string, from, to generic.Date) ([]generic.Holiday, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, country_code, date, name, recurring
		FROM holidays
		WHERE (? = '' OR country_code = ?)
		  AND (recurring = 1 OR (date >= ? AND date <= ?))
		ORDER BY date, id
	`, countryCode, countryCode, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &h.CountryCode, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// VACATION BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, employeeID string, year int) (vacation.BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, employeeID, year)
}

func (s *Store) SaveBalance(ctx context.Context, b vacation.BalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBalance(ctx, s.db, b)
}

func (s *Store) SetDaysEarned(ctx context.Context, employeeID string, year int, earned decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setDaysEarned(ctx, s.db, employeeID, year, earned, at)
}

// AddDaysTaken reads and rewrites the row. Call it inside InTx when the
// increment must be atomic with other writes.
func (s *Store) AddDaysTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addDaysTaken(ctx, s.db, employeeID, year, days, at)
}

func getBalance(ctx context.Context, q querier, employeeID string, year int) (vacation.BalanceRecord, error) {
	b := vacation.BalanceRecord{EmployeeID: employeeID, Year: year}
	var updated string
	err := q.QueryRowContext(ctx, `
		SELECT days_earned, days_taken, days_carried, days_forfeited, updated_at
		FROM vacation_balances
		WHERE employee_id = ? AND year = ?
	`, employeeID, year).Scan(&b.DaysEarned, &b.DaysTaken, &b.DaysCarried, &b.DaysForfeited, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return vacation.BalanceRecord{}, err
	}
	b.UpdatedAt = parseTime(updated)
	return b, nil
}

func saveBalance(ctx context.Context, q querier, b vacation.BalanceRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vacation_balances
		(employee_id, year, days_earned, days_taken, days_carried, days_forfeited, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			days_earned = excluded.days_earned,
			days_taken = excluded.days_taken,
			days_carried = excluded.days_carried,
			days_forfeited = excluded.days_forfeited,
			updated_at = excluded.updated_at
	`,
		b.EmployeeID, b.Year,
		b.DaysEarned.String(), b.DaysTaken.String(), b.DaysCarried.String(), b.DaysForfeited.String(),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save vacation balance: %w", err)
	}
	return nil
}

func setDaysEarned(ctx context.Context, q querier, employeeID string, year int, earned decimal.Decimal, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vacation_balances (employee_id, year, days_earned, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			days_earned = excluded.days_earned,
			updated_at = excluded.updated_at
	`, employeeID, year, earned.String(), formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to update days earned: %w", err)
	}
	return nil
}

// The sum is done in decimal, not in SQL, so TEXT amounts stay exact.
func addDaysTaken(ctx context.Context, q querier, employeeID string, year int, days decimal.Decimal, at time.Time) error {
	b, err := getBalance(ctx, q, employeeID, year)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO vacation_balances (employee_id, year, days_taken, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			days_taken = excluded.days_taken,
			updated_at = excluded.updated_at
	`, employeeID, year, b.DaysTaken.Add(days).String(), formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to update days taken: %w", err)
	}
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) SaveLeaveRequest(ctx context.Context, r vacation.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLeaveRequest(ctx, s.db, r)
}

func (s *Store) GetLeaveRequest(ctx context.Context, id string) (vacation.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeaveRequest(ctx, s.db, id)
}

func (s *Store) ListLeaveRequests(ctx context.Context, f vacation.RequestFilter) ([]vacation.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLeaveRequests(ctx, s.db, f)
}

func (s *Store) ReviewLeaveRequest(ctx context.Context, id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reviewLeaveRequest(ctx, s.db, id, from, to, rv)
}

const leaveRequestColumns = `id, employee_id, request_type, start_date, end_date, working_days,
	is_half_day, COALESCE(half_day_period, ''), COALESCE(reason, ''), status,
	COALESCE(reviewed_by, ''), COALESCE(review_notes, ''), reviewed_at, created_at`

const leaveRequestInsertColumns = `id, employee_id, request_type, start_date, end_date, working_days,
	is_half_day, half_day_period, reason, status,
	reviewed_by, review_notes, reviewed_at, created_at`

func saveLeaveRequest(ctx context.Context, q querier, r vacation.LeaveRequest) error {
	var reviewedAt sql.NullString
	if r.ReviewedAt != nil {
		reviewedAt = sql.NullString{String: formatTime(*r.ReviewedAt), Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveRequestInsertColumns+`)
		VALUES (`+placeholders(14)+`)
	`,
		r.ID, r.EmployeeID, string(r.Type), r.Start.String(), r.End.String(), r.Days.String(),
		r.HalfDay, nullString(r.HalfDayPeriod), nullString(r.Reason), string(r.Status),
		nullString(r.ReviewedBy), nullString(r.ReviewNotes), reviewedAt, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

func getLeaveRequest(ctx context.Context, q querier, id string) (vacation.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leaveRequestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanLeaveRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return vacation.LeaveRequest{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, err
}

func listLeaveRequests(ctx context.Context, q querier, f vacation.RequestFilter) ([]vacation.LeaveRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+leaveRequestColumns+`
		FROM leave_requests
		WHERE (? = '' OR employee_id = ?)
		  AND (? = '' OR status = ?)
		ORDER BY created_at DESC, id
	`, f.EmployeeID, f.EmployeeID, string(f.Status), string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vacation.LeaveRequest
	for rows.Next() {
		r, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func reviewLeaveRequest(ctx context.Context, q querier, id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, reviewed_by = ?, review_notes = ?, reviewed_at = ?
		WHERE id = ? AND status = ?
	`, string(to), nullString(rv.By), nullString(rv.Notes), formatTime(rv.At), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to review leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cur, err := getLeaveRequest(ctx, q, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: request %s is %s, not %s", generic.ErrInvalidTransition, id, cur.Status, from)
}

func scanLeaveRequest(row scanner) (vacation.LeaveRequest, error) {
	var r vacation.LeaveRequest
	var reqType, start, end, status, created string
	var reviewedAt sql.NullString
	err := row.Scan(
		&r.ID, &r.EmployeeID, &reqType, &start, &end, &r.Days,
		&r.HalfDay, &r.HalfDayPeriod, &r.Reason, &status,
		&r.ReviewedBy, &r.ReviewNotes, &reviewedAt, &created,
	)
	if err != nil {
		return vacation.LeaveRequest{}, err
	}
	r.Type = vacation.RequestType(reqType)
	r.Status = vacation.RequestStatus(status)
	if r.Start, err = generic.ParseDate(start); err != nil {
		return vacation.LeaveRequest{}, err
	}
	if r.End, err = generic.ParseDate(end); err != nil {
		return vacation.LeaveRequest{}, err
	}
	if reviewedAt.Valid {
		t := parseTime(reviewedAt.String)
		r.ReviewedAt = &t
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

// =============================================================================
// RULE TABLES (rules.Store interface)
// =============================================================================

func (s *Store) ListRuleTables(ctx context.Context) ([]rules.CountryRuleTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT code, config_json FROM country_rules ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f := factory.NewRuleTableFactory()
	var out []rules.CountryRuleTable
	for rows.Next() {
		var code, config string
		if err := rows.Scan(&code, &config); err != nil {
			return nil, err
		}
		t, err := f.Parse([]byte(config))
		if err != nil {
			return nil, fmt.Errorf("rule table %s: %w", code, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveRuleTable(ctx context.Context, t rules.CountryRuleTable) error {
	config, err := factory.NewRuleTableFactory().Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO country_rules (code, name, config_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, t.Code, t.Name, string(config), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save rule table: %w", err)
	}
	return nil
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isPayrollPeriodError(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "payrolls.period_month")
}

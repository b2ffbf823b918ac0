// Package memory provides an in-memory store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rules"
	"github.com/warp/payroll-engine/vacation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements payroll.TxStore, vacation.TxStore and rules.Store.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

type balanceKey struct {
	EmployeeID string
	Year       int
}

type periodKey struct {
	EmployeeID string
	Year       int
	Month      int
}

type data struct {
	employees  map[string]generic.Employee
	contracts  map[string]payroll.Contract
	overtime   map[string]payroll.OvertimeRecord
	payrolls   map[string]payroll.PayrollRecord
	periods    map[periodKey]string // uniqueness index -> payroll id
	holidays   map[string]generic.Holiday
	balances   map[balanceKey]vacation.BalanceRecord
	requests   map[string]vacation.LeaveRequest
	ruleTables map[string]rules.CountryRuleTable
}

func New() *Memory {
	return &Memory{d: &data{
		employees:  make(map[string]generic.Employee),
		contracts:  make(map[string]payroll.Contract),
		overtime:   make(map[string]payroll.OvertimeRecord),
		payrolls:   make(map[string]payroll.PayrollRecord),
		periods:    make(map[periodKey]string),
		holidays:   make(map[string]generic.Holiday),
		balances:   make(map[balanceKey]vacation.BalanceRecord),
		requests:   make(map[string]vacation.LeaveRequest),
		ruleTables: make(map[string]rules.CountryRuleTable),
	}}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For the memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized.
func (m *Memory) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&txView{d: m.d}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// InTx is WithTx for the vacation service.
func (m *Memory) InTx(_ context.Context, fn func(vacation.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&txView{d: m.d}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (d *data) clone() *data {
	return &data{
		employees:  maps.Clone(d.employees),
		contracts:  maps.Clone(d.contracts),
		overtime:   maps.Clone(d.overtime),
		payrolls:   maps.Clone(d.payrolls),
		periods:    maps.Clone(d.periods),
		holidays:   maps.Clone(d.holidays),
		balances:   maps.Clone(d.balances),
		requests:   maps.Clone(d.requests),
		ruleTables: maps.Clone(d.ruleTables),
	}
}

// txView is the store handed to WithTx callbacks. The lock is already held.
type txView struct {
	d *data
}

func (v *txView) SaveEmployee(_ context.Context, e generic.Employee) error {
	return v.d.saveEmployee(e)
}
func (v *txView) GetEmployee(_ context.Context, id string) (generic.Employee, error) {
	return v.d.getEmployee(id)
}
func (v *txView) ListActiveEmployees(_ context.Context) ([]generic.Employee, error) {
	return v.d.listActiveEmployees(), nil
}
func (v *txView) SaveContract(_ context.Context, c payroll.Contract) error {
	return v.d.saveContract(c)
}
func (v *txView) CurrentContract(_ context.Context, employeeID string) (payroll.Contract, error) {
	return v.d.currentContract(employeeID)
}
func (v *txView) SaveOvertime(_ context.Context, r payroll.OvertimeRecord) error {
	return v.d.saveOvertime(r)
}
func (v *txView) GetOvertime(_ context.Context, id string) (payroll.OvertimeRecord, error) {
	return v.d.getOvertime(id)
}
func (v *txView) UpdateOvertimeStatus(_ context.Context, id string, from, to payroll.OvertimeStatus) error {
	return v.d.updateOvertimeStatus(id, from, to)
}
func (v *txView) ApprovedOvertime(_ context.Context, employeeID string, from, to generic.Date) ([]payroll.OvertimeRecord, error) {
	return v.d.approvedOvertime(employeeID, from, to), nil
}
func (v *txView) ConsumeOvertime(_ context.Context, payrollID string, ids []string) (int, error) {
	return v.d.consumeOvertime(payrollID, ids), nil
}
func (v *txView) PayrollExists(_ context.Context, employeeID string, year, month int) (bool, error) {
	return v.d.payrollExists(employeeID, year, month), nil
}
func (v *txView) SavePayroll(_ context.Context, p payroll.PayrollRecord) error {
	return v.d.savePayroll(p)
}
func (v *txView) GetPayroll(_ context.Context, id string) (payroll.PayrollRecord, error) {
	return v.d.getPayroll(id)
}
func (v *txView) ListPayrolls(_ context.Context, f payroll.PayrollFilter) ([]payroll.PayrollRecord, error) {
	return v.d.listPayrolls(f), nil
}
func (v *txView) UpdatePayrollStatus(_ context.Context, id string, from, to payroll.PayrollStatus) error {
	return v.d.updatePayrollStatus(id, from, to)
}
func (v *txView) SaveHoliday(_ context.Context, h generic.Holiday) error {
	v.d.holidays[h.ID] = h
	return nil
}
func (v *txView) DeleteHoliday(_ context.Context, id string) error {
	return v.d.deleteHoliday(id)
}
func (v *txView) ListHolidays(_ context.Context, countryCode string, from, to generic.Date) ([]generic.Holiday, error) {
	return v.d.listHolidays(countryCode, from, to), nil
}
func (v *txView) GetBalance(_ context.Context, employeeID string, year int) (vacation.BalanceRecord, error) {
	return v.d.getBalance(employeeID, year), nil
}
func (v *txView) SaveBalance(_ context.Context, b vacation.BalanceRecord) error {
	v.d.balances[balanceKey{b.EmployeeID, b.Year}] = b
	return nil
}
func (v *txView) SetDaysEarned(_ context.Context, employeeID string, year int, earned decimal.Decimal, at time.Time) error {
	v.d.setDaysEarned(employeeID, year, earned, at)
	return nil
}
func (v *txView) AddDaysTaken(_ context.Context, employeeID string, year int, days decimal.Decimal, at time.Time) error {
	v.d.addDaysTaken(employeeID, year, days, at)
	return nil
}
func (v *txView) SaveLeaveRequest(_ context.Context, r vacation.LeaveRequest) error {
	v.d.requests[r.ID] = r
	return nil
}
func (v *txView) GetLeaveRequest(_ context.Context, id string) (vacation.LeaveRequest, error) {
	return v.d.getLeaveRequest(id)
}
func (v *txView) ListLeaveRequests(_ context.Context, f vacation.RequestFilter) ([]vacation.LeaveRequest, error) {
	return v.d.listLeaveRequests(f), nil
}
func (v *txView) ReviewLeaveRequest(_ context.Context, id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	return v.d.reviewLeaveRequest(id, from, to, rv)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e generic.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.saveEmployee(e)
}

func (m *Memory) GetEmployee(_ context.Context, id string) (generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getEmployee(id)
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listActiveEmployees(), nil
}

func (d *data) saveEmployee(e generic.Employee) error {
	d.employees[e.ID] = e
	return nil
}

func (d *data) getEmployee(id string) (generic.Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return generic.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, nil
}

func (d *data) listActiveEmployees() []generic.Employee {
	var out []generic.Employee
	for _, e := range d.employees {
		if e.Status == generic.EmployeeActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (m *Memory) SaveContract(_ context.Context, c payroll.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.saveContract(c)
}

func (m *Memory) CurrentContract(_ context.Context, employeeID string) (payroll.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.currentContract(employeeID)
}

// A current contract clears the flag on the employee's other contracts.
func (d *data) saveContract(c payroll.Contract) error {
	if c.IsCurrent {
		for id, other := range d.contracts {
			if other.EmployeeID == c.EmployeeID && other.IsCurrent && id != c.ID {
				other.IsCurrent = false
				d.contracts[id] = other
			}
		}
	}
	d.contracts[c.ID] = c
	return nil
}

func (d *data) currentContract(employeeID string) (payroll.Contract, error) {
	for _, c := range d.contracts {
		if c.EmployeeID == employeeID && c.IsCurrent {
			return c, nil
		}
	}
	return payroll.Contract{}, fmt.Errorf("%w: %s", generic.ErrNoActiveContract, employeeID)
}

// =============================================================================
// OVERTIME
// =============================================================================

func (m *Memory) SaveOvertime(_ context.Context, r payroll.OvertimeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.saveOvertime(r)
}

func (m *Memory) GetOvertime(_ context.Context, id string) (payroll.OvertimeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getOvertime(id)
}

func (m *Memory) UpdateOvertimeStatus(_ context.Context, id string, from, to payroll.OvertimeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateOvertimeStatus(id, from, to)
}

func (m *Memory) ApprovedOvertime(_ context.Context, employeeID string, from, to generic.Date) ([]payroll.OvertimeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.approvedOvertime(employeeID, from, to), nil
}

func (m *Memory) ConsumeOvertime(_ context.Context, payrollID string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.consumeOvertime(payrollID, ids), nil
}

func (d *data) saveOvertime(r payroll.OvertimeRecord) error {
	d.overtime[r.ID] = r
	return nil
}

func (d *data) getOvertime(id string) (payroll.OvertimeRecord, error) {
	r, ok := d.overtime[id]
	if !ok {
		return payroll.OvertimeRecord{}, fmt.Errorf("%w: %s", generic.ErrOvertimeNotFound, id)
	}
	return r, nil
}

func (d *data) updateOvertimeStatus(id string, from, to payroll.OvertimeStatus) error {
	r, ok := d.overtime[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrOvertimeNotFound, id)
	}
	if r.Status != from {
		return fmt.Errorf("%w: overtime %s is %s, not %s", generic.ErrInvalidTransition, id, r.Status, from)
	}
	r.Status = to
	d.overtime[id] = r
	return nil
}

func (d *data) approvedOvertime(employeeID string, from, to generic.Date) []payroll.OvertimeRecord {
	var out []payroll.OvertimeRecord
	for _, r := range d.overtime {
		if r.EmployeeID != employeeID || r.Status != payroll.OvertimeApproved || r.PayrollID != "" {
			continue
		}
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *data) consumeOvertime(payrollID string, ids []string) int {
	n := 0
	for _, id := range ids {
		r, ok := d.overtime[id]
		if !ok || r.Status != payroll.OvertimeApproved || r.PayrollID != "" {
			continue
		}
		r.Status = payroll.OvertimePaid
		r.PayrollID = payrollID
		d.overtime[id] = r
		n++
	}
	return n
}

// =============================================================================
// PAYROLLS
// =============================================================================

func (m *Memory) PayrollExists(_ context.Context, employeeID string, year, month int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.payrollExists(employeeID, year, month), nil
}

func (m *Memory) SavePayroll(_ context.Context, p payroll.PayrollRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.savePayroll(p)
}

func (m *Memory) GetPayroll(_ context.Context, id string) (payroll.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getPayroll(id)
}

func (m *Memory) ListPayrolls(_ context.Context, f payroll.PayrollFilter) ([]payroll.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listPayrolls(f), nil
}

func (m *Memory) UpdatePayrollStatus(_ context.Context, id string, from, to payroll.PayrollStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updatePayrollStatus(id, from, to)
}

func (d *data) payrollExists(employeeID string, year, month int) bool {
	_, ok := d.periods[periodKey{employeeID, year, month}]
	return ok
}

func (d *data) savePayroll(p payroll.PayrollRecord) error {
	k := periodKey{p.EmployeeID, p.PeriodYear, p.PeriodMonth}
	if id, ok := d.periods[k]; ok && id != p.ID {
		return fmt.Errorf("%w: employee %s %04d-%02d", generic.ErrPayrollExists, p.EmployeeID, p.PeriodYear, p.PeriodMonth)
	}
	p.OvertimeIDs = append([]string(nil), p.OvertimeIDs...)
	d.payrolls[p.ID] = p
	d.periods[k] = p.ID
	return nil
}

func (d *data) getPayroll(id string) (payroll.PayrollRecord, error) {
	p, ok := d.payrolls[id]
	if !ok {
		return payroll.PayrollRecord{}, fmt.Errorf("%w: %s", generic.ErrPayrollNotFound, id)
	}
	return p, nil
}

func (d *data) listPayrolls(f payroll.PayrollFilter) []payroll.PayrollRecord {
	var out []payroll.PayrollRecord
	for _, p := range d.payrolls {
		if f.EmployeeID != "" && p.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Year != 0 && p.PeriodYear != f.Year {
			continue
		}
		if f.Month != 0 && p.PeriodMonth != f.Month {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PeriodYear != b.PeriodYear {
			return a.PeriodYear > b.PeriodYear
		}
		if a.PeriodMonth != b.PeriodMonth {
			return a.PeriodMonth > b.PeriodMonth
		}
		return a.ID < b.ID
	})
	return out
}

func (d *data) updatePayrollStatus(id string, from, to payroll.PayrollStatus) error {
	p, ok := d.payrolls[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrPayrollNotFound, id)
	}
	if p.Status != from {
		return fmt.Errorf("%w: payroll %s is %s, not %s", generic.ErrInvalidTransition, id, p.Status, from)
	}
	p.Status = to
	d.payrolls[id] = p
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.deleteHoliday(id)
}

// An empty countryCode matches every country.
func (m *Memory) ListHolidays(_ context.Context, countryCode string, from, to generic.Date) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listHolidays(countryCode, from, to), nil
}

func (d *data) deleteHoliday(id string) error {
	if _, ok := d.holidays[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrHolidayNotFound, id)
	}
	delete(d.holidays, id)
	return nil
}

func (d *data) listHolidays(countryCode string, from, to generic.Date) []generic.Holiday {
	var out []generic.Holiday
	for _, h := range d.holidays {
		if countryCode != "" && h.CountryCode != countryCode {
			continue
		}
		if !h.Recurring && (h.Date.Before(from) || h.Date.After(to)) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// VACATION BALANCES
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, employeeID string, year int) (vacation.BalanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getBalance(employeeID, year), nil
}

func (m *Memory) SaveBalance(_ context.Context, b vacation.BalanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.balances[balanceKey{b.EmployeeID, b.Year}] = b
	return nil
}

func (m *Memory) SetDaysEarned(_ context.Context, employeeID string, year int, earned decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.setDaysEarned(employeeID, year, earned, at)
	return nil
}

func (m *Memory) AddDaysTaken(_ context.Context, employeeID string, year int, days decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.addDaysTaken(employeeID, year, days, at)
	return nil
}

func (d *data) getBalance(employeeID string, year int) vacation.BalanceRecord {
	if b, ok := d.balances[balanceKey{employeeID, year}]; ok {
		return b
	}
	return vacation.BalanceRecord{EmployeeID: employeeID, Year: year}
}

func (d *data) setDaysEarned(employeeID string, year int, earned decimal.Decimal, at time.Time) {
	b := d.getBalance(employeeID, year)
	b.DaysEarned = earned
	b.UpdatedAt = at
	d.balances[balanceKey{employeeID, year}] = b
}

func (d *data) addDaysTaken(employeeID string, year int, days decimal.Decimal, at time.Time) {
	b := d.getBalance(employeeID, year)
	b.DaysTaken = b.DaysTaken.Add(days)
	b.UpdatedAt = at
	d.balances[balanceKey{employeeID, year}] = b
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) SaveLeaveRequest(_ context.Context, r vacation.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.requests[r.ID] = r
	return nil
}

func (m *Memory) GetLeaveRequest(_ context.Context, id string) (vacation.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getLeaveRequest(id)
}

func (m *Memory) ListLeaveRequests(_ context.Context, f vacation.RequestFilter) ([]vacation.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listLeaveRequests(f), nil
}

func (m *Memory) ReviewLeaveRequest(_ context.Context, id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.reviewLeaveRequest(id, from, to, rv)
}

func (d *data) getLeaveRequest(id string) (vacation.LeaveRequest, error) {
	r, ok := d.requests[id]
	if !ok {
		return vacation.LeaveRequest{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, nil
}

// Newest first.
func (d *data) listLeaveRequests(f vacation.RequestFilter) []vacation.LeaveRequest {
	var out []vacation.LeaveRequest
	for _, r := range d.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (d *data) reviewLeaveRequest(id string, from, to vacation.RequestStatus, rv vacation.Review) error {
	r, err := d.getLeaveRequest(id)
	if err != nil {
		return err
	}
	if r.Status != from {
		return fmt.Errorf("%w: request %s is %s, not %s", generic.ErrInvalidTransition, id, r.Status, from)
	}
	at := rv.At
	r.Status = to
	r.ReviewedBy = rv.By
	r.ReviewNotes = rv.Notes
	r.ReviewedAt = &at
	d.requests[id] = r
	return nil
}

// =============================================================================
// RULE TABLES
// =============================================================================

func (m *Memory) ListRuleTables(_ context.Context) ([]rules.CountryRuleTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rules.CountryRuleTable, 0, len(m.d.ruleTables))
	for _, t := range m.d.ruleTables {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveRuleTable(_ context.Context, t rules.CountryRuleTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.ruleTables[t.Code] = t.Clone()
	return nil
}

package payroll_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rules"
	"github.com/warp/payroll-engine/store/memory"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var utm = decimal.RequireFromString("67294")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, store payroll.TxStore) *payroll.Service {
	t.Helper()
	svc := payroll.NewService(store, rules.DefaultRegistry(), zap.NewNop())
	svc.Now = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }
	return svc
}

// hireEmployee creates a CL employee with a current 800,000 contract.
func hireEmployee(t *testing.T, svc *payroll.Service) generic.Employee {
	t.Helper()
	ctx := context.Background()

	emp, err := svc.CreateEmployee(ctx, generic.Employee{
		NationalID:  "12.345.678-5",
		Name:        "Camila Rojas",
		HireDate:    generic.NewDate(2020, time.January, 6),
		CountryCode: "cl",
	})
	require.NoError(t, err)

	_, err = svc.AddContract(ctx, payroll.Contract{
		EmployeeID: emp.ID,
		StartDate:  emp.HireDate,
		BaseSalary: dec("800000"),
	})
	require.NoError(t, err)
	return emp
}

func march(employeeID string) payroll.GenerateRequest {
	return payroll.GenerateRequest{EmployeeID: employeeID, Year: 2025, Month: 3, TaxUnitValue: utm}
}

func approvedOvertime(t *testing.T, svc *payroll.Service, employeeID string, date generic.Date, hours string) payroll.OvertimeRecord {
	t.Helper()
	ctx := context.Background()
	rec, err := svc.RecordOvertime(ctx, payroll.OvertimeEntry{
		EmployeeID: employeeID,
		Date:       date,
		Hours:      dec(hours),
		Category:   payroll.CategoryOrdinary,
	})
	require.NoError(t, err)
	rec, err = svc.ApproveOvertime(ctx, rec.ID)
	require.NoError(t, err)
	return rec
}

// =============================================================================
// EMPLOYEES AND CONTRACTS
// =============================================================================

func TestService_CreateEmployee_UnknownCountry(t *testing.T) {
	svc := newTestService(t, memory.New())

	_, err := svc.CreateEmployee(context.Background(), generic.Employee{
		Name:        "Juan Perez",
		HireDate:    generic.NewDate(2024, time.May, 1),
		CountryCode: "AR",
	})
	assert.ErrorIs(t, err, generic.ErrCountryNotFound)
}

func TestService_AddContract_ReplacesCurrent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store)
	emp := hireEmployee(t, svc)

	raise, err := svc.AddContract(ctx, payroll.Contract{
		EmployeeID: emp.ID,
		StartDate:  generic.NewDate(2025, time.January, 1),
		BaseSalary: dec("950000"),
	})
	require.NoError(t, err)

	current, err := store.CurrentContract(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, raise.ID, current.ID)
	assert.True(t, current.BaseSalary.Equal(dec("950000")))
}

func TestService_AddContract_Validation(t *testing.T) {
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	_, err := svc.AddContract(context.Background(), payroll.Contract{
		EmployeeID: emp.ID,
		StartDate:  emp.HireDate,
		BaseSalary: dec("-1"),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = svc.AddContract(context.Background(), payroll.Contract{
		EmployeeID:  emp.ID,
		StartDate:   emp.HireDate,
		BaseSalary:  dec("800000"),
		PensionRate: decimal.NewNullDecimal(dec("120")),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// OVERTIME
// =============================================================================

func TestService_RecordOvertime_ValuesAtContractRate(t *testing.T) {
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	// WHEN: 10 ordinary hours on an 800,000 salary
	rec, err := svc.RecordOvertime(context.Background(), payroll.OvertimeEntry{
		EmployeeID: emp.ID,
		Date:       generic.NewDate(2025, time.March, 10),
		Hours:      dec("10"),
		Category:   payroll.CategoryOrdinary,
	})
	require.NoError(t, err)

	// THEN: 3,846/h x 1.5 x 10
	assert.Equal(t, payroll.OvertimePending, rec.Status)
	assert.True(t, rec.HourlyRate.Equal(dec("3846")))
	assert.True(t, rec.Multiplier.Equal(dec("1.5")))
	assert.True(t, rec.Amount.Equal(dec("57690")))
}

func TestService_RecordOvertime_ExplicitHourlyRate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)
	_, err := svc.AddContract(ctx, payroll.Contract{
		EmployeeID: emp.ID,
		StartDate:  generic.NewDate(2025, time.January, 1),
		BaseSalary: dec("800000"),
		HourlyRate: decimal.NewNullDecimal(dec("5000")),
	})
	require.NoError(t, err)

	rec, err := svc.RecordOvertime(ctx, payroll.OvertimeEntry{
		EmployeeID: emp.ID,
		Date:       generic.NewDate(2025, time.March, 16),
		Hours:      dec("2"),
		Category:   payroll.CategoryHoliday,
	})
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(dec("20000")), "got %s", rec.Amount)
}

func TestService_RecordOvertime_HoursOutOfRange(t *testing.T) {
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	for _, hours := range []string{"0", "-2", "12.5"} {
		_, err := svc.RecordOvertime(context.Background(), payroll.OvertimeEntry{
			EmployeeID: emp.ID,
			Date:       generic.NewDate(2025, time.March, 10),
			Hours:      dec(hours),
		})
		assert.ErrorIs(t, err, generic.ErrInvalidInput, hours)
	}
}

func TestService_OvertimeTransitions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	rec, err := svc.RecordOvertime(ctx, payroll.OvertimeEntry{
		EmployeeID: emp.ID,
		Date:       generic.NewDate(2025, time.March, 10),
		Hours:      dec("1"),
	})
	require.NoError(t, err)

	rejected, err := svc.RejectOvertime(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OvertimeRejected, rejected.Status)

	// a rejected record cannot be approved afterwards
	_, err = svc.ApproveOvertime(ctx, rec.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	_, err = svc.ApproveOvertime(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrOvertimeNotFound)
}

// =============================================================================
// GENERATE
// =============================================================================

func TestService_Generate_EndToEnd(t *testing.T) {
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	rec, err := svc.Generate(context.Background(), march(emp.ID))
	require.NoError(t, err)

	assert.Equal(t, payroll.PayrollDraft, rec.Status)
	assert.Equal(t, "CL", rec.CountryCode)
	assert.Equal(t, "CLP", rec.Currency)
	assert.Equal(t, 26, rec.WorkingDays)
	assert.True(t, rec.GrossSalary.Equal(dec("800000")))
	assert.True(t, rec.TotalDeductions.Equal(dec("140800")))
	assert.True(t, rec.NetSalary.Equal(dec("659200")))
	assert.Empty(t, rec.OvertimeIDs)
}

func TestService_Generate_Absences(t *testing.T) {
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	req := march(emp.ID)
	req.AbsentDays = 2
	req.VacationDays = 3
	rec, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 24, rec.WorkingDays)
	assert.Equal(t, 2, rec.AbsentDays)
	assert.Equal(t, 3, rec.VacationDays)
	assert.True(t, rec.ProratedBase.Equal(dec("738462")), "got %s", rec.ProratedBase)
}

func TestService_Generate_AtMostOncePerPeriod(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)

	_, err := svc.Generate(ctx, march(emp.ID))
	require.NoError(t, err)

	_, err = svc.Generate(ctx, march(emp.ID))
	assert.ErrorIs(t, err, generic.ErrPayrollExists)
	assert.True(t, generic.IsConflict(err))

	// another month is fine
	april := march(emp.ID)
	april.Month = 4
	_, err = svc.Generate(ctx, april)
	assert.NoError(t, err)
}

func TestService_Generate_ConsumesApprovedOvertimeOfThePeriod(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store)
	emp := hireEmployee(t, svc)

	// GIVEN: approved March overtime, approved April overtime and a pending March entry
	inMarch := approvedOvertime(t, svc, emp.ID, generic.NewDate(2025, time.March, 10), "10")
	inApril := approvedOvertime(t, svc, emp.ID, generic.NewDate(2025, time.April, 2), "2")
	pending, err := svc.RecordOvertime(ctx, payroll.OvertimeEntry{
		EmployeeID: emp.ID,
		Date:       generic.NewDate(2025, time.March, 11),
		Hours:      dec("3"),
	})
	require.NoError(t, err)

	// WHEN
	rec, err := svc.Generate(ctx, march(emp.ID))
	require.NoError(t, err)

	// THEN: only the approved March entry is paid
	assert.True(t, rec.OvertimeTotal.Equal(dec("57690")))
	assert.Equal(t, []string{inMarch.ID}, rec.OvertimeIDs)
	assert.True(t, rec.NetSalary.Equal(dec("706737")), "got %s", rec.NetSalary)

	got, err := store.GetOvertime(ctx, inMarch.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OvertimePaid, got.Status)
	assert.Equal(t, rec.ID, got.PayrollID)

	got, err = store.GetOvertime(ctx, inApril.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OvertimeApproved, got.Status)
	assert.Empty(t, got.PayrollID)

	got, err = store.GetOvertime(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OvertimePending, got.Status)
}

func TestService_Generate_ConcurrentRunsProduceOnePayroll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store)
	emp := hireEmployee(t, svc)
	ot := approvedOvertime(t, svc, emp.ID, generic.NewDate(2025, time.March, 10), "4")

	// WHEN: ten runs race for the same period
	const runs = 10
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Generate(ctx, march(emp.ID))
		}(i)
	}
	wg.Wait()

	// THEN: one success, every other run sees the conflict
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrPayrollExists)
	}
	assert.Equal(t, 1, succeeded)

	list, err := svc.List(ctx, payroll.PayrollFilter{EmployeeID: emp.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{ot.ID}, list[0].OvertimeIDs)
}

// shortConsumeStore simulates another run consuming the overtime between
// the read and the flagging.
type shortConsumeStore struct {
	*memory.Memory
}

func (s shortConsumeStore) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx payroll.Store) error {
		return fn(shortConsumeTx{tx})
	})
}

type shortConsumeTx struct {
	payroll.Store
}

func (shortConsumeTx) ConsumeOvertime(context.Context, string, []string) (int, error) {
	return 0, nil
}

func TestService_Generate_RollsBackWhenOvertimeAlreadyConsumed(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	setup := newTestService(t, mem)
	emp := hireEmployee(t, setup)
	ot := approvedOvertime(t, setup, emp.ID, generic.NewDate(2025, time.March, 10), "4")

	svc := newTestService(t, shortConsumeStore{mem})

	// WHEN
	_, err := svc.Generate(ctx, march(emp.ID))

	// THEN: conflict, and the payroll insert was rolled back
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	exists, err := mem.PayrollExists(ctx, emp.ID, 2025, 3)
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := mem.GetOvertime(ctx, ot.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OvertimeApproved, got.Status)
}

func TestService_Generate_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store)
	emp := hireEmployee(t, svc)

	tests := []struct {
		name   string
		mutate func(*payroll.GenerateRequest)
		want   error
	}{
		{"month out of range", func(r *payroll.GenerateRequest) { r.Month = 13 }, generic.ErrInvalidInput},
		{"absences beyond the period", func(r *payroll.GenerateRequest) { r.AbsentDays = 27 }, generic.ErrInvalidInput},
		{"negative deductions", func(r *payroll.GenerateRequest) { r.OtherDeductions = dec("-1") }, generic.ErrInvalidInput},
		{"missing tax unit", func(r *payroll.GenerateRequest) { r.TaxUnitValue = decimal.Zero }, generic.ErrInvalidTaxUnit},
		{"unknown employee", func(r *payroll.GenerateRequest) { r.EmployeeID = "nobody" }, generic.ErrEmployeeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := march(emp.ID)
			tt.mutate(&req)
			_, err := svc.Generate(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Generate_NoContract(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp, err := svc.CreateEmployee(ctx, generic.Employee{
		Name:        "Sin Contrato",
		HireDate:    generic.NewDate(2025, time.January, 2),
		CountryCode: "CL",
	})
	require.NoError(t, err)

	_, err = svc.Generate(ctx, march(emp.ID))
	assert.ErrorIs(t, err, generic.ErrNoActiveContract)
}

func TestService_Generate_ResolvesRuleTableByCountry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// GIVEN: a second country with a 12% pension rate
	other := rules.Chile()
	other.Code, other.Name = "XA", "Example"
	other.PensionRate = dec("12")
	reg, err := rules.NewRegistry(rules.Chile(), other)
	require.NoError(t, err)
	svc := payroll.NewService(store, reg, zap.NewNop())

	emp, err := svc.CreateEmployee(ctx, generic.Employee{Name: "A", HireDate: generic.NewDate(2024, time.January, 1), CountryCode: "XA"})
	require.NoError(t, err)
	_, err = svc.AddContract(ctx, payroll.Contract{EmployeeID: emp.ID, StartDate: emp.HireDate, BaseSalary: dec("800000")})
	require.NoError(t, err)

	rec, err := svc.Generate(ctx, march(emp.ID))
	require.NoError(t, err)
	assert.Equal(t, "XA", rec.CountryCode)
	assert.True(t, rec.PensionAmount.Equal(dec("96000")))
}

// =============================================================================
// STATUS AND QUERIES
// =============================================================================

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)
	rec, err := svc.Generate(ctx, march(emp.ID))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, rec.ID, payroll.PayrollPaid)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	issued, err := svc.UpdateStatus(ctx, rec.ID, payroll.PayrollIssued)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayrollIssued, issued.Status)

	paid, err := svc.UpdateStatus(ctx, rec.ID, payroll.PayrollPaid)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayrollPaid, paid.Status)

	_, err = svc.UpdateStatus(ctx, "missing", payroll.PayrollIssued)
	assert.ErrorIs(t, err, generic.ErrPayrollNotFound)
}

func TestService_ListFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)
	for _, m := range []int{1, 2, 3} {
		req := march(emp.ID)
		req.Month = m
		_, err := svc.Generate(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, payroll.PayrollFilter{EmployeeID: emp.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].PeriodMonth, "newest first")

	feb, err := svc.List(ctx, payroll.PayrollFilter{Year: 2025, Month: 2})
	require.NoError(t, err)
	require.Len(t, feb, 1)

	got, err := svc.Get(ctx, feb[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PeriodMonth)
}

// =============================================================================
// PAYSLIP
// =============================================================================

func TestRenderPayslip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	emp := hireEmployee(t, svc)
	rec, err := svc.Generate(ctx, march(emp.ID))
	require.NoError(t, err)

	var buf bytes.Buffer
	err = payroll.RenderPayslip(&buf, rec, emp, rules.Chile())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestService_ErrorsAreClassified(t *testing.T) {
	svc := newTestService(t, memory.New())
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, generic.IsNotFound(err))
	assert.False(t, errors.Is(err, generic.ErrInvalidInput))
}

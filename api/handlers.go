/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine, overtime valuation and vacation accrual via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the payroll and vacation services.

ENDPOINTS:
  Rules:
    GET    /api/rules                          List country rule tables
    GET    /api/rules/{country}                Get one rule table
    PUT    /api/rules/{country}                Replace a rule table (validated)

  Engine previews (nothing stored):
    POST   /api/calculate                      Payroll engine on raw figures
    POST   /api/tax                            Income tax of a taxable amount
    POST   /api/overtime/value                 Hourly rate + overtime amount

  Employees:
    POST   /api/employees                      Create employee
    GET    /api/employees/{id}                 Get employee
    POST   /api/employees/{id}/contracts       Add the current contract

  Overtime:
    POST   /api/employees/{id}/overtime        Record overtime (pending)
    POST   /api/overtime/{id}/approve          Approve pending overtime
    POST   /api/overtime/{id}/reject           Reject pending overtime

  Payrolls:
    POST   /api/employees/{id}/payrolls        Generate a monthly payroll
    GET    /api/payrolls                       List (employee_id, year, month, status)
    GET    /api/payrolls/{id}                  Get payroll
    POST   /api/payrolls/{id}/status           draft -> issued -> paid
    GET    /api/payrolls/{id}/payslip.pdf      Payslip PDF

  Vacation:
    GET    /api/employees/{id}/vacation        Balance summary (as_of, year)
    POST   /api/employees/{id}/vacation/check  Size a request against the balance
    PUT    /api/employees/{id}/vacation/{year} Set taken/carried/forfeited days
    POST   /api/vacation/working-days          Working days in a range

  Leave requests:
    POST   /api/employees/{id}/requests        Submit a request (sized, pending)
    GET    /api/requests                       List (employee_id, status; default pending)
    GET    /api/requests/{id}                  Get request
    PATCH  /api/requests/{id}                  approved | rejected | cancelled

  Holidays:
    GET    /api/holidays                       List (country, from, to)
    POST   /api/holidays                       Create holiday
    DELETE /api/holidays/{id}                  Delete holiday

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Validation errors, invalid input, bad rule tables
  - 404: Employee, payroll, overtime, request, holiday or country not found
  - 409: Payroll already generated for the period, concurrent modification
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Callers are trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rules"
	"github.com/warp/payroll-engine/vacation"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the handlers use directly. Everything else goes
// through the services.
type Store interface {
	rules.Store
	generic.HolidayStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Payroll  *payroll.Service
	Vacation *vacation.Service
	Rules    *rules.Registry
	Store    Store
	Logger   *zap.Logger

	ruleFactory *factory.RuleTableFactory
	validate    validatorFunc
}

type validatorFunc func(any) error

// NewHandler creates a new handler.
func NewHandler(ps *payroll.Service, vs *vacation.Service, reg *rules.Registry, store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := newValidator()
	return &Handler{
		Payroll:     ps,
		Vacation:    vs,
		Rules:       reg,
		Store:       store,
		Logger:      logger.Named("api"),
		ruleFactory: factory.NewRuleTableFactory(),
		validate:    v.Struct,
	}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns every registered rule table.
// GET /api/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	tables := h.Rules.Tables()
	out := make([]factory.RuleTableJSON, 0, len(tables))
	for _, t := range tables {
		out = append(out, h.ruleFactory.ToJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

// GetRules returns one country's rule table.
// GET /api/rules/{country}
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	t, err := h.Rules.Lookup(chi.URLParam(r, "country"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ruleFactory.ToJSON(t))
}

// PutRules validates and stores a rule table; it is used by later lookups.
// PUT /api/rules/{country}
func (h *Handler) PutRules(w http.ResponseWriter, r *http.Request) {
	var body factory.RuleTableJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.Code = chi.URLParam(r, "country")

	t, err := h.ruleFactory.FromJSON(body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	saved, err := h.Rules.Save(r.Context(), h.Store, t)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.Logger.Info("rule table saved", zap.String("country", saved.Code))
	writeJSON(w, http.StatusOK, h.ruleFactory.ToJSON(saved))
}

// =============================================================================
// ENGINE PREVIEW HANDLERS
// =============================================================================

// Calculate runs the payroll engine on the given figures.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	table, err := h.Rules.Lookup(req.Country)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	in := payroll.Input{
		BaseSalary:          req.BaseSalary,
		OvertimeTotal:       req.OvertimeTotal,
		TransportAllowance:  req.TransportAllowance,
		FoodAllowance:       req.FoodAllowance,
		OtherAllowances:     req.OtherAllowances,
		AbsentDays:          req.AbsentDays,
		WorkingDaysInPeriod: req.WorkingDays,
		PensionRateOverride: req.PensionRateOverride,
		HealthRateOverride:  req.HealthRateOverride,
		HealthSurchargeRate: req.HealthSurchargeRate,
		OtherDeductions:     req.OtherDeductions,
	}
	if err := in.Validate(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := payroll.CalculatePayroll(in, table, req.TaxUnitValue)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Tax resolves the income tax for a taxable amount.
// POST /api/tax
func (h *Handler) Tax(w http.ResponseWriter, r *http.Request) {
	var req TaxRequest
	if !h.decode(w, r, &req) {
		return
	}
	table, err := h.Rules.Lookup(req.Country)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.TaxableIncome.IsNegative() {
		h.writeServiceError(w, r, generic.Invalid("taxable_income", "must not be negative"))
		return
	}

	tax, err := payroll.ResolveTax(req.TaxableIncome, req.TaxUnitValue, table.TaxBrackets, table.Rounding())
	if err != nil {
		var bte *generic.BracketTableError
		if errors.As(err, &bte) {
			bte.Country = table.Code
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TaxResponse{
		Country:       table.Code,
		TaxableIncome: req.TaxableIncome,
		TaxUnitValue:  req.TaxUnitValue,
		Tax:           tax,
	})
}

// OvertimeValue previews the valuation of an overtime entry.
// POST /api/overtime/value
func (h *Handler) OvertimeValue(w http.ResponseWriter, r *http.Request) {
	var req OvertimeValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	table, err := h.Rules.Lookup(req.Country)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := payroll.ValidateOvertimeHours(req.Hours); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	category := payroll.CategoryOrdinary
	if req.Category != "" {
		category = payroll.Category(req.Category)
	}

	contract := payroll.Contract{BaseSalary: req.MonthlySalary, HourlyRate: req.HourlyRate}
	if !contract.BaseSalary.IsPositive() && !(req.HourlyRate.Valid && req.HourlyRate.Decimal.IsPositive()) {
		h.writeServiceError(w, r, generic.Invalid("monthly_salary", "monthly_salary or hourly_rate must be positive"))
		return
	}
	rate := contract.OvertimeRate(table.Rounding())

	writeJSON(w, http.StatusOK, OvertimeValueResponse{
		HourlyRate: rate,
		Multiplier: category.Multiplier(table),
		Hours:      req.Hours,
		Amount:     payroll.OvertimeAmount(req.Hours, rate, category, table),
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// CreateEmployee creates a new employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	hire, _ := generic.ParseDate(req.HireDate)

	emp, err := h.Payroll.CreateEmployee(r.Context(), generic.Employee{
		NationalID:  req.NationalID,
		Name:        req.Name,
		Email:       req.Email,
		HireDate:    hire,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// GetEmployee returns an employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Payroll.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// AddContract makes a new contract the employee's current one.
// POST /api/employees/{id}/contracts
func (h *Handler) AddContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := generic.ParseDate(req.StartDate)
	c := payroll.Contract{
		EmployeeID:          chi.URLParam(r, "id"),
		StartDate:           start,
		BaseSalary:          req.BaseSalary,
		HourlyRate:          req.HourlyRate,
		TransportAllowance:  req.TransportAllowance,
		FoodAllowance:       req.FoodAllowance,
		OtherAllowances:     req.OtherAllowances,
		PensionRate:         req.PensionRate,
		HealthRate:          req.HealthRate,
		HealthSurchargeRate: req.HealthSurchargeRate,
	}
	if req.EndDate != "" {
		end, _ := generic.ParseDate(req.EndDate)
		c.EndDate = &end
	}

	saved, err := h.Payroll.AddContract(r.Context(), c)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// =============================================================================
// OVERTIME HANDLERS
// =============================================================================

// RecordOvertime stores a pending overtime entry.
// POST /api/employees/{id}/overtime
func (h *Handler) RecordOvertime(w http.ResponseWriter, r *http.Request) {
	var req RecordOvertimeRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := generic.ParseDate(req.Date)

	rec, err := h.Payroll.RecordOvertime(r.Context(), payroll.OvertimeEntry{
		EmployeeID:  chi.URLParam(r, "id"),
		Date:        date,
		Hours:       req.Hours,
		Category:    payroll.Category(req.Category),
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ApproveOvertime approves a pending overtime entry.
// POST /api/overtime/{id}/approve
func (h *Handler) ApproveOvertime(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Payroll.ApproveOvertime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RejectOvertime rejects a pending overtime entry.
// POST /api/overtime/{id}/reject
func (h *Handler) RejectOvertime(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Payroll.RejectOvertime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// GeneratePayroll generates the employee's payroll for one month.
// POST /api/employees/{id}/payrolls
func (h *Handler) GeneratePayroll(w http.ResponseWriter, r *http.Request) {
	var req GeneratePayrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Payroll.Generate(r.Context(), payroll.GenerateRequest{
		EmployeeID:      chi.URLParam(r, "id"),
		Year:            req.Year,
		Month:           req.Month,
		AbsentDays:      req.AbsentDays,
		VacationDays:    req.VacationDays,
		OtherDeductions: req.OtherDeductions,
		TaxUnitValue:    req.TaxUnitValue,
		Notes:           req.Notes,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListPayrolls lists payrolls, newest period first.
// GET /api/payrolls?employee_id=&year=&month=&status=
func (h *Handler) ListPayrolls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := payroll.PayrollFilter{EmployeeID: q.Get("employee_id")}

	var err error
	if f.Year, err = queryInt(q.Get("year"), "year"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if f.Month, err = queryInt(q.Get("month"), "month"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if s := q.Get("status"); s != "" {
		if f.Status, err = payroll.ParsePayrollStatus(s); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	list, err := h.Payroll.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []payroll.PayrollRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payrolls": list})
}

// GetPayroll returns one payroll.
// GET /api/payrolls/{id}
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Payroll.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdatePayrollStatus moves a payroll to its next status.
// POST /api/payrolls/{id}/status
func (h *Handler) UpdatePayrollStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdatePayrollStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Payroll.UpdateStatus(r.Context(), chi.URLParam(r, "id"), payroll.PayrollStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Payslip renders a stored payroll as a PDF.
// GET /api/payrolls/{id}/payslip.pdf
func (h *Handler) Payslip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.Payroll.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	emp, err := h.Payroll.Store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	table, err := h.Rules.Lookup(rec.CountryCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="payslip-%04d-%02d-%s.pdf"`, rec.PeriodYear, rec.PeriodMonth, rec.EmployeeID))
	if err := payroll.RenderPayslip(w, rec, emp, table); err != nil {
		// headers are already sent
		h.Logger.Error("failed to render payslip", zap.String("payroll_id", rec.ID), zap.Error(err))
	}
}

// =============================================================================
// VACATION HANDLERS
// =============================================================================

// GetVacation returns the employee's vacation summary.
// GET /api/employees/{id}/vacation?as_of=YYYY-MM-DD&year=YYYY
func (h *Handler) GetVacation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, err := queryDate(q.Get("as_of"), "as_of")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	year, err := queryInt(q.Get("year"), "year")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	sum, err := h.Vacation.Summary(r.Context(), chi.URLParam(r, "id"), asOf, year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// CheckVacation sizes a leave request and checks it against the balance.
// POST /api/employees/{id}/vacation/check
func (h *Handler) CheckVacation(w http.ResponseWriter, r *http.Request) {
	var req VacationCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := generic.ParseDate(req.StartDate)
	end, _ := generic.ParseDate(req.EndDate)
	asOf, _ := queryDate(req.AsOf, "as_of")

	res, err := h.Vacation.Check(r.Context(), vacation.CheckRequest{
		EmployeeID: chi.URLParam(r, "id"),
		AsOf:       asOf,
		Start:      start,
		End:        end,
		HalfDay:    req.HalfDay,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateVacationBalance stores taken/carried/forfeited days for a year.
// PUT /api/employees/{id}/vacation/{year}
func (h *Handler) UpdateVacationBalance(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.writeServiceError(w, r, generic.Invalid("year", "must be a number"))
		return
	}
	var req UpdateBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.Vacation.UpdateBalance(r.Context(), vacation.BalanceRecord{
		EmployeeID:    chi.URLParam(r, "id"),
		Year:          year,
		DaysTaken:     req.DaysTaken,
		DaysCarried:   req.DaysCarried,
		DaysForfeited: req.DaysForfeited,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// WorkingDays counts working days in a range, skipping weekends and the
// country's holidays.
// POST /api/vacation/working-days
func (h *Handler) WorkingDays(w http.ResponseWriter, r *http.Request) {
	var req WorkingDaysRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := generic.ParseDate(req.StartDate)
	end, _ := generic.ParseDate(req.EndDate)
	country := rules.NormalizeCode(req.Country)

	n, err := h.Vacation.WorkingDaysIn(r.Context(), country, start, end)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkingDaysResponse{
		Country:     country,
		StartDate:   start,
		EndDate:     end,
		WorkingDays: n,
	})
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// CreateLeaveRequest sizes and stores a pending leave request.
// POST /api/employees/{id}/requests
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := generic.ParseDate(req.StartDate)
	end, _ := generic.ParseDate(req.EndDate)

	lr, err := h.Vacation.CreateRequest(r.Context(), vacation.NewRequest{
		EmployeeID:    chi.URLParam(r, "id"),
		Type:          vacation.RequestType(req.RequestType),
		Start:         start,
		End:           end,
		HalfDay:       req.HalfDay,
		HalfDayPeriod: req.HalfDayPeriod,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lr)
}

// ListLeaveRequests lists requests. Without a status only pending ones are
// returned; status=all returns every request.
// GET /api/requests?employee_id=...&status=pending|approved|rejected|cancelled|all
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := vacation.RequestFilter{EmployeeID: q.Get("employee_id"), Status: vacation.RequestPending}
	switch status := q.Get("status"); status {
	case "":
	case "all":
		f.Status = ""
	case string(vacation.RequestPending), string(vacation.RequestApproved),
		string(vacation.RequestRejected), string(vacation.RequestCancelled):
		f.Status = vacation.RequestStatus(status)
	default:
		h.writeServiceError(w, r, generic.Invalid("status", "unknown status %q", status))
		return
	}

	list, err := h.Vacation.ListRequests(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []vacation.LeaveRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetLeaveRequest returns one request.
// GET /api/requests/{id}
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	lr, err := h.Vacation.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lr)
}

// ReviewLeaveRequest approves, rejects or cancels a pending request.
// PATCH /api/requests/{id}
func (h *Handler) ReviewLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewLeaveRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	var (
		lr  vacation.LeaveRequest
		err error
	)
	switch vacation.RequestStatus(req.Action) {
	case vacation.RequestApproved:
		lr, err = h.Vacation.ApproveRequest(r.Context(), id, req.ReviewedBy, req.ReviewNotes)
	case vacation.RequestRejected:
		lr, err = h.Vacation.RejectRequest(r.Context(), id, req.ReviewedBy, req.ReviewNotes)
	default:
		lr, err = h.Vacation.CancelRequest(r.Context(), id, req.ReviewedBy, req.ReviewNotes)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lr)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays, optionally for one country and range.
// GET /api/holidays?country=CL&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := queryDate(q.Get("from"), "from")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	to, err := queryDate(q.Get("to"), "to")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if from.IsZero() {
		from = generic.NewDate(1900, time.January, 1)
	}
	if to.IsZero() {
		to = generic.NewDate(9999, time.December, 31)
	}

	holidays, err := h.Store.ListHolidays(r.Context(), rules.NormalizeCode(q.Get("country")), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if holidays == nil {
		holidays = []generic.Holiday{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": holidays})
}

// CreateHoliday creates a new holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := generic.ParseDate(req.Date)

	holiday := generic.Holiday{
		ID:          uuid.NewString(),
		CountryCode: rules.NormalizeCode(req.CountryCode),
		Date:        date,
		Name:        req.Name,
		Recurring:   req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. On failure the 400 response has
// already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate(dst); err != nil {
		h.writeServiceError(w, r, validationError(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *generic.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Request canceled", nil)
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func queryInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, generic.Invalid(field, "must be a number, got %q", s)
	}
	return n, nil
}

func queryDate(s, field string) (generic.Date, error) {
	if s == "" {
		return generic.Date{}, nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, generic.Invalid(field, "must be a date (YYYY-MM-DD), got %q", s)
	}
	return d, nil
}

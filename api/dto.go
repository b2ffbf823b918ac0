/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Response bodies reuse
  the domain records, which already carry snake_case JSON tags; request
  bodies are declared here so the wire contract can differ from the
  service inputs.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

AMOUNTS:
  Every money, rate and day quantity is a decimal. Clients may send either
  a JSON number or a quoted string; responses always use quoted strings.

VALIDATION:
  Struct tags are checked with go-playground/validator before a handler
  calls the service. Field names in messages come from the json tag.
  Semantic checks (tax unit > 0, overtime hour bounds) stay in the domain
  packages so every entry point shares them.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleTableJSON type
*/
package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// EMPLOYEES AND CONTRACTS
// =============================================================================

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	NationalID  string `json:"national_id" validate:"max=32"`
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	HireDate    string `json:"hire_date" validate:"required,datetime=2006-01-02"`
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
}

// CreateContractRequest is the request to add a contract. Omitted rate
// overrides fall back to the country rule table.
type CreateContractRequest struct {
	StartDate           string              `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string              `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	BaseSalary          decimal.Decimal     `json:"base_salary"`
	HourlyRate          decimal.NullDecimal `json:"hourly_rate"`
	TransportAllowance  decimal.Decimal     `json:"transport_allowance"`
	FoodAllowance       decimal.Decimal     `json:"food_allowance"`
	OtherAllowances     decimal.Decimal     `json:"other_allowances"`
	PensionRate         decimal.NullDecimal `json:"pension_rate"`
	HealthRate          decimal.NullDecimal `json:"health_rate"`
	HealthSurchargeRate decimal.Decimal     `json:"health_surcharge_rate"`
}

// =============================================================================
// OVERTIME
// =============================================================================

// RecordOvertimeRequest records one overtime entry for an employee.
type RecordOvertimeRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Hours       decimal.Decimal `json:"hours"`
	Category    string          `json:"category" validate:"omitempty,oneof=ordinary restday holiday"`
	Description string          `json:"description" validate:"max=500"`
}

// OvertimeValueRequest previews an overtime valuation without storing it.
// HourlyRate wins over MonthlySalary when set.
type OvertimeValueRequest struct {
	Country       string              `json:"country" validate:"required,len=2,alpha"`
	MonthlySalary decimal.Decimal     `json:"monthly_salary"`
	HourlyRate    decimal.NullDecimal `json:"hourly_rate"`
	Hours         decimal.Decimal     `json:"hours"`
	Category      string              `json:"category" validate:"omitempty,oneof=ordinary restday holiday"`
}

// OvertimeValueResponse is the valuation of an overtime preview.
type OvertimeValueResponse struct {
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Hours      decimal.Decimal `json:"hours"`
	Amount     decimal.Decimal `json:"amount"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// GeneratePayrollRequest generates the payroll of one employee and month.
type GeneratePayrollRequest struct {
	Year            int             `json:"year" validate:"required,min=1900,max=9999"`
	Month           int             `json:"month" validate:"required,min=1,max=12"`
	AbsentDays      int             `json:"absent_days" validate:"min=0,max=26"`
	VacationDays    int             `json:"vacation_days" validate:"min=0"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
	TaxUnitValue    decimal.Decimal `json:"tax_unit_value"`
	Notes           string          `json:"notes" validate:"max=1000"`
	CreatedBy       string          `json:"created_by" validate:"max=200"`
}

// UpdatePayrollStatusRequest moves a payroll along draft -> issued -> paid.
type UpdatePayrollStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft issued paid"`
}

// CalculateRequest runs the payroll engine on raw figures. Nothing is stored.
type CalculateRequest struct {
	Country             string              `json:"country" validate:"required,len=2,alpha"`
	BaseSalary          decimal.Decimal     `json:"base_salary"`
	OvertimeTotal       decimal.Decimal     `json:"overtime_total"`
	TransportAllowance  decimal.Decimal     `json:"transport_allowance"`
	FoodAllowance       decimal.Decimal     `json:"food_allowance"`
	OtherAllowances     decimal.Decimal     `json:"other_allowances"`
	AbsentDays          int                 `json:"absent_days" validate:"min=0,max=31"`
	WorkingDays         int                 `json:"working_days" validate:"min=0,max=31,gtefield=AbsentDays"`
	PensionRateOverride decimal.NullDecimal `json:"pension_rate_override"`
	HealthRateOverride  decimal.NullDecimal `json:"health_rate_override"`
	HealthSurchargeRate decimal.Decimal     `json:"health_surcharge_rate"`
	OtherDeductions     decimal.Decimal     `json:"other_deductions"`
	TaxUnitValue        decimal.Decimal     `json:"tax_unit_value"`
}

// TaxRequest resolves the income tax of one taxable amount.
type TaxRequest struct {
	Country       string          `json:"country" validate:"required,len=2,alpha"`
	TaxableIncome decimal.Decimal `json:"taxable_income"`
	TaxUnitValue  decimal.Decimal `json:"tax_unit_value"`
}

// TaxResponse is the resolved tax.
type TaxResponse struct {
	Country       string          `json:"country"`
	TaxableIncome decimal.Decimal `json:"taxable_income"`
	TaxUnitValue  decimal.Decimal `json:"tax_unit_value"`
	Tax           decimal.Decimal `json:"tax"`
}

// =============================================================================
// VACATION AND HOLIDAYS
// =============================================================================

// VacationCheckRequest sizes a leave request against the balance.
type VacationCheckRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	HalfDay   bool   `json:"half_day"`
	AsOf      string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// CreateLeaveRequestRequest submits a leave request for review.
type CreateLeaveRequestRequest struct {
	RequestType   string `json:"request_type" validate:"required,oneof=vacation paid_leave unpaid_leave other"`
	StartDate     string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string `json:"end_date" validate:"required,datetime=2006-01-02"`
	HalfDay       bool   `json:"is_half_day"`
	HalfDayPeriod string `json:"half_day_period" validate:"omitempty,oneof=AM PM"`
	Reason        string `json:"reason" validate:"max=1000"`
}

// ReviewLeaveRequestRequest approves, rejects or cancels a pending request.
type ReviewLeaveRequestRequest struct {
	Action      string `json:"action" validate:"required,oneof=approved rejected cancelled"`
	ReviewedBy  string `json:"reviewed_by" validate:"max=200"`
	ReviewNotes string `json:"review_notes" validate:"max=1000"`
}

// UpdateBalanceRequest sets the stored vacation days of a year.
type UpdateBalanceRequest struct {
	DaysTaken     decimal.Decimal `json:"days_taken"`
	DaysCarried   decimal.Decimal `json:"days_carried"`
	DaysForfeited decimal.Decimal `json:"days_forfeited"`
}

// WorkingDaysRequest counts working days in a range for a country.
type WorkingDaysRequest struct {
	Country   string `json:"country" validate:"required,len=2,alpha"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// WorkingDaysResponse is the working-day count of a range.
type WorkingDaysResponse struct {
	Country     string       `json:"country"`
	StartDate   generic.Date `json:"start_date"`
	EndDate     generic.Date `json:"end_date"`
	WorkingDays int          `json:"working_days"`
}

// CreateHolidayRequest registers a public holiday.
type CreateHolidayRequest struct {
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Name        string `json:"name" validate:"required,max=200"`
	Recurring   bool   `json:"recurring"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// VALIDATION
// =============================================================================

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first failed tag into a ValidationError with a
// readable message, e.g. "Hire Date is required".
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return generic.Invalid("body", "%v", err)
	}
	e := errs[0]
	field := formatFieldName(e.Field())

	switch e.Tag() {
	case "required":
		return generic.Invalid(e.Field(), "%s is required", field)
	case "datetime":
		return generic.Invalid(e.Field(), "%s must be a date (YYYY-MM-DD)", field)
	case "oneof":
		return generic.Invalid(e.Field(), "%s must be one of %s", field, e.Param())
	case "len":
		return generic.Invalid(e.Field(), "%s must be %s characters", field, e.Param())
	case "min", "max", "gtefield":
		return generic.Invalid(e.Field(), "%s is out of range", field)
	default:
		return generic.Invalid(e.Field(), "%s is invalid", field)
	}
}

func formatFieldName(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return cases.Title(language.English).String(s)
}

package generic

import "time"

// EmployeeStatus is the employment state of a worker.
type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeInactive   EmployeeStatus = "inactive"
	EmployeeTerminated EmployeeStatus = "terminated"
)

// Employee is the part of an employee record the engines need: who, since
// when, and which country's rule table applies.
type Employee struct {
	ID          string         `json:"id"`
	NationalID  string         `json:"national_id"` // RUT in Chile
	Name        string         `json:"name"`
	Email       string         `json:"email,omitempty"`
	HireDate    Date           `json:"hire_date"`
	CountryCode string         `json:"country_code"`
	Status      EmployeeStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

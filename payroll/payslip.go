package payroll

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// =============================================================================
// PAYSLIP - A4 PDF rendering of a persisted payroll
// =============================================================================

var payslipPrinter = message.NewPrinter(language.LatinAmericanSpanish)

// RenderPayslip writes the payslip for rec as a PDF to w. Amounts are printed
// with the table's currency precision and Spanish digit grouping.
func RenderPayslip(w io.Writer, rec PayrollRecord, emp generic.Employee, table rules.CountryRuleTable) error {
	currencyDecimals := table.CurrencyDecimals
	money := func(d decimal.Decimal) string {
		f, _ := d.Round(currencyDecimals).Float64()
		return payslipPrinter.Sprintf("%.*f %s", int(currencyDecimals), f, rec.Currency)
	}
	rate := func(d decimal.Decimal) string {
		return d.StringFixed(2) + "%"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %s %04d-%02d", emp.Name, rec.PeriodYear, rec.PeriodMonth), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	header := []string{
		fmt.Sprintf("Employee: %s", emp.Name),
		fmt.Sprintf("National ID: %s", emp.NationalID),
		fmt.Sprintf("Period: %s %d", time.Month(rec.PeriodMonth), rec.PeriodYear),
		fmt.Sprintf("Worked days: %d   Absent days: %d   Vacation days: %d", rec.WorkingDays, rec.AbsentDays, rec.VacationDays),
		fmt.Sprintf("Status: %s", rec.Status),
	}
	for _, line := range header {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	section := func(title string, rows [][2]string, totalLabel, total string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, r := range rows {
			pdf.CellFormat(120, 7, r[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 7, r[1], "", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(120, 8, totalLabel, "T", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, total, "T", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	section("Earnings", [][2]string{
		{"Base salary", money(rec.BaseSalary)},
		{"Prorated base", money(rec.ProratedBase)},
		{"Overtime", money(rec.OvertimeTotal)},
		{"Transport allowance", money(rec.TransportAllowance)},
		{"Food allowance", money(rec.FoodAllowance)},
		{"Other allowances", money(rec.OtherAllowances)},
	}, "Gross salary", money(rec.GrossSalary))

	section("Deductions", [][2]string{
		{"Pension (" + rate(rec.PensionRate) + ")", money(rec.PensionAmount)},
		{"Health (" + rate(rec.HealthRate) + ")", money(rec.HealthAmount)},
		{"Unemployment insurance (" + rate(rec.UnemploymentRate) + ")", money(rec.UnemploymentAmount)},
		{"Income tax", money(rec.TaxAmount)},
		{"Other deductions", money(rec.OtherDeductions)},
	}, "Total deductions", money(rec.TotalDeductions))

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Taxable base: %s   Taxable income: %s   Tax unit: %s",
		money(rec.TaxableBase), money(rec.TaxableIncome), money(rec.TaxUnitValue)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(120, 10, "Net salary", "TB", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, money(rec.NetSalary), "TB", 1, "R", false, 0, "")

	return pdf.Output(w)
}

package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

const peruJSON = `{
  "code": "pe",
  "name": "Peru",
  "currency": "PEN",
  "currency_decimals": 2,
  "vacation": {"base_days": 30, "seniority_threshold_years": 0, "extra_days_per_year": 0},
  "contributions": {
    "pension_rate": 13,
    "health_rate": 0,
    "unemployment_employee_rate": 0,
    "unemployment_employer_rate": 0
  },
  "overtime": {"ordinary_multiplier": 1.25, "special_multiplier": 1.35, "max_weekly_hours": 8},
  "tax_brackets": [
    {"lower": 0,  "upper": 7,    "rate": 0,    "subtraction": 0},
    {"lower": 7,  "upper": 12,   "rate": 0.08, "subtraction": 0.56},
    {"lower": 12, "upper": null, "rate": 0.14, "subtraction": 1.28}
  ]
}`

func TestRuleTableFactory_Parse(t *testing.T) {
	f := NewRuleTableFactory()

	table, err := f.Parse([]byte(peruJSON))
	require.NoError(t, err)

	assert.Equal(t, "PE", table.Code)
	assert.Equal(t, int32(2), table.CurrencyDecimals)
	assert.Equal(t, "30", table.VacationBaseDays.String())
	assert.Equal(t, "1.25", table.OvertimeOrdinaryMultiplier.String())
	require.Len(t, table.TaxBrackets, 3)
	assert.True(t, table.TaxBrackets[2].OpenEnded())
	assert.Equal(t, "12", table.TaxBrackets[1].Upper.Decimal.String())
}

func TestRuleTableFactory_ChileRoundTrip(t *testing.T) {
	f := NewRuleTableFactory()
	cl := rules.Chile()

	data, err := f.Marshal(cl)
	require.NoError(t, err)
	back, err := f.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, cl.Code, back.Code)
	assert.Equal(t, cl.SeniorityThresholdYears, back.SeniorityThresholdYears)
	assert.True(t, cl.UnemploymentEmployeeRate.Equal(back.UnemploymentEmployeeRate))
	require.Len(t, back.TaxBrackets, len(cl.TaxBrackets))
	for i := range cl.TaxBrackets {
		want, got := cl.TaxBrackets[i], back.TaxBrackets[i]
		assert.True(t, want.Lower.Equal(got.Lower), "bracket %d lower", i)
		assert.Equal(t, want.OpenEnded(), got.OpenEnded(), "bracket %d open", i)
		assert.True(t, want.Rate.Equal(got.Rate), "bracket %d rate", i)
		assert.True(t, want.Subtraction.Equal(got.Subtraction), "bracket %d subtraction", i)
	}
}

func TestRuleTableFactory_RejectsInvalidTables(t *testing.T) {
	f := NewRuleTableFactory()

	tests := []struct {
		name string
		json string
		want error
	}{
		{
			name: "malformed",
			json: `{"code": "XX",`,
			want: generic.ErrInvalidRuleTable,
		},
		{
			name: "gap between brackets",
			json: `{"code":"XX","currency":"XXX","overtime":{"ordinary_multiplier":1.5,"special_multiplier":2},
			  "tax_brackets":[{"lower":0,"upper":10,"rate":0},{"lower":11,"upper":null,"rate":0.1}]}`,
			want: generic.ErrBracketTable,
		},
		{
			name: "closed top bracket",
			json: `{"code":"XX","currency":"XXX","overtime":{"ordinary_multiplier":1.5,"special_multiplier":2},
			  "tax_brackets":[{"lower":0,"upper":10,"rate":0}]}`,
			want: generic.ErrBracketTable,
		},
		{
			name: "missing currency",
			json: `{"code":"XX","overtime":{"ordinary_multiplier":1.5,"special_multiplier":2},
			  "tax_brackets":[{"lower":0,"upper":null,"rate":0}]}`,
			want: generic.ErrInvalidRuleTable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Parse([]byte(tt.json))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

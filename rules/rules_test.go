package rules_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rules"
)

func TestChile_IsValid(t *testing.T) {
	require.NoError(t, rules.Chile().Validate())
}

func TestValidateBrackets_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		brackets []rules.TaxBracket
		index    int
	}{
		{"empty", nil, 0},
		{"first not at zero", []rules.TaxBracket{rules.Bracket(1, -1, 0, 0)}, 0},
		{"gap", []rules.TaxBracket{
			rules.Bracket(0, 10, 0, 0),
			rules.Bracket(11, -1, 0.1, 1),
		}, 1},
		{"overlap", []rules.TaxBracket{
			rules.Bracket(0, 10, 0, 0),
			rules.Bracket(9, -1, 0.1, 1),
		}, 1},
		{"closed last", []rules.TaxBracket{
			rules.Bracket(0, 10, 0, 0),
			rules.Bracket(10, 20, 0.1, 1),
		}, 1},
		{"open middle", []rules.TaxBracket{
			rules.Bracket(0, -1, 0, 0),
			rules.Bracket(10, -1, 0.1, 1),
		}, 0},
		{"empty band", []rules.TaxBracket{
			rules.Bracket(0, 0, 0, 0),
			rules.Bracket(0, -1, 0.1, 1),
		}, 0},
		{"rate above one", []rules.TaxBracket{rules.Bracket(0, -1, 1.5, 0)}, 0},
		{"negative subtraction", []rules.TaxBracket{rules.Bracket(0, -1, 0.1, -1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rules.ValidateBrackets("XX", tt.brackets)
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrBracketTable)

			var bErr *generic.BracketTableError
			require.True(t, errors.As(err, &bErr))
			assert.Equal(t, tt.index, bErr.Index)
			assert.Equal(t, "XX", bErr.Country)
		})
	}
}

func TestValidate_RejectsOutOfRangeParameters(t *testing.T) {
	table := rules.Chile()
	table.OvertimeOrdinaryMultiplier = decimal.RequireFromString("0.5")
	err := table.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidRuleTable)

	table = rules.Chile()
	table.PensionRate = decimal.NewFromInt(-1)
	assert.ErrorIs(t, table.Validate(), generic.ErrInvalidRuleTable)

	table = rules.Chile()
	table.Currency = ""
	assert.ErrorIs(t, table.Validate(), generic.ErrInvalidRuleTable)
}

func TestTaxBracket_ContainsIsUpperExclusive(t *testing.T) {
	b := rules.Bracket(13.5, 30, 0.04, 0.54)
	assert.True(t, b.Contains(decimal.RequireFromString("13.5")))
	assert.True(t, b.Contains(decimal.RequireFromString("29.999")))
	assert.False(t, b.Contains(decimal.NewFromInt(30)))
	assert.False(t, b.Contains(decimal.RequireFromString("13.49")))

	open := rules.Bracket(310, -1, 0.4, 37.864)
	assert.True(t, open.Contains(decimal.NewFromInt(1_000_000)))
}

func TestRegistry_LookupByCountryCode(t *testing.T) {
	reg := rules.DefaultRegistry()

	table, err := reg.Lookup(" cl ")
	require.NoError(t, err)
	assert.Equal(t, "CLP", table.Currency)
	assert.Equal(t, []string{"CL"}, reg.Codes())

	_, err = reg.Lookup("AR")
	assert.ErrorIs(t, err, generic.ErrCountryNotFound)
}

func TestRegistry_RejectsInvalidTableAtRegistration(t *testing.T) {
	reg := rules.DefaultRegistry()

	bad := rules.Chile()
	bad.Code = "PE"
	bad.Currency = "PEN"
	bad.TaxBrackets = bad.TaxBrackets[:len(bad.TaxBrackets)-1] // drop open-ended bracket

	err := reg.Register(bad)
	assert.ErrorIs(t, err, generic.ErrBracketTable)

	_, err = reg.Lookup("PE")
	assert.ErrorIs(t, err, generic.ErrCountryNotFound, "invalid table must not be registered")
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := rules.DefaultRegistry()

	table, err := reg.Lookup("CL")
	require.NoError(t, err)
	table.TaxBrackets[0].Rate = decimal.NewFromInt(1)

	again, err := reg.Lookup("CL")
	require.NoError(t, err)
	assert.True(t, again.TaxBrackets[0].Rate.IsZero())
}

func TestRegistry_AddJurisdictionAsData(t *testing.T) {
	reg := rules.DefaultRegistry()

	ar := rules.Chile()
	ar.Code = "ar"
	ar.Name = "Argentina"
	ar.Currency = "ARS"
	ar.CurrencyDecimals = 2
	require.NoError(t, reg.Register(ar))

	got, err := reg.Lookup("AR")
	require.NoError(t, err)
	assert.Equal(t, "AR", got.Code)
	assert.Equal(t, int32(2), got.Rounding().Places)
}

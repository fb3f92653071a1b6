package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/pkg/apperr"
)

func TestParsePrice_RepairsShape(t *testing.T) {
	cases := map[string]string{
		"10":            "10.00",
		"10.5":          "10.50",
		"10.50":         "10.50",
		"10.005":        "10.01",
		"0":             "0.00",
		" 7.1 ":         "7.10",
		"1999.99":       "1999.99",
		".5":            "0.50",
		"9999999999.99": "9999999999.99",
	}
	for in, want := range cases {
		got, err := NormalizePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.True(t, IsCanonical(got))
	}
}

func TestParsePrice_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1.00", "1,50", "1e20", "1E2", "0x10", "10000000000.00", "9999999999.995"} {
		_, err := ParsePrice(in)
		require.Error(t, err, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation), in)
	}
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("0.99"))
	assert.False(t, IsCanonical("1"))
	assert.False(t, IsCanonical("1.9"))
	assert.False(t, IsCanonical("1.999"))
	assert.False(t, IsCanonical(".99"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2550), ToMinor(MustParse("25.50")))
	assert.Equal(t, "25.50", Format(FromMinor(2550)))
	assert.True(t, FromMinor(ToMinor(MustParse("0.10"))).Equal(MustParse("0.10")))
}

func TestCalcPrices_ExactSum(t *testing.T) {
	lines := []Line{
		{Price: MustParse("10.00"), Qty: 2},
		{Price: MustParse("5.50"), Qty: 1},
	}
	p := CalcPrices(lines, DefaultRules())

	assert.Equal(t, "25.50", Format(p.Items))
	assert.Equal(t, "10.00", Format(p.Shipping))
	assert.Equal(t, "3.83", Format(p.Tax))
	assert.Equal(t, "39.33", Format(p.Total))
}

func TestCalcPrices_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 style inputs that drift in binary floating point
	lines := []Line{
		{Price: MustParse("0.10"), Qty: 3},
		{Price: MustParse("0.20"), Qty: 1},
	}
	p := CalcPrices(lines, DefaultRules())
	assert.Equal(t, "0.50", Format(p.Items))
}

func TestCalcPrices_FreeShippingAboveThreshold(t *testing.T) {
	rules := DefaultRules()

	atThreshold := CalcPrices([]Line{{Price: MustParse("100.00"), Qty: 1}}, rules)
	assert.Equal(t, "10.00", Format(atThreshold.Shipping))

	above := CalcPrices([]Line{{Price: MustParse("100.01"), Qty: 1}}, rules)
	assert.True(t, above.Shipping.IsZero())
	assert.True(t, above.Total.Equal(above.Items.Add(above.Tax)))
}

func TestCalcPrices_EmptyCartIsFree(t *testing.T) {
	p := CalcPrices(nil, DefaultRules())
	assert.True(t, p.Total.IsZero())
}

func TestNewRules(t *testing.T) {
	r, err := NewRules("50", "4.5", "0.2")
	require.NoError(t, err)
	assert.True(t, r.FlatShipping.Equal(decimal.RequireFromString("4.50")))

	_, err = NewRules("50", "4.5", "x")
	assert.Error(t, err)
}

package pos_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/pos"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), append([]any{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

// =============================================================================
// CALCULATOR TESTS
// =============================================================================

func TestCalculator_TotalsReconcile(t *testing.T) {
	// GIVEN: Two lines, a discount and redeemed points
	// WHEN: Computing totals at 8%
	// THEN: total == subtotal + tax - discount - points

	calc := pos.DefaultCalculator()
	lines := []pos.PricedLine{
		{Quantity: 2, UnitPrice: dec("50.00")},
		{Quantity: 3, UnitPrice: dec("9.99")},
	}

	totals, err := calc.Compute(lines, dec("5.00"), 10)
	require.NoError(t, err)

	assertMoney(t, "129.97", totals.Subtotal)
	assertMoney(t, "10.40", totals.Tax) // 10.3976 rounds up
	assertMoney(t, "5.00", totals.Discount)
	assertMoney(t, "10.00", totals.PointsValue)
	assertMoney(t, "125.37", totals.Total)
	assert.True(t, totals.Total.Equal(
		totals.Subtotal.Add(totals.Tax).Sub(totals.Discount).Sub(totals.PointsValue)))
}

func TestCalculator_ScenarioRedeemHundredPoints(t *testing.T) {
	// GIVEN: 2 x $50, 100 points redeemed, no discount
	// THEN: subtotal 100, tax 8, total 8

	totals, err := pos.DefaultCalculator().Compute(
		[]pos.PricedLine{{Quantity: 2, UnitPrice: dec("50")}}, decimal.Zero, 100)
	require.NoError(t, err)

	assertMoney(t, "100", totals.Subtotal)
	assertMoney(t, "8", totals.Tax)
	assertMoney(t, "8", totals.Total)
}

func TestCalculator_NegativeTotalRejected(t *testing.T) {
	// GIVEN: A discount larger than subtotal + tax
	// THEN: NegativeTotalError carrying the computed total

	_, err := pos.DefaultCalculator().Compute(
		[]pos.PricedLine{{Quantity: 1, UnitPrice: dec("10")}}, dec("20"), 0)

	require.ErrorIs(t, err, pos.ErrNegativeTotal)
	var negErr *pos.NegativeTotalError
	require.ErrorAs(t, err, &negErr)
	assertMoney(t, "-9.20", negErr.Total)
	assert.Equal(t, pos.KindConflict, pos.KindOf(err))
}

func TestCalculator_ExactZeroTotalAllowed(t *testing.T) {
	totals, err := pos.DefaultCalculator().Compute(
		[]pos.PricedLine{{Quantity: 1, UnitPrice: dec("10")}}, dec("10.80"), 0)
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
}

func TestCalculator_ConfigurableRates(t *testing.T) {
	// GIVEN: 10% tax and points worth 0.05 each
	calc := pos.Calculator{TaxRate: dec("0.10"), PointValue: dec("0.05")}

	totals, err := calc.Compute([]pos.PricedLine{{Quantity: 1, UnitPrice: dec("100")}}, decimal.Zero, 200)
	require.NoError(t, err)

	assertMoney(t, "10", totals.Tax)
	assertMoney(t, "10", totals.PointsValue)
	assertMoney(t, "100", totals.Total)
}

func TestCalculator_ZeroTaxRate(t *testing.T) {
	calc := pos.Calculator{TaxRate: decimal.Zero}
	totals, err := calc.Compute([]pos.PricedLine{{Quantity: 1, UnitPrice: dec("100")}}, decimal.Zero, 0)
	require.NoError(t, err)
	assert.True(t, totals.Tax.IsZero())
	assertMoney(t, "100", totals.Total)
}

func TestCalculator_RejectsNegativeInputs(t *testing.T) {
	calc := pos.DefaultCalculator()
	lines := []pos.PricedLine{{Quantity: 1, UnitPrice: dec("1")}}

	_, err := calc.Compute(lines, dec("-1"), 0)
	assert.ErrorIs(t, err, pos.ErrValidation)

	_, err = calc.Compute(lines, decimal.Zero, -1)
	assert.ErrorIs(t, err, pos.ErrValidation)

	_, err = calc.Compute(lines, dec("0.005"), 0)
	assert.ErrorIs(t, err, pos.ErrValidation)
}

func TestLineTotal(t *testing.T) {
	assertMoney(t, "29.97", pos.LineTotal(3, dec("9.99"), decimal.Zero))
	assertMoney(t, "27.97", pos.LineTotal(3, dec("9.99"), dec("2")))
}

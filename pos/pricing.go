package pos

import "github.com/shopspring/decimal"

// =============================================================================
// CALCULATOR - Sale totals
// =============================================================================

var (
	DefaultTaxRate    = decimal.RequireFromString("0.08")
	DefaultPointValue = decimal.NewFromInt(1)
)

// DefaultCalculator uses an 8% tax rate and one currency unit per point.
func DefaultCalculator() Calculator {
	return Calculator{TaxRate: DefaultTaxRate, PointValue: DefaultPointValue}
}

// Calculator derives sale totals. It is a pure function of its inputs.
// A zero PointValue means one unit per point.
//
//	subtotal = sum(quantity * unitPrice)
//	tax      = round2(subtotal * TaxRate)
//	total    = subtotal + tax - discount - points * PointValue
type Calculator struct {
	TaxRate    decimal.Decimal
	PointValue decimal.Decimal
}

// PricedLine is the pricing input for one line.
type PricedLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the output of Compute.
type Totals struct {
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	PointsValue    decimal.Decimal
	Total          decimal.Decimal
	PointsRedeemed int64
}

// Subtotal sums quantity * unit price across lines.
func Subtotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return RoundMoney(sum)
}

// Compute returns the totals for a sale, or a *NegativeTotalError when
// discount and redeemed points exceed subtotal plus tax.
func (c Calculator) Compute(lines []PricedLine, discount decimal.Decimal, pointsRedeemed int64) (Totals, error) {
	if discount.IsNegative() {
		return Totals{}, invalid("discount", "must be >= 0")
	}
	if err := checkCents("discount", discount); err != nil {
		return Totals{}, err
	}
	if pointsRedeemed < 0 {
		return Totals{}, invalid("pointsToRedeem", "must be >= 0")
	}

	subtotal := Subtotal(lines)
	tax := RoundMoney(subtotal.Mul(c.TaxRate))
	pointsValue := RoundMoney(decimal.NewFromInt(pointsRedeemed).Mul(c.pointValue()))
	total := subtotal.Add(tax).Sub(discount).Sub(pointsValue)

	if total.IsNegative() {
		return Totals{}, &NegativeTotalError{Total: total}
	}

	return Totals{
		Subtotal:       subtotal,
		Tax:            tax,
		Discount:       discount,
		PointsValue:    pointsValue,
		Total:          total,
		PointsRedeemed: pointsRedeemed,
	}, nil
}

func (c Calculator) pointValue() decimal.Decimal {
	if c.PointValue.IsZero() {
		return DefaultPointValue
	}
	return c.PointValue
}

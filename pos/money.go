package pos

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money is stored with.
const MoneyPlaces = 2

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// checkCents rejects amounts that would change when rounded to cents.
func checkCents(field string, d decimal.Decimal) error {
	if !d.Equal(RoundMoney(d)) {
		return invalid(field, "must have at most %d decimal places", MoneyPlaces)
	}
	return nil
}

// Money is shorthand for building amounts in code and tests.
func Money(value float64) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(value))
}

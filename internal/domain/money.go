package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns pct percent of amount rounded to cents.
func Percent(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(hundred).Round(2)
}

// Cents rounds an amount to two decimal places.
func Cents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

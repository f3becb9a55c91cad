// Package pricing derives effective prices from base prices and discounts.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// EffectivePrice applies an active percentage discount to price.
// The percentage is not range checked.
func EffectivePrice(price, discountPercentage decimal.Decimal, discountActive bool) decimal.Decimal {
	if discountActive && discountPercentage.IsPositive() {
		return price.Mul(decimal.NewFromInt(1).Sub(discountPercentage.Div(hundred)))
	}
	return price
}

// LineTotal is the effective price multiplied by quantity
func LineTotal(price, discountPercentage decimal.Decimal, discountActive bool, quantity int) decimal.Decimal {
	return EffectivePrice(price, discountPercentage, discountActive).Mul(decimal.NewFromInt(int64(quantity)))
}

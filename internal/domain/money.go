package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits every stored amount carries.
const MoneyScale int32 = 2

// ValidAmount reports whether amount is strictly positive and representable at MoneyScale.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(MoneyScale))
}

// FormatMoney renders a value with exactly MoneyScale fractional digits. Stored balances always use
// this form so that equality comparisons in SQL are exact.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

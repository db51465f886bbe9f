// Package money formats integer minor-currency amounts for humans.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FromCents converts minor units into a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as a display string, e.g. 12345 usd -> "$123.45".
func Format(cents int64, currency string) string {
	amount := FromCents(cents).StringFixed(2)
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "", "usd":
		return "$" + amount
	case "eur":
		return "€" + amount
	case "gbp":
		return "£" + amount
	default:
		return amount + " " + strings.ToUpper(currency)
	}
}

// Package price holds the pricing rules of the catalog: the minimum price, discount arithmetic and display format.
package price

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Minimum is the lowest price a product may be stored with.
var Minimum = decimal.RequireFromString("1.00")

var hundred = decimal.NewFromInt(100)

// displayTag selects the separators used in caller-facing messages.
var displayTag = language.German

const currencySymbol = "€"

// BelowMinimum reports whether p is lower than Minimum.
func BelowMinimum(p decimal.Decimal) bool {
	return p.LessThan(Minimum)
}

// ValidDiscount reports whether pct lies strictly between 0 and 100.
func ValidDiscount(pct decimal.Decimal) bool {
	return pct.IsPositive() && pct.LessThan(hundred)
}

// Discount returns p reduced by pct percent, rounded half away from zero to 2 decimal places.
func Discount(p, pct decimal.Decimal) decimal.Decimal {
	return p.Sub(p.Mul(pct).Div(hundred)).Round(2)
}

// Format renders an amount with two decimals in German notation followed by the euro sign, e.g. "1,00 €".
func Format(p decimal.Decimal) string {
	printer := message.NewPrinter(displayTag)
	return printer.Sprintf("%v %s", number.Decimal(p.Round(2).InexactFloat64(), number.Scale(2)), currencySymbol)
}

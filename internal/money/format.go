package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount with Indian digit grouping, e.g.
// "₹3,00,950.00". Used in ledger descriptions and exports; never
// parsed back.
func FormatINR(amount float64) string {
	return inr.Sprintf("₹%.2f", amount)
}

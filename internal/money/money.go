// Package money provides the fixed-point arithmetic used by every
// financial derivation in the ledger. All amounts are two-decimal
// rupee values; rounding happens at every derivation step, never only
// at display time.
package money

import (
	"github.com/shopspring/decimal"
)

// Round2 rounds x to two decimal places using half-away-from-zero.
func Round2(x float64) float64 {
	out, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return out
}

// MulRound2 multiplies a by b and rounds the product to two decimals.
func MulRound2(a, b float64) float64 {
	out, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).Float64()
	return out
}

// Percent applies pct (e.g. 4 for 4%) to amount and rounds.
func Percent(amount, pct float64) float64 {
	out, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return out
}

// Sum adds raw values exactly and rounds the result once. Used where
// the contract is "round of summed parts" (the taxable billsReceived
// aggregate).
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Round(2).Float64()
	return out
}

// SumRounded rounds each value to two decimals and sums the rounded
// parts. Aggregations in this system are "sum of rounded parts", not
// "round of summed parts"; the two differ and only the former matches
// stored totals.
func SumRounded(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v).Round(2))
	}
	out, _ := total.Round(2).Float64()
	return out
}

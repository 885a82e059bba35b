package billing

import (
	"fmt"
	"math"

	"github.com/gstledger/gstledger/internal/money"
	"github.com/gstledger/gstledger/internal/shared"
)

// TotalMultiplier is the fixed factor converting a bill's taxable
// value into its tax-inclusive total. It does not follow the bill's
// own GST percent field: a 4% bill still totals at ×1.18. Changing
// this silently breaks reconciliation against historical totals.
const TotalMultiplier = 1.18

// ProfitRate is the fixed admin profit share of a transaction's
// expected amount, credited on confirmation of closure.
const ProfitRate = 0.08

// Enumerated GST rate bounds: 1.0% to 8.0% in 0.5 steps.
const (
	minGSTRate = 1.0
	maxGSTRate = 8.0
)

// ValidGSTRate reports whether pct is one of the enumerated rates.
func ValidGSTRate(pct float64) bool {
	if pct < minGSTRate || pct > maxGSTRate {
		return false
	}
	doubled := pct * 2
	return doubled == math.Trunc(doubled)
}

// BillAmounts holds the derived values for one bill.
type BillAmounts struct {
	GSTAmount   float64
	TotalAmount float64
}

// CalculateBill derives GST and total for a bill. Pure; the caller
// triggers transaction recomputation.
func CalculateBill(billAmount, gstPercent float64) (BillAmounts, error) {
	if billAmount <= 0 {
		return BillAmounts{}, fmt.Errorf("%w: bill amount must be positive", shared.ErrValidation)
	}
	if !ValidGSTRate(gstPercent) {
		return BillAmounts{}, fmt.Errorf("%w: gst percent %.1f outside enumerated rates", shared.ErrValidation, gstPercent)
	}
	return BillAmounts{
		GSTAmount:   money.Percent(billAmount, gstPercent),
		TotalAmount: money.MulRound2(billAmount, TotalMultiplier),
	}, nil
}

// TransactionGST derives gstAmount from the expected amount and rate.
func TransactionGST(expectedAmount, gstPercent float64) float64 {
	return money.Percent(expectedAmount, gstPercent)
}

// GSTBalance is GST owed minus the advance already paid against it.
// May be negative when the advance exceeds the computed GST.
func GSTBalance(gstAmount, advanceAmount float64) float64 {
	return money.Round2(gstAmount - advanceAmount)
}

// ProfitAmount is the fixed share of the expected amount (not of
// bills received or GST) credited on admin confirmation.
func ProfitAmount(expectedAmount float64) float64 {
	return money.MulRound2(expectedAmount, ProfitRate)
}

// Aggregate recomputes billsReceived and remainingExpected over the
// current bill set. The sum is of per-bill rounded totals; rounding a
// pre-summed raw total gives different paise and is wrong here.
func Aggregate(expectedAmount float64, bills []Bill) (billsReceived, remainingExpected float64) {
	totals := make([]float64, len(bills))
	taxables := make([]float64, len(bills))
	for i, b := range bills {
		totals[i] = money.MulRound2(b.BillAmount, TotalMultiplier)
		taxables[i] = b.BillAmount
	}
	sumTotal := money.SumRounded(totals...)
	billsReceived = money.Sum(taxables...)
	remainingExpected = money.Round2(math.Max(0, expectedAmount-sumTotal))
	return billsReceived, remainingExpected
}

package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidGSTRate(t *testing.T) {
	for _, pct := range []float64{1, 1.5, 2, 2.5, 3, 4.5, 5, 7.5, 8} {
		require.True(t, ValidGSTRate(pct), "rate %v", pct)
	}
	for _, pct := range []float64{0, 0.5, 1.25, 8.5, 9, -2, 4.1} {
		require.False(t, ValidGSTRate(pct), "rate %v", pct)
	}
}

func TestCalculateBill(t *testing.T) {
	amounts, err := CalculateBill(76664, 4)
	require.NoError(t, err)
	require.InDelta(t, 3066.56, amounts.GSTAmount, 1e-9)
	require.InDelta(t, 90463.52, amounts.TotalAmount, 1e-9)
}

// The total multiplier is pinned at 1.18 regardless of the bill's own
// GST percent; only the displayed GST amount follows the rate.
func TestBillTotalIndependentOfRate(t *testing.T) {
	var lastTotal float64
	for i, pct := range []float64{1, 2.5, 4, 8} {
		amounts, err := CalculateBill(76664, pct)
		require.NoError(t, err)
		if i > 0 {
			require.Equal(t, lastTotal, amounts.TotalAmount, "total drifted at rate %v", pct)
		}
		lastTotal = amounts.TotalAmount
	}
	require.InDelta(t, 90463.52, lastTotal, 1e-9)
}

func TestCalculateBillRejectsBadInput(t *testing.T) {
	_, err := CalculateBill(0, 4)
	require.Error(t, err)
	_, err = CalculateBill(-100, 4)
	require.Error(t, err)
	_, err = CalculateBill(100, 9)
	require.Error(t, err)
	_, err = CalculateBill(100, 1.25)
	require.Error(t, err)
}

func TestTransactionGSTAndBalance(t *testing.T) {
	gst := TransactionGST(300950, 4)
	require.InDelta(t, 12038.00, gst, 1e-9)
	require.InDelta(t, 7038.00, GSTBalance(gst, 5000), 1e-9)
}

func TestProfitAmount(t *testing.T) {
	require.InDelta(t, 16000.00, ProfitAmount(200000), 1e-9)
	require.InDelta(t, 24076.00, ProfitAmount(300950), 1e-9)
}

func TestAggregate(t *testing.T) {
	bills := []Bill{
		{BillAmount: 40000},
		{BillAmount: 40000},
	}
	received, remaining := Aggregate(100000, bills)
	require.InDelta(t, 80000.00, received, 1e-9)
	// 2 × round2(40000×1.18) = 94400
	require.InDelta(t, 5600.00, remaining, 1e-9)
}

func TestAggregateClampsAtZero(t *testing.T) {
	bills := []Bill{{BillAmount: 100000}}
	_, remaining := Aggregate(50000, bills)
	require.Zero(t, remaining)
}

// Remaining is expected minus the sum of per-bill rounded totals, not
// the rounding of the raw sum. With two bills of 33.335 the two orders
// differ by a paisa.
func TestAggregateRoundingOrder(t *testing.T) {
	bills := []Bill{
		{BillAmount: 33.335},
		{BillAmount: 33.335},
	}
	_, remaining := Aggregate(100, bills)
	// round2(33.335×1.18) = 39.34 per bill, sum 78.68, remaining 21.32.
	// Rounding the raw sum would give 78.67 and remaining 21.33.
	require.InDelta(t, 21.32, remaining, 1e-9)
}

func TestAggregateEmptyBillSet(t *testing.T) {
	received, remaining := Aggregate(300950, nil)
	require.Zero(t, received)
	require.InDelta(t, 300950.00, remaining, 1e-9)
}

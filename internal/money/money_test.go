package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01},
		{1.004, 1.0},
		{-1.005, -1.01},
		{3066.555, 3066.56},
		{12038.0, 12038.0},
		{99.999, 100.0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, Round2(tc.in), 1e-9, "Round2(%v)", tc.in)
	}
}

func TestPercent(t *testing.T) {
	require.InDelta(t, 3066.56, Percent(76664, 4), 1e-9)
	require.InDelta(t, 12038.00, Percent(300950, 4), 1e-9)
	require.InDelta(t, 10000.00, Percent(200000, 5), 1e-9)
}

func TestMulRound2(t *testing.T) {
	require.InDelta(t, 90463.52, MulRound2(76664, 1.18), 1e-9)
	require.InDelta(t, 47200.00, MulRound2(40000, 1.18), 1e-9)
	require.InDelta(t, 16000.00, MulRound2(200000, 0.08), 1e-9)
}

// Summing rounded per-bill totals is not the same as rounding the raw
// sum; the engine must do the former.
func TestSumRoundedOrder(t *testing.T) {
	per := MulRound2(33.335, 1.18) // 39.34 (39.3353 rounded)
	got := SumRounded(per, per)
	require.InDelta(t, 78.68, got, 1e-9)

	raw := Round2(2 * 33.335 * 1.18) // 78.67
	require.NotEqual(t, raw, got)
}

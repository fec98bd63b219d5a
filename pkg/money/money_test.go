package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "affinet/pkg/domain-errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"1.015", "1.02"},
		{"985", "985"},
		{"0.125", "0.13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, Round(dec(tt.in)).Equal(dec(tt.want)),
				"Round(%s) = %s, want %s", tt.in, Round(dec(tt.in)), tt.want)
		})
	}
}

func TestApplyRate(t *testing.T) {
	// 1000 * 1.5% fee
	assert.True(t, ApplyRate(dec("1000"), dec("0.015")).Equal(dec("15")))
	// 100 USD at 10 units/USD, 1.5% fee netted
	assert.True(t, ApplyRate(dec("1000"), dec("0.985")).Equal(dec("985")))
}

func TestAllocate_ReconcilesExactly(t *testing.T) {
	shares := []decimal.Decimal{dec("0.2"), dec("0.2"), dec("0.2"), dec("0.2"), dec("0.2")}

	// Totals chosen so naive per-share rounding would not sum back.
	totals := []string{"100", "0.01", "0.07", "33.33", "999.99", "12345.67"}
	for _, total := range totals {
		t.Run(total, func(t *testing.T) {
			parts, err := Allocate(dec(total), shares)
			require.NoError(t, err)
			require.Len(t, parts, len(shares))
			assert.True(t, Sum(parts).Equal(dec(total)),
				"parts %v must sum to %s", parts, total)
			for _, p := range parts {
				assert.False(t, p.IsNegative())
			}
		})
	}
}

func TestAllocate_LastRecipientAbsorbsRemainder(t *testing.T) {
	parts, err := Allocate(dec("0.10"), []decimal.Decimal{dec("0.333"), dec("0.333"), dec("0.334")})
	require.NoError(t, err)
	// first two round to 0.03 each, last takes 0.04
	assert.True(t, parts[0].Equal(dec("0.03")))
	assert.True(t, parts[1].Equal(dec("0.03")))
	assert.True(t, parts[2].Equal(dec("0.04")))
}

func TestAllocate_RejectsBadShares(t *testing.T) {
	t.Run("empty shares", func(t *testing.T) {
		_, err := Allocate(dec("10"), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("shares not summing to one", func(t *testing.T) {
		_, err := Allocate(dec("10"), []decimal.Decimal{dec("0.5"), dec("0.4")})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestSum(t *testing.T) {
	assert.True(t, Sum(nil).IsZero())
	assert.True(t, Sum([]decimal.Decimal{dec("1.10"), dec("2.20")}).Equal(dec("3.30")))
}

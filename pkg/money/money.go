// Package money centralizes the fixed-point arithmetic rules for ledger
// amounts. Every amount in the system is a decimal rounded to Scale
// fractional digits, and every multi-way split must reconcile exactly to its
// source amount. Float math never touches a balance.
package money

import (
	"github.com/shopspring/decimal"

	dErrors "affinet/pkg/domain-errors"
)

// Scale is the number of fractional digits carried by ledger amounts.
const Scale = 2

// Round applies the ledger rounding rule: round half up to Scale digits.
// Amounts in this system are non-negative, so decimal's half-away-from-zero
// behaves as half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ApplyRate multiplies an amount by a rate and rounds the result.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// Allocate splits total across len(shares) recipients. Each share is a
// fraction of the total; all but the last part are rounded individually and
// the last part absorbs the rounding remainder, so the parts always sum to
// total exactly. The shares must sum to 1; anything else is a programming
// error and is reported as an invariant violation.
func Allocate(total decimal.Decimal, shares []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(shares) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allocate requires at least one share")
	}
	shareSum := decimal.Zero
	for _, s := range shares {
		shareSum = shareSum.Add(s)
	}
	if !shareSum.Equal(decimal.NewFromInt(1)) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allocation shares must sum to 1")
	}

	parts := make([]decimal.Decimal, len(shares))
	allocated := decimal.Zero
	for i := 0; i < len(shares)-1; i++ {
		parts[i] = ApplyRate(total, shares[i])
		allocated = allocated.Add(parts[i])
	}
	parts[len(parts)-1] = total.Sub(allocated)
	if parts[len(parts)-1].IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "allocation remainder went negative")
	}
	return parts, nil
}

// Sum adds a slice of amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

package models

import (
	"github.com/shopspring/decimal"

	dErrors "affinet/pkg/domain-errors"
)

// RateTable maps a currency code to its ledger-native conversion factor.
// Static configuration; the ledger never fetches rates.
type RateTable map[string]decimal.Decimal

// DefaultRateTable covers the currencies onboarding accepts out of the box.
func DefaultRateTable() RateTable {
	return RateTable{
		NativeCurrency: decimal.NewFromInt(1),
		"USD":          decimal.NewFromInt(10),
		"EUR":          decimal.NewFromInt(11),
		"GBP":          decimal.RequireFromString("12.5"),
	}
}

// CommissionSchedule fixes how every payment's gross splits. The fee is a
// sink, removed from circulation; the commission pool is fully redistributed
// across ancestor levels and the root override.
type CommissionSchedule struct {
	// FeeRate applies to deposits, payments, withdrawals, and transfers.
	FeeRate decimal.Decimal
	// PoolRate is the share of a payment's gross that becomes the
	// commission pool.
	PoolRate decimal.Decimal
	// Levels is how many nearest ancestors earn a cut.
	Levels int
	// LevelShare is each ancestor level's fraction of the pool.
	LevelShare decimal.Decimal
	// RootOverride is the root's fixed fraction of the pool, paid on top of
	// any levels left unfilled by a short chain.
	RootOverride decimal.Decimal
}

// DefaultSchedule: 1.5% fee, 10% commission pool, four levels at 20% of the
// pool each, 20% root override.
func DefaultSchedule() CommissionSchedule {
	return CommissionSchedule{
		FeeRate:      decimal.RequireFromString("0.015"),
		PoolRate:     decimal.RequireFromString("0.10"),
		Levels:       4,
		LevelShare:   decimal.RequireFromString("0.20"),
		RootOverride: decimal.RequireFromString("0.20"),
	}
}

// Validate checks that the pool is fully assigned: levels plus override must
// cover exactly 1. Anything else would leak or double-pay commission.
func (s CommissionSchedule) Validate() error {
	if s.Levels < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "commission schedule needs at least one level")
	}
	if s.FeeRate.IsNegative() || s.PoolRate.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "commission rates must not be negative")
	}
	if s.FeeRate.Add(s.PoolRate).GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "fee plus pool must stay below the gross")
	}
	assigned := s.LevelShare.Mul(decimal.NewFromInt(int64(s.Levels))).Add(s.RootOverride)
	if !assigned.Equal(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "level shares plus root override must sum to 1")
	}
	return nil
}

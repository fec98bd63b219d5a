package models

import (
	"time"

	"github.com/shopspring/decimal"

	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

// Purse is a participant's ledger account. Balances are ledger-native units;
// Currency records the settlement currency chosen at onboarding.
//
// Invariants:
//   - Balance and EscrowBalance are never negative
//   - EscrowBalance is not spendable; value moves out of it only through an
//     escrow release or cancellation
//   - LifetimeEarned and LifetimeSpent only grow
type Purse struct {
	Owner          domain.UIN      `json:"owner"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	EscrowBalance  decimal.Decimal `json:"escrow_balance"`
	LifetimeEarned decimal.Decimal `json:"lifetime_earned"`
	LifetimeSpent  decimal.Decimal `json:"lifetime_spent"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivity   time.Time       `json:"last_activity"`
}

func NewPurse(owner domain.UIN, currency string, now time.Time) *Purse {
	return &Purse{
		Owner:          owner,
		Currency:       currency,
		Balance:        decimal.Zero,
		EscrowBalance:  decimal.Zero,
		LifetimeEarned: decimal.Zero,
		LifetimeSpent:  decimal.Zero,
		CreatedAt:      now,
		LastActivity:   now,
	}
}

// CanDebit checks spendable funds for a debit of amount.
func (p *Purse) CanDebit(amount decimal.Decimal) error {
	if p.Balance.LessThan(amount) {
		return dErrors.New(dErrors.CodeInsufficientBalance,
			"purse "+p.Owner.String()+" holds "+p.Balance.String()+", needs "+amount.String())
	}
	return nil
}

// ApplyDebit removes spendable funds.
func (p *Purse) ApplyDebit(amount decimal.Decimal, now time.Time) {
	p.Balance = p.Balance.Sub(amount)
	p.LifetimeSpent = p.LifetimeSpent.Add(amount)
	p.LastActivity = now
}

// ApplyCredit adds spendable funds and counts them as earned.
func (p *Purse) ApplyCredit(amount decimal.Decimal, now time.Time) {
	p.Balance = p.Balance.Add(amount)
	p.LifetimeEarned = p.LifetimeEarned.Add(amount)
	p.LastActivity = now
}

// ApplyEscrowCredit places held funds against the purse. They are not
// earned until released.
func (p *Purse) ApplyEscrowCredit(amount decimal.Decimal, now time.Time) {
	p.EscrowBalance = p.EscrowBalance.Add(amount)
	p.LastActivity = now
}

// CanReleaseEscrow checks that the hold actually exists in the escrow
// balance. A shortfall here is a bookkeeping defect, not a caller error.
func (p *Purse) CanReleaseEscrow(gross decimal.Decimal) error {
	if p.EscrowBalance.LessThan(gross) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"escrow balance of "+p.Owner.String()+" is short of the held amount")
	}
	return nil
}

// ApplyEscrowRelease moves a settled hold out of escrow and credits the net
// to the spendable balance.
func (p *Purse) ApplyEscrowRelease(gross, net decimal.Decimal, now time.Time) {
	p.EscrowBalance = p.EscrowBalance.Sub(gross)
	p.Balance = p.Balance.Add(net)
	p.LifetimeEarned = p.LifetimeEarned.Add(net)
	p.LastActivity = now
}

// ApplyEscrowCancel removes a failed hold from escrow without crediting
// anything.
func (p *Purse) ApplyEscrowCancel(gross decimal.Decimal, now time.Time) {
	p.EscrowBalance = p.EscrowBalance.Sub(gross)
	p.LastActivity = now
}

// CheckInvariants reports a violated balance invariant. Stores call this
// before committing a batch; a failure aborts the whole batch.
func (p *Purse) CheckInvariants() error {
	if p.Balance.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "negative balance on purse "+p.Owner.String())
	}
	if p.EscrowBalance.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "negative escrow balance on purse "+p.Owner.String())
	}
	return nil
}

// Clone returns an independent copy.
func (p *Purse) Clone() *Purse {
	cp := *p
	return &cp
}

package models

import (
	"github.com/shopspring/decimal"

	identitymodels "affinet/internal/identity/models"
	ledgermodels "affinet/internal/ledger/models"
	"affinet/pkg/domain"
)

// OpKind selects which ledger operation a transaction request dispatches to.
type OpKind string

const (
	OpDeposit    OpKind = "deposit"
	OpWithdrawal OpKind = "withdrawal"
	OpTransfer   OpKind = "transfer"
	OpPayment    OpKind = "payment"
	OpEscrow     OpKind = "escrow_payment"
)

// Known reports whether the kind is one the orchestrator dispatches.
func (k OpKind) Known() bool {
	switch k {
	case OpDeposit, OpWithdrawal, OpTransfer, OpPayment, OpEscrow:
		return true
	}
	return false
}

// TransactionRequest is the single entry point for value movement.
type TransactionRequest struct {
	Kind   OpKind          `json:"kind"`
	Payer  domain.UIN      `json:"payer,omitempty"`
	Payee  domain.UIN      `json:"payee,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	// Currency applies to deposits; other kinds are ledger-native.
	Currency string `json:"currency,omitempty"`
	// CorrelationID is required for escrow payments.
	CorrelationID domain.CorrelationID `json:"correlation_id,omitempty"`
	Description   string               `json:"description,omitempty"`
}

// ExecutionResult is what a dispatched operation returns: the settled (or
// escrowed) transaction plus the per-level bonus breakdown, when commission
// was distributed.
type ExecutionResult struct {
	Transaction *ledgermodels.Transaction      `json:"transaction"`
	Bonuses     []ledgermodels.CommissionBonus `json:"bonuses,omitempty"`
}

// ValidationFailure names one pre-flight check that failed.
type ValidationFailure struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the structured outcome of a pre-flight check. It is a
// report, not an error: an invalid request is a successful validation call.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Failures []ValidationFailure `json:"failures,omitempty"`
}

// Add records a failure and marks the result invalid.
func (r *ValidationResult) Add(field, code, message string) {
	r.Valid = false
	r.Failures = append(r.Failures, ValidationFailure{Field: field, Code: code, Message: message})
}

// LevelIncome aggregates commission income earned at one chain level.
type LevelIncome struct {
	Level int             `json:"level"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Stats is the aggregated view of one participant: tree position, purse
// balances, and commission income broken down by level.
type Stats struct {
	UIN              domain.UIN          `json:"uin"`
	DisplayName      string              `json:"display_name"`
	Role             identitymodels.Role `json:"role"`
	Active           bool                `json:"active"`
	Depth            int                 `json:"depth"`
	DirectDownlines  int                 `json:"direct_downlines"`
	TotalDownlines   int                 `json:"total_downlines"`
	LifetimeEarnings decimal.Decimal     `json:"lifetime_earnings"`
	Balance          decimal.Decimal     `json:"balance"`
	EscrowBalance    decimal.Decimal     `json:"escrow_balance"`
	IncomeByLevel    []LevelIncome       `json:"income_by_level"`
}

// OnboardResult pairs the co-created identity and purse.
type OnboardResult struct {
	Identity *identitymodels.Identity `json:"identity"`
	Purse    *ledgermodels.Purse      `json:"purse"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

// NativeCurrency is the code for ledger-native units. All transaction
// amounts are recorded in it; foreign currency is converted on the way in.
const NativeCurrency = "CRD"

type TxKind string

const (
	TxDeposit       TxKind = "deposit"
	TxWithdrawal    TxKind = "withdrawal"
	TxTransfer      TxKind = "transfer"
	TxPayment       TxKind = "payment"
	TxBonus         TxKind = "bonus"
	TxEscrowRelease TxKind = "escrow_release"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
	TxEscrowed  TxStatus = "escrowed"
)

// Transaction is one entry in the append-only log. Completed transactions
// are immutable; the only legal status transitions are
// escrowed -> completed and escrowed -> failed.
type Transaction struct {
	ID            domain.TransactionID `json:"id"`
	Payer         domain.UIN           `json:"payer"`
	Payee         domain.UIN           `json:"payee"`
	Gross         decimal.Decimal      `json:"gross"`
	Fee           decimal.Decimal      `json:"fee"`
	Commission    decimal.Decimal      `json:"commission"`
	Net           decimal.Decimal      `json:"net"`
	Currency      string               `json:"currency"`
	Kind          TxKind               `json:"kind"`
	Status        TxStatus             `json:"status"`
	Timestamp     time.Time            `json:"timestamp"`
	Description   string               `json:"description,omitempty"`
	CorrelationID domain.CorrelationID `json:"correlation_id,omitempty"`
}

// CanComplete checks the escrowed -> completed transition.
func (t *Transaction) CanComplete() error {
	if t.Status != TxEscrowed {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"transaction "+t.ID.String()+" is "+string(t.Status)+", not escrowed")
	}
	return nil
}

// ApplyCompletion settles an escrowed transaction.
func (t *Transaction) ApplyCompletion() {
	t.Status = TxCompleted
}

// CanFail checks the escrowed -> failed transition.
func (t *Transaction) CanFail() error {
	if t.Status != TxEscrowed {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"transaction "+t.ID.String()+" is "+string(t.Status)+", not escrowed")
	}
	return nil
}

// ApplyFailure marks an escrowed transaction failed (hold cancelled).
func (t *Transaction) ApplyFailure() {
	t.Status = TxFailed
}

// Reconciles verifies gross = fee + commission + net under the fixed-point
// rule. A false result is a programming error in the caller.
func (t *Transaction) Reconciles() bool {
	return t.Gross.Equal(t.Fee.Add(t.Commission).Add(t.Net))
}

// Clone returns an independent copy.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

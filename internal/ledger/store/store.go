package store

import (
	"context"

	"affinet/internal/ledger/models"
	"affinet/pkg/domain"
)

// PurseStore abstracts purse persistence. Implementations must make
// ExecuteBatch all-or-nothing: either every purse in the batch commits with
// its mutations applied, or none do.
type PurseStore interface {
	// Create persists a new purse; sentinel.ErrConflict when the owner
	// already has one.
	Create(ctx context.Context, purse *models.Purse) error

	// FindByOwner returns a copy, or sentinel.ErrNotFound.
	FindByOwner(ctx context.Context, owner domain.UIN) (*models.Purse, error)

	// ExecuteBatch runs fn against private copies of the named purses while
	// holding the store's write boundary. The copies commit only when fn
	// returns nil and every purse still satisfies its balance invariants;
	// a violated invariant aborts the whole batch. Owners must be distinct.
	ExecuteBatch(ctx context.Context, owners []domain.UIN, fn func(purses map[domain.UIN]*models.Purse) error) error
}

// TransactionStore is the append-only transaction log.
type TransactionStore interface {
	// Append persists a new log entry.
	Append(ctx context.Context, tx *models.Transaction) error

	// FindByID returns a copy, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id domain.TransactionID) (*models.Transaction, error)

	// FindEscrowByCorrelation returns the transaction holding the escrow for
	// this correlation id, i.e. the one still in escrowed status.
	// sentinel.ErrNotFound covers both "never created" and "already
	// settled".
	FindEscrowByCorrelation(ctx context.Context, correlationID domain.CorrelationID) (*models.Transaction, error)

	// SettleEscrow atomically transitions the escrowed transaction for the
	// correlation id to the given terminal status and returns a copy of it.
	// This is the check-and-set that makes release at-most-once: exactly one
	// caller wins; the rest get sentinel.ErrNotFound.
	SettleEscrow(ctx context.Context, correlationID domain.CorrelationID, status models.TxStatus) (*models.Transaction, error)

	// ListByParticipant returns transactions where the UIN is payer or
	// payee, newest first.
	ListByParticipant(ctx context.Context, uin domain.UIN) ([]*models.Transaction, error)
}

// BonusStore records commission bonuses for per-level income reporting.
type BonusStore interface {
	// AppendAll persists one distribution's bonuses as a unit.
	AppendAll(ctx context.Context, bonuses []models.CommissionBonus) error

	// ListByRecipient returns all bonuses earned by the UIN.
	ListByRecipient(ctx context.Context, recipient domain.UIN) ([]models.CommissionBonus, error)
}

package store

import (
	"context"
	"sync"

	"affinet/internal/ledger/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/platform/sentinel"
)

// InMemoryPurses keeps purses in a process map behind one RWMutex. Holding
// the write lock for the whole of ExecuteBatch is what makes a commission
// distribution atomic relative to its triggering payment.
type InMemoryPurses struct {
	mu     sync.RWMutex
	purses map[domain.UIN]*models.Purse
}

func NewInMemoryPurses() *InMemoryPurses {
	return &InMemoryPurses{purses: make(map[domain.UIN]*models.Purse)}
}

func (s *InMemoryPurses) Create(_ context.Context, purse *models.Purse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purses[purse.Owner]; exists {
		return sentinel.ErrConflict
	}
	s.purses[purse.Owner] = purse.Clone()
	return nil
}

func (s *InMemoryPurses) FindByOwner(_ context.Context, owner domain.UIN) (*models.Purse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purse, ok := s.purses[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return purse.Clone(), nil
}

func (s *InMemoryPurses) ExecuteBatch(_ context.Context, owners []domain.UIN, fn func(purses map[domain.UIN]*models.Purse) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[domain.UIN]*models.Purse, len(owners))
	for _, owner := range owners {
		if _, dup := working[owner]; dup {
			return dErrors.New(dErrors.CodeInvariantViolation, "duplicate owner in purse batch: "+owner.String())
		}
		purse, ok := s.purses[owner]
		if !ok {
			return sentinel.ErrNotFound
		}
		working[owner] = purse.Clone()
	}

	if err := fn(working); err != nil {
		return err
	}

	// Refuse to commit a batch that violates balance invariants; this is a
	// defect in the caller, not a recoverable condition.
	for _, purse := range working {
		if err := purse.CheckInvariants(); err != nil {
			return err
		}
	}

	for owner, purse := range working {
		s.purses[owner] = purse
	}
	return nil
}

// InMemoryTransactions is the in-process append-only log with an index over
// open escrow holds.
type InMemoryTransactions struct {
	mu     sync.RWMutex
	byID   map[domain.TransactionID]*models.Transaction
	order  []domain.TransactionID
	escrow map[domain.CorrelationID]domain.TransactionID
}

func NewInMemoryTransactions() *InMemoryTransactions {
	return &InMemoryTransactions{
		byID:   make(map[domain.TransactionID]*models.Transaction),
		escrow: make(map[domain.CorrelationID]domain.TransactionID),
	}
}

func (s *InMemoryTransactions) Append(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[tx.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[tx.ID] = tx.Clone()
	s.order = append(s.order, tx.ID)
	if tx.Status == models.TxEscrowed && !tx.CorrelationID.IsZero() {
		if _, open := s.escrow[tx.CorrelationID]; open {
			return sentinel.ErrConflict
		}
		s.escrow[tx.CorrelationID] = tx.ID
	}
	return nil
}

func (s *InMemoryTransactions) FindByID(_ context.Context, id domain.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return tx.Clone(), nil
}

func (s *InMemoryTransactions) FindEscrowByCorrelation(_ context.Context, correlationID domain.CorrelationID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.escrow[correlationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemoryTransactions) SettleEscrow(_ context.Context, correlationID domain.CorrelationID, status models.TxStatus) (*models.Transaction, error) {
	if status != models.TxCompleted && status != models.TxFailed {
		return nil, sentinel.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.escrow[correlationID]
	if !ok {
		// Never created, or a previous settle already consumed it.
		return nil, sentinel.ErrNotFound
	}
	tx := s.byID[id]
	if status == models.TxCompleted {
		if err := tx.CanComplete(); err != nil {
			return nil, err
		}
		tx.ApplyCompletion()
	} else {
		if err := tx.CanFail(); err != nil {
			return nil, err
		}
		tx.ApplyFailure()
	}
	delete(s.escrow, correlationID)
	return tx.Clone(), nil
}

func (s *InMemoryTransactions) ListByParticipant(_ context.Context, uin domain.UIN) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Transaction
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.byID[s.order[i]]
		if tx.Payer == uin || tx.Payee == uin {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

// InMemoryBonuses records commission bonuses per recipient.
type InMemoryBonuses struct {
	mu          sync.RWMutex
	byRecipient map[domain.UIN][]models.CommissionBonus
}

func NewInMemoryBonuses() *InMemoryBonuses {
	return &InMemoryBonuses{byRecipient: make(map[domain.UIN][]models.CommissionBonus)}
}

func (s *InMemoryBonuses) AppendAll(_ context.Context, bonuses []models.CommissionBonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bonuses {
		s.byRecipient[b.Recipient] = append(s.byRecipient[b.Recipient], b)
	}
	return nil
}

func (s *InMemoryBonuses) ListByRecipient(_ context.Context, recipient domain.UIN) ([]models.CommissionBonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bonuses := s.byRecipient[recipient]
	out := make([]models.CommissionBonus, len(bonuses))
	copy(out, bonuses)
	return out, nil
}

//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"affinet/internal/ledger/models"
	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/testutil/containers"
)

type PostgresTransactionsSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresTransactions
	ctx   context.Context
}

func TestPostgresTransactionsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(PostgresTransactionsSuite))
}

func (s *PostgresTransactionsSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.pg.Apply(s.ctx, Schema))
	s.store = NewPostgresTransactions(s.pg.DB)
}

func (s *PostgresTransactionsSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE ledger_transactions, commission_bonuses`)
	s.Require().NoError(err)
}

func (s *PostgresTransactionsSuite) escrow(correlation domain.CorrelationID) *models.Transaction {
	return &models.Transaction{
		ID:            domain.NewTransactionID(),
		Payer:         "1A2",
		Payee:         "1A3",
		Gross:         dec("500"),
		Fee:           dec("7.50"),
		Commission:    dec("0"),
		Net:           dec("500"),
		Currency:      models.NativeCurrency,
		Kind:          models.TxPayment,
		Status:        models.TxEscrowed,
		Timestamp:     time.Now().UTC().Truncate(time.Microsecond),
		CorrelationID: correlation,
	}
}

func (s *PostgresTransactionsSuite) TestAppendAndFind() {
	tx := s.escrow("order-1")
	s.Require().NoError(s.store.Append(s.ctx, tx))

	found, err := s.store.FindByID(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(tx.CorrelationID, found.CorrelationID)
	s.True(tx.Gross.Equal(found.Gross))

	s.Run("duplicate id conflicts", func() {
		s.Require().ErrorIs(s.store.Append(s.ctx, tx), sentinel.ErrConflict)
	})

	s.Run("second open escrow on one correlation conflicts", func() {
		other := s.escrow("order-1")
		s.Require().ErrorIs(s.store.Append(s.ctx, other), sentinel.ErrConflict)
	})
}

func (s *PostgresTransactionsSuite) TestSettleEscrow_ConcurrentReleases() {
	tx := s.escrow("order-2")
	s.Require().NoError(s.store.Append(s.ctx, tx))

	const attempts = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.SettleEscrow(s.ctx, "order-2", models.TxCompleted); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins, "exactly one release may win")

	found, err := s.store.FindByID(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TxCompleted, found.Status)

	_, err = s.store.FindEscrowByCorrelation(s.ctx, "order-2")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresTransactionsSuite) TestSettleEscrow_RejectsNonTerminalStatus() {
	tx := s.escrow("order-3")
	s.Require().NoError(s.store.Append(s.ctx, tx))

	_, err := s.store.SettleEscrow(s.ctx, "order-3", models.TxEscrowed)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresTransactionsSuite) TestListByParticipant() {
	first := s.escrow("order-4")
	first.Timestamp = time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	second := s.escrow("order-5")
	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	list, err := s.store.ListByParticipant(s.ctx, "1A3")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID, "newest first")
}

func (s *PostgresTransactionsSuite) TestBonuses_RoundTrip() {
	bonuses := NewPostgresBonuses(s.pg.DB)
	txID := domain.NewTransactionID()
	paidAt := time.Now().UTC().Truncate(time.Microsecond)

	err := bonuses.AppendAll(s.ctx, []models.CommissionBonus{
		{Recipient: "1A2", TransactionID: txID, Amount: dec("2.00"), Level: 1, Rate: dec("0.02"), PaidAt: paidAt},
		{Recipient: "1A1", TransactionID: txID, Amount: dec("8.00"), Level: models.RootOverrideLevel, Rate: dec("0.02"), PaidAt: paidAt},
	})
	s.Require().NoError(err)

	got, err := bonuses.ListByRecipient(s.ctx, "1A2")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(txID, got[0].TransactionID)
	s.True(got[0].Amount.Equal(dec("2.00")))
}

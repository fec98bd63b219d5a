package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"affinet/internal/ledger/models"
	"affinet/internal/ledger/store"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/money"
)

const rootUIN = domain.UIN("1A1")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type LedgerSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	svc, err := NewService(
		store.NewInMemoryPurses(),
		store.NewInMemoryTransactions(),
		store.NewInMemoryBonuses(),
		WithRootSink(rootUIN),
	)
	s.Require().NoError(err)
	s.svc = svc
	s.Require().NoError(s.svc.EnsureSinks(s.ctx))
	s.openPurse(rootUIN)
}

func (s *LedgerSuite) openPurse(owner domain.UIN) {
	_, err := s.svc.CreatePurse(s.ctx, owner, models.NativeCurrency)
	s.Require().NoError(err)
}

// fund opens a purse and deposits enough that at least amount is spendable
// after the fee skim. Tests that care about exact balances assert relative
// to a before snapshot.
func (s *LedgerSuite) fund(owner domain.UIN, amount string) {
	s.openPurse(owner)
	gross := dec(amount).Div(dec("0.985")).RoundUp(2)
	_, err := s.svc.Deposit(s.ctx, owner, gross, models.NativeCurrency, "test funding")
	s.Require().NoError(err)
}

func (s *LedgerSuite) balance(owner domain.UIN) decimal.Decimal {
	purse, err := s.svc.PurseOf(s.ctx, owner)
	s.Require().NoError(err)
	return purse.Balance
}

func (s *LedgerSuite) TestCreatePurse() {
	s.Run("is idempotent for the same currency", func() {
		first, err := s.svc.CreatePurse(s.ctx, "1A2", "USD")
		s.Require().NoError(err)
		second, err := s.svc.CreatePurse(s.ctx, "1A2", "USD")
		s.Require().NoError(err)
		s.Equal(first.Owner, second.Owner)
		s.Equal(first.CreatedAt, second.CreatedAt)
	})

	s.Run("conflicts on a different currency", func() {
		_, err := s.svc.CreatePurse(s.ctx, "1A2", "EUR")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects an unknown currency", func() {
		_, err := s.svc.CreatePurse(s.ctx, "1A3", "XAU")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCurrency))
	})
}

func (s *LedgerSuite) TestConvert() {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"100", "USD", "1000"},
		{"100", "EUR", "1100"},
		{"100", "GBP", "1250"},
		{"100", models.NativeCurrency, "100"},
		{"0.10", "GBP", "1.25"},
		{"0.01", "EUR", "0.11"},
	}
	for _, tc := range cases {
		got, err := s.svc.Convert(dec(tc.amount), tc.currency)
		s.Require().NoError(err)
		s.True(got.Equal(dec(tc.want)), "%s %s -> %s, want %s", tc.amount, tc.currency, got, tc.want)
	}

	_, err := s.svc.Convert(dec("1"), "JPY")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCurrency))
	s.False(s.svc.SupportsCurrency("JPY"))
}

func (s *LedgerSuite) TestDeposit() {
	s.openPurse("1A2")

	s.Run("converts, skims the fee, credits the rest", func() {
		tx, err := s.svc.Deposit(s.ctx, "1A2", dec("100"), "USD", "first deposit")
		s.Require().NoError(err)

		s.True(tx.Gross.Equal(dec("1000")))
		s.True(tx.Fee.Equal(dec("15")))
		s.True(tx.Net.Equal(dec("985")))
		s.Equal(models.TxCompleted, tx.Status)
		s.True(tx.Reconciles())

		s.True(s.balance("1A2").Equal(dec("985")))
		s.True(s.balance(domain.SystemUIN).Equal(dec("15")))

		purse, err := s.svc.PurseOf(s.ctx, "1A2")
		s.Require().NoError(err)
		s.True(purse.LifetimeEarned.Equal(dec("985")))
	})

	s.Run("rejects non-positive amounts", func() {
		_, err := s.svc.Deposit(s.ctx, "1A2", dec("0"), "USD", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		_, err = s.svc.Deposit(s.ctx, "1A2", dec("-5"), "USD", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("rejects an unsupported currency", func() {
		_, err := s.svc.Deposit(s.ctx, "1A2", dec("100"), "JPY", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCurrency))
	})
}

func (s *LedgerSuite) TestWithdraw() {
	s.fund("1A2", "1000")

	tx, err := s.svc.Withdraw(s.ctx, "1A2", dec("200"), "cash out")
	s.Require().NoError(err)
	s.Equal(models.TxWithdrawal, tx.Kind)
	s.True(tx.Fee.Equal(dec("3")))
	s.True(tx.Net.Equal(dec("197")))
	s.True(tx.Reconciles())

	s.Run("insufficient funds", func() {
		_, err := s.svc.Withdraw(s.ctx, "1A2", dec("100000"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})
}

func (s *LedgerSuite) TestTransfer() {
	s.fund("1A2", "500")
	s.openPurse("1A3")

	before := s.balance("1A2")
	tx, err := s.svc.Transfer(s.ctx, "1A2", "1A3", dec("100"), "gift")
	s.Require().NoError(err)

	s.True(tx.Fee.Equal(dec("1.5")))
	s.True(tx.Net.Equal(dec("98.5")))
	s.True(tx.Commission.IsZero(), "transfers pay no commission")
	s.True(s.balance("1A2").Equal(before.Sub(dec("100"))))
	s.True(s.balance("1A3").Equal(dec("98.5")))

	s.Run("self transfer is invalid", func() {
		_, err := s.svc.Transfer(s.ctx, "1A2", "1A2", dec("10"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})
}

func (s *LedgerSuite) TestPay_DistributesAcrossShortChain() {
	// Payee 1A3 was referred by 1A2, who hangs directly off the root:
	// chain is [1A2, 1A1], two of four levels filled.
	s.fund("1A2", "2000")
	s.openPurse("1A3")

	payerBefore := s.balance("1A2")
	rootBefore := s.balance(rootUIN)

	tx, bonuses, err := s.svc.Pay(s.ctx, "1A2", "1A3", dec("1000"),
		[]domain.UIN{"1A2", rootUIN}, "invoice 7")
	s.Require().NoError(err)

	s.True(tx.Fee.Equal(dec("15")))
	s.True(tx.Commission.Equal(dec("100")))
	s.True(tx.Net.Equal(dec("885")))
	s.True(tx.Reconciles())

	// 20% of the pool per filled level; the root sink takes the override
	// plus the two unfilled levels: 100 - 20 - 20 = 60.
	s.Require().Len(bonuses, 3)
	byLevel := make(map[int]models.CommissionBonus, len(bonuses))
	for _, b := range bonuses {
		byLevel[b.Level] = b
	}
	s.True(byLevel[1].Amount.Equal(dec("20")))
	s.Equal(domain.UIN("1A2"), byLevel[1].Recipient)
	s.True(byLevel[2].Amount.Equal(dec("20")))
	s.Equal(rootUIN, byLevel[2].Recipient)
	s.True(byLevel[models.RootOverrideLevel].Amount.Equal(dec("60")))
	s.Equal(rootUIN, byLevel[models.RootOverrideLevel].Recipient)

	// Root is in the chain, so it earns its level share plus the override.
	s.True(s.balance(rootUIN).Equal(rootBefore.Add(dec("80"))))
	// Payer is also the level-1 ancestor: debited gross, credited 20 back.
	s.True(s.balance("1A2").Equal(payerBefore.Sub(dec("1000")).Add(dec("20"))))
	s.True(s.balance("1A3").Equal(dec("885")))
}

func (s *LedgerSuite) TestPay_PoolReconcilesForEveryChainLength() {
	members := []domain.UIN{"1A2", "1A3", "1A4", "1A5", "1A6"}
	for _, m := range members {
		s.openPurse(m)
	}
	s.fund("1A9", "100000")
	s.openPurse("1A8")

	awkward := []string{"999.99", "0.07", "123.45", "1000", "33.33"}
	for chainLen := 0; chainLen <= len(members); chainLen++ {
		chain := members[:chainLen]
		amount := dec(awkward[chainLen%len(awkward)])

		tx, bonuses, err := s.svc.Pay(s.ctx, "1A9", "1A8", amount, chain,
			fmt.Sprintf("chain length %d", chainLen))
		s.Require().NoError(err)

		total := decimal.Zero
		for _, b := range bonuses {
			s.False(b.Amount.IsNegative(), "no negative bonus")
			s.False(b.Amount.IsZero(), "zero bonuses are dropped")
			total = total.Add(b.Amount)
		}
		s.True(total.Equal(tx.Commission),
			"chain %d: bonuses sum %s, pool %s", chainLen, total, tx.Commission)
		for _, b := range bonuses {
			// Levels past the schedule never pay out. Chain entry 5 is
			// beyond the four commission levels.
			s.LessOrEqual(b.Level, 4)
		}
	}
}

func (s *LedgerSuite) TestPay_Failures() {
	s.fund("1A2", "50")
	s.openPurse("1A3")

	s.Run("insufficient balance", func() {
		_, _, err := s.svc.Pay(s.ctx, "1A2", "1A3", dec("500"), nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.True(s.balance("1A3").IsZero(), "rejection leaves no partial credit")
	})

	s.Run("non-positive amount", func() {
		_, _, err := s.svc.Pay(s.ctx, "1A2", "1A3", dec("-1"), nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("unwired root sink", func() {
		svc, err := NewService(
			store.NewInMemoryPurses(),
			store.NewInMemoryTransactions(),
			store.NewInMemoryBonuses(),
		)
		s.Require().NoError(err)
		_, _, err = svc.Pay(s.ctx, "1A2", "1A3", dec("10"), nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *LedgerSuite) TestEscrow_Lifecycle() {
	s.fund("1A2", "1000")
	s.openPurse("1A3")

	payerBefore := s.balance("1A2")

	hold, err := s.svc.EscrowCreate(s.ctx, "1A2", "1A3", dec("500"), "order-42", "pending delivery")
	s.Require().NoError(err)
	s.Equal(models.TxEscrowed, hold.Status)
	s.True(hold.Fee.Equal(dec("7.5")))

	// Payer paid gross plus fee up front; payee holds the gross in escrow,
	// spendable balance untouched.
	s.True(s.balance("1A2").Equal(payerBefore.Sub(dec("507.5"))))
	s.True(s.balance("1A3").IsZero())
	payee, err := s.svc.PurseOf(s.ctx, "1A3")
	s.Require().NoError(err)
	s.True(payee.EscrowBalance.Equal(dec("500")))

	s.Run("a second hold on the same correlation conflicts", func() {
		_, err := s.svc.EscrowCreate(s.ctx, "1A2", "1A3", dec("10"), "order-42", "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	rootBefore := s.balance(rootUIN)
	settlement, bonuses, err := s.svc.EscrowRelease(s.ctx, "order-42", []domain.UIN{rootUIN})
	s.Require().NoError(err)

	// Pool 50, root takes its level share plus everything unfilled.
	s.Equal(models.TxEscrowRelease, settlement.Kind)
	s.True(settlement.Commission.Equal(dec("50")))
	s.True(settlement.Net.Equal(dec("450")))
	s.True(settlement.Reconciles())
	s.True(money.Sum(bonusAmounts(bonuses)).Equal(dec("50")))

	payee, err = s.svc.PurseOf(s.ctx, "1A3")
	s.Require().NoError(err)
	s.True(payee.EscrowBalance.IsZero())
	s.True(payee.Balance.Equal(dec("450")))
	s.True(s.balance(rootUIN).Equal(rootBefore.Add(dec("50"))))

	s.Run("release is at-most-once", func() {
		_, _, err := s.svc.EscrowRelease(s.ctx, "order-42", []domain.UIN{rootUIN})
		s.True(dErrors.HasCode(err, dErrors.CodeEscrowNotFound))
	})

	s.Run("releasing an unknown correlation fails the same way", func() {
		_, _, err := s.svc.EscrowRelease(s.ctx, "order-never", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeEscrowNotFound))
	})
}

func (s *LedgerSuite) TestEscrow_ConcurrentRelease() {
	s.fund("1A2", "1000")
	s.openPurse("1A3")
	_, err := s.svc.EscrowCreate(s.ctx, "1A2", "1A3", dec("300"), "order-77", "")
	s.Require().NoError(err)

	const attempts = 16
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, _, err := s.svc.EscrowRelease(s.ctx, "order-77", []domain.UIN{rootUIN})
			results <- err
		}()
	}

	wins := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			wins++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeEscrowNotFound))
		}
	}
	s.Equal(1, wins, "exactly one release may win")

	// The held amount settled exactly once.
	payee, err := s.svc.PurseOf(s.ctx, "1A3")
	s.Require().NoError(err)
	s.True(payee.Balance.Equal(dec("270")))
	s.True(payee.EscrowBalance.IsZero())
}

func (s *LedgerSuite) TestEscrow_Cancel() {
	s.fund("1A2", "1000")
	s.openPurse("1A3")

	payerBefore := s.balance("1A2")
	_, err := s.svc.EscrowCreate(s.ctx, "1A2", "1A3", dec("200"), "order-9", "")
	s.Require().NoError(err)

	cancelled, err := s.svc.EscrowCancel(s.ctx, "order-9")
	s.Require().NoError(err)
	s.Equal(models.TxFailed, cancelled.Status)

	// Full refund including the fee; payee escrow cleared, nothing earned.
	s.True(s.balance("1A2").Equal(payerBefore))
	payee, err := s.svc.PurseOf(s.ctx, "1A3")
	s.Require().NoError(err)
	s.True(payee.EscrowBalance.IsZero())
	s.True(payee.Balance.IsZero())

	s.Run("cancel is at-most-once too", func() {
		_, err := s.svc.EscrowCancel(s.ctx, "order-9")
		s.True(dErrors.HasCode(err, dErrors.CodeEscrowNotFound))
	})
}

func (s *LedgerSuite) TestBonusAndTransactionQueries() {
	s.fund("1A2", "2000")
	s.openPurse("1A3")
	s.openPurse("1A4")

	_, _, err := s.svc.Pay(s.ctx, "1A2", "1A3", dec("1000"), []domain.UIN{"1A4"}, "")
	s.Require().NoError(err)

	bonuses, err := s.svc.BonusesFor(s.ctx, "1A4")
	s.Require().NoError(err)
	s.Require().Len(bonuses, 1)
	s.Equal(1, bonuses[0].Level)
	s.True(bonuses[0].Amount.Equal(dec("20")))

	txs, err := s.svc.TransactionsFor(s.ctx, "1A3")
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(models.TxPayment, txs[0].Kind)

	single, err := s.svc.Transaction(s.ctx, txs[0].ID)
	s.Require().NoError(err)
	s.True(single.Reconciles())

	_, err = s.svc.Transaction(s.ctx, domain.NewTransactionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func bonusAmounts(bonuses []models.CommissionBonus) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(bonuses))
	for _, b := range bonuses {
		amounts = append(amounts, b.Amount)
	}
	return amounts
}

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	identitymodels "affinet/internal/identity/models"
	identityservice "affinet/internal/identity/service"
	identitystore "affinet/internal/identity/store"
	ledgermodels "affinet/internal/ledger/models"
	ledgerservice "affinet/internal/ledger/service"
	ledgerstore "affinet/internal/ledger/store"
	"affinet/internal/payments/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	auditpublisher "affinet/pkg/platform/audit/publisher"
	auditmemory "affinet/pkg/platform/audit/store/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type OrchestratorSuite struct {
	suite.Suite
	ctx      context.Context
	registry *identityservice.Service
	ledger   *ledgerservice.Service
	events   *auditmemory.InMemoryStore
	orch     *Orchestrator
	root     domain.UIN
	seq      int
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = identityservice.NewService(identitystore.NewInMemory())

	ledger, err := ledgerservice.NewService(
		ledgerstore.NewInMemoryPurses(),
		ledgerstore.NewInMemoryTransactions(),
		ledgerstore.NewInMemoryBonuses(),
	)
	s.Require().NoError(err)
	s.ledger = ledger

	s.events = auditmemory.NewInMemoryStore()
	s.orch = NewOrchestrator(s.registry, s.ledger,
		WithAuditor(auditpublisher.NewPublisher(s.events)))

	s.seq = 0
	root, err := s.orch.Bootstrap(s.ctx, s.contact("root"))
	s.Require().NoError(err)
	s.root = root.UIN
}

func (s *OrchestratorSuite) contact(name string) identitymodels.Contact {
	s.seq++
	return identitymodels.Contact{
		Email:       fmt.Sprintf("%s-%d@example.com", name, s.seq),
		Phone:       fmt.Sprintf("+4477009%05d", s.seq),
		DisplayName: name,
	}
}

func (s *OrchestratorSuite) onboard(name string, upline domain.UIN) domain.UIN {
	res, err := s.orch.Onboard(s.ctx, s.contact(name), identitymodels.RoleMember, upline, ledgermodels.NativeCurrency)
	s.Require().NoError(err)
	return res.Identity.UIN
}

func (s *OrchestratorSuite) fund(uin domain.UIN, amount string) {
	_, err := s.orch.Execute(s.ctx, models.TransactionRequest{
		Kind:     models.OpDeposit,
		Payee:    uin,
		Amount:   dec(amount),
		Currency: ledgermodels.NativeCurrency,
	})
	s.Require().NoError(err)
}

func (s *OrchestratorSuite) TestBootstrap_Idempotent() {
	again, err := s.orch.Bootstrap(s.ctx, s.contact("root-again"))
	s.Require().NoError(err)
	s.Equal(s.root, again.UIN)

	purse, err := s.ledger.PurseOf(s.ctx, s.root)
	s.Require().NoError(err)
	s.Equal(s.root, purse.Owner)
	s.Equal(s.root, s.ledger.RootSink())
}

func (s *OrchestratorSuite) TestOnboard() {
	s.Run("co-creates identity and purse", func() {
		res, err := s.orch.Onboard(s.ctx, s.contact("alice"), identitymodels.RoleMember, domain.UIN(""), "USD")
		s.Require().NoError(err)
		s.Equal(s.root, res.Identity.Upline, "zero upline defaults to root")
		s.Equal("USD", res.Purse.Currency)

		purse, err := s.ledger.PurseOf(s.ctx, res.Identity.UIN)
		s.Require().NoError(err)
		s.Equal(res.Identity.UIN, purse.Owner)
	})

	s.Run("unsupported currency leaves no identity behind", func() {
		contact := s.contact("bob")
		_, err := s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "XAU")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedCurrency))

		// The contact was never registered, so it can register again.
		_, err = s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "USD")
		s.Require().NoError(err)
	})

	s.Run("duplicate contact propagates", func() {
		contact := s.contact("carol")
		_, err := s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "USD")
		s.Require().NoError(err)
		_, err = s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "USD")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateContact))
	})

	s.Run("partner without upline is rejected", func() {
		_, err := s.orch.Onboard(s.ctx, s.contact("dave"), identitymodels.RolePartner, domain.UIN(""), "USD")
		s.True(dErrors.HasCode(err, dErrors.CodeMissingUplineForRole))
	})
}

func (s *OrchestratorSuite) TestExecute_PaymentCreditsChainEarnings() {
	// Referral chain: root <- a <- b <- payee. Payer hangs off root.
	a := s.onboard("a", s.root)
	b := s.onboard("b", a)
	payee := s.onboard("payee", b)
	payer := s.onboard("payer", s.root)
	s.fund(payer, "2000")

	res, err := s.orch.Execute(s.ctx, models.TransactionRequest{
		Kind:   models.OpPayment,
		Payer:  payer,
		Payee:  payee,
		Amount: dec("1000"),
	})
	s.Require().NoError(err)

	tx := res.Transaction
	s.True(tx.Commission.Equal(dec("100")))
	s.True(tx.Net.Equal(dec("885")))

	// Chain [b, a, root]: levels 1-3 at 20 each; root also takes the
	// override plus the unfilled fourth level: 100-60 = 40 on top of 20.
	total := decimal.Zero
	for _, bonus := range res.Bonuses {
		total = total.Add(bonus.Amount)
	}
	s.True(total.Equal(dec("100")), "bonuses cover the pool exactly")

	for uin, want := range map[domain.UIN]string{b: "20", a: "20", s.root: "60"} {
		identity, err := s.registry.Get(s.ctx, uin)
		s.Require().NoError(err)
		s.True(identity.LifetimeEarnings.Equal(dec(want)),
			"%s lifetime earnings %s, want %s", uin, identity.LifetimeEarnings, want)
	}
}

func (s *OrchestratorSuite) TestOnboard_RetryAfterRollback() {
	// Occupy the purse slot of the next UIN the sequence will issue, in a
	// different currency, so purse creation fails after registration.
	stranded := domain.UIN("1A2")
	_, err := s.ledger.CreatePurse(s.ctx, stranded, ledgermodels.NativeCurrency)
	s.Require().NoError(err)

	contact := s.contact("eve")
	_, err = s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "USD")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	identity, err := s.registry.Get(s.ctx, stranded)
	s.Require().NoError(err)
	s.False(identity.Active, "rolled-back identity is deactivated")

	// The rollback released the contact tuple, so the same caller can retry.
	res, err := s.orch.Onboard(s.ctx, contact, identitymodels.RoleMember, domain.UIN(""), "USD")
	s.Require().NoError(err)
	s.NotEqual(stranded, res.Identity.UIN)
}

func (s *OrchestratorSuite) TestSystemAccountNotAddressable() {
	req := models.TransactionRequest{
		Kind:     models.OpDeposit,
		Payee:    domain.SystemUIN,
		Amount:   dec("10"),
		Currency: ledgermodels.NativeCurrency,
	}

	result, err := s.orch.Validate(s.ctx, req)
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Require().Len(result.Failures, 1)
	s.Equal("payee", result.Failures[0].Field)
	s.Equal(string(dErrors.CodeValidation), result.Failures[0].Code)

	_, err = s.orch.Execute(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation),
		"execution rejects it in the same class validation reports")
}

func (s *OrchestratorSuite) TestExecute_RejectsUnknownKind() {
	_, err := s.orch.Execute(s.ctx, models.TransactionRequest{Kind: "barter"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *OrchestratorSuite) TestReleaseEscrow() {
	a := s.onboard("a", s.root)
	payee := s.onboard("payee", a)
	payer := s.onboard("payer", s.root)
	s.fund(payer, "1000")

	_, err := s.orch.Execute(s.ctx, models.TransactionRequest{
		Kind:          models.OpEscrow,
		Payer:         payer,
		Payee:         payee,
		Amount:        dec("500"),
		CorrelationID: "order-1",
	})
	s.Require().NoError(err)

	// An ancestor deactivated mid-hold still earns: the chain is resolved
	// at release time and deactivation never rewires the tree.
	_, err = s.registry.Deactivate(s.ctx, a)
	s.Require().NoError(err)

	res, err := s.orch.ReleaseEscrow(s.ctx, "order-1")
	s.Require().NoError(err)
	s.Equal(ledgermodels.TxEscrowRelease, res.Transaction.Kind)
	s.True(res.Transaction.Commission.Equal(dec("50")))

	identity, err := s.registry.Get(s.ctx, a)
	s.Require().NoError(err)
	s.True(identity.LifetimeEarnings.Equal(dec("10")), "level-1 share of the 50 pool")

	s.Run("second release observes EscrowNotFound", func() {
		_, err := s.orch.ReleaseEscrow(s.ctx, "order-1")
		s.True(dErrors.HasCode(err, dErrors.CodeEscrowNotFound))
	})
}

func (s *OrchestratorSuite) TestStats() {
	a := s.onboard("a", s.root)
	b := s.onboard("b", a)
	c := s.onboard("c", b)
	payer := s.onboard("payer", s.root)
	s.fund(payer, "2000")

	_, err := s.orch.Execute(s.ctx, models.TransactionRequest{
		Kind: models.OpPayment, Payer: payer, Payee: c, Amount: dec("1000"),
	})
	s.Require().NoError(err)

	stats, err := s.orch.Stats(s.ctx, a)
	s.Require().NoError(err)
	s.Equal(1, stats.Depth)
	s.Equal(1, stats.DirectDownlines, "only b hangs directly off a")
	s.Equal(2, stats.TotalDownlines, "b and c, depth-independent")
	s.True(stats.LifetimeEarnings.Equal(dec("20")), "level-2 share")
	s.True(stats.Balance.Equal(dec("20")))
	s.Require().Len(stats.IncomeByLevel, 1)
	s.Equal(2, stats.IncomeByLevel[0].Level)
	s.True(stats.IncomeByLevel[0].Total.Equal(dec("20")))
	s.Equal(1, stats.IncomeByLevel[0].Count)

	_, err = s.orch.Stats(s.ctx, domain.UIN("9Z99"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *OrchestratorSuite) TestValidate() {
	payer := s.onboard("payer", s.root)
	payee := s.onboard("payee", s.root)
	s.fund(payer, "100")

	s.Run("valid payment", func() {
		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpPayment, Payer: payer, Payee: payee, Amount: dec("50"),
		})
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Empty(result.Failures)
	})

	s.Run("collects multiple failures", func() {
		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpPayment, Payer: payer, Payee: domain.UIN("9Z99"), Amount: dec("-5"),
		})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Len(result.Failures, 2)
	})

	s.Run("insufficient balance is a finding, not an error", func() {
		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpPayment, Payer: payer, Payee: payee, Amount: dec("100000"),
		})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(string(dErrors.CodeInsufficientBalance), result.Failures[0].Code)
	})

	s.Run("escrow needs gross plus fee available", func() {
		balance, err := s.ledger.PurseOf(s.ctx, payer)
		s.Require().NoError(err)

		// The full balance fails because the fee comes on top.
		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpEscrow, Payer: payer, Payee: payee,
			Amount: balance.Balance, CorrelationID: "order-x",
		})
		s.Require().NoError(err)
		s.False(result.Valid)
	})

	s.Run("deactivated payee is flagged", func() {
		other := s.onboard("other", s.root)
		_, err := s.registry.Deactivate(s.ctx, other)
		s.Require().NoError(err)

		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpTransfer, Payer: payer, Payee: other, Amount: dec("10"),
		})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(string(dErrors.CodeInactiveAccount), result.Failures[0].Code)
	})

	s.Run("deposit currency must be supported", func() {
		result, err := s.orch.Validate(s.ctx, models.TransactionRequest{
			Kind: models.OpDeposit, Payee: payee, Amount: dec("10"), Currency: "XAU",
		})
		s.Require().NoError(err)
		s.False(result.Valid)
	})
}

func (s *OrchestratorSuite) TestExecute_EmitsAuditTrail() {
	payer := s.onboard("payer", s.root)
	payee := s.onboard("payee", s.root)
	s.fund(payer, "1000")

	res, err := s.orch.Execute(s.ctx, models.TransactionRequest{
		Kind: models.OpPayment, Payer: payer, Payee: payee, Amount: dec("100"),
	})
	s.Require().NoError(err)

	events, err := s.events.ListBySubject(s.ctx, res.Transaction.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 2, "settlement plus commission distribution")
	s.Equal("payment_settled", events[0].Action)
	s.Equal("commission_distributed", events[1].Action)
}

// Package service hosts the transaction orchestrator: the coordination layer
// that composes the identity registry and the ledger into onboarding,
// transaction execution, escrow release, and reporting.
package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identitymodels "affinet/internal/identity/models"
	identityservice "affinet/internal/identity/service"
	ledgermodels "affinet/internal/ledger/models"
	ledgerservice "affinet/internal/ledger/service"
	"affinet/internal/payments/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	audit "affinet/pkg/platform/audit"
	auditpublisher "affinet/pkg/platform/audit/publisher"
)

const tracerName = "affinet/payments"

// Orchestrator composes the registry and the ledger. It owns cross-service
// consistency: identity and purse are co-created, commission distributions
// are followed by earnings credits, and escrow releases resolve the ancestor
// chain at release time.
type Orchestrator struct {
	registry *identityservice.Service
	ledger   *ledgerservice.Service
	auditor  *auditpublisher.Publisher
	tracer   trace.Tracer
	logger   *slog.Logger
}

type orchestratorConfig struct {
	auditor *auditpublisher.Publisher
	logger  *slog.Logger
}

type Option func(*orchestratorConfig)

// WithAuditor attaches the audit publisher.
func WithAuditor(p *auditpublisher.Publisher) Option {
	return func(c *orchestratorConfig) { c.auditor = p }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *orchestratorConfig) { c.logger = l }
}

func NewOrchestrator(registry *identityservice.Service, ledger *ledgerservice.Service, opts ...Option) *Orchestrator {
	cfg := &orchestratorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.auditor == nil {
		cfg.auditor = auditpublisher.Nop()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		ledger:   ledger,
		auditor:  cfg.auditor,
		tracer:   otel.Tracer(tracerName),
		logger:   cfg.logger,
	}
}

// Bootstrap establishes the system fixtures: the registry root, its purse,
// the fee sink, and the ledger's commission override target. Idempotent.
func (o *Orchestrator) Bootstrap(ctx context.Context, rootContact identitymodels.Contact) (*identitymodels.Identity, error) {
	ctx, span := o.tracer.Start(ctx, "payments.Bootstrap")
	defer span.End()

	root, err := o.registry.EnsureRoot(ctx, rootContact)
	if err != nil {
		return nil, spanErr(span, err)
	}
	if err := o.ledger.EnsureSinks(ctx); err != nil {
		return nil, spanErr(span, err)
	}
	if _, err := o.ledger.CreatePurse(ctx, root.UIN, ledgermodels.NativeCurrency); err != nil {
		return nil, spanErr(span, err)
	}
	o.ledger.SetRootSink(root.UIN)
	return root, nil
}

// Onboard registers an identity and opens its purse as one logical unit.
// If the purse cannot be opened the fresh identity is deactivated so no
// purseless identity stays observable.
func (o *Orchestrator) Onboard(ctx context.Context, contact identitymodels.Contact, role identitymodels.Role, upline domain.UIN, currency string) (*models.OnboardResult, error) {
	ctx, span := o.tracer.Start(ctx, "payments.Onboard",
		trace.WithAttributes(
			attribute.String("role", string(role)),
			attribute.String("currency", currency),
		))
	defer span.End()

	// Currency is checked before the registry mutates anything, so the
	// common failure mode cannot strand a purseless identity.
	if !o.ledger.SupportsCurrency(currency) {
		return nil, spanErr(span, dErrors.New(dErrors.CodeUnsupportedCurrency, "no exchange rate for "+currency))
	}

	identity, err := o.registry.Register(ctx, contact, role, upline)
	if err != nil {
		return nil, spanErr(span, err)
	}

	purse, err := o.ledger.CreatePurse(ctx, identity.UIN, currency)
	if err != nil {
		// The UIN is fresh, so this is an invariant-class failure. Roll the
		// identity back so the pair stays co-created, and free the contact
		// tuple so a retry is not rejected as a duplicate.
		if _, dErr := o.registry.Deactivate(ctx, identity.UIN); dErr != nil {
			o.logger.ErrorContext(ctx, "onboard rollback failed",
				"uin", identity.UIN.String(), "error", dErr)
		}
		if rErr := o.registry.ReleaseContact(ctx, identity.UIN); rErr != nil {
			o.logger.ErrorContext(ctx, "onboard contact release failed",
				"uin", identity.UIN.String(), "error", rErr)
		}
		_ = o.auditor.Emit(ctx, audit.Event{
			Actor:   identity.UIN,
			Subject: identity.UIN.String(),
			Action:  string(audit.EventOnboardRolledBack),
			Reason:  err.Error(),
		})
		return nil, spanErr(span, err)
	}

	_ = o.auditor.Emit(ctx, audit.Event{
		Actor:    identity.UIN,
		Subject:  identity.UIN.String(),
		Action:   string(audit.EventOnboardCompleted),
		Currency: currency,
	})
	span.SetAttributes(attribute.String("uin", identity.UIN.String()))
	return &models.OnboardResult{Identity: identity, Purse: purse}, nil
}

// Execute dispatches a transaction request to the matching ledger operation,
// resolving the payee's current ancestor chain for commissioned kinds and
// crediting lifetime earnings for every bonus recipient afterwards.
func (o *Orchestrator) Execute(ctx context.Context, req models.TransactionRequest) (*models.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "payments.Execute",
		trace.WithAttributes(
			attribute.String("kind", string(req.Kind)),
			attribute.String("amount", req.Amount.String()),
		))
	defer span.End()

	if !req.Kind.Known() {
		return nil, spanErr(span, dErrors.New(dErrors.CodeValidation, "unknown transaction kind: "+string(req.Kind)))
	}
	if req.Payer.IsSystem() || req.Payee.IsSystem() {
		return nil, spanErr(span, dErrors.New(dErrors.CodeValidation, "system account is not an addressable participant"))
	}

	var (
		tx      *ledgermodels.Transaction
		bonuses []ledgermodels.CommissionBonus
		err     error
	)
	switch req.Kind {
	case models.OpDeposit:
		tx, err = o.ledger.Deposit(ctx, req.Payee, req.Amount, req.Currency, req.Description)
	case models.OpWithdrawal:
		tx, err = o.ledger.Withdraw(ctx, req.Payer, req.Amount, req.Description)
	case models.OpTransfer:
		tx, err = o.ledger.Transfer(ctx, req.Payer, req.Payee, req.Amount, req.Description)
	case models.OpPayment:
		var chain []domain.UIN
		chain, err = o.registry.AncestorChain(ctx, req.Payee, o.ledger.Schedule().Levels)
		if err == nil {
			tx, bonuses, err = o.ledger.Pay(ctx, req.Payer, req.Payee, req.Amount, chain, req.Description)
		}
	case models.OpEscrow:
		tx, err = o.ledger.EscrowCreate(ctx, req.Payer, req.Payee, req.Amount, req.CorrelationID, req.Description)
	}
	if err != nil {
		return nil, spanErr(span, err)
	}

	if err := o.creditEarnings(ctx, bonuses); err != nil {
		return nil, spanErr(span, err)
	}

	o.emitExecution(ctx, req, tx)
	span.SetAttributes(attribute.String("transaction_id", tx.ID.String()))
	return &models.ExecutionResult{Transaction: tx, Bonuses: bonuses}, nil
}

// ReleaseEscrow settles an open hold. The ancestor chain is resolved at
// release time, not at hold creation: a referral link formed in between
// still earns commission. Release stays at-most-once regardless; the ledger's
// check-and-set decides the winner.
func (o *Orchestrator) ReleaseEscrow(ctx context.Context, correlationID domain.CorrelationID) (*models.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "payments.ReleaseEscrow",
		trace.WithAttributes(attribute.String("correlation_id", string(correlationID))))
	defer span.End()

	held, err := o.ledger.EscrowHold(ctx, correlationID)
	if err != nil {
		return nil, spanErr(span, err)
	}

	chain, err := o.registry.AncestorChain(ctx, held.Payee, o.ledger.Schedule().Levels)
	if err != nil {
		return nil, spanErr(span, err)
	}

	settlement, bonuses, err := o.ledger.EscrowRelease(ctx, correlationID, chain)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeEscrowNotFound) {
			_ = o.auditor.Emit(ctx, audit.Event{
				Subject: string(correlationID),
				Action:  string(audit.EventReleaseLostRace),
			})
		}
		return nil, spanErr(span, err)
	}

	if err := o.creditEarnings(ctx, bonuses); err != nil {
		return nil, spanErr(span, err)
	}

	_ = o.auditor.Emit(ctx, audit.Event{
		Actor:    settlement.Payer,
		Subject:  string(correlationID),
		Action:   string(audit.EventEscrowReleased),
		Amount:   settlement.Gross.String(),
		Currency: settlement.Currency,
	})
	span.SetAttributes(attribute.String("transaction_id", settlement.ID.String()))
	return &models.ExecutionResult{Transaction: settlement, Bonuses: bonuses}, nil
}

// Stats aggregates tree position, balances, and per-level commission income
// for one participant.
func (o *Orchestrator) Stats(ctx context.Context, uin domain.UIN) (*models.Stats, error) {
	ctx, span := o.tracer.Start(ctx, "payments.Stats",
		trace.WithAttributes(attribute.String("uin", uin.String())))
	defer span.End()

	identity, err := o.registry.Get(ctx, uin)
	if err != nil {
		return nil, spanErr(span, err)
	}
	tree, err := o.registry.DescendantTree(ctx, uin, 1)
	if err != nil {
		return nil, spanErr(span, err)
	}
	purse, err := o.ledger.PurseOf(ctx, uin)
	if err != nil {
		return nil, spanErr(span, err)
	}
	bonuses, err := o.ledger.BonusesFor(ctx, uin)
	if err != nil {
		return nil, spanErr(span, err)
	}

	return &models.Stats{
		UIN:              identity.UIN,
		DisplayName:      identity.DisplayName,
		Role:             identity.Role,
		Active:           identity.Active,
		Depth:            identity.Depth,
		DirectDownlines:  tree.DirectDownlines,
		TotalDownlines:   tree.TotalDownlines,
		LifetimeEarnings: identity.LifetimeEarnings,
		Balance:          purse.Balance,
		EscrowBalance:    purse.EscrowBalance,
		IncomeByLevel:    incomeByLevel(bonuses),
	}, nil
}

func (o *Orchestrator) creditEarnings(ctx context.Context, bonuses []ledgermodels.CommissionBonus) error {
	totals := make(map[domain.UIN]decimal.Decimal, len(bonuses))
	for _, b := range bonuses {
		totals[b.Recipient] = totals[b.Recipient].Add(b.Amount)
	}
	for recipient, total := range totals {
		if err := o.registry.CreditEarnings(ctx, recipient, total); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation,
				"bonus paid but earnings credit failed for "+recipient.String())
		}
	}
	return nil
}

func (o *Orchestrator) emitExecution(ctx context.Context, req models.TransactionRequest, tx *ledgermodels.Transaction) {
	action := map[models.OpKind]audit.AuditEvent{
		models.OpDeposit:    audit.EventDepositSettled,
		models.OpWithdrawal: audit.EventWithdrawalSettled,
		models.OpTransfer:   audit.EventTransferSettled,
		models.OpPayment:    audit.EventPaymentSettled,
		models.OpEscrow:     audit.EventEscrowCreated,
	}[req.Kind]

	_ = o.auditor.Emit(ctx, audit.Event{
		Actor:    tx.Payer,
		Subject:  tx.ID.String(),
		Action:   string(action),
		Amount:   tx.Gross.String(),
		Currency: tx.Currency,
	})
	if tx.Commission.IsPositive() {
		_ = o.auditor.Emit(ctx, audit.Event{
			Actor:   tx.Payer,
			Subject: tx.ID.String(),
			Action:  string(audit.EventCommissionDistributed),
			Amount:  tx.Commission.String(),
		})
	}
}

func incomeByLevel(bonuses []ledgermodels.CommissionBonus) []models.LevelIncome {
	byLevel := make(map[int]*models.LevelIncome)
	for _, b := range bonuses {
		entry, ok := byLevel[b.Level]
		if !ok {
			entry = &models.LevelIncome{Level: b.Level, Total: decimal.Zero}
			byLevel[b.Level] = entry
		}
		entry.Total = entry.Total.Add(b.Amount)
		entry.Count++
	}

	income := make([]models.LevelIncome, 0, len(byLevel))
	for _, entry := range byLevel {
		income = append(income, *entry)
	}
	sort.Slice(income, func(i, j int) bool { return income[i].Level < income[j].Level })
	return income
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

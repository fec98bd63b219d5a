package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	ledgermetrics "affinet/internal/ledger/metrics"
	"affinet/internal/ledger/models"
	"affinet/internal/ledger/store"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/money"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/requestcontext"
)

// Service is the value ledger: purses, the append-only transaction log,
// currency conversion, fees, escrow, and commission distribution.
//
// Mutating operations run under a single critical section so a multi-purse
// commission distribution is atomic relative to the transaction that
// triggered it. Escrow settlement additionally goes through the transaction
// store's check-and-set, which is what makes release at-most-once even if
// the lock discipline changes.
type Service struct {
	purses   store.PurseStore
	txs      store.TransactionStore
	bonuses  store.BonusStore
	rates    models.RateTable
	schedule models.CommissionSchedule
	metrics  *ledgermetrics.Metrics
	logger   *slog.Logger

	// mu serializes all balance mutations.
	mu sync.Mutex

	rootMu   sync.RWMutex
	rootSink domain.UIN
}

type serviceConfig struct {
	rates    models.RateTable
	schedule models.CommissionSchedule
	rootSink domain.UIN
	metrics  *ledgermetrics.Metrics
	logger   *slog.Logger
}

type Option func(*serviceConfig)

// WithRates replaces the default exchange-rate table.
func WithRates(rates models.RateTable) Option {
	return func(c *serviceConfig) { c.rates = rates }
}

// WithSchedule replaces the default commission schedule.
func WithSchedule(schedule models.CommissionSchedule) Option {
	return func(c *serviceConfig) { c.schedule = schedule }
}

// WithRootSink sets the UIN that collects the root override and unfilled
// commission levels. Usually wired after registry bootstrap via SetRootSink.
func WithRootSink(uin domain.UIN) Option {
	return func(c *serviceConfig) { c.rootSink = uin }
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

func NewService(purses store.PurseStore, txs store.TransactionStore, bonuses store.BonusStore, opts ...Option) (*Service, error) {
	cfg := &serviceConfig{
		rates:    models.DefaultRateTable(),
		schedule: models.DefaultSchedule(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.schedule.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		purses:   purses,
		txs:      txs,
		bonuses:  bonuses,
		rates:    cfg.rates,
		schedule: cfg.schedule,
		rootSink: cfg.rootSink,
		metrics:  cfg.metrics,
		logger:   logger,
	}, nil
}

// SetRootSink points commission overrides at the registry root. Called once
// after bootstrap.
func (s *Service) SetRootSink(uin domain.UIN) {
	s.rootMu.Lock()
	defer s.rootMu.Unlock()
	s.rootSink = uin
}

// RootSink returns the configured override recipient, or zero before wiring.
func (s *Service) RootSink() domain.UIN {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.rootSink
}

// Schedule returns the commission schedule in force.
func (s *Service) Schedule() models.CommissionSchedule {
	return s.schedule
}

// EnsureSinks creates the system sink purse if it does not exist yet.
// Idempotent; called during bootstrap before any fee can be charged.
func (s *Service) EnsureSinks(ctx context.Context) error {
	purse := models.NewPurse(domain.SystemUIN, models.NativeCurrency, requestcontext.Now(ctx))
	if err := s.purses.Create(ctx, purse); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create system purse")
	}
	return nil
}

// SupportsCurrency reports whether the rate table covers the code.
func (s *Service) SupportsCurrency(currency string) bool {
	_, ok := s.rates[currency]
	return ok
}

// Convert translates an amount in the given currency to ledger-native units,
// rounded to the ledger scale.
func (s *Service) Convert(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, ok := s.rates[currency]
	if !ok {
		return decimal.Zero, dErrors.New(dErrors.CodeUnsupportedCurrency, "no exchange rate for "+currency)
	}
	return money.ApplyRate(amount, rate), nil
}

// CreatePurse initializes a purse for the owner. Idempotent: calling it
// again with the same currency returns the existing purse; a different
// currency is a conflict.
func (s *Service) CreatePurse(ctx context.Context, owner domain.UIN, currency string) (*models.Purse, error) {
	if !s.SupportsCurrency(currency) {
		return nil, dErrors.New(dErrors.CodeUnsupportedCurrency, "no exchange rate for "+currency)
	}

	existing, err := s.purses.FindByOwner(ctx, owner)
	if err == nil {
		if existing.Currency != currency {
			return nil, dErrors.New(dErrors.CodeConflict,
				"purse for "+owner.String()+" already active with currency "+existing.Currency)
		}
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "purse lookup failed")
	}

	purse := models.NewPurse(owner, currency, requestcontext.Now(ctx))
	if err := s.purses.Create(ctx, purse); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a creation race; the winner's purse is authoritative.
			return s.CreatePurse(ctx, owner, currency)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create purse")
	}
	return purse, nil
}

// PurseOf returns the owner's purse.
func (s *Service) PurseOf(ctx context.Context, owner domain.UIN) (*models.Purse, error) {
	purse, err := s.purses.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no purse for "+owner.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "purse lookup failed")
	}
	return purse, nil
}

// Deposit brings external value into the system: the amount is converted to
// native units, the fee is skimmed into the system sink, and the remainder is
// credited to the owner.
func (s *Service) Deposit(ctx context.Context, owner domain.UIN, amount decimal.Decimal, currency, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "deposit amount must be positive")
	}
	gross, err := s.Convert(amount, currency)
	if err != nil {
		return nil, err
	}
	fee := money.ApplyRate(gross, s.schedule.FeeRate)
	net := gross.Sub(fee)
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.purses.ExecuteBatch(ctx, []domain.UIN{owner, domain.SystemUIN}, func(purses map[domain.UIN]*models.Purse) error {
		purses[owner].ApplyCredit(net, now)
		purses[domain.SystemUIN].ApplyCredit(fee, now)
		return nil
	})
	if err != nil {
		return nil, s.mapPurseErr(err)
	}

	tx := &models.Transaction{
		ID:          domain.NewTransactionID(),
		Payer:       domain.SystemUIN,
		Payee:       owner,
		Gross:       gross,
		Fee:         fee,
		Commission:  decimal.Zero,
		Net:         net,
		Currency:    models.NativeCurrency,
		Kind:        models.TxDeposit,
		Status:      models.TxCompleted,
		Timestamp:   now,
		Description: description,
	}
	if err := s.append(ctx, tx); err != nil {
		return nil, err
	}

	gf, _ := gross.Float64()
	s.metrics.ObserveTransaction(string(models.TxDeposit), string(models.TxCompleted), gf)
	s.logger.InfoContext(ctx, "deposit settled",
		"owner", owner.String(), "gross", gross.String(), "fee", fee.String(), "currency", currency)
	return tx, nil
}

// Withdraw moves value out of the system. The fee is retained by the sink;
// the net leaves circulation.
func (s *Service) Withdraw(ctx context.Context, owner domain.UIN, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "withdrawal amount must be positive")
	}
	gross := money.Round(amount)
	fee := money.ApplyRate(gross, s.schedule.FeeRate)
	net := gross.Sub(fee)
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.purses.ExecuteBatch(ctx, []domain.UIN{owner, domain.SystemUIN}, func(purses map[domain.UIN]*models.Purse) error {
		if err := purses[owner].CanDebit(gross); err != nil {
			return err
		}
		purses[owner].ApplyDebit(gross, now)
		purses[domain.SystemUIN].ApplyCredit(fee, now)
		return nil
	})
	if err != nil {
		return nil, s.mapPurseErr(err)
	}

	tx := &models.Transaction{
		ID:          domain.NewTransactionID(),
		Payer:       owner,
		Payee:       domain.SystemUIN,
		Gross:       gross,
		Fee:         fee,
		Commission:  decimal.Zero,
		Net:         net,
		Currency:    models.NativeCurrency,
		Kind:        models.TxWithdrawal,
		Status:      models.TxCompleted,
		Timestamp:   now,
		Description: description,
	}
	if err := s.append(ctx, tx); err != nil {
		return nil, err
	}

	gf, _ := gross.Float64()
	s.metrics.ObserveTransaction(string(models.TxWithdrawal), string(models.TxCompleted), gf)
	s.logger.InfoContext(ctx, "withdrawal settled",
		"owner", owner.String(), "gross", gross.String(), "fee", fee.String())
	return tx, nil
}

// Transfer moves value directly between two purses. A fee applies; no
// commission is distributed.
func (s *Service) Transfer(ctx context.Context, from, to domain.UIN, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "transfer amount must be positive")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "transfer requires two distinct purses")
	}
	gross := money.Round(amount)
	fee := money.ApplyRate(gross, s.schedule.FeeRate)
	net := gross.Sub(fee)
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.purses.ExecuteBatch(ctx, []domain.UIN{from, to, domain.SystemUIN}, func(purses map[domain.UIN]*models.Purse) error {
		if err := purses[from].CanDebit(gross); err != nil {
			return err
		}
		purses[from].ApplyDebit(gross, now)
		purses[to].ApplyCredit(net, now)
		purses[domain.SystemUIN].ApplyCredit(fee, now)
		return nil
	})
	if err != nil {
		return nil, s.mapPurseErr(err)
	}

	tx := &models.Transaction{
		ID:          domain.NewTransactionID(),
		Payer:       from,
		Payee:       to,
		Gross:       gross,
		Fee:         fee,
		Commission:  decimal.Zero,
		Net:         net,
		Currency:    models.NativeCurrency,
		Kind:        models.TxTransfer,
		Status:      models.TxCompleted,
		Timestamp:   now,
		Description: description,
	}
	if err := s.append(ctx, tx); err != nil {
		return nil, err
	}

	gf, _ := gross.Float64()
	s.metrics.ObserveTransaction(string(models.TxTransfer), string(models.TxCompleted), gf)
	return tx, nil
}

// Pay settles a commissioned payment immediately. The payer is debited the
// full gross; the fee goes to the sink, the commission pool is split across
// the payee's ancestor chain plus the root sink, and the payee receives the
// remainder.
func (s *Service) Pay(ctx context.Context, payer, payee domain.UIN, amount decimal.Decimal, chain []domain.UIN, description string) (*models.Transaction, []models.CommissionBonus, error) {
	if !amount.IsPositive() {
		return nil, nil, dErrors.New(dErrors.CodeInvalidAmount, "payment amount must be positive")
	}
	if payer == payee {
		return nil, nil, dErrors.New(dErrors.CodeInvalidAmount, "payment requires two distinct purses")
	}
	gross := money.Round(amount)
	fee := money.ApplyRate(gross, s.schedule.FeeRate)
	pool := money.ApplyRate(gross, s.schedule.PoolRate)
	net := gross.Sub(fee).Sub(pool)
	now := requestcontext.Now(ctx)

	txID := domain.NewTransactionID()
	bonuses, err := s.splitPool(txID, pool, chain, now)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	credits := bonusCredits(bonuses)
	owners := batchOwners([]domain.UIN{payer, payee, domain.SystemUIN}, credits)
	err = s.purses.ExecuteBatch(ctx, owners, func(purses map[domain.UIN]*models.Purse) error {
		if err := purses[payer].CanDebit(gross); err != nil {
			return err
		}
		purses[payer].ApplyDebit(gross, now)
		purses[payee].ApplyCredit(net, now)
		purses[domain.SystemUIN].ApplyCredit(fee, now)
		for recipient, amount := range credits {
			purses[recipient].ApplyCredit(amount, now)
		}
		return nil
	})
	if err != nil {
		return nil, nil, s.mapPurseErr(err)
	}

	tx := &models.Transaction{
		ID:          txID,
		Payer:       payer,
		Payee:       payee,
		Gross:       gross,
		Fee:         fee,
		Commission:  pool,
		Net:         net,
		Currency:    models.NativeCurrency,
		Kind:        models.TxPayment,
		Status:      models.TxCompleted,
		Timestamp:   now,
		Description: description,
	}
	if err := s.append(ctx, tx); err != nil {
		return nil, nil, err
	}
	if err := s.recordBonuses(ctx, bonuses); err != nil {
		return nil, nil, err
	}

	gf, _ := gross.Float64()
	pf, _ := pool.Float64()
	s.metrics.ObserveTransaction(string(models.TxPayment), string(models.TxCompleted), gf)
	s.metrics.AddCommission(pf)
	s.logger.InfoContext(ctx, "payment settled",
		"payer", payer.String(), "payee", payee.String(),
		"gross", gross.String(), "pool", pool.String(), "levels", len(chain))
	return tx, bonuses, nil
}

// EscrowCreate places a payment on hold: the payer is debited gross plus fee
// immediately, the gross lands in the payee's non-spendable escrow balance,
// and the transaction stays in escrowed status until released or cancelled.
// Commission is computed at release time.
func (s *Service) EscrowCreate(ctx context.Context, payer, payee domain.UIN, amount decimal.Decimal, correlationID domain.CorrelationID, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "escrow amount must be positive")
	}
	if payer == payee {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "escrow requires two distinct purses")
	}
	if correlationID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "escrow requires a correlation id")
	}
	gross := money.Round(amount)
	fee := money.ApplyRate(gross, s.schedule.FeeRate)
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.txs.FindEscrowByCorrelation(ctx, correlationID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "an escrow hold is already open for "+string(correlationID))
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "escrow lookup failed")
	}

	err := s.purses.ExecuteBatch(ctx, []domain.UIN{payer, payee, domain.SystemUIN}, func(purses map[domain.UIN]*models.Purse) error {
		total := gross.Add(fee)
		if err := purses[payer].CanDebit(total); err != nil {
			return err
		}
		purses[payer].ApplyDebit(total, now)
		purses[payee].ApplyEscrowCredit(gross, now)
		purses[domain.SystemUIN].ApplyCredit(fee, now)
		return nil
	})
	if err != nil {
		return nil, s.mapPurseErr(err)
	}

	tx := &models.Transaction{
		ID:            domain.NewTransactionID(),
		Payer:         payer,
		Payee:         payee,
		Gross:         gross,
		Fee:           fee,
		Commission:    decimal.Zero,
		Net:           gross,
		Currency:      models.NativeCurrency,
		Kind:          models.TxPayment,
		Status:        models.TxEscrowed,
		Timestamp:     now,
		Description:   description,
		CorrelationID: correlationID,
	}
	if err := s.append(ctx, tx); err != nil {
		return nil, err
	}

	gf, _ := gross.Float64()
	s.metrics.ObserveTransaction(string(models.TxPayment), string(models.TxEscrowed), gf)
	s.logger.InfoContext(ctx, "escrow hold created",
		"payer", payer.String(), "payee", payee.String(),
		"gross", gross.String(), "correlation_id", string(correlationID))
	return tx, nil
}

// EscrowRelease settles an open hold: the commission pool is carved out of
// the held gross, the remainder is credited to the payee, and the pool is
// distributed across the given ancestor chain. Release is at-most-once; the
// transaction store's check-and-set picks exactly one winner per correlation
// id, and every other caller observes EscrowNotFound.
func (s *Service) EscrowRelease(ctx context.Context, correlationID domain.CorrelationID, chain []domain.UIN) (*models.Transaction, []models.CommissionBonus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, err := s.txs.SettleEscrow(ctx, correlationID, models.TxCompleted)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementEscrowSettlement("lost_race")
			return nil, nil, dErrors.New(dErrors.CodeEscrowNotFound,
				"no open escrow hold for "+string(correlationID))
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "escrow settlement failed")
	}

	now := requestcontext.Now(ctx)
	gross := held.Gross
	pool := money.ApplyRate(gross, s.schedule.PoolRate)
	net := gross.Sub(pool)

	settlementID := domain.NewTransactionID()
	bonuses, err := s.splitPool(settlementID, pool, chain, now)
	if err != nil {
		return nil, nil, err
	}

	// The hold is already settled in the log; a purse failure past this
	// point is a bookkeeping defect, not a caller error.
	credits := bonusCredits(bonuses)
	owners := batchOwners([]domain.UIN{held.Payee}, credits)
	err = s.purses.ExecuteBatch(ctx, owners, func(purses map[domain.UIN]*models.Purse) error {
		if err := purses[held.Payee].CanReleaseEscrow(gross); err != nil {
			return err
		}
		purses[held.Payee].ApplyEscrowRelease(gross, net, now)
		for recipient, amount := range credits {
			purses[recipient].ApplyCredit(amount, now)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "escrow release failed after settlement",
			"correlation_id", string(correlationID), "error", err)
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"escrow hold settled but purse release failed")
	}

	settlement := &models.Transaction{
		ID:            settlementID,
		Payer:         held.Payer,
		Payee:         held.Payee,
		Gross:         gross,
		Fee:           decimal.Zero,
		Commission:    pool,
		Net:           net,
		Currency:      models.NativeCurrency,
		Kind:          models.TxEscrowRelease,
		Status:        models.TxCompleted,
		Timestamp:     now,
		Description:   held.Description,
		CorrelationID: correlationID,
	}
	if err := s.append(ctx, settlement); err != nil {
		return nil, nil, err
	}
	if err := s.recordBonuses(ctx, bonuses); err != nil {
		return nil, nil, err
	}

	gf, _ := gross.Float64()
	pf, _ := pool.Float64()
	s.metrics.ObserveTransaction(string(models.TxEscrowRelease), string(models.TxCompleted), gf)
	s.metrics.AddCommission(pf)
	s.metrics.IncrementEscrowSettlement("released")
	s.logger.InfoContext(ctx, "escrow released",
		"correlation_id", string(correlationID),
		"gross", gross.String(), "pool", pool.String(), "levels", len(chain))
	return settlement, bonuses, nil
}

// EscrowCancel voids an open hold: the payer gets gross plus fee back, the
// payee's escrow balance is cleared, and the transaction is marked failed.
// Like release, cancellation is at-most-once per correlation id.
func (s *Service) EscrowCancel(ctx context.Context, correlationID domain.CorrelationID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, err := s.txs.SettleEscrow(ctx, correlationID, models.TxFailed)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeEscrowNotFound,
				"no open escrow hold for "+string(correlationID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "escrow settlement failed")
	}

	now := requestcontext.Now(ctx)
	refund := held.Gross.Add(held.Fee)
	err = s.purses.ExecuteBatch(ctx, []domain.UIN{held.Payer, held.Payee, domain.SystemUIN}, func(purses map[domain.UIN]*models.Purse) error {
		if err := purses[held.Payee].CanReleaseEscrow(held.Gross); err != nil {
			return err
		}
		if err := purses[domain.SystemUIN].CanDebit(held.Fee); err != nil {
			return err
		}
		purses[held.Payee].ApplyEscrowCancel(held.Gross, now)
		purses[domain.SystemUIN].ApplyDebit(held.Fee, now)
		purses[held.Payer].ApplyCredit(refund, now)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "escrow cancel failed after settlement",
			"correlation_id", string(correlationID), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"escrow hold voided but purse refund failed")
	}

	s.metrics.IncrementEscrowSettlement("cancelled")
	s.logger.InfoContext(ctx, "escrow cancelled",
		"correlation_id", string(correlationID), "refund", refund.String())
	return held, nil
}

// EscrowHold returns the open hold for a correlation id. Callers use it to
// resolve the payee before a release; the settlement itself is still decided
// by the store's check-and-set.
func (s *Service) EscrowHold(ctx context.Context, correlationID domain.CorrelationID) (*models.Transaction, error) {
	held, err := s.txs.FindEscrowByCorrelation(ctx, correlationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeEscrowNotFound,
				"no open escrow hold for "+string(correlationID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "escrow lookup failed")
	}
	return held, nil
}

// BonusesFor returns the commission bonuses earned by a UIN.
func (s *Service) BonusesFor(ctx context.Context, uin domain.UIN) ([]models.CommissionBonus, error) {
	bonuses, err := s.bonuses.ListByRecipient(ctx, uin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "bonus lookup failed")
	}
	return bonuses, nil
}

// TransactionsFor returns the transactions involving a UIN, newest first.
func (s *Service) TransactionsFor(ctx context.Context, uin domain.UIN) ([]*models.Transaction, error) {
	txs, err := s.txs.ListByParticipant(ctx, uin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transaction lookup failed")
	}
	return txs, nil
}

// Transaction returns one log entry by id.
func (s *Service) Transaction(ctx context.Context, id domain.TransactionID) (*models.Transaction, error) {
	tx, err := s.txs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transaction "+id.String()+" does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transaction lookup failed")
	}
	return tx, nil
}

// splitPool divides the commission pool across the ancestor chain plus the
// root sink. Ancestors take the per-level share nearest-first; the root sink
// takes the fixed override plus every level the chain leaves unfilled, and
// absorbs the rounding remainder, so the parts always total the pool exactly.
// Zero parts are dropped. An ancestor that is itself the root earns both its
// level share and the override, as separate bonus records.
func (s *Service) splitPool(txID domain.TransactionID, pool decimal.Decimal, chain []domain.UIN, now time.Time) ([]models.CommissionBonus, error) {
	root := s.RootSink()
	if root.IsZero() {
		return nil, dErrors.New(dErrors.CodeInternal, "commission root sink is not wired")
	}
	if len(chain) > s.schedule.Levels {
		chain = chain[:s.schedule.Levels]
	}

	one := decimal.NewFromInt(1)
	shares := make([]decimal.Decimal, 0, len(chain)+1)
	rootShare := one
	for range chain {
		shares = append(shares, s.schedule.LevelShare)
		rootShare = rootShare.Sub(s.schedule.LevelShare)
	}
	// The root share is the override plus all unfilled levels, and it sits
	// last so it absorbs the rounding remainder.
	shares = append(shares, rootShare)

	parts, err := money.Allocate(pool, shares)
	if err != nil {
		return nil, err
	}

	bonuses := make([]models.CommissionBonus, 0, len(parts))
	for i, ancestor := range chain {
		if parts[i].IsZero() {
			continue
		}
		bonuses = append(bonuses, models.CommissionBonus{
			Recipient:     ancestor,
			TransactionID: txID,
			Amount:        parts[i],
			Level:         i + 1,
			Rate:          s.schedule.LevelShare,
			PaidAt:        now,
		})
	}
	if rootPart := parts[len(parts)-1]; !rootPart.IsZero() {
		bonuses = append(bonuses, models.CommissionBonus{
			Recipient:     root,
			TransactionID: txID,
			Amount:        rootPart,
			Level:         models.RootOverrideLevel,
			Rate:          rootShare,
			PaidAt:        now,
		})
	}
	return bonuses, nil
}

func (s *Service) append(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == models.TxCompleted && !tx.Reconciles() {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("transaction %s does not reconcile: gross %s != fee %s + commission %s + net %s",
				tx.ID.String(), tx.Gross.String(), tx.Fee.String(), tx.Commission.String(), tx.Net.String()))
	}
	if err := s.txs.Append(ctx, tx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append transaction")
	}
	return nil
}

func (s *Service) recordBonuses(ctx context.Context, bonuses []models.CommissionBonus) error {
	if len(bonuses) == 0 {
		return nil
	}
	if err := s.bonuses.AppendAll(ctx, bonuses); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bonuses")
	}
	return nil
}

// mapPurseErr translates store-level failures into caller-facing codes and
// counts the ones worth alerting on.
func (s *Service) mapPurseErr(err error) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeInsufficientBalance):
		s.metrics.IncrementInsufficientFunds()
		return err
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "a purse in the batch does not exist")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "purse batch failed")
	}
}

// bonusCredits folds bonuses into one credit per recipient. A UIN can appear
// twice, e.g. the root earning both a level share and the override.
func bonusCredits(bonuses []models.CommissionBonus) map[domain.UIN]decimal.Decimal {
	credits := make(map[domain.UIN]decimal.Decimal, len(bonuses))
	for _, b := range bonuses {
		credits[b.Recipient] = credits[b.Recipient].Add(b.Amount)
	}
	return credits
}

// batchOwners merges the fixed participants with the credit recipients,
// deduplicated, preserving encounter order.
func batchOwners(fixed []domain.UIN, credits map[domain.UIN]decimal.Decimal) []domain.UIN {
	seen := make(map[domain.UIN]struct{}, len(fixed)+len(credits))
	owners := make([]domain.UIN, 0, len(fixed)+len(credits))
	for _, uin := range fixed {
		if _, ok := seen[uin]; ok {
			continue
		}
		seen[uin] = struct{}{}
		owners = append(owners, uin)
	}
	for uin := range credits {
		if _, ok := seen[uin]; ok {
			continue
		}
		seen[uin] = struct{}{}
		owners = append(owners, uin)
	}
	return owners
}

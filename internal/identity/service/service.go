package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	identitymetrics "affinet/internal/identity/metrics"
	"affinet/internal/identity/models"
	"affinet/internal/identity/store"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/requestcontext"
)

// DefaultChainDepth is how many ancestor levels participate in commission
// distribution.
const DefaultChainDepth = 4

// Service is the referral-identity registry: UIN allocation, the referral
// tree, contact uniqueness, and ancestor/descendant reads.
type Service struct {
	store   store.IdentityStore
	tx      StoreTx
	seq     *uinSequence
	metrics *identitymetrics.Metrics
	logger  *slog.Logger

	rootMu sync.RWMutex
	root   domain.UIN

	maxDepthSeen int
}

type serviceConfig struct {
	tx      StoreTx
	metrics *identitymetrics.Metrics
	logger  *slog.Logger
	prefix  int
}

type Option func(*serviceConfig)

// WithMetrics attaches prometheus counters.
func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// WithShardPrefix sets the UIN digit prefix this registry instance issues
// under. Distinct shards use distinct prefixes so issuance never contends
// across them.
func WithShardPrefix(prefix int) Option {
	return func(c *serviceConfig) { c.prefix = prefix }
}

// WithTx overrides the transactional boundary, e.g. for a database-backed
// store.
func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

func NewService(st store.IdentityStore, opts ...Option) *Service {
	cfg := &serviceConfig{prefix: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		tx:      tx,
		seq:     newUINSequence(cfg.prefix),
		metrics: cfg.metrics,
		logger:  logger,
	}
}

// EnsureRoot creates the single tree root if it does not exist yet and
// returns it. Idempotent; subsequent calls return the existing root.
func (s *Service) EnsureRoot(ctx context.Context, contact models.Contact) (*models.Identity, error) {
	var root *models.Identity
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if existing := s.Root(); !existing.IsZero() {
			found, err := s.store.FindByUIN(txCtx, existing)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "root identity vanished")
			}
			root = found
			return nil
		}

		uin := s.seq.next()
		created, err := models.NewRootIdentity(uin, contact, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.Create(txCtx, created); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create root identity")
		}
		s.setRoot(uin)
		root = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Register allocates a UIN and attaches a new identity under its upline.
// A zero upline defaults to the root unless the role's policy requires an
// explicit one.
func (s *Service) Register(ctx context.Context, contact models.Contact, role models.Role, upline domain.UIN) (*models.Identity, error) {
	if !role.Registrable() {
		return nil, dErrors.New(dErrors.CodeValidation, "role is not registrable: "+string(role))
	}
	if upline.IsZero() && role.RequiresUpline() {
		return nil, dErrors.New(dErrors.CodeMissingUplineForRole, string(role)+" registration requires an upline")
	}

	var registered *models.Identity
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		uplineUIN := upline
		if uplineUIN.IsZero() {
			uplineUIN = s.Root()
			if uplineUIN.IsZero() {
				return dErrors.New(dErrors.CodeInternal, "registry has no root; bootstrap first")
			}
		}

		parent, err := s.store.FindByUIN(txCtx, uplineUIN)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownUpline, "upline "+uplineUIN.String()+" does not exist")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "upline lookup failed")
		}

		uin := s.seq.next()
		identity, err := models.NewIdentity(uin, contact, role, parent.UIN, parent.Depth, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}

		if err := s.store.Create(txCtx, identity); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeDuplicateContact, "email or phone is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
		}

		// The upline exists and is never deleted, so this cannot miss.
		if _, err := s.store.Execute(txCtx, parent.UIN,
			func(*models.Identity) error { return nil },
			func(p *models.Identity) {
				p.Downlines = append(p.Downlines, uin)
			}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "upline disappeared during registration")
		}

		registered = identity
		// maxDepthSeen is only touched under the registry tx.
		if identity.Depth > s.maxDepthSeen {
			s.maxDepthSeen = identity.Depth
			s.metrics.ObserveDepth(identity.Depth)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRegistered(string(role))
	s.logger.InfoContext(ctx, "identity registered",
		"uin", registered.UIN.String(),
		"role", string(role),
		"upline", registered.Upline.String(),
		"depth", registered.Depth,
	)
	return registered, nil
}

// Get returns one identity.
func (s *Service) Get(ctx context.Context, uin domain.UIN) (*models.Identity, error) {
	identity, err := s.store.FindByUIN(ctx, uin)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity "+uin.String()+" does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}
	return identity, nil
}

// AncestorChain walks upline pointers nearest-first, stopping at the root or
// a missing link. The result never contains uin itself and never exceeds
// maxDepth entries; maxDepth <= 0 selects the commission default.
func (s *Service) AncestorChain(ctx context.Context, uin domain.UIN, maxDepth int) ([]domain.UIN, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultChainDepth
	}

	identity, err := s.Get(ctx, uin)
	if err != nil {
		return nil, err
	}

	chain := make([]domain.UIN, 0, maxDepth)
	cursor := identity.Upline
	for !cursor.IsZero() && len(chain) < maxDepth {
		ancestor, err := s.store.FindByUIN(ctx, cursor)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				break
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ancestor lookup failed")
		}
		chain = append(chain, ancestor.UIN)
		cursor = ancestor.Upline
	}
	return chain, nil
}

// CreditEarnings adds a settled commission amount to the identity's lifetime
// accumulator. Called by the orchestrator after a distribution completes.
func (s *Service) CreditEarnings(ctx context.Context, uin domain.UIN, amount decimal.Decimal) error {
	_, err := s.store.Execute(ctx, uin,
		func(i *models.Identity) error { return i.CanCreditEarnings(amount) },
		func(i *models.Identity) { i.ApplyEarnings(amount) })
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity "+uin.String()+" does not exist")
		}
		return err
	}
	return nil
}

// Deactivate soft-deactivates an identity. The record stays in the tree so
// depths and chains of its downlines are unaffected.
func (s *Service) Deactivate(ctx context.Context, uin domain.UIN) (*models.Identity, error) {
	identity, err := s.store.Execute(ctx, uin,
		func(i *models.Identity) error { return i.CanDeactivate() },
		func(i *models.Identity) { i.ApplyDeactivation() })
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity "+uin.String()+" does not exist")
		}
		return nil, err
	}

	s.metrics.IncrementDeactivated()
	s.logger.InfoContext(ctx, "identity deactivated", "uin", uin.String())
	return identity, nil
}

// ReleaseContact frees an identity's email and phone for re-registration.
// Compensation for a failed onboarding: the deactivated record stays in the
// tree, but a retry with the same contact must not be rejected as a
// duplicate.
func (s *Service) ReleaseContact(ctx context.Context, uin domain.UIN) error {
	if err := s.store.ReleaseContact(ctx, uin); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity "+uin.String()+" does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "contact release failed")
	}
	return nil
}

// Root returns the root UIN, or zero before bootstrap.
func (s *Service) Root() domain.UIN {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.root
}

func (s *Service) setRoot(uin domain.UIN) {
	s.rootMu.Lock()
	defer s.rootMu.Unlock()
	s.root = uin
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	affiliatemetrics "affinet/internal/affiliate/metrics"
	"affinet/internal/affiliate/store"
	"affinet/internal/affiliate/token"
	identityservice "affinet/internal/identity/service"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	audit "affinet/pkg/platform/audit"
	auditpublisher "affinet/pkg/platform/audit/publisher"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/requestcontext"
)

// DefaultBindTTL is how long a visitor's referrer binding survives between
// clicking a link and completing onboarding.
const DefaultBindTTL = 7 * 24 * time.Hour

// Service generates referral links and attributes clicks to uplines. The
// token carries the upline; the click store carries the visitor binding the
// onboarding form reads back.
type Service struct {
	tokens   *token.Service
	clicks   store.ClickStore
	registry *identityservice.Service
	baseURL  string
	bindTTL  time.Duration
	metrics  *affiliatemetrics.Metrics
	auditor  *auditpublisher.Publisher
	logger   *slog.Logger
}

type serviceConfig struct {
	bindTTL time.Duration
	metrics *affiliatemetrics.Metrics
	auditor *auditpublisher.Publisher
	logger  *slog.Logger
}

type Option func(*serviceConfig)

// WithBindTTL overrides how long visitor bindings live.
func WithBindTTL(ttl time.Duration) Option {
	return func(c *serviceConfig) { c.bindTTL = ttl }
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *affiliatemetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithAuditor attaches the audit publisher.
func WithAuditor(p *auditpublisher.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

func NewService(tokens *token.Service, clicks store.ClickStore, registry *identityservice.Service, baseURL string, opts ...Option) *Service {
	cfg := serviceConfig{
		bindTTL: DefaultBindTTL,
		auditor: auditpublisher.Nop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Service{
		tokens:   tokens,
		clicks:   clicks,
		registry: registry,
		baseURL:  baseURL,
		bindTTL:  cfg.bindTTL,
		metrics:  cfg.metrics,
		auditor:  cfg.auditor,
		logger:   cfg.logger,
	}
}

// Link returns a shareable referral URL for uin. Deactivated identities
// cannot generate new links; their previously issued links keep working
// until the token expires.
func (s *Service) Link(ctx context.Context, uin domain.UIN) (string, error) {
	identity, err := s.registry.Get(ctx, uin)
	if err != nil {
		return "", err
	}
	if !identity.Active {
		return "", dErrors.New(dErrors.CodeInactiveAccount, "deactivated identity cannot issue referral links")
	}

	signed, err := s.tokens.Issue(uin, requestcontext.Now(ctx))
	if err != nil {
		return "", err
	}

	s.metrics.IncrementLinksIssued()
	_ = s.auditor.Emit(ctx, audit.Event{
		Actor:   uin,
		Subject: uin.String(),
		Action:  string(audit.EventAffiliateLinkMade),
	})
	return s.baseURL + "/r?ref=" + url.QueryEscape(signed), nil
}

// Attribute resolves a clicked referral token: verifies it, bumps the
// upline's click counter, and binds the visitor to the upline so onboarding
// can pre-fill it. Returns the upline the click belongs to.
//
// A deactivated upline still attributes; the registry accepts registrations
// under inactive identities and the tree never rewires.
func (s *Service) Attribute(ctx context.Context, rawToken string, visitorID string) (domain.UIN, error) {
	upline, err := s.tokens.Verify(rawToken)
	if err != nil {
		s.metrics.IncrementInvalidTokens()
		return domain.UIN(""), err
	}
	if _, err := s.registry.Get(ctx, upline); err != nil {
		return domain.UIN(""), err
	}

	total, err := s.clicks.RecordClick(ctx, upline)
	if err != nil {
		return domain.UIN(""), dErrors.Wrap(err, dErrors.CodeInternal, "failed to record referral click")
	}
	if visitorID != "" {
		if err := s.clicks.Bind(ctx, visitorID, upline, s.bindTTL); err != nil {
			return domain.UIN(""), dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind visitor to upline")
		}
	}

	s.metrics.IncrementClicks()
	_ = s.auditor.Emit(ctx, audit.Event{
		Actor:   upline,
		Subject: upline.String(),
		Action:  string(audit.EventAffiliateAttributed),
	})
	s.logger.InfoContext(ctx, "referral click attributed",
		"upline", upline.String(),
		"total_clicks", total,
	)
	return upline, nil
}

// UplineFor returns the upline a visitor was bound to, if the binding is
// still live.
func (s *Service) UplineFor(ctx context.Context, visitorID string) (domain.UIN, error) {
	upline, err := s.clicks.BoundUpline(ctx, visitorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.UIN(""), dErrors.New(dErrors.CodeNotFound, "no referral binding for visitor")
		}
		return domain.UIN(""), dErrors.Wrap(err, dErrors.CodeInternal, "failed to read visitor binding")
	}
	return upline, nil
}

// Clicks returns the lifetime click count for an upline's links.
func (s *Service) Clicks(ctx context.Context, uin domain.UIN) (int64, error) {
	n, err := s.clicks.Clicks(ctx, uin)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read click counter")
	}
	return n, nil
}

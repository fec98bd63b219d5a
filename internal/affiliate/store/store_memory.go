package store

import (
	"context"
	"sync"
	"time"

	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/requestcontext"
)

type binding struct {
	upline    domain.UIN
	expiresAt time.Time
}

// InMemory is the dev/test ClickStore. Bindings honor their TTL against the
// request clock, so tests can advance time instead of sleeping.
type InMemory struct {
	mu       sync.RWMutex
	clicks   map[domain.UIN]int64
	bindings map[string]binding
}

func NewInMemory() *InMemory {
	return &InMemory{
		clicks:   make(map[domain.UIN]int64),
		bindings: make(map[string]binding),
	}
}

func (s *InMemory) RecordClick(_ context.Context, upline domain.UIN) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks[upline]++
	return s.clicks[upline], nil
}

func (s *InMemory) Clicks(_ context.Context, upline domain.UIN) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clicks[upline], nil
}

func (s *InMemory) Bind(ctx context.Context, visitorID string, upline domain.UIN, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[visitorID] = binding{
		upline:    upline,
		expiresAt: requestcontext.Now(ctx).Add(ttl),
	}
	return nil
}

func (s *InMemory) BoundUpline(ctx context.Context, visitorID string) (domain.UIN, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[visitorID]
	if !ok || requestcontext.Now(ctx).After(b.expiresAt) {
		return domain.UIN(""), sentinel.ErrNotFound
	}
	return b.upline, nil
}

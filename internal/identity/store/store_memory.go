package store

import (
	"context"
	"sync"

	"affinet/internal/identity/models"
	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
)

// InMemory keeps identities in process maps with O(1) contact side indices.
// It favors clarity over performance; reads return copies so callers never
// alias store-internal state.
type InMemory struct {
	mu         sync.RWMutex
	identities map[domain.UIN]*models.Identity
	byEmail    map[string]domain.UIN
	byPhone    map[string]domain.UIN
}

func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[domain.UIN]*models.Identity),
		byEmail:    make(map[string]domain.UIN),
		byPhone:    make(map[string]domain.UIN),
	}
}

func (s *InMemory) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[identity.UIN]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.byEmail[identity.Email]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.byPhone[identity.Phone]; taken {
		return sentinel.ErrConflict
	}

	s.identities[identity.UIN] = identity.Clone()
	s.byEmail[identity.Email] = identity.UIN
	s.byPhone[identity.Phone] = identity.UIN
	return nil
}

func (s *InMemory) FindByUIN(_ context.Context, uin domain.UIN) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[uin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return identity.Clone(), nil
}

func (s *InMemory) Execute(_ context.Context, uin domain.UIN, validate func(*models.Identity) error, mutate func(*models.Identity)) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[uin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(identity); err != nil {
		return nil, err
	}
	mutate(identity)
	return identity.Clone(), nil
}

func (s *InMemory) ReleaseContact(_ context.Context, uin domain.UIN) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[uin]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Only drop index entries still owned by this identity; a later
	// registration may have reclaimed the tuple already.
	if owner, indexed := s.byEmail[identity.Email]; indexed && owner == uin {
		delete(s.byEmail, identity.Email)
	}
	if owner, indexed := s.byPhone[identity.Phone]; indexed && owner == uin {
		delete(s.byPhone, identity.Phone)
	}
	return nil
}

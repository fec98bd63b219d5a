package store

import (
	"context"

	"affinet/internal/identity/models"
	"affinet/pkg/domain"
)

// IdentityStore abstracts identity persistence so a durable backend can be
// substituted without touching registry logic. Implementations must enforce
// contact uniqueness inside Create and serialize Execute mutations per UIN.
type IdentityStore interface {
	// Create persists a new identity. Returns sentinel.ErrConflict when the
	// email or phone is already indexed, sentinel.ErrConflict also covers a
	// UIN collision (which indicates an allocator bug, not caller error).
	Create(ctx context.Context, identity *models.Identity) error

	// FindByUIN returns a copy of the identity, or sentinel.ErrNotFound.
	FindByUIN(ctx context.Context, uin domain.UIN) (*models.Identity, error)

	// Execute atomically validates then mutates one identity under the
	// store's lock, returning a copy of the updated record. The validate
	// callback may reject the mutation; mutate runs only when validate
	// returned nil.
	Execute(ctx context.Context, uin domain.UIN, validate func(*models.Identity) error, mutate func(*models.Identity)) (*models.Identity, error)

	// ReleaseContact drops the email and phone index entries for the
	// identity so the contact tuple can be registered again. The record
	// itself stays. Returns sentinel.ErrNotFound for an unknown UIN.
	ReleaseContact(ctx context.Context, uin domain.UIN) error
}

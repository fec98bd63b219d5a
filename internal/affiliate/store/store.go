package store

import (
	"context"
	"time"

	"affinet/pkg/domain"
)

// ClickStore tracks referral-link activity. RecordClick increments the
// upline's counter and returns the new total; Bind remembers which upline a
// visitor arrived through so the onboarding form can pre-fill it.
type ClickStore interface {
	RecordClick(ctx context.Context, upline domain.UIN) (int64, error)
	Clicks(ctx context.Context, upline domain.UIN) (int64, error)
	Bind(ctx context.Context, visitorID string, upline domain.UIN, ttl time.Duration) error
	BoundUpline(ctx context.Context, visitorID string) (domain.UIN, error)
}

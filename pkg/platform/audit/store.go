package audit

import "context"

// Store persists audit events. Implementations must tolerate duplicate
// delivery; the Kafka pipeline is at-least-once.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

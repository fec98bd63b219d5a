package service

import (
	"context"
	"sync"
	"time"

	dErrors "affinet/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for registry mutations.
// Registration touches the UIN sequence, the contact indices, and the
// upline's downline list; all of it must be observed atomically.
// Implementations may wrap a database transaction or, in-memory, a lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultRegistryTxTimeout bounds how long a registry mutation may hold the
// boundary.
const defaultRegistryTxTimeout = 5 * time.Second

// inMemoryStoreTx serializes registry mutations with a single mutex.
// Registrations are rare relative to payments, so one lock is enough; a
// sharded variant would also have to serialize the shared UIN sequence
// anyway.
type inMemoryStoreTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{timeout: defaultRegistryTxTimeout}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry transaction aborted: context cancelled")
	}
	return fn(ctx)
}

package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "affinet/pkg/platform/audit"
	"affinet/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Subject: "1A2",
		Action:  string(audit.EventIdentityRegistered),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "1A2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventIdentityRegistered), events[0].Action)
	assert.Equal(t, audit.CategoryRegistry, events[0].Category, "category derived from action")
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp stamped on emit")
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	event := audit.Event{
		Subject: "order-42",
		Action:  string(audit.EventEscrowReleased),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, err := store.ListBySubject(context.Background(), "order-42")
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	pub.Close()
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: "1A3",
			Action:  string(audit.EventDepositSettled),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), "1A3")
	require.NoError(t, err)
	assert.Len(t, events, 10, "close drains every buffered event")
}

func TestPublisher_FullBufferDeliversInline(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	for range 50 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Subject: "1A4",
			Action:  string(audit.EventPaymentSettled),
		}))
	}
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "1A4")
	require.NoError(t, err)
	assert.Len(t, events, 50, "overflow falls back to inline delivery, nothing dropped")
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestPublisher_FansOutToSinks(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject: "1A5",
		Action:  string(audit.EventTransferSettled),
	}))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "1A5", sink.events[0].Subject)
}

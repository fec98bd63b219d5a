// Package publisher emits audit events to a primary store and any number of
// secondary sinks (e.g. a Kafka topic). Emission is synchronous by default;
// an async buffer decouples hot paths from sink latency.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "affinet/pkg/platform/audit"
	"affinet/pkg/requestcontext"
)

// Sink receives a copy of every emitted event.
type Sink interface {
	Append(ctx context.Context, event audit.Event) error
}

type Publisher struct {
	store audit.Store
	sinks []Sink
	log   *slog.Logger

	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches emission to a buffered background goroutine.
// Emit never blocks on sink latency; Close drains the buffer.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithSink attaches an additional delivery target.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sink)
	}
}

// WithLogger attaches a structured logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. Zero timestamps are stamped from the request clock;
// an empty category is derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return nil
		default:
			// Buffer full. Audit must not stall payments; deliver inline.
			p.deliver(context.WithoutCancel(ctx), event)
			return nil
		}
	}

	p.deliver(ctx, event)
	return nil
}

// List returns events recorded against a subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains any buffered events and stops the background goroutine.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.log.Error("audit store append failed",
			"action", event.Action, "subject", event.Subject, "error", err)
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.log.Error("audit sink delivery failed",
				"action", event.Action, "subject", event.Subject, "error", err)
		}
	}
}

// Nop returns a publisher that stores into a discard sink; handy for tests
// and optional wiring.
func Nop() *Publisher {
	return NewPublisher(discardStore{})
}

type discardStore struct{}

func (discardStore) Append(context.Context, audit.Event) error { return nil }
func (discardStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}
func (discardStore) ListRecent(context.Context, int) ([]audit.Event, error) { return nil, nil }

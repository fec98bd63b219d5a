// Package kafka delivers audit events to a Kafka topic. The topic is the
// tamper-proof source of truth for financial events; PostgreSQL is a
// queryable materialization fed by the consumer in this package.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "affinet/pkg/platform/audit"
)

// DefaultTopic is where audit events land unless configured otherwise.
const DefaultTopic = "affinet.audit.events"

// eventIDHeader carries the event id used for idempotent materialization.
const eventIDHeader = "event_id"

// wireEvent is the JSON shape on the topic.
type wireEvent struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	Amount    string    `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Sink produces audit events to a topic. Production is asynchronous; the
// client's internal buffer absorbs bursts, and delivery failures are logged,
// never propagated into the hot path.
type Sink struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewSink(client *kgo.Client, topic string, log *slog.Logger) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sink{client: client, topic: topic, log: log}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Category:  string(event.Category),
		Timestamp: event.Timestamp,
		Actor:     event.Actor.String(),
		Subject:   event.Subject,
		Action:    event.Action,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		// Key by subject so all events for one purse or correlation stay
		// ordered within a partition.
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: eventIDHeader, Value: []byte(uuid.NewString())},
		},
	}
	s.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			s.log.Error("audit event produce failed",
				"topic", r.Topic, "action", event.Action, "error", err)
		}
	})
	return nil
}

// Flush blocks until buffered records are delivered, for shutdown.
func (s *Sink) Flush(ctx context.Context) error {
	return s.client.Flush(ctx)
}

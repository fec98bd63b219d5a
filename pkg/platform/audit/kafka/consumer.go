package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "affinet/pkg/domain"
	audit "affinet/pkg/platform/audit"
	auditpg "affinet/pkg/platform/audit/store/postgres"
)

// Consumer polls the audit topic and materializes events into PostgreSQL.
// Delivery is at-least-once; the event id header deduplicates replays.
type Consumer struct {
	client *kgo.Client
	store  *auditpg.Store
	log    *slog.Logger
}

func NewConsumer(client *kgo.Client, store *auditpg.Store, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{client: client, store: store, log: log}
}

// Run polls until ctx is cancelled. Malformed records are logged and
// skipped; store failures abort the loop so offsets are not committed past
// an unmaterialized event.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.log.Error("audit fetch failed",
					"topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
			}
		}

		var failed error
		fetches.EachRecord(func(record *kgo.Record) {
			if failed != nil {
				return
			}
			if err := c.materialize(ctx, record); err != nil {
				failed = err
			}
		})
		if failed != nil {
			return failed
		}
	}
}

func (c *Consumer) materialize(ctx context.Context, record *kgo.Record) error {
	var wire wireEvent
	if err := json.Unmarshal(record.Value, &wire); err != nil {
		c.log.Error("skipping malformed audit record",
			"topic", record.Topic, "offset", record.Offset, "error", err)
		return nil
	}

	eventID := uuid.New()
	for _, header := range record.Headers {
		if header.Key != eventIDHeader {
			continue
		}
		if parsed, err := uuid.Parse(string(header.Value)); err == nil {
			eventID = parsed
		}
	}

	return c.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.EventCategory(wire.Category),
		Timestamp: wire.Timestamp,
		Actor:     id.UIN(wire.Actor),
		Subject:   wire.Subject,
		Action:    wire.Action,
		Amount:    wire.Amount,
		Currency:  wire.Currency,
		Reason:    wire.Reason,
		RequestID: wire.RequestID,
	})
}

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"affinet/pkg/domain"
	audit "affinet/pkg/platform/audit"
	auditpg "affinet/pkg/platform/audit/store/postgres"
	"affinet/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *auditpg.Store
}

func TestAuditPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.pg.Apply(context.Background(), auditpg.Schema))
	s.store = auditpg.New(s.pg.DB)
}

func (s *AuditPostgresSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(context.Background(), "TRUNCATE audit_events")
	s.Require().NoError(err)
}

func (s *AuditPostgresSuite) event(subject, action string) audit.Event {
	return audit.Event{
		Category:  audit.CategoryFinancial,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Actor:     domain.UIN("5B1"),
		Subject:   subject,
		Action:    action,
		Amount:    "100",
		Currency:  "CRD",
	}
}

func (s *AuditPostgresSuite) TestAppendAndListBySubject() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, s.event("tx-1", "payment_settled")))
	s.Require().NoError(s.store.Append(ctx, s.event("tx-1", "commission_distributed")))
	s.Require().NoError(s.store.Append(ctx, s.event("tx-2", "deposit_settled")))

	events, err := s.store.ListBySubject(ctx, "tx-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	for _, e := range events {
		s.Equal("tx-1", e.Subject)
		s.Equal(domain.UIN("5B1"), e.Actor)
	}
}

func (s *AuditPostgresSuite) TestAppendWithID_Deduplicates() {
	ctx := context.Background()
	eventID := uuid.New()
	ev := s.event("tx-replay", "escrow_released")

	s.Require().NoError(s.store.AppendWithID(ctx, eventID, ev))
	// Redelivery of the same record must be harmless.
	s.Require().NoError(s.store.AppendWithID(ctx, eventID, ev))

	events, err := s.store.ListBySubject(ctx, "tx-replay")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *AuditPostgresSuite) TestListRecent() {
	ctx := context.Background()
	for i, subject := range []string{"a", "b", "c"} {
		ev := s.event(subject, "payment_settled")
		ev.Timestamp = ev.Timestamp.Add(time.Duration(i) * time.Second)
		s.Require().NoError(s.store.Append(ctx, ev))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("c", events[0].Subject, "newest first")
}

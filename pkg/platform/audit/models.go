package audit

import (
	"time"

	id "affinet/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryFinancial covers value movements. These require tamper-proof
	// storage and long retention; Kafka is the source of truth.
	CategoryFinancial EventCategory = "financial"

	// CategoryRegistry covers referral-tree changes: registrations,
	// deactivations, affiliate attribution.
	CategoryRegistry EventCategory = "registry"

	// CategoryOperations covers routine activity useful for debugging.
	// These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Actor is the UIN that triggered the action; zero for system actions.
	Actor id.UIN
	// Subject identifies what was acted on: a UIN, a transaction id, or an
	// escrow correlation id.
	Subject string
	Action  string
	// Amount is the native-unit amount for financial events, as a decimal
	// string so no float ever touches an audit record.
	Amount    string
	Currency  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Registry events
	EventIdentityRegistered  AuditEvent = "identity_registered"
	EventIdentityDeactivated AuditEvent = "identity_deactivated"
	EventOnboardCompleted    AuditEvent = "onboard_completed"
	EventOnboardRolledBack   AuditEvent = "onboard_rolled_back"
	EventAffiliateAttributed AuditEvent = "affiliate_attributed"

	// Financial events
	EventPurseCreated          AuditEvent = "purse_created"
	EventDepositSettled        AuditEvent = "deposit_settled"
	EventWithdrawalSettled     AuditEvent = "withdrawal_settled"
	EventTransferSettled       AuditEvent = "transfer_settled"
	EventPaymentSettled        AuditEvent = "payment_settled"
	EventCommissionDistributed AuditEvent = "commission_distributed"
	EventEscrowCreated         AuditEvent = "escrow_created"
	EventEscrowReleased        AuditEvent = "escrow_released"
	EventEscrowCancelled       AuditEvent = "escrow_cancelled"
	EventReleaseLostRace       AuditEvent = "escrow_release_lost_race"

	// Operations events
	EventStatsQueried      AuditEvent = "stats_queried"
	EventValidationFailed  AuditEvent = "validation_failed"
	EventAffiliateLinkMade AuditEvent = "affiliate_link_generated"
)

// eventCategories maps each audit event to its category. Financial events
// need tamper-proof storage; registry events track tree lineage; operations
// events can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityRegistered:  CategoryRegistry,
	EventIdentityDeactivated: CategoryRegistry,
	EventOnboardCompleted:    CategoryRegistry,
	EventOnboardRolledBack:   CategoryRegistry,
	EventAffiliateAttributed: CategoryRegistry,

	EventPurseCreated:          CategoryFinancial,
	EventDepositSettled:        CategoryFinancial,
	EventWithdrawalSettled:     CategoryFinancial,
	EventTransferSettled:       CategoryFinancial,
	EventPaymentSettled:        CategoryFinancial,
	EventCommissionDistributed: CategoryFinancial,
	EventEscrowCreated:         CategoryFinancial,
	EventEscrowReleased:        CategoryFinancial,
	EventEscrowCancelled:       CategoryFinancial,
	EventReleaseLostRace:       CategoryFinancial,

	EventStatsQueried:      CategoryOperations,
	EventValidationFailed:  CategoryOperations,
	EventAffiliateLinkMade: CategoryOperations,
}

// Category returns the EventCategory for this audit event. Unknown events
// default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

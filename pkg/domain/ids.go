// Package domain defines the typed identifiers shared across features.
// Distinct types keep a UIN from ever being passed where a transaction ID is
// expected; the compiler enforces what code review would otherwise have to.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "affinet/pkg/domain-errors"
)

// UIN is a participant identifier: digit prefix, upline letter A-Z, and a
// 1-9999 sequence (e.g. "1A1", "3Z9999"). Issuance order is its only
// semantic. The zero value means "no identity" (the root has no upline).
type UIN string

// SystemUIN is the counterparty recorded on transactions that bring value
// into or out of the system (deposits, withdrawals). It is never registered
// and owns no purse.
const SystemUIN UIN = "SYSTEM"

var uinPattern = regexp.MustCompile(`^[1-9][0-9]*[A-Z][1-9][0-9]{0,3}$`)

// ParseUIN validates an externally supplied UIN. The system sentinel is
// rejected here: it is not addressable from outside.
func ParseUIN(raw string) (UIN, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "uin must not be empty")
	}
	if len(raw) > 16 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "uin too long")
	}
	if !uinPattern.MatchString(raw) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed uin")
	}
	return UIN(raw), nil
}

func (u UIN) String() string { return string(u) }

// IsZero reports whether the UIN is unset.
func (u UIN) IsZero() bool { return u == "" }

// IsSystem reports whether the UIN is the system counterparty sentinel.
func (u UIN) IsSystem() bool { return u == SystemUIN }

// TransactionID identifies one entry in the append-only transaction log.
type TransactionID uuid.UUID

// NewTransactionID allocates a fresh transaction ID.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

// ParseTransactionID validates an externally supplied transaction ID.
func ParseTransactionID(raw string) (TransactionID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TransactionID{}, dErrors.New(dErrors.CodeInvalidInput, "transaction id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return TransactionID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed transaction id")
	}
	if parsed == uuid.Nil {
		return TransactionID{}, dErrors.New(dErrors.CodeInvalidInput, "transaction id must not be nil")
	}
	return TransactionID(parsed), nil
}

func (t TransactionID) String() string { return uuid.UUID(t).String() }

// IsZero reports whether the ID is unset.
func (t TransactionID) IsZero() bool { return uuid.UUID(t) == uuid.Nil }

// CorrelationID ties an escrow hold to its eventual release. It is supplied
// by the caller (typically an order or delivery reference), so the only
// constraints are shape, not format.
type CorrelationID string

// ParseCorrelationID validates an externally supplied correlation ID.
func ParseCorrelationID(raw string) (CorrelationID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "correlation id must not be empty")
	}
	if len(raw) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "correlation id too long")
	}
	return CorrelationID(raw), nil
}

func (c CorrelationID) String() string { return string(c) }

// IsZero reports whether the correlation ID is unset.
func (c CorrelationID) IsZero() bool { return c == "" }

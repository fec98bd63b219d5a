package models

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

// Role controls upline policy at registration time.
type Role string

const (
	// RoleRoot is held by exactly one identity, created at bootstrap. It is
	// not registrable through the public API.
	RoleRoot Role = "root"

	// RoleMember and RoleMerchant may register without an upline; they are
	// attached to the root.
	RoleMember   Role = "member"
	RoleMerchant Role = "merchant"

	// RolePartner joins through a referral and must name its upline.
	RolePartner Role = "partner"
)

// Registrable reports whether the role may be used on the registration API.
func (r Role) Registrable() bool {
	switch r {
	case RoleMember, RoleMerchant, RolePartner:
		return true
	}
	return false
}

// RequiresUpline reports whether the role's policy demands an explicit
// upline instead of defaulting to the root.
func (r Role) RequiresUpline() bool {
	return r == RolePartner
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Contact is the unique-contact tuple supplied at registration. Email and
// phone are each unique across all identities.
type Contact struct {
	Email       string
	Phone       string
	DisplayName string
}

// Normalize canonicalizes the contact for indexing: emails compare
// case-insensitively, phones without spacing.
func (c Contact) Normalize() Contact {
	return Contact{
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:       strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(c.Phone)),
		DisplayName: strings.TrimSpace(c.DisplayName),
	}
}

// Validate checks shape only; uniqueness is the store's concern.
func (c Contact) Validate() error {
	if c.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed email")
	}
	if c.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if !phonePattern.MatchString(c.Phone) {
		return dErrors.New(dErrors.CodeValidation, "malformed phone")
	}
	if len(c.DisplayName) > 128 {
		return dErrors.New(dErrors.CodeValidation, "display name must be 128 characters or less")
	}
	return nil
}

// Identity is the aggregate root for one participant in the referral tree.
//
// Invariants:
//   - UIN never changes after construction
//   - Upline is fixed at registration; only the root has none
//   - Depth == upline depth + 1 (root is 0)
//   - Downlines only grows; identities are soft-deactivated, never deleted
//   - LifetimeEarnings only grows, and only via commission credits
//
// Cycle-freedom is structural: an upline must already exist when its
// downline registers, so no chain of upline pointers can revisit a node.
type Identity struct {
	UIN              domain.UIN      `json:"uin"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	DisplayName      string          `json:"display_name"`
	Role             Role            `json:"role"`
	Upline           domain.UIN      `json:"upline,omitempty"`
	Downlines        []domain.UIN    `json:"downlines"`
	Depth            int             `json:"depth"`
	RegisteredAt     time.Time       `json:"registered_at"`
	Active           bool            `json:"active"`
	LifetimeEarnings decimal.Decimal `json:"lifetime_earnings"`
}

// NewIdentity builds a non-root identity under the given upline.
func NewIdentity(uin domain.UIN, contact Contact, role Role, upline domain.UIN, uplineDepth int, now time.Time) (*Identity, error) {
	if !role.Registrable() {
		return nil, dErrors.New(dErrors.CodeValidation, "role is not registrable: "+string(role))
	}
	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	if upline.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "non-root identity requires an upline")
	}
	return &Identity{
		UIN:              uin,
		Email:            contact.Email,
		Phone:            contact.Phone,
		DisplayName:      contact.DisplayName,
		Role:             role,
		Upline:           upline,
		Depth:            uplineDepth + 1,
		RegisteredAt:     now,
		Active:           true,
		LifetimeEarnings: decimal.Zero,
	}, nil
}

// NewRootIdentity builds the single tree root at depth 0.
func NewRootIdentity(uin domain.UIN, contact Contact, now time.Time) (*Identity, error) {
	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	return &Identity{
		UIN:              uin,
		Email:            contact.Email,
		Phone:            contact.Phone,
		DisplayName:      contact.DisplayName,
		Role:             RoleRoot,
		Depth:            0,
		RegisteredAt:     now,
		Active:           true,
		LifetimeEarnings: decimal.Zero,
	}, nil
}

// IsRoot reports whether this identity is the tree root.
func (i *Identity) IsRoot() bool {
	return i.Role == RoleRoot
}

// CanDeactivate checks the transition; the root can never be deactivated
// because it is the sink for unfilled commission levels.
func (i *Identity) CanDeactivate() error {
	if i.IsRoot() {
		return dErrors.New(dErrors.CodeInvariantViolation, "root identity cannot be deactivated")
	}
	if !i.Active {
		return dErrors.New(dErrors.CodeConflict, "identity is already inactive")
	}
	return nil
}

// ApplyDeactivation soft-deactivates; the identity stays in the tree so
// downline depths and ancestor chains remain stable.
func (i *Identity) ApplyDeactivation() {
	i.Active = false
}

// CanCreditEarnings checks a commission credit amount.
func (i *Identity) CanCreditEarnings(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "earnings credit must not be negative")
	}
	return nil
}

// ApplyEarnings adds a completed commission credit to the lifetime
// accumulator. Callers must have rounded the amount already.
func (i *Identity) ApplyEarnings(amount decimal.Decimal) {
	i.LifetimeEarnings = i.LifetimeEarnings.Add(amount)
}

// Clone returns an independent copy so store reads never alias internal
// state.
func (i *Identity) Clone() *Identity {
	cp := *i
	cp.Downlines = append([]domain.UIN(nil), i.Downlines...)
	return &cp
}

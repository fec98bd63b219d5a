package models

import (
	"time"

	"github.com/shopspring/decimal"

	"affinet/pkg/domain"
)

// RootOverrideLevel marks the bonus entry carrying the root's fixed
// override share plus any levels left unfilled by a short ancestor chain.
// Ancestor entries use levels 1 through the schedule's level count.
const RootOverrideLevel = 0

// CommissionBonus records one recipient's cut of a transaction's commission
// pool.
type CommissionBonus struct {
	Recipient     domain.UIN           `json:"recipient"`
	TransactionID domain.TransactionID `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Level         int                  `json:"level"`
	Rate          decimal.Decimal      `json:"rate"`
	PaidAt        time.Time            `json:"paid_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "REQUESTED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutRejected   PayoutStatus = "REJECTED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

type PayoutAction string

const (
	PayoutActionApprove  PayoutAction = "APPROVE"
	PayoutActionComplete PayoutAction = "COMPLETE"
	PayoutActionReject   PayoutAction = "REJECT"
	PayoutActionCancel   PayoutAction = "CANCEL"
)

var payoutTransitions = map[PayoutStatus]map[PayoutAction]PayoutStatus{
	PayoutRequested: {
		PayoutActionApprove: PayoutProcessing,
		PayoutActionReject:  PayoutRejected,
		PayoutActionCancel:  PayoutCancelled,
	},
	PayoutProcessing: {
		PayoutActionComplete: PayoutCompleted,
		PayoutActionReject:   PayoutRejected,
	},
}

// Next returns the status reached by applying action, or false if the
// transition is not allowed.
func (s PayoutStatus) Next(action PayoutAction) (PayoutStatus, bool) {
	next, ok := payoutTransitions[s][action]
	return next, ok
}

// Payout is a withdrawal request against a wallet's available balance.
// The amount is moved into the wallet's locked bucket at request time.
type Payout struct {
	Id              string          `db:"id" json:"id"`
	WalletId        string          `db:"wallet_id" json:"wallet_id"`
	OwnerType       OwnerType       `db:"owner_type" json:"owner_type"`
	OwnerId         string          `db:"owner_id" json:"owner_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          PayoutStatus    `db:"status" json:"status"`
	SettlementRef   string          `db:"settlement_ref" json:"settlement_ref,omitempty"`
	RejectionReason string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RequestedAt     time.Time       `db:"requested_at" json:"requested_at"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	Version         int64           `db:"version" json:"version"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

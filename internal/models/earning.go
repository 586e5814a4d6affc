package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EarningStatus string

const (
	EarningPending   EarningStatus = "PENDING"
	EarningCleared   EarningStatus = "CLEARED"
	EarningOnHold    EarningStatus = "ON_HOLD"
	EarningCancelled EarningStatus = "CANCELLED"
)

type EarningEvent string

const (
	EarningEventClear   EarningEvent = "clear"
	EarningEventHold    EarningEvent = "hold"
	EarningEventRelease EarningEvent = "release"
	EarningEventCancel  EarningEvent = "cancel"
)

var earningTransitions = map[EarningStatus]map[EarningEvent]EarningStatus{
	EarningPending: {
		EarningEventClear:  EarningCleared,
		EarningEventHold:   EarningOnHold,
		EarningEventCancel: EarningCancelled,
	},
	EarningOnHold: {
		EarningEventRelease: EarningPending,
		EarningEventCancel:  EarningCancelled,
	},
	EarningCleared: {
		EarningEventCancel: EarningCancelled,
	},
}

// Next returns the status reached by applying event, or false if the
// transition is not allowed.
func (s EarningStatus) Next(event EarningEvent) (EarningStatus, bool) {
	next, ok := earningTransitions[s][event]
	return next, ok
}

// Earning is the platform/company/agent split for one delivered parcel.
// At most one exists per parcel.
type Earning struct {
	Id                     string          `db:"id" json:"id"`
	ParcelId               string          `db:"parcel_id" json:"parcel_id"`
	GroupId                string          `db:"group_id" json:"group_id,omitempty"`
	CompanyId              string          `db:"company_id" json:"company_id"`
	AgentId                string          `db:"agent_id" json:"agent_id,omitempty"`
	OrderAmount            decimal.Decimal `db:"order_amount" json:"order_amount"`
	PlatformCommissionRate decimal.Decimal `db:"platform_commission_rate" json:"platform_commission_rate"`
	PlatformCommission     decimal.Decimal `db:"platform_commission" json:"platform_commission"`
	CompanyEarning         decimal.Decimal `db:"company_earning" json:"company_earning"`
	AgentCommissionRate    decimal.Decimal `db:"agent_commission_rate" json:"agent_commission_rate"`
	AgentEarning           decimal.Decimal `db:"agent_earning" json:"agent_earning"`
	CompanyNetEarning      decimal.Decimal `db:"company_net_earning" json:"company_net_earning"`
	AgentBonus             decimal.Decimal `db:"agent_bonus" json:"agent_bonus"`
	CustomerTip            decimal.Decimal `db:"customer_tip" json:"customer_tip"`
	Status                 EarningStatus   `db:"status" json:"status"`
	CancelReason           string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	ClearedAt              *time.Time      `db:"cleared_at" json:"cleared_at,omitempty"`
	CancelledAt            *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
}

// AgentPayable is what the agent wallet receives for this earning.
func (e *Earning) AgentPayable() decimal.Decimal {
	return e.AgentEarning.Add(e.AgentBonus).Add(e.CustomerTip)
}

// Credits lists the wallet credits an earning posts, in a fixed order.
// Zero-amount credits are left out.
func (e *Earning) Credits() []WalletCredit {
	credits := []WalletCredit{
		{Owner: PlatformOwner(), Amount: e.PlatformCommission},
		{Owner: WalletOwner{Type: OwnerCompany, Id: e.CompanyId}, Amount: e.CompanyNetEarning},
	}
	if e.AgentId != "" {
		credits = append(credits, WalletCredit{Owner: WalletOwner{Type: OwnerAgent, Id: e.AgentId}, Amount: e.AgentPayable()})
	}

	out := credits[:0]
	for _, c := range credits {
		if c.Amount.IsPositive() {
			out = append(out, c)
		}
	}
	return out
}

// WalletCredit is one leg of an earning posting.
type WalletCredit struct {
	Owner  WalletOwner
	Amount decimal.Decimal
}

// PlatformRevenue summarizes platform commission over a window.
type PlatformRevenue struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	EarningCount    int             `json:"earning_count"`
	OrderVolume     decimal.Decimal `json:"order_volume"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

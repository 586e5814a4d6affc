package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ParcelStatus string

const (
	ParcelBooked    ParcelStatus = "BOOKED"
	ParcelPickedUp  ParcelStatus = "PICKED_UP"
	ParcelAtDepot   ParcelStatus = "AT_DEPOT"
	ParcelInTransit ParcelStatus = "IN_TRANSIT"
	ParcelDelivered ParcelStatus = "DELIVERED"
	ParcelCancelled ParcelStatus = "CANCELLED"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = ""
	RefundRequested RefundStatus = "REQUESTED"
	RefundCompleted RefundStatus = "COMPLETED"
)

var parcelTransitions = map[ParcelStatus][]ParcelStatus{
	ParcelBooked:    {ParcelPickedUp, ParcelAtDepot, ParcelInTransit, ParcelDelivered, ParcelCancelled},
	ParcelPickedUp:  {ParcelAtDepot, ParcelInTransit, ParcelDelivered, ParcelCancelled},
	ParcelAtDepot:   {ParcelInTransit, ParcelDelivered},
	ParcelInTransit: {ParcelDelivered},
}

// CanMoveTo reports whether a parcel may go from s to next.
func (s ParcelStatus) CanMoveTo(next ParcelStatus) bool {
	for _, allowed := range parcelTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Parcel is the slice of the parcel record the consolidation core reads and
// writes. Delivery confirmation itself (OTP, signature) lives elsewhere.
type Parcel struct {
	Id                 string          `db:"id" json:"id"`
	CustomerId         string          `db:"customer_id" json:"customer_id"`
	CompanyId          string          `db:"company_id" json:"company_id"`
	CustomerPhone      string          `db:"customer_phone" json:"customer_phone,omitempty"`
	OrderAmount        decimal.Decimal `db:"order_amount" json:"order_amount"`
	AmountPaid         decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discount_percentage"`
	GroupId            string          `db:"group_id" json:"group_id,omitempty"`
	AgentId            string          `db:"agent_id" json:"agent_id,omitempty"`
	Status             ParcelStatus    `db:"status" json:"status"`
	RefundStatus       RefundStatus    `db:"refund_status" json:"refund_status,omitempty"`
	PickedUpAt         *time.Time      `db:"picked_up_at" json:"picked_up_at,omitempty"`
	DeliveredAt        *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// SoloOverpayment is what was paid above the undiscounted order amount, the
// part refunded when the parcel leaves its group and ships alone.
func (p *Parcel) SoloOverpayment() decimal.Decimal {
	if over := p.AmountPaid.Sub(p.OrderAmount); over.IsPositive() {
		return over
	}
	return decimal.Zero
}

// Agent is a row of the read-only agent directory.
type Agent struct {
	Id        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	CompanyId string    `db:"company_id" json:"company_id"`
	Available bool      `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

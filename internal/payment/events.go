package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentConfirmed is sent by the payment collaborator once a customer has
// paid for a parcel.
type PaymentConfirmed struct {
	ParcelId           string          `json:"parcel_id"`
	CustomerId         string          `json:"customer_id"`
	CompanyId          string          `json:"company_id"`
	OrderAmount        decimal.Decimal `json:"order_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Phone              string          `json:"phone,omitempty"`
}

// RefundCompleted is sent once a requested refund has been paid out.
type RefundCompleted struct {
	ParcelId string          `json:"parcel_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// EarningCanceller reverses the earning of a refunded parcel.
type EarningCanceller interface {
	CancelForParcel(ctx context.Context, parcelId, reason string) (*models.Earning, error)
}

type EventHandler struct {
	store    store.ParcelStore
	earnings EarningCanceller
	now      func() time.Time
}

func NewEventHandler(s store.ParcelStore, earnings EarningCanceller) *EventHandler {
	return &EventHandler{store: s, earnings: earnings, now: time.Now}
}

// HandlePaymentConfirmed registers the parcel, or records its new paid amount
// when it is already known.
func (h *EventHandler) HandlePaymentConfirmed(ctx context.Context, e PaymentConfirmed) (*models.Parcel, error) {
	e.ParcelId = strings.TrimSpace(e.ParcelId)
	if e.ParcelId == "" || e.CustomerId == "" || e.CompanyId == "" {
		return nil, fmt.Errorf("%w: parcel, customer and company are required", store.ErrInvalidInput)
	}
	if !e.OrderAmount.IsPositive() || e.AmountPaid.IsNegative() {
		return nil, fmt.Errorf("%w: order amount must be positive and amount paid non-negative", store.ErrInvalidInput)
	}
	if e.DiscountPercentage.IsNegative() || e.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: discount percentage must be between 0 and 100", store.ErrInvalidInput)
	}

	now := h.now().UTC()
	parcel, err := h.store.UpsertPaidParcel(ctx, &models.Parcel{
		Id:                 e.ParcelId,
		CustomerId:         e.CustomerId,
		CompanyId:          e.CompanyId,
		CustomerPhone:      e.Phone,
		OrderAmount:        e.OrderAmount,
		AmountPaid:         e.AmountPaid,
		DiscountPercentage: e.DiscountPercentage,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payment confirmed",
		zap.String("parcel_id", parcel.Id),
		zap.String("amount_paid", parcel.AmountPaid.String()))
	return parcel, nil
}

// HandleRefundCompleted marks the parcel's refund as done. A delivered
// parcel that was refunded also loses its earning.
func (h *EventHandler) HandleRefundCompleted(ctx context.Context, e RefundCompleted) (*models.Parcel, error) {
	if e.ParcelId == "" {
		return nil, fmt.Errorf("%w: parcel is required", store.ErrInvalidInput)
	}

	parcel, err := h.store.MarkRefundCompleted(ctx, e.ParcelId, h.now().UTC())
	if err != nil {
		return nil, err
	}
	zap.L().Info("Refund completed",
		zap.String("parcel_id", parcel.Id),
		zap.String("amount", e.Amount.String()))

	if parcel.Status != models.ParcelDelivered || h.earnings == nil {
		return parcel, nil
	}

	reason := fmt.Sprintf("refund of %s completed", e.Amount.StringFixed(2))
	if _, err := h.earnings.CancelForParcel(ctx, parcel.Id, reason); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("refund recorded for parcel %s but earning not reversed: %w", parcel.Id, err)
	}
	return parcel, nil
}

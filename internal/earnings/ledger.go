// Package earnings computes and posts the platform, company and agent split
// for each delivered parcel and manages the earning lifecycle afterwards.
package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/pricing"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mirror receives committed wallet transactions for an external audit copy.
type Mirror interface {
	Record(ctx context.Context, txs []models.Transaction) error
}

// RecordParams describes a delivered parcel whose earning should be posted.
// AgentId overrides the agent recorded on the parcel.
type RecordParams struct {
	Parcel  *models.Parcel
	AgentId string
	Tip     decimal.Decimal
	Bonus   decimal.Decimal
}

type Ledger struct {
	store    store.LedgerStore
	notifier notify.Notifier
	mirror   Mirror
	policy   models.Policy
	now      func() time.Time
}

// NewLedger builds a ledger. mirror may be nil.
func NewLedger(s store.LedgerStore, notifier notify.Notifier, mirror Mirror, policy models.Policy) *Ledger {
	return &Ledger{
		store:    s,
		notifier: notifier,
		mirror:   mirror,
		policy:   policy,
		now:      time.Now,
	}
}

// Record posts the earning for a delivered parcel. It is idempotent per
// parcel: a repeated call returns the earning that already exists.
func (l *Ledger) Record(ctx context.Context, p RecordParams) (*models.Earning, error) {
	parcel := p.Parcel
	if parcel == nil || parcel.Id == "" {
		return nil, fmt.Errorf("%w: parcel is required", store.ErrInvalidInput)
	}
	if parcel.Status != models.ParcelDelivered {
		return nil, fmt.Errorf("%w: parcel %s is %s, not delivered", store.ErrInvalidState, parcel.Id, parcel.Status)
	}
	if p.Tip.IsNegative() || p.Bonus.IsNegative() {
		return nil, fmt.Errorf("%w: tip and bonus cannot be negative", store.ErrInvalidInput)
	}

	agentId := p.AgentId
	if agentId == "" {
		agentId = parcel.AgentId
	}

	rates := l.policy.RatesFor(parcel.CompanyId)
	agentRate := rates.AgentRate
	if agentId == "" {
		agentRate = decimal.Zero
	}

	billed := pricing.DiscountedAmount(parcel.OrderAmount, parcel.DiscountPercentage)
	split := pricing.SplitOrder(billed, rates.PlatformRate, agentRate, agentId != "")
	if !split.Reconciles() {
		return nil, fmt.Errorf("split of %s does not reconcile", billed)
	}

	now := l.now().UTC()
	earning := &models.Earning{
		Id:                     uuid.New().String(),
		ParcelId:               parcel.Id,
		GroupId:                parcel.GroupId,
		CompanyId:              parcel.CompanyId,
		AgentId:                agentId,
		OrderAmount:            split.OrderAmount,
		PlatformCommissionRate: rates.PlatformRate,
		PlatformCommission:     split.PlatformCommission,
		CompanyEarning:         split.CompanyEarning,
		AgentCommissionRate:    agentRate,
		AgentEarning:           split.AgentEarning,
		CompanyNetEarning:      split.CompanyNetEarning,
		AgentBonus:             pricing.RoundMoney(p.Bonus),
		CustomerTip:            pricing.RoundMoney(p.Tip),
		Status:                 models.EarningPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	txs, err := l.store.PostEarning(ctx, earning)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateOperation) {
			zap.L().Info("Duplicate earning detected, returning existing record",
				zap.String("parcel_id", parcel.Id))
			return l.store.GetEarningByParcel(ctx, parcel.Id)
		}
		zap.L().Error("Earning posting failed",
			zap.String("parcel_id", parcel.Id),
			zap.String("order_amount", billed.String()),
			zap.Error(err))
		return nil, err
	}

	l.mirrorTransactions(ctx, txs)
	return earning, nil
}

func (l *Ledger) Get(ctx context.Context, earningId string) (*models.Earning, error) {
	return l.store.GetEarning(ctx, earningId)
}

func (l *Ledger) GetByParcel(ctx context.Context, parcelId string) (*models.Earning, error) {
	return l.store.GetEarningByParcel(ctx, parcelId)
}

func (l *Ledger) List(ctx context.Context, filter store.EarningFilter) ([]models.Earning, error) {
	return l.store.ListEarnings(ctx, filter)
}

// ListDue returns PENDING earnings whose clearance hold has elapsed.
func (l *Ledger) ListDue(ctx context.Context, limit int) ([]models.Earning, error) {
	cutoff := l.now().UTC().Add(-l.policy.ClearanceHold)
	return l.store.ListClearableEarnings(ctx, cutoff, limit)
}

// Clear moves a PENDING earning's credits from pending to available. Admins
// may call it before the hold window has elapsed.
func (l *Ledger) Clear(ctx context.Context, earningId string) (*models.Earning, error) {
	earning, txs, err := l.store.ClearEarning(ctx, earningId, l.now().UTC())
	if err != nil {
		return nil, err
	}
	l.mirrorTransactions(ctx, txs)
	return earning, nil
}

// Hold keeps a PENDING earning out of the clearance sweep.
func (l *Ledger) Hold(ctx context.Context, earningId string) (*models.Earning, error) {
	return l.applyStatusEvent(ctx, earningId, models.EarningEventHold)
}

func (l *Ledger) Release(ctx context.Context, earningId string) (*models.Earning, error) {
	return l.applyStatusEvent(ctx, earningId, models.EarningEventRelease)
}

func (l *Ledger) applyStatusEvent(ctx context.Context, earningId string, event models.EarningEvent) (*models.Earning, error) {
	current, err := l.store.GetEarning(ctx, earningId)
	if err != nil {
		return nil, err
	}
	next, ok := current.Status.Next(event)
	if !ok {
		return nil, fmt.Errorf("%w: cannot %s an earning that is %s", store.ErrInvalidState, event, current.Status)
	}

	earning, err := l.store.UpdateEarningStatus(ctx, earningId, current.Status, next, l.now().UTC())
	if err != nil {
		return nil, err
	}
	zap.L().Info("Earning status changed",
		zap.String("earning_id", earningId),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)))
	return earning, nil
}

// Cancel reverses every wallet credit of the earning with compensating
// transactions. Cancelling an already cancelled earning is a no-op.
func (l *Ledger) Cancel(ctx context.Context, earningId, reason string) (*models.Earning, error) {
	current, err := l.store.GetEarning(ctx, earningId)
	if err != nil {
		return nil, err
	}
	return l.cancel(ctx, current, reason)
}

// CancelForParcel cancels the earning of a refunded parcel.
func (l *Ledger) CancelForParcel(ctx context.Context, parcelId, reason string) (*models.Earning, error) {
	current, err := l.store.GetEarningByParcel(ctx, parcelId)
	if err != nil {
		return nil, err
	}
	return l.cancel(ctx, current, reason)
}

func (l *Ledger) cancel(ctx context.Context, current *models.Earning, reason string) (*models.Earning, error) {
	if current.Status == models.EarningCancelled {
		return current, nil
	}
	if reason == "" {
		reason = "cancelled"
	}

	earning, txs, err := l.store.CancelEarning(ctx, current.Id, reason, l.now().UTC())
	if err != nil {
		zap.L().Error("Earning cancellation failed",
			zap.String("earning_id", current.Id),
			zap.String("parcel_id", current.ParcelId),
			zap.Error(err))
		return nil, err
	}
	l.mirrorTransactions(ctx, txs)

	notify.Send(ctx, l.notifier, notify.Event{
		Type:     notify.EventEarningCancelled,
		GroupId:  earning.GroupId,
		ParcelId: earning.ParcelId,
		AgentId:  earning.AgentId,
		Message:  fmt.Sprintf("Earning for parcel %s was reversed: %s", earning.ParcelId, reason),
	})
	return earning, nil
}

// Revenue reports platform commission for earnings created in [from, to).
func (l *Ledger) Revenue(ctx context.Context, from, to time.Time) (*models.PlatformRevenue, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: revenue window end must be after its start", store.ErrInvalidInput)
	}
	return l.store.GetPlatformRevenue(ctx, from, to)
}

func (l *Ledger) mirrorTransactions(ctx context.Context, txs []models.Transaction) {
	if l.mirror == nil || len(txs) == 0 {
		return
	}
	if err := l.mirror.Record(ctx, txs); err != nil {
		zap.L().Warn("Failed to mirror ledger transactions", zap.Int("count", len(txs)), zap.Error(err))
	}
}

// Package payouts handles withdrawal requests against wallet balances and
// the wallet read side: balances, transaction history and reconciliation.
package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/pricing"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// Mirror receives committed wallet transactions for an external audit copy.
type Mirror interface {
	Record(ctx context.Context, txs []models.Transaction) error
}

// ProcessParams is an admin action on a payout. SettlementRef is required
// to complete a payout and Reason to reject one.
type ProcessParams struct {
	PayoutId      string
	Action        models.PayoutAction
	SettlementRef string
	Reason        string
}

type Service struct {
	store    store.LedgerStore
	notifier notify.Notifier
	mirror   Mirror
	policy   models.Policy
	now      func() time.Time
}

// NewService builds the payout service. mirror may be nil.
func NewService(s store.LedgerStore, notifier notify.Notifier, mirror Mirror, policy models.Policy) *Service {
	return &Service{
		store:    s,
		notifier: notifier,
		mirror:   mirror,
		policy:   policy,
		now:      time.Now,
	}
}

// Request reserves amount from the owner's available balance. The check and
// the reservation run in one version-guarded update, so concurrent requests
// cannot spend the same funds.
func (s *Service) Request(ctx context.Context, owner models.WalletOwner, amount decimal.Decimal) (*models.Payout, error) {
	if owner.Id == "" || owner.Type == "" {
		return nil, fmt.Errorf("%w: wallet owner is required", store.ErrInvalidInput)
	}
	if owner.Type == models.OwnerPlatform {
		return nil, fmt.Errorf("%w: platform commission is not withdrawable", store.ErrInvalidInput)
	}
	if !amount.Equal(pricing.RoundMoney(amount)) {
		return nil, fmt.Errorf("%w: amount %s has more than %d decimal places", store.ErrInvalidInput, amount, pricing.MoneyPlaces)
	}
	if amount.LessThan(s.policy.MinPayout) {
		return nil, fmt.Errorf("%w: minimum payout is %s", store.ErrInvalidInput, s.policy.MinPayout.StringFixed(pricing.MoneyPlaces))
	}

	now := s.now().UTC()
	payout := &models.Payout{
		Id:          uuid.New().String(),
		OwnerType:   owner.Type,
		OwnerId:     owner.Id,
		Amount:      amount,
		Status:      models.PayoutRequested,
		RequestedAt: now,
		Version:     1,
		UpdatedAt:   now,
	}

	txs, err := s.store.CreatePayout(ctx, payout)
	if err != nil {
		zap.L().Info("Payout request rejected",
			zap.String("owner", owner.String()),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}
	s.mirrorTransactions(ctx, txs)

	notify.Send(ctx, s.notifier, notify.Event{
		Type:     notify.EventPayoutRequested,
		PayoutId: payout.Id,
		Message:  fmt.Sprintf("Payout of %s requested by %s", amount.StringFixed(pricing.MoneyPlaces), owner),
	})
	return payout, nil
}

// Process applies an admin action: APPROVE moves no money, COMPLETE debits
// the reserved funds and REJECT releases them back to available.
func (s *Service) Process(ctx context.Context, p ProcessParams) (*models.Payout, error) {
	switch p.Action {
	case models.PayoutActionApprove, models.PayoutActionComplete, models.PayoutActionReject:
	default:
		return nil, fmt.Errorf("%w: unknown payout action %q", store.ErrInvalidInput, p.Action)
	}
	if p.Action == models.PayoutActionComplete && strings.TrimSpace(p.SettlementRef) == "" {
		return nil, fmt.Errorf("%w: settlement reference is required to complete a payout", store.ErrInvalidInput)
	}
	if p.Action == models.PayoutActionReject && strings.TrimSpace(p.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required to reject a payout", store.ErrInvalidInput)
	}
	return s.transition(ctx, p)
}

// Approve marks a requested payout as being processed.
func (s *Service) Approve(ctx context.Context, payoutId string) (*models.Payout, error) {
	return s.Process(ctx, ProcessParams{PayoutId: payoutId, Action: models.PayoutActionApprove})
}

func (s *Service) Complete(ctx context.Context, payoutId, settlementRef string) (*models.Payout, error) {
	return s.Process(ctx, ProcessParams{PayoutId: payoutId, Action: models.PayoutActionComplete, SettlementRef: settlementRef})
}

func (s *Service) Reject(ctx context.Context, payoutId, reason string) (*models.Payout, error) {
	return s.Process(ctx, ProcessParams{PayoutId: payoutId, Action: models.PayoutActionReject, Reason: reason})
}

// Cancel withdraws a payout on behalf of its requester while it is still
// REQUESTED.
func (s *Service) Cancel(ctx context.Context, payoutId string, requester models.WalletOwner) (*models.Payout, error) {
	current, err := s.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if current.OwnerType != requester.Type || current.OwnerId != requester.Id {
		return nil, fmt.Errorf("%w: payout %s belongs to another wallet", store.ErrNotFound, payoutId)
	}
	return s.transition(ctx, ProcessParams{PayoutId: payoutId, Action: models.PayoutActionCancel})
}

func (s *Service) transition(ctx context.Context, p ProcessParams) (*models.Payout, error) {
	current, err := s.store.GetPayout(ctx, p.PayoutId)
	if err != nil {
		return nil, err
	}
	next, ok := current.Status.Next(p.Action)
	if !ok {
		return nil, fmt.Errorf("%w: cannot %s a payout that is %s", store.ErrInvalidState, strings.ToLower(string(p.Action)), current.Status)
	}

	payout, txs, err := s.store.TransitionPayout(ctx, store.PayoutTransitionParams{
		PayoutId:      p.PayoutId,
		From:          current.Status,
		To:            next,
		SettlementRef: strings.TrimSpace(p.SettlementRef),
		Reason:        strings.TrimSpace(p.Reason),
		Now:           s.now().UTC(),
	})
	if err != nil {
		zap.L().Error("Payout transition failed",
			zap.String("payout_id", p.PayoutId),
			zap.String("action", string(p.Action)),
			zap.Error(err))
		return nil, err
	}
	s.mirrorTransactions(ctx, txs)

	if payout.Status != models.PayoutProcessing {
		notify.Send(ctx, s.notifier, notify.Event{
			Type:     notify.EventPayoutProcessed,
			PayoutId: payout.Id,
			Message: fmt.Sprintf("Payout of %s is %s",
				payout.Amount.StringFixed(pricing.MoneyPlaces), strings.ToLower(string(payout.Status))),
			Attributes: map[string]string{"status": string(payout.Status)},
		})
	}
	return payout, nil
}

func (s *Service) Get(ctx context.Context, payoutId string) (*models.Payout, error) {
	return s.store.GetPayout(ctx, payoutId)
}

func (s *Service) List(ctx context.Context, filter store.PayoutFilter) ([]models.Payout, error) {
	return s.store.ListPayouts(ctx, filter)
}

func (s *Service) Wallet(ctx context.Context, owner models.WalletOwner) (*models.Wallet, error) {
	return s.store.GetWallet(ctx, owner)
}

func (s *Service) Wallets(ctx context.Context) ([]models.Wallet, error) {
	return s.store.ListWallets(ctx)
}

// History returns a page of the owner's wallet transactions, newest first.
func (s *Service) History(ctx context.Context, owner models.WalletOwner, limit, offset int) ([]models.Transaction, error) {
	wallet, err := s.store.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.GetTransactionHistory(ctx, wallet.Id, limit, offset)
}

// Reconcile recomputes every wallet's balances from its transaction history.
// It returns the ids of the wallets that do not match.
func (s *Service) Reconcile(ctx context.Context) ([]string, error) {
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return nil, err
	}

	var mismatched []string
	for _, w := range wallets {
		if err := s.store.ReconcileWallet(ctx, w.Id); err != nil {
			zap.L().Error("Wallet reconciliation failed",
				zap.String("wallet_id", w.Id),
				zap.String("owner", w.Owner().String()),
				zap.Error(err))
			mismatched = append(mismatched, w.Id)
		}
	}
	return mismatched, nil
}

func (s *Service) mirrorTransactions(ctx context.Context, txs []models.Transaction) {
	if s.mirror == nil || len(txs) == 0 {
		return
	}
	if err := s.mirror.Record(ctx, txs); err != nil {
		zap.L().Warn("Failed to mirror ledger transactions", zap.Int("count", len(txs)), zap.Error(err))
	}
}

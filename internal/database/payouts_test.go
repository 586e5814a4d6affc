package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestPayout(owner models.WalletOwner, amount string) *models.Payout {
	return &models.Payout{
		Id:          uuid.New().String(),
		OwnerType:   owner.Type,
		OwnerId:     owner.Id,
		Amount:      decimal.RequireFromString(amount),
		Status:      models.PayoutRequested,
		RequestedAt: testNow,
		UpdatedAt:   testNow,
	}
}

// fundAgent gives an agent wallet an available balance of 20% of amount.
func fundAgent(t *testing.T, s *Service, parcelId, agentId, amount string) {
	t.Helper()
	ctx := context.Background()

	seedParcel(t, s, parcelId, "customer-"+parcelId, amount)
	e := newTestEarning(parcelId, agentId, amount)
	if _, err := s.PostEarning(ctx, e); err != nil {
		t.Fatalf("PostEarning failed: %v", err)
	}
	if _, _, err := s.ClearEarning(ctx, e.Id, testNow); err != nil {
		t.Fatalf("ClearEarning failed: %v", err)
	}
}

func TestCreatePayout_ConcurrentRequests(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fundAgent(t, service, "p1", "agent1", "2500")
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "0", "500", "0")

	first := newTestPayout(agentOwner("agent1"), "500.00")
	if _, err := service.CreatePayout(ctx, first); err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "0", "0", "500")

	_, err := service.CreatePayout(ctx, newTestPayout(agentOwner("agent1"), "1.00"))
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	payouts, err := service.ListPayouts(ctx, store.PayoutFilter{OwnerType: models.OwnerAgent, OwnerId: "agent1"})
	if err != nil {
		t.Fatalf("ListPayouts failed: %v", err)
	}
	if len(payouts) != 1 {
		t.Errorf("Expected the rejected request to leave no payout, got %d", len(payouts))
	}
}

func TestCreatePayout_RaceForSameBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fundAgent(t, service, "p1", "agent1", "2500")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.CreatePayout(ctx, newTestPayout(agentOwner("agent1"), "300"))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else if !errors.Is(err, store.ErrInsufficientBalance) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("Expected exactly one accepted payout, got %d", accepted)
	}
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "0", "200", "300")
}

func TestTransitionPayout(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fundAgent(t, service, "p1", "agent1", "5000")

	completed := newTestPayout(agentOwner("agent1"), "400")
	rejected := newTestPayout(agentOwner("agent1"), "300")
	for _, p := range []*models.Payout{completed, rejected} {
		if _, err := service.CreatePayout(ctx, p); err != nil {
			t.Fatalf("CreatePayout failed: %v", err)
		}
	}
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "0", "300", "700")

	_, txs, err := service.TransitionPayout(ctx, store.PayoutTransitionParams{
		PayoutId: completed.Id, From: models.PayoutRequested, To: models.PayoutProcessing, Now: testNow,
	})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Expected approval to move no money, got %d transactions", len(txs))
	}

	p, _, err := service.TransitionPayout(ctx, store.PayoutTransitionParams{
		PayoutId: completed.Id, From: models.PayoutProcessing, To: models.PayoutCompleted,
		SettlementRef: "UTR123", Now: testNow,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if p.Status != models.PayoutCompleted || p.SettlementRef != "UTR123" || p.ProcessedAt == nil {
		t.Errorf("Unexpected completed payout: %+v", p)
	}

	_, _, err = service.TransitionPayout(ctx, store.PayoutTransitionParams{
		PayoutId: rejected.Id, From: models.PayoutRequested, To: models.PayoutRejected,
		Reason: "bank details invalid", Now: testNow,
	})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	wallet := mustWallet(t, service, agentOwner("agent1"))
	expectBalances(t, wallet, "0", "600", "0")
	if !wallet.TotalWithdrawn.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected total withdrawn 400, got %s", wallet.TotalWithdrawn)
	}

	_, _, err = service.TransitionPayout(ctx, store.PayoutTransitionParams{
		PayoutId: rejected.Id, From: models.PayoutRequested, To: models.PayoutCancelled, Now: testNow,
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState cancelling a rejected payout, got %v", err)
	}

	if err := service.ReconcileWallet(ctx, wallet.Id); err != nil {
		t.Errorf("ReconcileWallet failed: %v", err)
	}

	history, err := service.GetTransactionHistory(ctx, wallet.Id, 100, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	// credit, clearance out/in, two reserve/lock pairs, debit, unlock/release
	if len(history) != 10 {
		t.Errorf("Expected 10 transactions, got %d", len(history))
	}
}

func TestCreatePayout_UnknownWallet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.CreatePayout(context.Background(), newTestPayout(agentOwner("ghost"), "100"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

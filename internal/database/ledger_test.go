package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/pricing"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestEarning(parcelId, agentId, amount string) *models.Earning {
	rate, agentRate := decimal.NewFromInt(10), decimal.NewFromInt(20)
	split := pricing.SplitOrder(decimal.RequireFromString(amount), rate, agentRate, agentId != "")
	return &models.Earning{
		Id:                     uuid.New().String(),
		ParcelId:               parcelId,
		CompanyId:              "company1",
		AgentId:                agentId,
		OrderAmount:            split.OrderAmount,
		PlatformCommissionRate: rate,
		PlatformCommission:     split.PlatformCommission,
		CompanyEarning:         split.CompanyEarning,
		AgentCommissionRate:    agentRate,
		AgentEarning:           split.AgentEarning,
		CompanyNetEarning:      split.CompanyNetEarning,
		AgentBonus:             decimal.Zero,
		CustomerTip:            decimal.Zero,
		Status:                 models.EarningPending,
		CreatedAt:              testNow,
		UpdatedAt:              testNow,
	}
}

func agentOwner(id string) models.WalletOwner {
	return models.WalletOwner{Type: models.OwnerAgent, Id: id}
}

func companyOwner(id string) models.WalletOwner {
	return models.WalletOwner{Type: models.OwnerCompany, Id: id}
}

func mustWallet(t *testing.T, s *Service, owner models.WalletOwner) *models.Wallet {
	t.Helper()
	w, err := s.GetWallet(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetWallet %s failed: %v", owner, err)
	}
	return w
}

func expectBalances(t *testing.T, w *models.Wallet, pending, available, locked string) {
	t.Helper()
	if !w.PendingBalance.Equal(decimal.RequireFromString(pending)) ||
		!w.AvailableBalance.Equal(decimal.RequireFromString(available)) ||
		!w.LockedBalance.Equal(decimal.RequireFromString(locked)) {
		t.Errorf("Expected %s balances %s/%s/%s, got %s/%s/%s", w.Owner(), pending, available, locked,
			w.PendingBalance, w.AvailableBalance, w.LockedBalance)
	}
}

func TestPostEarning_CreditsPendingOnce(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	seedParcel(t, service, "p1", "alice", "1000")

	txs, err := service.PostEarning(ctx, newTestEarning("p1", "agent1", "1000.00"))
	if err != nil {
		t.Fatalf("PostEarning failed: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("Expected 3 wallet transactions, got %d", len(txs))
	}

	_, err = service.PostEarning(ctx, newTestEarning("p1", "agent1", "1000.00"))
	if !errors.Is(err, store.ErrDuplicateOperation) {
		t.Errorf("Expected ErrDuplicateOperation for second posting, got %v", err)
	}

	expectBalances(t, mustWallet(t, service, models.PlatformOwner()), "100", "0", "0")
	expectBalances(t, mustWallet(t, service, companyOwner("company1")), "700", "0", "0")
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "200", "0", "0")

	earnings, err := service.ListEarnings(ctx, store.EarningFilter{CompanyId: "company1"})
	if err != nil {
		t.Fatalf("ListEarnings failed: %v", err)
	}
	if len(earnings) != 1 {
		t.Errorf("Expected exactly one earning, got %d", len(earnings))
	}
}

func TestPostEarning_ConcurrentRetries(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	seedParcel(t, service, "p1", "alice", "500")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.PostEarning(ctx, newTestEarning("p1", "agent1", "500"))
		}(i)
	}
	wg.Wait()

	posted := 0
	for _, err := range errs {
		if err == nil {
			posted++
		} else if !errors.Is(err, store.ErrDuplicateOperation) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if posted != 1 {
		t.Errorf("Expected exactly one posting, got %d", posted)
	}
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "100", "0", "0")
}

func TestClearAndCancelEarning(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	seedParcel(t, service, "p1", "alice", "1000")
	earning := newTestEarning("p1", "agent1", "1000")
	if _, err := service.PostEarning(ctx, earning); err != nil {
		t.Fatalf("PostEarning failed: %v", err)
	}

	clearable, err := service.ListClearableEarnings(ctx, testNow.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListClearableEarnings failed: %v", err)
	}
	if len(clearable) != 1 {
		t.Fatalf("Expected 1 clearable earning, got %d", len(clearable))
	}

	cleared, _, err := service.ClearEarning(ctx, earning.Id, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("ClearEarning failed: %v", err)
	}
	if cleared.Status != models.EarningCleared || cleared.ClearedAt == nil {
		t.Errorf("Expected CLEARED earning, got %+v", cleared)
	}
	expectBalances(t, mustWallet(t, service, agentOwner("agent1")), "0", "200", "0")

	if _, _, err := service.ClearEarning(ctx, earning.Id, testNow); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState clearing twice, got %v", err)
	}

	cancelled, txs, err := service.CancelEarning(ctx, earning.Id, "refund", testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("CancelEarning failed: %v", err)
	}
	if cancelled.Status != models.EarningCancelled || cancelled.CancelReason != "refund" {
		t.Errorf("Expected CANCELLED earning, got %+v", cancelled)
	}
	if len(txs) != 3 {
		t.Errorf("Expected 3 compensating transactions, got %d", len(txs))
	}

	agent := mustWallet(t, service, agentOwner("agent1"))
	expectBalances(t, agent, "0", "0", "0")
	if !agent.TotalEarnings.IsZero() {
		t.Errorf("Expected total earnings reversed to 0, got %s", agent.TotalEarnings)
	}

	for _, owner := range []models.WalletOwner{models.PlatformOwner(), companyOwner("company1"), agentOwner("agent1")} {
		w := mustWallet(t, service, owner)
		if err := service.ReconcileWallet(ctx, w.Id); err != nil {
			t.Errorf("ReconcileWallet %s failed: %v", owner, err)
		}
	}
}

func TestCancelEarning_ClearedFundsAlreadyWithdrawn(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	seedParcel(t, service, "p1", "alice", "1000")
	earning := newTestEarning("p1", "agent1", "1000")
	if _, err := service.PostEarning(ctx, earning); err != nil {
		t.Fatalf("PostEarning failed: %v", err)
	}
	if _, _, err := service.ClearEarning(ctx, earning.Id, testNow); err != nil {
		t.Fatalf("ClearEarning failed: %v", err)
	}

	payout := newTestPayout(agentOwner("agent1"), "150")
	if _, err := service.CreatePayout(ctx, payout); err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}

	_, _, err := service.CancelEarning(ctx, earning.Id, "dispute", testNow)
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	e, _ := service.GetEarning(ctx, earning.Id)
	if e.Status != models.EarningCleared {
		t.Errorf("Expected failed cancellation to roll back, got %s", e.Status)
	}
	expectBalances(t, mustWallet(t, service, companyOwner("company1")), "0", "700", "0")
}

func TestHoldAndRelease(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	seedParcel(t, service, "p1", "alice", "100")
	earning := newTestEarning("p1", "", "100")
	if _, err := service.PostEarning(ctx, earning); err != nil {
		t.Fatalf("PostEarning failed: %v", err)
	}

	held, err := service.UpdateEarningStatus(ctx, earning.Id, models.EarningPending, models.EarningOnHold, testNow)
	if err != nil || held.Status != models.EarningOnHold {
		t.Fatalf("Expected ON_HOLD, got %v %v", held, err)
	}

	clearable, _ := service.ListClearableEarnings(ctx, testNow.Add(time.Hour), 10)
	if len(clearable) != 0 {
		t.Errorf("Expected held earning to be skipped, got %d clearable", len(clearable))
	}

	if _, err := service.UpdateEarningStatus(ctx, earning.Id, models.EarningPending, models.EarningOnHold, testNow); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState holding twice, got %v", err)
	}

	if _, err := service.UpdateEarningStatus(ctx, earning.Id, models.EarningOnHold, models.EarningPending, testNow); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestGetPlatformRevenue(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	var cancelId string
	for i, amount := range []string{"1000", "250.50", "99.99"} {
		parcelId := fmt.Sprintf("p%d", i)
		seedParcel(t, service, parcelId, "alice", amount)
		e := newTestEarning(parcelId, "agent1", amount)
		if _, err := service.PostEarning(ctx, e); err != nil {
			t.Fatalf("PostEarning failed: %v", err)
		}
		cancelId = e.Id
	}
	if _, _, err := service.CancelEarning(ctx, cancelId, "refund", testNow); err != nil {
		t.Fatalf("CancelEarning failed: %v", err)
	}

	report, err := service.GetPlatformRevenue(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetPlatformRevenue failed: %v", err)
	}
	if report.EarningCount != 2 {
		t.Errorf("Expected 2 earnings, got %d", report.EarningCount)
	}
	if !report.TotalCommission.Equal(decimal.RequireFromString("125.05")) {
		t.Errorf("Expected commission 125.05, got %s", report.TotalCommission)
	}
	if !report.OrderVolume.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("Expected volume 1250.50, got %s", report.OrderVolume)
	}
}

package earnings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"group-shipment-go/internal/database"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingMirror struct {
	mu  sync.Mutex
	txs []models.Transaction
}

func (m *recordingMirror) Record(_ context.Context, txs []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, txs...)
	return nil
}

func setupLedger(t *testing.T, policy models.Policy) (*Ledger, *database.Service, *recordingMirror, func()) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "earnings.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	mirror := &recordingMirror{}
	ledger := NewLedger(db, nil, mirror, policy)
	ledger.now = func() time.Time { return testNow }
	return ledger, db, mirror, db.Close
}

// deliveredParcel registers a parcel and walks it to DELIVERED by agentId.
func deliveredParcel(t *testing.T, db *database.Service, id, companyId, amount, discount, agentId string) *models.Parcel {
	t.Helper()
	ctx := context.Background()

	if agentId != "" {
		if _, err := db.GetAgent(ctx, agentId); errors.Is(err, store.ErrNotFound) {
			err := db.CreateAgent(ctx, &models.Agent{
				Id: agentId, Name: "Agent " + agentId, CompanyId: companyId, Available: true, CreatedAt: testNow,
			})
			if err != nil {
				t.Fatalf("CreateAgent failed: %v", err)
			}
		}
	}

	_, err := db.UpsertPaidParcel(ctx, &models.Parcel{
		Id:                 id,
		CustomerId:         "customer-" + id,
		CompanyId:          companyId,
		OrderAmount:        decimal.RequireFromString(amount),
		AmountPaid:         decimal.RequireFromString(amount),
		DiscountPercentage: decimal.RequireFromString(discount),
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	})
	if err != nil {
		t.Fatalf("UpsertPaidParcel failed: %v", err)
	}

	p, err := db.UpdateParcelStatus(ctx, store.ParcelStatusParams{
		ParcelId: id,
		From:     models.ParcelBooked,
		To:       models.ParcelDelivered,
		AgentId:  agentId,
		Now:      testNow,
	})
	if err != nil {
		t.Fatalf("UpdateParcelStatus failed: %v", err)
	}
	return p
}

func expectWallet(t *testing.T, db *database.Service, owner models.WalletOwner, pending, available string) {
	t.Helper()
	w, err := db.GetWallet(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetWallet %s failed: %v", owner, err)
	}
	if !w.PendingBalance.Equal(decimal.RequireFromString(pending)) ||
		!w.AvailableBalance.Equal(decimal.RequireFromString(available)) {
		t.Errorf("Expected %s pending/available %s/%s, got %s/%s",
			owner, pending, available, w.PendingBalance, w.AvailableBalance)
	}
}

func TestRecord_SplitsOrderAndIsIdempotent(t *testing.T) {
	ledger, db, mirror, cleanup := setupLedger(t, models.DefaultPolicy())
	defer cleanup()
	ctx := context.Background()

	parcel := deliveredParcel(t, db, "parcel1", "company1", "1000", "0", "agent1")
	params := RecordParams{Parcel: parcel, Tip: decimal.NewFromInt(15)}

	earning, err := ledger.Record(ctx, params)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	expected := map[string]string{
		"platform_commission": "100",
		"agent_earning":       "200",
		"company_earning":     "900",
		"company_net_earning": "700",
	}
	actual := map[string]decimal.Decimal{
		"platform_commission": earning.PlatformCommission,
		"agent_earning":       earning.AgentEarning,
		"company_earning":     earning.CompanyEarning,
		"company_net_earning": earning.CompanyNetEarning,
	}
	for field, want := range expected {
		if !actual[field].Equal(decimal.RequireFromString(want)) {
			t.Errorf("Expected %s %s, got %s", field, want, actual[field])
		}
	}

	again, err := ledger.Record(ctx, params)
	if err != nil {
		t.Fatalf("Second Record failed: %v", err)
	}
	if again.Id != earning.Id {
		t.Errorf("Expected existing earning %s, got %s", earning.Id, again.Id)
	}

	expectWallet(t, db, models.PlatformOwner(), "100", "0")
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerCompany, Id: "company1"}, "700", "0")
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerAgent, Id: "agent1"}, "215", "0")

	if len(mirror.txs) != 3 {
		t.Errorf("Expected 3 mirrored transactions, got %d", len(mirror.txs))
	}
}

func TestRecord_ConcurrentDeliveryEvents(t *testing.T) {
	ledger, db, _, cleanup := setupLedger(t, models.DefaultPolicy())
	defer cleanup()

	parcel := deliveredParcel(t, db, "parcel1", "company1", "250", "0", "agent1")

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := ledger.Record(context.Background(), RecordParams{Parcel: parcel})
			if err != nil {
				t.Errorf("Record %d failed: %v", i, err)
				return
			}
			ids[i] = e.Id
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Errorf("Expected one earning, got %s and %s", ids[0], ids[i])
		}
	}
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerAgent, Id: "agent1"}, "50", "0")
}

func TestRecord_DiscountAndCompanyRates(t *testing.T) {
	policy := models.DefaultPolicy()
	policy.CompanyRates["company2"] = models.CommissionRates{
		PlatformRate: decimal.NewFromInt(5),
		AgentRate:    decimal.NewFromInt(15),
	}
	ledger, db, _, cleanup := setupLedger(t, policy)
	defer cleanup()

	parcel := deliveredParcel(t, db, "parcel1", "company2", "100", "24", "")
	earning, err := ledger.Record(context.Background(), RecordParams{Parcel: parcel})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if !earning.OrderAmount.Equal(decimal.NewFromInt(76)) {
		t.Errorf("Expected billed amount 76, got %s", earning.OrderAmount)
	}
	if !earning.PlatformCommission.Equal(decimal.RequireFromString("3.80")) {
		t.Errorf("Expected platform commission 3.80, got %s", earning.PlatformCommission)
	}
	if !earning.AgentEarning.IsZero() || !earning.AgentCommissionRate.IsZero() {
		t.Errorf("Expected no agent share without an agent, got %s at %s%%", earning.AgentEarning, earning.AgentCommissionRate)
	}
	if !earning.CompanyNetEarning.Equal(decimal.RequireFromString("72.20")) {
		t.Errorf("Expected company net 72.20, got %s", earning.CompanyNetEarning)
	}
}

func TestRecord_Rejections(t *testing.T) {
	ledger, db, _, cleanup := setupLedger(t, models.DefaultPolicy())
	defer cleanup()

	booked, err := db.UpsertPaidParcel(context.Background(), &models.Parcel{
		Id: "booked", CustomerId: "c1", CompanyId: "company1",
		OrderAmount: decimal.NewFromInt(10), AmountPaid: decimal.NewFromInt(10),
		CreatedAt: testNow, UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("UpsertPaidParcel failed: %v", err)
	}
	delivered := deliveredParcel(t, db, "delivered", "company1", "10", "0", "")

	tests := []struct {
		name   string
		params RecordParams
		want   error
	}{
		{"no parcel", RecordParams{}, store.ErrInvalidInput},
		{"not delivered", RecordParams{Parcel: booked}, store.ErrInvalidState},
		{"negative tip", RecordParams{Parcel: delivered, Tip: decimal.NewFromInt(-1)}, store.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ledger.Record(context.Background(), tt.params); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestListDueAndClear(t *testing.T) {
	ledger, db, _, cleanup := setupLedger(t, models.DefaultPolicy())
	defer cleanup()
	ctx := context.Background()

	first, err := ledger.Record(ctx, RecordParams{Parcel: deliveredParcel(t, db, "p1", "company1", "100", "0", "agent1")})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	second, err := ledger.Record(ctx, RecordParams{Parcel: deliveredParcel(t, db, "p2", "company1", "100", "0", "agent1")})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	due, err := ledger.ListDue(ctx, 10)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("Expected nothing due inside the hold window, got %d", len(due))
	}

	if _, err := ledger.Hold(ctx, second.Id); err != nil {
		t.Fatalf("Hold failed: %v", err)
	}

	ledger.now = func() time.Time { return testNow.Add(73 * time.Hour) }
	due, err = ledger.ListDue(ctx, 10)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 1 || due[0].Id != first.Id {
		t.Fatalf("Expected only %s due, got %v", first.Id, due)
	}

	cleared, err := ledger.Clear(ctx, first.Id)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared.Status != models.EarningCleared {
		t.Errorf("Expected CLEARED, got %s", cleared.Status)
	}
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerAgent, Id: "agent1"}, "20", "20")

	if _, err := ledger.Clear(ctx, second.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState clearing a held earning, got %v", err)
	}
	if _, err := ledger.Release(ctx, second.Id); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := ledger.Release(ctx, second.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState releasing a pending earning, got %v", err)
	}
}

func TestCancelForParcel_ReversesCredits(t *testing.T) {
	ledger, db, mirror, cleanup := setupLedger(t, models.DefaultPolicy())
	defer cleanup()
	ctx := context.Background()

	earning, err := ledger.Record(ctx, RecordParams{Parcel: deliveredParcel(t, db, "p1", "company1", "1000", "0", "agent1")})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := ledger.Clear(ctx, earning.Id); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	cancelled, err := ledger.CancelForParcel(ctx, "p1", "dispute")
	if err != nil {
		t.Fatalf("CancelForParcel failed: %v", err)
	}
	if cancelled.Status != models.EarningCancelled || cancelled.CancelReason != "dispute" {
		t.Errorf("Expected CANCELLED with reason, got %s %q", cancelled.Status, cancelled.CancelReason)
	}

	expectWallet(t, db, models.PlatformOwner(), "0", "0")
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerCompany, Id: "company1"}, "0", "0")
	expectWallet(t, db, models.WalletOwner{Type: models.OwnerAgent, Id: "agent1"}, "0", "0")

	mirrored := len(mirror.txs)
	again, err := ledger.CancelForParcel(ctx, "p1", "dispute")
	if err != nil {
		t.Fatalf("Repeated cancel failed: %v", err)
	}
	if again.Status != models.EarningCancelled || len(mirror.txs) != mirrored {
		t.Errorf("Expected repeated cancel to be a no-op")
	}

	if _, err := ledger.CancelForParcel(ctx, "unknown", "dispute"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a parcel without earning, got %v", err)
	}

	report, err := ledger.Revenue(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("Revenue failed: %v", err)
	}
	if report.EarningCount != 0 || !report.TotalCommission.IsZero() {
		t.Errorf("Expected cancelled earnings excluded from revenue, got %d / %s", report.EarningCount, report.TotalCommission)
	}
}

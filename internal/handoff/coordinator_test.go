package handoff

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"group-shipment-go/internal/database"
	"group-shipment-go/internal/earnings"
	"group-shipment-go/internal/groups"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/store"

	"github.com/shopspring/decimal"
)

type noopRefunder struct{}

func (noopRefunder) RequestRefund(context.Context, string, decimal.Decimal, string) error {
	return nil
}

type testEnv struct {
	db          *database.Service
	registry    *groups.Registry
	ledger      *earnings.Ledger
	coordinator *Coordinator
}

func setupCoordinator(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "handoff.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	policy := models.DefaultPolicy()
	notifier := notify.LogNotifier{}
	ledger := earnings.NewLedger(db, notifier, nil, policy)
	env := &testEnv{
		db:          db,
		registry:    groups.NewRegistry(db, noopRefunder{}, notifier, policy),
		ledger:      ledger,
		coordinator: NewCoordinator(db, ledger, notifier),
	}

	for _, a := range []models.Agent{
		{Id: "pickup1", Name: "Ravi", CompanyId: "company1", Available: true},
		{Id: "pickup2", Name: "Sunil", CompanyId: "company1", Available: true},
		{Id: "driver1", Name: "Meera", CompanyId: "company1", Available: true},
		{Id: "offduty", Name: "Arjun", CompanyId: "company1", Available: false},
		{Id: "outsider", Name: "Kiran", CompanyId: "company2", Available: true},
	} {
		agent := a
		if _, err := env.coordinator.RegisterAgent(context.Background(), &agent); err != nil {
			t.Fatalf("RegisterAgent %s failed: %v", a.Id, err)
		}
	}
	return env, db.Close
}

// fullGroup opens a two-member group at 20% and fills it with parcels of 1000.00.
func (env *testEnv) fullGroup(t *testing.T) (*models.Group, []string) {
	t.Helper()
	ctx := context.Background()

	g, err := env.registry.Create(ctx, groups.CreateParams{
		CompanyId:          "company1",
		Route:              models.Route{SourceCity: "Pune", SourcePincode: "411001", TargetCity: "Mumbai", TargetPincode: "400001"},
		DepotAddress:       "Depot 4, Hadapsar",
		TargetMembers:      2,
		DiscountPercentage: decimal.NewFromInt(20),
		DeadlineOffset:     12 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	parcels := []string{"parcel-a", "parcel-b"}
	for i, id := range parcels {
		customer := []string{"alice", "bob"}[i]
		_, err := env.db.UpsertPaidParcel(ctx, &models.Parcel{
			Id: id, CustomerId: customer, CompanyId: "company1",
			OrderAmount: decimal.NewFromInt(1000), AmountPaid: decimal.NewFromInt(800),
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("UpsertPaidParcel failed: %v", err)
		}
		if g, err = env.registry.Join(ctx, g.Id, id, customer); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}
	if g.Status != models.GroupFull {
		t.Fatalf("Expected FULL group, got %s", g.Status)
	}
	return g, parcels
}

func TestAssignAgent_Rejections(t *testing.T) {
	env, cleanup := setupCoordinator(t)
	defer cleanup()
	ctx := context.Background()

	g, _ := env.fullGroup(t)

	tests := []struct {
		name    string
		agentId string
		want    error
	}{
		{"unknown agent", "ghost", store.ErrNotFound},
		{"unavailable agent", "offduty", store.ErrInvalidState},
		{"other company", "outsider", store.ErrInvalidInput},
		{"missing agent", "", store.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.coordinator.AssignPickupAgent(ctx, g.Id, tt.agentId); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := env.coordinator.AssignDeliveryAgent(ctx, g.Id, "driver1"); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState assigning delivery before pickup, got %v", err)
	}
}

func TestGroupHandoff_EndToEnd(t *testing.T) {
	env, cleanup := setupCoordinator(t)
	defer cleanup()
	ctx := context.Background()

	g, parcels := env.fullGroup(t)

	assigned, err := env.coordinator.AssignPickupAgent(ctx, g.Id, "pickup1")
	if err != nil {
		t.Fatalf("AssignPickupAgent failed: %v", err)
	}
	if assigned.Status != models.GroupPickupInProgress {
		t.Fatalf("Expected PICKUP_IN_PROGRESS, got %s", assigned.Status)
	}

	swapped, err := env.coordinator.AssignPickupAgent(ctx, g.Id, "pickup2")
	if err != nil {
		t.Fatalf("Pickup reassignment failed: %v", err)
	}
	if swapped.Status != models.GroupPickupInProgress || swapped.PickupAgentId != "pickup2" {
		t.Errorf("Expected reassignment to keep the phase, got %s with %s", swapped.Status, swapped.PickupAgentId)
	}

	if _, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: parcels[0]}); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState delivering before pickup, got %v", err)
	}

	picked, err := env.coordinator.MarkParcelPickedUp(ctx, parcels[0])
	if err != nil {
		t.Fatalf("MarkParcelPickedUp failed: %v", err)
	}
	if picked.Status != models.ParcelPickedUp {
		t.Errorf("Expected PICKED_UP, got %s", picked.Status)
	}

	if _, err := env.coordinator.CompletePickup(ctx, g.Id, ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput without proof, got %v", err)
	}
	atDepot, err := env.coordinator.CompletePickup(ctx, g.Id, "https://proofs.example/depot.jpg")
	if err != nil {
		t.Fatalf("CompletePickup failed: %v", err)
	}
	if atDepot.Status != models.GroupPickupComplete || atDepot.DepotArrivedAt == nil {
		t.Errorf("Expected PICKUP_COMPLETE with arrival time, got %s", atDepot.Status)
	}
	for _, id := range parcels {
		p, err := env.db.GetParcel(ctx, id)
		if err != nil {
			t.Fatalf("GetParcel failed: %v", err)
		}
		if p.Status != models.ParcelAtDepot {
			t.Errorf("Expected %s AT_DEPOT, got %s", id, p.Status)
		}
	}

	if _, err := env.coordinator.CompleteDelivery(ctx, g.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState completing delivery before it started, got %v", err)
	}
	if _, err := env.coordinator.AssignDeliveryAgent(ctx, g.Id, "driver1"); err != nil {
		t.Fatalf("AssignDeliveryAgent failed: %v", err)
	}
	if _, err := env.coordinator.CompleteDelivery(ctx, g.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState with undelivered parcels, got %v", err)
	}

	_, err = env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: parcels[0], AgentId: "pickup2"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for a non-delivery agent, got %v", err)
	}

	earning, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{
		ParcelId: parcels[0],
		Tip:      decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("ConfirmParcelDelivery failed: %v", err)
	}
	if earning.AgentId != "driver1" {
		t.Errorf("Expected earning for driver1, got %q", earning.AgentId)
	}
	if !earning.OrderAmount.Equal(decimal.NewFromInt(800)) ||
		!earning.PlatformCommission.Equal(decimal.NewFromInt(80)) ||
		!earning.AgentEarning.Equal(decimal.NewFromInt(160)) ||
		!earning.CompanyNetEarning.Equal(decimal.NewFromInt(560)) {
		t.Errorf("Unexpected split %s/%s/%s/%s", earning.OrderAmount,
			earning.PlatformCommission, earning.AgentEarning, earning.CompanyNetEarning)
	}

	again, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: parcels[0]})
	if err != nil {
		t.Fatalf("Repeated confirmation failed: %v", err)
	}
	if again.Id != earning.Id {
		t.Errorf("Expected repeated confirmation to return %s, got %s", earning.Id, again.Id)
	}

	wallet, err := env.db.GetWallet(ctx, models.WalletOwner{Type: models.OwnerAgent, Id: "driver1"})
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !wallet.PendingBalance.Equal(decimal.NewFromInt(170)) {
		t.Errorf("Expected driver pending balance 170, got %s", wallet.PendingBalance)
	}

	if _, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: parcels[1]}); err != nil {
		t.Fatalf("ConfirmParcelDelivery failed: %v", err)
	}
	completed, err := env.coordinator.CompleteDelivery(ctx, g.Id)
	if err != nil {
		t.Fatalf("CompleteDelivery failed: %v", err)
	}
	if completed.Status != models.GroupCompleted || completed.CompletedAt == nil {
		t.Errorf("Expected COMPLETED, got %s", completed.Status)
	}
}

func TestConfirmParcelDelivery_SoloParcel(t *testing.T) {
	env, cleanup := setupCoordinator(t)
	defer cleanup()
	ctx := context.Background()

	_, err := env.db.UpsertPaidParcel(ctx, &models.Parcel{
		Id: "solo", CustomerId: "carol", CompanyId: "company1",
		OrderAmount: decimal.NewFromInt(1000), AmountPaid: decimal.NewFromInt(1000),
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertPaidParcel failed: %v", err)
	}

	if _, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: "solo", AgentId: "offduty"}); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for an unavailable agent, got %v", err)
	}

	earning, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{
		ParcelId: "solo",
		AgentId:  "driver1",
		Bonus:    decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("ConfirmParcelDelivery failed: %v", err)
	}
	if !earning.AgentEarning.Equal(decimal.NewFromInt(200)) || !earning.AgentPayable().Equal(decimal.NewFromInt(225)) {
		t.Errorf("Expected agent earning 200 payable 225, got %s / %s", earning.AgentEarning, earning.AgentPayable())
	}

	parcel, err := env.db.GetParcel(ctx, "solo")
	if err != nil {
		t.Fatalf("GetParcel failed: %v", err)
	}
	if parcel.Status != models.ParcelDelivered || parcel.AgentId != "driver1" || parcel.DeliveredAt == nil {
		t.Errorf("Unexpected delivered parcel: %+v", parcel)
	}
}

// staleReadStore serves one outdated parcel snapshot, as a reader that loaded
// the parcel just before another confirmation committed would see it.
type staleReadStore struct {
	Store
	stale *models.Parcel
}

func (s *staleReadStore) GetParcel(ctx context.Context, id string) (*models.Parcel, error) {
	if s.stale != nil && s.stale.Id == id {
		p := s.stale
		s.stale = nil
		return p, nil
	}
	return s.Store.GetParcel(ctx, id)
}

func TestConfirmParcelDelivery_ConcurrentConfirmation(t *testing.T) {
	env, cleanup := setupCoordinator(t)
	defer cleanup()
	ctx := context.Background()

	before, err := env.db.UpsertPaidParcel(ctx, &models.Parcel{
		Id: "solo", CustomerId: "carol", CompanyId: "company1",
		OrderAmount: decimal.NewFromInt(1000), AmountPaid: decimal.NewFromInt(1000),
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertPaidParcel failed: %v", err)
	}

	first, err := env.coordinator.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: "solo", AgentId: "driver1"})
	if err != nil {
		t.Fatalf("First confirmation failed: %v", err)
	}

	late := NewCoordinator(&staleReadStore{Store: env.db, stale: before}, env.ledger, notify.LogNotifier{})
	second, err := late.ConfirmParcelDelivery(ctx, DeliveryParams{ParcelId: "solo", AgentId: "driver1"})
	if err != nil {
		t.Fatalf("Late confirmation failed: %v", err)
	}
	if second.Id != first.Id {
		t.Errorf("Expected the existing earning %s, got %s", first.Id, second.Id)
	}

	parcel, err := env.db.GetParcel(ctx, "solo")
	if err != nil {
		t.Fatalf("GetParcel failed: %v", err)
	}
	if parcel.Status != models.ParcelDelivered {
		t.Errorf("Expected DELIVERED parcel, got %s", parcel.Status)
	}
}

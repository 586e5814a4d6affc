package reconciler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"group-shipment-go/internal/cache"
	"group-shipment-go/internal/database"
	"group-shipment-go/internal/groups"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"

	"github.com/shopspring/decimal"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count(eventType notify.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

type noopRefunder struct{}

func (noopRefunder) RequestRefund(context.Context, string, decimal.Decimal, string) error {
	return nil
}

type fakeClearer struct {
	mu      sync.Mutex
	due     []models.Earning
	failing string
	cleared []string
}

func (f *fakeClearer) clearedIds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleared...)
}

func (f *fakeClearer) ListDue(_ context.Context, limit int) ([]models.Earning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeClearer) Clear(_ context.Context, earningId string) (*models.Earning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if earningId == f.failing {
		return nil, errors.New("wallet locked")
	}
	f.cleared = append(f.cleared, earningId)
	return &models.Earning{Id: earningId, Status: models.EarningCleared}, nil
}

type testEnv struct {
	db         *database.Service
	registry   *groups.Registry
	notifier   *recordingNotifier
	clearer    *fakeClearer
	reconciler *Reconciler
}

func setupReconciler(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "reconciler.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	policy := models.DefaultPolicy()
	env := &testEnv{
		db:       db,
		notifier: &recordingNotifier{},
		clearer:  &fakeClearer{},
	}
	env.registry = groups.NewRegistry(db, noopRefunder{}, env.notifier, policy)

	env.reconciler, err = New(Config{
		Groups:            db,
		Finalizer:         env.registry,
		Earnings:          env.clearer,
		Guard:             cache.NewStoreGuard(db),
		Notifier:          env.notifier,
		Policy:            policy,
		DeadlineInterval:  time.Minute,
		UrgencyInterval:   time.Minute,
		ClearanceInterval: time.Minute,
		BatchSize:         10,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return env, db.Close
}

// group opens a group with a six hour deadline and joins n members.
func (env *testEnv) group(t *testing.T, name string, target, n int) *models.Group {
	t.Helper()
	ctx := context.Background()

	g, err := env.registry.Create(ctx, groups.CreateParams{
		CompanyId:          "company1",
		Route:              models.Route{SourceCity: "Pune", SourcePincode: "411001", TargetCity: "Mumbai", TargetPincode: "400001"},
		DepotAddress:       "Depot 4, Hadapsar",
		TargetMembers:      target,
		DiscountPercentage: decimal.NewFromInt(30),
		DeadlineOffset:     6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < n; i++ {
		parcelId := fmt.Sprintf("%s-p%d", name, i)
		customerId := fmt.Sprintf("%s-c%d", name, i)
		_, err := env.db.UpsertPaidParcel(ctx, &models.Parcel{
			Id: parcelId, CustomerId: customerId, CompanyId: "company1",
			OrderAmount: decimal.NewFromInt(100), AmountPaid: decimal.NewFromInt(70),
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("UpsertPaidParcel failed: %v", err)
		}
		if g, err = env.registry.Join(ctx, g.Id, parcelId, customerId); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}
	return g
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{DeadlineInterval: time.Minute, UrgencyInterval: time.Minute, ClearanceInterval: time.Minute}); err == nil {
		t.Error("Expected error without collaborators")
	}

	env, cleanup := setupReconciler(t)
	defer cleanup()
	_, err := New(Config{
		Groups:    env.db,
		Finalizer: env.registry,
		Earnings:  env.clearer,
		Guard:     cache.NewStoreGuard(env.db),
	})
	if err == nil {
		t.Error("Expected error without sweep intervals")
	}
}

func TestSweepDeadlines_FinalizesEachGroupOnce(t *testing.T) {
	env, cleanup := setupReconciler(t)
	defer cleanup()
	ctx := context.Background()

	partial := env.group(t, "partial", 10, 8)
	cancelled := env.group(t, "cancelled", 10, 3)
	expired := env.group(t, "expired", 5, 0)

	if n := env.reconciler.SweepDeadlines(ctx); n != 0 {
		t.Fatalf("Expected nothing finalized before the deadline, got %d", n)
	}

	env.reconciler.now = func() time.Time { return time.Now().Add(7 * time.Hour) }
	if n := env.reconciler.SweepDeadlines(ctx); n != 3 {
		t.Fatalf("Expected 3 groups finalized, got %d", n)
	}

	expected := map[string]models.GroupStatus{
		partial.Id:   models.GroupPartial,
		cancelled.Id: models.GroupCancelled,
		expired.Id:   models.GroupExpired,
	}
	for id, want := range expected {
		g, err := env.db.GetGroup(ctx, id)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if g.Status != want {
			t.Errorf("Expected group %s to be %s, got %s", id, want, g.Status)
		}
	}

	g, _ := env.db.GetGroup(ctx, partial.Id)
	if g.EffectiveDiscountPercentage == nil || !g.EffectiveDiscountPercentage.Equal(decimal.NewFromInt(24)) {
		t.Errorf("Expected effective discount 24, got %v", g.EffectiveDiscountPercentage)
	}

	if n := env.reconciler.SweepDeadlines(ctx); n != 0 {
		t.Errorf("Expected second sweep to finalize nothing, got %d", n)
	}
	if n := env.notifier.count(notify.EventGroupCancelled); n != 3 {
		t.Errorf("Expected 3 cancellation notices, got %d", n)
	}
}

func TestSweepDeadlines_ConcurrentInstances(t *testing.T) {
	env, cleanup := setupReconciler(t)
	defer cleanup()

	for i := 0; i < 4; i++ {
		env.group(t, fmt.Sprintf("g%d", i), 4, 3)
	}
	env.reconciler.now = func() time.Time { return time.Now().Add(7 * time.Hour) }

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := env.reconciler.SweepDeadlines(context.Background())
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 4 {
		t.Errorf("Expected each of 4 groups finalized exactly once, got %d finalizations", total)
	}
}

func TestSweepUrgency_NotifiesOncePerGroup(t *testing.T) {
	env, cleanup := setupReconciler(t)
	defer cleanup()
	ctx := context.Background()

	closing := env.group(t, "closing", 5, 3)
	env.group(t, "empty", 5, 1)

	if n := env.reconciler.SweepUrgency(ctx); n != 0 {
		t.Fatalf("Expected no urgency outside the window, got %d", n)
	}

	env.reconciler.now = func() time.Time { return time.Now().Add(5*time.Hour + 30*time.Minute) }
	if n := env.reconciler.SweepUrgency(ctx); n != 1 {
		t.Fatalf("Expected 1 group notified, got %d", n)
	}
	if n := env.notifier.count(notify.EventGroupUrgency); n != 3 {
		t.Errorf("Expected 3 member notifications, got %d", n)
	}

	if n := env.reconciler.SweepUrgency(ctx); n != 0 {
		t.Errorf("Expected repeated sweep to send nothing, got %d", n)
	}

	g, err := env.db.GetGroup(ctx, closing.Id)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if g.Status != models.GroupOpen || g.Version != closing.Version {
		t.Errorf("Expected urgency sweep to leave the group untouched, got %s v%d", g.Status, g.Version)
	}
}

func TestSweepClearance_SkipsFailures(t *testing.T) {
	env, cleanup := setupReconciler(t)
	defer cleanup()

	env.clearer.due = []models.Earning{{Id: "e1"}, {Id: "e2"}, {Id: "e3"}}
	env.clearer.failing = "e2"

	if n := env.reconciler.SweepClearance(context.Background()); n != 2 {
		t.Errorf("Expected 2 earnings cleared, got %d", n)
	}
	cleared := env.clearer.clearedIds()
	if len(cleared) != 2 || cleared[0] != "e1" || cleared[1] != "e3" {
		t.Errorf("Expected e1 and e3 cleared, got %v", cleared)
	}
}

func TestStartStop(t *testing.T) {
	env, cleanup := setupReconciler(t)
	defer cleanup()

	env.clearer.due = []models.Earning{{Id: "e1"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.reconciler.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for len(env.clearer.clearedIds()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	env.reconciler.Stop()

	if len(env.clearer.clearedIds()) == 0 {
		t.Error("Expected the clearance loop to run on start")
	}
}

//go:build integration

package persist

import (
	"testing"

	"github.com/l2fabric/l2fabric/internal/testutil"
	"github.com/l2fabric/l2fabric/pkg/model"
)

func TestTerminalRoundTrip(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	client := testutil.RedisClient(t, 0)
	testutil.FlushDB(t, 0)
	ctx := testutil.Context(t)

	store := NewStore(client, "S1")
	term := &model.Terminal{Name: "a", Backing: model.BackingFabric, FabricInterface: "eth0"}
	if err := store.SaveTerminal(ctx, term); err != nil {
		t.Fatalf("SaveTerminal: %v", err)
	}

	loaded, err := store.LoadTerminals(ctx)
	if err != nil {
		t.Fatalf("LoadTerminals: %v", err)
	}
	got, ok := loaded["a"]
	if !ok {
		t.Fatal("expected terminal 'a' to be persisted")
	}
	if got.FabricInterface != "eth0" {
		t.Errorf("expected fabric interface eth0, got %s", got.FabricInterface)
	}

	if err := store.DeleteTerminal(ctx, "a"); err != nil {
		t.Fatalf("DeleteTerminal: %v", err)
	}
	loaded, err = store.LoadTerminals(ctx)
	if err != nil {
		t.Fatalf("LoadTerminals after delete: %v", err)
	}
	if _, ok := loaded["a"]; ok {
		t.Error("expected terminal 'a' to be gone after delete")
	}
}

func TestTrunkRoundTrip(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	client := testutil.RedisClient(t, 0)
	testutil.FlushDB(t, 0)
	ctx := testutil.Context(t)

	store := NewStore(client, "Agg")
	trunk := &model.Trunk{
		ID:        "trunk-1",
		EndA:      model.TrunkEnd{Network: "S1", Terminal: "p"},
		EndB:      model.TrunkEnd{Network: "S2", Terminal: "q"},
		Delay:     1.5,
		Capacity:  model.Bandwidth{Upstream: 1000, Downstream: 1000},
		Allocated: model.Bandwidth{Upstream: 200, Downstream: 200},
		Free:      map[uint32]struct{}{2: {}, 3: {}},
		Allocations: map[uint32]model.LabelAllocation{
			1: {LabelA: 1, LabelB: 1, ServiceID: 7},
		},
	}
	if err := store.SaveTrunk(ctx, trunk); err != nil {
		t.Fatalf("SaveTrunk: %v", err)
	}

	loaded, err := store.LoadTrunks(ctx)
	if err != nil {
		t.Fatalf("LoadTrunks: %v", err)
	}
	got, ok := loaded["trunk-1"]
	if !ok {
		t.Fatal("expected trunk-1 to be persisted")
	}
	if got.Allocated.Upstream != 200 || got.FreeLabelCount() != 2 {
		t.Errorf("unexpected reloaded trunk: %+v", got)
	}
	alloc, ok := got.Allocations[1]
	if !ok || alloc.ServiceID != 7 {
		t.Errorf("expected allocation for label 1 with service 7, got %+v", got.Allocations)
	}
}

func TestCommitServiceAtomic(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	client := testutil.RedisClient(t, 0)
	testutil.FlushDB(t, 0)
	ctx := testutil.Context(t)

	store := NewStore(client, "Agg")
	trunk := &model.Trunk{
		ID:        "trunk-1",
		Capacity:  model.Bandwidth{Upstream: 1000, Downstream: 1000},
		Allocated: model.Bandwidth{Upstream: 200, Downstream: 200},
		Free:      map[uint32]struct{}{2: {}, 3: {}},
		Allocations: map[uint32]model.LabelAllocation{
			1: {LabelA: 1, LabelB: 1, ServiceID: 42},
		},
	}
	svc := &model.Service{
		ID:      42,
		Network: "Agg",
		State:   model.Inactive,
		Reservations: []model.Reservation{
			{TrunkID: "trunk-1", LabelA: 1, LabelB: 1, Bandwidth: model.Bandwidth{Upstream: 200, Downstream: 200}},
		},
		SubServiceIDs: map[string]int{"S1": 1, "S2": 1},
	}

	if err := store.CommitService(ctx, svc, []*model.Trunk{trunk}); err != nil {
		t.Fatalf("CommitService: %v", err)
	}

	services, err := store.LoadServices(ctx)
	if err != nil {
		t.Fatalf("LoadServices: %v", err)
	}
	loadedSvc, ok := services[42]
	if !ok {
		t.Fatal("expected service 42 to be persisted")
	}
	if loadedSvc.State != model.Inactive || len(loadedSvc.Reservations) != 1 {
		t.Errorf("unexpected reloaded service: %+v", loadedSvc)
	}

	trunks, err := store.LoadTrunks(ctx)
	if err != nil {
		t.Fatalf("LoadTrunks: %v", err)
	}
	if trunks["trunk-1"].Allocated.Upstream != 200 {
		t.Errorf("expected trunk allocation committed alongside service, got %+v", trunks["trunk-1"])
	}

	if err := store.DeleteService(ctx, 42); err != nil {
		t.Fatalf("DeleteService: %v", err)
	}
	services, err = store.LoadServices(ctx)
	if err != nil {
		t.Fatalf("LoadServices after delete: %v", err)
	}
	if _, ok := services[42]; ok {
		t.Error("expected service 42 to be gone after delete")
	}
}

// fakeTrunkRestorer records RestoreTrunk calls so TestReconcileRestoresTrunks
// can assert Reconcile replays exactly what LoadTrunks returned, without
// depending on pkg/netcore.
type fakeTrunkRestorer struct {
	restored map[string]model.Trunk
}

func (f *fakeTrunkRestorer) RestoreTrunk(id string, free map[uint32]struct{}, allocations map[uint32]model.LabelAllocation, allocatedUp, allocatedDown uint64) error {
	if f.restored == nil {
		f.restored = make(map[string]model.Trunk)
	}
	f.restored[id] = model.Trunk{
		Free:        free,
		Allocations: allocations,
		Allocated:   model.Bandwidth{Upstream: allocatedUp, Downstream: allocatedDown},
	}
	return nil
}

func TestReconcileRestoresTrunks(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	client := testutil.RedisClient(t, 0)
	testutil.FlushDB(t, 0)
	ctx := testutil.Context(t)

	store := NewStore(client, "Agg")
	trunk := &model.Trunk{
		ID:          "trunk-1",
		Capacity:    model.Bandwidth{Upstream: 1000, Downstream: 1000},
		Allocated:   model.Bandwidth{Upstream: 200, Downstream: 200},
		Free:        map[uint32]struct{}{2: {}, 3: {}},
		Allocations: map[uint32]model.LabelAllocation{1: {LabelA: 1, LabelB: 1, ServiceID: 42}},
	}
	if err := store.SaveTrunk(ctx, trunk); err != nil {
		t.Fatalf("SaveTrunk: %v", err)
	}

	restorer := &fakeTrunkRestorer{}
	if err := store.Reconcile(ctx, restorer); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, ok := restorer.restored["trunk-1"]
	if !ok {
		t.Fatal("expected trunk-1 to be restored")
	}
	if got.Allocated.Upstream != 200 || got.Allocated.Downstream != 200 {
		t.Errorf("unexpected restored bandwidth: %+v", got.Allocated)
	}
	if len(got.Free) != 2 {
		t.Errorf("expected 2 free labels restored, got %d", len(got.Free))
	}
}

func TestReconcileNoOpForNonRestorer(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	client := testutil.RedisClient(t, 0)
	testutil.FlushDB(t, 0)
	ctx := testutil.Context(t)

	store := NewStore(client, "S1")
	if err := store.Reconcile(ctx, "not a restorer"); err != nil {
		t.Fatalf("Reconcile should no-op for a type that doesn't implement TrunkRestorer, got: %v", err)
	}
}

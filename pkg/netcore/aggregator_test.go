package netcore

import (
	"testing"

	"github.com/l2fabric/l2fabric/pkg/fabric/mockfabric"
	"github.com/l2fabric/l2fabric/pkg/model"
)

// twoSwitchTopology builds the scenario-2 topology of spec §8: switches
// S1, S2 joined by trunk T (S1.p <-> S2.q, 1000 up/down, labels 1-100),
// external terminal x -> S1.a and y -> S2.b.
func twoSwitchTopology(t *testing.T) (*Aggregator, *Switch, *Switch) {
	t.Helper()
	s1 := NewSwitch("S1", mockfabric.New())
	s2 := NewSwitch("S2", mockfabric.New())

	for _, name := range []string{"a", "p"} {
		if err := s1.AddTerminal(name, model.BackingFabric, "if-"+name); err != nil {
			t.Fatalf("S1.AddTerminal(%s): %v", name, err)
		}
	}
	for _, name := range []string{"b", "q"} {
		if err := s2.AddTerminal(name, model.BackingFabric, "if-"+name); err != nil {
			t.Fatalf("S2.AddTerminal(%s): %v", name, err)
		}
	}

	agg := NewAggregator("Agg")
	agg.AddSubnetwork("S1", s1)
	agg.AddSubnetwork("S2", s2)

	if err := agg.AddTerminal("x", 0, "S1/a"); err != nil {
		t.Fatalf("AddTerminal x: %v", err)
	}
	if err := agg.AddTerminal("y", 0, "S2/b"); err != nil {
		t.Fatalf("AddTerminal y: %v", err)
	}
	if _, err := agg.AddTrunk("S1", "p", "S2", "q", 1.0, 1000, 1000, "1-100"); err != nil {
		t.Fatalf("AddTrunk: %v", err)
	}
	return agg, s1, s2
}

func TestTwoSwitchAggregator(t *testing.T) {
	agg, s1, s2 := twoSwitchTopology(t)

	svc := agg.NewService()
	listener := &recordingListener{}
	if err := agg.AddListener(svc.ID, listener); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 5}, {Terminal: "y", Label: 7}},
		Bandwidth: model.Bandwidth{Upstream: 200, Downstream: 200},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	st, err := agg.Status(svc.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st != model.Inactive {
		t.Fatalf("expected composite INACTIVE, got %s", st)
	}

	trunk, err := agg.FindTrunk("S1", "p")
	if err != nil {
		t.Fatalf("FindTrunk: %v", err)
	}
	if trunk.RemainingUpstream() != 800 || trunk.RemainingDownstream() != 800 {
		t.Errorf("expected 800 remaining bandwidth each direction, got up=%d down=%d",
			trunk.RemainingUpstream(), trunk.RemainingDownstream())
	}
	if trunk.FreeLabelCount() != 99 {
		t.Errorf("expected 99 free labels (100 - 1 allocated), got %d", trunk.FreeLabelCount())
	}
	if _, allocated := trunk.Free[1]; allocated {
		t.Error("label 1 should be allocated, not free")
	}

	if s1.ListServices() == nil || len(s1.ListServices()) != 1 {
		t.Errorf("expected exactly one sub-service on S1, got %v", s1.ListServices())
	}
	if s2.ListServices() == nil || len(s2.ListServices()) != 1 {
		t.Errorf("expected exactly one sub-service on S2, got %v", s2.ListServices())
	}
}

func TestAggregatorInitiatePopulatesPlan(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)

	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 5}, {Terminal: "y", Label: 7}},
		Bandwidth: model.Bandwidth{Upstream: 200, Downstream: 200},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	got, err := agg.AwaitService(svc.ID)
	if err != nil {
		t.Fatalf("AwaitService: %v", err)
	}
	if len(got.Plan.SubRequests) != 2 {
		t.Fatalf("expected one SubRequest per subnetwork, got %d: %+v", len(got.Plan.SubRequests), got.Plan.SubRequests)
	}

	byNetwork := make(map[string]model.SubRequest, len(got.Plan.SubRequests))
	for _, sr := range got.Plan.SubRequests {
		byNetwork[sr.Network] = sr
	}
	for _, n := range []string{"S1", "S2"} {
		sr, ok := byNetwork[n]
		if !ok {
			t.Fatalf("expected a SubRequest for %s", n)
		}
		if len(sr.TrunkReservations) != 1 {
			t.Errorf("expected %s's SubRequest to carry the cross-network trunk reservation, got %d", n, len(sr.TrunkReservations))
		}
		if len(sr.Request.Endpoints) == 0 {
			t.Errorf("expected %s's SubRequest to carry its endpoints", n)
		}
	}
}

func TestAggregatorListTrunks(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)
	trunks := agg.ListTrunks()
	if len(trunks) != 1 {
		t.Fatalf("expected 1 trunk, got %d", len(trunks))
	}
	if trunks[0].ID == "" {
		t.Error("expected trunk to have a non-empty id")
	}

	// Mutating the returned copy must not affect the aggregator's own state.
	trunks[0].Allocated.Upstream = 999999
	fresh := agg.ListTrunks()
	if fresh[0].Allocated.Upstream == 999999 {
		t.Error("ListTrunks should return independent copies, not live references")
	}
}

func TestAggregatorRestoreTrunk(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)
	trunks := agg.ListTrunks()
	id := trunks[0].ID

	free := map[uint32]struct{}{2: {}, 3: {}}
	allocations := map[uint32]model.LabelAllocation{1: {LabelA: 1, LabelB: 1, ServiceID: 42}}
	if err := agg.RestoreTrunk(id, free, allocations, 300, 400); err != nil {
		t.Fatalf("RestoreTrunk: %v", err)
	}

	got, err := agg.FindTrunk("S1", "p")
	if err != nil {
		t.Fatalf("FindTrunk: %v", err)
	}
	if got.Allocated.Upstream != 300 || got.Allocated.Downstream != 400 {
		t.Errorf("expected restored bandwidth 300/400, got %d/%d", got.Allocated.Upstream, got.Allocated.Downstream)
	}
	if got.FreeLabelCount() != 2 {
		t.Errorf("expected 2 free labels restored, got %d", got.FreeLabelCount())
	}
	if _, ok := got.Allocations[1]; !ok {
		t.Error("expected restored allocation for label 1")
	}
}

func TestAggregatorRestoreTrunkUnknownID(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)
	if err := agg.RestoreTrunk("no-such-trunk", nil, nil, 0, 0); err == nil {
		t.Error("expected an error restoring an unknown trunk id")
	}
}

func TestAggregatorReleaseRestoresTrunk(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)
	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 5}, {Terminal: "y", Label: 7}},
		Bandwidth: model.Bandwidth{Upstream: 200, Downstream: 200},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := agg.Release(svc.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	trunk, err := agg.FindTrunk("S1", "p")
	if err != nil {
		t.Fatalf("FindTrunk: %v", err)
	}
	if trunk.RemainingUpstream() != 1000 || trunk.RemainingDownstream() != 1000 {
		t.Errorf("expected full bandwidth restored, got up=%d down=%d", trunk.RemainingUpstream(), trunk.RemainingDownstream())
	}
	if trunk.FreeLabelCount() != 100 {
		t.Errorf("expected all 100 labels free after release, got %d", trunk.FreeLabelCount())
	}

	st, _ := agg.Status(svc.ID)
	if st != model.Released {
		t.Errorf("expected RELEASED, got %s", st)
	}
}

func TestAggregatorSingleInferiorPassThrough(t *testing.T) {
	s1 := NewSwitch("S1", mockfabric.New())
	_ = s1.AddTerminal("a", model.BackingFabric, "if-a")
	_ = s1.AddTerminal("c", model.BackingFabric, "if-c")

	agg := NewAggregator("Agg")
	agg.AddSubnetwork("S1", s1)
	_ = agg.AddTerminal("x", 0, "S1/a")
	_ = agg.AddTerminal("z", 0, "S1/c")

	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 1}, {Terminal: "z", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	st, _ := agg.Status(svc.ID)
	if st != model.Inactive {
		t.Errorf("expected INACTIVE for single-inferior pass-through, got %s", st)
	}
}

func TestAggregatorUnknownTerminal(t *testing.T) {
	agg, _, _ := twoSwitchTopology(t)
	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "nope", Label: 1}, {Terminal: "y", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	if err := agg.Initiate(svc.ID, req); err == nil {
		t.Error("expected UNKNOWN_TERMINAL for an unregistered external terminal")
	}
}

// TestUnroutableAfterReplan is scenario 5 of spec §8: a trunk with only 3
// labels and 100 bandwidth has all labels consumed by three prior services;
// a fourth request must fail UNROUTABLE with no side effects.
func TestUnroutableAfterReplan(t *testing.T) {
	s1 := NewSwitch("S1", mockfabric.New())
	s2 := NewSwitch("S2", mockfabric.New())
	for _, name := range []string{"a", "p"} {
		_ = s1.AddTerminal(name, model.BackingFabric, "if-"+name)
	}
	for _, name := range []string{"b", "q"} {
		_ = s2.AddTerminal(name, model.BackingFabric, "if-"+name)
	}

	agg := NewAggregator("Agg")
	agg.AddSubnetwork("S1", s1)
	agg.AddSubnetwork("S2", s2)
	_ = agg.AddTerminal("x", 0, "S1/a")
	_ = agg.AddTerminal("y", 0, "S2/b")
	if _, err := agg.AddTrunk("S1", "p", "S2", "q", 1.0, 100, 100, "1-3"); err != nil {
		t.Fatalf("AddTrunk: %v", err)
	}

	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 5}, {Terminal: "y", Label: 7}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	for i := 0; i < 3; i++ {
		svc := agg.NewService()
		if err := agg.Initiate(svc.ID, req); err != nil {
			t.Fatalf("service %d Initiate: %v", i, err)
		}
	}

	trunkBefore, _ := agg.FindTrunk("S1", "p")
	freeBefore := trunkBefore.FreeLabelCount()

	fourth := agg.NewService()
	if err := agg.Initiate(fourth.ID, req); err == nil {
		t.Fatal("expected UNROUTABLE on the fourth request")
	}

	trunkAfter, _ := agg.FindTrunk("S1", "p")
	if trunkAfter.FreeLabelCount() != freeBefore {
		t.Errorf("expected no side effects on failed planning, free labels changed from %d to %d",
			freeBefore, trunkAfter.FreeLabelCount())
	}
}

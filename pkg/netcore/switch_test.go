package netcore

import (
	"errors"
	"testing"

	"github.com/l2fabric/l2fabric/pkg/brokererr"
	"github.com/l2fabric/l2fabric/pkg/fabric/mockfabric"
	"github.com/l2fabric/l2fabric/pkg/model"
)

var errBridgeDown = errors.New("link down")

type recordingListener struct {
	events []model.ServiceEvent
}

func (r *recordingListener) OnServiceEvent(ev model.ServiceEvent) { r.events = append(r.events, ev) }

// TestSingleSwitchOneService is scenario 1 of spec §8: switch S with
// terminals a, b; request {(a,10),(b,20)}, bw=100. One bridge is created;
// the service reaches INACTIVE via a ready event.
func TestSingleSwitchOneService(t *testing.T) {
	driver := mockfabric.New()
	s := NewSwitch("S", driver)

	if err := s.AddTerminal("a", model.BackingFabric, "eth0"); err != nil {
		t.Fatalf("AddTerminal a: %v", err)
	}
	if err := s.AddTerminal("b", model.BackingFabric, "eth1"); err != nil {
		t.Fatalf("AddTerminal b: %v", err)
	}

	svc := s.NewService()
	if svc.State != model.Dormant {
		t.Fatalf("new service should start DORMANT, got %s", svc.State)
	}

	listener := &recordingListener{}
	if err := s.AddListener(svc.ID, listener); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{
			{Network: "S", Terminal: "a", Label: 10},
			{Network: "S", Terminal: "b", Label: 20},
		},
		Bandwidth: model.Bandwidth{Upstream: 100, Downstream: 100},
	}
	if err := s.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	st, err := s.Status(svc.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st != model.Inactive {
		t.Errorf("expected INACTIVE after bridge creation, got %s", st)
	}
	if driver.BridgeCount() != 1 {
		t.Errorf("expected exactly one bridge, got %d", driver.BridgeCount())
	}

	wantSeq := []model.State{model.Establishing, model.Inactive}
	if len(listener.events) != len(wantSeq) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantSeq), len(listener.events), listener.events)
	}
	for i, ev := range listener.events {
		if ev.New != wantSeq[i] {
			t.Errorf("event %d: got %s, want %s", i, ev.New, wantSeq[i])
		}
	}
}

func TestSwitchAddTerminalDuplicateFails(t *testing.T) {
	s := NewSwitch("S", mockfabric.New())
	if err := s.AddTerminal("a", model.BackingFabric, "eth0"); err != nil {
		t.Fatalf("AddTerminal: %v", err)
	}
	if err := s.AddTerminal("a", model.BackingFabric, "eth1"); err == nil {
		t.Error("expected TERMINAL_EXISTS on duplicate terminal name")
	}
}

func TestSwitchRemoveTerminalInUse(t *testing.T) {
	driver := mockfabric.New()
	s := NewSwitch("S", driver)
	_ = s.AddTerminal("a", model.BackingFabric, "eth0")
	_ = s.AddTerminal("b", model.BackingFabric, "eth1")

	svc := s.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "a", Label: 1}, {Terminal: "b", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	if err := s.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := s.RemoveTerminal("a"); err == nil {
		t.Error("expected TERMINAL_IN_USE while a live service uses the terminal")
	}
}

func TestSwitchInitiateAggregatesFailures(t *testing.T) {
	s := NewSwitch("S", mockfabric.New())
	_ = s.AddTerminal("a", model.BackingFabric, "eth0")

	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "nope", Label: 1}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	// serviceID 99 doesn't exist, the single endpoint is below the minimum
	// of two, and the endpoint names an unregistered terminal: three
	// independent preconditions all fail at once.
	err := s.Initiate(99, req)
	if err == nil {
		t.Fatal("expected Initiate to fail")
	}

	var multi *brokererr.Multi
	if !errors.As(err, &multi) {
		t.Fatalf("expected an aggregated *brokererr.Multi, got %T: %v", err, err)
	}
	if len(multi.Errs) != 3 {
		t.Errorf("expected 3 aggregated preconditions failures, got %d: %v", len(multi.Errs), multi.Errs)
	}
}

func TestSwitchReleaseIdempotent(t *testing.T) {
	driver := mockfabric.New()
	s := NewSwitch("S", driver)
	_ = s.AddTerminal("a", model.BackingFabric, "eth0")
	_ = s.AddTerminal("b", model.BackingFabric, "eth1")

	svc := s.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "a", Label: 1}, {Terminal: "b", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	if err := s.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := s.Release(svc.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := s.Release(svc.ID); err != nil {
		t.Fatalf("second Release should be a no-op, got: %v", err)
	}
	st, _ := s.Status(svc.ID)
	if st != model.Released {
		t.Errorf("expected RELEASED, got %s", st)
	}
	if driver.BridgeCount() != 0 {
		t.Error("expected bridge to be torn down after release")
	}
}

func TestSwitchBridgeErrorFailsService(t *testing.T) {
	driver := mockfabric.New()
	s := NewSwitch("S", driver)
	_ = s.AddTerminal("a", model.BackingFabric, "eth0")
	_ = s.AddTerminal("b", model.BackingFabric, "eth1")

	key := "eth0/1,eth1/2"
	driver.FailBridge[key] = errBridgeDown

	svc := s.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "a", Label: 1}, {Terminal: "b", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 10, Downstream: 10},
	}
	if err := s.Initiate(svc.ID, req); err == nil {
		t.Fatal("expected Initiate to surface the fabric error")
	}
	st, _ := s.Status(svc.ID)
	if st != model.Failed {
		t.Errorf("expected FAILED after bridge error, got %s", st)
	}
}

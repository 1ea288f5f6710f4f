package agent

import (
	"testing"

	"github.com/l2fabric/l2fabric/pkg/fabric"
	"github.com/l2fabric/l2fabric/pkg/fabric/mockfabric"
	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/netcore"
	"github.com/l2fabric/l2fabric/pkg/topology"
)

func mockRegistry() *Registry {
	r := NewRegistry()
	r.RegisterFabric("mock", func(params map[string]string) (fabric.Driver, error) {
		return mockfabric.New(), nil
	})
	return r
}

const twoSwitchYAML = `
name: root
type: aggregator
subnetworks:
  S1:
    type: switch
    fabric: {driver: mock}
    terminals:
      a: {interface: eth0}
      p: {interface: eth1}
  S2:
    type: switch
    fabric: {driver: mock}
    terminals:
      b: {interface: eth0}
      q: {interface: eth1}
terminals:
  x: {network: S1, subterm: a}
  y: {network: S2, subterm: b}
trunks:
  T:
    end1: {network: S1, terminal: p}
    end2: {network: S2, terminal: q}
    delay: 1.0
    up: 1000
    down: 1000
    labels: "1-100"
`

func TestBuildTwoSwitchAggregator(t *testing.T) {
	cfg, err := topology.Parse([]byte(twoSwitchYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	net, err := mockRegistry().Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	agg, ok := net.(*netcore.Aggregator)
	if !ok {
		t.Fatalf("expected *netcore.Aggregator, got %T", net)
	}

	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 1}, {Terminal: "y", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 100, Downstream: 100},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate on built tree: %v", err)
	}
	st, err := agg.Status(svc.ID)
	if err != nil || st != model.Inactive {
		t.Fatalf("expected INACTIVE, got state=%s err=%v", st, err)
	}
}

func TestBuildIndexResolvesSubnetworksByName(t *testing.T) {
	cfg, err := topology.Parse([]byte(twoSwitchYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root, index, err := mockRegistry().BuildIndex(cfg)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if index["root"] != root {
		t.Error("expected index['root'] to be the same object as the returned root")
	}
	s1, ok := index["S1"]
	if !ok {
		t.Fatal("expected index to contain S1")
	}
	if _, ok := s1.(*netcore.Switch); !ok {
		t.Fatalf("expected S1 to be a *netcore.Switch, got %T", s1)
	}
	if _, ok := index["S2"]; !ok {
		t.Fatal("expected index to contain S2")
	}

	// The aggregator's own subnetwork reference must be the exact same
	// object handed back in the index, not a second, independently-built one
	// (which would double-dial the fabric driver and diverge in state).
	agg := root.(*netcore.Aggregator)
	svc := agg.NewService()
	req := model.ConnectionRequest{
		Endpoints: []model.EndPoint{{Terminal: "x", Label: 1}, {Terminal: "y", Label: 2}},
		Bandwidth: model.Bandwidth{Upstream: 100, Downstream: 100},
	}
	if err := agg.Initiate(svc.ID, req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if ids := s1.ListServices(); len(ids) != 1 {
		t.Errorf("expected the sub-service to be visible through the indexed S1 reference, got %v", ids)
	}
}

func TestBuildUnknownFabricDriver(t *testing.T) {
	const yaml = `
name: S1
type: switch
fabric: {driver: nonexistent}
terminals:
  a: {interface: eth0}
`
	cfg, err := topology.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := mockRegistry().Build(cfg); err == nil {
		t.Error("expected error for unregistered fabric driver")
	}
}

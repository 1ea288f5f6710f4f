// Package agent builds a live network tree (pkg/netcore Switches and
// Aggregators) from a parsed pkg/topology configuration, resolving each
// switch's fabric driver by name through a small factory registry (spec
// §9's "agent/factory registry" design note).
package agent

import (
	"fmt"
	"sort"

	"github.com/l2fabric/l2fabric/pkg/fabric"
	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/netcore"
	"github.com/l2fabric/l2fabric/pkg/topology"
)

// FabricFactory constructs a fabric.Driver from the params map declared
// under a switch's `fabric.params` configuration key.
type FabricFactory func(params map[string]string) (fabric.Driver, error)

// Registry maps a configured fabric driver name (`fabric.driver`) to the
// factory that builds it.
type Registry struct {
	fabrics map[string]FabricFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fabrics: make(map[string]FabricFactory)}
}

// RegisterFabric adds or replaces the factory for a named fabric driver.
func (r *Registry) RegisterFabric(name string, factory FabricFactory) {
	r.fabrics[name] = factory
}

// Build recursively constructs the network tree rooted at cfg, wiring
// fabric drivers through r and returning the root netcore.Network.
func (r *Registry) Build(cfg *topology.NetworkConfig) (netcore.Network, error) {
	return r.build(cfg, nil)
}

// BuildIndex builds the tree rooted at cfg exactly like Build, additionally
// returning every network in the tree keyed by name. cmd/brokerctl uses this
// to resolve the `-n <network>` flag against a network nested under an
// aggregator, since netcore.Network exposes no subnetwork lookup of its own.
func (r *Registry) BuildIndex(cfg *topology.NetworkConfig) (netcore.Network, map[string]netcore.Network, error) {
	index := make(map[string]netcore.Network)
	root, err := r.build(cfg, index)
	if err != nil {
		return nil, nil, err
	}
	return root, index, nil
}

func (r *Registry) build(cfg *topology.NetworkConfig, index map[string]netcore.Network) (netcore.Network, error) {
	var net netcore.Network
	var err error
	switch cfg.Type {
	case topology.TypeSwitch:
		net, err = r.buildSwitch(cfg)
	case topology.TypeAggregator:
		net, err = r.buildAggregator(cfg, index)
	default:
		return nil, fmt.Errorf("agent: network '%s': unrecognised type '%s'", cfg.Name, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if index != nil {
		index[cfg.Name] = net
	}
	return net, nil
}

func (r *Registry) buildSwitch(cfg *topology.NetworkConfig) (*netcore.Switch, error) {
	factory, ok := r.fabrics[cfg.Fabric.Driver]
	if !ok {
		return nil, fmt.Errorf("agent: switch '%s': no fabric driver registered for '%s'", cfg.Name, cfg.Fabric.Driver)
	}
	driver, err := factory(cfg.Fabric.Params)
	if err != nil {
		return nil, fmt.Errorf("agent: switch '%s': building fabric driver: %w", cfg.Name, err)
	}

	sw := netcore.NewSwitch(cfg.Name, driver)
	for _, tname := range sortedTerminalNames(cfg.Terminals) {
		t := cfg.Terminals[tname]
		if err := sw.AddTerminal(tname, model.BackingFabric, t.Interface); err != nil {
			return nil, fmt.Errorf("agent: switch '%s' terminal '%s': %w", cfg.Name, tname, err)
		}
	}
	return sw, nil
}

func (r *Registry) buildAggregator(cfg *topology.NetworkConfig, index map[string]netcore.Network) (*netcore.Aggregator, error) {
	agg := netcore.NewAggregator(cfg.Name)

	for _, subName := range topology.SubnetworkNames(cfg) {
		sub, err := r.build(cfg.Subnetworks[subName], index)
		if err != nil {
			return nil, err
		}
		agg.AddSubnetwork(subName, sub)
	}

	for _, tname := range sortedTerminalNames(cfg.Terminals) {
		t := cfg.Terminals[tname]
		descriptor := t.Network + "/" + t.Subterm
		if err := agg.AddTerminal(tname, model.BackingSubnetwork, descriptor); err != nil {
			return nil, fmt.Errorf("agent: aggregator '%s' terminal '%s': %w", cfg.Name, tname, err)
		}
	}

	for _, tag := range sortedTrunkTags(cfg.Trunks) {
		tr := cfg.Trunks[tag]
		if _, err := agg.AddTrunk(tr.End1.Network, tr.End1.Terminal, tr.End2.Network, tr.End2.Terminal,
			tr.Delay, tr.Up, tr.Down, tr.Labels); err != nil {
			return nil, fmt.Errorf("agent: aggregator '%s' trunk '%s': %w", cfg.Name, tag, err)
		}
	}
	return agg, nil
}

func sortedTerminalNames(m map[string]topology.TerminalConfig) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTrunkTags(m map[string]topology.TrunkConfig) []string {
	tags := make([]string, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

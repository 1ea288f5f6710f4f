package topology

import (
	"fmt"
	"os"
	"sort"

	"github.com/l2fabric/l2fabric/pkg/util"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a topology file from path, returning the root
// NetworkConfig of the network tree.
func Load(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and decodes topology YAML already read into memory.
func Parse(data []byte) (*NetworkConfig, error) {
	var root NetworkConfig
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}
	if err := validate(&root); err != nil {
		return nil, fmt.Errorf("topology validation failed: %w", err)
	}
	return &root, nil
}

// validate walks the network tree checking structural and cross-reference
// invariants: every node names a recognised type, switches carry fabric
// config and interface-backed terminals, aggregators' external terminals
// and trunk ends resolve to a declared subnetwork and (for trunks) a
// terminal within it.
func validate(root *NetworkConfig) error {
	v := &util.ValidationBuilder{}
	validateNode(v, root)
	return v.Build()
}

func validateNode(v *util.ValidationBuilder, n *NetworkConfig) {
	v.Add(n.Name != "", "network: name is required")

	switch n.Type {
	case TypeSwitch:
		validateSwitch(v, n)
	case TypeAggregator:
		validateAggregator(v, n)
	default:
		v.AddErrorf("network '%s': unrecognised type '%s' (want '%s' or '%s')",
			n.Name, n.Type, TypeSwitch, TypeAggregator)
	}
}

func validateSwitch(v *util.ValidationBuilder, n *NetworkConfig) {
	if n.Fabric == nil || n.Fabric.Driver == "" {
		v.AddErrorf("switch '%s': fabric.driver is required", n.Name)
	}
	for tname, t := range n.Terminals {
		if t.Interface == "" {
			v.AddErrorf("switch '%s' terminal '%s': interface is required", n.Name, tname)
		}
	}
	if len(n.Subnetworks) != 0 {
		v.AddErrorf("switch '%s': switches may not declare subnetworks", n.Name)
	}
	if len(n.Trunks) != 0 {
		v.AddErrorf("switch '%s': switches may not declare trunks", n.Name)
	}
}

func validateAggregator(v *util.ValidationBuilder, n *NetworkConfig) {
	if len(n.Subnetworks) == 0 {
		v.AddErrorf("aggregator '%s': at least one subnetwork is required", n.Name)
	}
	for subName, sub := range n.Subnetworks {
		if sub.Name == "" {
			sub.Name = subName
		}
		validateNode(v, sub)
	}

	for tname, t := range n.Terminals {
		if t.Network == "" || t.Subterm == "" {
			v.AddErrorf("aggregator '%s' external terminal '%s': network and subterm are required", n.Name, tname)
			continue
		}
		sub, ok := n.Subnetworks[t.Network]
		if !ok {
			v.AddErrorf("aggregator '%s' external terminal '%s': unknown subnetwork '%s'", n.Name, tname, t.Network)
			continue
		}
		if !hasTerminal(sub, t.Subterm) {
			v.AddErrorf("aggregator '%s' external terminal '%s': subnetwork '%s' has no terminal '%s'",
				n.Name, tname, t.Network, t.Subterm)
		}
	}

	for tag, tr := range n.Trunks {
		validateTrunkEnd(v, n, tag, "end1", tr.End1)
		validateTrunkEnd(v, n, tag, "end2", tr.End2)
		if tr.Labels == "" {
			v.AddErrorf("aggregator '%s' trunk '%s': labels is required", n.Name, tag)
		}
	}
}

func validateTrunkEnd(v *util.ValidationBuilder, n *NetworkConfig, tag, side string, end TrunkEndConfig) {
	sub, ok := n.Subnetworks[end.Network]
	if !ok {
		v.AddErrorf("aggregator '%s' trunk '%s'.%s: unknown subnetwork '%s'", n.Name, tag, side, end.Network)
		return
	}
	if !hasTerminal(sub, end.Terminal) {
		v.AddErrorf("aggregator '%s' trunk '%s'.%s: subnetwork '%s' has no terminal '%s'",
			n.Name, tag, side, end.Network, end.Terminal)
	}
}

// hasTerminal reports whether sub declares a terminal named name, either
// as a switch's fabric terminal or an aggregator's external alias.
func hasTerminal(sub *NetworkConfig, name string) bool {
	_, ok := sub.Terminals[name]
	return ok
}

// SubnetworkNames returns n's subnetwork names in sorted order.
func SubnetworkNames(n *NetworkConfig) []string {
	names := make([]string, 0, len(n.Subnetworks))
	for name := range n.Subnetworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package topology loads and validates the YAML declaration of a broker's
// network tree: the recursive nesting of switches and aggregators, their
// terminals, and the trunks that join them.
package topology

// FabricConfig selects and configures the fabric driver a switch talks to.
type FabricConfig struct {
	Driver string            `yaml:"driver"`
	Params map[string]string `yaml:"params,omitempty"`
}

// TerminalConfig declares one terminal. A switch terminal carries
// Interface (the fabric interface it is backed by); an aggregator's
// external terminal carries Network and Subterm, naming the inferior
// terminal it aliases. Only the fields matching the enclosing network's
// Type are meaningful.
type TerminalConfig struct {
	Interface string `yaml:"interface,omitempty"`
	Network   string `yaml:"network,omitempty"`
	Subterm   string `yaml:"subterm,omitempty"`
}

// TrunkEndConfig names one side of a trunk: an inferior network and one of
// its terminals.
type TrunkEndConfig struct {
	Network  string `yaml:"network"`
	Terminal string `yaml:"terminal"`
}

// TrunkConfig declares a trunk joining two inferior terminals.
type TrunkConfig struct {
	End1   TrunkEndConfig `yaml:"end1"`
	End2   TrunkEndConfig `yaml:"end2"`
	Delay  float64        `yaml:"delay"`
	Up     uint64         `yaml:"up"`
	Down   uint64         `yaml:"down"`
	Labels string         `yaml:"labels"`
}

// NetworkConfig is one node of the network tree: either a leaf switch
// (Type == TypeSwitch, with Terminals and Fabric set) or a composite
// aggregator (Type == TypeAggregator, with Subnetworks, Terminals naming
// external aliases, and Trunks set).
type NetworkConfig struct {
	Name   string        `yaml:"name"`
	Type   string        `yaml:"type"`
	Fabric *FabricConfig `yaml:"fabric,omitempty"`

	Terminals   map[string]TerminalConfig    `yaml:"terminals,omitempty"`
	Subnetworks map[string]*NetworkConfig    `yaml:"subnetworks,omitempty"`
	Trunks      map[string]TrunkConfig       `yaml:"trunks,omitempty"`
}

const (
	TypeSwitch     = "switch"
	TypeAggregator = "aggregator"
)

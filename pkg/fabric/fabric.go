// Package fabric defines the driver contract a Switch consumes (spec §4.2):
// name interfaces, request asynchronous bridges between circuits, and
// reconcile live bridges after a broker restart.
package fabric

// Interface names a physical port or a tagged sub-port on a fabric. It is
// purely syntactic — interfaces_of does no provisioning.
type Interface struct {
	Name string
}

// Circuit is a port+label pair: one side of a bridge connection.
type Circuit struct {
	Interface Interface
	Label     uint32
}

// TrafficFlow is the per-direction bandwidth a circuit contributes to a
// bridge.
type TrafficFlow struct {
	Upstream   uint64
	Downstream uint64
}

// BridgeState is the asynchronous lifecycle a Bridge moves through.
type BridgeState int

const (
	BridgeCreated BridgeState = iota
	BridgeDestroyed
	BridgeError
)

func (s BridgeState) String() string {
	switch s {
	case BridgeCreated:
		return "created"
	case BridgeDestroyed:
		return "destroyed"
	case BridgeError:
		return "error"
	default:
		return "unknown"
	}
}

// Bridge is a set of tunnel endpoints stitched together by a fabric driver.
type Bridge struct {
	ID       string
	Circuits map[Circuit]TrafficFlow
}

// BridgeEvent is delivered to a Listener as a bridge moves through its
// asynchronous lifecycle (spec §4.2 "the listener will be invoked with
// created, destroyed, or error").
type BridgeEvent struct {
	BridgeID string
	State    BridgeState
	Err      error
}

// Listener observes bridge lifecycle events. A Switch registers one per
// service it asks the fabric to bridge.
type Listener interface {
	OnBridgeEvent(ev BridgeEvent)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ev BridgeEvent)

func (f ListenerFunc) OnBridgeEvent(ev BridgeEvent) { f(ev) }

// Driver is the contract a fabric exposes to a Switch (spec §4.2).
//
// Bridge failure is irreversible from the client's perspective: once a
// Listener observes BridgeError the client must recreate a fresh bridge,
// never retry the same one (spec §4.2 "Failure semantics").
type Driver interface {
	// InterfacesOf resolves a syntactic port/sub-port description into an
	// Interface. It performs no provisioning.
	InterfacesOf(description string) (Interface, error)

	// Bridge requests a bridge connecting the given circuits with their
	// per-direction bandwidths, notifying listener asynchronously. The
	// driver may return an existing equivalent bridge for an identical
	// circuit set (idempotent creation).
	Bridge(listener Listener, circuits map[Circuit]TrafficFlow) (*Bridge, error)

	// Retain declares which bridges the client still wants; the driver
	// garbage-collects the rest. Used to reconcile fabric state after a
	// broker restart (spec §4.2, spec §4.6).
	Retain(liveBridgeIDs []string) error
}

// Package mockfabric provides an in-memory fabric.Driver for tests of
// Switch and the Aggregator planner: bridges are created synchronously
// (the listener is invoked inline rather than from a goroutine), so tests
// don't need to synchronize on async delivery.
package mockfabric

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/l2fabric/l2fabric/pkg/fabric"
)

// Driver is a deterministic, synchronous fabric.Driver for tests.
type Driver struct {
	mu sync.Mutex

	interfaces map[string]fabric.Interface
	bridges    map[string]*fabric.Bridge
	listeners  map[string]fabric.Listener
	nextID     int

	// FailBridge, when set, makes the next Bridge call for a circuit set
	// matching this key return an error instead of a bridge.
	FailBridge map[string]error
}

// New returns an empty mock fabric driver.
func New() *Driver {
	return &Driver{
		interfaces: make(map[string]fabric.Interface),
		bridges:    make(map[string]*fabric.Bridge),
		listeners:  make(map[string]fabric.Listener),
		FailBridge: make(map[string]error),
	}
}

// InterfacesOf resolves a description to an Interface, creating one on
// first use (mirrors a real fabric's purely syntactic resolution).
func (d *Driver) InterfacesOf(description string) (fabric.Interface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if iface, ok := d.interfaces[description]; ok {
		return iface, nil
	}
	iface := fabric.Interface{Name: description}
	d.interfaces[description] = iface
	return iface, nil
}

// circuitSetKey computes a canonical key for a circuit set so identical
// circuit-sets resolve to the same bridge (spec §4.2 "idempotent creation
// under equal circuit-sets").
func circuitSetKey(circuits map[fabric.Circuit]fabric.TrafficFlow) string {
	keys := make([]string, 0, len(circuits))
	for c := range circuits {
		keys = append(keys, fmt.Sprintf("%s/%d", c.Interface.Name, c.Label))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Bridge creates (or returns an existing equivalent) bridge, invoking
// listener.OnBridgeEvent(created) synchronously before returning.
func (d *Driver) Bridge(listener fabric.Listener, circuits map[fabric.Circuit]fabric.TrafficFlow) (*fabric.Bridge, error) {
	d.mu.Lock()

	key := circuitSetKey(circuits)
	if err, fail := d.FailBridge[key]; fail {
		delete(d.FailBridge, key)
		d.mu.Unlock()
		return nil, err
	}

	for _, b := range d.bridges {
		if circuitSetKey(b.Circuits) == key {
			d.mu.Unlock()
			if listener != nil {
				listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: b.ID, State: fabric.BridgeCreated})
			}
			return b, nil
		}
	}

	d.nextID++
	b := &fabric.Bridge{ID: fmt.Sprintf("br-%d", d.nextID), Circuits: circuits}
	d.bridges[b.ID] = b
	if listener != nil {
		d.listeners[b.ID] = listener
	}
	d.mu.Unlock()

	if listener != nil {
		listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: b.ID, State: fabric.BridgeCreated})
	}
	return b, nil
}

// Retain garbage-collects bridges not named in liveBridgeIDs, notifying
// their listeners of destruction.
func (d *Driver) Retain(liveBridgeIDs []string) error {
	d.mu.Lock()
	live := make(map[string]struct{}, len(liveBridgeIDs))
	for _, id := range liveBridgeIDs {
		live[id] = struct{}{}
	}

	var toDrop []string
	for id := range d.bridges {
		if _, ok := live[id]; !ok {
			toDrop = append(toDrop, id)
		}
	}
	sort.Strings(toDrop)

	listeners := make(map[string]fabric.Listener, len(toDrop))
	for _, id := range toDrop {
		listeners[id] = d.listeners[id]
		delete(d.bridges, id)
		delete(d.listeners, id)
	}
	d.mu.Unlock()

	for _, id := range toDrop {
		if l := listeners[id]; l != nil {
			l.OnBridgeEvent(fabric.BridgeEvent{BridgeID: id, State: fabric.BridgeDestroyed})
		}
	}
	return nil
}

// InjectError forces a live bridge into the error state, simulating an
// irrecoverable fabric-side failure (spec §4.2 "Failure semantics").
func (d *Driver) InjectError(bridgeID string, cause error) {
	d.mu.Lock()
	listener := d.listeners[bridgeID]
	delete(d.bridges, bridgeID)
	delete(d.listeners, bridgeID)
	d.mu.Unlock()

	if listener != nil {
		listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: bridgeID, State: fabric.BridgeError, Err: cause})
	}
}

// BridgeCount reports how many live bridges the mock currently holds.
func (d *Driver) BridgeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bridges)
}

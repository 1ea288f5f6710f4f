package netcore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/l2fabric/l2fabric/pkg/brokererr"
	"github.com/l2fabric/l2fabric/pkg/fabric"
	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/util"
)

// Switch holds a set of terminals, each backed by a fabric Interface; a
// service on a Switch corresponds to exactly one fabric bridge (spec §4.3).
type Switch struct {
	mu sync.Mutex

	name   string
	driver fabric.Driver

	terminals map[string]*model.Terminal
	services  map[int]*serviceRecord
	nextID    int

	// bridgeOf maps a live service id to the bridge id backing it, so
	// Retain (spec §4.2/§4.6) can be told which bridges to keep.
	bridgeOf map[int]string
}

// NewSwitch constructs an empty Switch named name, driven by driver.
func NewSwitch(name string, driver fabric.Driver) *Switch {
	return &Switch{
		name:      name,
		driver:    driver,
		terminals: make(map[string]*model.Terminal),
		services:  make(map[int]*serviceRecord),
		bridgeOf:  make(map[int]string),
	}
}

func (s *Switch) Name() string { return s.name }

// AddTerminal registers a terminal backed by the named fabric interface
// description (spec §4.3 "add_terminal(name, interface_desc)").
func (s *Switch) AddTerminal(name string, backing model.Backing, descriptor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.terminals[name]
	if pre := newPrecondition().check(!exists, terminalExistsErr(s.name, name)); !pre.ok() {
		return pre.result()
	}
	iface, err := s.driver.InterfacesOf(descriptor)
	if err != nil {
		return fabricErr(descriptor, err)
	}
	s.terminals[name] = &model.Terminal{Name: name, Backing: model.BackingFabric, FabricInterface: iface.Name}
	util.WithNetwork(s.name).WithField("terminal", name).Info("terminal added")
	return nil
}

// RemoveTerminal removes a terminal, failing TERMINAL_IN_USE if any live
// service references it.
func (s *Switch) RemoveTerminal(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.terminals[name]
	pre := newPrecondition().check(exists, unknownTerminalErr(name))
	if exists {
		inUse := false
		for _, rec := range s.services {
			if isLive(rec.svc.State) && serviceUsesTerminal(rec.svc, name) {
				inUse = true
				break
			}
		}
		pre.check(!inUse, terminalInUseErr(name))
	}
	if !pre.ok() {
		return pre.result()
	}
	delete(s.terminals, name)
	return nil
}

func (s *Switch) GetTerminal(name string) (*model.Terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.terminals[name]
	if !ok {
		return nil, unknownTerminalErr(name)
	}
	cp := *t
	return &cp, nil
}

func (s *Switch) ListTerminals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.terminals))
	for n := range s.terminals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewService returns a fresh DORMANT service.
func (s *Switch) NewService() *model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := newServiceRecord(s.nextID, s.name)
	s.services[s.nextID] = rec
	cp := *rec.svc
	return &cp
}

func (s *Switch) AwaitService(id int) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[id]
	if !ok {
		return nil, unknownServiceErr(id)
	}
	cp := *rec.svc
	return &cp, nil
}

func (s *Switch) ListServices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.services))
	for id := range s.services {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Switch) AddListener(serviceID int, l model.ServiceListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[serviceID]
	if !ok {
		return unknownServiceErr(serviceID)
	}
	rec.listeners = append(rec.listeners, l)
	return nil
}

// Initiate validates the request's endpoints all belong to this switch,
// maps each (terminal, label) to a fabric circuit, and submits the bridge
// (spec §4.3).
func (s *Switch) Initiate(serviceID int, req model.ConnectionRequest) error {
	s.mu.Lock()

	pre := newPrecondition().check(len(req.Endpoints) >= 2,
		invalidStateErr(serviceID, model.Dormant, model.Establishing))

	rec, recExists := s.services[serviceID]
	pre.check(recExists, unknownServiceErr(serviceID))

	// Terminal existence is independent of whether serviceID itself is
	// valid, so it's checked unconditionally: a caller gets every broken
	// precondition back at once instead of fixing them one at a time.
	circuits := make(map[fabric.Circuit]fabric.TrafficFlow, len(req.Endpoints))
	for _, ep := range req.Endpoints {
		term, exists := s.terminals[ep.Terminal]
		if !exists {
			pre.check(false, unknownTerminalErr(ep.Terminal))
			continue
		}
		circuits[fabric.Circuit{Interface: fabric.Interface{Name: term.FabricInterface}, Label: ep.Label}] =
			fabric.TrafficFlow{Upstream: req.Bandwidth.Upstream, Downstream: req.Bandwidth.Downstream}
	}

	if !pre.ok() {
		s.mu.Unlock()
		return pre.result()
	}

	rec.svc.Request = req
	if err := rec.transition(model.Establishing, nil); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	listener := &switchBridgeListener{sw: s, serviceID: serviceID}
	_, err := s.driver.Bridge(listener, circuits)
	if err != nil {
		s.mu.Lock()
		_ = rec.transition(model.Failed, fabricErr(s.name, err))
		s.mu.Unlock()
		return fabricErr(s.name, err)
	}
	return nil
}

// switchBridgeListener adapts fabric.Listener events into service state
// transitions, called from the fabric driver's own goroutine (spec §5
// "Fabric callbacks are delivered from driver-owned threads").
type switchBridgeListener struct {
	sw        *Switch
	serviceID int
}

func (l *switchBridgeListener) OnBridgeEvent(ev fabric.BridgeEvent) {
	s := l.sw
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.services[l.serviceID]
	if !ok {
		return
	}
	switch ev.State {
	case fabric.BridgeCreated:
		rec.svc.BridgeID = ev.BridgeID
		s.bridgeOf[l.serviceID] = ev.BridgeID
		_ = rec.transition(model.Inactive, nil)
	case fabric.BridgeError:
		_ = rec.transition(model.Failed, fabricErr(ev.BridgeID, ev.Err))
		delete(s.bridgeOf, l.serviceID)
	case fabric.BridgeDestroyed:
		_ = rec.transition(model.Released, nil)
		delete(s.bridgeOf, l.serviceID)
	}
}

// Activate and Deactivate are pure state transitions: the bridge already
// carries traffic once created (spec §4.3).
func (s *Switch) Activate(serviceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[serviceID]
	if !ok {
		return unknownServiceErr(serviceID)
	}
	if err := rec.transition(model.Activating, nil); err != nil {
		return err
	}
	return rec.transition(model.Active, nil)
}

func (s *Switch) Deactivate(serviceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[serviceID]
	if !ok {
		return unknownServiceErr(serviceID)
	}
	if err := rec.transition(model.Deactivating, nil); err != nil {
		return err
	}
	return rec.transition(model.Inactive, nil)
}

// Release tears down the bridge; idempotent (spec §4.3, §8 I5).
func (s *Switch) Release(serviceID int) error {
	s.mu.Lock()
	rec, ok := s.services[serviceID]
	if pre := newPrecondition().check(ok, unknownServiceErr(serviceID)); !pre.ok() {
		s.mu.Unlock()
		return pre.result()
	}
	if rec.svc.State == model.Released {
		s.mu.Unlock()
		return nil
	}
	bridgeID := rec.svc.BridgeID
	_ = rec.transition(model.Releasing, nil)
	delete(s.bridgeOf, serviceID)
	s.mu.Unlock()

	if bridgeID == "" {
		s.mu.Lock()
		_ = rec.transition(model.Released, nil)
		s.mu.Unlock()
		return nil
	}

	// Dropping this service from bridgeOf before retaining means the next
	// Retain call excludes its bridge; the driver tears it down and the
	// registered switchBridgeListener moves the record to RELEASED once
	// BridgeDestroyed arrives (synchronously for mockfabric, asynchronously
	// for a real driver per spec §5).
	live := s.liveBridgeIDs()
	if err := s.driver.Retain(live); err != nil {
		return fabricErr(s.name, err)
	}
	return nil
}

func (s *Switch) liveBridgeIDs() []string {
	ids := make([]string, 0, len(s.bridgeOf))
	for _, id := range s.bridgeOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Switch) Status(serviceID int) (model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[serviceID]
	if !ok {
		return model.Failed, unknownServiceErr(serviceID)
	}
	return rec.svc.State, nil
}

// Reconcile re-declares the switch's live bridges to the fabric driver
// after a broker restart (spec §4.6).
func (s *Switch) Reconcile() error {
	s.mu.Lock()
	live := s.liveBridgeIDs()
	s.mu.Unlock()
	return s.driver.Retain(live)
}

func isLive(st model.State) bool {
	return st != model.Released && st != model.Dormant
}

func serviceUsesTerminal(svc *model.Service, terminal string) bool {
	for _, ep := range svc.Request.Endpoints {
		if ep.Terminal == terminal {
			return true
		}
	}
	return false
}

// unknownServiceErr reports a reference to a service id the network has no
// record of. Spec §7 enumerates no dedicated kind for this; INVALID_STATE
// covers it since a nonexistent service has no valid operations.
func unknownServiceErr(id int) error {
	return brokererr.New(brokererr.KindInvalidState, fmt.Sprintf("service-%d", id), "no such service")
}

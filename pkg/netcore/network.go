// Package netcore implements the broker's core network types (spec §4):
// Switch, Trunk, Aggregator, and the service lifecycle state machine that
// runs identically over both network variants. It is the direct
// implementation of the "Network (variant)" sum type spec §3 describes.
package netcore

import "github.com/l2fabric/l2fabric/pkg/model"

// Network is the common surface spec §6's Management and Service APIs
// expose for both a Switch and an Aggregator.
type Network interface {
	Name() string

	AddTerminal(name string, backing model.Backing, descriptor string) error
	RemoveTerminal(name string) error
	GetTerminal(name string) (*model.Terminal, error)
	ListTerminals() []string

	NewService() *model.Service
	AwaitService(id int) (*model.Service, error)
	ListServices() []int

	Initiate(serviceID int, req model.ConnectionRequest) error
	Activate(serviceID int) error
	Deactivate(serviceID int) error
	Release(serviceID int) error
	Status(serviceID int) (model.State, error)
	AddListener(serviceID int, l model.ServiceListener) error
}

// serviceRecord is the bookkeeping every network keeps per service,
// embedding the externally-visible model.Service and adding the listener
// set a Network notifies on transition.
type serviceRecord struct {
	svc       *model.Service
	listeners []model.ServiceListener
}

func newServiceRecord(id int, network string) *serviceRecord {
	return &serviceRecord{
		svc: &model.Service{
			ID:            id,
			Network:       network,
			State:         model.Dormant,
			SubServiceIDs: make(map[string]int),
		},
	}
}

// transition moves the record to newState if the edge is legal, notifying
// listeners afterward (spec §5 "listener events for a single service are
// delivered in state-machine order"). Returns brokererr.KindInvalidState if
// the edge is illegal.
func (r *serviceRecord) transition(newState model.State, cause error) error {
	old := r.svc.State
	if !model.CanTransition(old, newState) {
		return invalidStateErr(r.svc.ID, old, newState)
	}
	r.svc.State = newState
	r.svc.Version++
	r.notify(old, newState, cause)
	return nil
}

func (r *serviceRecord) notify(old, next model.State, cause error) {
	ev := model.ServiceEvent{ServiceID: r.svc.ID, Old: old, New: next, Err: cause}
	for _, l := range r.listeners {
		l.OnServiceEvent(ev)
	}
}

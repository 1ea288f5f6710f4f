package netcore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/l2fabric/l2fabric/pkg/brokererr"
	brokergraph "github.com/l2fabric/l2fabric/pkg/graph"
	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/util"
)

// MaxReplan bounds the planner's retries on an allocation race before it
// gives up with UNROUTABLE (spec §4.5 step 5, "recommended 3").
const MaxReplan = 3

// Aggregator is a composite network built from inferior networks and
// trunks between their internal terminals (spec §3, §4.5).
type Aggregator struct {
	mu sync.Mutex

	name string

	// external maps an external terminal alias to the inferior network and
	// internal terminal it forwards to (spec §3 "forwarding alias, 1-to-1").
	external map[string]*model.Terminal

	subnetworks map[string]Network
	trunks      map[string]*model.Trunk
	nextTrunkID int

	services map[int]*serviceRecord
	nextID   int

	// fold tracks, per live composite service, the latest known state of
	// each of its sub-services (spec §4.5 step 7 "state aggregation").
	fold map[int]map[string]model.State
}

// NewAggregator constructs an empty Aggregator named name.
func NewAggregator(name string) *Aggregator {
	return &Aggregator{
		name:        name,
		external:    make(map[string]*model.Terminal),
		subnetworks: make(map[string]Network),
		trunks:      make(map[string]*model.Trunk),
		services:    make(map[int]*serviceRecord),
		fold:        make(map[int]map[string]model.State),
	}
}

func (a *Aggregator) Name() string { return a.name }

// AddSubnetwork registers an inferior network by name (weak reference —
// spec §3 "the inferior's lifetime is independent").
func (a *Aggregator) AddSubnetwork(name string, net Network) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subnetworks[name] = net
}

// AddTerminal registers an external terminal alias forwarding to the
// internal terminal named by descriptor in the form "subnetwork/subterm".
func (a *Aggregator) AddTerminal(name string, _ model.Backing, descriptor string) error {
	subnet, subterm, err := splitSubterminal(descriptor)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.external[name]; exists {
		return terminalExistsErr(a.name, name)
	}
	if _, ok := a.subnetworks[subnet]; !ok {
		return unknownSubnetworkErr(subnet)
	}
	a.external[name] = &model.Terminal{
		Name: name, Backing: model.BackingSubnetwork,
		SubnetworkName: subnet, SubterminalName: subterm,
	}
	return nil
}

func splitSubterminal(descriptor string) (subnet, subterm string, err error) {
	parts := strings.SplitN(descriptor, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", brokererr.New(brokererr.KindConfigError, descriptor, "expected subnetwork/subterminal")
	}
	return parts[0], parts[1], nil
}

func (a *Aggregator) RemoveTerminal(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.external[name]; !exists {
		return unknownTerminalErr(name)
	}
	for _, rec := range a.services {
		if isLive(rec.svc.State) && serviceUsesTerminal(rec.svc, name) {
			return terminalInUseErr(name)
		}
	}
	delete(a.external, name)
	return nil
}

func (a *Aggregator) GetTerminal(name string) (*model.Terminal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.external[name]
	if !ok {
		return nil, unknownTerminalErr(name)
	}
	cp := *t
	return &cp, nil
}

func (a *Aggregator) ListTerminals() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.external))
	for n := range a.external {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddTrunk creates a trunk between (net1, term1) and (net2, term2); both
// must be internal terminals of registered inferior networks. Aggregator-
// only per spec §6.
func (a *Aggregator) AddTrunk(net1, term1, net2, term2 string, delay float64, up, down uint64, labelSpec string) (*model.Trunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.subnetworks[net1]; !ok {
		return nil, unknownSubnetworkErr(net1)
	}
	if _, ok := a.subnetworks[net2]; !ok {
		return nil, unknownSubnetworkErr(net2)
	}

	a.nextTrunkID++
	id := fmt.Sprintf("trunk-%d", a.nextTrunkID)
	t, err := newTrunk(id,
		model.TrunkEnd{Network: net1, Terminal: term1},
		model.TrunkEnd{Network: net2, Terminal: term2},
		delay, up, down, labelSpec)
	if err != nil {
		return nil, err
	}
	a.trunks[id] = t
	cp := *t
	return &cp, nil
}

// RemoveTrunk decommissions the trunk incident on (net, term); refuses with
// TERMINAL_IN_USE if it has live allocations (spec §9 open-question
// resolution).
func (a *Aggregator) RemoveTrunk(net, term string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.findTrunkLocked(net, term)
	if t == nil {
		return unknownTrunkErr(term)
	}
	if len(t.Allocations) > 0 {
		return terminalInUseErr(t.ID)
	}
	delete(a.trunks, t.ID)
	return nil
}

// ListTrunks returns a snapshot copy of every trunk this aggregator owns,
// sorted by id. Used by the CLI and by the persistence layer to know which
// trunks to write back after a service operation mutates their allocation
// state.
func (a *Aggregator) ListTrunks() []*model.Trunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.trunks))
	for id := range a.trunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Trunk, 0, len(ids))
	for _, id := range ids {
		cp := *a.trunks[id]
		out = append(out, &cp)
	}
	return out
}

// RestoreTrunk overwrites the mutable allocation state (free labels, active
// allocations, and allocated bandwidth) of the trunk identified by id with
// persisted values, leaving its static fields (ends, delay, capacity) as
// built from the topology. Used by persist.Store.Reconcile to replay a
// prior run's label/bandwidth reservations onto a freshly-built tree after
// a broker restart (spec §4.6).
func (a *Aggregator) RestoreTrunk(id string, free map[uint32]struct{}, allocations map[uint32]model.LabelAllocation, allocatedUp, allocatedDown uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trunks[id]
	if !ok {
		return unknownTrunkErr(id)
	}
	t.Free = free
	t.Allocations = allocations
	t.Allocated = model.Bandwidth{Upstream: allocatedUp, Downstream: allocatedDown}
	return nil
}

func (a *Aggregator) FindTrunk(net, term string) (*model.Trunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.findTrunkLocked(net, term)
	if t == nil {
		return nil, unknownTrunkErr(term)
	}
	cp := *t
	return &cp, nil
}

func (a *Aggregator) findTrunkLocked(net, term string) *model.Trunk {
	ids := make([]string, 0, len(a.trunks))
	for id := range a.trunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := a.trunks[id]
		if (t.EndA.Network == net && t.EndA.Terminal == term) || (t.EndB.Network == net && t.EndB.Terminal == term) {
			return t
		}
	}
	return nil
}

func (a *Aggregator) NewService() *model.Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	rec := newServiceRecord(a.nextID, a.name)
	a.services[a.nextID] = rec
	cp := *rec.svc
	return &cp
}

func (a *Aggregator) AwaitService(id int) (*model.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.services[id]
	if !ok {
		return nil, unknownServiceErr(id)
	}
	cp := *rec.svc
	return &cp, nil
}

func (a *Aggregator) ListServices() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]int, 0, len(a.services))
	for id := range a.services {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (a *Aggregator) AddListener(serviceID int, l model.ServiceListener) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.services[serviceID]
	if !ok {
		return unknownServiceErr(serviceID)
	}
	rec.listeners = append(rec.listeners, l)
	return nil
}

func (a *Aggregator) Status(serviceID int) (model.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.services[serviceID]
	if !ok {
		return model.Failed, unknownServiceErr(serviceID)
	}
	return rec.svc.State, nil
}

// rewrittenEndpoint is an external EndPoint after step 1 of the planner:
// its backing (inferior network, internal terminal, label).
type rewrittenEndpoint struct {
	Network  string
	Terminal string
	Label    uint32
}

// Initiate runs the 8-step planner of spec §4.5.
func (a *Aggregator) Initiate(serviceID int, req model.ConnectionRequest) error {
	if len(req.Endpoints) < 2 {
		return invalidStateErr(serviceID, model.Dormant, model.Establishing)
	}

	a.mu.Lock()
	rec, ok := a.services[serviceID]
	if !ok {
		a.mu.Unlock()
		return unknownServiceErr(serviceID)
	}

	// Step 1: resolve endpoints.
	rewritten := make([]rewrittenEndpoint, 0, len(req.Endpoints))
	for _, ep := range req.Endpoints {
		ext, exists := a.external[ep.Terminal]
		if !exists {
			a.mu.Unlock()
			return unknownTerminalErr(ep.Terminal)
		}
		rewritten = append(rewritten, rewrittenEndpoint{
			Network: ext.SubnetworkName, Terminal: ext.SubterminalName, Label: ep.Label,
		})
	}

	rec.svc.Request = req
	if err := rec.transition(model.Establishing, nil); err != nil {
		a.mu.Unlock()
		return err
	}

	// Step 3: terminal set T.
	terminalSet := map[string]struct{}{}
	for _, r := range rewritten {
		terminalSet[r.Network] = struct{}{}
	}
	terminals := make([]string, 0, len(terminalSet))
	for n := range terminalSet {
		terminals = append(terminals, n)
	}
	sort.Strings(terminals)

	if len(terminals) == 1 {
		plan := map[string][]rewrittenEndpoint{terminals[0]: rewritten}
		a.mu.Unlock()
		return a.submitSubRequests(rec, plan, nil, req.Bandwidth)
	}

	plan, trunkIDs, err := a.planWithRetries(rec, terminals, rewritten, req.Bandwidth)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return a.submitSubRequests(rec, plan, trunkIDs, req.Bandwidth)
}

// planWithRetries implements spec §4.5 steps 2, 4, 5: build the planning
// graph, compute the goal-set spanning tree, allocate labels/bandwidth on
// every trunk it uses, and on an allocation race release this service's own
// reservations and retry up to MaxReplan times. Must be called holding a.mu.
func (a *Aggregator) planWithRetries(rec *serviceRecord, terminals []string, rewritten []rewrittenEndpoint, bw model.Bandwidth) (map[string][]rewrittenEndpoint, []string, error) {
	for attempt := 0; attempt <= MaxReplan; attempt++ {
		tree, trunkIDs, err := a.planOnce(rec.svc.ID, terminals, bw)
		if err != nil {
			_ = rec.transition(model.Failed, err)
			return nil, nil, err
		}

		reservations, allocErr := a.allocateTree(rec.svc.ID, trunkIDs, bw)
		if allocErr == nil {
			rec.svc.Reservations = append(rec.svc.Reservations, reservations...)
			plan := a.synthesizeSubRequests(terminals, rewritten, tree, reservations, bw)
			return plan, trunkIDs, nil
		}

		// Release whatever this attempt reserved before retrying (spec §4.5
		// step 5 "release everything already reserved for this service").
		a.releaseReservations(reservations)
		if attempt == MaxReplan {
			err := unroutableErr(rec.svc.ID, "exhausted replan attempts")
			_ = rec.transition(model.Failed, err)
			return nil, nil, err
		}
	}
	err := unroutableErr(rec.svc.ID, "exhausted replan attempts")
	_ = rec.transition(model.Failed, err)
	return nil, nil, err
}

// planOnce builds the planning graph and computes the goal-set spanning
// tree once (spec §4.5 steps 2 and 4). Must be called holding a.mu.
func (a *Aggregator) planOnce(serviceID int, terminals []string, bw model.Bandwidth) (*brokergraph.GoalSetTree, []string, error) {
	builder := brokergraph.NewBuilder()
	for _, t := range terminals {
		if err := builder.AddVertex(t); err != nil {
			return nil, nil, err
		}
	}

	floor := bw.Upstream
	if bw.Downstream > floor {
		floor = bw.Downstream
	}

	trunkIDs := make([]string, 0, len(a.trunks))
	for id := range a.trunks {
		trunkIDs = append(trunkIDs, id)
	}
	sort.Strings(trunkIDs)

	for _, id := range trunkIDs {
		t := a.trunks[id]
		if t.EndA.Network == t.EndB.Network {
			continue // loop edge: resolved locally by that network (spec §4.5 step 2)
		}
		if err := builder.AddVertex(t.EndA.Network); err != nil {
			return nil, nil, err
		}
		if err := builder.AddVertex(t.EndB.Network); err != nil {
			return nil, nil, err
		}
		remaining := t.RemainingUpstream()
		if t.RemainingDownstream() < remaining {
			remaining = t.RemainingDownstream()
		}
		if _, err := builder.AddEdge(t.EndA.Network, t.EndB.Network, t.Delay, remaining, id); err != nil {
			return nil, nil, err
		}
	}

	tree, err := brokergraph.GoalSetSpanningTree(builder.Graph(), edgeMeta(builder), terminals, floor)
	if err != nil {
		return nil, nil, unroutableErr(serviceID, err.Error())
	}

	usedTrunks := make(map[string]struct{})
	for _, eid := range tree.EdgeIDs {
		if m, ok := builder.Meta(eid); ok {
			usedTrunks[m.TrunkID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(usedTrunks))
	for id := range usedTrunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return tree, ids, nil
}

// edgeMeta reaches into the builder's private metadata map via its exported
// accessor, materialised into a plain map for graph.WithMinCapacity/
// GoalSetSpanningTree's signature.
func edgeMeta(b *brokergraph.Builder) map[string]brokergraph.EdgeMeta {
	out := make(map[string]brokergraph.EdgeMeta)
	for _, e := range b.Graph().Edges() {
		if m, ok := b.Meta(e.ID); ok {
			out[e.ID] = m
		}
	}
	return out
}

// allocateTree allocates labels and bandwidth on every trunk in trunkIDs for
// serviceID, rolling back anything it allocated itself if any one
// allocation fails partway through. Must be called holding a.mu.
func (a *Aggregator) allocateTree(serviceID int, trunkIDs []string, bw model.Bandwidth) ([]model.Reservation, error) {
	reservations := make([]model.Reservation, 0, len(trunkIDs))
	for _, id := range trunkIDs {
		t := a.trunks[id]
		labelA, labelB, err := allocate(t, serviceID, bw)
		if err != nil {
			a.releaseReservations(reservations)
			return nil, err
		}
		reservations = append(reservations, model.Reservation{TrunkID: id, LabelA: labelA, LabelB: labelB, Bandwidth: bw})
	}
	return reservations, nil
}

// releaseReservations returns every reservation's labels and bandwidth to
// their trunks. Must be called holding a.mu.
func (a *Aggregator) releaseReservations(reservations []model.Reservation) {
	for _, r := range reservations {
		t, ok := a.trunks[r.TrunkID]
		if !ok {
			continue
		}
		release(t, r.LabelA)
		releaseBandwidth(t, r.Bandwidth)
	}
}

// synthesizeSubRequests implements spec §4.5 step 6.
func (a *Aggregator) synthesizeSubRequests(terminals []string, rewritten []rewrittenEndpoint, tree *brokergraph.GoalSetTree, reservations []model.Reservation, bw model.Bandwidth) map[string][]rewrittenEndpoint {
	plan := make(map[string][]rewrittenEndpoint)
	for _, r := range rewritten {
		plan[r.Network] = append(plan[r.Network], rewrittenEndpoint{Network: r.Network, Terminal: r.Terminal, Label: r.Label})
	}

	for _, res := range reservations {
		t := a.trunks[res.TrunkID]
		if t == nil {
			continue
		}
		plan[t.EndA.Network] = append(plan[t.EndA.Network], rewrittenEndpoint{Network: t.EndA.Network, Terminal: t.EndA.Terminal, Label: res.LabelA})
		plan[t.EndB.Network] = append(plan[t.EndB.Network], rewrittenEndpoint{Network: t.EndB.Network, Terminal: t.EndB.Terminal, Label: res.LabelB})
	}
	return plan
}

// buildPlan assembles the model.Plan a Service persists (spec §3 "the
// computed plan"; §4.6 "reconstruct plans" on restart): one SubRequest per
// inferior network the synthesized plan touches, each carrying the subset
// of reservations whose trunk has that network on one end, so a future
// reconciliation pass can tell which trunk holds belong to which leg.
func (a *Aggregator) buildPlan(networks []string, plan map[string][]rewrittenEndpoint, bw model.Bandwidth, reservations []model.Reservation) model.Plan {
	a.mu.Lock()
	trunkEnds := make(map[string][2]string, len(reservations))
	for _, r := range reservations {
		if t, ok := a.trunks[r.TrunkID]; ok {
			trunkEnds[r.TrunkID] = [2]string{t.EndA.Network, t.EndB.Network}
		}
	}
	a.mu.Unlock()

	subs := make([]model.SubRequest, 0, len(networks))
	for _, n := range networks {
		endpoints := make([]model.EndPoint, 0, len(plan[n]))
		for _, ep := range plan[n] {
			endpoints = append(endpoints, model.EndPoint{Network: ep.Network, Terminal: ep.Terminal, Label: ep.Label})
		}

		var leg []model.Reservation
		for _, r := range reservations {
			ends, ok := trunkEnds[r.TrunkID]
			if ok && (ends[0] == n || ends[1] == n) {
				leg = append(leg, r)
			}
		}

		subs = append(subs, model.SubRequest{
			Network:           n,
			Request:           model.ConnectionRequest{Endpoints: endpoints, Bandwidth: bw},
			TrunkReservations: leg,
		})
	}
	return model.Plan{SubRequests: subs}
}

// submitSubRequests submits one ConnectionRequest per inferior network in
// plan (spec §4.5 step 6), wires up the state-folding listener (step 7),
// and updates the composite's bookkeeping.
func (a *Aggregator) submitSubRequests(rec *serviceRecord, plan map[string][]rewrittenEndpoint, trunkIDs []string, bw model.Bandwidth) error {
	networks := make([]string, 0, len(plan))
	for n := range plan {
		networks = append(networks, n)
	}
	sort.Strings(networks)

	rec.svc.Plan = a.buildPlan(networks, plan, bw, rec.svc.Reservations)

	a.mu.Lock()
	a.fold[rec.svc.ID] = make(map[string]model.State, len(networks))
	for _, n := range networks {
		a.fold[rec.svc.ID][n] = model.Dormant
	}
	a.mu.Unlock()

	for _, n := range networks {
		a.mu.Lock()
		sub, ok := a.subnetworks[n]
		a.mu.Unlock()
		if !ok {
			return unknownSubnetworkErr(n)
		}

		endpoints := make([]model.EndPoint, 0, len(plan[n]))
		for _, ep := range plan[n] {
			endpoints = append(endpoints, model.EndPoint{Network: n, Terminal: ep.Terminal, Label: ep.Label})
		}

		subSvc := sub.NewService()
		a.mu.Lock()
		rec.svc.SubServiceIDs[n] = subSvc.ID
		a.fold[rec.svc.ID][n] = model.Dormant
		a.mu.Unlock()

		listener := &aggregatorFoldListener{agg: a, compositeID: rec.svc.ID, network: n}
		if err := sub.AddListener(subSvc.ID, listener); err != nil {
			return err
		}
		if err := sub.Initiate(subSvc.ID, model.ConnectionRequest{Endpoints: endpoints, Bandwidth: bw}); err != nil {
			util.WithService(rec.svc.ID).WithField("subnetwork", n).Warn("sub-service initiation failed")
			return err
		}
	}
	return nil
}

// aggregatorFoldListener folds one sub-service's events into its
// composite's state (spec §4.5 step 7).
type aggregatorFoldListener struct {
	agg         *Aggregator
	compositeID int
	network     string
}

func (l *aggregatorFoldListener) OnServiceEvent(ev model.ServiceEvent) {
	a := l.agg
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.services[l.compositeID]
	if !ok {
		return
	}
	states, ok := a.fold[l.compositeID]
	if !ok {
		return
	}
	states[l.network] = ev.New

	switch rec.svc.State {
	case model.Establishing:
		if ev.New == model.Failed {
			a.beginRollback(rec, ev.Err)
			return
		}
		if allAtLeast(states, model.Inactive) {
			_ = rec.transition(model.Inactive, nil)
		}
	case model.Activating:
		if ev.New == model.Failed {
			a.beginRollback(rec, ev.Err)
			return
		}
		if allEqual(states, model.Active) {
			_ = rec.transition(model.Active, nil)
		}
	case model.Deactivating:
		if allEqual(states, model.Inactive) {
			_ = rec.transition(model.Inactive, nil)
		}
	case model.Releasing:
		if allEqual(states, model.Released) {
			a.releaseReservations(rec.svc.Reservations)
			rec.svc.Reservations = nil
			_ = rec.transition(model.Released, nil)
		}
	}
}

func allAtLeast(states map[string]model.State, floor model.State) bool {
	for _, s := range states {
		if s < floor {
			return false
		}
	}
	return true
}

func allEqual(states map[string]model.State, want model.State) bool {
	for _, s := range states {
		if s != want {
			return false
		}
	}
	return true
}

// beginRollback moves a failed composite through FAILED -> RELEASING and
// releases every sub-service not yet RELEASED (spec §4.6 "proceeds to
// FAILED and triggers rollback"). Once every sub-service reports RELEASED,
// the Releasing case above completes the transition to RELEASED and returns
// the trunk reservations — FAILED is not terminal (spec §4.6). Must be
// called holding a.mu; releases the lock around each sub-service call per
// the top-down ordering of spec §5.
func (a *Aggregator) beginRollback(rec *serviceRecord, cause error) {
	_ = rec.transition(model.Failed, cause)
	_ = rec.transition(model.Releasing, nil)

	networks := make([]string, 0, len(rec.svc.SubServiceIDs))
	for n := range rec.svc.SubServiceIDs {
		networks = append(networks, n)
	}
	sort.Strings(networks)

	a.mu.Unlock()
	for _, n := range networks {
		a.mu.Lock()
		sub, ok := a.subnetworks[n]
		subID := rec.svc.SubServiceIDs[n]
		a.mu.Unlock()
		if !ok {
			continue
		}
		_ = sub.Release(subID)
	}
	a.mu.Lock()
}

// Activate forwards activate() to every sub-service (spec §4.5 step 7).
func (a *Aggregator) Activate(serviceID int) error {
	a.mu.Lock()
	rec, ok := a.services[serviceID]
	if !ok {
		a.mu.Unlock()
		return unknownServiceErr(serviceID)
	}
	if err := rec.transition(model.Activating, nil); err != nil {
		a.mu.Unlock()
		return err
	}
	networks := sortedKeys(rec.svc.SubServiceIDs)
	subs := make(map[string]Network, len(networks))
	ids := make(map[string]int, len(networks))
	for _, n := range networks {
		subs[n] = a.subnetworks[n]
		ids[n] = rec.svc.SubServiceIDs[n]
	}
	a.mu.Unlock()

	for _, n := range networks {
		if err := subs[n].Activate(ids[n]); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate forwards deactivate() to every sub-service.
func (a *Aggregator) Deactivate(serviceID int) error {
	a.mu.Lock()
	rec, ok := a.services[serviceID]
	if !ok {
		a.mu.Unlock()
		return unknownServiceErr(serviceID)
	}
	if err := rec.transition(model.Deactivating, nil); err != nil {
		a.mu.Unlock()
		return err
	}
	networks := sortedKeys(rec.svc.SubServiceIDs)
	subs := make(map[string]Network, len(networks))
	ids := make(map[string]int, len(networks))
	for _, n := range networks {
		subs[n] = a.subnetworks[n]
		ids[n] = rec.svc.SubServiceIDs[n]
	}
	a.mu.Unlock()

	for _, n := range networks {
		if err := subs[n].Deactivate(ids[n]); err != nil {
			return err
		}
	}
	return nil
}

// Release forwards release() to each sub-service and returns without
// waiting for them; once every sub-service reports RELEASED, the fold
// listener returns the trunk reservations and moves the composite to
// RELEASED. A call on an already RELEASED service returns nil (spec §4.5
// step 8).
func (a *Aggregator) Release(serviceID int) error {
	a.mu.Lock()
	rec, ok := a.services[serviceID]
	if !ok {
		a.mu.Unlock()
		return unknownServiceErr(serviceID)
	}
	if rec.svc.State == model.Released {
		a.mu.Unlock()
		return nil
	}
	if err := rec.transition(model.Releasing, nil); err != nil {
		a.mu.Unlock()
		return err
	}
	networks := sortedKeys(rec.svc.SubServiceIDs)
	subs := make(map[string]Network, len(networks))
	ids := make(map[string]int, len(networks))
	for _, n := range networks {
		subs[n] = a.subnetworks[n]
		ids[n] = rec.svc.SubServiceIDs[n]
	}
	a.mu.Unlock()

	if len(networks) == 0 {
		a.mu.Lock()
		_ = rec.transition(model.Released, nil)
		a.mu.Unlock()
		return nil
	}

	for _, n := range networks {
		if err := subs[n].Release(ids[n]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package netcore

import "sort"

// Reconcile re-declares every sub-network's live bridges to its fabric
// driver (spec §4.6 "invoke fabric.retain(live_bridges) per switch to
// garbage-collect abandoned bridges"). It recurses into inferior
// Aggregators, since only a Switch is directly fabric-backed.
func (a *Aggregator) Reconcile() error {
	a.mu.Lock()
	names := make([]string, 0, len(a.subnetworks))
	for n := range a.subnetworks {
		names = append(names, n)
	}
	sort.Strings(names)
	subs := make([]Network, 0, len(names))
	for _, n := range names {
		subs = append(subs, a.subnetworks[n])
	}
	a.mu.Unlock()

	for _, sub := range subs {
		switch net := sub.(type) {
		case *Switch:
			if err := net.Reconcile(); err != nil {
				return err
			}
		case *Aggregator:
			if err := net.Reconcile(); err != nil {
				return err
			}
		}
	}
	return nil
}

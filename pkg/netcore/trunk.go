package netcore

import (
	"sort"

	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/util"
)

// newTrunk constructs a Trunk with the declared label range fully free and
// the given directional capacities (spec §3/§4.4).
func newTrunk(id string, endA, endB model.TrunkEnd, delay float64, capUp, capDown uint64, labelSpec string) (*model.Trunk, error) {
	labels, err := util.ExpandLabelRange(labelSpec)
	if err != nil {
		return nil, err
	}
	free := make(map[uint32]struct{}, len(labels))
	for _, l := range labels {
		free[uint32(l)] = struct{}{}
	}
	return &model.Trunk{
		ID:          id,
		EndA:        endA,
		EndB:        endB,
		Delay:       delay,
		Capacity:    model.Bandwidth{Upstream: capUp, Downstream: capDown},
		Free:        free,
		Allocations: make(map[uint32]model.LabelAllocation),
	}, nil
}

// allocate picks (labelA, labelB) per spec §4.4's deterministic rule —
// lowest free label on side A, then the same numeric label on side B if
// free, else lowest free on side B — and reserves bandwidth in both
// directions. Must be called under the enclosing Aggregator's lock (spec
// §4.4 "all mediated by the enclosing Aggregator's serialising lock").
func allocate(t *model.Trunk, serviceID int, bw model.Bandwidth) (labelA, labelB uint32, err error) {
	if t.RemainingUpstream() < bw.Upstream || t.RemainingDownstream() < bw.Downstream {
		return 0, 0, outOfBandwidthErr(t.ID)
	}
	if len(t.Free) == 0 {
		return 0, 0, outOfLabelsErr(t.ID)
	}

	// A trunk is declared with one label range shared by both ends, so
	// the lowest free label on side A is by construction also free on
	// side B: allocate always pairs them 1:1 (spec §4.4's label
	// correspondence rule degenerates to the identity here).
	labelA = lowestFree(t.Free)
	labelB = labelA

	delete(t.Free, labelA)
	t.Allocations[labelA] = model.LabelAllocation{LabelA: labelA, LabelB: labelB, ServiceID: serviceID}
	t.Allocated.Upstream += bw.Upstream
	t.Allocated.Downstream += bw.Downstream

	return labelA, labelB, nil
}

// lowestFree returns the smallest label in a free-label set.
func lowestFree(free map[uint32]struct{}) uint32 {
	labels := make([]uint32, 0, len(free))
	for l := range free {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels[0]
}

// release returns the allocation's label to the free pool and drops the
// allocation; bandwidth is not touched here. A no-op on an unknown label
// (spec §4.4 "idempotent on unknown labels").
func release(t *model.Trunk, labelA uint32) {
	alloc, ok := t.Allocations[labelA]
	if !ok {
		return
	}
	delete(t.Allocations, labelA)
	t.Free[alloc.LabelA] = struct{}{}

	// Bandwidth released is tracked by the caller via the Reservation it
	// holds (reservations carry their own Bandwidth; release of the label
	// alone does not know how much bandwidth was reserved for it), so the
	// Aggregator's releaseReservations helper calls releaseBandwidth with it.
}

// releaseBandwidth returns reserved upstream/downstream bandwidth to the
// trunk's budget.
func releaseBandwidth(t *model.Trunk, bw model.Bandwidth) {
	if t.Allocated.Upstream >= bw.Upstream {
		t.Allocated.Upstream -= bw.Upstream
	} else {
		t.Allocated.Upstream = 0
	}
	if t.Allocated.Downstream >= bw.Downstream {
		t.Allocated.Downstream -= bw.Downstream
	} else {
		t.Allocated.Downstream = 0
	}
}

// provideLabels adds labels to the trunk's declared range and free pool
// (operator action, spec §6 "provide_labels(range)").
func provideLabels(t *model.Trunk, spec string) error {
	labels, err := util.ExpandLabelRange(spec)
	if err != nil {
		return err
	}
	for _, l := range labels {
		lbl := uint32(l)
		if _, allocated := t.Allocations[lbl]; allocated {
			continue
		}
		t.Free[lbl] = struct{}{}
	}
	return nil
}

// revokeLabels removes labels from the free pool (operator action, spec §6
// "revoke_labels(range)"); only labels currently free may be removed from
// the declared range (spec §9 open-question resolution extended to the
// symmetric case: revoking an allocated label is refused).
func revokeLabels(t *model.Trunk, spec string) error {
	labels, err := util.ExpandLabelRange(spec)
	if err != nil {
		return err
	}
	for _, l := range labels {
		lbl := uint32(l)
		if _, allocated := t.Allocations[lbl]; allocated {
			return terminalInUseErr(t.ID)
		}
		delete(t.Free, lbl)
	}
	return nil
}

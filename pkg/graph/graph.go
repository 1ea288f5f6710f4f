// Package graph builds the abstract weighted multigraph G = (V, E, w, c) of
// spec §4.1 on top of github.com/katalvlaran/lvlath's core.Graph, and
// supplies the three operations the Aggregator planner needs: shortest
// paths, a full-graph minimum spanning tree, and a goal-set (Steiner-
// approximation) spanning tree.
//
// lvlath's core.Edge carries a single int64 Weight with no capacity field,
// so edges here are scaled costs (see ScaleCost/UnscaleCost) and capacity is
// tracked out-of-band in an EdgeMeta map keyed by edge id.
package graph

import (
	"sort"

	"github.com/katalvlaran/lvlath/core"
)

// CostScale converts the broker's real-valued delay metric into the int64
// weight lvlath's core.Graph requires, preserving three decimal digits.
const CostScale = 1000

// ScaleCost converts a real-valued delay into a core.Graph edge weight.
func ScaleCost(delay float64) int64 {
	return int64(delay*CostScale + 0.5)
}

// UnscaleCost converts a core.Graph edge weight back into a real delay.
func UnscaleCost(weight int64) float64 {
	return float64(weight) / CostScale
}

// EdgeMeta carries the broker-domain attributes lvlath's core.Edge has no
// room for: the capacity constraint c(e) of spec §4.1 and the trunk id the
// edge was derived from.
type EdgeMeta struct {
	Capacity uint64
	TrunkID  string
}

// Builder accumulates vertices and edges before producing an immutable
// core.Graph plus the out-of-band per-edge metadata.
type Builder struct {
	g    *core.Graph
	meta map[string]EdgeMeta
}

// NewBuilder starts an empty undirected, weighted, multigraph builder (spec
// §4.1 "abstract weighted multigraph").
func NewBuilder() *Builder {
	return &Builder{
		g:    core.NewGraph(core.WithWeighted(), core.WithMultiEdges()),
		meta: make(map[string]EdgeMeta),
	}
}

// AddVertex registers a vertex id, ignoring a duplicate add (terminals and
// trunks are discovered in no particular order while walking the topology).
func (b *Builder) AddVertex(id string) error {
	if b.g.HasVertex(id) {
		return nil
	}
	return b.g.AddVertex(id)
}

// AddEdge adds an undirected edge of the given real delay cost and capacity,
// returning the lvlath edge id assigned to it.
func (b *Builder) AddEdge(from, to string, delay float64, capacity uint64, trunkID string) (string, error) {
	id, err := b.g.AddEdge(from, to, ScaleCost(delay))
	if err != nil {
		return "", err
	}
	b.meta[id] = EdgeMeta{Capacity: capacity, TrunkID: trunkID}
	return id, nil
}

// Graph returns the built core.Graph.
func (b *Builder) Graph() *core.Graph { return b.g }

// Meta returns the out-of-band capacity/trunk metadata for an edge id.
func (b *Builder) Meta(edgeID string) (EdgeMeta, bool) {
	m, ok := b.meta[edgeID]
	return m, ok
}

// WithMinCapacity returns a new core.Graph containing only the edges of g
// whose capacity meets floor B, per spec §4.1 step (a) "filter out edges
// with capacity < B". Vertices are carried over unfiltered; an isolated
// vertex simply ends up with no incident edges.
//
// Clone (rather than CloneEmpty+AddEdge) is required here: it preserves each
// surviving edge's original id, so the ids a caller later reads off of a
// spanning tree built from this graph still key directly into the Builder's
// Meta map. Re-adding edges to a CloneEmpty graph would instead mint fresh
// ids from the clone's carried-forward nextEdgeID counter, disjoint from the
// original graph's ids.
func WithMinCapacity(g *core.Graph, meta map[string]EdgeMeta, floor uint64) *core.Graph {
	out := g.Clone()
	out.FilterEdges(func(e *core.Edge) bool {
		return meta[e.ID].Capacity >= floor
	})
	return out
}

// orderedEdges returns g's edges sorted by id, the deterministic total order
// spec §4.1 requires ("ties broken deterministically by a supplied total
// order on edges").
func orderedEdges(g *core.Graph) []*core.Edge {
	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

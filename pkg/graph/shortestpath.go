package graph

import (
	"math"
	"sort"

	"github.com/katalvlaran/lvlath/core"
)

// ShortestPaths computes distance-vector shortest paths from source by
// iterative relaxation until stable (spec §4.1 op 1). lvlath's own
// dijkstra package has no hook for a caller-supplied edge tie-break, and
// spec §4.1 requires "ties broken deterministically by a supplied total
// order on edges to make plans reproducible" — so this is a plain
// Bellman-Ford-style relaxation over edges visited in a fixed order
// (sorted by edge id) each round, which gives the same result on every run
// regardless of map iteration order.
//
// Returns, per reachable vertex, its distance from source and the id of the
// predecessor edge that achieved it. A vertex absent from the returned maps
// is unreachable from source.
func ShortestPaths(g *core.Graph, source string) (dist map[string]float64, pred map[string]string, err error) {
	if !g.HasVertex(source) {
		return nil, nil, core.ErrVertexNotFound
	}

	edges := orderedEdges(g)
	vertices := g.Vertices()

	dist = make(map[string]float64, len(vertices))
	pred = make(map[string]string, len(vertices))
	for _, v := range vertices {
		dist[v] = math.Inf(1)
	}
	dist[source] = 0

	// |V|-1 rounds suffice for a graph with no negative cycles (delays are
	// non-negative per spec §4.1 "w: E -> R+"); one extra round confirms
	// stability.
	for round := 0; round < len(vertices); round++ {
		changed := false
		for _, e := range edges {
			w := UnscaleCost(e.Weight)
			if relax(dist, pred, e.From, e.To, e.ID, w) {
				changed = true
			}
			if relax(dist, pred, e.To, e.From, e.ID, w) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for v, d := range dist {
		if math.IsInf(d, 1) {
			delete(dist, v)
			delete(pred, v)
		}
	}
	return dist, pred, nil
}

// relax attempts to improve dist[to] via the edge from->to of weight w,
// reporting whether it did. On an exact tie it keeps the existing
// predecessor, since edges are visited in a fixed sorted order and the
// first relaxation to reach a given distance therefore always wins,
// independent of map iteration order elsewhere in the caller.
func relax(dist map[string]float64, pred map[string]string, from, to, edgeID string, w float64) bool {
	if math.IsInf(dist[from], 1) {
		return false
	}
	cand := dist[from] + w
	if cand < dist[to] {
		dist[to] = cand
		pred[to] = edgeID
		return true
	}
	return false
}

// DistanceMatrix computes pairwise shortest-path distances among the
// vertices in terminals (spec §4.1 step (b) "shortest-paths from each
// t in T gives a distance-matrix over T"). It fails only when ShortestPaths
// fails for a terminal; an unreachable pair is simply absent from the
// returned maps, and detecting it is left to the caller.
func DistanceMatrix(g *core.Graph, terminals []string) (map[string]map[string]float64, map[string]map[string]string, error) {
	sorted := append([]string(nil), terminals...)
	sort.Strings(sorted)

	dm := make(map[string]map[string]float64, len(sorted))
	pm := make(map[string]map[string]string, len(sorted))
	for _, t := range sorted {
		dist, pred, err := ShortestPaths(g, t)
		if err != nil {
			return nil, nil, err
		}
		dm[t] = dist
		pm[t] = pred
	}
	return dm, pm, nil
}

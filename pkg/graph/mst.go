package graph

import (
	"sort"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/prim_kruskal"
)

// MST computes a minimum spanning tree over all vertices of g using Prim's
// algorithm with a heap keyed by edge cost (spec §4.1 op 2). The root is the
// lexicographically smallest vertex id, so the result is deterministic
// regardless of map iteration order upstream.
func MST(g *core.Graph) ([]*core.Edge, float64, error) {
	vertices := g.Vertices()
	if len(vertices) == 0 {
		return nil, 0, nil
	}
	sort.Strings(vertices)
	root := vertices[0]

	edges, weight, err := prim_kruskal.Prim(g, root)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*core.Edge, len(edges))
	for i := range edges {
		e := edges[i]
		out[i] = &e
	}
	return out, weight / CostScale, nil
}

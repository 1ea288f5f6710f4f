package graph

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/core"
)

// GoalSetTree is the subtree spec §4.1 op 3 produces: the set of original
// graph edge ids it uses (deduplicated, tree-reduced) and their total
// weight.
type GoalSetTree struct {
	EdgeIDs []string
	Weight  float64
}

// GoalSetSpanningTree implements the 2-approximation Steiner tree of spec
// §4.1 op 3: given terminals T and a bandwidth floor B, produce a subtree of
// g connecting all of T, minimising total edge weight subject to c(e) >= B
// on every used edge.
//
//  1. filter edges with capacity < B (graph.WithMinCapacity)
//  2. shortest paths from each t in T give a distance matrix over T
//  3. build the metric closure on T and take its MST
//  4. substitute each metric-closure edge with its underlying path
//  5. reduce to a tree (drop edges already included)
//
// Fails with an error naming the unreachable terminal if any t in T cannot
// reach the rest of the filtered graph.
func GoalSetSpanningTree(g *core.Graph, meta map[string]EdgeMeta, terminals []string, floor uint64) (*GoalSetTree, error) {
	if len(terminals) == 0 {
		return &GoalSetTree{}, nil
	}

	filtered := WithMinCapacity(g, meta, floor)

	if len(terminals) == 1 {
		if !filtered.HasVertex(terminals[0]) {
			return nil, fmt.Errorf("terminal %s not present in graph", terminals[0])
		}
		return &GoalSetTree{}, nil
	}

	distMatrix, predMatrix, err := DistanceMatrix(filtered, terminals)
	if err != nil {
		return nil, err
	}

	sortedTerminals := append([]string(nil), terminals...)
	sort.Strings(sortedTerminals)

	for _, s := range sortedTerminals {
		for _, t := range sortedTerminals {
			if s == t {
				continue
			}
			if _, ok := distMatrix[s][t]; !ok {
				return nil, fmt.Errorf("terminal %s unreachable from %s under the bandwidth floor", t, s)
			}
		}
	}

	// Metric closure: a complete weighted graph over the terminals, edge
	// weight = shortest-path distance in the filtered graph.
	closure := core.NewGraph(core.WithWeighted())
	for _, t := range sortedTerminals {
		_ = closure.AddVertex(t)
	}
	for i, s := range sortedTerminals {
		for _, t := range sortedTerminals[i+1:] {
			if _, err := closure.AddEdge(s, t, ScaleCost(distMatrix[s][t])); err != nil {
				return nil, err
			}
		}
	}

	closureMST, _, err := MST(closure)
	if err != nil {
		return nil, err
	}

	// Substitute each metric-closure edge with its underlying path in the
	// filtered graph, then reduce to a tree by deduplicating edge ids.
	used := make(map[string]struct{})
	var total float64
	for _, ce := range closureMST {
		path := reconstructPath(predMatrix[ce.From], filtered, ce.From, ce.To)
		for _, eid := range path {
			if _, dup := used[eid]; dup {
				continue
			}
			used[eid] = struct{}{}
			e, err := filtered.GetEdge(eid)
			if err != nil {
				return nil, err
			}
			total += UnscaleCost(e.Weight)
		}
	}

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &GoalSetTree{EdgeIDs: ids, Weight: total}, nil
}

// reconstructPath walks the predecessor chain built by ShortestPaths(g, from
// the source whose pred map is given) from target back to source, returning
// the edge ids traversed in source-to-target order.
func reconstructPath(pred map[string]string, g *core.Graph, source, target string) []string {
	if source == target {
		return nil
	}
	var edgeIDs []string
	cur := target
	for cur != source {
		eid, ok := pred[cur]
		if !ok {
			return nil
		}
		edgeIDs = append(edgeIDs, eid)
		e, err := g.GetEdge(eid)
		if err != nil {
			return nil
		}
		if e.From == cur {
			cur = e.To
		} else {
			cur = e.From
		}
	}
	// Reverse into source-to-target order.
	for i, j := 0, len(edgeIDs)-1; i < j; i, j = i+1, j-1 {
		edgeIDs[i], edgeIDs[j] = edgeIDs[j], edgeIDs[i]
	}
	return edgeIDs
}

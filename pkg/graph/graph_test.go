package graph

import "testing"

func buildLine(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	for _, v := range []string{"a", "b", "c", "d"} {
		if err := b.AddVertex(v); err != nil {
			t.Fatalf("AddVertex(%s): %v", v, err)
		}
	}
	if _, err := b.AddEdge("a", "b", 1.0, 100, "t1"); err != nil {
		t.Fatalf("AddEdge a-b: %v", err)
	}
	if _, err := b.AddEdge("b", "c", 2.0, 50, "t2"); err != nil {
		t.Fatalf("AddEdge b-c: %v", err)
	}
	if _, err := b.AddEdge("c", "d", 1.5, 100, "t3"); err != nil {
		t.Fatalf("AddEdge c-d: %v", err)
	}
	return b
}

func TestShortestPaths(t *testing.T) {
	b := buildLine(t)
	dist, pred, err := ShortestPaths(b.Graph(), "a")
	if err != nil {
		t.Fatalf("ShortestPaths: %v", err)
	}
	if dist["d"] != 4.5 {
		t.Errorf("dist[d] = %v, want 4.5", dist["d"])
	}
	if _, ok := pred["a"]; ok {
		t.Error("source should have no predecessor")
	}
	if _, ok := pred["d"]; !ok {
		t.Error("d should have a predecessor edge")
	}
}

func TestShortestPathsUnreachable(t *testing.T) {
	b := NewBuilder()
	_ = b.AddVertex("a")
	_ = b.AddVertex("isolated")
	dist, _, err := ShortestPaths(b.Graph(), "a")
	if err != nil {
		t.Fatalf("ShortestPaths: %v", err)
	}
	if _, ok := dist["isolated"]; ok {
		t.Error("isolated vertex should be absent from dist")
	}
}

func TestMST(t *testing.T) {
	b := buildLine(t)
	edges, weight, err := MST(b.Graph())
	if err != nil {
		t.Fatalf("MST: %v", err)
	}
	if len(edges) != 3 {
		t.Errorf("expected 3 MST edges for a 4-vertex line, got %d", len(edges))
	}
	if weight != 4.5 {
		t.Errorf("MST weight = %v, want 4.5", weight)
	}
}

func TestWithMinCapacity(t *testing.T) {
	b := buildLine(t)
	filtered := WithMinCapacity(b.Graph(), b.meta, 60)
	if filtered.EdgeCount() != 2 {
		t.Errorf("expected 2 edges after filtering capacity < 60, got %d", filtered.EdgeCount())
	}
}

// TestWithMinCapacityPreservesEdgeIDs guards the one property every
// downstream caller of WithMinCapacity depends on: an edge id surviving the
// filter must still key into the original graph's Builder.Meta map, since
// GoalSetSpanningTree reads its EdgeIDs off of the filtered graph and
// callers (pkg/netcore's planOnce) resolve them back through Meta.
func TestWithMinCapacityPreservesEdgeIDs(t *testing.T) {
	b := buildLine(t)
	original := make(map[string]bool)
	for _, e := range b.Graph().Edges() {
		original[e.ID] = true
	}

	filtered := WithMinCapacity(b.Graph(), b.meta, 60)
	for _, e := range filtered.Edges() {
		if !original[e.ID] {
			t.Errorf("filtered edge id %s does not exist in the original graph", e.ID)
		}
		if _, ok := b.Meta(e.ID); !ok {
			t.Errorf("filtered edge id %s has no corresponding Builder.Meta entry", e.ID)
		}
	}
}

func TestGoalSetSpanningTree(t *testing.T) {
	b := buildLine(t)
	tree, err := GoalSetSpanningTree(b.Graph(), b.meta, []string{"a", "d"}, 50)
	if err != nil {
		t.Fatalf("GoalSetSpanningTree: %v", err)
	}
	if len(tree.EdgeIDs) != 3 {
		t.Errorf("expected 3 edges connecting a and d, got %d", len(tree.EdgeIDs))
	}
	if tree.Weight != 4.5 {
		t.Errorf("tree weight = %v, want 4.5", tree.Weight)
	}
}

func TestGoalSetSpanningTreeUnroutable(t *testing.T) {
	b := buildLine(t)
	// Floor of 80 excludes the b-c edge (capacity 50), disconnecting a from d.
	if _, err := GoalSetSpanningTree(b.Graph(), b.meta, []string{"a", "d"}, 80); err == nil {
		t.Error("expected an error when the bandwidth floor disconnects the terminals")
	}
}

func TestGoalSetSpanningTreeSingleTerminal(t *testing.T) {
	b := buildLine(t)
	tree, err := GoalSetSpanningTree(b.Graph(), b.meta, []string{"a"}, 50)
	if err != nil {
		t.Fatalf("GoalSetSpanningTree: %v", err)
	}
	if len(tree.EdgeIDs) != 0 {
		t.Errorf("expected empty tree for a single terminal, got %d edges", len(tree.EdgeIDs))
	}
}

func TestScaleUnscaleCost(t *testing.T) {
	if got := UnscaleCost(ScaleCost(2.5)); got != 2.5 {
		t.Errorf("round-trip ScaleCost/UnscaleCost(2.5) = %v", got)
	}
}

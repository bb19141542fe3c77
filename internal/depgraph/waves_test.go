package depgraph

import (
	"reflect"
	"testing"
)

func TestComputeWavesLinearChain(t *testing.T) {
	// A -> B -> C -> D
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "D")

	waves, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{"D": 0, "C": 1, "B": 2, "A": 3}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("waves = %v, want %v", waves, want)
	}

	forced := g.ComputeForcedBy(waves)
	wantForced := map[string][]string{
		"A": {"B"},
		"B": {"C"},
		"C": {"D"},
		"D": {},
	}
	if !reflect.DeepEqual(forced, wantForced) {
		t.Errorf("forcedBy = %v, want %v", forced, wantForced)
	}
}

func TestComputeWavesDiamond(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")

	waves, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{"D": 0, "B": 1, "C": 1, "A": 2}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("waves = %v, want %v", waves, want)
	}

	forced := g.ComputeForcedBy(waves)
	if !reflect.DeepEqual(forced["A"], []string{"B", "C"}) {
		t.Errorf("forcedBy[A] = %v, want [B C]", forced["A"])
	}
}

func TestComputeWavesEdgeProperty(t *testing.T) {
	g := New()
	g.AddEdge("neutron", "python-neutron-lib")
	g.AddEdge("neutron", "python-oslo.db")
	g.AddEdge("python-neutron-lib", "python-oslo.db")
	g.AddEdge("python-oslo.db", "python-oslo.config")

	waves, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// For every edge a -> b, Wave(a) > Wave(b).
	for _, from := range g.Nodes() {
		for _, to := range g.Dependencies(from) {
			if waves[from] <= waves[to] {
				t.Errorf("wave(%s)=%d not above wave(%s)=%d", from, waves[from], to, waves[to])
			}
		}
	}
}

func TestIsolatedNodeWaveZero(t *testing.T) {
	g := New()
	g.AddNode("standalone")

	waves, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waves["standalone"] != 0 {
		t.Errorf("isolated node should be wave 0, got %d", waves["standalone"])
	}

	forced := g.ComputeForcedBy(waves)
	if len(forced["standalone"]) != 0 {
		t.Errorf("wave-0 node should have no forcing deps, got %v", forced["standalone"])
	}
}

func TestComputeWavesWithCyclesTwoCycle(t *testing.T) {
	// A -> B, B -> A, C -> A
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")
	g.AddEdge("C", "A")

	waves := g.ComputeWavesWithCycles()
	want := map[string]int{"A": 0, "B": 0, "C": 1}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("waves = %v, want %v", waves, want)
	}

	edges := g.CycleEdges()
	wantEdges := []Edge{{"A", "B"}, {"B", "A"}}
	if !reflect.DeepEqual(edges, wantEdges) {
		t.Errorf("cycle edges = %v, want %v", edges, wantEdges)
	}
}

func TestComputeWavesWithCyclesSelfLoop(t *testing.T) {
	g := New()
	g.AddEdge("a", "a")
	g.AddEdge("b", "a")

	waves := g.ComputeWavesWithCycles()
	want := map[string]int{"a": 0, "b": 1}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("waves = %v, want %v", waves, want)
	}

	edges := g.CycleEdges()
	if !reflect.DeepEqual(edges, []Edge{{"a", "a"}}) {
		t.Errorf("self-loop should be a cycle edge, got %v", edges)
	}
}

func TestComputeWavesWithCyclesFullyCyclic(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	waves := g.ComputeWavesWithCycles()
	for _, n := range []string{"a", "b", "c"} {
		if waves[n] != 0 {
			t.Errorf("cycle member %s should be wave 0, got %d", n, waves[n])
		}
	}
	if len(g.CycleEdges()) != 3 {
		t.Errorf("expected all 3 edges as cycle edges, got %v", g.CycleEdges())
	}
}

func TestCycleEdgeRemovalMatchesTolerantWaves(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")
	g.AddEdge("C", "A")
	g.AddEdge("C", "D")

	tolerant := g.ComputeWavesWithCycles()

	for _, e := range g.CycleEdges() {
		g.RemoveEdge(e.From, e.To)
	}
	strict, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("graph should be acyclic after removing cycle edges: %v", err)
	}
	if !reflect.DeepEqual(strict, tolerant) {
		t.Errorf("strict waves %v != tolerant waves %v", strict, tolerant)
	}
}

func TestForcedBySubsetOfDependencies(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "D")
	g.AddEdge("B", "C")
	g.AddEdge("C", "D")

	waves, err := g.ComputeWaves()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forced := g.ComputeForcedBy(waves)

	for node, critical := range forced {
		deps := make(map[string]bool)
		for _, d := range g.Dependencies(node) {
			deps[d] = true
		}
		for _, c := range critical {
			if !deps[c] {
				t.Errorf("forcedBy[%s] contains non-dependency %s", node, c)
			}
			if waves[c] != waves[node]-1 {
				t.Errorf("forcedBy[%s] contains %s at wave %d, want %d", node, c, waves[c], waves[node]-1)
			}
		}
	}

	// D is two waves below A, so it must not force A.
	for _, c := range forced["A"] {
		if c == "D" {
			t.Error("satisfied-earlier dependency D must not appear in forcedBy[A]")
		}
	}
}

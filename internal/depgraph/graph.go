package depgraph

import (
	"fmt"
	"sort"
)

// Graph is a directed graph of source package names. An edge A -> B means
// "A depends on B", i.e. B must be built before A. The graph may contain
// cycles; wave computation and scheduling handle them explicitly.
type Graph struct {
	nodes   map[string]bool
	edges   map[string]map[string]bool // package -> its dependencies
	reverse map[string]map[string]bool // package -> its dependents
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// AddNode adds a package to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodes[name] {
		return
	}
	g.nodes[name] = true
	g.edges[name] = make(map[string]bool)
	g.reverse[name] = make(map[string]bool)
}

// AddEdge records that from depends on to. Endpoints that are not yet nodes
// are created, so dependencies outside the active package set can still be
// recorded for reporting.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from][to] = true
	g.reverse[to][from] = true
}

// RemoveEdge deletes a single dependency edge. Used when a cycle edge
// suggestion is accepted. Removing an absent edge is a no-op.
func (g *Graph) RemoveEdge(from, to string) {
	if deps, ok := g.edges[from]; ok {
		delete(deps, to)
	}
	if rev, ok := g.reverse[to]; ok {
		delete(rev, from)
	}
}

// HasNode reports whether name is a node in the graph.
func (g *Graph) HasNode(name string) bool {
	return g.nodes[name]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all node names, sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the direct dependencies of name, sorted.
// Returns an empty slice for unknown nodes.
func (g *Graph) Dependencies(name string) []string {
	return sortedKeys(g.edges[name])
}

// Dependents returns the packages that depend on name, sorted.
func (g *Graph) Dependents(name string) []string {
	return sortedKeys(g.reverse[name])
}

// DependsOn reports whether the edge from -> to exists.
func (g *Graph) DependsOn(from, to string) bool {
	return g.edges[from][to]
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// TopologicalSort returns the nodes in build order (dependencies before
// dependents) using Kahn's algorithm on the dependency edges. Returns an
// error if the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		outDegree[name] = len(g.edges[name])
	}

	// Packages with no dependencies go first, sorted for determinism.
	var queue []string
	for name, deg := range outDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for dependent := range g.reverse[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				newReady = append(newReady, dependent)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("dependency cycle: sorted %d of %d packages", len(order), len(g.nodes))
	}
	return order, nil
}

// DetectCycles returns the dependency cycles found by DFS, each as a node
// path that starts and ends on the same package. Returns nil for an acyclic
// graph.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(g.nodes))
	parent := make(map[string]string, len(g.nodes))
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		for _, next := range g.Dependencies(node) {
			if color[next] == gray {
				// Back edge; walk parents to reconstruct the cycle.
				cycle := []string{next}
				cur := node
				for cur != next {
					cycle = append(cycle, cur)
					var ok bool
					cur, ok = parent[cur]
					if !ok {
						break
					}
				}
				cycle = append(cycle, next)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycles = append(cycles, cycle)
			} else if color[next] == white {
				parent[next] = node
				dfs(next)
			}
		}
		color[node] = black
	}

	for _, name := range g.Nodes() {
		if color[name] == white {
			dfs(name)
		}
	}
	return cycles
}

// FindMissingDependencies returns, per package, the dependencies that are
// neither graph nodes nor in the known set.
func (g *Graph) FindMissingDependencies(known map[string]bool) map[string][]string {
	missing := make(map[string][]string)
	for name, deps := range g.edges {
		var gone []string
		for dep := range deps {
			if !known[dep] && !g.nodes[dep] {
				gone = append(gone, dep)
			}
		}
		if len(gone) > 0 {
			sort.Strings(gone)
			missing[name] = gone
		}
	}
	return missing
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

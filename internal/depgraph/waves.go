package depgraph

import "sort"

// Edge is an ordered (source, dependency) pair.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ComputeWaves assigns a build wave to every node. Wave 0 holds packages
// whose dependencies are all outside the graph (or absent); every other
// package sits one wave above its highest-wave dependency. All packages in
// the same wave can build concurrently once the previous wave is done.
// Returns an error if the graph has a cycle.
func (g *Graph) ComputeWaves() (map[string]int, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	return wavesFromOrder(order, g.edges, g.nodes), nil
}

// ComputeWavesWithCycles computes waves on a graph that may contain cycles.
// Cycle edges (see CycleEdges) are excluded from the computation, so members
// of a cycle whose only dependencies are cycle-internal land in wave 0, while
// packages reaching a cycle member through a genuine edge still sit above it.
// Never fails, even on fully cyclic graphs.
func (g *Graph) ComputeWavesWithCycles() map[string]int {
	cycleEdges := make(map[Edge]bool)
	for _, e := range g.CycleEdges() {
		cycleEdges[e] = true
	}

	residual := make(map[string]map[string]bool, len(g.edges))
	for from, deps := range g.edges {
		kept := make(map[string]bool, len(deps))
		for to := range deps {
			if !cycleEdges[Edge{from, to}] {
				kept[to] = true
			}
		}
		residual[from] = kept
	}

	order := topoOrderOf(g.nodes, residual)
	return wavesFromOrder(order, residual, g.nodes)
}

// CycleEdges returns the edges that close dependency cycles: every edge
// between two members of the same strongly connected component, plus
// self-loops. Sorted for determinism.
func (g *Graph) CycleEdges() []Edge {
	components := g.stronglyConnectedComponents()

	compIndex := make(map[string]int, len(g.nodes))
	multiMember := make(map[int]bool)
	for idx, component := range components {
		for _, node := range component {
			compIndex[node] = idx
		}
		if len(component) > 1 {
			multiMember[idx] = true
		}
	}

	var edges []Edge
	for from, deps := range g.edges {
		for to := range deps {
			if from == to {
				edges = append(edges, Edge{from, to})
				continue
			}
			if compIndex[from] == compIndex[to] && multiMember[compIndex[from]] {
				edges = append(edges, Edge{from, to})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// ComputeForcedBy returns, for each node, the dependencies sitting exactly
// one wave below it. These are the binding predecessors: removing any other
// dependency would not move the node to an earlier wave. Wave-0 nodes map to
// an empty list. Results are sorted.
func (g *Graph) ComputeForcedBy(waves map[string]int) map[string][]string {
	forcedBy := make(map[string][]string, len(waves))

	for node, wave := range waves {
		critical := []string{}
		if wave > 0 {
			for dep := range g.edges[node] {
				if w, ok := waves[dep]; ok && w == wave-1 {
					critical = append(critical, dep)
				}
			}
			sort.Strings(critical)
		}
		forcedBy[node] = critical
	}
	return forcedBy
}

// wavesFromOrder computes waves over the given edge set, walking nodes in
// topological order so dependencies are assigned before dependents.
// Dependencies that are not nodes are treated as already satisfied.
func wavesFromOrder(order []string, edges map[string]map[string]bool, nodes map[string]bool) map[string]int {
	waves := make(map[string]int, len(order))
	for _, node := range order {
		wave := 0
		for dep := range edges[node] {
			if !nodes[dep] {
				continue
			}
			if w, ok := waves[dep]; ok && w+1 > wave {
				wave = w + 1
			}
		}
		waves[node] = wave
	}
	return waves
}

// topoOrderOf runs Kahn's algorithm over an explicit edge set. The edge set
// is assumed acyclic (cycle edges already removed).
func topoOrderOf(nodes map[string]bool, edges map[string]map[string]bool) []string {
	outDegree := make(map[string]int, len(nodes))
	reverse := make(map[string][]string, len(nodes))
	for name := range nodes {
		outDegree[name] = 0
	}
	for from, deps := range edges {
		for to := range deps {
			if !nodes[to] {
				continue
			}
			outDegree[from]++
			reverse[to] = append(reverse[to], from)
		}
	}

	var queue []string
	for name, deg := range outDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, dependent := range reverse[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				newReady = append(newReady, dependent)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}
	return order
}

// stronglyConnectedComponents implements Tarjan's algorithm.
func (g *Graph) stronglyConnectedComponents() [][]string {
	index := 0
	stack := []string{}
	onStack := make(map[string]bool)
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	var components [][]string

	var strongconnect func(node string)
	strongconnect = func(node string) {
		indices[node] = index
		lowlink[node] = index
		index++
		stack = append(stack, node)
		onStack[node] = true

		for _, neighbor := range g.Dependencies(node) {
			if _, seen := indices[neighbor]; !seen {
				strongconnect(neighbor)
				if lowlink[neighbor] < lowlink[node] {
					lowlink[node] = lowlink[neighbor]
				}
			} else if onStack[neighbor] {
				if indices[neighbor] < lowlink[node] {
					lowlink[node] = indices[neighbor]
				}
			}
		}

		if lowlink[node] == indices[node] {
			var component []string
			for {
				member := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[member] = false
				component = append(component, member)
				if member == node {
					break
				}
			}
			components = append(components, component)
		}
	}

	for _, node := range g.Nodes() {
		if _, seen := indices[node]; !seen {
			strongconnect(node)
		}
	}
	return components
}

// Package scheduler turns a dependency graph plus run state into waves of
// packages that are safe to build concurrently.
package scheduler

import (
	"sort"

	"github.com/drussell/packwright/internal/depgraph"
	"github.com/drussell/packwright/internal/state"
)

// ParallelBatches computes the ordered build batches for the pending
// packages of a run. Each batch only contains packages whose in-graph
// dependencies are already satisfied: built successfully in this run (or a
// previous one, on resume), not requested at all, or emitted in an earlier
// batch. Batches are sorted lexicographically for determinism.
//
// Packages left over when no further batch can be formed are blocked — by a
// cycle or by a dependency that will never succeed — and are deliberately
// omitted so the caller reports them instead of dispatching them.
func ParallelBatches(g *depgraph.Graph, s *state.BuildAllState) [][]string {
	remaining := make(map[string]bool)
	processed := make(map[string]bool)

	for name, ps := range s.Packages {
		switch ps.Status {
		case state.StatusPending:
			remaining[name] = true
		case state.StatusSuccess:
			processed[name] = true
		}
	}

	var batches [][]string
	for len(remaining) > 0 {
		var ready []string
		for pkg := range remaining {
			if depsSatisfied(g, s, pkg, processed) {
				ready = append(ready, pkg)
			}
		}
		if len(ready) == 0 {
			break
		}

		sort.Strings(ready)
		batches = append(batches, ready)
		for _, pkg := range ready {
			processed[pkg] = true
			delete(remaining, pkg)
		}
	}
	return batches
}

// depsSatisfied checks pkg's dependencies restricted to graph nodes. A
// dependency that was never requested for this run does not gate scheduling;
// it is assumed available from the archive.
func depsSatisfied(g *depgraph.Graph, s *state.BuildAllState, pkg string, processed map[string]bool) bool {
	for _, dep := range g.Dependencies(pkg) {
		if !g.HasNode(dep) {
			continue
		}
		if processed[dep] {
			continue
		}
		if _, requested := s.Packages[dep]; !requested {
			continue
		}
		return false
	}
	return true
}

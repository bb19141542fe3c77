package orchestrator

import (
	"sort"

	"github.com/drussell/packwright/internal/state"
)

// diagnose explains why a still-pending package never became ready. It
// returns ok == false when the package is in fact ready and the run simply
// stopped before reaching it.
func (o *Orchestrator) diagnose(s *state.BuildAllState, pkg string) (BlockedPackage, bool) {
	members := o.cycleMembers()

	if members[pkg] {
		return BlockedPackage{Name: pkg, Reason: "cycle", Via: o.cyclePeers(pkg)}, true
	}

	if chain, found := o.chainTo(s, pkg, func(n string) bool {
		ps, ok := s.Packages[n]
		return ok && (ps.Status == state.StatusFailed || ps.Status == state.StatusSkipped)
	}); found {
		return BlockedPackage{Name: pkg, Reason: "failed_dependency", Via: chain}, true
	}

	if chain, found := o.chainTo(s, pkg, func(n string) bool { return members[n] }); found {
		return BlockedPackage{Name: pkg, Reason: "cycle", Via: chain}, true
	}

	return BlockedPackage{}, false
}

// cycleMembers collects every node participating in a dependency cycle.
func (o *Orchestrator) cycleMembers() map[string]bool {
	members := make(map[string]bool)
	for _, e := range o.Graph.CycleEdges() {
		members[e.From] = true
		members[e.To] = true
	}
	return members
}

// cyclePeers lists the direct cycle neighbors of a cycle member.
func (o *Orchestrator) cyclePeers(pkg string) []string {
	peers := make(map[string]bool)
	for _, e := range o.Graph.CycleEdges() {
		if e.From == pkg {
			peers[e.To] = true
		}
		if e.To == pkg {
			peers[e.From] = true
		}
	}
	var out []string
	for p := range peers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// chainTo walks pkg's requested in-graph dependencies breadth-first and
// returns the path to the nearest node matching the predicate, excluding pkg
// itself.
func (o *Orchestrator) chainTo(s *state.BuildAllState, pkg string, match func(string) bool) ([]string, bool) {
	parent := map[string]string{pkg: ""}
	queue := []string{pkg}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range o.Graph.Dependencies(cur) {
			if _, seen := parent[dep]; seen {
				continue
			}
			if _, requested := s.Packages[dep]; !requested {
				continue
			}
			parent[dep] = cur
			if match(dep) {
				var chain []string
				for n := dep; n != pkg; n = parent[n] {
					chain = append(chain, n)
				}
				// Reverse into pkg -> ... -> dep order.
				for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
					chain[i], chain[j] = chain[j], chain[i]
				}
				return chain, true
			}
			queue = append(queue, dep)
		}
	}
	return nil, false
}

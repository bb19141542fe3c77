// Package cycles suggests which dependency edges inside build cycles can be
// dropped because the upstream project no longer declares the dependency.
// Collection of upstream requirement declarations is separated from the pure
// suggestion decision so the decision stays testable without a filesystem.
package cycles

import (
	"fmt"
	"sort"

	"github.com/drussell/packwright/internal/depgraph"
)

// Suggestion recommends removing one cycle edge, with the evidence the
// recommendation rests on.
type Suggestion struct {
	Edge   depgraph.Edge `json:"edge"`
	Reason string        `json:"reason"`
	// Evidence records where the upstream declaration was read from.
	Evidence Evidence `json:"evidence"`
}

// Evidence points at the requirements declaration that justified a
// suggestion.
type Evidence struct {
	Origin  string `json:"origin"` // "packaging_checkout" or "tarball_cache"
	Path    string `json:"path"`
	File    string `json:"file"`
	Commit  string `json:"commit,omitempty"`
	Project string `json:"project,omitempty"`
	Version string `json:"version,omitempty"`
}

// Suggest examines each cycle edge against the dependent's declared upstream
// requirements. An edge is suggested for removal when the declaration was
// found and none of the dependency's candidate source names appear in it.
// Sources without a located declaration produce no suggestions; an empty
// declaration means the project depends on nothing, so every outgoing cycle
// edge is suggestible.
func Suggest(edges []depgraph.Edge, declared map[string]Declared) []Suggestion {
	var suggestions []Suggestion
	for _, e := range edges {
		d, ok := declared[e.From]
		if !ok || !d.Found {
			continue
		}
		if declaresDependency(d, e.To) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Edge:   e,
			Reason: fmt.Sprintf("%s not found in upstream requirements of %s", e.To, e.From),
			Evidence: Evidence{
				Origin:  d.Origin,
				Path:    d.Path,
				File:    d.File,
				Commit:  d.Commit,
				Project: d.Project,
				Version: d.Version,
			},
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Edge.From != suggestions[j].Edge.From {
			return suggestions[i].Edge.From < suggestions[j].Edge.From
		}
		return suggestions[i].Edge.To < suggestions[j].Edge.To
	})
	return suggestions
}

// declaresDependency reports whether any candidate translation of the
// dependent's declared requirements names the dependency source package.
func declaresDependency(d Declared, depSource string) bool {
	return d.Candidates[depSource]
}

// Apply removes the suggested edges from the graph. The caller decides which
// suggestions to accept; Apply applies exactly what it is given.
func Apply(g *depgraph.Graph, suggestions []Suggestion) {
	for _, s := range suggestions {
		g.RemoveEdge(s.Edge.From, s.Edge.To)
	}
}

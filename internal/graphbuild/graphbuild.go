// Package graphbuild constructs the source-package dependency graph from
// per-source build dependency declarations and the binary package index.
package graphbuild

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/drussell/packwright/internal/aptindex"
	"github.com/drussell/packwright/internal/depgraph"
)

// SourceDeps is one source package's declared build inputs.
type SourceDeps struct {
	Name         string
	BuildDepends []string
	Binaries     []string
	Provides     []string
}

// Options tunes graph construction.
type Options struct {
	// SoftExclusions lists edges to drop after construction, keyed
	// "<source>:<dependency>". Dropped edges are reported, not silently
	// forgotten.
	SoftExclusions map[string]bool
	// OptionalBuildDeps lists binary dependency names whose absence from
	// the index is tolerated (documentation and test-only tooling).
	OptionalBuildDeps map[string]bool
}

// Result is the constructed graph plus everything the construction decided
// along the way.
type Result struct {
	Graph *depgraph.Graph
	// BinaryToSource records the binary name resolution used, including
	// entries synthesized from the sources themselves.
	BinaryToSource map[string]string
	// MissingDeps maps each source to binary dependencies that resolved to
	// no source package at all.
	MissingDeps map[string][]string
	// ExcludedEdges lists edges dropped by soft exclusions.
	ExcludedEdges []depgraph.Edge
	Warnings      []string
}

// Build maps binary build dependencies to owning source packages and adds an
// edge source -> dependency-source whenever both ends are in the requested
// set. Dependencies owned by sources outside the set are satisfied by the
// archive and produce no edge.
func Build(sources []SourceDeps, index aptindex.PackageIndex, opts Options) *Result {
	res := &Result{
		Graph:          depgraph.New(),
		BinaryToSource: make(map[string]string),
		MissingDeps:    make(map[string][]string),
	}

	inSet := make(map[string]bool, len(sources))
	for _, s := range sources {
		inSet[s.Name] = true
		res.Graph.AddNode(s.Name)
	}

	// The set's own binaries and provides take priority over the archive
	// index: a rebuild of the set must prefer its own artifacts.
	for _, s := range sources {
		for _, b := range s.Binaries {
			res.BinaryToSource[b] = s.Name
		}
		for _, p := range s.Provides {
			if _, taken := res.BinaryToSource[p]; !taken {
				res.BinaryToSource[p] = s.Name
			}
		}
	}

	for _, s := range sources {
		for _, dep := range s.BuildDepends {
			owner, found := resolveOwner(dep, res.BinaryToSource, inSet, index)
			if !found {
				if opts.OptionalBuildDeps[dep] {
					continue
				}
				res.MissingDeps[s.Name] = append(res.MissingDeps[s.Name], dep)
				continue
			}
			if owner == "" || owner == s.Name || !inSet[owner] {
				continue
			}
			if opts.SoftExclusions[s.Name+":"+owner] {
				res.ExcludedEdges = append(res.ExcludedEdges, depgraph.Edge{From: s.Name, To: owner})
				continue
			}
			res.Graph.AddEdge(s.Name, owner)
		}
		sort.Strings(res.MissingDeps[s.Name])
	}

	sort.Slice(res.ExcludedEdges, func(i, j int) bool {
		a, b := res.ExcludedEdges[i], res.ExcludedEdges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	for _, src := range sortedMissingSources(res.MissingDeps) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%s: unresolved build dependencies: %s", src, strings.Join(res.MissingDeps[src], ", ")))
	}
	return res
}

// resolveOwner finds the source package owning a binary dependency: the set's
// own binaries first, then the archive index, then the python3-/python-
// prefix convention against the set itself as a last resort.
func resolveOwner(binary string, local map[string]string, inSet map[string]bool, index aptindex.PackageIndex) (string, bool) {
	if owner, ok := local[binary]; ok {
		return owner, true
	}
	if index != nil {
		if pkg, ok := index.FindPackage(binary); ok {
			return pkg.Source, true
		}
	}
	if rest, ok := strings.CutPrefix(binary, "python3-"); ok {
		if guess := "python-" + rest; inSet[guess] {
			return guess, true
		}
	}
	return "", false
}

func sortedMissingSources(m map[string][]string) []string {
	var names []string
	for name, deps := range m {
		if len(deps) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LoadSources reads a JSON snapshot of per-source build dependencies:
//
//	{"sources": {"<name>": {"build_depends": [...], "binaries": [...],
//	 "provides": [...]}}}
func LoadSources(path string) ([]SourceDeps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources snapshot: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("sources snapshot %s: invalid JSON", path)
	}

	var sources []SourceDeps
	gjson.ParseBytes(data).Get("sources").ForEach(func(key, value gjson.Result) bool {
		s := SourceDeps{Name: key.String()}
		for _, d := range value.Get("build_depends").Array() {
			s.BuildDepends = append(s.BuildDepends, d.String())
		}
		for _, b := range value.Get("binaries").Array() {
			s.Binaries = append(s.Binaries, b.String())
		}
		for _, p := range value.Get("provides").Array() {
			s.Provides = append(s.Provides, p.String())
		}
		sources = append(sources, s)
		return true
	})

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

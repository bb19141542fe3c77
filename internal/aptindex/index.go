// Package aptindex provides the binary-package index the planner consults to
// map binary dependencies to owning source packages and to answer version
// questions. The index itself is produced externally; this package loads a
// cached JSON snapshot of it.
package aptindex

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
)

// BinaryPackage is one binary package entry from the index.
type BinaryPackage struct {
	Name      string
	Source    string
	Version   string
	Component string
	Depends   []string
	Provides  []string
}

// PackageIndex answers dependency-resolution queries. The graph builder and
// the cycle advisor consume this interface; tests supply in-memory fakes.
type PackageIndex interface {
	// FindPackage resolves a binary package name (or a name it provides)
	// to its index entry.
	FindPackage(binary string) (*BinaryPackage, bool)
	// BinariesFor lists the binary packages built from a source package.
	BinariesFor(source string) []string
	// Component returns the archive component of a binary package, or "".
	Component(binary string) string
	// Satisfies reports whether the indexed version of binary meets the
	// given constraint (e.g. ">=2.1.0"). Unknown packages never satisfy.
	Satisfies(binary, constraint string) bool
}

// Index is an in-memory PackageIndex.
type Index struct {
	Origin   string
	packages map[string]*BinaryPackage
	provides map[string]string // provided name -> providing binary
	bySource map[string][]string
}

// NewIndex returns an empty index.
func NewIndex(origin string) *Index {
	return &Index{
		Origin:   origin,
		packages: make(map[string]*BinaryPackage),
		provides: make(map[string]string),
		bySource: make(map[string][]string),
	}
}

// Add inserts or replaces a binary package entry.
func (ix *Index) Add(pkg *BinaryPackage) {
	ix.packages[pkg.Name] = pkg
	for _, p := range pkg.Provides {
		ix.provides[p] = pkg.Name
	}
	if pkg.Source != "" {
		ix.bySource[pkg.Source] = append(ix.bySource[pkg.Source], pkg.Name)
	}
}

// FindPackage resolves a binary name or a name it provides. A nil *Index
// resolves nothing.
func (ix *Index) FindPackage(binary string) (*BinaryPackage, bool) {
	if ix == nil {
		return nil, false
	}
	if pkg, ok := ix.packages[binary]; ok {
		return pkg, true
	}
	if provider, ok := ix.provides[binary]; ok {
		return ix.packages[provider], true
	}
	return nil, false
}

func (ix *Index) BinariesFor(source string) []string {
	if ix == nil {
		return nil
	}
	names := append([]string(nil), ix.bySource[source]...)
	sort.Strings(names)
	return names
}

func (ix *Index) Component(binary string) string {
	if pkg, ok := ix.FindPackage(binary); ok {
		return pkg.Component
	}
	return ""
}

func (ix *Index) Satisfies(binary, constraint string) bool {
	pkg, ok := ix.FindPackage(binary)
	if !ok || pkg.Version == "" {
		return false
	}
	if constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(UpstreamVersion(pkg.Version))
	if err != nil {
		return false
	}
	return c.Check(v)
}

// Len returns the number of binary packages in the index.
func (ix *Index) Len() int {
	return len(ix.packages)
}

// UpstreamVersion strips the epoch and packaging revision from a package
// version string: "1:2.3.0-0ubuntu1" -> "2.3.0".
func UpstreamVersion(version string) string {
	if i := strings.Index(version, ":"); i >= 0 {
		version = version[i+1:]
	}
	if i := strings.LastIndex(version, "-"); i >= 0 {
		version = version[:i]
	}
	return version
}

// Load reads a cached JSON index snapshot:
//
//	{"origin": "...", "packages": {"<binary>": {"source": ..., "version": ...,
//	 "component": ..., "depends": [...], "provides": [...]}}}
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package index: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("package index %s: invalid JSON", path)
	}

	root := gjson.ParseBytes(data)
	ix := NewIndex(root.Get("origin").String())

	root.Get("packages").ForEach(func(key, value gjson.Result) bool {
		pkg := &BinaryPackage{
			Name:      key.String(),
			Source:    value.Get("source").String(),
			Version:   value.Get("version").String(),
			Component: value.Get("component").String(),
		}
		for _, d := range value.Get("depends").Array() {
			pkg.Depends = append(pkg.Depends, d.String())
		}
		for _, p := range value.Get("provides").Array() {
			pkg.Provides = append(pkg.Provides, p.String())
		}
		ix.Add(pkg)
		return true
	})

	return ix, nil
}

// Merge combines indexes; later indexes win on conflicting binary names,
// matching the local-repo-overrides-archive convention.
func Merge(indexes ...*Index) *Index {
	origins := make([]string, 0, len(indexes))
	for _, ix := range indexes {
		if ix.Origin != "" {
			origins = append(origins, ix.Origin)
		}
	}
	merged := NewIndex(strings.Join(origins, "+"))
	for _, ix := range indexes {
		for _, name := range sortedNames(ix.packages) {
			merged.Add(ix.packages[name])
		}
	}
	return merged
}

func sortedNames(m map[string]*BinaryPackage) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

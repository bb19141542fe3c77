package cycles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	git "github.com/go-git/go-git/v5"

	"github.com/drussell/packwright/internal/aptindex"
	"github.com/drussell/packwright/internal/depgraph"
)

// requirementFiles is the fixed priority list of upstream dependency
// declaration files. The first one present is parsed; the rest are ignored.
var requirementFiles = []string{
	"requirements.txt",
	"pyproject.toml",
	"setup.cfg",
}

// Declared is the plain-data result of collecting one source package's
// upstream requirements. It feeds the pure Suggest decision; everything
// filesystem- or index-shaped stays here.
type Declared struct {
	Source  string
	Found   bool   // a requirements file was located and parsed
	Origin  string // "packaging_checkout" or "tarball_cache"
	Path    string // directory the requirements file was read from
	File    string // which requirements file was used
	Commit  string // git HEAD of the packaging checkout, when available
	Project string
	Version string
	// Candidates holds every plausible source package name the declared
	// dependencies translate to.
	Candidates map[string]bool
}

// Collector locates and parses upstream requirement declarations for the
// source packages appearing in cycle edges.
type Collector struct {
	// PackagingRoot holds per-package packaging checkouts
	// (<root>/<source>/), preferred over the tarball cache.
	PackagingRoot string
	// TarballCache holds extracted upstream release archives
	// (<cache>/<project>-<version>/).
	TarballCache string
	// Index maps binary dependency names to source packages.
	Index aptindex.PackageIndex
	// SourceToProject maps source package names to upstream project names;
	// missing entries fall back to the source name.
	SourceToProject map[string]string
	// UpstreamVersions maps source package names to upstream versions,
	// needed to locate tarball cache extractions.
	UpstreamVersions map[string]string
}

// Collect gathers declared requirements for every distinct source package in
// edges. Sources whose requirements cannot be located are returned with
// Found == false; the advisor emits nothing for them.
func (c *Collector) Collect(edges []depgraph.Edge) map[string]Declared {
	declared := make(map[string]Declared)
	for _, e := range edges {
		if _, done := declared[e.From]; done {
			continue
		}
		declared[e.From] = c.collectOne(e.From)
	}
	return declared
}

func (c *Collector) collectOne(source string) Declared {
	project := source
	if p, ok := c.SourceToProject[source]; ok && p != "" {
		project = p
	}
	d := Declared{
		Source:  source,
		Project: project,
		Version: c.UpstreamVersions[source],
	}

	dir, origin := c.resolveRequirementsDir(source, project, d.Version)
	if dir == "" {
		return d
	}

	file, deps, err := parseFirstRequirementsFile(dir)
	if err != nil || file == "" {
		return d
	}

	d.Found = true
	d.Origin = origin
	d.Path = dir
	d.File = file
	if origin == "packaging_checkout" {
		d.Commit = headCommit(dir)
	}

	d.Candidates = make(map[string]bool)
	for _, dep := range deps {
		for candidate := range CandidateSources(dep, c.Index) {
			d.Candidates[candidate] = true
		}
	}
	return d
}

// resolveRequirementsDir prefers the local packaging checkout and falls back
// to a cached upstream tarball extraction.
func (c *Collector) resolveRequirementsDir(source, project, version string) (dir, origin string) {
	if c.PackagingRoot != "" {
		checkout := filepath.Join(c.PackagingRoot, source)
		if hasRequirementsFile(checkout) {
			return checkout, "packaging_checkout"
		}
	}
	if c.TarballCache != "" && project != "" && version != "" {
		extraction := filepath.Join(c.TarballCache, fmt.Sprintf("%s-%s", project, version))
		if info, err := os.Stat(extraction); err == nil && info.IsDir() {
			srcDir := findSourceDir(extraction)
			if hasRequirementsFile(srcDir) {
				return srcDir, "tarball_cache"
			}
		}
	}
	return "", ""
}

// findSourceDir descends one level when the extraction holds a single
// wrapping directory, the usual tarball layout.
func findSourceDir(extraction string) string {
	if hasRequirementsFile(extraction) {
		return extraction
	}
	entries, err := os.ReadDir(extraction)
	if err != nil {
		return extraction
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 {
		return filepath.Join(extraction, dirs[0])
	}
	return extraction
}

func hasRequirementsFile(dir string) bool {
	for _, name := range requirementFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// headCommit returns the HEAD hash of a git checkout, or "" when the
// directory is not a repository.
func headCommit(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// parseFirstRequirementsFile parses the first file from the priority list
// that exists in dir. An existing but empty file yields an empty dependency
// list, which is a valid "declares nothing" answer.
func parseFirstRequirementsFile(dir string) (file string, deps []string, err error) {
	for _, name := range requirementFiles {
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		switch name {
		case "requirements.txt":
			deps, err = parseRequirementsTxt(path)
		case "pyproject.toml":
			deps, err = parsePyprojectDeps(path)
		case "setup.cfg":
			deps, err = parseSetupCfgDeps(path)
		}
		return name, deps, err
	}
	return "", nil, nil
}

func parseRequirementsTxt(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, line := range strings.Split(string(data), "\n") {
		if name, ok := parseRequirementLine(line); ok {
			deps = append(deps, name)
		}
	}
	return deps, nil
}

var extrasPattern = regexp.MustCompile(`\[.*?\]`)
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+`)

// parseRequirementLine extracts the normalized project name from one
// requirements.txt line, dropping version specifiers, extras markers and
// environment markers.
func parseRequirementLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
		return "", false
	}
	// Include/constraint/editable/flag directives carry no package name.
	if strings.HasPrefix(line, "-") {
		return "", false
	}
	if i := strings.Index(line, ";"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = extrasPattern.ReplaceAllString(line, "")

	name := namePattern.FindString(line)
	if name == "" {
		return "", false
	}
	return NormalizePythonName(name), true
}

// parsePyprojectDeps reads [project] dependencies from pyproject.toml.
func parsePyprojectDeps(path string) ([]string, error) {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	var deps []string
	for _, raw := range doc.Project.Dependencies {
		if name, ok := parseRequirementLine(raw); ok {
			deps = append(deps, name)
		}
	}
	return deps, nil
}

// parseSetupCfgDeps scans the [options] install_requires block of setup.cfg.
// The format is ini-like with indented continuation lines.
func parseSetupCfgDeps(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var deps []string
	inOptions := false
	inInstallRequires := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inOptions = trimmed == "[options]"
			inInstallRequires = false
			continue
		}
		if !inOptions {
			continue
		}

		indented := line != "" && (line[0] == ' ' || line[0] == '\t')
		if !indented {
			key, rest, hasEq := strings.Cut(trimmed, "=")
			inInstallRequires = hasEq && strings.TrimSpace(key) == "install_requires"
			if inInstallRequires {
				if name, ok := parseRequirementLine(strings.TrimSpace(rest)); ok {
					deps = append(deps, name)
				}
			}
			continue
		}
		if inInstallRequires {
			if name, ok := parseRequirementLine(trimmed); ok {
				deps = append(deps, name)
			}
		}
	}
	return deps, nil
}

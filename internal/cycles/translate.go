package cycles

import (
	"regexp"
	"strings"

	"github.com/drussell/packwright/internal/aptindex"
)

// pythonToDebian maps upstream Python project names to their Debian binary
// package names where the python3- heuristic does not apply. An empty value
// means the dependency is virtual or satisfied by the interpreter and should
// be ignored.
var pythonToDebian = map[string]string{
	"python":     "",
	"setuptools": "python3-setuptools",
	"pip":        "python3-pip",
	"wheel":      "python3-wheel",
	"pbr":        "python3-pbr",

	"keystoneauth1":      "python3-keystoneauth1",
	"keystonemiddleware": "python3-keystonemiddleware",
	"osc-lib":            "python3-osc-lib",

	"python-keystoneclient":  "python3-keystoneclient",
	"python-novaclient":      "python3-novaclient",
	"python-glanceclient":    "python3-glanceclient",
	"python-neutronclient":   "python3-neutronclient",
	"python-cinderclient":    "python3-cinderclient",
	"python-swiftclient":     "python3-swiftclient",
	"python-openstackclient": "python3-openstackclient",
}

// pythonPrefixed lists upstream projects whose source packages carry a
// python- prefix even though the project name does not.
var pythonPrefixed = map[string]bool{
	"keystoneauth1":      true,
	"keystonemiddleware": true,
	"osc-lib":            true,
	"tooz":               true,
	"taskflow":           true,
	"automaton":          true,
	"futurist":           true,
	"cotyledon":          true,
	"stevedore":          true,
	"debtcollector":      true,
	"cliff":              true,
	"oslotest":           true,
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizePythonName applies PEP 503 normalization: lowercase with runs of
// separators collapsed to a single hyphen.
func NormalizePythonName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}

// MapPythonToDebian translates a normalized Python project name to a Debian
// binary package name. The second return is true when the mapping is
// heuristic rather than from the explicit table. An empty name means the
// dependency should be ignored.
func MapPythonToDebian(pythonName string) (string, bool) {
	if mapped, ok := pythonToDebian[pythonName]; ok {
		return mapped, false
	}
	// oslo-config -> python3-oslo.config
	if suffix, ok := strings.CutPrefix(pythonName, "oslo-"); ok {
		return "python3-oslo." + suffix, true
	}
	return "python3-" + pythonName, true
}

// ProjectToSourcePackage converts an upstream project name to the source
// package name convention: libraries get a python- prefix, services keep
// their name.
func ProjectToSourcePackage(project string) string {
	if strings.HasPrefix(project, "oslo.") || strings.HasPrefix(project, "oslo-") {
		return "python-" + project
	}
	if strings.HasPrefix(project, "python-") {
		return project
	}
	if strings.HasSuffix(project, "client") {
		return "python-" + project
	}
	if pythonPrefixed[project] {
		return "python-" + project
	}
	return project
}

// CandidateSources returns every plausible source package name an upstream
// dependency could resolve to: the index's binary->source answer, the
// python3-/python- prefix swap, the binary name itself, and the generic
// project-to-source normalization.
func CandidateSources(pythonDep string, index aptindex.PackageIndex) map[string]bool {
	candidates := make(map[string]bool)

	debianName, _ := MapPythonToDebian(pythonDep)
	if debianName != "" {
		if index != nil {
			if pkg, ok := index.FindPackage(debianName); ok && pkg.Source != "" {
				candidates[pkg.Source] = true
			}
		}
		if rest, ok := strings.CutPrefix(debianName, "python3-"); ok {
			candidates["python-"+rest] = true
		}
		candidates[debianName] = true
	}

	candidates[ProjectToSourcePackage(pythonDep)] = true
	delete(candidates, "")
	return candidates
}

package ui

import (
	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold       = color.New(color.Bold).SprintFunc()
	Dim        = color.New(color.Faint).SprintFunc()
	Cyan       = color.New(color.FgCyan).SprintFunc()
	Green      = color.New(color.FgGreen).SprintFunc()
	Red        = color.New(color.FgRed).SprintFunc()
	Yellow     = color.New(color.FgYellow).SprintFunc()
	Magenta    = color.New(color.FgMagenta).SprintFunc()
	BoldCyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen  = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldWhite  = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// pkgColors is a palette of distinct bold colors for differentiating
// concurrently building packages.
var pkgColors = []func(a ...interface{}) string{
	color.New(color.Bold, color.FgMagenta).SprintFunc(),
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// pkgColorIndex hashes a package name to a palette index.
func pkgColorIndex(pkg string) int {
	var h uint32
	for _, c := range pkg {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(pkgColors)))
}

// PkgPrefix returns a colored [package] prefix string. Each package name
// gets a distinct color from the palette.
func PkgPrefix(pkg string) string {
	c := pkgColors[pkgColorIndex(pkg)]
	return Dim("[") + c(pkg) + Dim("]")
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status string) string {
	switch status {
	case "success":
		return Green("✓")
	case "building":
		return Cyan("●")
	case "failed":
		return Red("✗")
	case "skipped":
		return Yellow("⊘")
	case "blocked":
		return Dim("⊘")
	default:
		return Dim("◌")
	}
}

// WaveStatus returns a colored batch status string.
func WaveStatus(status string) string {
	switch status {
	case "done":
		return Green("done")
	case "building":
		return BoldCyan("building")
	default:
		return Dim("waiting")
	}
}

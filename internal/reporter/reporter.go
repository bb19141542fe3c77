// Package reporter renders run state for terminals and writes the
// machine-readable and Markdown run reports.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/drussell/packwright/internal/orchestrator"
	"github.com/drussell/packwright/internal/state"
	"github.com/drussell/packwright/internal/ui"
)

// Reporter provides status display and report files for a build-all run.
type Reporter struct {
	State *state.BuildAllState
	// Waves maps each package to its wave number, cycle-tolerant.
	Waves   map[string]int
	Blocked []orchestrator.BlockedPackage
}

// New creates a Reporter.
func New(s *state.BuildAllState, waves map[string]int) *Reporter {
	return &Reporter{State: s, Waves: waves}
}

// PrintStatus writes a terminal-friendly status table grouped by wave.
func (r *Reporter) PrintStatus(w io.Writer) {
	success := len(r.State.ByStatus(state.StatusSuccess))
	failed := len(r.State.ByStatus(state.StatusFailed))

	fmt.Fprintf(w, "%s %s — %d of %d packages built",
		ui.BoldCyan("packwright"), ui.Dim(r.State.RunID),
		success, len(r.State.Requested))
	if failed > 0 {
		fmt.Fprintf(w, " %s", ui.Red(fmt.Sprintf("(%d failed)", failed)))
	}
	fmt.Fprintf(w, "\n\n")

	for _, wave := range r.waveNumbers() {
		members := r.wavePackages(wave)
		fmt.Fprintf(w, "  %s %d (%s)\n", ui.BoldWhite("WAVE"), wave, ui.WaveStatus(r.waveStatus(members)))
		for _, pkg := range members {
			r.printPackage(w, pkg)
		}
		fmt.Fprintln(w)
	}
}

func (r *Reporter) waveNumbers() []int {
	seen := make(map[int]bool)
	for pkg := range r.State.Packages {
		if wave, ok := r.Waves[pkg]; ok {
			seen[wave] = true
		}
	}
	var waves []int
	for wave := range seen {
		waves = append(waves, wave)
	}
	sort.Ints(waves)
	return waves
}

func (r *Reporter) wavePackages(wave int) []string {
	var members []string
	for pkg := range r.State.Packages {
		if r.Waves[pkg] == wave {
			members = append(members, pkg)
		}
	}
	sort.Strings(members)
	return members
}

func (r *Reporter) waveStatus(members []string) string {
	allDone := true
	for _, pkg := range members {
		ps := r.State.Packages[pkg]
		if ps == nil || !ps.Status.Terminal() {
			allDone = false
			break
		}
	}
	if allDone {
		return "done"
	}
	return "waiting"
}

func (r *Reporter) printPackage(w io.Writer, pkg string) {
	ps := r.State.Packages[pkg]

	detail := ""
	switch ps.Status {
	case state.StatusSuccess:
		if ps.DurationSecs > 0 {
			detail = ui.Dim(fmt.Sprintf("[%.1fs]", ps.DurationSecs))
		}
	case state.StatusFailed:
		detail = ui.Red(fmt.Sprintf("[%s]", ps.FailureType))
	case state.StatusSkipped:
		detail = ui.Yellow(fmt.Sprintf("[%s]", ps.FailureType))
	}

	fmt.Fprintf(w, "    %s %-40s %s\n", ui.StatusIcon(string(ps.Status)), pkg, detail)
}

// Summary returns the final run summary string.
func (r *Reporter) Summary(res *orchestrator.Result) string {
	var b strings.Builder

	statusText := ui.BoldGreen(string(res.Status))
	switch res.Status {
	case orchestrator.StatusPartialFailure:
		statusText = ui.BoldRed(string(res.Status))
	case orchestrator.StatusBlocked, orchestrator.StatusCancelled:
		statusText = ui.Yellow(string(res.Status))
	}

	fmt.Fprintf(&b, "\n%s\n", ui.BoldCyan("Build Run Complete"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("═════════════════════════"))
	fmt.Fprintf(&b, "Run:       %s\n", ui.Dim(r.State.RunID))
	fmt.Fprintf(&b, "Duration:  %s\n", ui.Bold(res.Duration.Truncate(time.Second)))
	fmt.Fprintf(&b, "Packages:  %s, %s, %s, %d total\n",
		ui.Green(fmt.Sprintf("%d built", res.Built)),
		ui.Red(fmt.Sprintf("%d failed", res.Failed)),
		ui.Yellow(fmt.Sprintf("%d skipped", res.Skipped)),
		len(r.State.Requested))
	fmt.Fprintf(&b, "Status:    %s\n", statusText)

	if res.Failed > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.BoldRed("Failed packages:"))
		for _, pkg := range r.State.ByStatus(state.StatusFailed) {
			ps := r.State.Packages[pkg]
			fmt.Fprintf(&b, "  %s %s  %s\n", ui.Red("✗"), pkg, ui.Dim("(log: "+ps.LogPath+")"))
		}
	}

	if len(res.Blocked) > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.BoldYellow("Blocked packages:"))
		for _, bp := range res.Blocked {
			fmt.Fprintf(&b, "  %s %s  %s\n", ui.Yellow("⊘"), bp.Name,
				ui.Dim(fmt.Sprintf("(%s: %s)", bp.Reason, strings.Join(bp.Via, " -> "))))
		}
	}

	return b.String()
}

// packageReport is one row of the machine-readable report.
type packageReport struct {
	Name           string  `json:"name"`
	Wave           int     `json:"wave"`
	Status         string  `json:"status"`
	FailureType    string  `json:"failure_type,omitempty"`
	FailureMessage string  `json:"failure_message,omitempty"`
	Attempts       int     `json:"attempts"`
	DurationSecs   float64 `json:"duration_secs,omitempty"`
	LogPath        string  `json:"log_path,omitempty"`
}

type runReport struct {
	RunID     string          `json:"run_id"`
	Target    string          `json:"target,omitempty"`
	Series    string          `json:"series,omitempty"`
	BuildType string          `json:"build_type,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Packages  []packageReport `json:"packages"`
}

// JSON returns the machine-readable run report. Every requested package
// appears with its disposition, pending included.
func (r *Reporter) JSON() ([]byte, error) {
	report := runReport{
		RunID:     r.State.RunID,
		Target:    r.State.Target,
		Series:    r.State.Series,
		BuildType: r.State.BuildType,
		StartedAt: r.State.StartedAt,
	}

	names := append([]string(nil), r.State.Requested...)
	sort.Strings(names)
	for _, pkg := range names {
		ps := r.State.Packages[pkg]
		if ps == nil {
			continue
		}
		report.Packages = append(report.Packages, packageReport{
			Name:           pkg,
			Wave:           r.Waves[pkg],
			Status:         string(ps.Status),
			FailureType:    string(ps.FailureType),
			FailureMessage: ps.FailureMessage,
			Attempts:       ps.Attempt,
			DurationSecs:   ps.DurationSecs,
			LogPath:        ps.LogPath,
		})
	}

	return json.MarshalIndent(report, "", "  ")
}

// Markdown renders the run report as a Markdown table.
func (r *Reporter) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Build report: %s\n\n", r.State.RunID)
	if r.State.Series != "" {
		fmt.Fprintf(&b, "Series: %s\n\n", r.State.Series)
	}
	fmt.Fprintf(&b, "| Package | Wave | Status | Failure | Attempts | Duration |\n")
	fmt.Fprintf(&b, "|---------|------|--------|---------|----------|----------|\n")

	names := append([]string(nil), r.State.Requested...)
	sort.Strings(names)
	for _, pkg := range names {
		ps := r.State.Packages[pkg]
		if ps == nil {
			continue
		}
		failure := string(ps.FailureType)
		if ps.FailureMessage != "" {
			failure = fmt.Sprintf("%s: %s", ps.FailureType, ps.FailureMessage)
		}
		duration := ""
		if ps.DurationSecs > 0 {
			duration = fmt.Sprintf("%.1fs", ps.DurationSecs)
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %d | %s |\n",
			pkg, r.Waves[pkg], ps.Status, failure, ps.Attempt, duration)
	}
	return b.String()
}

// WriteReports writes report.json and report.md into dir.
func (r *Reporter) WriteReports(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}
	return nil
}

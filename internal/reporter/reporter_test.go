package reporter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/drussell/packwright/internal/orchestrator"
	"github.com/drussell/packwright/internal/state"
)

func sampleState(t *testing.T) *state.BuildAllState {
	t.Helper()
	store := state.NewStore(t.TempDir())
	s, err := store.CreateInitial("run-1", []string{"nova", "python-pbr", "python-tooz"},
		state.RunMeta{Series: "plucky", KeepGoing: true})
	require.NoError(t, err)

	require.NoError(t, store.MarkStarted(s, "python-pbr"))
	require.NoError(t, store.UpdateStatus(s, "python-pbr", state.StatusSuccess, state.FailureNone, ""))
	require.NoError(t, store.MarkStarted(s, "python-tooz"))
	require.NoError(t, store.UpdateStatus(s, "python-tooz", state.StatusFailed, state.FailureBuild, "boom"))
	require.NoError(t, store.SetLogPath(s, "python-tooz", "/logs/python-tooz.log"))
	require.NoError(t, store.UpdateStatus(s, "nova", state.StatusSkipped, state.FailureUnmetDep, "dependency chain: nova -> python-tooz"))
	return s
}

func sampleWaves() map[string]int {
	return map[string]int{"python-pbr": 0, "python-tooz": 1, "nova": 2}
}

func TestJSONReport(t *testing.T) {
	r := New(sampleState(t), sampleWaves())

	data, err := r.JSON()
	require.NoError(t, err)

	assert.Equal(t, "run-1", gjson.GetBytes(data, "run_id").String())
	assert.Equal(t, "plucky", gjson.GetBytes(data, "series").String())
	assert.Equal(t, int64(3), gjson.GetBytes(data, "packages.#").Int())

	// Sorted by name: nova first.
	assert.Equal(t, "nova", gjson.GetBytes(data, "packages.0.name").String())
	assert.Equal(t, "skipped", gjson.GetBytes(data, "packages.0.status").String())
	assert.Equal(t, "unmet_dependency", gjson.GetBytes(data, "packages.0.failure_type").String())
	assert.Equal(t, int64(1), gjson.GetBytes(data, "packages.2.wave").Int())
	assert.Equal(t, "/logs/python-tooz.log", gjson.GetBytes(data, "packages.2.log_path").String())
}

func TestMarkdownReport(t *testing.T) {
	r := New(sampleState(t), sampleWaves())

	md := r.Markdown()

	assert.Contains(t, md, "# Build report: run-1")
	assert.Contains(t, md, "| nova | 2 | skipped |")
	assert.Contains(t, md, "build_failed: boom")
}

func TestWriteReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := New(sampleState(t), sampleWaves())

	require.NoError(t, r.WriteReports(dir))

	for _, name := range []string{"report.json", "report.md"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSummaryListsFailuresAndBlocked(t *testing.T) {
	r := New(sampleState(t), sampleWaves())
	res := &orchestrator.Result{
		Status:  orchestrator.StatusPartialFailure,
		Built:   1,
		Failed:  1,
		Skipped: 1,
		Blocked: []orchestrator.BlockedPackage{
			{Name: "nova", Reason: "failed_dependency", Via: []string{"python-tooz"}},
		},
	}

	out := r.Summary(res)

	assert.Contains(t, out, "python-tooz")
	assert.Contains(t, out, "/logs/python-tooz.log")
	assert.Contains(t, out, "nova")
	assert.Contains(t, out, "failed_dependency")
}

func TestPrintStatusGroupsByWave(t *testing.T) {
	var buf bytes.Buffer
	r := New(sampleState(t), sampleWaves())

	r.PrintStatus(&buf)

	out := buf.String()
	assert.Contains(t, out, "WAVE 0")
	assert.Contains(t, out, "WAVE 2")
	assert.Contains(t, out, "python-pbr")
}

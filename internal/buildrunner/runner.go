// Package buildrunner invokes the external per-package build command and
// classifies its outcome.
package buildrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/drussell/packwright/internal/state"
	"github.com/drussell/packwright/internal/ui"
)

// Outcome is the classified result of one package build attempt.
type Outcome struct {
	Success     bool
	FailureType state.FailureType
	Message     string
	LogPath     string
}

// BuildFunc builds one source package. The orchestrator depends on this
// type; tests supply fakes.
type BuildFunc func(ctx context.Context, pkg string) Outcome

// ExecRunner runs the configured builder command once per package, capturing
// output to a per-package log file.
type ExecRunner struct {
	// Command and Args form the builder invocation; the package name is
	// appended as the final argument.
	Command string
	Args    []string
	LogDir  string
	Timeout time.Duration
	Env     []string

	// Stream, when non-nil, receives prefixed live build output in
	// addition to the log file.
	Stream io.Writer

	mu sync.Mutex
}

// Build runs the builder for one package. The builder's last line of stdout
// may be a JSON result record:
//
//	{"result": "failed", "failure_type": "fetch_failed", "message": "..."}
//
// When present it wins over the exit code; otherwise exit 0 means success
// and anything else is a build failure.
func (r *ExecRunner) Build(ctx context.Context, pkg string) Outcome {
	logPath := filepath.Join(r.LogDir, pkg+".log")
	if err := os.MkdirAll(r.LogDir, 0o755); err != nil {
		return Outcome{FailureType: state.FailureUnknown, Message: fmt.Sprintf("create log dir: %v", err)}
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return Outcome{FailureType: state.FailureUnknown, Message: fmt.Sprintf("create log file: %v", err)}
	}
	defer logFile.Close()

	runCtx := ctx
	var cancel context.CancelFunc
	if r.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.Args...), pkg)
	cmd := exec.CommandContext(runCtx, r.Command, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var out io.Writer = logFile
	if r.Stream != nil {
		lw := ui.NewLineWriter(pkg, r.Stream, &r.mu)
		defer lw.Flush()
		out = io.MultiWriter(logFile, lw)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()

	if ctx.Err() != nil || errors.Is(runCtx.Err(), context.Canceled) {
		return Outcome{FailureType: state.FailureCancelled, Message: "build cancelled", LogPath: logPath}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Outcome{
			FailureType: state.FailureBuild,
			Message:     fmt.Sprintf("build timed out after %s", r.Timeout),
			LogPath:     logPath,
		}
	}

	if o, ok := resultFromLog(logPath); ok {
		o.LogPath = logPath
		return o
	}

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return Outcome{
			FailureType: state.FailureBuild,
			Message:     fmt.Sprintf("builder exited with code %d", exitCode),
			LogPath:     logPath,
		}
	}
	return Outcome{Success: true, LogPath: logPath}
}

// resultFromLog scans the tail of the log for a JSON result record. Builders
// that cannot emit one simply rely on their exit code.
func resultFromLog(logPath string) (Outcome, bool) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return Outcome{}, false
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for i := len(lines) - 1; i >= 0 && i >= len(lines)-5; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !gjson.Valid(line) {
			continue
		}
		result := gjson.Get(line, "result")
		if !result.Exists() {
			continue
		}
		if result.String() == "success" {
			return Outcome{Success: true}, true
		}
		ft := state.FailureType(gjson.Get(line, "failure_type").String())
		if ft == state.FailureNone {
			ft = state.FailureBuild
		}
		return Outcome{
			FailureType: ft,
			Message:     gjson.Get(line, "message").String(),
		}, true
	}
	return Outcome{}, false
}

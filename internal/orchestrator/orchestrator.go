// Package orchestrator drives a build-all run: it schedules pending packages
// into dependency-ordered batches, dispatches each batch through a bounded
// worker pool, records every status transition, and explains whatever could
// not be built.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drussell/packwright/internal/buildrunner"
	"github.com/drussell/packwright/internal/depgraph"
	"github.com/drussell/packwright/internal/scheduler"
	"github.com/drussell/packwright/internal/state"
	"github.com/drussell/packwright/internal/ui"
)

// Store is the persistence surface the orchestrator writes through. Every
// error from it is fatal for the run: continuing past a failed save would
// leave the on-disk snapshot lying about what happened.
type Store interface {
	MarkStarted(s *state.BuildAllState, name string) error
	UpdateStatus(s *state.BuildAllState, name string, status state.Status, failureType state.FailureType, message string) error
	SetLogPath(s *state.BuildAllState, name, logPath string) error
	MarkCompleted(s *state.BuildAllState) error
}

// Orchestrator executes one build-all run over a fixed dependency graph.
type Orchestrator struct {
	Graph  *depgraph.Graph
	Store  Store
	Build  buildrunner.BuildFunc
	Config Config

	// Out receives progress lines; defaults to stderr.
	Out io.Writer
}

// New creates an Orchestrator with sane policy defaults.
func New(g *depgraph.Graph, store Store, build buildrunner.BuildFunc, cfg Config) *Orchestrator {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	return &Orchestrator{
		Graph:  g,
		Store:  store,
		Build:  build,
		Config: cfg,
		Out:    os.Stderr,
	}
}

// Run builds every pending package of the run batch by batch. Batches are
// recomputed after each barrier so resumes and failures reshape the plan.
// State persistence failures abort the run: continuing without durable state
// would make a crash unrecoverable.
func (o *Orchestrator) Run(ctx context.Context, s *state.BuildAllState) (*Result, error) {
	start := time.Now()
	res := &Result{}

	fmt.Fprintf(o.Out, "\n%s (%d packages, max %d parallel)\n",
		ui.BoldCyan("Build run started"), len(s.Pending()), o.Config.Parallel)

	for {
		if ctx.Err() != nil {
			res.Status = StatusCancelled
			break
		}
		batches := scheduler.ParallelBatches(o.Graph, s)
		if len(batches) == 0 {
			break
		}

		batch := batches[0]
		res.Batches++
		fmt.Fprintf(o.Out, "\n%s %d: %d package(s)\n", ui.Bold("Batch"), res.Batches, len(batch))

		if err := o.runBatch(ctx, s, batch); err != nil {
			return nil, err
		}

		if ctx.Err() != nil {
			res.Status = StatusCancelled
			break
		}
		if s.ShouldStop() {
			fmt.Fprintf(o.Out, "  %s failure limit reached, stopping\n", ui.Yellow("⚠"))
			break
		}
	}

	if err := o.skipUnreachable(s, res); err != nil {
		return nil, err
	}
	if err := o.Store.MarkCompleted(s); err != nil {
		return nil, err
	}

	res.Built = len(s.ByStatus(state.StatusSuccess))
	res.Failed = len(s.ByStatus(state.StatusFailed))
	res.Skipped = len(s.ByStatus(state.StatusSkipped))
	res.Pending = len(s.Pending())
	res.Duration = time.Since(start)

	if res.Status != StatusCancelled {
		res.Status = finalStatus(res)
	}
	return res, nil
}

// runBatch dispatches one batch through the worker pool and waits for the
// barrier. Every package in the batch reaches a terminal recorded state
// before the next batch is computed.
func (o *Orchestrator) runBatch(ctx context.Context, s *state.BuildAllState, batch []string) error {
	done := make(chan buildResult, len(batch))
	sem := make(chan struct{}, o.Config.Parallel)

	for _, pkg := range batch {
		if err := o.Store.MarkStarted(s, pkg); err != nil {
			return fmt.Errorf("record dispatch of %s: %w", pkg, err)
		}
		o.dispatch(ctx, s, pkg, sem, done)
	}

	var firstErr error
	for range batch {
		r := <-done
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if r.success {
			if err := o.Store.UpdateStatus(s, r.pkg, state.StatusSuccess, state.FailureNone, ""); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// dispatch launches one package build: acquire a worker slot, build, record
// the outcome, send the barrier token.
func (o *Orchestrator) dispatch(ctx context.Context, s *state.BuildAllState, pkg string, sem chan struct{}, done chan<- buildResult) {
	go func() {
		sem <- struct{}{}
		defer func() { <-sem }()

		fmt.Fprintf(o.Out, "  ▶ %s building\n", ui.PkgPrefix(pkg))
		started := time.Now()
		outcome := o.Build(ctx, pkg)
		elapsed := time.Since(started)

		if outcome.LogPath != "" {
			if err := o.Store.SetLogPath(s, pkg, outcome.LogPath); err != nil {
				done <- buildResult{pkg: pkg, err: fmt.Errorf("record log path for %s: %w", pkg, err)}
				return
			}
		}

		if outcome.Success {
			fmt.Fprintf(o.Out, "  ✅ %s %s %s\n", ui.PkgPrefix(pkg), ui.Green("built"),
				ui.Dim(fmt.Sprintf("(%.1fs)", elapsed.Seconds())))
			done <- buildResult{pkg: pkg, success: true}
			return
		}

		if outcome.FailureType == state.FailureCancelled {
			// Stays pending on disk; a resumed run rebuilds it.
			fmt.Fprintf(o.Out, "  ⊘ %s %s\n", ui.PkgPrefix(pkg), ui.Yellow("cancelled"))
			done <- buildResult{pkg: pkg}
			return
		}

		fmt.Fprintf(o.Out, "  ❌ %s %s %s\n", ui.PkgPrefix(pkg),
			ui.Red(fmt.Sprintf("failed (%s)", outcome.FailureType)),
			ui.Dim(fmt.Sprintf("(%.1fs)", elapsed.Seconds())))
		if err := o.Store.UpdateStatus(s, pkg, state.StatusFailed, outcome.FailureType, outcome.Message); err != nil {
			done <- buildResult{pkg: pkg, err: fmt.Errorf("record outcome for %s: %w", pkg, err)}
			return
		}
		done <- buildResult{pkg: pkg}
	}()
}

// skipUnreachable diagnoses and records every package left pending after the
// scheduler ran dry. Cycle members stay pending (resolving the cycle makes
// them buildable); packages downstream of a failure are skipped with the
// chain recorded.
func (o *Orchestrator) skipUnreachable(s *state.BuildAllState, res *Result) error {
	for _, pkg := range s.Pending() {
		b, ok := o.diagnose(s, pkg)
		if !ok {
			// Still ready, run stopped early (policy or cancellation).
			continue
		}
		res.Blocked = append(res.Blocked, b)
		if b.Reason == "failed_dependency" {
			msg := fmt.Sprintf("dependency chain: %s", joinChain(pkg, b.Via))
			if err := o.Store.UpdateStatus(s, pkg, state.StatusSkipped, state.FailureUnmetDep, msg); err != nil {
				return err
			}
			fmt.Fprintf(o.Out, "  ⊘ %s %s\n", ui.PkgPrefix(pkg), ui.Yellow("skipped (dependency failed)"))
		} else {
			fmt.Fprintf(o.Out, "  ⊘ %s %s\n", ui.PkgPrefix(pkg), ui.Dim("blocked by dependency cycle"))
		}
	}
	return nil
}

func finalStatus(res *Result) RunStatus {
	switch {
	case res.Failed > 0 || res.Skipped > 0:
		return StatusPartialFailure
	case len(res.Blocked) > 0 || res.Pending > 0:
		return StatusBlocked
	default:
		return StatusCompleted
	}
}

func joinChain(pkg string, via []string) string {
	chain := pkg
	for _, step := range via {
		chain += " -> " + step
	}
	return chain
}

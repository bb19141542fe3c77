package orchestrator

import "time"

// RunStatus is the terminal disposition of a build-all run.
type RunStatus string

const (
	// StatusCompleted means every requested package built.
	StatusCompleted RunStatus = "completed"
	// StatusPartialFailure means at least one package failed or was
	// skipped because a dependency failed.
	StatusPartialFailure RunStatus = "partially_failed"
	// StatusBlocked means packages were left unbuildable by dependency
	// cycles even though nothing failed.
	StatusBlocked RunStatus = "blocked"
	// StatusCancelled means the run was interrupted; pending packages
	// remain resumable.
	StatusCancelled RunStatus = "cancelled"
)

// Config holds run policy.
type Config struct {
	Parallel    int
	KeepGoing   bool
	MaxFailures int
}

// BlockedPackage explains why a package could never be scheduled.
type BlockedPackage struct {
	Name string
	// Reason is "cycle" or "failed_dependency".
	Reason string
	// Via names the cycle peers, or the dependency chain down to the
	// failed package.
	Via []string
}

// Result summarizes a finished run.
type Result struct {
	Status   RunStatus
	Batches  int
	Built    int
	Failed   int
	Skipped  int
	Pending  int
	Blocked  []BlockedPackage
	Duration time.Duration
}

// buildResult travels from a build goroutine back to the batch barrier.
// A non-nil err is a state persistence failure and aborts the run.
type buildResult struct {
	pkg     string
	success bool
	err     error
}

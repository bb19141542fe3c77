package state

import (
	"fmt"
	"sort"
	"time"
)

// Status is the disposition of a package within one build-all run.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether a status is final for the run. A package never
// returns to pending after reaching a terminal status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// FailureType classifies why a package failed or was skipped.
type FailureType string

const (
	FailureNone          FailureType = ""
	FailureBuild         FailureType = "build_failed"
	FailureFetch         FailureType = "fetch_failed"
	FailureMissingDep    FailureType = "missing_dep"
	FailureUnmetDep      FailureType = "unmet_dependency"
	FailurePolicyBlocked FailureType = "policy_blocked"
	FailureCancelled     FailureType = "cancelled"
	FailureUnknown       FailureType = "unknown"
)

// PackageState is the per-package record of a build-all run.
type PackageState struct {
	Name           string      `json:"name"`
	Status         Status      `json:"status"`
	FailureType    FailureType `json:"failure_type,omitempty"`
	FailureMessage string      `json:"failure_message,omitempty"`
	LogPath        string      `json:"log_path,omitempty"`
	Attempt        int         `json:"attempt"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DurationSecs   float64     `json:"duration_seconds,omitempty"`
}

// BuildAllState is the aggregate state of one named run.
type BuildAllState struct {
	RunID       string                   `json:"run_id"`
	Target      string                   `json:"target"`
	Series      string                   `json:"series"`
	BuildType   string                   `json:"build_type"`
	StartedAt   time.Time                `json:"started_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Packages    map[string]*PackageState `json:"packages"`
	Requested   []string                 `json:"requested"`
	KeepGoing   bool                     `json:"keep_going"`
	MaxFailures int                      `json:"max_failures"`
	Parallel    int                      `json:"parallel"`
}

// ByStatus returns the package names with the given status, sorted.
func (s *BuildAllState) ByStatus(status Status) []string {
	var names []string
	for name, ps := range s.Packages {
		if ps.Status == status {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Pending returns the packages with no terminal outcome yet.
func (s *BuildAllState) Pending() []string { return s.ByStatus(StatusPending) }

// FailureCount returns the number of failed packages.
func (s *BuildAllState) FailureCount() int {
	n := 0
	for _, ps := range s.Packages {
		if ps.Status == StatusFailed {
			n++
		}
	}
	return n
}

// IsComplete reports whether every package has a terminal status.
func (s *BuildAllState) IsComplete() bool {
	for _, ps := range s.Packages {
		if !ps.Status.Terminal() {
			return false
		}
	}
	return true
}

// ShouldStop reports whether the failure policy says to stop dispatching.
func (s *BuildAllState) ShouldStop() bool {
	if !s.KeepGoing {
		return s.FailureCount() > 0
	}
	if s.MaxFailures > 0 {
		return s.FailureCount() >= s.MaxFailures
	}
	return false
}

// ResetFailed returns failed and skipped packages to pending so a resumed
// run retries them. Returns the names reset.
func (s *BuildAllState) ResetFailed() []string {
	var reset []string
	for name, ps := range s.Packages {
		if ps.Status == StatusFailed || ps.Status == StatusSkipped {
			ps.Status = StatusPending
			ps.FailureType = FailureNone
			ps.FailureMessage = ""
			reset = append(reset, name)
		}
	}
	return reset
}

// validTransition enforces the one-way status lifecycle:
// pending -> {success, failed, skipped}, plus no-op re-records.
func validTransition(from, to Status) error {
	if from == StatusPending {
		return nil
	}
	if from == to {
		return nil
	}
	return fmt.Errorf("illegal status transition %s -> %s", from, to)
}

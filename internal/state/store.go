package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFile = "build-all.json"

// ErrNotFound is returned by Load when no state exists for a run.
var ErrNotFound = errors.New("no saved state for run")

// Store persists BuildAllState under <root>/<run-id>/build-all.json.
// Saves are atomic (write to a temp file, then rename) so an interrupted
// save never corrupts the previous snapshot. All mutating operations
// persist before returning; the orchestrator treats a failed save as fatal
// for the run.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// RunMeta carries run-level fields for CreateInitial.
type RunMeta struct {
	Target      string
	Series      string
	BuildType   string
	KeepGoing   bool
	MaxFailures int
	Parallel    int
}

// CreateInitial builds a fresh state with every requested package pending
// and persists it.
func (st *Store) CreateInitial(runID string, packages []string, meta RunMeta) (*BuildAllState, error) {
	now := time.Now().UTC()
	s := &BuildAllState{
		RunID:       runID,
		Target:      meta.Target,
		Series:      meta.Series,
		BuildType:   meta.BuildType,
		StartedAt:   now,
		UpdatedAt:   now,
		Packages:    make(map[string]*PackageState, len(packages)),
		Requested:   append([]string(nil), packages...),
		KeepGoing:   meta.KeepGoing,
		MaxFailures: meta.MaxFailures,
		Parallel:    meta.Parallel,
	}
	for _, pkg := range packages {
		s.Packages[pkg] = &PackageState{Name: pkg, Status: StatusPending, UpdatedAt: now}
	}
	if err := st.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Load restores the last saved state for a run. Returns ErrNotFound if the
// run has never been saved.
func (st *Store) Load(runID string) (*BuildAllState, error) {
	data, err := os.ReadFile(st.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BuildAllState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	// Resuming a run that gained packages since the last save: new names
	// start pending.
	now := time.Now().UTC()
	for _, pkg := range s.Requested {
		if _, ok := s.Packages[pkg]; !ok {
			s.Packages[pkg] = &PackageState{Name: pkg, Status: StatusPending, UpdatedAt: now}
		}
	}
	return &s, nil
}

// Save persists the state. Must succeed before the next batch is dispatched.
func (st *Store) Save(s *BuildAllState) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.saveLocked(s)
}

func (st *Store) saveLocked(s *BuildAllState) error {
	s.UpdatedAt = time.Now().UTC()

	dir := filepath.Dir(st.path(s.RunID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := st.path(s.RunID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, st.path(s.RunID)); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// MarkStarted bumps the attempt counter and start time for a dispatched
// package and persists. The package stays pending on disk, so a crash
// mid-batch resumes it cleanly.
func (st *Store) MarkStarted(s *BuildAllState, name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	ps, ok := s.Packages[name]
	if !ok {
		return fmt.Errorf("unknown package %q", name)
	}
	now := time.Now().UTC()
	ps.Attempt++
	ps.StartedAt = &now
	ps.UpdatedAt = now
	return st.saveLocked(s)
}

// UpdateStatus applies a status transition, validates its legality, and
// persists immediately. Safe for concurrent callers.
func (st *Store) UpdateStatus(s *BuildAllState, name string, status Status, failureType FailureType, message string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	ps, ok := s.Packages[name]
	if !ok {
		return fmt.Errorf("unknown package %q", name)
	}
	if err := validTransition(ps.Status, status); err != nil {
		return fmt.Errorf("package %s: %w", name, err)
	}

	now := time.Now().UTC()
	ps.Status = status
	ps.FailureType = failureType
	ps.FailureMessage = message
	ps.UpdatedAt = now
	if ps.StartedAt != nil && status.Terminal() {
		ps.DurationSecs = now.Sub(*ps.StartedAt).Seconds()
	}
	return st.saveLocked(s)
}

// SetLogPath records where a package's build log landed and persists.
func (st *Store) SetLogPath(s *BuildAllState, name, logPath string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	ps, ok := s.Packages[name]
	if !ok {
		return fmt.Errorf("unknown package %q", name)
	}
	ps.LogPath = logPath
	return st.saveLocked(s)
}

// MarkCompleted stamps the run's completion time and persists.
func (st *Store) MarkCompleted(s *BuildAllState) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	s.CompletedAt = &now
	return st.saveLocked(s)
}

func (st *Store) path(runID string) string {
	return filepath.Join(st.root, runID, stateFile)
}

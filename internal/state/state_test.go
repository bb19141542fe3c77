package state

import (
	"errors"
	"testing"
)

func newTestState(t *testing.T, packages ...string) (*Store, *BuildAllState) {
	t.Helper()
	st := NewStore(t.TempDir())
	s, err := st.CreateInitial("run-001", packages, RunMeta{
		Target:    "epoxy",
		Series:    "plucky",
		BuildType: "release",
		KeepGoing: true,
		Parallel:  4,
	})
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	return st, s
}

func TestCreateInitialAllPending(t *testing.T) {
	_, s := newTestState(t, "nova", "glance", "python-oslo.config")

	if len(s.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(s.Packages))
	}
	for name, ps := range s.Packages {
		if ps.Status != StatusPending {
			t.Errorf("%s should start pending, got %s", name, ps.Status)
		}
		if ps.Attempt != 0 {
			t.Errorf("%s should start with 0 attempts", name)
		}
	}
}

func TestLoadNotFound(t *testing.T) {
	st := NewStore(t.TempDir())
	if _, err := st.Load("no-such-run"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	st, s := newTestState(t, "nova", "glance")

	if err := st.UpdateStatus(s, "nova", StatusSuccess, FailureNone, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := st.UpdateStatus(s, "glance", StatusFailed, FailureBuild, "dh_auto_test failed"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	loaded, err := st.Load("run-001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Packages["nova"].Status != StatusSuccess {
		t.Errorf("nova should be success, got %s", loaded.Packages["nova"].Status)
	}
	if got := loaded.Packages["glance"]; got.Status != StatusFailed || got.FailureType != FailureBuild {
		t.Errorf("glance should be failed/build_failed, got %s/%s", got.Status, got.FailureType)
	}
	if loaded.Target != "epoxy" || loaded.Series != "plucky" {
		t.Errorf("run metadata lost: %+v", loaded)
	}
}

func TestTransitionLegality(t *testing.T) {
	st, s := newTestState(t, "nova")

	if err := st.UpdateStatus(s, "nova", StatusSuccess, FailureNone, ""); err != nil {
		t.Fatalf("pending->success should be legal: %v", err)
	}
	// Re-recording the same terminal outcome is a no-op, not an error.
	if err := st.UpdateStatus(s, "nova", StatusSuccess, FailureNone, ""); err != nil {
		t.Errorf("idempotent success->success should be legal: %v", err)
	}
	// Leaving a terminal state is illegal.
	if err := st.UpdateStatus(s, "nova", StatusFailed, FailureBuild, ""); err == nil {
		t.Error("success->failed should be rejected")
	}
	if err := st.UpdateStatus(s, "nova", StatusPending, FailureNone, ""); err == nil {
		t.Error("success->pending should be rejected")
	}
}

func TestUpdateUnknownPackage(t *testing.T) {
	st, s := newTestState(t, "nova")
	if err := st.UpdateStatus(s, "ghost", StatusSuccess, FailureNone, ""); err == nil {
		t.Error("unknown package should be rejected")
	}
}

func TestMarkStartedCountsAttempts(t *testing.T) {
	st, s := newTestState(t, "nova")

	if err := st.MarkStarted(s, "nova"); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	if err := st.MarkStarted(s, "nova"); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}

	loaded, err := st.Load("run-001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Packages["nova"].Attempt != 2 {
		t.Errorf("expected 2 attempts, got %d", loaded.Packages["nova"].Attempt)
	}
	// Dispatch alone must not leave a terminal status on disk.
	if loaded.Packages["nova"].Status != StatusPending {
		t.Errorf("in-flight package should persist as pending, got %s", loaded.Packages["nova"].Status)
	}
}

func TestResetFailed(t *testing.T) {
	st, s := newTestState(t, "nova", "glance", "cinder")
	_ = st.UpdateStatus(s, "nova", StatusSuccess, FailureNone, "")
	_ = st.UpdateStatus(s, "glance", StatusFailed, FailureBuild, "boom")
	_ = st.UpdateStatus(s, "cinder", StatusSkipped, FailureUnmetDep, "")

	reset := s.ResetFailed()
	if len(reset) != 2 {
		t.Fatalf("expected 2 packages reset, got %v", reset)
	}
	if s.Packages["nova"].Status != StatusSuccess {
		t.Error("success must survive ResetFailed")
	}
	if s.Packages["glance"].Status != StatusPending || s.Packages["cinder"].Status != StatusPending {
		t.Error("failed and skipped packages should be pending again")
	}
}

func TestShouldStopPolicy(t *testing.T) {
	_, s := newTestState(t, "a", "b", "c")

	s.KeepGoing = false
	if s.ShouldStop() {
		t.Error("no failures yet, should not stop")
	}
	s.Packages["a"].Status = StatusFailed
	if !s.ShouldStop() {
		t.Error("fail-fast with one failure should stop")
	}

	s.KeepGoing = true
	s.MaxFailures = 2
	if s.ShouldStop() {
		t.Error("below max failures, should continue")
	}
	s.Packages["b"].Status = StatusFailed
	if !s.ShouldStop() {
		t.Error("at max failures, should stop")
	}
}

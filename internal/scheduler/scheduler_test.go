package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drussell/packwright/internal/depgraph"
	"github.com/drussell/packwright/internal/state"
)

func diamondGraph() *depgraph.Graph {
	g := depgraph.New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")
	return g
}

func pendingState(t *testing.T, packages ...string) (*state.Store, *state.BuildAllState) {
	t.Helper()
	st := state.NewStore(t.TempDir())
	s, err := st.CreateInitial("run", packages, state.RunMeta{KeepGoing: true})
	require.NoError(t, err)
	return st, s
}

func TestDiamondBatches(t *testing.T) {
	g := diamondGraph()
	_, s := pendingState(t, "A", "B", "C", "D")

	batches := ParallelBatches(g, s)

	require.Equal(t, [][]string{{"D"}, {"B", "C"}, {"A"}}, batches)
}

func TestBatchesSkipSucceeded(t *testing.T) {
	g := diamondGraph()
	st, s := pendingState(t, "A", "B", "C", "D")

	// Mark D built, then reload from disk as a resumed run would.
	require.NoError(t, st.UpdateStatus(s, "D", state.StatusSuccess, state.FailureNone, ""))
	resumed, err := st.Load("run")
	require.NoError(t, err)

	batches := ParallelBatches(g, resumed)
	require.Equal(t, [][]string{{"B", "C"}, {"A"}}, batches)
}

func TestBlockedByFailedDependency(t *testing.T) {
	g := diamondGraph()
	st, s := pendingState(t, "A", "B", "C", "D")
	require.NoError(t, st.UpdateStatus(s, "D", state.StatusFailed, state.FailureBuild, "boom"))

	batches := ParallelBatches(g, s)

	// B, C and A can never become ready; they are reported, not scheduled.
	assert.Empty(t, batches)
}

func TestCycleLeavesMembersUnscheduled(t *testing.T) {
	g := depgraph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("solo", "a")
	g.AddNode("free")
	_, s := pendingState(t, "a", "b", "solo", "free")

	batches := ParallelBatches(g, s)

	require.Equal(t, [][]string{{"free"}}, batches)
}

func TestUnrequestedDependencyDoesNotGate(t *testing.T) {
	g := depgraph.New()
	g.AddEdge("nova", "python-pbr") // python-pbr is a node but not requested
	_, s := pendingState(t, "nova")

	batches := ParallelBatches(g, s)
	require.Equal(t, [][]string{{"nova"}}, batches)
}

func TestIdempotent(t *testing.T) {
	g := diamondGraph()
	_, s := pendingState(t, "A", "B", "C", "D")

	first := ParallelBatches(g, s)
	second := ParallelBatches(g, s)
	assert.Equal(t, first, second)
}

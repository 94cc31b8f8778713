package sqlflow

import (
	"errors"
	"testing"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails every Save call. Loads fall through to the wrapped store.
type failingStore struct {
	checkpoint.Store
	saveErr error
}

func (f *failingStore) Save(sessionID string, data []byte) error {
	return f.saveErr
}

// TestRun_CheckpointAfterEachNode tests checkpoint is written after every node.
func TestRun_CheckpointAfterEachNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddNode("c", increment).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Counter{},
		WithCheckpointing(store, "sess-1"))

	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)

	// Latest-wins: one live checkpoint per session
	assert.Equal(t, 1, store.Len())

	data, err := store.Load("sess-1")
	require.NoError(t, err)

	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cp.SessionID)
	assert.Equal(t, "c", cp.NodeID)
	assert.Equal(t, END, cp.NextNode)
	assert.Equal(t, 3, cp.Sequence)
	assert.Equal(t, "b", cp.PrevNodeID)
	assert.JSONEq(t, `{"Value": 3}`, string(cp.State))
}

// TestRun_Checkpointing_RequiresRunID tests missing run ID is rejected.
func TestRun_Checkpointing_RequiresRunID(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), Counter{}, WithCheckpointing(store, ""))

	assert.ErrorIs(t, err, ErrRunIDRequired)
}

// TestRun_CheckpointFailure_NonFatalByDefault tests save failures are logged, not fatal.
func TestRun_CheckpointFailure_NonFatalByDefault(t *testing.T) {
	store := &failingStore{
		Store:   checkpoint.NewMemoryStore(),
		saveErr: errors.New("disk full"),
	}

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Counter{},
		WithCheckpointing(store, "sess-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Value)
}

// TestRun_CheckpointFailure_Fatal tests save failures abort when configured.
func TestRun_CheckpointFailure_Fatal(t *testing.T) {
	store := &failingStore{
		Store:   checkpoint.NewMemoryStore(),
		saveErr: errors.New("disk full"),
	}

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), Counter{},
		WithCheckpointing(store, "sess-1"),
		WithCheckpointFailureFatal(true))

	require.Error(t, err)

	var cpErr *CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "a", cpErr.NodeID)
	assert.Equal(t, "save", cpErr.Op)
}

// crashGraph builds a three-node pipeline where node b fails while
// *crash is true. Checkpoints land after a, so resume picks up at b.
func crashGraph(t *testing.T, crash *bool, executed *[]string) *CompiledGraph[State] {
	t.Helper()

	nodeB := func(ctx Context, s State) (State, error) {
		if *crash {
			return s, errors.New("simulated crash")
		}
		*executed = append(*executed, "b")
		s.Progress = append(s.Progress, "b")
		return s, nil
	}

	graph := NewGraph[State]().
		AddNode("a", makeTrackingNode("a", executed)).
		AddNode("b", nodeB).
		AddNode("c", makeTrackingNode("c", executed)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)
	return compiled
}

// TestResume_ContinuesFromCheckpoint tests resume picks up where the crash left off.
func TestResume_ContinuesFromCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := true
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.Error(t, err) // crashed at b

	// Only a ran and checkpointed
	assert.Equal(t, []string{"a"}, executed)

	// Recover: resume re-runs from b onward
	crash = false
	executed = nil

	result, err := compiled.Resume(testCtx(), store, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, executed)
	assert.Equal(t, []string{"a", "b", "c"}, result.Progress)
}

// TestResume_NoCheckpoint tests resume with no stored checkpoint.
func TestResume_NoCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := false
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Resume(testCtx(), store, "missing")

	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

// TestResume_ReplayNode tests re-executing the checkpointed node.
func TestResume_ReplayNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := true
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.Error(t, err)

	crash = false
	executed = nil

	result, err := compiled.Resume(testCtx(), store, "sess-1", WithReplayNode())
	require.NoError(t, err)
	// Replay re-runs a (the checkpointed node), then b and c
	assert.Equal(t, []string{"a", "b", "c"}, executed)
	assert.Equal(t, []string{"a", "a", "b", "c"}, result.Progress)
}

// TestResume_CompletedRun tests resuming a run whose checkpoint points at END.
func TestResume_CompletedRun(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := false
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.NoError(t, err)

	executed = nil

	result, err := compiled.Resume(testCtx(), store, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, executed) // nothing left to execute
	assert.Equal(t, []string{"a", "b", "c"}, result.Progress)
}

// TestResume_StateOverride tests transforming the restored state.
func TestResume_StateOverride(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := true
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.Error(t, err)

	crash = false

	result, err := compiled.Resume(testCtx(), store, "sess-1",
		WithStateOverride(func(s any) any {
			state := s.(State)
			state.Initial = "patched"
			return state
		}))
	require.NoError(t, err)
	assert.Equal(t, "patched", result.Initial)
}

// TestResume_StateValidation tests rejecting a bad restored state.
func TestResume_StateValidation(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := true
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.Error(t, err)

	_, err = compiled.Resume(testCtx(), store, "sess-1",
		WithStateValidation(func(s any) error {
			return errors.New("state rejected")
		}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "state rejected")
}

// TestResume_ResumedPortionKeepsCheckpointing tests new checkpoints are
// written while resuming.
func TestResume_ResumedPortionKeepsCheckpointing(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	crash := true
	var executed []string
	compiled := crashGraph(t, &crash, &executed)

	_, err := compiled.Run(testCtx(), State{},
		WithCheckpointing(store, "sess-1"))
	require.Error(t, err)

	crash = false
	_, err = compiled.Resume(testCtx(), store, "sess-1")
	require.NoError(t, err)

	data, err := store.Load("sess-1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "c", cp.NodeID)
	assert.Equal(t, END, cp.NextNode)
	assert.Equal(t, 3, cp.Sequence) // 1 from the crashed run, 2 more while resuming
}

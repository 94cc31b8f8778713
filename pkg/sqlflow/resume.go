package sqlflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/checkpoint"
)

// Resume continues execution from the stored checkpoint for a run.
// It loads the run's latest-wins checkpoint and starts execution from
// the node recorded as next.
//
// Checkpointing stays enabled for the resumed portion, so a crash during
// resume leaves a newer checkpoint behind.
//
// Example:
//
//	// Previous turn crashed after execute_query
//	// Resume continues from generate_analysis with the checkpointed state
//	result, err := compiled.Resume(ctx, store, "sess-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	// Apply resume options
	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Load the run's checkpoint
	data, err := store.Load(runID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoint, runID)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	// Unmarshal checkpoint
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	// Check version compatibility
	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	// Deserialize state
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	// Apply state override if configured
	if cfg.stateOverride != nil {
		modified := cfg.stateOverride(state)
		if typed, ok := modified.(S); ok {
			state = typed
		}
	}

	// Validate state if configured
	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	// Determine start node
	startNode := cp.NextNode
	if cfg.replayNode {
		// Re-execute the checkpointed node
		startNode = cp.NodeID
	}

	// The run already finished; nothing left to execute
	if startNode == END {
		return state, nil
	}

	if !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	// Continue execution from determined node
	runCfg := defaultRunConfig()
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = cp.Sequence

	return cg.runFrom(ctx, state, startNode, &runCfg)
}

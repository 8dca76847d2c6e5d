package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
)

// CheckpointState is the state type for checkpoint integration tests.
type CheckpointState struct {
	Value    int      `json:"value"`
	Messages []string `json:"messages"`
}

func TestCheckpointing_BasicExecution(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	increment := func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
		s.Value++
		s.Messages = append(s.Messages, "incremented")
		return s, nil
	}

	g := graph.New[CheckpointState]().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", graph.END).
		SetEntry("inc1")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	result, err := compiled.Run(ctx, CheckpointState{Value: 0},
		graph.WithCheckpointing(store),
		graph.WithRunID("test-run-1"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
	assert.Equal(t, []string{"incremented", "incremented"}, result.Messages)

	// Verify checkpoints were created
	infos, err := store.List(context.Background(), "test-run-1")
	require.NoError(t, err)
	assert.Len(t, infos, 2) // One checkpoint per node
}

func TestCheckpointing_RequiresRunID(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	g := graph.New[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", graph.END).
		SetEntry("noop")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store)) // No WithRunID!

	assert.ErrorIs(t, err, graph.ErrRunIDRequired)
}

func TestCheckpointing_Resume(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) graph.NodeFunc[CheckpointState] {
		return func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	g := graph.New[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", graph.END).
		SetEntry("a")

	compiled, err := g.Compile()
	require.NoError(t, err)

	// First run completes successfully
	ctx := graph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("resume-test"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, executedNodes)

	// Clear and resume from checkpoint
	executedNodes = nil

	// Resume should start from after the last checkpoint (c -> END)
	result, err := compiled.Resume(ctx, store, "resume-test")
	require.NoError(t, err)

	// Since last checkpoint was at "c" with next node as END, nothing should execute
	assert.Empty(t, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_ResumeAfterCrash(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	crashOnB := true

	makeNode := func(name string) graph.NodeFunc[CheckpointState] {
		return func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			if name == "b" && crashOnB {
				return s, errors.New("crash")
			}
			return s, nil
		}
	}

	g := graph.New[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", graph.END).
		SetEntry("a")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())

	// First run crashes on node b
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("crash-test"))

	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, executedNodes)

	// Checkpoint at "a" should exist (b failed, so no checkpoint for b)
	infos, _ := store.List(context.Background(), "crash-test")
	require.Len(t, infos, 1)
	assert.Equal(t, "a", infos[0].NodeID)

	// Fix the crash and resume
	crashOnB = false
	executedNodes = nil

	result, err := compiled.Resume(ctx, store, "crash-test")
	require.NoError(t, err)

	// Should resume from node b (after checkpoint at a)
	assert.Equal(t, []string{"b", "c"}, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_ResumeFrom(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) graph.NodeFunc[CheckpointState] {
		return func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	g := graph.New[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddNode("c", makeNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", graph.END).
		SetEntry("a")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())

	// Run to completion
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("resume-from-test"))
	require.NoError(t, err)

	// Resume from a specific checkpoint (node "a")
	executedNodes = nil
	result, err := compiled.ResumeFrom(ctx, store, "resume-from-test", "a")
	require.NoError(t, err)

	// Should start from node after "a" checkpoint (which is "b")
	assert.Equal(t, []string{"b", "c"}, executedNodes)
	assert.Equal(t, 3, result.Value)
}

func TestCheckpointing_WithStateOverride(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	g := graph.New[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", graph.END).
		SetEntry("noop")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())

	_, err = compiled.Run(ctx, CheckpointState{Value: 10},
		graph.WithCheckpointing(store),
		graph.WithRunID("override-test"))
	require.NoError(t, err)

	// Resume with state override
	result, err := compiled.Resume(ctx, store, "override-test",
		graph.WithStateOverride(func(s any) any {
			state := s.(CheckpointState)
			state.Value = 999
			return state
		}))
	require.NoError(t, err)
	assert.Equal(t, 999, result.Value)
}

func TestCheckpointing_WithStateValidation(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	noop := func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
		return s, nil
	}

	g := graph.New[CheckpointState]().
		AddNode("noop", noop).
		AddEdge("noop", graph.END).
		SetEntry("noop")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())

	_, err = compiled.Run(ctx, CheckpointState{Value: 10},
		graph.WithCheckpointing(store),
		graph.WithRunID("validate-test"))
	require.NoError(t, err)

	// Resume with validation that fails
	_, err = compiled.Resume(ctx, store, "validate-test",
		graph.WithStateValidation(func(s any) error {
			state := s.(CheckpointState)
			if state.Value < 100 {
				return errors.New("value too small")
			}
			return nil
		}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "value too small")
}

func TestCheckpointing_WithReplayNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	var executedNodes []string
	makeNode := func(name string) graph.NodeFunc[CheckpointState] {
		return func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			executedNodes = append(executedNodes, name)
			s.Value++
			return s, nil
		}
	}

	g := graph.New[CheckpointState]().
		AddNode("a", makeNode("a")).
		AddNode("b", makeNode("b")).
		AddEdge("a", "b").
		AddEdge("b", graph.END).
		SetEntry("a")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())

	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("replay-test"))
	require.NoError(t, err)

	// Resume with replay (should re-execute the checkpointed node)
	executedNodes = nil
	result, err := compiled.Resume(ctx, store, "replay-test",
		graph.WithReplayNode())
	require.NoError(t, err)

	// Should replay "b" (latest checkpoint) even though next node is END
	assert.Equal(t, []string{"b"}, executedNodes)
	assert.Equal(t, 3, result.Value) // Original 2 + replay 1
}

func TestCheckpointing_NoCheckpoints(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	ctx := graph.NewContext(context.Background())
	g := graph.New[CheckpointState]().
		AddNode("noop", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			return s, nil
		}).
		AddEdge("noop", graph.END).
		SetEntry("noop")

	compiled, _ := g.Compile()

	_, err := compiled.Resume(ctx, store, "nonexistent-run")
	assert.ErrorIs(t, err, graph.ErrNoCheckpoints)
}

func TestCheckpointing_CheckpointData(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	g := graph.New[CheckpointState]().
		AddNode("process", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			s.Value = 42
			s.Messages = []string{"processed"}
			return s, nil
		}).
		AddEdge("process", graph.END).
		SetEntry("process")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("data-test"))
	require.NoError(t, err)

	// Load and verify checkpoint data
	data, err := store.Load(context.Background(), "data-test", "process")
	require.NoError(t, err)

	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "data-test", cp.SessionID)
	assert.Equal(t, "process", cp.NodeID)
	assert.Equal(t, graph.END, cp.NextNode)
	assert.Equal(t, 1, cp.Sequence)
	require.NoError(t, cp.Verify())

	// Verify state in checkpoint
	var state CheckpointState
	err = json.Unmarshal(cp.State, &state)
	require.NoError(t, err)
	assert.Equal(t, 42, state.Value)
	assert.Equal(t, []string{"processed"}, state.Messages)
}

func TestCheckpointing_CorruptedCheckpoint_FailsResume(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	g := graph.New[CheckpointState]().
		AddNode("process", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			s.Value = 7
			return s, nil
		}).
		AddEdge("process", graph.END).
		SetEntry("process")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("corrupt-test"))
	require.NoError(t, err)

	// Tamper with the stored state so the checksum no longer matches.
	data, err := store.Load(context.Background(), "corrupt-test", "process")
	require.NoError(t, err)

	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	cp.State = json.RawMessage(`{"value":9999,"messages":null}`)

	tampered, err := cp.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "corrupt-test", "process", tampered))

	_, err = compiled.Resume(ctx, store, "corrupt-test")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrChecksum)
}

// failingStore rejects all saves. Loads delegate to nothing.
type failingStore struct {
	checkpoint.Store
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, sessionID, nodeID string, data []byte) error {
	return s.saveErr
}

func TestCheckpointing_SaveFailure_NonFatalByDefault(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk full")}

	g := graph.New[CheckpointState]().
		AddNode("process", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			s.Value++
			return s, nil
		}).
		AddEdge("process", graph.END).
		SetEntry("process")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	result, err := compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("lossy-test"))

	// Run should complete despite the failed save.
	require.NoError(t, err)
	assert.Equal(t, 1, result.Value)
}

func TestCheckpointing_SaveFailure_FatalWhenStrict(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk full")}

	g := graph.New[CheckpointState]().
		AddNode("process", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			s.Value++
			return s, nil
		}).
		AddEdge("process", graph.END).
		SetEntry("process")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	_, err = compiled.Run(ctx, CheckpointState{},
		graph.WithCheckpointing(store),
		graph.WithRunID("strict-test"),
		graph.WithStrictCheckpoints())

	require.Error(t, err)

	var cpErr *graph.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "process", cpErr.NodeID)
	assert.Equal(t, "save", cpErr.Op)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCheckpointing_ResumeFrom_UnknownNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	g := graph.New[CheckpointState]().
		AddNode("noop", func(ctx graph.Context, s CheckpointState) (CheckpointState, error) {
			return s, nil
		}).
		AddEdge("noop", graph.END).
		SetEntry("noop")

	compiled, err := g.Compile()
	require.NoError(t, err)

	ctx := graph.NewContext(context.Background())
	_, err = compiled.ResumeFrom(ctx, store, "missing-run", "noop")
	assert.ErrorIs(t, err, graph.ErrNoCheckpoints)
}

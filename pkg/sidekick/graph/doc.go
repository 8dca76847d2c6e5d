/*
Package graph provides a compiled, checkpointable state machine engine.

# Overview

A graph is a set of named nodes connected by edges. Nodes transform a
typed state value; edges decide which node runs next. Build a graph
with the fluent builder, compile it to validate the structure, then run
it with an initial state:

	type Counter struct {
	    Value int
	}

	func increment(ctx graph.Context, s Counter) (Counter, error) {
	    s.Value++
	    return s, nil
	}

	g := graph.New[Counter]().
	    AddNode("inc", increment).
	    AddEdge("inc", graph.END).
	    SetEntry("inc")

	compiled, err := g.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := graph.NewContext(context.Background())
	result, err := compiled.Run(ctx, Counter{})

The engine is generic over the state type and knows nothing about what
the nodes do. Domain capabilities (LLM clients, tool registries) are
closed over by the node functions when the graph is assembled, never
carried by the engine context.

# Conditional Edges

Use conditional edges for decision points. The router function returns
the ID of the next node:

	g.AddConditionalEdge("evaluator", func(ctx graph.Context, s State) string {
	    if s.Done {
	        return graph.END
	    }
	    return "worker"
	})

A conditional edge takes precedence over simple edges from the same
node. Routers may also be built declaratively from boolean expressions
over the state's JSON fields:

	router := graph.ExprRouter[State]([]graph.Route{
	    {When: "successCriteriaMet or userInputNeeded", To: graph.END},
	}, "worker")

# Loops

Conditional edges that return to earlier nodes form loops. Loops are
bounded by a maximum iteration count (default 1000, configurable with
WithMaxIterations). Runs that must not be bounded can opt out with
WithUnbounded, in which case only END, an error, or context
cancellation stops them.

# Checkpointing

Enable crash recovery by persisting a checkpoint after every
successful node execution:

	store, _ := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	result, err := compiled.Run(ctx, state,
	    graph.WithCheckpointing(store),
	    graph.WithRunID("session-123"))

	// After a crash
	result, err = compiled.Resume(ctx, store, "session-123")

Resume verifies the checkpoint's integrity checksum before trusting
the restored state; corrupted checkpoints fail with
checkpoint.ErrChecksum. By default checkpoint save failures are logged
and execution continues; WithStrictCheckpoints makes them fatal.

# Error Handling

Errors carry the node where execution stopped:

	var nodeErr *graph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

Panics inside nodes are recovered and surfaced as *PanicError with a
stack trace. Cancellation surfaces as *CancellationError preserving
the state at the stop point.

# Thread Safety

  - Graph[S] is NOT safe for concurrent use during construction
  - CompiledGraph[S] IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
*/
package graph

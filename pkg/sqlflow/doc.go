/*
Package sqlflow provides graph-based orchestration for multi-turn
data-analysis sessions.

# Overview

sqlflow executes directed graphs where nodes perform work and edges
define flow. It drives conversational NL-to-SQL pipelines: a user
question flows through context assembly, query generation, execution,
and analysis, with durable checkpointing and ordered event streaming
along the way.

The executor is generic and domain-agnostic:
  - Type-safe generics for state management
  - Compile-time validation of graph structure
  - Crash recovery via per-run checkpointing
  - OpenTelemetry integration for observability

The engine subpackage wires this executor into the full session
pipeline; use the executor directly when you need a custom topology.

# Basic Usage

Create a graph with nodes and edges, then compile and run:

	type State struct {
	    Input  string
	    Output string
	}

	func process(ctx sqlflow.Context, s State) (State, error) {
	    s.Output = "Processed: " + s.Input
	    return s, nil
	}

	func main() {
	    graph := sqlflow.NewGraph[State]().
	        AddNode("process", process).
	        AddEdge("process", sqlflow.END).
	        SetEntry("process")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := sqlflow.NewContext(context.Background())
	    result, err := compiled.Run(ctx, State{Input: "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.Output) // "Processed: hello"
	}

# Conditional Branching

Use conditional edges for decision points:

	graph.AddConditionalEdge("generate_analysis", func(ctx sqlflow.Context, s State) string {
	    if s.NeedsCompression {
	        return "compress"
	    }
	    return "append_message"
	})

The router function returns the ID of the next node to execute.
Invalid return values (referencing non-existent nodes) cause runtime errors.

# Checkpointing

Enable crash recovery with checkpointing:

	store, err := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	result, err := compiled.Run(ctx, state,
	    sqlflow.WithCheckpointing(store, "sess-123"))

	// Resume after crash
	result, err = compiled.Resume(ctx, store, "sess-123")

A checkpoint is saved after each successful node execution, keyed by
run ID with latest-wins semantics. When resuming, execution continues
from the node after the last checkpoint.

# Streaming

Nodes emit progress and content events through the context's Emitter:

	func generateQuery(ctx sqlflow.Context, s State) (State, error) {
	    ctx.Emitter().Emit(stream.Status("generate_query", "Writing SQL query..."))
	    // ...
	    ctx.Emitter().Emit(stream.Chunk(stream.ChunkQuery, s.Query))
	    return s, nil
	}

	emitter := stream.NewChannelEmitter(16)
	ctx := sqlflow.NewContext(context.Background(), sqlflow.WithEmitter(emitter))

Events arrive in emission order. The default emitter discards events.

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	result, err := compiled.Run(ctx, state,
	    sqlflow.WithRunLogger(logger),
	    sqlflow.WithMetrics(true),
	    sqlflow.WithTracing(true))

Logs include structured fields: run_id, node_id, duration_ms, attempt.
OpenTelemetry metrics: sqlflow.step.executions, sqlflow.step.latency_ms, etc.
OpenTelemetry tracing: sqlflow.turn > sqlflow.step.{id} spans.

# Error Handling

Errors include context about which node failed:

	result, err := compiled.Run(ctx, state)
	var nodeErr *sqlflow.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("Node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

	var panicErr *sqlflow.PanicError
	if errors.As(err, &panicErr) {
	    log.Printf("Node %s panicked: %v\n%s", panicErr.NodeID, panicErr.Value, panicErr.Stack)
	}

Panics in nodes are recovered and converted to PanicError with stack trace.

# Thread Safety

  - Graph[S] is NOT safe for concurrent use during construction
  - CompiledGraph[S] IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - checkpoint.Store implementations are safe for concurrent use

# Subpackages

  - engine: the full session pipeline built on this executor
  - session: session and turn-state model plus persistence
  - checkpoint: checkpoint storage (memory, SQLite, Redis)
  - stream: event types and emitters for streamed progress
  - llm: LLM client interface and Claude CLI implementation
  - observability: logging, metrics, and tracing helpers
  - config: typed configuration loading
*/
package sqlflow

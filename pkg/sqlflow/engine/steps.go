package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/session"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/stream"
)

// buildGraph wires the fixed turn pipeline:
//
//	build_context -> generate_query -> execute_query -> generate_analysis
//	    -> (compress | skip) -> append_message -> END
//
// A fatal step failure routes straight to the compression decision, skipping
// the remaining external calls. Compression itself is evaluated regardless
// of turn success.
func (e *Engine) buildGraph() (*sqlflow.CompiledGraph[session.TurnState], error) {
	return sqlflow.NewGraph[session.TurnState]().
		AddNode(stepBuildContext, e.instrument(stepBuildContext, e.buildContext)).
		AddNode(stepGenerateQuery, e.instrument(stepGenerateQuery, e.generateQuery)).
		AddNode(stepExecuteQuery, e.instrument(stepExecuteQuery, e.executeQuery)).
		AddNode(stepGenerateAnalysis, e.instrument(stepGenerateAnalysis, e.generateAnalysis)).
		AddNode(stepCompress, e.instrument(stepCompress, e.compress)).
		AddNode(stepAppendMessage, e.instrument(stepAppendMessage, e.appendMessage)).
		AddEdge(stepBuildContext, stepGenerateQuery).
		AddConditionalEdge(stepGenerateQuery, e.routeAfterGenerate).
		AddConditionalEdge(stepExecuteQuery, e.routeAfterExecute).
		AddConditionalEdge(stepGenerateAnalysis, e.routeAfterAnalysis).
		AddEdge(stepCompress, stepAppendMessage).
		AddEdge(stepAppendMessage, sqlflow.END).
		SetEntry(stepBuildContext).
		Compile()
}

// instrument wraps a step so entering it emits a status event.
func (e *Engine) instrument(id string, fn sqlflow.NodeFunc[session.TurnState]) sqlflow.NodeFunc[session.TurnState] {
	return func(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
		ctx.Emitter().Emit(stream.Status(id, statusMessage(id)))
		return fn(ctx, ts)
	}
}

// buildContext renders the summary plus the most recent messages into a
// single context string for query generation. Pure function of turn state.
func (e *Engine) buildContext(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	recent := ts.Messages
	if len(recent) > e.opts.RecentWindow {
		recent = recent[len(recent)-e.opts.RecentWindow:]
	}

	var b strings.Builder
	if ts.Summary != "" {
		fmt.Fprintf(&b, "Conversation summary:\n%s\n\n", ts.Summary)
	}
	if len(recent) > 0 {
		fmt.Fprintf(&b, "Recent history:\n%s", renderHistory(recent))
	}

	ts.PutScratch(session.ScratchContext, b.String())
	return ts, nil
}

// generateQuery calls the query generator. A failure is fatal to the turn
// but is recorded on the state rather than returned, so the turn still
// reaches append_message and lands in history.
func (e *Engine) generateQuery(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.GenerateTimeout)
	defer cancel()

	query, err := e.generator.Generate(callCtx, ts.DataSource, ts.Question, ts.Scratch[session.ScratchContext])
	if err != nil {
		ctx.Logger().Error("query generation failed", "error", err)
		ts.Fail(fmt.Sprintf("query generation failed: %v", err))
		return ts, nil
	}

	ts.Query = session.StringPtr(query)
	ctx.Emitter().Emit(stream.Chunk(stream.ChunkQuery, query))
	return ts, nil
}

// executeQuery runs the generated query. Routing guarantees a query is
// present; a defensive check keeps a broken route from panicking.
func (e *Engine) executeQuery(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	if ts.Query == nil {
		ts.Fail("no query to execute")
		return ts, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.ExecuteTimeout)
	defer cancel()

	rows, err := e.executor.Execute(callCtx, *ts.Query)
	if err != nil {
		ctx.Logger().Error("query execution failed", "error", err)
		ts.Fail(fmt.Sprintf("query execution failed: %v", err))
		return ts, nil
	}

	ts.Results = rows
	digest := resultsDigest(rows)
	ts.ResultsDigest = &digest
	ctx.Emitter().Emit(stream.Chunk(stream.ChunkResults, digest))
	return ts, nil
}

// generateAnalysis produces the analysis digest. Failure here is non-fatal:
// it degrades to a placeholder digest and never flips the turn to error.
func (e *Engine) generateAnalysis(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	var analysis string
	switch {
	case len(ts.Results) == 0:
		analysis = "No results to analyze."
	case e.analyzer == nil:
		analysis = "Analysis unavailable."
	default:
		callCtx, cancel := context.WithTimeout(ctx, e.opts.AnalyzeTimeout)
		defer cancel()

		text, err := e.analyzer.Analyze(callCtx, ts.Question, *ts.Query, ts.Results)
		if err != nil {
			ctx.Logger().Warn("analysis generation failed", "error", err)
			analysis = "Analysis unavailable."
		} else {
			analysis = text
		}
	}

	ts.Analysis = &analysis
	ctx.Emitter().Emit(stream.Chunk(stream.ChunkAnalysis, analysis))
	return ts, nil
}

// appendMessage records the turn in history and settles the turn status.
// Always runs, whether the turn succeeded or failed.
func (e *Engine) appendMessage(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	ts.Messages = append(ts.Messages, session.BuildMessage(ts))
	if !ts.Failed() {
		ts.Status = session.StatusIdle
	}
	return ts, nil
}

// routeAfterGenerate short-circuits a failed turn past the remaining
// external calls, straight to the compression decision.
func (e *Engine) routeAfterGenerate(ctx sqlflow.Context, ts session.TurnState) string {
	if ts.Failed() {
		return e.routeCompression(ts)
	}
	return stepExecuteQuery
}

func (e *Engine) routeAfterExecute(ctx sqlflow.Context, ts session.TurnState) string {
	if ts.Failed() {
		return e.routeCompression(ts)
	}
	return stepGenerateAnalysis
}

// routeAfterAnalysis always evaluates compression: it is housekeeping over
// committed history, independent of this turn's outcome.
func (e *Engine) routeAfterAnalysis(ctx sqlflow.Context, ts session.TurnState) string {
	return e.routeCompression(ts)
}

func (e *Engine) routeCompression(ts session.TurnState) string {
	if e.shouldCompress(ts) {
		return stepCompress
	}
	return stepAppendMessage
}

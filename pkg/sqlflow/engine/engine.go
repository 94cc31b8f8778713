// Package engine runs conversational natural-language-to-SQL turns.
//
// An Engine compiles the turn pipeline once and executes it for every turn
// of every session. Each turn loads the session, threads a TurnState through
// the graph, streams status and chunk events to the caller, and persists the
// completed turn back onto the session. History is bounded by folding older
// messages into a rolling summary.
//
// External capabilities (query generation, query execution, analysis,
// summarization) are injected through the collaborator interfaces, so the
// engine itself stays independent of any particular model or database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/checkpoint"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/observability"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/session"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/stream"
)

// ErrCheckpointsDisabled is returned by Resume when no checkpoint store was
// configured.
var ErrCheckpointsDisabled = errors.New("engine: checkpoint store not configured")

// Config assembles an Engine's dependencies.
type Config struct {
	// Sessions persists session records. Required.
	Sessions session.Store

	// Checkpoints persists in-flight turn state. Optional; when nil, turns
	// are not checkpointed and Resume is unavailable.
	Checkpoints checkpoint.Store

	// Generator produces queries from questions. Required.
	Generator QueryGenerator

	// Executor runs generated queries. Required.
	Executor QueryExecutor

	// Analyzer produces analysis digests. Optional; when nil, turns carry a
	// placeholder digest.
	Analyzer AnalysisGenerator

	// Summarizer compresses history. Optional; when nil, compression never
	// fires and history grows unbounded.
	Summarizer Summarizer

	// Options tunes windowing, compression, and timeouts. Zero-valued
	// fields use defaults.
	Options Options

	// Logger receives structured turn and step logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Engine executes conversational turns against a shared compiled pipeline.
// Safe for concurrent use across different sessions; turns for one session
// must be submitted one at a time.
type Engine struct {
	graph       *sqlflow.CompiledGraph[session.TurnState]
	sessions    session.Store
	checkpoints checkpoint.Store
	generator   QueryGenerator
	executor    QueryExecutor
	analyzer    AnalysisGenerator
	summarizer  Summarizer
	opts        Options
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
}

// New builds an Engine and compiles its pipeline.
func New(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("engine: session store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("engine: query generator is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("engine: query executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		sessions:    cfg.Sessions,
		checkpoints: cfg.Checkpoints,
		generator:   cfg.Generator,
		executor:    cfg.Executor,
		analyzer:    cfg.Analyzer,
		summarizer:  cfg.Summarizer,
		opts:        cfg.Options.withDefaults(),
		logger:      logger,
		metrics:     observability.NoopMetrics{},
	}
	if cfg.Options.Metrics {
		e.metrics = observability.NewMetricsRecorder()
	}

	graph, err := e.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("engine: compile pipeline: %w", err)
	}
	e.graph = graph
	return e, nil
}

// NewSession creates and persists a session against a data source.
func (e *Engine) NewSession(ctx context.Context, dataSource string) (*session.Session, error) {
	if dataSource == "" {
		return nil, session.ErrNoDataSource
	}
	s := session.New(dataSource)
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Submit runs one turn for the session and blocks until it completes.
// Events stream to the emitter in execution order; every stream ends with
// exactly one terminal event. A completed turn (even one whose status is
// error) ends with done; structural rejections, cancellations, and
// persistence failures end with error.
//
// The returned error reports submission-level failures. A turn whose query
// failed but was recorded in history returns nil.
func (e *Engine) Submit(ctx context.Context, sessionID, question string, emitter stream.Emitter) error {
	if emitter == nil {
		emitter = stream.NullEmitter{}
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("submit: %w", err)
		emitter.Emit(stream.Error(err.Error()))
		return err
	}

	ts, err := session.BeginTurn(sess, question)
	if err != nil {
		emitter.Emit(stream.Error(err.Error()))
		return err
	}

	// Claim the session before running so a concurrent submission for the
	// same session is rejected by BeginTurn's in-flight check.
	sess.Status = session.StatusProcessing
	sess.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Update(ctx, sess); err != nil {
		err = fmt.Errorf("claim session: %w", err)
		emitter.Emit(stream.Error(err.Error()))
		return err
	}

	final, runErr := e.runTurn(ctx, ts, emitter)
	return e.finishTurn(ctx, sess, final, runErr, emitter)
}

// Stream runs a turn asynchronously and returns the ordered event channel.
// The channel closes after the terminal event.
func (e *Engine) Stream(ctx context.Context, sessionID, question string) <-chan stream.Event {
	em := stream.NewChannelEmitter(16)
	go func() {
		defer em.Close()
		_ = e.Submit(ctx, sessionID, question, em)
	}()
	return em.Events()
}

// Resume continues a turn from its last checkpoint after a crash or restart,
// then completes and persists it exactly as Submit would.
func (e *Engine) Resume(ctx context.Context, sessionID string, emitter stream.Emitter) error {
	if e.checkpoints == nil {
		return ErrCheckpointsDisabled
	}
	if emitter == nil {
		emitter = stream.NullEmitter{}
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("resume: %w", err)
		emitter.Emit(stream.Error(err.Error()))
		return err
	}

	ectx := e.executionContext(ctx, sessionID, emitter)
	final, runErr := e.graph.Resume(ectx, e.checkpoints, sessionID)
	if runErr != nil && errors.Is(runErr, sqlflow.ErrNoCheckpoint) {
		emitter.Emit(stream.Error(runErr.Error()))
		return runErr
	}
	return e.finishTurn(ctx, sess, final, runErr, emitter)
}

// CloseSession marks a session terminal. Subsequent submissions are
// rejected as structural errors.
func (e *Engine) CloseSession(ctx context.Context, sessionID string) error {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if sess.Closed() {
		return nil
	}
	sess.Close()
	if err := e.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record and its live checkpoint.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(sessionID); err != nil {
			return fmt.Errorf("delete checkpoint: %w", err)
		}
	}
	return nil
}

// executionContext builds the per-turn pipeline context.
func (e *Engine) executionContext(ctx context.Context, sessionID string, emitter stream.Emitter) sqlflow.Context {
	return sqlflow.NewContext(ctx,
		sqlflow.WithLogger(e.logger),
		sqlflow.WithEmitter(emitter),
		sqlflow.WithContextRunID(sessionID))
}

// runTurn executes the compiled pipeline for one turn. Checkpoint write
// failures are fatal: a turn that computed but could not persist its
// checkpoint must be reported, or the next turn would silently read stale
// state.
func (e *Engine) runTurn(ctx context.Context, ts session.TurnState, emitter stream.Emitter) (session.TurnState, error) {
	ectx := e.executionContext(ctx, ts.SessionID, emitter)

	runOpts := []sqlflow.RunOption{
		sqlflow.WithRunLogger(e.logger),
		sqlflow.WithMetrics(e.opts.Metrics),
		sqlflow.WithTracing(e.opts.Tracing),
	}
	if e.checkpoints != nil {
		runOpts = append(runOpts,
			sqlflow.WithCheckpointing(e.checkpoints, ts.SessionID),
			sqlflow.WithCheckpointFailureFatal(true))
	}

	return e.graph.Run(ectx, ts, runOpts...)
}

// finishTurn persists the turn outcome and emits the single terminal event.
func (e *Engine) finishTurn(ctx context.Context, sess *session.Session, final session.TurnState, runErr error, emitter stream.Emitter) error {
	if runErr == nil {
		session.CompleteTurn(sess, final)
		if err := e.sessions.Update(ctx, sess); err != nil {
			err = fmt.Errorf("persist turn: %w", err)
			e.logger.Error("completed turn not persisted",
				"session_id", sess.ID, "error", err)
			emitter.Emit(stream.Error(err.Error()))
			return err
		}
		emitter.Emit(stream.Done(sess.ID, string(sess.Status)))
		return nil
	}

	var cancelErr *sqlflow.CancellationError
	if errors.As(runErr, &cancelErr) {
		return e.finishCancelledTurn(ctx, sess, final, cancelErr, emitter)
	}

	// Checkpoint write failures and unexpected step errors. The session is
	// released in error state so it is not stuck processing.
	e.logger.Error("turn failed", "session_id", sess.ID, "error", runErr)
	sess.Status = session.StatusError
	if sess.Metadata == nil {
		sess.Metadata = make(map[string]string)
	}
	sess.Metadata["last_error"] = runErr.Error()
	sess.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Update(ctx, sess); err != nil {
		e.logger.Error("session not released after turn failure",
			"session_id", sess.ID, "error", err)
	}
	emitter.Emit(stream.Error(runErr.Error()))
	return runErr
}

// finishCancelledTurn records a cancelled turn in history with whatever
// partial state exists, so the turn is not lost. Persistence uses a
// detached context because the caller's is already done.
func (e *Engine) finishCancelledTurn(ctx context.Context, sess *session.Session, final session.TurnState, cancelErr *sqlflow.CancellationError, emitter stream.Emitter) error {
	ts, ok := cancelErr.State.(session.TurnState)
	if !ok {
		ts = final
	}
	ts.Cancel(fmt.Sprintf("turn cancelled: %v", cancelErr.Cause))
	ts.Messages = append(ts.Messages, session.BuildMessage(ts))
	session.CompleteTurn(sess, ts)

	persistCtx := context.WithoutCancel(ctx)
	if err := e.sessions.Update(persistCtx, sess); err != nil {
		e.logger.Error("cancelled turn not persisted",
			"session_id", sess.ID, "error", err)
	}

	emitter.Emit(stream.Error(ts.Error))
	return cancelErr
}

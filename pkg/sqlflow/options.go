package sqlflow

import (
	"log/slog"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/checkpoint"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/observability"
)

// DefaultMaxIterations is the default limit on the execution loop.
// Guards against infinite cycles from misbehaving routers.
const DefaultMaxIterations = 100

// runConfig holds execution configuration built from RunOptions.
type runConfig struct {
	maxIterations int

	// Checkpointing
	checkpointStore        checkpoint.Store
	runID                  string
	sequence               int
	checkpointFailureFatal bool

	// Observability
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the baseline configuration.
// Observability defaults to no-op implementations.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures a single Run() or Resume() invocation.
type RunOption func(*runConfig)

// WithMaxIterations sets the execution loop limit.
// Values <= 0 are ignored.
func WithMaxIterations(n int) RunOption {
	return func(cfg *runConfig) {
		if n > 0 {
			cfg.maxIterations = n
		}
	}
}

// WithCheckpointing enables durable checkpointing for the run.
// A checkpoint is written after every successful node execution,
// keyed by runID. For session turns, pass the session ID.
func WithCheckpointing(store checkpoint.Store, runID string) RunOption {
	return func(cfg *runConfig) {
		cfg.checkpointStore = store
		cfg.runID = runID
	}
}

// WithCheckpointFailureFatal controls whether checkpoint write failures
// abort the run. By default failures are logged and execution continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(cfg *runConfig) {
		cfg.checkpointFailureFatal = fatal
	}
}

// WithRunLogger sets the logger for run-level and node-level log records.
// A nil logger disables run logging.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(cfg *runConfig) {
		cfg.logger = logger
	}
}

// WithMetrics enables OTel metrics for the run.
// Uses the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(cfg *runConfig) {
		if enabled {
			cfg.metrics = observability.NewMetricsRecorder()
		} else {
			cfg.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OTel tracing for the run.
// Uses the global tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(cfg *runConfig) {
		cfg.tracingEnabled = enabled
		if enabled {
			cfg.spans = observability.NewSpanManager()
		} else {
			cfg.spans = observability.NoopSpanManager{}
		}
	}
}

// resumeConfig holds configuration built from ResumeOptions.
type resumeConfig struct {
	replayNode    bool
	stateOverride func(any) any
	validateState func(any) error
}

// ResumeOption configures a Resume() invocation.
type ResumeOption func(*resumeConfig)

// WithReplayNode re-executes the checkpointed node instead of
// continuing from its successor. Useful when the node's side effects
// did not complete before the crash.
func WithReplayNode() ResumeOption {
	return func(cfg *resumeConfig) {
		cfg.replayNode = true
	}
}

// WithStateOverride applies a transformation to the restored state
// before execution continues. The function receives and must return
// the state type the graph was compiled with; other return types are
// ignored.
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(cfg *resumeConfig) {
		cfg.stateOverride = fn
	}
}

// WithStateValidation validates the restored state before execution
// continues. A non-nil error aborts the resume.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(cfg *resumeConfig) {
		cfg.validateState = fn
	}
}

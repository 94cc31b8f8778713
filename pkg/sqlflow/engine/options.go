package engine

import (
	"time"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/config"
)

// Default tuning values.
const (
	// DefaultRecentWindow is how many recent messages stay at full detail.
	DefaultRecentWindow = 3

	// DefaultSummarizeThreshold triggers compression once a turn would push
	// the message count past it.
	DefaultSummarizeThreshold = 5

	// DefaultMaxSummaryTokens bounds the rolling summary.
	DefaultMaxSummaryTokens = 500

	// DefaultCompressTokenThreshold triggers compression on estimated token
	// size of the kept window, independent of message count.
	DefaultCompressTokenThreshold = 2000

	// Per-call timeouts for external collaborators.
	DefaultGenerateTimeout  = 60 * time.Second
	DefaultExecuteTimeout   = 30 * time.Second
	DefaultAnalyzeTimeout   = 60 * time.Second
	DefaultSummarizeTimeout = 60 * time.Second
)

// Options are the engine's tuning knobs. The zero value of any field falls
// back to its default, so callers only set what they change.
type Options struct {
	// RecentWindow is the number of recent messages kept at full detail
	// when building context and when compressing.
	RecentWindow int

	// SummarizeThreshold is the message count past which compression fires.
	SummarizeThreshold int

	// MaxSummaryTokens bounds summarizer output.
	MaxSummaryTokens int

	// CompressTokenThreshold fires compression when the estimated token
	// size of the kept window exceeds it. Either trigger is sufficient.
	CompressTokenThreshold int

	// Per-collaborator call timeouts. A generation or execution timeout is
	// a hard turn failure; an analysis or summarization timeout degrades.
	GenerateTimeout  time.Duration
	ExecuteTimeout   time.Duration
	AnalyzeTimeout   time.Duration
	SummarizeTimeout time.Duration

	// Metrics enables OpenTelemetry metrics for turns and steps.
	Metrics bool

	// Tracing enables OpenTelemetry spans for turns and steps.
	Tracing bool
}

// DefaultOptions returns the default tuning values.
func DefaultOptions() Options {
	return Options{
		RecentWindow:           DefaultRecentWindow,
		SummarizeThreshold:     DefaultSummarizeThreshold,
		MaxSummaryTokens:       DefaultMaxSummaryTokens,
		CompressTokenThreshold: DefaultCompressTokenThreshold,
		GenerateTimeout:        DefaultGenerateTimeout,
		ExecuteTimeout:         DefaultExecuteTimeout,
		AnalyzeTimeout:         DefaultAnalyzeTimeout,
		SummarizeTimeout:       DefaultSummarizeTimeout,
	}
}

// OptionsFromConfig reads tuning values from a config map, falling back to
// defaults for missing keys.
//
// Recognized keys: recent_window, summarize_threshold_messages,
// max_summary_tokens, compress_token_threshold, generate_timeout,
// execute_timeout, analyze_timeout, summarize_timeout, metrics, tracing.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		RecentWindow:           cfg.Int("recent_window", DefaultRecentWindow),
		SummarizeThreshold:     cfg.Int("summarize_threshold_messages", DefaultSummarizeThreshold),
		MaxSummaryTokens:       cfg.Int("max_summary_tokens", DefaultMaxSummaryTokens),
		CompressTokenThreshold: cfg.Int("compress_token_threshold", DefaultCompressTokenThreshold),
		GenerateTimeout:        cfg.Duration("generate_timeout", DefaultGenerateTimeout),
		ExecuteTimeout:         cfg.Duration("execute_timeout", DefaultExecuteTimeout),
		AnalyzeTimeout:         cfg.Duration("analyze_timeout", DefaultAnalyzeTimeout),
		SummarizeTimeout:       cfg.Duration("summarize_timeout", DefaultSummarizeTimeout),
		Metrics:                cfg.Bool("metrics", false),
		Tracing:                cfg.Bool("tracing", false),
	}
}

// withDefaults fills zero-valued fields with defaults.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.RecentWindow <= 0 {
		o.RecentWindow = def.RecentWindow
	}
	if o.SummarizeThreshold <= 0 {
		o.SummarizeThreshold = def.SummarizeThreshold
	}
	if o.MaxSummaryTokens <= 0 {
		o.MaxSummaryTokens = def.MaxSummaryTokens
	}
	if o.CompressTokenThreshold <= 0 {
		o.CompressTokenThreshold = def.CompressTokenThreshold
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = def.GenerateTimeout
	}
	if o.ExecuteTimeout <= 0 {
		o.ExecuteTimeout = def.ExecuteTimeout
	}
	if o.AnalyzeTimeout <= 0 {
		o.AnalyzeTimeout = def.AnalyzeTimeout
	}
	if o.SummarizeTimeout <= 0 {
		o.SummarizeTimeout = def.SummarizeTimeout
	}
	return o
}

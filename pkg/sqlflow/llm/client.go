// Package llm provides the language-model client used by the default
// collaborators (query generation, analysis, summarization).
package llm

import (
	"context"
	"fmt"
)

// Client is the minimal completion interface the engine depends on.
// Implementations must honor context cancellation and deadlines.
type Client interface {
	// Complete sends a completion request and blocks until the full
	// response is available or the context is done.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Error wraps client failures with the operation that produced them.
type Error struct {
	// Op is the operation that failed (e.g., "complete").
	Op string
	// Err is the underlying error.
	Err error
	// Retryable indicates whether the caller may retry.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}
